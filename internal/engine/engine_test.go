package engine

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/iammyeongho/pymonitor/internal/domain"
	"github.com/iammyeongho/pymonitor/internal/probe"
)

type stubChecker struct {
	res probe.Result
}

func (s *stubChecker) Check(_ context.Context, _ domain.Target, _ domain.Settings) probe.Result {
	return s.res
}

type panicChecker struct{}

func (p *panicChecker) Check(_ context.Context, _ domain.Target, _ domain.Settings) probe.Result {
	panic("nil map write")
}

type slowChecker struct {
	delay time.Duration
}

func (s *slowChecker) Check(ctx context.Context, _ domain.Target, _ domain.Settings) probe.Result {
	select {
	case <-time.After(s.delay):
		return probe.Result{Kind: "http", Success: true, StatusCode: 200}
	case <-ctx.Done():
		return probe.Result{Kind: "http", Success: false, Message: "timeout"}
	}
}

func lat(d time.Duration) *time.Duration { return &d }

func tgt() domain.Target { return domain.Target{ID: "T1", URL: "https://example.com"} }

func TestRun_AvailabilityOnly(t *testing.T) {
	avail := &stubChecker{res: probe.Result{Kind: "http", Success: true, StatusCode: 200, Latency: lat(40 * time.Millisecond)}}
	ssl := &stubChecker{res: probe.Result{Kind: "ssl", Success: true}}
	e := New(zap.NewNop(), avail, ssl, nil, nil)

	out := e.Run(context.Background(), tgt(), domain.DefaultSettings(), false)
	if !out.Available {
		t.Fatalf("want available, got %+v", out)
	}
	if out.StatusCode == nil || *out.StatusCode != 200 {
		t.Fatalf("want status 200, got %v", out.StatusCode)
	}
	if out.SSL != nil || out.Domain != nil {
		t.Fatalf("expiry probes must not run on the fast cadence: %+v", out)
	}
}

func TestRun_ExpiryCadenceAttachesSubResults(t *testing.T) {
	exp := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	avail := &stubChecker{res: probe.Result{Kind: "http", Success: true, StatusCode: 200}}
	ssl := &stubChecker{res: probe.Result{Kind: "ssl", Success: true, Detail: "R3", ExpiresAt: &exp}}
	whois := &stubChecker{res: probe.Result{Kind: "domain", Success: true, Detail: "Reg Inc", ExpiresAt: &exp}}
	e := New(zap.NewNop(), avail, ssl, whois, nil)

	out := e.Run(context.Background(), tgt(), domain.DefaultSettings(), true)
	if out.SSL == nil || !out.SSL.Valid || out.SSL.Issuer != "R3" {
		t.Fatalf("ssl sub-result wrong: %+v", out.SSL)
	}
	if out.Domain == nil || !out.Domain.Registered || out.Domain.ExpiresAt == nil {
		t.Fatalf("domain sub-result wrong: %+v", out.Domain)
	}
}

func TestRun_TimeoutProducesUnavailableNoLatency(t *testing.T) {
	e := New(zap.NewNop(), &slowChecker{delay: time.Second}, nil, nil, nil)
	st := domain.DefaultSettings()
	st.Timeout = 20 * time.Millisecond

	out := e.Run(context.Background(), tgt(), st, false)
	if out.Available {
		t.Fatalf("want unavailable on timeout")
	}
	if out.ErrorMessage != "timeout" {
		t.Fatalf("want timeout message, got %q", out.ErrorMessage)
	}
	if out.ResponseTime != nil {
		t.Fatalf("timeout must not record response time, got %v", *out.ResponseTime)
	}
}

func TestRun_PanicBecomesInternalOutcome(t *testing.T) {
	e := New(zap.NewNop(), &panicChecker{}, nil, nil, nil)

	out := e.Run(context.Background(), tgt(), domain.DefaultSettings(), false)
	if out.Available {
		t.Fatalf("want unavailable after panic")
	}
	if !out.Internal {
		t.Fatalf("panic outcome must be tagged internal: %+v", out)
	}
	if out.ErrorMessage == "" {
		t.Fatalf("want error message")
	}
}

func TestRun_FailingCapabilityCheckerMarksUnavailable(t *testing.T) {
	avail := &stubChecker{res: probe.Result{Kind: "http", Success: true, StatusCode: 200}}
	reg := probe.NewRegistry()
	reg.Register(domain.CapContentMatch, &stubChecker{res: probe.Result{Kind: "content", Success: false, Message: "body does not contain \"ok\""}})
	e := New(zap.NewNop(), avail, nil, nil, reg)

	st := domain.DefaultSettings()
	st.Capabilities = []domain.Capability{domain.CapContentMatch}
	st.ContentMatch = "ok"

	out := e.Run(context.Background(), tgt(), st, false)
	if out.Available {
		t.Fatalf("failing content check should mark target unavailable")
	}
	if len(out.Extra) != 1 || out.Extra[0].Kind != "content" {
		t.Fatalf("capability result missing: %+v", out.Extra)
	}
}
