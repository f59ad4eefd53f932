package status

import (
	"testing"
	"time"

	"github.com/iammyeongho/pymonitor/internal/domain"
)

var now = time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

func outcome(id domain.TargetID, up bool) domain.CheckOutcome {
	return domain.CheckOutcome{TargetID: id, CheckedAt: now, Available: up}
}

func settingsWithRetry(n int) domain.Settings {
	s := domain.DefaultSettings()
	s.RetryCount = n
	return s
}

func TestAdvance_DownRequiresExactlyNFailures(t *testing.T) {
	st := settingsWithRetry(3)
	var state TargetState
	var tr Transition

	for i := 1; i <= 2; i++ {
		state, tr = Advance(state, outcome("T1", false), st, now)
		if tr.To == domain.StatusDown {
			t.Fatalf("flipped DOWN after %d failures, want 3", i)
		}
	}
	state, tr = Advance(state, outcome("T1", false), st, now)
	if tr.To != domain.StatusDown || !tr.Changed {
		t.Fatalf("want DOWN transition on 3rd failure, got %+v", tr)
	}
	if state.ConsecutiveFailures != 3 {
		t.Fatalf("want 3 consecutive failures, got %d", state.ConsecutiveFailures)
	}
}

func TestAdvance_SuccessResetsFailureStreak(t *testing.T) {
	st := settingsWithRetry(3)
	var state TargetState

	state, _ = Advance(state, outcome("T1", false), st, now)
	state, _ = Advance(state, outcome("T1", false), st, now)
	state, tr := Advance(state, outcome("T1", true), st, now)
	if tr.To != domain.StatusUp {
		t.Fatalf("want UP after success, got %v", tr.To)
	}
	if state.ConsecutiveFailures != 0 {
		t.Fatalf("failure streak not reset: %d", state.ConsecutiveFailures)
	}

	// N-1 failures then success must not have flipped DOWN at any point.
	state, tr = Advance(state, outcome("T1", false), st, now)
	if tr.To == domain.StatusDown {
		t.Fatalf("single failure after reset flipped DOWN")
	}
}

func TestAdvance_FastRecovery(t *testing.T) {
	st := settingsWithRetry(2)
	var state TargetState
	state, _ = Advance(state, outcome("T1", false), st, now)
	state, tr := Advance(state, outcome("T1", false), st, now)
	if tr.To != domain.StatusDown {
		t.Fatalf("want DOWN, got %v", tr.To)
	}

	// One success is enough to recover.
	_, tr = Advance(state, outcome("T1", true), st, now)
	if tr.To != domain.StatusUp || !tr.Changed {
		t.Fatalf("want DOWN->UP on first success, got %+v", tr)
	}
}

func TestAdvance_Deterministic(t *testing.T) {
	st := settingsWithRetry(3)
	prev := TargetState{Availability: domain.StatusUp, ConsecutiveSuccesses: 5}
	o := outcome("T1", false)

	s1, t1 := Advance(prev, o, st, now)
	s2, t2 := Advance(prev, o, st, now)
	if s1 != s2 {
		t.Fatalf("same inputs produced different states:\n%+v\n%+v", s1, s2)
	}
	if t1.To != t2.To || t1.Changed != t2.Changed {
		t.Fatalf("same inputs produced different transitions")
	}
}

func TestAdvance_SSLWarningWindow(t *testing.T) {
	st := domain.DefaultSettings()
	st.ExpiryAlertDays = 7

	in5 := now.Add(5 * 24 * time.Hour)
	o := outcome("T1", true)
	o.SSL = &domain.SSLResult{Valid: true, ExpiresAt: &in5}

	_, tr := Advance(TargetState{}, o, st, now)
	if tr.SSL == nil || tr.SSL.To != domain.ExpiryWarning {
		t.Fatalf("cert expiring in 5d with 7d threshold should be WARNING, got %+v", tr.SSL)
	}

	in30 := now.Add(30 * 24 * time.Hour)
	o.SSL = &domain.SSLResult{Valid: true, ExpiresAt: &in30}
	_, tr = Advance(TargetState{}, o, st, now)
	if tr.SSL.To != domain.ExpiryValid {
		t.Fatalf("cert expiring in 30d should be VALID, got %v", tr.SSL.To)
	}

	past := now.Add(-time.Hour)
	o.SSL = &domain.SSLResult{Valid: true, ExpiresAt: &past}
	_, tr = Advance(TargetState{}, o, st, now)
	if tr.SSL.To != domain.ExpiryExpired {
		t.Fatalf("past expiry should be EXPIRED, got %v", tr.SSL.To)
	}
}

func TestAdvance_InvalidCertIsExpired(t *testing.T) {
	o := outcome("T1", true)
	o.SSL = &domain.SSLResult{Valid: false, ErrorMessage: "x509: certificate signed by unknown authority"}
	_, tr := Advance(TargetState{}, o, domain.DefaultSettings(), now)
	if tr.SSL.To != domain.ExpiryExpired {
		t.Fatalf("invalid cert should classify EXPIRED, got %v", tr.SSL.To)
	}
	if tr.SSL.Message == "" {
		t.Fatalf("want error message carried")
	}
}

func TestAdvance_NoExpiryTransitionWithoutSubResult(t *testing.T) {
	_, tr := Advance(TargetState{}, outcome("T1", true), domain.DefaultSettings(), now)
	if tr.SSL != nil || tr.Domain != nil {
		t.Fatalf("availability-only outcome must not touch expiry tracks")
	}
}

func TestTracker_SnapshotAndForget(t *testing.T) {
	tk := NewTracker()
	tk.SetNow(func() time.Time { return now })

	tk.Apply(outcome("T1", true), domain.DefaultSettings())
	st, ok := tk.Snapshot("T1")
	if !ok || st.Availability != domain.StatusUp {
		t.Fatalf("want UP snapshot, got %+v ok=%v", st, ok)
	}

	tk.Forget("T1")
	if _, ok := tk.Snapshot("T1"); ok {
		t.Fatalf("state should be discarded on Forget")
	}

	// A fresh target starts over from UNKNOWN.
	tr := tk.Apply(outcome("T1", false), settingsWithRetry(3))
	if tr.From != domain.StatusUnknown {
		t.Fatalf("want fresh UNKNOWN state, got %v", tr.From)
	}
}
