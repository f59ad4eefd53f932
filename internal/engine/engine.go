// Package engine runs the checkers that apply to a target within one
// bounded execution and merges their results into a single CheckOutcome.
package engine

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/iammyeongho/pymonitor/internal/domain"
	"github.com/iammyeongho/pymonitor/internal/probe"
)

// expiryProbeTimeout bounds each SSL/WHOIS probe independently of the
// availability timeout, so a slow registry can't stall the whole run.
const expiryProbeTimeout = 15 * time.Second

type Engine struct {
	log          *zap.Logger
	availability probe.Checker
	ssl          probe.Checker
	whois        probe.Checker
	registry     *probe.Registry
	now          func() time.Time
}

func New(log *zap.Logger, availability, ssl, whois probe.Checker, registry *probe.Registry) *Engine {
	if registry == nil {
		registry = probe.NewRegistry()
	}
	return &Engine{
		log:          log,
		availability: availability,
		ssl:          ssl,
		whois:        whois,
		registry:     registry,
		now:          time.Now,
	}
}

// Run executes one check cycle for the target. The availability probe is
// always run under settings.Timeout; SSL and WHOIS probes run only when
// includeExpiry is set (the scheduler's slow cadence). The engine does no
// retries; hysteresis lives in the status tracker.
//
// A panic in any checker is recovered here and converted into an outcome
// tagged Internal, so an engine fault can never take down a scheduler
// loop.
func (e *Engine) Run(ctx context.Context, target domain.Target, settings domain.Settings, includeExpiry bool) (out domain.CheckOutcome) {
	out = domain.CheckOutcome{
		TargetID:  target.ID,
		CheckedAt: e.now().UTC(),
	}

	defer func() {
		if r := recover(); r != nil {
			e.log.Error("engine_panic",
				zap.String("target_id", string(target.ID)),
				zap.Any("panic", r),
			)
			out.Available = false
			out.Internal = true
			out.ErrorMessage = fmt.Sprintf("internal: checker panic: %v", r)
		}
	}()

	e.runAvailability(ctx, target, settings, &out)
	if includeExpiry {
		e.runExpiry(ctx, target, settings, &out)
	}
	return out
}

func (e *Engine) runAvailability(ctx context.Context, target domain.Target, settings domain.Settings, out *domain.CheckOutcome) {
	cctx, cancel := context.WithTimeout(ctx, settings.Timeout)
	defer cancel()

	res := e.availability.Check(cctx, target, settings)
	out.Available = res.Success
	out.ResponseTime = res.Latency
	if res.StatusCode != 0 {
		code := res.StatusCode
		out.StatusCode = &code
	}
	if !res.Success {
		out.ErrorMessage = res.Message
	}

	// Optional capability checkers share the availability timeout. A
	// failing optional check marks the target unavailable too: a page
	// that serves 200 without its expected content is not healthy.
	for _, chk := range e.registry.For(settings) {
		r := chk.Check(cctx, target, settings)
		out.Extra = append(out.Extra, domain.ProbeResult{
			Kind:    r.Kind,
			Success: r.Success,
			Message: r.Message,
		})
		if !r.Success {
			out.Available = false
			if out.ErrorMessage == "" {
				out.ErrorMessage = fmt.Sprintf("%s: %s", r.Kind, r.Message)
			}
		}
	}
}

func (e *Engine) runExpiry(ctx context.Context, target domain.Target, settings domain.Settings, out *domain.CheckOutcome) {
	if e.ssl != nil {
		sctx, cancel := context.WithTimeout(ctx, expiryProbeTimeout)
		res := e.ssl.Check(sctx, target, settings)
		cancel()
		out.SSL = &domain.SSLResult{
			Valid:     res.Success,
			ExpiresAt: res.ExpiresAt,
			Issuer:    res.Detail,
		}
		if !res.Success {
			out.SSL.ErrorMessage = res.Message
		}
	}

	if e.whois != nil {
		wctx, cancel := context.WithTimeout(ctx, expiryProbeTimeout)
		res := e.whois.Check(wctx, target, settings)
		cancel()
		out.Domain = &domain.DomainResult{
			Registered: res.Success,
			ExpiresAt:  res.ExpiresAt,
			Registrar:  res.Detail,
		}
		if !res.Success {
			out.Domain.ErrorMessage = res.Message
		}
	}
}
