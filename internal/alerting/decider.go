// Package alerting turns status transitions into at most one active
// alert per (target, alert type), applying throttle windows and
// auto-resolution.
package alerting

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/iammyeongho/pymonitor/internal/domain"
	"github.com/iammyeongho/pymonitor/internal/notify"
	"github.com/iammyeongho/pymonitor/internal/repo"
	"github.com/iammyeongho/pymonitor/internal/status"
)

type throttleKey struct {
	target domain.TargetID
	typ    domain.AlertType
}

type Decider struct {
	log        *zap.Logger
	alerts     repo.AlertStore
	dispatcher notify.Dispatcher
	now        func() time.Time

	// AlertOnRecovery also notifies when a target comes back up; the
	// open alert is resolved either way.
	AlertOnRecovery bool

	// lastNotified is the engine-held last-seen marker per (target,
	// type); refreshing an open alert re-notifies without creating a
	// second row.
	mu           sync.Mutex
	lastNotified map[throttleKey]time.Time
}

func NewDecider(log *zap.Logger, alerts repo.AlertStore, dispatcher notify.Dispatcher) *Decider {
	return &Decider{
		log:             log,
		alerts:          alerts,
		dispatcher:      dispatcher,
		now:             time.Now,
		AlertOnRecovery: true,
		lastNotified:    make(map[throttleKey]time.Time),
	}
}

// SetNow overrides the clock, for tests.
func (d *Decider) SetNow(now func() time.Time) { d.now = now }

// Evaluate applies the alert rules to one transition. Store failures are
// logged and skipped; the tick still completes.
func (d *Decider) Evaluate(ctx context.Context, tr status.Transition, outcome domain.CheckOutcome, settings domain.Settings) {
	if outcome.Internal {
		msg := outcome.ErrorMessage
		if msg == "" {
			msg = "monitoring engine fault"
		}
		d.raise(ctx, tr.TargetID, domain.AlertMonitoringError, msg, domain.SeverityWarning, settings.ErrorAlertInterval, settings)
		return
	}

	d.evalAvailability(ctx, tr, outcome, settings)
	d.evalResponseTime(ctx, tr, outcome, settings)
	if tr.SSL != nil {
		d.evalExpiry(ctx, tr.TargetID, domain.AlertSSLError, *tr.SSL, settings)
	}
	if tr.Domain != nil {
		d.evalExpiry(ctx, tr.TargetID, domain.AlertDomainExpiry, *tr.Domain, settings)
	}
}

func (d *Decider) evalAvailability(ctx context.Context, tr status.Transition, outcome domain.CheckOutcome, settings domain.Settings) {
	switch {
	case tr.To == domain.StatusDown:
		msg := fmt.Sprintf("target unavailable after %d consecutive failures", tr.ConsecutiveFailures)
		if outcome.ErrorMessage != "" {
			msg += ": " + outcome.ErrorMessage
		}
		d.raise(ctx, tr.TargetID, domain.AlertStatusError, msg, domain.SeverityCritical, settings.ErrorAlertInterval, settings)

	case tr.To == domain.StatusUp && tr.Changed && tr.From == domain.StatusDown:
		d.resolve(ctx, tr.TargetID, domain.AlertStatusError)
		if d.AlertOnRecovery {
			d.dispatch(ctx, domain.AlertEvent{
				TargetID:   tr.TargetID,
				Type:       domain.AlertStatusError,
				Message:    "target recovered",
				Severity:   domain.SeverityWarning,
				OccurredAt: d.now().UTC(),
			}, settings)
		}
	}
}

func (d *Decider) evalResponseTime(ctx context.Context, tr status.Transition, outcome domain.CheckOutcome, settings domain.Settings) {
	if tr.To != domain.StatusUp || outcome.ResponseTime == nil {
		return
	}
	if *outcome.ResponseTime > settings.ResponseTimeLimit {
		msg := fmt.Sprintf("response time %s exceeds limit %s", outcome.ResponseTime.Round(time.Millisecond), settings.ResponseTimeLimit)
		d.raise(ctx, tr.TargetID, domain.AlertResponseTime, msg, domain.SeverityWarning, settings.ResponseAlertInterval, settings)
		return
	}
	// Back under the limit: close the incident so the next breach can
	// alert again.
	d.resolve(ctx, tr.TargetID, domain.AlertResponseTime)
}

func (d *Decider) evalExpiry(ctx context.Context, id domain.TargetID, typ domain.AlertType, tr status.ExpiryTransition, settings domain.Settings) {
	switch tr.To {
	case domain.ExpiryValid:
		// Renewed cert or extended registration closes the incident.
		d.resolve(ctx, id, typ)
		return
	case domain.ExpiryWarning, domain.ExpiryExpired:
		severity := domain.SeverityWarning
		if tr.To == domain.ExpiryExpired {
			severity = domain.SeverityCritical
		}
		msg := tr.Message
		if msg == "" {
			msg = tr.To.String()
		}
		d.raise(ctx, id, typ, msg, severity, settings.ExpiryAlertInterval, settings)
	}
}

// raise creates an alert for (target, typ) unless one is open and fresh.
// An open alert older than the throttle interval is refreshed: the
// last-seen marker advances and the notification is re-sent, but no
// second row is created.
func (d *Decider) raise(ctx context.Context, id domain.TargetID, typ domain.AlertType, msg string, severity domain.Severity, throttle time.Duration, settings domain.Settings) {
	now := d.now().UTC()

	open, err := d.alerts.FindUnresolvedAlert(ctx, id, typ)
	if err != nil {
		d.log.Warn("alert_lookup_error", zap.String("target_id", string(id)), zap.Error(err))
		return
	}

	if open != nil {
		if now.Sub(d.lastSeen(id, typ, open.CreatedAt)) < throttle {
			return // already notified, still inside the window
		}
		d.markNotified(id, typ, now)
		d.dispatch(ctx, domain.AlertEvent{TargetID: id, Type: typ, Message: msg, Severity: severity, OccurredAt: now}, settings)
		return
	}

	latest, err := d.alerts.LatestAlertAt(ctx, id, typ)
	if err != nil {
		d.log.Warn("alert_lookup_error", zap.String("target_id", string(id)), zap.Error(err))
		return
	}
	if latest != nil && now.Sub(*latest) < throttle {
		return // a recent incident of this type was already announced
	}

	alert := &domain.MonitoringAlert{TargetID: id, Type: typ, Message: msg, CreatedAt: now}
	if _, err := d.alerts.CreateAlert(ctx, alert); err != nil {
		d.log.Warn("alert_create_error", zap.String("target_id", string(id)), zap.Error(err))
		return
	}
	d.markNotified(id, typ, now)
	d.log.Info("alert_created",
		zap.String("target_id", string(id)),
		zap.String("alert_type", string(typ)),
		zap.String("message", msg),
	)
	d.dispatch(ctx, domain.AlertEvent{TargetID: id, Type: typ, Message: msg, Severity: severity, OccurredAt: now}, settings)
}

func (d *Decider) resolve(ctx context.Context, id domain.TargetID, typ domain.AlertType) {
	open, err := d.alerts.FindUnresolvedAlert(ctx, id, typ)
	if err != nil {
		d.log.Warn("alert_lookup_error", zap.String("target_id", string(id)), zap.Error(err))
		return
	}
	if open == nil {
		return
	}
	now := d.now().UTC()
	if err := d.alerts.ResolveAlert(ctx, open.ID, now); err != nil {
		d.log.Warn("alert_resolve_error", zap.String("alert_id", open.ID), zap.Error(err))
		return
	}
	d.clearNotified(id, typ)
	d.log.Info("alert_resolved",
		zap.String("target_id", string(id)),
		zap.String("alert_type", string(typ)),
	)
}

func (d *Decider) dispatch(ctx context.Context, ev domain.AlertEvent, settings domain.Settings) {
	if !settings.AlertsEnabled || d.dispatcher == nil {
		return
	}
	ev.WebhookURL = settings.WebhookURL
	if err := d.dispatcher.Dispatch(ctx, ev); err != nil {
		d.log.Warn("dispatch_error",
			zap.String("target_id", string(ev.TargetID)),
			zap.String("alert_type", string(ev.Type)),
			zap.Error(err),
		)
	}
}

func (d *Decider) lastSeen(id domain.TargetID, typ domain.AlertType, fallback time.Time) time.Time {
	d.mu.Lock()
	defer d.mu.Unlock()
	if ts, ok := d.lastNotified[throttleKey{id, typ}]; ok {
		return ts
	}
	return fallback
}

func (d *Decider) markNotified(id domain.TargetID, typ domain.AlertType, at time.Time) {
	d.mu.Lock()
	d.lastNotified[throttleKey{id, typ}] = at
	d.mu.Unlock()
}

func (d *Decider) clearNotified(id domain.TargetID, typ domain.AlertType) {
	d.mu.Lock()
	delete(d.lastNotified, throttleKey{id, typ})
	d.mu.Unlock()
}
