// Package scheduler owns one polling loop per registered target: a fast
// availability cadence and a slow expiry cadence (SSL + WHOIS). Loops
// are isolated; a fault in one never touches another.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/iammyeongho/pymonitor/internal/alerting"
	"github.com/iammyeongho/pymonitor/internal/domain"
	"github.com/iammyeongho/pymonitor/internal/engine"
	"github.com/iammyeongho/pymonitor/internal/push"
	"github.com/iammyeongho/pymonitor/internal/repo"
	"github.com/iammyeongho/pymonitor/internal/status"
)

var (
	// ErrCheckInProgress is returned by CheckNow when a check for the
	// target is already running; out-of-band checks fail fast, they
	// never queue.
	ErrCheckInProgress = errors.New("check already in progress")
	ErrNotRegistered   = errors.New("target not registered")
	ErrAlreadyStopped  = errors.New("scheduler stopped")
)

type loop struct {
	target domain.Target

	mu       sync.Mutex
	settings domain.Settings

	// inFlight enforces the no-overlap invariant per target.
	inFlight atomic.Bool

	cancel context.CancelFunc
	// reload wakes the availability loop so a shrunk interval is
	// rescheduled from "now" instead of the stale timer.
	reload chan struct{}
	wg     sync.WaitGroup
}

func (l *loop) currentSettings() domain.Settings {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.settings
}

type Scheduler struct {
	log         *zap.Logger
	engine      *engine.Engine
	tracker     *status.Tracker
	decider     *alerting.Decider
	logs        repo.LogStore
	broadcaster push.Broadcaster

	ctx     context.Context
	cancel  context.CancelFunc
	stopped atomic.Bool

	mu    sync.Mutex
	loops map[domain.TargetID]*loop
}

func New(log *zap.Logger, eng *engine.Engine, tracker *status.Tracker, decider *alerting.Decider, logs repo.LogStore, broadcaster push.Broadcaster) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		log:         log,
		engine:      eng,
		tracker:     tracker,
		decider:     decider,
		logs:        logs,
		broadcaster: broadcaster,
		ctx:         ctx,
		cancel:      cancel,
		loops:       make(map[domain.TargetID]*loop),
	}
}

// Register starts polling the target. When a loop already exists the
// settings are updated in place. The first availability tick fires one
// interval from now, not synchronously.
func (s *Scheduler) Register(target domain.Target, settings domain.Settings) error {
	if s.stopped.Load() {
		return ErrAlreadyStopped
	}
	settings = settings.ApplyDefaults()
	if err := settings.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	if existing, ok := s.loops[target.ID]; ok {
		s.mu.Unlock()
		return s.swapSettings(existing, settings)
	}

	ctx, cancel := context.WithCancel(s.ctx)
	l := &loop{
		target:   target,
		settings: settings,
		cancel:   cancel,
		reload:   make(chan struct{}, 1),
	}
	s.loops[target.ID] = l
	s.mu.Unlock()

	l.wg.Add(2)
	go s.availabilityLoop(ctx, l)
	go s.expiryLoop(ctx, l)

	s.log.Info("target_registered",
		zap.String("target_id", string(target.ID)),
		zap.String("url", target.URL),
		zap.Duration("check_interval", settings.CheckInterval),
	)
	return nil
}

// Unregister cancels the target's loops. An in-flight check finishes on
// its own timeout but its result is only logged, never alerted.
func (s *Scheduler) Unregister(id domain.TargetID) error {
	s.mu.Lock()
	l, ok := s.loops[id]
	if ok {
		delete(s.loops, id)
	}
	s.mu.Unlock()
	if !ok {
		return ErrNotRegistered
	}

	l.cancel()
	s.tracker.Forget(id)
	s.log.Info("target_unregistered", zap.String("target_id", string(id)))
	return nil
}

// UpdateSettings swaps the target's settings atomically. A shrinking
// interval reschedules the next tick from now to avoid bursts.
func (s *Scheduler) UpdateSettings(id domain.TargetID, settings domain.Settings) error {
	settings = settings.ApplyDefaults()
	if err := settings.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	l, ok := s.loops[id]
	s.mu.Unlock()
	if !ok {
		return ErrNotRegistered
	}
	return s.swapSettings(l, settings)
}

func (s *Scheduler) swapSettings(l *loop, settings domain.Settings) error {
	l.mu.Lock()
	l.settings = settings
	l.mu.Unlock()

	select {
	case l.reload <- struct{}{}:
	default: // a reload is already pending
	}
	s.log.Info("settings_updated",
		zap.String("target_id", string(l.target.ID)),
		zap.Duration("check_interval", settings.CheckInterval),
	)
	return nil
}

// CheckNow runs an out-of-band availability check, bypassing the timer.
// Fails fast with ErrCheckInProgress when a check is already running.
func (s *Scheduler) CheckNow(ctx context.Context, id domain.TargetID) (domain.CheckOutcome, error) {
	s.mu.Lock()
	l, ok := s.loops[id]
	s.mu.Unlock()
	if !ok {
		return domain.CheckOutcome{}, ErrNotRegistered
	}
	if !l.inFlight.CompareAndSwap(false, true) {
		return domain.CheckOutcome{}, ErrCheckInProgress
	}
	defer l.inFlight.Store(false)

	return s.execute(ctx, l, false), nil
}

// TargetStatus is one entry of the Status snapshot.
type TargetStatus struct {
	Target   domain.Target       `json:"target"`
	Settings domain.Settings     `json:"settings"`
	Running  bool                `json:"running"`
	State    *status.TargetState `json:"state,omitempty"`
}

// Status reports every registered target's loop and state snapshot.
func (s *Scheduler) Status() map[domain.TargetID]TargetStatus {
	s.mu.Lock()
	loops := make([]*loop, 0, len(s.loops))
	for _, l := range s.loops {
		loops = append(loops, l)
	}
	s.mu.Unlock()

	out := make(map[domain.TargetID]TargetStatus, len(loops))
	for _, l := range loops {
		ts := TargetStatus{
			Target:   l.target,
			Settings: l.currentSettings(),
			Running:  true,
		}
		if st, ok := s.tracker.Snapshot(l.target.ID); ok {
			cp := st
			ts.State = &cp
		}
		out[l.target.ID] = ts
	}
	return out
}

// StartAll registers every stored target with its stored settings. Used
// at boot; individual failures are logged and skipped.
func (s *Scheduler) StartAll(ctx context.Context, targets repo.TargetStore, settings repo.SettingsStore) error {
	list, err := targets.List(ctx)
	if err != nil {
		return fmt.Errorf("list targets: %w", err)
	}
	for _, t := range list {
		st, err := settings.LoadSettings(ctx, t.ID)
		if err != nil {
			s.log.Warn("settings_load_error", zap.String("target_id", string(t.ID)), zap.Error(err))
			st = domain.DefaultSettings()
		}
		if err := s.Register(*t, st); err != nil {
			s.log.Warn("register_error", zap.String("target_id", string(t.ID)), zap.Error(err))
		}
	}
	s.log.Info("scheduler_started", zap.Int("targets", len(list)))
	return nil
}

// Stop cancels every loop and waits for them to drain.
func (s *Scheduler) Stop() {
	if !s.stopped.CompareAndSwap(false, true) {
		return
	}
	s.cancel()

	s.mu.Lock()
	loops := make([]*loop, 0, len(s.loops))
	for _, l := range s.loops {
		loops = append(loops, l)
	}
	s.loops = make(map[domain.TargetID]*loop)
	s.mu.Unlock()

	for _, l := range loops {
		l.wg.Wait()
	}
	s.log.Info("scheduler_stopped")
}

func (s *Scheduler) availabilityLoop(ctx context.Context, l *loop) {
	defer l.wg.Done()

	timer := time.NewTimer(l.currentSettings().CheckInterval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-l.reload:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(l.currentSettings().CheckInterval)
		case <-timer.C:
			s.tick(ctx, l, false)
			timer.Reset(l.currentSettings().CheckInterval)
		}
	}
}

// expiryRetryDelay reschedules an expiry tick that lost the in-flight
// race to an availability check. Without it the next attempt would be a
// full ExpiryCheckInterval away.
const expiryRetryDelay = time.Minute

func (s *Scheduler) expiryLoop(ctx context.Context, l *loop) {
	defer l.wg.Done()

	timer := time.NewTimer(l.currentSettings().ExpiryCheckInterval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			if s.tick(ctx, l, true) {
				timer.Reset(l.currentSettings().ExpiryCheckInterval)
			} else {
				timer.Reset(expiryRetryDelay)
			}
		}
	}
}

// tick runs one scheduled check and reports whether it ran, so the
// caller can retry a skipped tick sooner than its regular interval.
// Overlap with a still-running check skips the tick. Panics are
// confined here so the loop survives.
func (s *Scheduler) tick(ctx context.Context, l *loop, includeExpiry bool) (ran bool) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("loop_panic",
				zap.String("target_id", string(l.target.ID)),
				zap.Any("panic", r),
			)
			out := domain.CheckOutcome{
				TargetID:     l.target.ID,
				CheckedAt:    time.Now().UTC(),
				Available:    false,
				Internal:     true,
				ErrorMessage: fmt.Sprintf("internal: loop panic: %v", r),
			}
			settings := l.currentSettings()
			tr := s.tracker.Apply(out, settings)
			s.decider.Evaluate(context.Background(), tr, out, settings)
		}
	}()

	if !l.inFlight.CompareAndSwap(false, true) {
		s.log.Debug("tick_skipped_in_flight", zap.String("target_id", string(l.target.ID)))
		return false
	}
	defer l.inFlight.Store(false)

	s.execute(ctx, l, includeExpiry)
	return true
}

// execute runs the engine and applies the outcome. The caller holds the
// in-flight guard. The engine runs under the scheduler's base context so
// an unregistration does not abort the network call mid-flight; instead
// the outcome of an unregistered target is logged and dropped.
func (s *Scheduler) execute(ctx context.Context, l *loop, includeExpiry bool) domain.CheckOutcome {
	settings := l.currentSettings()
	out := s.engine.Run(s.ctx, l.target, settings, includeExpiry)

	s.saveLog(out)

	if !s.isCurrent(l) {
		s.log.Info("outcome_discarded_unregistered",
			zap.String("target_id", string(l.target.ID)))
		return out
	}

	tr := s.tracker.Apply(out, settings)
	s.decider.Evaluate(ctx, tr, out, settings)
	s.publish(out)

	if tr.Changed {
		s.log.Info("status_changed",
			zap.String("target_id", string(l.target.ID)),
			zap.String("from", tr.From.String()),
			zap.String("to", tr.To.String()),
		)
	}
	return out
}

func (s *Scheduler) saveLog(out domain.CheckOutcome) {
	l := &domain.MonitoringLog{
		TargetID:     out.TargetID,
		Available:    out.Available,
		StatusCode:   out.StatusCode,
		ResponseTime: out.ResponseTime,
		ErrorMessage: out.ErrorMessage,
		CreatedAt:    out.CheckedAt,
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.logs.SaveLog(ctx, l); err != nil {
		// Persistence failure never stops the tick.
		s.log.Warn("log_save_error", zap.String("target_id", string(out.TargetID)), zap.Error(err))
	}
}

func (s *Scheduler) publish(out domain.CheckOutcome) {
	if s.broadcaster == nil {
		return
	}
	ev := domain.StatusChangedEvent{
		TargetID:     out.TargetID,
		Available:    out.Available,
		StatusCode:   out.StatusCode,
		ResponseTime: out.ResponseTime,
		CheckedAt:    out.CheckedAt,
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.broadcaster.Publish(ctx, ev); err != nil {
		s.log.Warn("publish_error", zap.String("target_id", string(out.TargetID)), zap.Error(err))
	}
}

// isCurrent reports whether l is still the registered loop for its
// target. A loop replaced by re-registration is not current: its late
// outcomes must not mutate the fresh state.
func (s *Scheduler) isCurrent(l *loop) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loops[l.target.ID] == l
}
