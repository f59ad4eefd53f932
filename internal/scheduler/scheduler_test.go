package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/iammyeongho/pymonitor/internal/alerting"
	"github.com/iammyeongho/pymonitor/internal/domain"
	"github.com/iammyeongho/pymonitor/internal/engine"
	"github.com/iammyeongho/pymonitor/internal/probe"
	"github.com/iammyeongho/pymonitor/internal/repo/memory"
	"github.com/iammyeongho/pymonitor/internal/status"
)

// ---- fakes ----

type scriptedChecker struct {
	mu  sync.Mutex
	res probe.Result
	// block, when set, holds the check until released.
	block chan struct{}
}

func (c *scriptedChecker) Check(ctx context.Context, _ domain.Target, _ domain.Settings) probe.Result {
	c.mu.Lock()
	block := c.block
	res := c.res
	c.mu.Unlock()
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
		}
	}
	return res
}

func (c *scriptedChecker) set(res probe.Result) {
	c.mu.Lock()
	c.res = res
	c.mu.Unlock()
}

type panicChecker struct{}

func (panicChecker) Check(context.Context, domain.Target, domain.Settings) probe.Result {
	panic("index out of range")
}

type countingDispatcher struct {
	mu     sync.Mutex
	events []domain.AlertEvent
}

func (c *countingDispatcher) Dispatch(_ context.Context, ev domain.AlertEvent) error {
	c.mu.Lock()
	c.events = append(c.events, ev)
	c.mu.Unlock()
	return nil
}

func (c *countingDispatcher) byType(typ domain.AlertType) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, ev := range c.events {
		if ev.Type == typ {
			n++
		}
	}
	return n
}

type fixture struct {
	sched   *Scheduler
	store   *memory.Store
	tracker *status.Tracker
	disp    *countingDispatcher
	checker *scriptedChecker
}

func newFixture(t *testing.T, avail probe.Checker) *fixture {
	t.Helper()
	log := zap.NewNop()
	store := memory.New()
	tracker := status.NewTracker()
	disp := &countingDispatcher{}
	decider := alerting.NewDecider(log, store, disp)
	decider.AlertOnRecovery = false

	chk, _ := avail.(*scriptedChecker)
	eng := engine.New(log, avail, nil, nil, nil)
	sched := New(log, eng, tracker, decider, store, nil)
	t.Cleanup(sched.Stop)

	return &fixture{sched: sched, store: store, tracker: tracker, disp: disp, checker: chk}
}

func okChecker() *scriptedChecker {
	return &scriptedChecker{res: probe.Result{Kind: "http", Success: true, StatusCode: 200}}
}

func target(id string) domain.Target {
	return domain.Target{ID: domain.TargetID(id), URL: "https://example.com"}
}

// shorten swaps in a fast interval directly, below what Validate allows,
// so loop behavior is observable in tests.
func (f *fixture) shorten(t *testing.T, id domain.TargetID, interval time.Duration, retry int) {
	t.Helper()
	f.sched.mu.Lock()
	l, ok := f.sched.loops[id]
	f.sched.mu.Unlock()
	if !ok {
		t.Fatalf("no loop for %s", id)
	}
	st := l.currentSettings()
	st.CheckInterval = interval
	st.RetryCount = retry
	_ = f.sched.swapSettings(l, st)
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not reached within %v", timeout)
}

// ---- tests ----

func TestRegister_RejectsInvalidSettings(t *testing.T) {
	f := newFixture(t, okChecker())
	st := domain.DefaultSettings()
	st.CheckInterval = 2 * time.Second

	err := f.sched.Register(target("T1"), st)
	var ve *domain.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("want validation error, got %v", err)
	}
	if len(f.sched.Status()) != 0 {
		t.Fatalf("invalid target must not be registered")
	}
}

func TestRegister_TwiceUpdatesSettingsInPlace(t *testing.T) {
	f := newFixture(t, okChecker())
	if err := f.sched.Register(target("T1"), domain.Settings{}); err != nil {
		t.Fatal(err)
	}

	st := domain.DefaultSettings()
	st.RetryCount = 5
	if err := f.sched.Register(target("T1"), st); err != nil {
		t.Fatal(err)
	}

	got := f.sched.Status()
	if len(got) != 1 {
		t.Fatalf("want one loop, got %d", len(got))
	}
	if got["T1"].Settings.RetryCount != 5 {
		t.Fatalf("settings not swapped: %+v", got["T1"].Settings)
	}
	if !got["T1"].Running {
		t.Fatalf("loop should be running")
	}
}

func TestCheckNow_RunsOutOfBand(t *testing.T) {
	f := newFixture(t, okChecker())
	_ = f.sched.Register(target("T1"), domain.Settings{})

	out, err := f.sched.CheckNow(context.Background(), "T1")
	if err != nil {
		t.Fatal(err)
	}
	if !out.Available {
		t.Fatalf("want available outcome, got %+v", out)
	}

	st, ok := f.tracker.Snapshot("T1")
	if !ok || st.Availability != domain.StatusUp {
		t.Fatalf("tracker not updated: %+v ok=%v", st, ok)
	}
	logs, _ := f.store.ListLogs(context.Background(), "T1", 0, 0)
	if len(logs) != 1 {
		t.Fatalf("want one log row, got %d", len(logs))
	}
}

func TestCheckNow_FailsFastWhileInFlight(t *testing.T) {
	chk := okChecker()
	chk.block = make(chan struct{})
	f := newFixture(t, chk)
	_ = f.sched.Register(target("T1"), domain.Settings{})

	started := make(chan struct{})
	done := make(chan struct{})
	go func() {
		close(started)
		_, _ = f.sched.CheckNow(context.Background(), "T1")
		close(done)
	}()
	<-started
	waitFor(t, time.Second, func() bool {
		f.sched.mu.Lock()
		l := f.sched.loops["T1"]
		f.sched.mu.Unlock()
		return l != nil && l.inFlight.Load()
	})

	if _, err := f.sched.CheckNow(context.Background(), "T1"); !errors.Is(err, ErrCheckInProgress) {
		t.Fatalf("want ErrCheckInProgress, got %v", err)
	}

	close(chk.block)
	<-done
}

func TestCheckNow_UnknownTarget(t *testing.T) {
	f := newFixture(t, okChecker())
	if _, err := f.sched.CheckNow(context.Background(), "ghost"); !errors.Is(err, ErrNotRegistered) {
		t.Fatalf("want ErrNotRegistered, got %v", err)
	}
}

func TestScheduledLoop_DeclaresDownAndAlerts(t *testing.T) {
	chk := okChecker()
	chk.set(probe.Result{Kind: "http", Success: false, Message: "connection refused"})
	f := newFixture(t, chk)
	_ = f.sched.Register(target("T1"), domain.Settings{})
	f.shorten(t, "T1", 15*time.Millisecond, 2)

	waitFor(t, 3*time.Second, func() bool {
		st, ok := f.tracker.Snapshot("T1")
		return ok && st.Availability == domain.StatusDown
	})
	waitFor(t, time.Second, func() bool {
		open, _ := f.store.FindUnresolvedAlert(context.Background(), "T1", domain.AlertStatusError)
		return open != nil
	})

	// Recovery on the next ticks resolves the alert.
	chk.set(probe.Result{Kind: "http", Success: true, StatusCode: 200})
	waitFor(t, 3*time.Second, func() bool {
		open, _ := f.store.FindUnresolvedAlert(context.Background(), "T1", domain.AlertStatusError)
		st, ok := f.tracker.Snapshot("T1")
		return open == nil && ok && st.Availability == domain.StatusUp
	})
}

func TestUnregister_MidFlightOutcomeIsLoggedOnly(t *testing.T) {
	chk := okChecker()
	chk.set(probe.Result{Kind: "http", Success: false, Message: "connection refused"})
	chk.block = make(chan struct{})
	f := newFixture(t, chk)

	st := domain.DefaultSettings()
	st.RetryCount = 1
	_ = f.sched.Register(target("T1"), st)

	done := make(chan struct{})
	go func() {
		_, _ = f.sched.CheckNow(context.Background(), "T1")
		close(done)
	}()
	waitFor(t, time.Second, func() bool {
		f.sched.mu.Lock()
		l := f.sched.loops["T1"]
		f.sched.mu.Unlock()
		return l != nil && l.inFlight.Load()
	})

	if err := f.sched.Unregister("T1"); err != nil {
		t.Fatal(err)
	}
	close(chk.block)
	<-done

	// The outcome was logged but produced no state and no alert.
	logs, _ := f.store.ListLogs(context.Background(), "T1", 0, 0)
	if len(logs) != 1 {
		t.Fatalf("want the in-flight outcome logged, got %d rows", len(logs))
	}
	if _, ok := f.tracker.Snapshot("T1"); ok {
		t.Fatalf("state must not be recreated after unregister")
	}
	open, _ := f.store.FindUnresolvedAlert(context.Background(), "T1", domain.AlertStatusError)
	if open != nil {
		t.Fatalf("no alert may be raised for an unregistered target")
	}
	if f.disp.byType(domain.AlertStatusError) != 0 {
		t.Fatalf("no notification may be dispatched for an unregistered target")
	}
}

func TestUnregister_Unknown(t *testing.T) {
	f := newFixture(t, okChecker())
	if err := f.sched.Unregister("ghost"); !errors.Is(err, ErrNotRegistered) {
		t.Fatalf("want ErrNotRegistered, got %v", err)
	}
}

func TestPanicInChecker_RaisesMonitoringErrorAndLoopSurvives(t *testing.T) {
	f := newFixture(t, panicChecker{})
	_ = f.sched.Register(target("T1"), domain.Settings{})
	f.shorten(t, "T1", 15*time.Millisecond, 3)

	waitFor(t, 3*time.Second, func() bool {
		open, _ := f.store.FindUnresolvedAlert(context.Background(), "T1", domain.AlertMonitoringError)
		return open != nil
	})

	// The loop is still alive and ticking after the fault.
	before, _ := f.store.ListLogs(context.Background(), "T1", 0, 0)
	waitFor(t, 3*time.Second, func() bool {
		after, _ := f.store.ListLogs(context.Background(), "T1", 0, 0)
		return len(after) > len(before)
	})
}

func TestTick_ReportsSkipWhileInFlight(t *testing.T) {
	f := newFixture(t, okChecker())
	_ = f.sched.Register(target("T1"), domain.Settings{})

	f.sched.mu.Lock()
	l := f.sched.loops["T1"]
	f.sched.mu.Unlock()

	// A colliding expiry tick reports the skip so its loop retries on
	// the short delay instead of a full ExpiryCheckInterval.
	l.inFlight.Store(true)
	if f.sched.tick(context.Background(), l, true) {
		t.Fatal("tick must report a skip while a check is in flight")
	}
	l.inFlight.Store(false)
	if !f.sched.tick(context.Background(), l, true) {
		t.Fatal("tick should run once the guard is free")
	}
}

func TestUpdateSettings_RequiresRegistration(t *testing.T) {
	f := newFixture(t, okChecker())
	err := f.sched.UpdateSettings("ghost", domain.Settings{})
	if !errors.Is(err, ErrNotRegistered) {
		t.Fatalf("want ErrNotRegistered, got %v", err)
	}
}

func TestStop_Idempotent(t *testing.T) {
	f := newFixture(t, okChecker())
	_ = f.sched.Register(target("T1"), domain.Settings{})
	f.sched.Stop()
	f.sched.Stop()

	if err := f.sched.Register(target("T2"), domain.Settings{}); !errors.Is(err, ErrAlreadyStopped) {
		t.Fatalf("want ErrAlreadyStopped, got %v", err)
	}
}
