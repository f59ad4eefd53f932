// Package notify delivers alert events to downstream channels. Dispatch
// is fire-and-forget from the scheduler's perspective: errors are
// logged, never retried by the core.
package notify

import (
	"context"

	"go.uber.org/zap"

	"github.com/iammyeongho/pymonitor/internal/domain"
)

type Dispatcher interface {
	Dispatch(ctx context.Context, ev domain.AlertEvent) error
}

// Multi fans one event out to every channel. The first error is
// returned after all channels were attempted.
type Multi []Dispatcher

func (m Multi) Dispatch(ctx context.Context, ev domain.AlertEvent) error {
	var firstErr error
	for _, d := range m {
		if d == nil {
			continue
		}
		if err := d.Dispatch(ctx, ev); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Async decouples dispatch from the caller with a buffered queue. When
// the queue is full the event is dropped and logged; a slow channel
// must never block a scheduler loop.
type Async struct {
	log   *zap.Logger
	inner Dispatcher
	queue chan domain.AlertEvent
	done  chan struct{}
}

func NewAsync(log *zap.Logger, inner Dispatcher, buffer int) *Async {
	if buffer < 1 {
		buffer = 64
	}
	a := &Async{
		log:   log,
		inner: inner,
		queue: make(chan domain.AlertEvent, buffer),
		done:  make(chan struct{}),
	}
	go a.drain()
	return a
}

func (a *Async) Dispatch(_ context.Context, ev domain.AlertEvent) error {
	select {
	case a.queue <- ev:
	default:
		a.log.Warn("dispatch_queue_full",
			zap.String("target_id", string(ev.TargetID)),
			zap.String("alert_type", string(ev.Type)),
		)
	}
	return nil
}

func (a *Async) drain() {
	defer close(a.done)
	for ev := range a.queue {
		if err := a.inner.Dispatch(context.Background(), ev); err != nil {
			a.log.Warn("dispatch_error",
				zap.String("target_id", string(ev.TargetID)),
				zap.String("alert_type", string(ev.Type)),
				zap.Error(err),
			)
		}
	}
}

// Close stops the worker after the queue is drained.
func (a *Async) Close() {
	close(a.queue)
	<-a.done
}
