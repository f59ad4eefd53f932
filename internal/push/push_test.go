package push

import (
	"context"
	"testing"
	"time"

	"github.com/iammyeongho/pymonitor/internal/domain"
)

func ev(id domain.TargetID) domain.StatusChangedEvent {
	return domain.StatusChangedEvent{TargetID: id, Available: true, CheckedAt: time.Now().UTC()}
}

func TestHub_DeliversToAllSubscribers(t *testing.T) {
	h := NewHub()
	ch1, cancel1 := h.Subscribe(4)
	ch2, cancel2 := h.Subscribe(4)
	defer cancel1()
	defer cancel2()

	if err := h.Publish(context.Background(), ev("T1")); err != nil {
		t.Fatal(err)
	}

	for i, ch := range []<-chan domain.StatusChangedEvent{ch1, ch2} {
		select {
		case got := <-ch:
			if got.TargetID != "T1" {
				t.Fatalf("sub %d: wrong event %+v", i, got)
			}
		case <-time.After(time.Second):
			t.Fatalf("sub %d: no event", i)
		}
	}
}

func TestHub_SlowSubscriberDropsWithoutBlocking(t *testing.T) {
	h := NewHub()
	_, cancelSlow := h.Subscribe(1) // never read
	defer cancelSlow()
	fast, cancelFast := h.Subscribe(8)
	defer cancelFast()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 5; i++ {
			_ = h.Publish(context.Background(), ev("T1"))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}

	// The fast subscriber got all five.
	for i := 0; i < 5; i++ {
		select {
		case <-fast:
		case <-time.After(time.Second):
			t.Fatalf("fast subscriber missing event %d", i)
		}
	}
}

func TestHub_CancelClosesChannel(t *testing.T) {
	h := NewHub()
	ch, cancel := h.Subscribe(1)
	cancel()
	cancel() // double cancel is safe

	if _, open := <-ch; open {
		t.Fatal("channel should be closed after cancel")
	}
	// Publishing after cancel must not panic.
	if err := h.Publish(context.Background(), ev("T1")); err != nil {
		t.Fatal(err)
	}
}
