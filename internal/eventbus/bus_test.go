package eventbus

import (
	"testing"
	"time"
)

func TestPublishSubscribe(t *testing.T) {
	t.Parallel()
	b := New()
	ch, unsub := b.Subscribe(4)
	defer unsub()

	b.Publish(Event{Type: TypeNotifySent, Data: "x"})

	select {
	case e := <-ch:
		if e.Type != TypeNotifySent || e.Data != "x" {
			t.Fatalf("unexpected event: %+v", e)
		}
		if e.Time.IsZero() {
			t.Fatal("publish must stamp a time")
		}
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
}

func TestPublishNeverBlocks(t *testing.T) {
	t.Parallel()
	b := New()
	_, unsub := b.Subscribe(1)
	defer unsub()

	// Nobody drains; the second publish must drop instead of blocking.
	done := make(chan struct{})
	go func() {
		defer close(done)
		b.Publish(Event{Type: TypeNotifySent})
		b.Publish(Event{Type: TypeNotifySent})
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	t.Parallel()
	b := New()
	ch, unsub := b.Subscribe(1)

	unsub()
	unsub() // idempotent

	if _, ok := <-ch; ok {
		t.Fatal("channel must be closed after unsubscribe")
	}

	// Publishing after unsubscribe must not panic.
	b.Publish(Event{Type: TypeSessionClosed})
}
