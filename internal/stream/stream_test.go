package stream

import (
	"context"
	"testing"
	"time"
)

func TestPublishReachesAllSubscribers(t *testing.T) {
	h := New[string]()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a := h.Subscribe(ctx)
	b := h.Subscribe(ctx)
	h.Publish("changed")

	for _, ch := range []<-chan string{a, b} {
		select {
		case v := <-ch:
			if v != "changed" {
				t.Fatalf("unexpected value %q", v)
			}
		case <-time.After(time.Second):
			t.Fatal("subscriber did not receive value")
		}
	}
}

func TestSubscriptionClosesWithContext(t *testing.T) {
	h := New[int]()
	ctx, cancel := context.WithCancel(context.Background())
	ch := h.Subscribe(ctx)
	cancel()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected closed channel")
		}
	case <-time.After(time.Second):
		t.Fatal("channel was not closed")
	}
	if n := h.Subscribers(); n != 0 {
		t.Fatalf("expected no subscribers, got %d", n)
	}
}

func TestSlowSubscriberDoesNotBlock(t *testing.T) {
	h := NewBuffered[int](1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch := h.Subscribe(ctx)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			h.Publish(i)
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on slow subscriber")
	}
	if v := <-ch; v != 0 {
		t.Fatalf("expected first value kept, got %d", v)
	}
}
