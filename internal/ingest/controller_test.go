package ingest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/arrdem/skrode/internal/domain"
)

type fakeStream struct {
	events chan domain.Event
	once   sync.Once
}

func newFakeStream() *fakeStream {
	return &fakeStream{events: make(chan domain.Event, 8)}
}

func (s *fakeStream) Events() <-chan domain.Event { return s.events }

func (s *fakeStream) Close() error {
	s.once.Do(func() { close(s.events) })
	return nil
}

func TestControllerReconnectsOnWatchdogExpiry(t *testing.T) {
	ing, _, _, _, _ := newTestIngester(t)

	dials := make(chan *fakeStream, 8)
	dialer := DialerFunc(func(ctx context.Context) (EventStream, error) {
		stream := newFakeStream()
		dials <- stream
		return stream, nil
	})

	controller := NewController(ing, dialer, 20*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		controller.Run(ctx)
		close(done)
	}()

	// First session: send nothing, let the watchdog fire.
	select {
	case <-dials:
	case <-time.After(time.Second):
		t.Fatalf("controller never dialed")
	}

	// A silent session must be torn down and replaced.
	select {
	case <-dials:
	case <-time.After(time.Second):
		t.Fatalf("controller never reconnected after watchdog expiry")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("controller did not stop on cancellation")
	}
	if controller.State() != ShuttingDown {
		t.Fatalf("expected ShuttingDown, got %v", controller.State())
	}
}

func TestControllerReconnectsOnStreamEnd(t *testing.T) {
	ing, posts, _, _, _ := newTestIngester(t)

	dials := make(chan *fakeStream, 8)
	dialer := DialerFunc(func(ctx context.Context) (EventStream, error) {
		stream := newFakeStream()
		dials <- stream
		return stream, nil
	})

	controller := NewController(ing, dialer, time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		controller.Run(ctx)
		close(done)
	}()

	var first *fakeStream
	select {
	case first = <-dials:
	case <-time.After(time.Second):
		t.Fatalf("controller never dialed")
	}

	// Events dispatched on the live session reach the ingester.
	first.events <- domain.DeleteEvent{PostID: "1"}
	first.Close()

	select {
	case <-dials:
	case <-time.After(time.Second):
		t.Fatalf("controller never reconnected after stream end")
	}

	cancel()
	<-done

	if post, ok := posts.posts["twitter:1"]; !ok || !post.Tombstone {
		t.Fatalf("expected the delete event to be dispatched before the session ended")
	}
}

func TestControllerRetriesFailedDials(t *testing.T) {
	ing, _, _, _, _ := newTestIngester(t)

	attempts := make(chan struct{}, 8)
	dialer := DialerFunc(func(ctx context.Context) (EventStream, error) {
		attempts <- struct{}{}
		return nil, errors.New("connection refused")
	})

	controller := NewController(ing, dialer, 10*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		controller.Run(ctx)
		close(done)
	}()

	for i := 0; i < 2; i++ {
		select {
		case <-attempts:
		case <-time.After(time.Second):
			t.Fatalf("expected dial attempt %d", i+1)
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("controller did not stop on cancellation")
	}
}
