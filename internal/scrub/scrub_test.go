package scrub

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/arrdem/skrode/internal/domain"
)

type mockStore struct {
	mu       sync.Mutex
	calls    []string
	relErr   error
	distErr  error
	contents int64
}

func (s *mockStore) record(phase string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, phase)
}

func (s *mockStore) phases() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

func (s *mockStore) DeleteTombstonedRelationships(ctx context.Context, serviceID string) (int64, error) {
	s.record("relationships")
	return 2, s.relErr
}

func (s *mockStore) DeleteTombstonedDistributions(ctx context.Context, serviceID string) (int64, error) {
	s.record("distributions")
	return 1, s.distErr
}

func (s *mockStore) ScrubTombstonedContent(ctx context.Context, serviceID string) (int64, error) {
	s.record("content")
	return s.contents, nil
}

var testService = domain.Service{ID: "svc-1", Name: "twitter"}

func TestSweepRunsPhasesInOrder(t *testing.T) {
	store := &mockStore{contents: 3}
	scrubber := NewScrubber(store, testService, time.Minute)

	if err := scrubber.Sweep(context.Background()); err != nil {
		t.Fatalf("sweep failed: %v", err)
	}

	want := []string{"relationships", "distributions", "content"}
	got := store.phases()
	if len(got) != len(want) {
		t.Fatalf("expected %d phases, got %v", len(want), got)
	}
	for i, phase := range want {
		if got[i] != phase {
			t.Fatalf("phase %d: expected %s, got %s", i, phase, got[i])
		}
	}
}

func TestSweepStopsAtFirstFailedPhase(t *testing.T) {
	store := &mockStore{relErr: errors.New("deadlock detected")}
	scrubber := NewScrubber(store, testService, time.Minute)

	if err := scrubber.Sweep(context.Background()); err == nil {
		t.Fatalf("expected phase error to propagate")
	}
	if got := store.phases(); len(got) != 1 {
		t.Fatalf("later phases must not run after a failure, got %v", got)
	}
}

func TestRunSweepsImmediatelyAndStopsOnCancel(t *testing.T) {
	store := &mockStore{}
	scrubber := NewScrubber(store, testService, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		scrubber.Run(ctx)
		close(done)
	}()

	deadline := time.After(time.Second)
	for {
		if len(store.phases()) >= 3 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("expected an immediate first sweep")
		case <-time.After(time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("scrubber did not stop on cancellation")
	}
}
