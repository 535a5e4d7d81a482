package session

import (
	"context"
	"errors"
	"testing"

	"github.com/narrativeforge/engine/internal/domain"
	toolmemory "github.com/narrativeforge/engine/internal/mcp/tools/memory"
)

// stubEventStore is a hand-wired [EventStore] double with per-method error
// injection.
type stubEventStore struct {
	logErr    error
	recentErr error
	searchErr error

	recentResult []domain.GameEvent
	searchResult []domain.GameEvent

	logCalls int
}

func (s *stubEventStore) LogEvent(_ context.Context, _ string, e domain.GameEvent) (domain.GameEvent, error) {
	s.logCalls++
	if s.logErr != nil {
		return domain.GameEvent{}, s.logErr
	}
	return e, nil
}

func (s *stubEventStore) RecentEvents(_ context.Context, _ string, _ int) ([]domain.GameEvent, error) {
	if s.recentErr != nil {
		return nil, s.recentErr
	}
	return s.recentResult, nil
}

func (s *stubEventStore) SearchEvents(_ context.Context, _ string, _ toolmemory.EventSearchOpts) ([]domain.GameEvent, error) {
	if s.searchErr != nil {
		return nil, s.searchErr
	}
	return s.searchResult, nil
}

func TestMemoryGuard_LogEvent(t *testing.T) {
	t.Run("successful write", func(t *testing.T) {
		store := &stubEventStore{}
		mg := NewMemoryGuard(store)

		_, err := mg.LogEvent(context.Background(), "g1", domain.GameEvent{SearchText: "hello"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if mg.IsDegraded() {
			t.Error("should not be degraded after successful write")
		}
		if store.logCalls != 1 {
			t.Errorf("expected 1 LogEvent call, got %d", store.logCalls)
		}
	})

	t.Run("write failure is swallowed", func(t *testing.T) {
		store := &stubEventStore{logErr: errors.New("disk full")}
		mg := NewMemoryGuard(store)

		_, err := mg.LogEvent(context.Background(), "g1", domain.GameEvent{SearchText: "hello"})
		if err != nil {
			t.Fatalf("expected nil error (swallowed), got %v", err)
		}
		if !mg.IsDegraded() {
			t.Error("should be degraded after failed write")
		}
	})

	t.Run("recovers from degraded after successful write", func(t *testing.T) {
		store := &stubEventStore{logErr: errors.New("temporary failure")}
		mg := NewMemoryGuard(store)

		_, _ = mg.LogEvent(context.Background(), "g1", domain.GameEvent{SearchText: "a"})
		if !mg.IsDegraded() {
			t.Error("should be degraded")
		}

		store.logErr = nil

		_, _ = mg.LogEvent(context.Background(), "g1", domain.GameEvent{SearchText: "b"})
		if mg.IsDegraded() {
			t.Error("should have recovered from degraded state")
		}
	})
}

func TestMemoryGuard_RecentEvents(t *testing.T) {
	t.Run("successful read", func(t *testing.T) {
		store := &stubEventStore{recentResult: []domain.GameEvent{{SearchText: "hello"}, {SearchText: "world"}}}
		mg := NewMemoryGuard(store)

		got, err := mg.RecentEvents(context.Background(), "g1", 5)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(got) != 2 {
			t.Errorf("expected 2 entries, got %d", len(got))
		}
		if mg.IsDegraded() {
			t.Error("should not be degraded")
		}
	})

	t.Run("read failure returns empty slice", func(t *testing.T) {
		store := &stubEventStore{recentErr: errors.New("connection refused")}
		mg := NewMemoryGuard(store)

		got, err := mg.RecentEvents(context.Background(), "g1", 5)
		if err != nil {
			t.Fatalf("expected nil error, got %v", err)
		}
		if len(got) != 0 {
			t.Errorf("expected empty slice, got %d entries", len(got))
		}
		if !mg.IsDegraded() {
			t.Error("should be degraded after failed read")
		}
	})
}

func TestMemoryGuard_SearchEvents(t *testing.T) {
	t.Run("successful search", func(t *testing.T) {
		store := &stubEventStore{searchResult: []domain.GameEvent{{SearchText: "found it"}}}
		mg := NewMemoryGuard(store)

		got, err := mg.SearchEvents(context.Background(), "g1", toolmemory.EventSearchOpts{Query: "goblin"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(got) != 1 {
			t.Errorf("expected 1 result, got %d", len(got))
		}
	})

	t.Run("search failure returns empty slice", func(t *testing.T) {
		store := &stubEventStore{searchErr: errors.New("index corrupted")}
		mg := NewMemoryGuard(store)

		got, err := mg.SearchEvents(context.Background(), "g1", toolmemory.EventSearchOpts{Query: "dragon"})
		if err != nil {
			t.Fatalf("expected nil error, got %v", err)
		}
		if len(got) != 0 {
			t.Errorf("expected empty slice, got %d results", len(got))
		}
		if !mg.IsDegraded() {
			t.Error("should be degraded after failed search")
		}
	})
}

func TestMemoryGuard_IsDegraded(t *testing.T) {
	t.Run("initially not degraded", func(t *testing.T) {
		mg := NewMemoryGuard(&stubEventStore{})
		if mg.IsDegraded() {
			t.Error("should not be degraded initially")
		}
	})

	t.Run("mixed operations track degraded state", func(t *testing.T) {
		store := &stubEventStore{}
		mg := NewMemoryGuard(store)

		_, _ = mg.LogEvent(context.Background(), "g1", domain.GameEvent{})
		if mg.IsDegraded() {
			t.Error("should not be degraded after success")
		}

		store.searchErr = errors.New("oops")
		_, _ = mg.SearchEvents(context.Background(), "g1", toolmemory.EventSearchOpts{})
		if !mg.IsDegraded() {
			t.Error("should be degraded after failed search")
		}

		store.searchErr = nil
		_, _ = mg.LogEvent(context.Background(), "g1", domain.GameEvent{})
		if mg.IsDegraded() {
			t.Error("should have recovered after successful write")
		}
	})
}

func TestMemoryGuard_ImplementsEventStore(t *testing.T) {
	var _ EventStore = NewMemoryGuard(&stubEventStore{})
}
