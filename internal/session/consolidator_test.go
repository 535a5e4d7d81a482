package session

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/narrativeforge/engine/internal/domain"
	toolmemory "github.com/narrativeforge/engine/internal/mcp/tools/memory"
	"github.com/narrativeforge/engine/pkg/types"
)

// fakeEventStore is a minimal in-memory [EventStore] double for tests.
type fakeEventStore struct {
	mu     sync.Mutex
	events []domain.GameEvent
}

func (f *fakeEventStore) LogEvent(_ context.Context, gameID string, e domain.GameEvent) (domain.GameEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e.GameID = gameID
	f.events = append(f.events, e)
	return e, nil
}

func (f *fakeEventStore) RecentEvents(_ context.Context, _ string, _ int) ([]domain.GameEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.GameEvent(nil), f.events...), nil
}

func (f *fakeEventStore) SearchEvents(_ context.Context, _ string, _ toolmemory.EventSearchOpts) ([]domain.GameEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.GameEvent(nil), f.events...), nil
}

func (f *fakeEventStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events)
}

func (f *fakeEventStore) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = nil
}

func (f *fakeEventStore) logged() []domain.GameEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.GameEvent(nil), f.events...)
}

func TestConsolidator_ConsolidateNow(t *testing.T) {
	t.Run("writes new messages to store", func(t *testing.T) {
		store := &fakeEventStore{}
		s := &mockSummariser{result: "summary"}
		cm := NewContextManager(ContextManagerConfig{
			MaxTokens:  100000,
			Summariser: s,
		})

		_ = cm.AddMessages(context.Background(),
			types.Message{Role: "user", Name: "Player1", Content: "I attack the goblin!"},
			types.Message{Role: "assistant", Name: "Grek", Content: "The goblin dodges!"},
		)

		c := NewConsolidator(ConsolidatorConfig{
			Store:      store,
			ContextMgr: cm,
			GameID:     "game-1",
		})

		err := c.ConsolidateNow(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if got := store.count(); got != 2 {
			t.Errorf("expected 2 logged events, got %d", got)
		}
	})

	t.Run("does not re-write already consolidated messages", func(t *testing.T) {
		store := &fakeEventStore{}
		s := &mockSummariser{result: "summary"}
		cm := NewContextManager(ContextManagerConfig{
			MaxTokens:  100000,
			Summariser: s,
		})

		_ = cm.AddMessages(context.Background(),
			types.Message{Role: "user", Content: "First message"},
		)

		c := NewConsolidator(ConsolidatorConfig{
			Store:      store,
			ContextMgr: cm,
			GameID:     "game-1",
		})

		_ = c.ConsolidateNow(context.Background())
		firstCount := store.count()

		// Consolidate again without new messages — should not write.
		store.reset()
		_ = c.ConsolidateNow(context.Background())
		secondCount := store.count()

		if secondCount != 0 {
			t.Errorf("expected 0 writes on second consolidation, got %d (first had %d)", secondCount, firstCount)
		}
	})

	t.Run("writes only new messages on subsequent consolidation", func(t *testing.T) {
		store := &fakeEventStore{}
		s := &mockSummariser{result: "summary"}
		cm := NewContextManager(ContextManagerConfig{
			MaxTokens:  100000,
			Summariser: s,
		})

		_ = cm.AddMessages(context.Background(),
			types.Message{Role: "user", Content: "First"},
		)

		c := NewConsolidator(ConsolidatorConfig{
			Store:      store,
			ContextMgr: cm,
			GameID:     "game-1",
		})

		_ = c.ConsolidateNow(context.Background())
		store.reset()

		_ = cm.AddMessages(context.Background(),
			types.Message{Role: "user", Content: "Second"},
			types.Message{Role: "assistant", Content: "Reply"},
		)

		_ = c.ConsolidateNow(context.Background())
		if got := store.count(); got != 2 {
			t.Errorf("expected 2 writes for new messages, got %d", got)
		}
	})

	t.Run("skips summary messages", func(t *testing.T) {
		store := &fakeEventStore{}
		s := &mockSummariser{result: "condensed history"}
		cm := NewContextManager(ContextManagerConfig{
			MaxTokens:      40,
			ThresholdRatio: 0.5,
			Summariser:     s,
		})

		// Force summarisation by exceeding threshold.
		_ = cm.AddMessages(context.Background(),
			types.Message{Role: "user", Content: strings.Repeat("a", 80)},
			types.Message{Role: "assistant", Content: strings.Repeat("b", 80)},
		)

		c := NewConsolidator(ConsolidatorConfig{
			Store:      store,
			ContextMgr: cm,
			GameID:     "game-1",
		})

		_ = c.ConsolidateNow(context.Background())

		// Verify that summary messages (starting with '[') are skipped.
		for _, e := range store.logged() {
			if len(e.SearchText) > 0 && e.SearchText[0] == '[' {
				t.Errorf("summary message should not be written to store, got: %s", e.SearchText)
			}
		}
	})
}

func TestConsolidator_DefaultInterval(t *testing.T) {
	c := NewConsolidator(ConsolidatorConfig{
		Store:      &fakeEventStore{},
		ContextMgr: NewContextManager(ContextManagerConfig{MaxTokens: 1000, Summariser: &mockSummariser{}}),
		GameID:     "g1",
	})
	if c.interval != 30*time.Minute {
		t.Errorf("expected default interval of 30m, got %v", c.interval)
	}
}

func TestConsolidator_StartStop(t *testing.T) {
	store := &fakeEventStore{}
	s := &mockSummariser{result: "summary"}
	cm := NewContextManager(ContextManagerConfig{
		MaxTokens:  100000,
		Summariser: s,
	})

	c := NewConsolidator(ConsolidatorConfig{
		Store:      store,
		ContextMgr: cm,
		GameID:     "game-1",
		Interval:   10 * time.Millisecond, // very short for testing
	})

	_ = cm.AddMessages(context.Background(),
		types.Message{Role: "user", Content: "Hello"},
	)

	ctx := t.Context()

	c.Start(ctx)

	// Wait long enough for at least one tick.
	time.Sleep(50 * time.Millisecond)

	c.Stop()

	// Should have written at least once.
	if store.count() == 0 {
		t.Error("expected at least one periodic consolidation")
	}

	// Calling Stop again should not panic.
	c.Stop()
}
