package session

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/narrativeforge/engine/internal/domain"
)

// defaultConsolidationInterval is the default period between consolidation
// ticks.
const defaultConsolidationInterval = 30 * time.Minute

// Consolidator periodically flushes hot conversation context to a game's
// durable event log. This ensures that long-running games persist their
// dialogue and narration history even if the process crashes or the
// in-memory context window is pruned.
//
// All methods are safe for concurrent use.
type Consolidator struct {
	store      EventStore
	contextMgr *ContextManager
	interval   time.Duration
	gameID     string

	mu sync.Mutex
	// lastIndex tracks how many messages have already been consolidated
	// to avoid writing duplicates.
	lastIndex int
	done      chan struct{}
	stopOnce  sync.Once
}

// ConsolidatorConfig configures a [Consolidator].
type ConsolidatorConfig struct {
	// Store is the event log to write entries to.
	Store EventStore

	// ContextMgr is the context manager whose messages are consolidated.
	ContextMgr *ContextManager

	// GameID identifies the game whose event log is being written.
	GameID string

	// Interval is how often to consolidate. Defaults to 30 minutes if zero.
	Interval time.Duration
}

// NewConsolidator creates a new [Consolidator] with the given configuration.
func NewConsolidator(cfg ConsolidatorConfig) *Consolidator {
	interval := cfg.Interval
	if interval <= 0 {
		interval = defaultConsolidationInterval
	}
	return &Consolidator{
		store:      cfg.Store,
		contextMgr: cfg.ContextMgr,
		interval:   interval,
		gameID:     cfg.GameID,
		done:       make(chan struct{}),
	}
}

// Start begins periodic consolidation in a background goroutine.
// The goroutine runs until [Consolidator.Stop] is called or ctx is cancelled.
func (c *Consolidator) Start(ctx context.Context) {
	go c.loop(ctx)
}

// Stop halts the consolidation loop. Safe to call multiple times.
func (c *Consolidator) Stop() {
	c.stopOnce.Do(func() {
		close(c.done)
	})
}

// ConsolidateNow performs an immediate consolidation, writing any new
// messages from the context manager to the event log.
func (c *Consolidator) ConsolidateNow(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.consolidate(ctx)
}

// loop runs the periodic consolidation ticker.
func (c *Consolidator) loop(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		case <-ticker.C:
			c.mu.Lock()
			if err := c.consolidate(ctx); err != nil {
				slog.Warn("periodic consolidation failed",
					"game_id", c.gameID,
					"error", err,
				)
			}
			c.mu.Unlock()
		}
	}
}

// consolidate writes new messages to the event log. Must be called with
// c.mu held.
func (c *Consolidator) consolidate(ctx context.Context) error {
	msgs := c.contextMgr.Messages()

	// Skip synthetic summary messages (prefixed with "[Previous conversation
	// summary]") and only write actual turn messages. We track by index into
	// the full message list to avoid duplicates.
	if c.lastIndex >= len(msgs) {
		return nil // nothing new
	}

	var writeErr error
	for i := c.lastIndex; i < len(msgs); i++ {
		m := msgs[i]
		if strings.HasPrefix(m.Content, "[Previous conversation summary]") {
			continue
		}

		event := domain.GameEvent{
			Type:       eventTypeForRole(m.Role),
			Category:   domain.CategoryDialogue,
			Importance: domain.ImportanceNormal,
			SearchText: m.Content,
			Timestamp:  time.Now().UnixNano(),
		}
		if m.Role == "assistant" {
			event.NPCID = m.Name
		}

		if _, err := c.store.LogEvent(ctx, c.gameID, event); err != nil {
			writeErr = fmt.Errorf("consolidate entry %d: %w", i, err)
			slog.Warn("failed to write consolidation entry",
				"game_id", c.gameID,
				"index", i,
				"error", err,
			)
			// Continue writing remaining entries; partial consolidation is
			// better than none.
		}
	}

	c.lastIndex = len(msgs)
	return writeErr
}

// eventTypeForRole maps a message role to the event type recorded in the
// event log.
func eventTypeForRole(role string) domain.EventType {
	if role == "assistant" {
		return domain.EventNPCDialogue
	}
	return domain.EventNarratorText
}
