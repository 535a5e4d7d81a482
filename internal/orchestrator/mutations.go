package orchestrator

import (
	"fmt"
	"log/slog"

	"github.com/narrativeforge/engine/internal/domain"
	"github.com/narrativeforge/engine/internal/mcp/tools"
)

// applyStateMutations processes a state-write tool's proposed mutations one
// at a time, deciding per [tools.StateMutation.Kind] what to do with each.
// The only recognised kind, "loot_drop", produces an ITEM_GAINED event and
// leaves the state unchanged, so the returned state always equals s.
// Unrecognised kinds are logged and dropped rather than applied blindly.
func (o *Orchestrator) applyStateMutations(s domain.GameState, muts []tools.StateMutation) (domain.GameState, []domain.GameEvent) {
	next := s
	var events []domain.GameEvent
	for _, m := range muts {
		switch m.Kind {
		case "loot_drop":
			result, _ := m.Fields["result"].(string)
			table, _ := m.Fields["table"].(string)
			events = append(events, domain.GameEvent{
				Type:       domain.EventItemGained,
				Category:   domain.CategoryCombat,
				Importance: domain.ImportanceNormal,
				SearchText: fmt.Sprintf("rolled on %s: %s", table, result),
			})
		default:
			slog.Warn("orchestrator: dropped unrecognised state mutation", "kind", m.Kind, "target", m.TargetID)
		}
	}
	return next, events
}
