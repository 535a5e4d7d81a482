// Package agents implements the LLM-backed specialised agents that sit on
// top of [agentsession.Session]: intent classification, narration, the
// NPC/location/quest generators, the four planning perspectives, and the
// system definer. Every agent here is a thin, typed wrapper around a
// Session — conversation management, streaming, and tool-call surfacing
// are the Session's job, not this package's.
package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/narrativeforge/engine/internal/domain"
	"github.com/narrativeforge/engine/pkg/agentsession"
	"github.com/narrativeforge/engine/pkg/llm"
)

// Intent is the fixed set of player-input classifications the orchestrator
// dispatches on.
type Intent string

const (
	IntentCombat         Intent = "COMBAT"
	IntentNPCDialogue    Intent = "NPC_DIALOGUE"
	IntentSystemQuery    Intent = "SYSTEM_QUERY"
	IntentQuestAction    Intent = "QUEST_ACTION"
	IntentClassSelection Intent = "CLASS_SELECTION"
	IntentSkillMenu      Intent = "SKILL_MENU"
	IntentUseSkill       Intent = "USE_SKILL"
	IntentSkillEvolution Intent = "SKILL_EVOLUTION"
	IntentSkillFusion    Intent = "SKILL_FUSION"
	IntentStatusMenu     Intent = "STATUS_MENU"
	IntentInventoryMenu  Intent = "INVENTORY_MENU"
	IntentExploration    Intent = "EXPLORATION"
)

// heuristicVerbs maps surface-form substrings to their intent, used as a
// deterministic fallback when the LLM classification fails or returns an
// unrecognised label. Checked in order; first match wins.
var heuristicVerbs = []struct {
	substr string
	intent Intent
}{
	{"attack", IntentCombat},
	{"fight", IntentCombat},
	{"cast", IntentUseSkill},
	{"use skill", IntentUseSkill},
	{"talk to", IntentNPCDialogue},
	{"ask", IntentNPCDialogue},
	{"quest", IntentQuestAction},
	{"inventory", IntentInventoryMenu},
	{"status", IntentStatusMenu},
	{"stats", IntentStatusMenu},
	{"skills", IntentSkillMenu},
	{"evolve", IntentSkillEvolution},
	{"fuse", IntentSkillFusion},
	{"class", IntentClassSelection},
	{"who am i", IntentSystemQuery},
	{"where am i", IntentSystemQuery},
}

// ClassifiedIntent is the result of [IntentAnalyzer.Classify].
type ClassifiedIntent struct {
	Intent Intent
	Target string
}

// intentAnalyzerPrompt instructs the model to emit a single JSON object
// classifying the player's input.
const intentAnalyzerPrompt = `You classify a tabletop RPG player's input into exactly one intent.
Valid intents: COMBAT, NPC_DIALOGUE, SYSTEM_QUERY, QUEST_ACTION, CLASS_SELECTION, SKILL_MENU,
USE_SKILL, SKILL_EVOLUTION, SKILL_FUSION, STATUS_MENU, INVENTORY_MENU, EXPLORATION.
Reply with a single JSON object: {"intent": "<INTENT>", "target": "<optional target name or empty>"}.
If uncertain, use EXPLORATION.`

// IntentAnalyzer classifies free-text player input into a fixed [Intent],
// with an optional target, falling back to verb-matching heuristics when
// the LLM is unavailable or returns an unparsable response.
type IntentAnalyzer struct {
	session *agentsession.Session
}

// NewIntentAnalyzer starts a dedicated session against provider for intent
// classification.
func NewIntentAnalyzer(provider llm.Provider) *IntentAnalyzer {
	return &IntentAnalyzer{
		session: agentsession.Start(provider, intentAnalyzerPrompt, agentsession.WithTemperature(0)),
	}
}

// classifyResponse is the JSON shape the model is asked to return.
type classifyResponse struct {
	Intent string `json:"intent"`
	Target string `json:"target"`
}

// Classify determines the intent of input given the recent event log for
// context. On any LLM failure, or if the model's response does not parse
// into a recognised intent, Classify falls back to a deterministic
// verb-matching heuristic so the turn pipeline never stalls on a
// classification failure.
func (a *IntentAnalyzer) Classify(ctx context.Context, input string, recent []domain.GameEvent) ClassifiedIntent {
	a.session.InjectContext(agentsession.ContextUpdate{HotContext: recentEventsSummary(recent)})

	resp, err := a.session.Send(ctx, input)
	if err != nil {
		return heuristicClassify(input)
	}
	for range resp.Chunks {
		// drain; IntentAnalyzer only needs the final text.
	}
	if err := resp.Err(); err != nil {
		return heuristicClassify(input)
	}

	parsed, ok := parseClassification(resp.Text)
	if !ok {
		return heuristicClassify(input)
	}
	return parsed
}

// parseClassification tolerantly extracts a JSON object embedded anywhere
// in text and decodes it into a [ClassifiedIntent].
func parseClassification(text string) (ClassifiedIntent, bool) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end == -1 || end < start {
		return ClassifiedIntent{}, false
	}
	var cr classifyResponse
	if err := json.Unmarshal([]byte(text[start:end+1]), &cr); err != nil {
		return ClassifiedIntent{}, false
	}
	intent := Intent(strings.ToUpper(strings.TrimSpace(cr.Intent)))
	if !validIntent(intent) {
		return ClassifiedIntent{}, false
	}
	return ClassifiedIntent{Intent: intent, Target: cr.Target}, true
}

func validIntent(i Intent) bool {
	switch i {
	case IntentCombat, IntentNPCDialogue, IntentSystemQuery, IntentQuestAction,
		IntentClassSelection, IntentSkillMenu, IntentUseSkill, IntentSkillEvolution,
		IntentSkillFusion, IntentStatusMenu, IntentInventoryMenu, IntentExploration:
		return true
	}
	return false
}

// heuristicClassify applies [heuristicVerbs] to input, defaulting to
// EXPLORATION when nothing matches.
func heuristicClassify(input string) ClassifiedIntent {
	lower := strings.ToLower(input)
	for _, v := range heuristicVerbs {
		if strings.Contains(lower, v.substr) {
			return ClassifiedIntent{Intent: v.intent}
		}
	}
	return ClassifiedIntent{Intent: IntentExploration}
}

// recentEventsSummary renders recent events into a short hot-context string
// for the intent analyzer's prompt.
func recentEventsSummary(events []domain.GameEvent) string {
	if len(events) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("Recent events:\n")
	for _, e := range events {
		fmt.Fprintf(&sb, "- [%s] %s\n", e.Type, e.SearchText)
	}
	return sb.String()
}
