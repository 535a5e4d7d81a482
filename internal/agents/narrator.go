package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/narrativeforge/engine/internal/domain"
	"github.com/narrativeforge/engine/internal/session"
	"github.com/narrativeforge/engine/pkg/agentsession"
	"github.com/narrativeforge/engine/pkg/llm"
)

// narratorContextWindow bounds the narrator session's history before it
// starts folding older turns into a running summary. The narrator session
// stays open for the engine's whole run, across every game and every turn,
// so without this it would eventually grow past any provider's context
// window.
const narratorContextWindow = 8000

// narratorPrompt is the Narrator's fixed system directive.
const narratorPrompt = `You are the narrator of a tabletop-style RPG. Given the current state
summary, the player's input, its classified intent, any tool results, upcoming plot beats,
foreshadowing hints, and recent events, write the next beat of the story in second person,
present tense. Be vivid but concise. Never break character or mention game mechanics by name.`

// NarrationRequest carries everything the Narrator needs to produce the
// next beat of a turn.
type NarrationRequest struct {
	StateSummary    string
	PlayerInput     string
	Intent          Intent
	ToolResults     []string
	UpcomingBeats   []domain.Beat
	Foreshadowing   []string
	RecentEvents    []domain.GameEvent
}

// Narrator streams the next narrative beat for a turn.
type Narrator struct {
	session *agentsession.Session
}

// NewNarrator starts a dedicated session against provider for narration.
func NewNarrator(provider llm.Provider) *Narrator {
	cm := session.NewContextManager(session.ContextManagerConfig{
		MaxTokens:  narratorContextWindow,
		Summariser: session.NewLLMSummariser(provider),
	})
	return &Narrator{session: agentsession.Start(provider, narratorPrompt,
		agentsession.WithTemperature(0.9),
		agentsession.WithContextManager(cm),
	)}
}

// Narrate streams the narrator's reply for req. The caller must drain
// Response.Chunks; Response.Text holds the full text once the stream
// closes.
func (n *Narrator) Narrate(ctx context.Context, req NarrationRequest) (*agentsession.Response, error) {
	n.session.InjectContext(agentsession.ContextUpdate{
		HotContext:      buildHotContext(req),
		PreFetchResults: req.ToolResults,
	})
	return n.session.Send(ctx, req.PlayerInput)
}

// buildHotContext renders everything but the raw player input into a
// compact prompt block injected ahead of the next Send call.
func buildHotContext(req NarrationRequest) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "State: %s\nIntent: %s\n", req.StateSummary, req.Intent)

	if len(req.UpcomingBeats) > 0 {
		sb.WriteString("Upcoming beats:\n")
		for _, b := range req.UpcomingBeats {
			fmt.Fprintf(&sb, "- %s: %s\n", b.Title, b.Description)
		}
	}
	if len(req.Foreshadowing) > 0 {
		sb.WriteString("Foreshadowing hints:\n")
		for _, f := range req.Foreshadowing {
			fmt.Fprintf(&sb, "- %s\n", f)
		}
	}
	if len(req.RecentEvents) > 0 {
		sb.WriteString(recentEventsSummary(req.RecentEvents))
	}
	return sb.String()
}
