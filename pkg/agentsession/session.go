// Package agentsession defines the Session interface and its supporting
// types: the text-turn conversational contract every narrative agent
// (intent analyzer, narrator, NPC voice, perspective planner) is built on.
//
// A Session owns one running conversation against an [llm.Provider]: a
// system prompt, an append-only message history, and the current tool set.
// Start opens a session; Send drives one turn, streaming the model's reply
// and surfacing any tool calls it requested.
//
// This package generalises a text-turn session contract (system prompt +
// hot context + streaming response + out-of-band context injection) from a
// speech pipeline to a plain text one: Session.Send plays the role
// VoiceEngine.Process played, minus the STT/TTS legs.
//
// Implementations must be safe for concurrent use, though callers should
// avoid issuing concurrent Send calls against the same Session.
package agentsession

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/narrativeforge/engine/internal/session"
	"github.com/narrativeforge/engine/pkg/llm"
	"github.com/narrativeforge/engine/pkg/types"
)

// ContextUpdate carries a mid-session context refresh pushed via
// [Session.InjectContext]. Fields are merged into the session's running
// state; zero values are ignored.
type ContextUpdate struct {
	// HotContext replaces the short, dynamically generated string injected
	// just before the next user message — current location, active quest,
	// visible NPCs. Kept short to control prompt size.
	HotContext string

	// PreFetchResults holds tool results the orchestrator resolved
	// speculatively before the turn started, passed as context so the model
	// can reference them without re-issuing the same tool call.
	PreFetchResults []string

	// AppendHistory are prior turns to append to the running conversation
	// before the next Send call — e.g. recalled event-log entries the
	// orchestrator wants the model to treat as already-known history.
	AppendHistory []types.Message
}

// Response is the result of a single [Session.Send] call.
type Response struct {
	// Text is the model's full reply once streaming completes. It is set
	// once, when the stream ends; read it only after draining Chunks.
	Text string

	// Chunks streams incremental text as the model produces it. Closed when
	// generation finishes or a mid-stream error occurs. Callers must drain
	// the channel even if they only want the final Text.
	Chunks <-chan llm.Chunk

	// ToolCalls lists any tool invocations the model requested during this
	// turn. The caller is responsible for executing them and feeding results
	// back via a follow-up Send call with a "tool"-role message.
	ToolCalls []types.ToolCall

	streamErr atomic.Pointer[error]
}

// Err returns the error that caused Chunks to close prematurely, or nil if
// the stream completed successfully. Check after Chunks closes.
func (r *Response) Err() error {
	if p := r.streamErr.Load(); p != nil {
		return *p
	}
	return nil
}

// SetStreamErr records a mid-stream error before Chunks closes, so callers
// can distinguish a clean completion from a failure.
func (r *Response) SetStreamErr(err error) {
	r.streamErr.Store(&err)
}

// Session is one running text conversation against an LLM backend.
type Session struct {
	provider llm.Provider

	mu           sync.Mutex
	systemPrompt string
	hotContext   string
	preFetch     []string
	history      []types.Message
	tools        []types.ToolDefinition
	temperature  float64
	maxTokens    int

	// contextMgr, when set, owns history instead of the plain history slice:
	// it compacts older turns into a running summary once the estimated
	// token count crosses its threshold, so a long-running game's session
	// never grows its prompt without bound.
	contextMgr *session.ContextManager
}

// Option configures a [Session] at [Start] time.
type Option func(*Session)

// WithTools sets the initial tool set offered to the model.
func WithTools(tools []types.ToolDefinition) Option {
	return func(s *Session) { s.tools = tools }
}

// WithTemperature overrides the default (0.7) sampling temperature.
func WithTemperature(t float64) Option {
	return func(s *Session) { s.temperature = t }
}

// WithMaxTokens overrides the default (0, provider-chosen) completion token cap.
func WithMaxTokens(n int) Option {
	return func(s *Session) { s.maxTokens = n }
}

// WithContextManager hands history management off to cm: once the
// conversation's estimated token count crosses cm's threshold, the oldest
// turns are summarised and replaced rather than kept verbatim. Use this for
// long-running sessions (e.g. a narrator that stays open for a whole game)
// where an unbounded history would eventually exceed the provider's context
// window.
func WithContextManager(cm *session.ContextManager) Option {
	return func(s *Session) { s.contextMgr = cm }
}

// Start opens a new Session against provider with systemPrompt as the
// conversation's system instruction. The returned Session has empty history;
// callers drive the conversation via repeated [Session.Send] calls.
func Start(provider llm.Provider, systemPrompt string, opts ...Option) *Session {
	s := &Session{
		provider:     provider,
		systemPrompt: systemPrompt,
		temperature:  0.7,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// InjectContext merges update into the session's running state. The update
// takes effect on the next [Session.Send] call. Non-blocking: InjectContext
// only touches in-memory state guarded by the session's own mutex.
func (s *Session) InjectContext(update ContextUpdate) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if update.HotContext != "" {
		s.hotContext = update.HotContext
	}
	if update.PreFetchResults != nil {
		s.preFetch = update.PreFetchResults
	}
	s.recordHistory(context.Background(), update.AppendHistory...)
}

// SetTools replaces the tool set offered to the model on the next Send call.
func (s *Session) SetTools(tools []types.ToolDefinition) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tools = tools
}

// Send appends userMessage to the conversation and streams the model's
// reply. The call blocks until the stream is established; Response.Chunks
// then delivers text incrementally.
//
// An error is returned only if the request could not be started (e.g.
// provider unreachable). Mid-stream failures surface via Response.Err after
// Chunks closes.
func (s *Session) Send(ctx context.Context, userMessage string) (*Response, error) {
	s.mu.Lock()
	messages := s.buildMessages(userMessage)
	req := llm.CompletionRequest{
		Messages:     messages,
		Tools:        append([]types.ToolDefinition(nil), s.tools...),
		Temperature:  s.temperature,
		MaxTokens:    s.maxTokens,
		SystemPrompt: s.systemPrompt,
	}
	s.recordHistory(ctx, types.Message{Role: "user", Content: userMessage})
	s.mu.Unlock()

	upstream, err := s.provider.StreamCompletion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("agentsession: send: %w", err)
	}

	resp := &Response{}
	out := make(chan llm.Chunk)
	resp.Chunks = out

	go func() {
		defer close(out)
		var (
			text      string
			toolCalls []types.ToolCall
		)
		for chunk := range upstream {
			text += chunk.Text
			if len(chunk.ToolCalls) > 0 {
				toolCalls = append(toolCalls, chunk.ToolCalls...)
			}
			select {
			case out <- chunk:
			case <-ctx.Done():
				resp.SetStreamErr(ctx.Err())
				return
			}
		}
		resp.Text = text
		resp.ToolCalls = toolCalls

		s.mu.Lock()
		s.recordHistory(ctx, types.Message{Role: "assistant", Content: text, ToolCalls: toolCalls})
		s.mu.Unlock()
	}()

	return resp, nil
}

// RecordToolResult appends a tool-role message to the session history so the
// model sees the result on its next Send call, continuing a tool-call turn.
func (s *Session) RecordToolResult(toolCallID, result string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recordHistory(context.Background(), types.Message{Role: "tool", ToolCallID: toolCallID, Content: result})
}

// History returns a copy of the session's conversation history so far,
// including any summary messages a context manager has folded in.
func (s *Session) History() []types.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]types.Message(nil), s.historyMessages()...)
}

// recordHistory appends msgs to the session's history, routing through
// contextMgr when set so long conversations stay within its token budget.
// Must be called with s.mu held. ContextManager.AddMessages records msgs
// before it attempts any summarisation, so a summarisation failure here
// only means the history stays uncompacted for now, not that msgs were lost.
func (s *Session) recordHistory(ctx context.Context, msgs ...types.Message) {
	if s.contextMgr != nil {
		_ = s.contextMgr.AddMessages(ctx, msgs...)
		return
	}
	s.history = append(s.history, msgs...)
}

// historyMessages returns the messages to build the next prompt from. Must
// be called with s.mu held.
func (s *Session) historyMessages() []types.Message {
	if s.contextMgr != nil {
		return s.contextMgr.Messages()
	}
	return s.history
}

// buildMessages assembles the message list for one Send call: prior
// history, a synthetic system message carrying HotContext/PreFetchResults
// when set (kept separate from req.SystemPrompt so providers that treat
// SystemPrompt specially still see the hot context close to the user turn),
// then userMessage itself. Must be called with s.mu held.
func (s *Session) buildMessages(userMessage string) []types.Message {
	msgs := append([]types.Message(nil), s.historyMessages()...)
	if s.hotContext != "" || len(s.preFetch) > 0 {
		content := s.hotContext
		for _, r := range s.preFetch {
			content += "\n" + r
		}
		msgs = append(msgs, types.Message{Role: "system", Content: content})
	}
	msgs = append(msgs, types.Message{Role: "user", Content: userMessage})
	return msgs
}
