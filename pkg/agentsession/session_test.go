package agentsession

import (
	"context"
	"testing"
	"time"

	"github.com/narrativeforge/engine/pkg/llm"
	"github.com/narrativeforge/engine/pkg/llm/mock"
	"github.com/narrativeforge/engine/pkg/types"
)

func drain(t *testing.T, resp *Response) string {
	t.Helper()
	var text string
	for c := range resp.Chunks {
		text += c.Text
	}
	return text
}

func TestSend_StreamsAndRecordsHistory(t *testing.T) {
	provider := &mock.Provider{
		StreamChunks: []llm.Chunk{
			{Text: "Hello"},
			{Text: ", traveler.", FinishReason: "stop"},
		},
	}
	s := Start(provider, "You are the narrator.")

	resp, err := s.Send(context.Background(), "I open the door.")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if got := drain(t, resp); got != "Hello, traveler." {
		t.Fatalf("Text = %q, want %q", got, "Hello, traveler.")
	}
	if err := resp.Err(); err != nil {
		t.Fatalf("Response.Err() = %v, want nil", err)
	}

	history := s.History()
	if len(history) != 2 {
		t.Fatalf("len(History()) = %d, want 2", len(history))
	}
	if history[0].Role != "user" || history[0].Content != "I open the door." {
		t.Fatalf("history[0] = %+v", history[0])
	}
	if history[1].Role != "assistant" || history[1].Content != "Hello, traveler." {
		t.Fatalf("history[1] = %+v", history[1])
	}

	if len(provider.StreamCalls) != 1 {
		t.Fatalf("len(StreamCalls) = %d, want 1", len(provider.StreamCalls))
	}
	req := provider.StreamCalls[0].Req
	if req.SystemPrompt != "You are the narrator." {
		t.Fatalf("SystemPrompt = %q", req.SystemPrompt)
	}
	if len(req.Messages) != 1 || req.Messages[0].Content != "I open the door." {
		t.Fatalf("Messages = %+v", req.Messages)
	}
}

func TestSend_PropagatesToolCalls(t *testing.T) {
	provider := &mock.Provider{
		StreamChunks: []llm.Chunk{
			{ToolCalls: []types.ToolCall{{ID: "1", Name: "combat.roll", Arguments: `{"expression":"1d20"}`}}, FinishReason: "tool_calls"},
		},
	}
	s := Start(provider, "sys")

	resp, err := s.Send(context.Background(), "I attack.")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	drain(t, resp)
	if len(resp.ToolCalls) != 1 || resp.ToolCalls[0].Name != "combat.roll" {
		t.Fatalf("ToolCalls = %+v", resp.ToolCalls)
	}
}

func TestSend_StreamErrSurfacesAfterClose(t *testing.T) {
	provider := &mock.Provider{StreamErr: errTestStream}
	s := Start(provider, "sys")

	_, err := s.Send(context.Background(), "hi")
	if err == nil {
		t.Fatal("expected error when provider fails to start stream")
	}
}

func TestInjectContext_MergesHotContextAndPreFetch(t *testing.T) {
	provider := &mock.Provider{StreamChunks: []llm.Chunk{{Text: "ok", FinishReason: "stop"}}}
	s := Start(provider, "sys")

	s.InjectContext(ContextUpdate{
		HotContext:      "You are standing in the tavern.",
		PreFetchResults: []string{"rules.lookup: grappling requires a contested check"},
	})

	resp, err := s.Send(context.Background(), "I look around.")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	drain(t, resp)

	req := provider.StreamCalls[0].Req
	if len(req.Messages) != 2 {
		t.Fatalf("len(Messages) = %d, want 2 (hot-context system + user)", len(req.Messages))
	}
	if req.Messages[0].Role != "system" {
		t.Fatalf("Messages[0].Role = %q, want system", req.Messages[0].Role)
	}
}

func TestRecordToolResult_AppendsToolMessage(t *testing.T) {
	provider := &mock.Provider{StreamChunks: []llm.Chunk{{Text: "done", FinishReason: "stop"}}}
	s := Start(provider, "sys")
	s.RecordToolResult("call-1", `{"total":14}`)

	history := s.History()
	if len(history) != 1 || history[0].Role != "tool" || history[0].ToolCallID != "call-1" {
		t.Fatalf("history = %+v", history)
	}
}

func TestWithTools_OffersToolsOnNextSend(t *testing.T) {
	provider := &mock.Provider{StreamChunks: []llm.Chunk{{Text: "ok", FinishReason: "stop"}}}
	tools := []types.ToolDefinition{{Name: "combat.roll"}}
	s := Start(provider, "sys", WithTools(tools))

	resp, err := s.Send(context.Background(), "attack")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	drain(t, resp)

	if len(provider.StreamCalls[0].Req.Tools) != 1 {
		t.Fatalf("Tools = %+v", provider.StreamCalls[0].Req.Tools)
	}
}

func TestSend_ContextCancelledMidStream(t *testing.T) {
	provider := &mock.Provider{StreamChunks: []llm.Chunk{{Text: "partial"}}}
	s := Start(provider, "sys")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	resp, err := s.Send(ctx, "hi")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	done := make(chan struct{})
	go func() {
		for range resp.Chunks {
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("drain did not return promptly after context cancellation")
	}
}

var errTestStream = &streamStartError{"provider unavailable"}

type streamStartError struct{ msg string }

func (e *streamStartError) Error() string { return e.msg }
