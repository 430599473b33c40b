package chat_test

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/searchchat/chat-api/internal/domain/chat"
	"github.com/searchchat/chat-api/internal/domain/llm"
)

// fakeStream replays a fixed delta sequence and then EOF.
type fakeStream struct {
	deltas []llm.ChatCompletionDelta
	pos    int
	err    error
}

func (s *fakeStream) Recv() (*llm.ChatCompletionDelta, error) {
	if s.err != nil && s.pos >= len(s.deltas) {
		return nil, s.err
	}
	if s.pos >= len(s.deltas) {
		return nil, io.EOF
	}
	delta := s.deltas[s.pos]
	s.pos++
	return &delta, nil
}

func (s *fakeStream) Close() error { return nil }

// fakeProvider returns one scripted stream per request and records every
// request it received.
type fakeProvider struct {
	mu       sync.Mutex
	streams  []*fakeStream
	requests []llm.ChatCompletionRequest
	err      error
}

func (p *fakeProvider) CreateChatCompletionStream(_ context.Context, req llm.ChatCompletionRequest) (llm.Stream, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.requests = append(p.requests, req)
	if p.err != nil {
		return nil, p.err
	}
	if len(p.streams) == 0 {
		return &fakeStream{}, nil
	}
	stream := p.streams[0]
	p.streams = p.streams[1:]
	return stream, nil
}

// memStore is an in-memory chat.MessageStore.
type memStore struct {
	mu       sync.Mutex
	nextID   uint
	messages map[uint]*chat.Message

	appendErr error
}

func newMemStore() *memStore {
	return &memStore{messages: make(map[uint]*chat.Message)}
}

func (s *memStore) Append(_ context.Context, msg *chat.Message) (uint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.appendErr != nil {
		return 0, s.appendErr
	}
	s.nextID++
	msg.ID = s.nextID
	stored := *msg
	s.messages[s.nextID] = &stored
	return s.nextID, nil
}

func (s *memStore) UpdateResult(_ context.Context, recordID uint, result string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg, ok := s.messages[recordID]
	if !ok {
		return errors.New("record not found")
	}
	msg.ToolResult = result
	return nil
}

func (s *memStore) ListBySession(_ context.Context, sessionID uint) ([]chat.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []chat.Message
	for id := uint(1); id <= s.nextID; id++ {
		if msg, ok := s.messages[id]; ok && msg.SessionID == sessionID {
			out = append(out, *msg)
		}
	}
	return out, nil
}

// eventCollector records emitted events, safe for concurrent emitters.
type eventCollector struct {
	mu     sync.Mutex
	events []chat.Event
}

func (c *eventCollector) Emit(event chat.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
}

func (c *eventCollector) byType(eventType chat.EventType) []chat.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []chat.Event
	for _, event := range c.events {
		if event.Type == eventType {
			out = append(out, event)
		}
	}
	return out
}

func textDelta(content string) llm.ChatCompletionDelta {
	return llm.ChatCompletionDelta{
		Choices: []llm.ChatCompletionDeltaChoice{
			{Delta: llm.MessageDelta{Content: content}},
		},
	}
}

func toolCallDelta(index int, id, name, arguments string) llm.ChatCompletionDelta {
	return llm.ChatCompletionDelta{
		Choices: []llm.ChatCompletionDeltaChoice{
			{Delta: llm.MessageDelta{ToolCalls: []llm.ToolCallDelta{{
				Index: index,
				ID:    id,
				Function: llm.ToolFunctionDelta{
					Name:      name,
					Arguments: arguments,
				},
			}}}},
		},
	}
}

func finishDelta(reason string) llm.ChatCompletionDelta {
	return llm.ChatCompletionDelta{
		Choices: []llm.ChatCompletionDeltaChoice{{FinishReason: reason}},
	}
}

func newTestController(t *testing.T, provider *fakeProvider, registry *chat.Registry, maxRounds int) *chat.Controller {
	t.Helper()
	log := zerolog.Nop()
	invoker := chat.NewInvoker(registry, newMemStore(), 0, log)
	composer := chat.NewComposer(log)
	return chat.NewController(provider, registry, invoker, composer, maxRounds, log)
}

func echoRegistry(t *testing.T) *chat.Registry {
	t.Helper()
	registry := chat.NewRegistry()
	err := registry.Register(chat.Descriptor{
		Name:        "echo",
		Description: "echoes its query argument",
		InputSchema: map[string]any{"type": "object"},
		Execute: func(_ context.Context, args map[string]any) (string, error) {
			query, _ := args["query"].(string)
			return "echo: " + query, nil
		},
		Followup: &chat.FollowupPolicy{
			Enabled:              true,
			SystemPromptOverride: "Use the echoed value.",
		},
	})
	if err != nil {
		t.Fatalf("register echo tool: %v", err)
	}
	return registry
}

func TestControllerPlainCompletion(t *testing.T) {
	provider := &fakeProvider{streams: []*fakeStream{
		{deltas: []llm.ChatCompletionDelta{
			textDelta("Hello"),
			textDelta(" world"),
			finishDelta(llm.FinishReasonStop),
		}},
	}}
	controller := newTestController(t, provider, echoRegistry(t), 3)

	sink := &eventCollector{}
	outcome, err := controller.Run(context.Background(), chat.RunParams{
		Model:    "test-model",
		Messages: []llm.ChatMessage{{Role: "user", Content: "hi"}},
	}, sink)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if outcome.Text != "Hello world" {
		t.Errorf("outcome.Text = %q, want %q", outcome.Text, "Hello world")
	}
	if outcome.Rounds != 1 {
		t.Errorf("outcome.Rounds = %d, want 1", outcome.Rounds)
	}
	if len(provider.requests) != 1 {
		t.Fatalf("provider received %d requests, want 1", len(provider.requests))
	}

	chunks := sink.byType(chat.EventTextChunk)
	if len(chunks) != 2 || chunks[0].Content != "Hello" || chunks[1].Content != " world" {
		t.Errorf("text chunks = %+v, want Hello then world", chunks)
	}
}

func TestControllerAssemblesSplitToolCall(t *testing.T) {
	provider := &fakeProvider{streams: []*fakeStream{
		{deltas: []llm.ChatCompletionDelta{
			toolCallDelta(0, "call_1", "ec", ""),
			toolCallDelta(0, "", "ho", `{"que`),
			toolCallDelta(0, "", "", `ry":"x"}`),
			finishDelta(llm.FinishReasonToolCalls),
		}},
		{deltas: []llm.ChatCompletionDelta{
			textDelta("done"),
			finishDelta(llm.FinishReasonStop),
		}},
	}}
	controller := newTestController(t, provider, echoRegistry(t), 3)

	sink := &eventCollector{}
	outcome, err := controller.Run(context.Background(), chat.RunParams{
		Model:    "test-model",
		Messages: []llm.ChatMessage{{Role: "user", Content: "hi"}},
	}, sink)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if outcome.Rounds != 2 {
		t.Errorf("outcome.Rounds = %d, want 2", outcome.Rounds)
	}
	if len(outcome.Executions) != 1 {
		t.Fatalf("executions = %d, want 1", len(outcome.Executions))
	}
	exec := outcome.Executions[0]
	if exec.ToolName != "echo" || exec.CallID != "call_1" {
		t.Errorf("execution = %+v, want echo/call_1", exec)
	}
	if query, _ := exec.Args["query"].(string); query != "x" {
		t.Errorf("execution args query = %q, want %q", query, "x")
	}
	if exec.Result != "echo: x" {
		t.Errorf("execution result = %q, want %q", exec.Result, "echo: x")
	}

	calls := sink.byType(chat.EventToolCall)
	results := sink.byType(chat.EventToolResult)
	if len(calls) != 1 || len(results) != 1 {
		t.Fatalf("tool events = %d calls, %d results, want 1/1", len(calls), len(results))
	}
	if calls[0].ID != results[0].ID {
		t.Errorf("correlation IDs differ: call %q vs result %q", calls[0].ID, results[0].ID)
	}

	// Followup round carries the tool's system prompt override plus the
	// formatted result entry.
	followup := provider.requests[1].Messages
	if followup[0].Role != "system" || followup[0].Content != "Use the echoed value." {
		t.Errorf("followup system message = %+v", followup[0])
	}
	found := false
	for _, msg := range followup {
		if msg.Role == "assistant" && strings.Contains(msg.Content, "tool echo executed with result: echo: x") {
			found = true
		}
	}
	if !found {
		t.Errorf("followup messages missing tool result entry: %+v", followup)
	}
}

func TestControllerRoundBudget(t *testing.T) {
	toolRound := func() *fakeStream {
		return &fakeStream{deltas: []llm.ChatCompletionDelta{
			toolCallDelta(0, "", "echo", `{"query":"again"}`),
			finishDelta(llm.FinishReasonToolCalls),
		}}
	}
	provider := &fakeProvider{streams: []*fakeStream{
		toolRound(), toolRound(), toolRound(),
		{deltas: []llm.ChatCompletionDelta{
			textDelta("final answer"),
			finishDelta(llm.FinishReasonStop),
		}},
	}}
	controller := newTestController(t, provider, echoRegistry(t), 3)

	sink := &eventCollector{}
	outcome, err := controller.Run(context.Background(), chat.RunParams{
		Model:    "test-model",
		Messages: []llm.ChatMessage{{Role: "user", Content: "hi"}},
	}, sink)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(provider.requests) != 4 {
		t.Fatalf("provider received %d requests, want 4", len(provider.requests))
	}
	if outcome.Rounds != 4 {
		t.Errorf("outcome.Rounds = %d, want 4", outcome.Rounds)
	}
	if len(outcome.Executions) != 3 {
		t.Errorf("executions = %d, want 3", len(outcome.Executions))
	}

	// Rounds 1..3 offer tools; the exhausted round withholds them.
	for i := 0; i < 3; i++ {
		if len(provider.requests[i].Tools) == 0 {
			t.Errorf("request %d has no tools, want tool definitions", i+1)
		}
	}
	if len(provider.requests[3].Tools) != 0 {
		t.Errorf("request 4 offers tools, want none after budget exhaustion")
	}

	// The third request frames the last tool opportunity.
	last := provider.requests[2].Messages[len(provider.requests[2].Messages)-1]
	if last.Role != "system" || !strings.Contains(last.Content, "last opportunity") {
		t.Errorf("round 3 guidance = %+v, want last-opportunity framing", last)
	}

	// The exhausted request carries no trailing guidance.
	final := provider.requests[3].Messages[len(provider.requests[3].Messages)-1]
	if final.Role == "system" {
		t.Errorf("request 4 ends with system guidance %q, want none", final.Content)
	}
}

func TestControllerGuidanceCountsRemainingRounds(t *testing.T) {
	provider := &fakeProvider{streams: []*fakeStream{
		{deltas: []llm.ChatCompletionDelta{
			textDelta("ok"),
			finishDelta(llm.FinishReasonStop),
		}},
	}}
	controller := newTestController(t, provider, echoRegistry(t), 3)

	_, err := controller.Run(context.Background(), chat.RunParams{
		Model:    "test-model",
		Messages: []llm.ChatMessage{{Role: "user", Content: "hi"}},
	}, &eventCollector{})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	messages := provider.requests[0].Messages
	guidance := messages[len(messages)-1]
	if guidance.Role != "system" || !strings.Contains(guidance.Content, "2 tool round(s) remain") {
		t.Errorf("round 1 guidance = %+v, want 2 remaining rounds", guidance)
	}
}

func TestControllerAllToolsFailedEndsTurn(t *testing.T) {
	registry := chat.NewRegistry()
	err := registry.Register(chat.Descriptor{
		Name:        "broken",
		InputSchema: map[string]any{"type": "object"},
		Execute: func(context.Context, map[string]any) (string, error) {
			return "", errors.New("boom")
		},
	})
	if err != nil {
		t.Fatalf("register broken tool: %v", err)
	}

	provider := &fakeProvider{streams: []*fakeStream{
		{deltas: []llm.ChatCompletionDelta{
			textDelta("partial"),
			toolCallDelta(0, "call_1", "broken", `{}`),
			finishDelta(llm.FinishReasonToolCalls),
		}},
	}}
	controller := newTestController(t, provider, registry, 3)

	sink := &eventCollector{}
	outcome, err := controller.Run(context.Background(), chat.RunParams{
		Model:    "test-model",
		Messages: []llm.ChatMessage{{Role: "user", Content: "hi"}},
	}, sink)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(provider.requests) != 1 {
		t.Errorf("provider received %d requests, want 1 (no followup after total failure)", len(provider.requests))
	}
	if outcome.Text != "partial" {
		t.Errorf("outcome.Text = %q, want streamed text preserved", outcome.Text)
	}
	if len(sink.byType(chat.EventError)) == 0 {
		t.Error("expected an error event for the failed invocation")
	}
}

func TestControllerInvalidArgumentsSkipCall(t *testing.T) {
	provider := &fakeProvider{streams: []*fakeStream{
		{deltas: []llm.ChatCompletionDelta{
			toolCallDelta(0, "call_1", "echo", `{"query":"ok"}`),
			toolCallDelta(1, "call_2", "echo", `{"query": broken`),
			finishDelta(llm.FinishReasonToolCalls),
		}},
		{deltas: []llm.ChatCompletionDelta{
			textDelta("done"),
			finishDelta(llm.FinishReasonStop),
		}},
	}}
	controller := newTestController(t, provider, echoRegistry(t), 3)

	sink := &eventCollector{}
	outcome, err := controller.Run(context.Background(), chat.RunParams{
		Model:    "test-model",
		Messages: []llm.ChatMessage{{Role: "user", Content: "hi"}},
	}, sink)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(outcome.Executions) != 1 {
		t.Fatalf("executions = %d, want 1 (invalid-arg sibling skipped)", len(outcome.Executions))
	}
	if outcome.Executions[0].CallID != "call_1" {
		t.Errorf("executed call = %q, want call_1", outcome.Executions[0].CallID)
	}
	if len(sink.byType(chat.EventError)) != 1 {
		t.Errorf("error events = %d, want 1 for the malformed arguments", len(sink.byType(chat.EventError)))
	}
}

func TestControllerPartialFragmentsDropped(t *testing.T) {
	provider := &fakeProvider{streams: []*fakeStream{
		{deltas: []llm.ChatCompletionDelta{
			// Name only, no arguments: never eligible.
			toolCallDelta(0, "call_1", "echo", ""),
			finishDelta(llm.FinishReasonToolCalls),
		}},
	}}
	controller := newTestController(t, provider, echoRegistry(t), 3)

	sink := &eventCollector{}
	outcome, err := controller.Run(context.Background(), chat.RunParams{
		Model:    "test-model",
		Messages: []llm.ChatMessage{{Role: "user", Content: "hi"}},
	}, sink)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(outcome.Executions) != 0 {
		t.Errorf("executions = %d, want 0", len(outcome.Executions))
	}
	if len(provider.requests) != 1 {
		t.Errorf("provider received %d requests, want 1", len(provider.requests))
	}
	if len(sink.byType(chat.EventError)) != 0 {
		t.Errorf("partial fragment produced error events: %+v", sink.byType(chat.EventError))
	}
}

func TestControllerStreamFailureIsTerminal(t *testing.T) {
	provider := &fakeProvider{streams: []*fakeStream{
		{
			deltas: []llm.ChatCompletionDelta{textDelta("par")},
			err:    errors.New("connection reset"),
		},
	}}
	controller := newTestController(t, provider, echoRegistry(t), 3)

	sink := &eventCollector{}
	_, err := controller.Run(context.Background(), chat.RunParams{
		Model:    "test-model",
		Messages: []llm.ChatMessage{{Role: "user", Content: "hi"}},
	}, sink)
	if err == nil {
		t.Fatal("Run() error = nil, want stream failure")
	}

	if len(sink.byType(chat.EventError)) != 1 {
		t.Errorf("error events = %d, want 1", len(sink.byType(chat.EventError)))
	}
	// Text streamed before the failure was already delivered.
	chunks := sink.byType(chat.EventTextChunk)
	if len(chunks) != 1 || chunks[0].Content != "par" {
		t.Errorf("text chunks = %+v, want the pre-failure chunk", chunks)
	}
}
