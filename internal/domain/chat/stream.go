package chat

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/searchchat/chat-api/internal/domain/llm"
)

// ToolCallFragment is an in-flight, partially assembled tool invocation. The
// wire protocol may split a call's name or arguments across several deltas;
// fragments are merged by index before a call is considered resolvable.
type ToolCallFragment struct {
	Index     int
	ID        string
	Name      string
	Arguments string
}

// Eligible reports whether the fragment accumulated enough data to execute.
func (f ToolCallFragment) Eligible() bool {
	return f.Name != "" && f.Arguments != ""
}

// roundOutcome is the normalized result of draining one model stream.
type roundOutcome struct {
	Text         string
	FinishReason string
	Calls        []ToolCallFragment
}

type fragmentSlot struct {
	id   string
	name strings.Builder
	args strings.Builder
}

// streamMux reassembles one round's incremental response: text deltas are
// forwarded to the sink as they arrive, tool-call deltas are merged into
// index-keyed slots.
type streamMux struct {
	text         strings.Builder
	finishReason string
	slots        map[int]*fragmentSlot
	slotOrder    []int
}

func newStreamMux() *streamMux {
	return &streamMux{slots: make(map[int]*fragmentSlot)}
}

// drain consumes the stream until EOF, emitting text_chunk events and merging
// tool-call fragments. Transport errors are returned to the caller; they are
// terminal for the conversation turn.
func (m *streamMux) drain(stream llm.Stream, sink Sink) (*roundOutcome, error) {
	defer stream.Close()

	for {
		delta, err := stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("model stream: %w", err)
		}
		m.apply(delta, sink)
	}

	return m.finish(sink), nil
}

func (m *streamMux) apply(delta *llm.ChatCompletionDelta, sink Sink) {
	if delta == nil {
		return
	}
	for _, choice := range delta.Choices {
		if choice.Delta.Content != "" {
			m.text.WriteString(choice.Delta.Content)
			sink.Emit(Event{Type: EventTextChunk, Content: choice.Delta.Content})
		}
		for _, call := range choice.Delta.ToolCalls {
			m.mergeFragment(call)
		}
		if choice.FinishReason != "" {
			m.finishReason = choice.FinishReason
		}
	}
}

func (m *streamMux) mergeFragment(call llm.ToolCallDelta) {
	slot, ok := m.slots[call.Index]
	if !ok {
		slot = &fragmentSlot{}
		m.slots[call.Index] = slot
		m.slotOrder = append(m.slotOrder, call.Index)
	}
	if call.ID != "" {
		slot.id = call.ID
	}
	slot.name.WriteString(call.Function.Name)
	slot.args.WriteString(call.Function.Arguments)
}

// finish filters the accumulated slots down to executable fragments. Slots
// missing a name or arguments are dropped silently; argument strings that do
// not parse as JSON are reported as an error event and skipped, without
// affecting sibling slots.
func (m *streamMux) finish(sink Sink) *roundOutcome {
	outcome := &roundOutcome{
		Text:         m.text.String(),
		FinishReason: m.finishReason,
	}

	for _, index := range m.slotOrder {
		slot := m.slots[index]
		fragment := ToolCallFragment{
			Index:     index,
			ID:        slot.id,
			Name:      slot.name.String(),
			Arguments: slot.args.String(),
		}
		if !fragment.Eligible() {
			continue
		}
		if !json.Valid([]byte(fragment.Arguments)) {
			sink.Emit(Event{
				Type:    EventError,
				Name:    fragment.Name,
				Message: fmt.Sprintf("tool %s: arguments are not valid JSON", fragment.Name),
			})
			continue
		}
		outcome.Calls = append(outcome.Calls, fragment)
	}

	return outcome
}
