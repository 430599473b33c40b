package chat

// EventType discriminates the normalized events surfaced to the caller.
type EventType string

const (
	EventTextChunk  EventType = "text_chunk"
	EventToolCall   EventType = "tool_call"
	EventToolResult EventType = "tool_result"
	EventError      EventType = "error"
	EventEnd        EventType = "end"
)

// Event is one entry of the normalized stream a caller receives. Tool call and
// result events carry the same correlation ID so clients can pair them even
// though result order across concurrent invocations is unspecified.
type Event struct {
	Type    EventType      `json:"type"`
	ID      string         `json:"id,omitempty"`
	Name    string         `json:"name,omitempty"`
	Args    map[string]any `json:"args,omitempty"`
	Result  string         `json:"result,omitempty"`
	Content string         `json:"content,omitempty"`
	Message string         `json:"message,omitempty"`
}

// Sink receives normalized events during a conversation turn. Implementations
// must be safe for concurrent use; tool results are emitted from the
// goroutines that ran them.
type Sink interface {
	Emit(event Event)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(Event)

// Emit implements Sink.
func (f SinkFunc) Emit(event Event) { f(event) }
