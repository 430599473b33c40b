package chat

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/searchchat/chat-api/internal/domain/llm"
	"github.com/searchchat/chat-api/internal/domain/session"
	"github.com/searchchat/chat-api/internal/infrastructure/metrics"
)

// defaultSystemPrompt frames the assistant when the caller supplies none.
const defaultSystemPrompt = "You are a helpful assistant. Use the available tools when they help you answer."

// SendParams carries one user turn into the service.
type SendParams struct {
	SessionPublicID string
	Model           string
	Content         string
	SystemPrompt    string
	Temperature     *float64
	MaxTokens       *int
}

// Service exposes the chat domain operations.
type Service interface {
	SendMessage(ctx context.Context, params SendParams, sink Sink) (*Outcome, error)
	History(ctx context.Context, sessionPublicID string) ([]Message, error)
}

// ServiceImpl orchestrates a conversation turn end to end: load history,
// persist the user message, run the round controller, persist the final
// assistant message, and guarantee the caller sees a terminal end event.
type ServiceImpl struct {
	sessions   session.Repository
	store      MessageStore
	controller *Controller
	log        zerolog.Logger
}

// NewService wires dependencies.
func NewService(sessions session.Repository, store MessageStore, controller *Controller, log zerolog.Logger) *ServiceImpl {
	return &ServiceImpl{
		sessions:   sessions,
		store:      store,
		controller: controller,
		log:        log.With().Str("component", "chat-service").Logger(),
	}
}

var _ Service = (*ServiceImpl)(nil)

// SendMessage runs one conversation turn. The sink receives the normalized
// event sequence and always observes exactly one end event, whether the turn
// succeeds or fails; text already streamed is never retracted.
func (s *ServiceImpl) SendMessage(ctx context.Context, params SendParams, sink Sink) (*Outcome, error) {
	guarded := newOnceEndSink(sink)
	defer guarded.End()

	if strings.TrimSpace(params.Content) == "" {
		err := fmt.Errorf("message content must not be empty")
		guarded.Emit(Event{Type: EventError, Message: err.Error()})
		return nil, err
	}

	sess, err := s.sessions.FindByPublicID(ctx, params.SessionPublicID)
	if err != nil {
		guarded.Emit(Event{Type: EventError, Message: err.Error()})
		return nil, err
	}

	history, err := s.store.ListBySession(ctx, sess.ID)
	if err != nil {
		// Best-effort: a turn can proceed without prior context.
		s.log.Warn().Err(err).Str("session", sess.PublicID).Msg("load session history")
		history = nil
	}

	s.appendBestEffort(ctx, &Message{
		SessionID: sess.ID,
		Role:      RoleUser,
		Content:   params.Content,
	})

	if sess.Title == "" {
		s.renameBestEffort(ctx, sess, params.Content)
	}

	started := time.Now()
	outcome, err := s.controller.Run(ctx, RunParams{
		SessionID:   sess.ID,
		Model:       params.Model,
		Messages:    s.buildMessages(params, history),
		Temperature: params.Temperature,
		MaxTokens:   params.MaxTokens,
	}, guarded)
	if err != nil {
		return nil, err
	}
	metrics.RecordTurn(params.Model, outcome.Rounds, time.Since(started).Seconds())

	s.appendBestEffort(ctx, &Message{
		SessionID: sess.ID,
		Role:      RoleAssistant,
		Content:   outcome.Text,
	})

	return outcome, nil
}

// History returns the persisted conversation log for a session.
func (s *ServiceImpl) History(ctx context.Context, sessionPublicID string) ([]Message, error) {
	sess, err := s.sessions.FindByPublicID(ctx, sessionPublicID)
	if err != nil {
		return nil, err
	}
	return s.store.ListBySession(ctx, sess.ID)
}

// buildMessages converts the persisted log into the model's context. Pending
// tool_call records are skipped; resolved tool results replay as assistant
// context entries, mirroring the followup composer's framing.
func (s *ServiceImpl) buildMessages(params SendParams, history []Message) []llm.ChatMessage {
	systemPrompt := strings.TrimSpace(params.SystemPrompt)
	if systemPrompt == "" {
		systemPrompt = defaultSystemPrompt
	}

	messages := make([]llm.ChatMessage, 0, len(history)+2)
	messages = append(messages, llm.ChatMessage{Role: "system", Content: systemPrompt})

	for _, msg := range history {
		switch msg.Role {
		case RoleUser, RoleAssistant:
			if msg.Content != "" {
				messages = append(messages, llm.ChatMessage{Role: string(msg.Role), Content: msg.Content})
			}
		case RoleToolCall:
			if msg.ToolResult != "" {
				messages = append(messages, llm.ChatMessage{
					Role:    "assistant",
					Content: fmt.Sprintf("tool %s executed with result: %s", msg.ToolName, msg.ToolResult),
				})
			}
		}
	}

	messages = append(messages, llm.ChatMessage{Role: "user", Content: params.Content})
	return messages
}

func (s *ServiceImpl) appendBestEffort(ctx context.Context, msg *Message) {
	if _, err := s.store.Append(ctx, msg); err != nil {
		s.log.Warn().Err(err).Str("role", string(msg.Role)).Msg("persist message")
	}
}

// renameBestEffort derives a session title from the first user message.
func (s *ServiceImpl) renameBestEffort(ctx context.Context, sess *session.Session, content string) {
	title := strings.TrimSpace(content)
	if len(title) > 80 {
		title = title[:80]
	}
	if err := s.sessions.UpdateTitle(ctx, sess.ID, title); err != nil {
		s.log.Warn().Err(err).Str("session", sess.PublicID).Msg("set session title")
	}
}

// onceEndSink forwards events and guarantees a single terminal end event.
type onceEndSink struct {
	inner Sink
	mu    sync.Mutex
	ended bool
}

func newOnceEndSink(inner Sink) *onceEndSink {
	return &onceEndSink{inner: inner}
}

func (o *onceEndSink) Emit(event Event) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.ended {
		return
	}
	if event.Type == EventEnd {
		o.ended = true
	}
	o.inner.Emit(event)
}

func (o *onceEndSink) End() {
	o.Emit(Event{Type: EventEnd})
}
