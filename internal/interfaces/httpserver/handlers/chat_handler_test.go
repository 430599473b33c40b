package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/searchchat/chat-api/internal/domain/chat"
	"github.com/searchchat/chat-api/internal/domain/session"
	"github.com/searchchat/chat-api/internal/interfaces/httpserver/handlers"
)

// MockChatService is a mock implementation of chat.Service for testing.
type MockChatService struct {
	SendMessageFunc func(ctx context.Context, params chat.SendParams, sink chat.Sink) (*chat.Outcome, error)
	HistoryFunc     func(ctx context.Context, sessionPublicID string) ([]chat.Message, error)
}

func (m *MockChatService) SendMessage(ctx context.Context, params chat.SendParams, sink chat.Sink) (*chat.Outcome, error) {
	if m.SendMessageFunc != nil {
		return m.SendMessageFunc(ctx, params, sink)
	}
	return &chat.Outcome{}, nil
}

func (m *MockChatService) History(ctx context.Context, sessionPublicID string) ([]chat.Message, error) {
	if m.HistoryFunc != nil {
		return m.HistoryFunc(ctx, sessionPublicID)
	}
	return nil, nil
}

func newChatRouter(service chat.Service) *gin.Engine {
	gin.SetMode(gin.TestMode)
	handler := handlers.NewChatHandler(service, zerolog.Nop())
	engine := gin.New()
	engine.POST("/v1/sessions/:session_id/messages", handler.SendMessage)
	engine.GET("/v1/sessions/:session_id/messages", handler.History)
	return engine
}

func TestChatHandlerSendMessage(t *testing.T) {
	var gotParams chat.SendParams
	service := &MockChatService{
		SendMessageFunc: func(_ context.Context, params chat.SendParams, _ chat.Sink) (*chat.Outcome, error) {
			gotParams = params
			return &chat.Outcome{
				Text:   "final answer",
				Rounds: 2,
				Executions: []chat.ToolExecution{
					{CallID: "call_1", ToolName: "web_search", Result: "findings"},
				},
			}, nil
		},
	}
	router := newChatRouter(service)

	body, _ := json.Marshal(map[string]any{
		"model":   "test-model",
		"content": "what is new",
	})
	req := httptest.NewRequest(http.MethodPost, "/v1/sessions/sess_1/messages", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if gotParams.SessionPublicID != "sess_1" || gotParams.Model != "test-model" {
		t.Errorf("service params = %+v", gotParams)
	}

	var payload struct {
		Text      string `json:"text"`
		Rounds    int    `json:"rounds"`
		ToolCalls []struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"tool_calls"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Text != "final answer" || payload.Rounds != 2 {
		t.Errorf("payload = %+v", payload)
	}
	if len(payload.ToolCalls) != 1 || payload.ToolCalls[0].Name != "web_search" {
		t.Errorf("tool calls = %+v", payload.ToolCalls)
	}
}

func TestChatHandlerSendMessageValidation(t *testing.T) {
	router := newChatRouter(&MockChatService{})

	tests := []struct {
		name string
		body string
	}{
		{"missing model", `{"content":"hi"}`},
		{"missing content", `{"model":"m"}`},
		{"malformed json", `{`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/v1/sessions/sess_1/messages", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestChatHandlerSendMessageSessionNotFound(t *testing.T) {
	service := &MockChatService{
		SendMessageFunc: func(context.Context, chat.SendParams, chat.Sink) (*chat.Outcome, error) {
			return nil, session.ErrNotFound
		},
	}
	router := newChatRouter(service)

	req := httptest.NewRequest(http.MethodPost, "/v1/sessions/sess_x/messages",
		strings.NewReader(`{"model":"m","content":"hi"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestChatHandlerStreamsEvents(t *testing.T) {
	service := &MockChatService{
		SendMessageFunc: func(_ context.Context, _ chat.SendParams, sink chat.Sink) (*chat.Outcome, error) {
			sink.Emit(chat.Event{Type: chat.EventTextChunk, Content: "hel"})
			sink.Emit(chat.Event{Type: chat.EventTextChunk, Content: "lo"})
			sink.Emit(chat.Event{Type: chat.EventEnd})
			return &chat.Outcome{Text: "hello", Rounds: 1}, nil
		},
	}
	router := newChatRouter(service)

	req := httptest.NewRequest(http.MethodPost, "/v1/sessions/sess_1/messages",
		strings.NewReader(`{"model":"m","content":"hi","stream":true}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if got := rec.Header().Get("Content-Type"); got != "text/event-stream" {
		t.Errorf("Content-Type = %q, want text/event-stream", got)
	}

	body := rec.Body.String()
	for _, want := range []string{
		"event: text_chunk\n",
		`"content":"hel"`,
		`"content":"lo"`,
		"event: end\n",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("stream body missing %q:\n%s", want, body)
		}
	}
}

func TestChatHandlerHistory(t *testing.T) {
	service := &MockChatService{
		HistoryFunc: func(_ context.Context, sessionPublicID string) ([]chat.Message, error) {
			if sessionPublicID != "sess_1" {
				return nil, session.ErrNotFound
			}
			return []chat.Message{
				{Role: chat.RoleUser, Content: "hi"},
				{Role: chat.RoleToolCall, ToolName: "web_search", ToolResult: "findings", CallID: "call_1"},
			}, nil
		},
	}
	router := newChatRouter(service)

	req := httptest.NewRequest(http.MethodGet, "/v1/sessions/sess_1/messages", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var payload struct {
		Data []struct {
			Role     string `json:"role"`
			ToolName string `json:"tool_name"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(payload.Data) != 2 || payload.Data[1].ToolName != "web_search" {
		t.Errorf("history payload = %+v", payload.Data)
	}

	// Unknown session
	req = httptest.NewRequest(http.MethodGet, "/v1/sessions/sess_x/messages", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}
