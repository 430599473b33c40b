package chat

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/searchchat/chat-api/internal/domain/llm"
	"github.com/searchchat/chat-api/internal/infrastructure/observability"
)

// Controller drives the request/response rounds of one conversation turn:
// request the model, stream its reply, execute requested tools, compose the
// followup context, and stop once the model answers in plain text or the
// round budget runs out.
type Controller struct {
	provider  llm.Provider
	registry  *Registry
	invoker   *Invoker
	composer  *Composer
	maxRounds int
	log       zerolog.Logger
}

// NewController constructs a round controller. maxRounds bounds the number of
// followup rounds taken after tool execution.
func NewController(provider llm.Provider, registry *Registry, invoker *Invoker, composer *Composer, maxRounds int, log zerolog.Logger) *Controller {
	return &Controller{
		provider:  provider,
		registry:  registry,
		invoker:   invoker,
		composer:  composer,
		maxRounds: maxRounds,
		log:       log.With().Str("component", "round-controller").Logger(),
	}
}

// RunParams carries the inputs for one conversation turn.
type RunParams struct {
	SessionID   uint
	Model       string
	Messages    []llm.ChatMessage
	Temperature *float64
	MaxTokens   *int
}

// Outcome summarizes a completed turn.
type Outcome struct {
	Text       string
	Rounds     int
	Executions []ToolExecution
}

// Run loops until the model produces a final answer. Text and tool events are
// forwarded to the sink as they happen; a model stream failure is terminal and
// reported as an error event before returning.
func (c *Controller) Run(ctx context.Context, params RunParams, sink Sink) (*Outcome, error) {
	messages := append([]llm.ChatMessage(nil), params.Messages...)
	var text strings.Builder
	var executions []ToolExecution

	followups := 0
	for {
		allowTools := followups < c.maxRounds
		round := followups + 1

		outcome, err := c.requestRound(ctx, params, messages, round, allowTools, sink)
		if err != nil {
			sink.Emit(Event{Type: EventError, Message: err.Error()})
			return nil, err
		}
		text.WriteString(outcome.Text)

		// Plain completion, no eligible calls, or tools withheld: the reply
		// is final. A finish reason other than tool_calls with leftover
		// fragments is treated as plain completion as well.
		if !allowTools || outcome.FinishReason != llm.FinishReasonToolCalls || len(outcome.Calls) == 0 {
			return &Outcome{Text: text.String(), Rounds: round, Executions: executions}, nil
		}

		roundExecutions := c.invoker.InvokeAll(ctx, params.SessionID, outcome.Calls, sink)
		executions = append(executions, roundExecutions...)

		// Every invocation failed: there is no followup context worth sending,
		// so the turn ends with whatever text accumulated.
		if len(roundExecutions) == 0 {
			c.log.Warn().Int("round", round).Msg("all tool invocations failed, ending turn")
			return &Outcome{Text: text.String(), Rounds: round, Executions: executions}, nil
		}

		messages = c.composer.BuildFollowup(messages, roundExecutions)
		followups++
	}
}

func (c *Controller) requestRound(ctx context.Context, params RunParams, messages []llm.ChatMessage, round int, allowTools bool, sink Sink) (*roundOutcome, error) {
	ctx, span := observability.StartRoundSpan(ctx, params.Model, round, allowTools)
	defer span.End()

	req := llm.ChatCompletionRequest{
		Model:       params.Model,
		Messages:    c.withGuidance(messages, round, allowTools),
		Temperature: params.Temperature,
		MaxTokens:   params.MaxTokens,
		Stream:      true,
	}
	if allowTools {
		req.Tools = c.registry.Definitions()
	}

	stream, err := c.provider.CreateChatCompletionStream(ctx, req)
	if err != nil {
		observability.RecordError(span, err)
		return nil, fmt.Errorf("request model: %w", err)
	}

	outcome, err := newStreamMux().drain(stream, sink)
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}
	return outcome, nil
}

// withGuidance appends the per-round tool guidance as a trailing system
// message. The guidance escalates as the budget shrinks; the final tool round
// is framed as the model's last opportunity to call tools.
func (c *Controller) withGuidance(messages []llm.ChatMessage, round int, allowTools bool) []llm.ChatMessage {
	if !allowTools {
		return messages
	}
	guided := make([]llm.ChatMessage, 0, len(messages)+1)
	guided = append(guided, messages...)
	guided = append(guided, llm.ChatMessage{Role: "system", Content: roundGuidance(round, c.maxRounds)})
	return guided
}

func roundGuidance(round, max int) string {
	remaining := max - round
	if remaining <= 0 {
		return "This is your last opportunity to call tools. After this round you must answer the user directly with the information you have."
	}
	return fmt.Sprintf("You may call the available tools to gather information. %d tool round(s) remain after this one.", remaining)
}
