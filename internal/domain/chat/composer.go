package chat

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/searchchat/chat-api/internal/domain/llm"
)

// fallbackFollowupPrompt frames the next round when no executed tool supplies
// its own system prompt override.
const fallbackFollowupPrompt = "Summarize the tool findings for the user."

// Composer builds the next round's message list from the executions of the
// previous one, merging each tool's followup policy into a single context.
type Composer struct {
	log zerolog.Logger
}

// NewComposer constructs a composer.
func NewComposer(log zerolog.Logger) *Composer {
	return &Composer{log: log.With().Str("component", "followup-composer").Logger()}
}

// BuildFollowup assembles the message list for the followup round: a system
// message merged from the enabled followup policies (execution order,
// blank-line separated), the prior history, then one assistant context entry
// per execution carrying its filtered result.
func (c *Composer) BuildFollowup(history []llm.ChatMessage, executions []ToolExecution) []llm.ChatMessage {
	var overrides []string
	for _, execution := range executions {
		policy := execution.Descriptor.Followup
		if policy == nil || !policy.Enabled {
			continue
		}
		if prompt := strings.TrimSpace(policy.SystemPromptOverride); prompt != "" {
			overrides = append(overrides, prompt)
		}
	}

	systemPrompt := fallbackFollowupPrompt
	if len(overrides) > 0 {
		systemPrompt = strings.Join(overrides, "\n\n")
	}

	messages := make([]llm.ChatMessage, 0, len(history)+len(executions)+1)
	messages = append(messages, llm.ChatMessage{Role: "system", Content: systemPrompt})
	messages = append(messages, stripSystem(history)...)

	for _, execution := range executions {
		messages = append(messages, llm.ChatMessage{
			Role:    "assistant",
			Content: fmt.Sprintf("tool %s executed with result: %s", execution.ToolName, c.filterResult(execution)),
		})
	}

	return messages
}

// filterResult applies the execution's own result filter when present. A
// filter that errors or panics fails safe: the unfiltered result is used for
// that one execution.
func (c *Composer) filterResult(execution ToolExecution) (out string) {
	policy := execution.Descriptor.Followup
	if policy == nil || !policy.Enabled || policy.ResultFilter == nil {
		return execution.Result
	}

	defer func() {
		if r := recover(); r != nil {
			c.log.Warn().Str("tool", execution.ToolName).Interface("panic", r).Msg("result filter panicked")
			out = execution.Result
		}
	}()

	filtered, err := policy.ResultFilter(execution.Result)
	if err != nil {
		c.log.Warn().Err(err).Str("tool", execution.ToolName).Msg("result filter failed")
		return execution.Result
	}
	return filtered
}

// stripSystem drops system entries from the prior history so the merged
// followup prompt is the round's only system message.
func stripSystem(history []llm.ChatMessage) []llm.ChatMessage {
	kept := make([]llm.ChatMessage, 0, len(history))
	for _, msg := range history {
		if msg.Role == "system" {
			continue
		}
		kept = append(kept, msg)
	}
	return kept
}
