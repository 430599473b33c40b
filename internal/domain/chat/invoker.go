package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/searchchat/chat-api/internal/infrastructure/metrics"
	"github.com/searchchat/chat-api/internal/infrastructure/observability"
)

// ToolExecution is the immutable result of running one resolved tool call.
// Descriptor carries the followup policy consumed by the composer; RecordID
// correlates the execution back to its persisted tool_call message.
type ToolExecution struct {
	CallID     string
	ToolName   string
	Args       map[string]any
	Result     string
	Descriptor Descriptor
	RecordID   uint
}

// Invoker runs resolved tool calls concurrently, isolating failures per call.
type Invoker struct {
	registry *Registry
	store    MessageStore
	timeout  time.Duration
	log      zerolog.Logger
}

// NewInvoker constructs an invoker.
func NewInvoker(registry *Registry, store MessageStore, timeout time.Duration, log zerolog.Logger) *Invoker {
	return &Invoker{
		registry: registry,
		store:    store,
		timeout:  timeout,
		log:      log.With().Str("component", "tool-invoker").Logger(),
	}
}

type launchedCall struct {
	callID     string
	descriptor Descriptor
	args       map[string]any
	recordID   uint
}

// InvokeAll executes every eligible fragment of a round: calls are prepared
// and announced in call order, dispatched in parallel, and joined before the
// round proceeds. A failed invocation yields nothing and never aborts its
// siblings. The returned executions preserve call order.
func (iv *Invoker) InvokeAll(ctx context.Context, sessionID uint, calls []ToolCallFragment, sink Sink) []ToolExecution {
	launched := make([]*launchedCall, 0, len(calls))

	for _, fragment := range calls {
		call, err := iv.prepare(ctx, sessionID, fragment)
		if err != nil {
			sink.Emit(Event{Type: EventError, Name: fragment.Name, Message: err.Error()})
			continue
		}
		sink.Emit(Event{
			Type: EventToolCall,
			ID:   call.callID,
			Name: call.descriptor.Name,
			Args: call.args,
		})
		launched = append(launched, call)
	}

	results := make([]*ToolExecution, len(launched))
	var wg sync.WaitGroup
	for i, call := range launched {
		wg.Add(1)
		go func(i int, call *launchedCall) {
			defer wg.Done()
			results[i] = iv.run(ctx, call, sink)
		}(i, call)
	}
	wg.Wait()

	executions := make([]ToolExecution, 0, len(launched))
	for _, result := range results {
		if result != nil {
			executions = append(executions, *result)
		}
	}
	return executions
}

// prepare parses the fragment, resolves its descriptor, and persists the
// pending tool_call record before execution begins, so a crash mid-execution
// leaves a recoverable trace with no result.
func (iv *Invoker) prepare(ctx context.Context, sessionID uint, fragment ToolCallFragment) (*launchedCall, error) {
	var args map[string]any
	if err := json.Unmarshal([]byte(fragment.Arguments), &args); err != nil {
		return nil, fmt.Errorf("tool %s: parse arguments: %w", fragment.Name, err)
	}

	descriptor, err := iv.registry.Lookup(fragment.Name)
	if err != nil {
		return nil, err
	}

	callID := fragment.ID
	if callID == "" {
		callID = uuid.NewString()
	}

	recordID, err := iv.store.Append(ctx, &Message{
		SessionID: sessionID,
		Role:      RoleToolCall,
		ToolName:  descriptor.Name,
		ToolArgs:  args,
		CallID:    callID,
	})
	if err != nil {
		// Persistence is best-effort; the invocation proceeds without a record.
		iv.log.Warn().Err(err).Str("tool", descriptor.Name).Msg("persist tool call record")
		recordID = 0
	}

	return &launchedCall{
		callID:     callID,
		descriptor: descriptor,
		args:       args,
		recordID:   recordID,
	}, nil
}

func (iv *Invoker) run(ctx context.Context, call *launchedCall, sink Sink) *ToolExecution {
	callCtx := ctx
	var cancel context.CancelFunc
	if iv.timeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, iv.timeout)
		defer cancel()
	}

	callCtx, span := observability.StartToolSpan(callCtx, call.descriptor.Name, call.callID)
	defer span.End()

	started := time.Now()
	result, err := iv.execute(callCtx, call)
	elapsed := time.Since(started).Seconds()

	if err != nil {
		observability.RecordError(span, err)
		metrics.RecordToolCall(call.descriptor.Name, "failed", elapsed)
		iv.log.Warn().Err(err).Str("tool", call.descriptor.Name).Str("call_id", call.callID).Msg("tool execution failed")
		sink.Emit(Event{
			Type:    EventError,
			ID:      call.callID,
			Name:    call.descriptor.Name,
			Message: fmt.Sprintf("tool %s: %v", call.descriptor.Name, err),
		})
		return nil
	}
	metrics.RecordToolCall(call.descriptor.Name, "completed", elapsed)

	if call.recordID != 0 {
		if err := iv.store.UpdateResult(ctx, call.recordID, result); err != nil {
			iv.log.Warn().Err(err).Str("tool", call.descriptor.Name).Msg("persist tool result")
		}
	}

	sink.Emit(Event{
		Type:   EventToolResult,
		ID:     call.callID,
		Name:   call.descriptor.Name,
		Result: result,
	})

	return &ToolExecution{
		CallID:     call.callID,
		ToolName:   call.descriptor.Name,
		Args:       call.args,
		Result:     result,
		Descriptor: call.descriptor,
		RecordID:   call.recordID,
	}
}

// execute shields the round from panicking executors.
func (iv *Invoker) execute(ctx context.Context, call *launchedCall) (result string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("executor panic: %v", r)
		}
	}()
	return call.descriptor.Execute(ctx, call.args)
}
