package chat

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/searchchat/chat-api/internal/domain/llm"
)

// ErrToolNotFound is returned when the model requests an unregistered tool.
var ErrToolNotFound = errors.New("tool not found")

// FollowupPolicy controls how a tool's results shape the next round's context.
type FollowupPolicy struct {
	Enabled              bool
	SystemPromptOverride string
	// ResultFilter rewrites the raw result before it enters the followup
	// context. A filter error falls back to the unfiltered result.
	ResultFilter func(raw string) (string, error)
}

// Descriptor is a registry entry, immutable for the process lifetime.
type Descriptor struct {
	Name        string
	Description string
	InputSchema map[string]any
	Execute     func(ctx context.Context, args map[string]any) (string, error)
	Followup    *FollowupPolicy
}

// ToLLMTool converts the descriptor into an OpenAI-compatible tool definition.
func (d Descriptor) ToLLMTool() llm.ToolDefinition {
	return llm.ToolDefinition{
		Type: "function",
		Function: llm.ToolFunctionSchema{
			Name:        d.Name,
			Description: d.Description,
			Parameters:  d.InputSchema,
		},
	}
}

// Registry maps tool names to descriptors. Registration happens at process
// start; lookups are concurrent during orchestration.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Descriptor
	order []string
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Descriptor)}
}

// Register adds a descriptor. Duplicate names and nil executors are rejected.
func (r *Registry) Register(d Descriptor) error {
	if d.Name == "" {
		return errors.New("tool descriptor requires a name")
	}
	if d.Execute == nil {
		return fmt.Errorf("tool %q requires an executor", d.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[d.Name]; exists {
		return fmt.Errorf("tool %q already registered", d.Name)
	}
	r.tools[d.Name] = d
	r.order = append(r.order, d.Name)
	return nil
}

// Lookup resolves a descriptor by name.
func (r *Registry) Lookup(name string) (Descriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.tools[name]
	if !ok {
		return Descriptor{}, fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}
	return d, nil
}

// Definitions returns the tool definitions offered to the model, in
// registration order.
func (r *Registry) Definitions() []llm.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]llm.ToolDefinition, 0, len(r.order))
	for _, name := range r.order {
		defs = append(defs, r.tools[name].ToLLMTool())
	}
	return defs
}
