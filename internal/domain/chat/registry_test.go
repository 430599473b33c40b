package chat_test

import (
	"context"
	"errors"
	"testing"

	"github.com/searchchat/chat-api/internal/domain/chat"
)

func noopExecutor(context.Context, map[string]any) (string, error) {
	return "", nil
}

func TestRegistryRegisterValidation(t *testing.T) {
	tests := []struct {
		name       string
		descriptor chat.Descriptor
		wantErr    bool
	}{
		{"valid", chat.Descriptor{Name: "ok", Execute: noopExecutor}, false},
		{"missing name", chat.Descriptor{Execute: noopExecutor}, true},
		{"missing executor", chat.Descriptor{Name: "no-exec"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			registry := chat.NewRegistry()
			err := registry.Register(tt.descriptor)
			if (err != nil) != tt.wantErr {
				t.Errorf("Register() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	registry := chat.NewRegistry()
	if err := registry.Register(chat.Descriptor{Name: "dup", Execute: noopExecutor}); err != nil {
		t.Fatalf("first Register() error = %v", err)
	}
	if err := registry.Register(chat.Descriptor{Name: "dup", Execute: noopExecutor}); err == nil {
		t.Error("second Register() error = nil, want duplicate rejection")
	}
}

func TestRegistryLookup(t *testing.T) {
	registry := chat.NewRegistry()
	if err := registry.Register(chat.Descriptor{Name: "known", Execute: noopExecutor}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	if _, err := registry.Lookup("known"); err != nil {
		t.Errorf("Lookup(known) error = %v", err)
	}

	_, err := registry.Lookup("missing")
	if !errors.Is(err, chat.ErrToolNotFound) {
		t.Errorf("Lookup(missing) error = %v, want ErrToolNotFound", err)
	}
}

func TestRegistryDefinitionsPreserveOrder(t *testing.T) {
	registry := chat.NewRegistry()
	for _, name := range []string{"charlie", "alpha", "bravo"} {
		if err := registry.Register(chat.Descriptor{Name: name, Execute: noopExecutor}); err != nil {
			t.Fatalf("Register(%s) error = %v", name, err)
		}
	}

	defs := registry.Definitions()
	if len(defs) != 3 {
		t.Fatalf("Definitions() = %d entries, want 3", len(defs))
	}
	want := []string{"charlie", "alpha", "bravo"}
	for i, def := range defs {
		if def.Function.Name != want[i] {
			t.Errorf("Definitions()[%d] = %q, want %q", i, def.Function.Name, want[i])
		}
		if def.Type != "function" {
			t.Errorf("Definitions()[%d].Type = %q, want function", i, def.Type)
		}
	}
}
