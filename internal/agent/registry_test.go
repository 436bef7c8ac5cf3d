package agent

import (
	"context"
	"encoding/json"
	"testing"
)

type stubTool struct {
	name   string
	schema string
}

func (s stubTool) Name() string             { return s.name }
func (s stubTool) Description() string      { return "stub" }
func (s stubTool) Schema() json.RawMessage  { return json.RawMessage(s.schema) }
func (s stubTool) Execute(ctx context.Context, params json.RawMessage) (*ToolResult, error) {
	return &ToolResult{Content: "ok"}, nil
}

func TestRegistryBuiltinImmutable(t *testing.T) {
	r := NewRegistry()
	r.RegisterBuiltin(stubTool{name: "get_health", schema: `{}`})

	if err := r.Unregister("get_health"); err != ErrImmutable {
		t.Fatalf("got %v, want ErrImmutable", err)
	}
	if err := r.RegisterUserTool(stubTool{name: "get_health", schema: `{}`}, true); err != ErrImmutable {
		t.Fatalf("got %v, want ErrImmutable", err)
	}
}

func TestRegistryUserToolDuplicate(t *testing.T) {
	r := NewRegistry()
	if err := r.RegisterUserTool(stubTool{name: "my_tool", schema: `{}`}, false); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if err := r.RegisterUserTool(stubTool{name: "my_tool", schema: `{}`}, false); err != ErrDuplicateName {
		t.Fatalf("got %v, want ErrDuplicateName", err)
	}
	if err := r.RegisterUserTool(stubTool{name: "my_tool", schema: `{}`}, true); err != nil {
		t.Fatalf("replace register: %v", err)
	}
}

func TestRegistryDescribeAll(t *testing.T) {
	r := NewRegistry()
	r.RegisterBuiltin(stubTool{name: "a", schema: `{}`})
	r.RegisterBuiltin(stubTool{name: "b", schema: `{}`})
	if got := len(r.DescribeAll()); got != 2 {
		t.Fatalf("got %d tools, want 2", got)
	}
}

func TestRegistryValidateInput(t *testing.T) {
	r := NewRegistry()
	schema := `{
		"type": "object",
		"properties": {"pin": {"type": "integer"}},
		"required": ["pin"]
	}`
	r.RegisterBuiltin(stubTool{name: "gpio_set", schema: schema})

	if err := r.ValidateInput("gpio_set", map[string]interface{}{"pin": 5}); err != nil {
		t.Fatalf("valid input rejected: %v", err)
	}
	if err := r.ValidateInput("gpio_set", map[string]interface{}{}); err == nil {
		t.Fatalf("missing required field should fail validation")
	}
}
