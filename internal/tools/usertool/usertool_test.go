package usertool

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/joaolucaswork/esp32-concierge/internal/agent"
	"github.com/joaolucaswork/esp32-concierge/internal/store"
)

func newTestFixture(t *testing.T) (store.Store, *agent.Registry) {
	t.Helper()
	s, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s, agent.NewRegistry()
}

func TestCreateToolRegistersAndPersists(t *testing.T) {
	s, reg := newTestFixture(t)
	create := &CreateTool{Store: s, Registry: reg}
	ctx := context.Background()

	result, err := create.Execute(ctx, json.RawMessage(`{"name":"water_plants","description":"waters the plants","action":"turn on pump for 5 seconds"}`))
	if err != nil || result.IsError {
		t.Fatalf("create: %v %+v", err, result)
	}

	tool, ok := reg.Get("water_plants")
	if !ok {
		t.Fatalf("expected tool registered")
	}
	ud, ok := tool.(agent.UserDefinedTool)
	if !ok {
		t.Fatalf("expected tool to satisfy UserDefinedTool")
	}
	if ud.ActionText() != "turn on pump for 5 seconds" {
		t.Fatalf("got action %q", ud.ActionText())
	}
}

func TestCreateToolRejectsInvalidName(t *testing.T) {
	s, reg := newTestFixture(t)
	create := &CreateTool{Store: s, Registry: reg}
	result, _ := create.Execute(context.Background(), json.RawMessage(`{"name":"bad name!","description":"x","action":"x"}`))
	if !result.IsError {
		t.Fatalf("expected error for invalid tool name")
	}
}

func TestCreateToolRejectsImmutableBuiltin(t *testing.T) {
	s, reg := newTestFixture(t)
	reg.RegisterBuiltin(&stubBuiltin{})
	create := &CreateTool{Store: s, Registry: reg}
	result, _ := create.Execute(context.Background(), json.RawMessage(`{"name":"gpio_set","description":"x","action":"x"}`))
	if !result.IsError {
		t.Fatalf("expected error overriding a builtin name")
	}
}

func TestListAndDeleteUserTool(t *testing.T) {
	s, reg := newTestFixture(t)
	create := &CreateTool{Store: s, Registry: reg}
	ctx := context.Background()
	if _, err := create.Execute(ctx, json.RawMessage(`{"name":"say_hi","description":"greets","action":"say hi"}`)); err != nil {
		t.Fatalf("create: %v", err)
	}

	list := &ListTool{Store: s}
	listResult, _ := list.Execute(ctx, json.RawMessage(`{}`))
	if listResult.Content != "say_hi: greets" {
		t.Fatalf("got %q", listResult.Content)
	}

	del := &DeleteTool{Store: s, Registry: reg}
	delResult, err := del.Execute(ctx, json.RawMessage(`{"name":"say_hi"}`))
	if err != nil || delResult.IsError {
		t.Fatalf("delete: %v %+v", err, delResult)
	}
	if _, ok := reg.Get("say_hi"); ok {
		t.Fatalf("expected tool unregistered after delete")
	}
}

func TestLoadAllRecoversPersistedTools(t *testing.T) {
	s, reg := newTestFixture(t)
	ctx := context.Background()
	create := &CreateTool{Store: s, Registry: reg}
	if _, err := create.Execute(ctx, json.RawMessage(`{"name":"say_hi","description":"greets","action":"say hi"}`)); err != nil {
		t.Fatalf("create: %v", err)
	}

	fresh := agent.NewRegistry()
	if err := LoadAll(ctx, s, fresh); err != nil {
		t.Fatalf("load all: %v", err)
	}
	if _, ok := fresh.Get("say_hi"); !ok {
		t.Fatalf("expected recovered tool in fresh registry")
	}
}

type stubBuiltin struct{}

func (stubBuiltin) Name() string                 { return "gpio_set" }
func (stubBuiltin) Description() string          { return "built-in" }
func (stubBuiltin) Schema() json.RawMessage      { return nil }
func (stubBuiltin) Execute(context.Context, json.RawMessage) (*agent.ToolResult, error) {
	return &agent.ToolResult{}, nil
}
