// Package usertool implements the create_tool/list_user_tools/
// delete_user_tool built-in tools (§3, §4.D) and the UserDefinedTool
// wrapper that lets a persisted {name, description, action} triplet
// be dispatched through the agent loop's nested sub-loop (§9).
package usertool

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/joaolucaswork/esp32-concierge/internal/agent"
	"github.com/joaolucaswork/esp32-concierge/internal/store"
	"github.com/joaolucaswork/esp32-concierge/pkg/models"
)

// toolKey derives a store key within store.MaxKeyBytes from a tool name,
// since names may run up to 32 bytes but keys are capped at 15; the
// name itself still lives in the record's marshaled value.
func toolKey(name string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(name))
	return strconv.FormatUint(uint64(h.Sum32()), 36)
}

// Tool wraps a persisted UserTool so it satisfies both agent.Tool and
// agent.UserDefinedTool: invoking it re-submits Action as a fresh
// directive in a nested bounded loop rather than running a handler.
type Tool struct {
	def models.UserTool
}

// New wraps a persisted definition as a dispatchable Tool.
func New(def models.UserTool) *Tool { return &Tool{def: def} }

func (t *Tool) Name() string        { return t.def.Name }
func (t *Tool) Description() string { return t.def.Description }
func (t *Tool) Schema() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{}}`)
}
func (t *Tool) ActionText() string { return t.def.Action }

// Execute is never reached in practice: the agent loop recognises the
// UserDefinedTool interface and dispatches through the nested loop
// instead. It exists only so Tool satisfies agent.Tool standalone.
func (t *Tool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	return nil, fmt.Errorf("user tool %s must be dispatched through the nested loop", t.def.Name)
}

// LoadAll recovers every persisted user tool and registers it.
func LoadAll(ctx context.Context, s store.Store, reg *agent.Registry) error {
	next, closer, err := s.Iterate(ctx, store.NamespaceUserTool)
	if err != nil {
		return fmt.Errorf("usertool: load: %w", err)
	}
	defer closer()
	for {
		_, value, ok := next()
		if !ok {
			break
		}
		var def models.UserTool
		if err := yaml.Unmarshal(value, &def); err != nil {
			continue
		}
		_ = reg.RegisterUserTool(New(def), true)
	}
	return nil
}

type createInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Action      string `json:"action"`
}

// CreateTool implements create_tool.
type CreateTool struct {
	Store    store.Store
	Registry *agent.Registry
}

func (t *CreateTool) Name() string        { return "create_tool" }
func (t *CreateTool) Description() string { return "Define a new user tool from a name, description, and action." }
func (t *CreateTool) Schema() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{"name":{"type":"string"},"description":{"type":"string"},"action":{"type":"string"}},"required":["name","description","action"]}`)
}

func (t *CreateTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	var in createInput
	if err := json.Unmarshal(params, &in); err != nil {
		return errResult(fmt.Sprintf("invalid parameters: %v", err)), nil
	}
	in.Name = strings.TrimSpace(in.Name)
	if !models.ValidToolName(in.Name) {
		return errResult("tool name must be 1-32 alphanumeric/underscore characters"), nil
	}
	if len(in.Action) > models.MaxActionBytes {
		return errResult(fmt.Sprintf("action exceeds %d bytes", models.MaxActionBytes)), nil
	}

	count, err := countStored(ctx, t.Store)
	if err != nil {
		return errResult(err.Error()), nil
	}
	key := toolKey(in.Name)
	existing, alreadyExists, err := lookupStored(ctx, t.Store, key)
	if err != nil {
		return errResult(err.Error()), nil
	}
	if alreadyExists && existing.Name != in.Name {
		return errResult("tool name collides with an existing definition, choose another name"), nil
	}
	if !alreadyExists && count >= models.MaxUserTools {
		return errResult(fmt.Sprintf("user tool limit reached (max %d)", models.MaxUserTools)), nil
	}

	def := models.UserTool{Name: in.Name, Description: in.Description, Action: in.Action}
	raw, err := yaml.Marshal(def)
	if err != nil {
		return errResult(err.Error()), nil
	}
	if err := t.Store.Put(ctx, store.NamespaceUserTool, key, raw); err != nil {
		return errResult(err.Error()), nil
	}
	if err := t.Registry.RegisterUserTool(New(def), true); err != nil {
		return errResult(err.Error()), nil
	}
	return &agent.ToolResult{Content: "tool " + in.Name + " created"}, nil
}

// ListTool implements list_user_tools.
type ListTool struct{ Store store.Store }

func (t *ListTool) Name() string        { return "list_user_tools" }
func (t *ListTool) Description() string { return "List every user-defined tool's name and description." }
func (t *ListTool) Schema() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{}}`)
}

func (t *ListTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	next, closer, err := t.Store.Iterate(ctx, store.NamespaceUserTool)
	if err != nil {
		return errResult(err.Error()), nil
	}
	defer closer()
	lines := make([]string, 0)
	for {
		_, value, ok := next()
		if !ok {
			break
		}
		var def models.UserTool
		if err := yaml.Unmarshal(value, &def); err != nil {
			continue
		}
		lines = append(lines, def.Name+": "+def.Description)
	}
	if len(lines) == 0 {
		return &agent.ToolResult{Content: "no user tools defined"}, nil
	}
	return &agent.ToolResult{Content: strings.Join(lines, "; ")}, nil
}

type deleteInput struct {
	Name string `json:"name"`
}

// DeleteTool implements delete_user_tool.
type DeleteTool struct {
	Store    store.Store
	Registry *agent.Registry
}

func (t *DeleteTool) Name() string        { return "delete_user_tool" }
func (t *DeleteTool) Description() string { return "Delete a user-defined tool by name." }
func (t *DeleteTool) Schema() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{"name":{"type":"string"}},"required":["name"]}`)
}

func (t *DeleteTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	var in deleteInput
	if err := json.Unmarshal(params, &in); err != nil {
		return errResult(fmt.Sprintf("invalid parameters: %v", err)), nil
	}
	if err := t.Store.Delete(ctx, store.NamespaceUserTool, toolKey(in.Name)); err != nil {
		return errResult(err.Error()), nil
	}
	if err := t.Registry.Unregister(in.Name); err != nil && err != agent.ErrNotFound {
		return errResult(err.Error()), nil
	}
	return &agent.ToolResult{Content: "tool " + in.Name + " deleted"}, nil
}

func countStored(ctx context.Context, s store.Store) (int, error) {
	next, closer, err := s.Iterate(ctx, store.NamespaceUserTool)
	if err != nil {
		return 0, err
	}
	defer closer()
	n := 0
	for {
		_, _, ok := next()
		if !ok {
			break
		}
		n++
	}
	return n, nil
}

func lookupStored(ctx context.Context, s store.Store, key string) (models.UserTool, bool, error) {
	value, err := s.Get(ctx, store.NamespaceUserTool, key)
	if err == store.ErrNotFound {
		return models.UserTool{}, false, nil
	}
	if err != nil {
		return models.UserTool{}, false, err
	}
	var def models.UserTool
	if err := yaml.Unmarshal(value, &def); err != nil {
		return models.UserTool{}, false, err
	}
	return def, true, nil
}

func errResult(msg string) *agent.ToolResult {
	return &agent.ToolResult{Content: msg, IsError: true}
}
