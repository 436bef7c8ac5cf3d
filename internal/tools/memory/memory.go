// Package memory implements the memory_put/get/list/delete built-in
// tools (§4.D), persisting values under the store's user-memory
// namespace.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/joaolucaswork/esp32-concierge/internal/agent"
	"github.com/joaolucaswork/esp32-concierge/internal/store"
)

type keyValueInput struct {
	Key   string `json:"key"`
	Value string `json:"value,omitempty"`
}

// PutTool implements memory_put.
type PutTool struct{ Store store.Store }

func (t *PutTool) Name() string        { return "memory_put" }
func (t *PutTool) Description() string { return "Store a value under a key in persistent memory." }
func (t *PutTool) Schema() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{"key":{"type":"string"},"value":{"type":"string"}},"required":["key","value"]}`)
}
func (t *PutTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	var in keyValueInput
	if err := json.Unmarshal(params, &in); err != nil {
		return errResult(fmt.Sprintf("invalid parameters: %v", err)), nil
	}
	if err := t.Store.Put(ctx, store.NamespaceUserMemory, in.Key, []byte(in.Value)); err != nil {
		return errResult(err.Error()), nil
	}
	return &agent.ToolResult{Content: "stored"}, nil
}

// GetTool implements memory_get.
type GetTool struct{ Store store.Store }

func (t *GetTool) Name() string        { return "memory_get" }
func (t *GetTool) Description() string { return "Retrieve a value by key from persistent memory." }
func (t *GetTool) Schema() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{"key":{"type":"string"}},"required":["key"]}`)
}
func (t *GetTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	var in keyValueInput
	if err := json.Unmarshal(params, &in); err != nil {
		return errResult(fmt.Sprintf("invalid parameters: %v", err)), nil
	}
	value, err := t.Store.Get(ctx, store.NamespaceUserMemory, in.Key)
	if err == store.ErrNotFound {
		return errResult("no value stored for key " + in.Key), nil
	}
	if err != nil {
		return errResult(err.Error()), nil
	}
	return &agent.ToolResult{Content: string(value)}, nil
}

// ListTool implements memory_list.
type ListTool struct{ Store store.Store }

func (t *ListTool) Name() string        { return "memory_list" }
func (t *ListTool) Description() string { return "List all keys currently stored in persistent memory." }
func (t *ListTool) Schema() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{}}`)
}
func (t *ListTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	next, closer, err := t.Store.Iterate(ctx, store.NamespaceUserMemory)
	if err != nil {
		return errResult(err.Error()), nil
	}
	defer closer()
	keys := make([]string, 0)
	for {
		k, _, ok := next()
		if !ok {
			break
		}
		keys = append(keys, k)
	}
	return &agent.ToolResult{Content: strings.Join(keys, ",")}, nil
}

// DeleteTool implements memory_delete.
type DeleteTool struct{ Store store.Store }

func (t *DeleteTool) Name() string        { return "memory_delete" }
func (t *DeleteTool) Description() string { return "Delete a key from persistent memory." }
func (t *DeleteTool) Schema() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{"key":{"type":"string"}},"required":["key"]}`)
}
func (t *DeleteTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	var in keyValueInput
	if err := json.Unmarshal(params, &in); err != nil {
		return errResult(fmt.Sprintf("invalid parameters: %v", err)), nil
	}
	if err := t.Store.Delete(ctx, store.NamespaceUserMemory, in.Key); err != nil {
		return errResult(err.Error()), nil
	}
	return &agent.ToolResult{Content: "deleted"}, nil
}

func errResult(msg string) *agent.ToolResult {
	return &agent.ToolResult{Content: msg, IsError: true}
}
