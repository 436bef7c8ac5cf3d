package agent

import (
	"context"
	"encoding/json"
)

// ToolResult is the outcome of executing one Tool (§4.D). Content is
// truncated to the 512-byte result buffer contract by the caller.
type ToolResult struct {
	Content string
	IsError bool
}

// Tool is the common contract every built-in and user-defined handler
// satisfies (§3, §4.D).
type Tool interface {
	Name() string
	Description() string
	Schema() json.RawMessage
	Execute(ctx context.Context, params json.RawMessage) (*ToolResult, error)
}
