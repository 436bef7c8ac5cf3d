// Package timezone implements the set_timezone built-in tool (§4.D),
// validating and persisting the active timezone under the tz_*
// namespace (§6). Only names that time.LoadLocation resolves (IANA zone
// names such as America/Los_Angeles) are accepted; POSIX TZ rule strings
// are not parsed. The daemon reads the stored zone once at startup for
// the clock and the scheduler's daily recompute, so a change takes
// effect after a restart.
package timezone

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/joaolucaswork/esp32-concierge/internal/agent"
	"github.com/joaolucaswork/esp32-concierge/internal/store"
)

const storeKey = "posix"

type setInput struct {
	Timezone string `json:"timezone"`
}

// SetTool implements set_timezone.
type SetTool struct{ Store store.Store }

func (t *SetTool) Name() string        { return "set_timezone" }
func (t *SetTool) Description() string { return "Set the active timezone used for daily scheduled jobs." }
func (t *SetTool) Schema() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{"timezone":{"type":"string"}},"required":["timezone"]}`)
}

func (t *SetTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	var in setInput
	if err := json.Unmarshal(params, &in); err != nil {
		return errResult(fmt.Sprintf("invalid parameters: %v", err)), nil
	}
	if _, err := time.LoadLocation(in.Timezone); err != nil {
		return errResult(fmt.Sprintf("unknown timezone %q", in.Timezone)), nil
	}
	if err := t.Store.Put(ctx, store.NamespaceTimezone, storeKey, []byte(in.Timezone)); err != nil {
		return errResult(err.Error()), nil
	}
	return &agent.ToolResult{Content: "timezone set to " + in.Timezone}, nil
}

// Load recovers the persisted timezone, defaulting to UTC if none is
// set or the stored value no longer resolves.
func Load(ctx context.Context, s store.Store) *time.Location {
	value, err := s.Get(ctx, store.NamespaceTimezone, storeKey)
	if err != nil {
		return time.UTC
	}
	loc, err := time.LoadLocation(string(value))
	if err != nil {
		return time.UTC
	}
	return loc
}

func errResult(msg string) *agent.ToolResult {
	return &agent.ToolResult{Content: msg, IsError: true}
}
