// Package system implements the get_version/get_health/get_time
// diagnostic built-in tools (§4.D).
package system

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/joaolucaswork/esp32-concierge/internal/agent"
	"github.com/joaolucaswork/esp32-concierge/internal/ratelimit"
)

// FirmwareID identifies the running build; set at link time in
// production, a fixed string in tests.
var FirmwareID = "esp32-concierge-dev"

// MemoryReporter reports free heap memory, independent of any one
// allocator so this package stays hardware-agnostic.
type MemoryReporter interface {
	FreeBytes() uint64
}

// ClockStatus reports whether the real-time clock is synced and the
// active POSIX timezone string.
type ClockStatus interface {
	Synced() bool
	TimezonePOSIX() string
	NowEpoch() int64
}

// PhaseReporter reports the agent loop's current state-machine
// position, so get_health can show whether a turn is in flight.
type PhaseReporter interface {
	CurrentPhase() string
}

// VersionTool implements get_version.
type VersionTool struct{}

func (VersionTool) Name() string             { return "get_version" }
func (VersionTool) Description() string      { return "Return the running firmware identifier." }
func (VersionTool) Schema() json.RawMessage  { return json.RawMessage(`{"type":"object","properties":{}}`) }
func (VersionTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	return &agent.ToolResult{Content: FirmwareID}, nil
}

// HealthTool implements get_health.
type HealthTool struct {
	Memory MemoryReporter
	Clock  ClockStatus
	Rate   *ratelimit.Counter
	Loop   PhaseReporter
}

func (HealthTool) Name() string        { return "get_health" }
func (HealthTool) Description() string { return "Report firmware id, free memory, rate-limit usage, and clock sync status." }
func (HealthTool) Schema() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{}}`)
}

func (t *HealthTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	hour, day := 0, 0
	if t.Rate != nil {
		hour, day = t.Rate.Snapshot()
	}
	free := uint64(0)
	if t.Memory != nil {
		free = t.Memory.FreeBytes()
	}
	synced, tz := false, ""
	if t.Clock != nil {
		synced = t.Clock.Synced()
		tz = t.Clock.TimezonePOSIX()
	}
	phase := "unknown"
	if t.Loop != nil {
		phase = t.Loop.CurrentPhase()
	}
	content := fmt.Sprintf(
		"firmware=%s free_mem=%dB rate=%d/hr,%d/day clock_synced=%t tz=%s phase=%s",
		FirmwareID, free, hour, day, synced, tz, phase,
	)
	return &agent.ToolResult{Content: content}, nil
}

// TimeTool implements get_time: current epoch and whether the clock is
// synced, needed by the scheduler's "abort if not yet synced" rule.
type TimeTool struct{ Clock ClockStatus }

func (TimeTool) Name() string        { return "get_time" }
func (TimeTool) Description() string { return "Return the current epoch time and clock-sync status." }
func (TimeTool) Schema() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{}}`)
}

func (t *TimeTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	if t.Clock == nil {
		return &agent.ToolResult{Content: "clock unavailable", IsError: true}, nil
	}
	return &agent.ToolResult{
		Content: fmt.Sprintf("epoch=%d synced=%t", t.Clock.NowEpoch(), t.Clock.Synced()),
	}, nil
}
