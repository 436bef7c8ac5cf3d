// Package gpio implements the gpio_set built-in tool (§4.D).
package gpio

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/joaolucaswork/esp32-concierge/internal/agent"
)

// PinController is the hardware driver seam. A simulated implementation
// backs host-side tests; production wiring comes from outside this
// module's scope (physical GPIO drivers are OUT OF SCOPE, §1).
type PinController interface {
	SetPin(ctx context.Context, pin int, level int) error
}

// Allowlist validates a pin against a configured range or CSV allow-list.
type Allowlist struct {
	Min, Max int
	Allowed  []int // if non-empty, takes precedence over Min/Max
}

func (a Allowlist) Contains(pin int) bool {
	if len(a.Allowed) > 0 {
		for _, p := range a.Allowed {
			if p == pin {
				return true
			}
		}
		return false
	}
	return pin >= a.Min && pin <= a.Max
}

func (a Allowlist) Describe() string {
	if len(a.Allowed) > 0 {
		parts := make([]string, len(a.Allowed))
		for i, p := range a.Allowed {
			parts[i] = strconv.Itoa(p)
		}
		return "{" + strings.Join(parts, ",") + "}"
	}
	return fmt.Sprintf("[%d,%d]", a.Min, a.Max)
}

// Tool implements gpio_set.
type Tool struct {
	controller PinController
	allowlist  Allowlist
}

func New(controller PinController, allowlist Allowlist) *Tool {
	return &Tool{controller: controller, allowlist: allowlist}
}

func (t *Tool) Name() string        { return "gpio_set" }
func (t *Tool) Description() string { return "Set a GPIO pin to a logic level (0 or 1)." }

func (t *Tool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"pin": {"type": "integer", "description": "GPIO pin number"},
			"level": {"type": "integer", "enum": [0, 1], "description": "0=low, 1=high"}
		},
		"required": ["pin", "level"]
	}`)
}

func (t *Tool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	var input struct {
		Pin   int `json:"pin"`
		Level int `json:"level"`
	}
	if err := json.Unmarshal(params, &input); err != nil {
		return errResult(fmt.Sprintf("invalid parameters: %v", err)), nil
	}
	if !t.allowlist.Contains(input.Pin) {
		return errResult(fmt.Sprintf("pin %d not allowed; allowed set is %s", input.Pin, t.allowlist.Describe())), nil
	}
	if input.Level != 0 && input.Level != 1 {
		return errResult("level must be 0 or 1"), nil
	}
	if err := t.controller.SetPin(ctx, input.Pin, input.Level); err != nil {
		return errResult(fmt.Sprintf("driver error: %v", err)), nil
	}
	state := "LOW"
	if input.Level == 1 {
		state = "HIGH"
	}
	return &agent.ToolResult{Content: fmt.Sprintf("GPIO %d = %s", input.Pin, state)}, nil
}

func errResult(msg string) *agent.ToolResult {
	return &agent.ToolResult{Content: msg, IsError: true}
}
