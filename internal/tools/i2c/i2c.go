// Package i2c implements the i2c_scan built-in tool (§4.D).
package i2c

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/joaolucaswork/esp32-concierge/internal/agent"
)

// BusScanner is the hardware driver seam for an I2C bus. Open must be
// paired with exactly one Close on every exit path (success, validation
// failure, per-address failure), per §4.D.
type BusScanner interface {
	Open(ctx context.Context, sdaPin, sclPin int, frequencyHz int) (Bus, error)
}

// Bus is a handle to an opened I2C bus.
type Bus interface {
	// Probe reports whether a 7-bit device address responds.
	Probe(ctx context.Context, address int) (bool, error)
	Close() error
}

type Allowlist struct {
	Allowed []int
}

func (a Allowlist) Contains(pin int) bool {
	for _, p := range a.Allowed {
		if p == pin {
			return true
		}
	}
	return false
}

func (a Allowlist) Describe() string {
	parts := make([]string, len(a.Allowed))
	for i, p := range a.Allowed {
		parts[i] = strconv.Itoa(p)
	}
	return "{" + strings.Join(parts, ",") + "}"
}

// Tool implements i2c_scan.
type Tool struct {
	scanner   BusScanner
	allowlist Allowlist
}

func New(scanner BusScanner, allowlist Allowlist) *Tool {
	return &Tool{scanner: scanner, allowlist: allowlist}
}

func (t *Tool) Name() string { return "i2c_scan" }
func (t *Tool) Description() string {
	return "Scan an I2C bus for responding 7-bit device addresses."
}

func (t *Tool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"sda_pin": {"type": "integer"},
			"scl_pin": {"type": "integer"},
			"frequency_hz": {"type": "integer", "minimum": 10000, "maximum": 1000000}
		},
		"required": ["sda_pin", "scl_pin", "frequency_hz"]
	}`)
}

func (t *Tool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	var input struct {
		SDAPin      int `json:"sda_pin"`
		SCLPin      int `json:"scl_pin"`
		FrequencyHz int `json:"frequency_hz"`
	}
	if err := json.Unmarshal(params, &input); err != nil {
		return errResult(fmt.Sprintf("invalid parameters: %v", err)), nil
	}
	if input.SDAPin == input.SCLPin {
		return errResult("sda_pin and scl_pin must differ"), nil
	}
	if !t.allowlist.Contains(input.SDAPin) || !t.allowlist.Contains(input.SCLPin) {
		return errResult(fmt.Sprintf("pins must be in allowed set %s", t.allowlist.Describe())), nil
	}
	if input.FrequencyHz < 10000 || input.FrequencyHz > 1000000 {
		return errResult("frequency_hz must be between 10kHz and 1MHz"), nil
	}

	bus, err := t.scanner.Open(ctx, input.SDAPin, input.SCLPin, input.FrequencyHz)
	if err != nil {
		return errResult(fmt.Sprintf("open failed: %v", err)), nil
	}
	// Every exit path from here tears the handle down exactly once.
	defer bus.Close()

	found := make([]string, 0, 8)
	for addr := 0x08; addr <= 0x77; addr++ {
		ok, err := bus.Probe(ctx, addr)
		if err != nil {
			continue // per-address failure: skip, bus is still torn down by defer
		}
		if ok {
			found = append(found, fmt.Sprintf("0x%02X", addr))
		}
	}
	return &agent.ToolResult{Content: strings.Join(found, ",")}, nil
}

func errResult(msg string) *agent.ToolResult {
	return &agent.ToolResult{Content: msg, IsError: true}
}
