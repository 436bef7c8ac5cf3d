package models

import "regexp"

// MaxUserTools is the cap on persisted user-defined tools (K≤16).
const MaxUserTools = 16

// MaxToolResultBytes bounds a handler's result buffer (§4.D).
const MaxToolResultBytes = 512

var toolNamePattern = regexp.MustCompile(`^[A-Za-z0-9_]{1,32}$`)

// ValidToolName reports whether name satisfies the tool naming contract.
func ValidToolName(name string) bool {
	return toolNamePattern.MatchString(name)
}

// UserTool is the persisted {name, description, action-text} triplet for a
// user-defined tool (§3). Action text is re-submitted as a fresh directive
// inside a bounded sub-loop when the tool is invoked (§9).
type UserTool struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Action      string `yaml:"action"`
}

// TruncateResult applies the 512-byte buffer contract with a "…" marker.
func TruncateResult(s string) string {
	if len(s) <= MaxToolResultBytes {
		return s
	}
	return s[:MaxToolResultBytes-len("…")] + "…"
}
