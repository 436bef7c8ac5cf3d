// Package llm implements the vendor-agnostic LLM transport (§4.E): a
// unified Complete() surface over three incompatible wire protocols
// (Anthropic Messages API, OpenAI/OpenRouter Chat Completions API), with
// a bounded request size and vendor-internal retry/backoff.
package llm

import (
	"context"
	"encoding/json"

	"github.com/joaolucaswork/esp32-concierge/pkg/models"
)

// MaxRequestBytes is the 12KB request budget FitRequest trims history
// to. MaxResponseBytes names a 16KB response bound, but the vendor
// adapters read responses through their SDK clients without applying
// it, and no adapter produces a Truncated reply for an oversized body.
const (
	MaxRequestBytes  = 12 * 1024
	MaxResponseBytes = 16 * 1024
)

// ToolManifestEntry is one tool's description as passed into a request,
// independent of the agent package's Tool interface so this package never
// imports agent (cycle-breaking rule, §9).
type ToolManifestEntry struct {
	Name        string
	Description string
	Schema      json.RawMessage
}

// Request is a vendor-agnostic completion request. Transport never
// mutates the history it is given (§4.E).
type Request struct {
	History []models.Turn
	System  string
	Tools   []ToolManifestEntry
}

// Transport is the unified surface every vendor adapter implements.
type Transport interface {
	Complete(ctx context.Context, req Request) (models.Reply, error)
}
