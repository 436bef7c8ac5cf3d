// Package providers implements the per-vendor adapters behind
// llm.Transport: Anthropic Messages API and the OpenAI-compatible Chat
// Completions API shared by OpenAI and OpenRouter (§4.E, §6).
package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/joaolucaswork/esp32-concierge/internal/backoff"
	"github.com/joaolucaswork/esp32-concierge/internal/llm"
	"github.com/joaolucaswork/esp32-concierge/pkg/models"
)

// AnthropicConfig configures the Anthropic adapter.
type AnthropicConfig struct {
	APIKey       string
	Model        string
	BaseURL      string
	MaxRetries   int
	RetryBackoff backoff.BackoffPolicy
	RequestTimeout time.Duration
}

// AnthropicProvider implements llm.Transport against the Anthropic
// Messages API (single `messages` array, tool_use/tool_result blocks).
type AnthropicProvider struct {
	client client
	model  string
	cfg    AnthropicConfig
	logger *slog.Logger
}

// client narrows the generated SDK surface to what this adapter calls, so
// tests can substitute a fake.
type client interface {
	NewMessage(ctx context.Context, params anthropic.MessageNewParams) (*anthropic.Message, error)
}

type sdkClient struct{ anthropic.Client }

func (c sdkClient) NewMessage(ctx context.Context, params anthropic.MessageNewParams) (*anthropic.Message, error) {
	return c.Messages.New(ctx, params)
}

// NewAnthropicProvider validates config and constructs an adapter.
func NewAnthropicProvider(cfg AnthropicConfig) (*AnthropicProvider, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("anthropic: api key is required")
	}
	if cfg.Model == "" {
		cfg.Model = "claude-3-5-haiku-latest"
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryBackoff == (backoff.BackoffPolicy{}) {
		cfg.RetryBackoff = backoff.BackoffPolicy{InitialMs: 1000, MaxMs: 30000, Factor: 2, Jitter: 0.25}
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &AnthropicProvider{
		client: sdkClient{anthropic.NewClient(opts...)},
		model:  cfg.Model,
		cfg:    cfg,
		logger: slog.Default().With("component", "llm.anthropic"),
	}, nil
}

// Complete implements llm.Transport. It is non-streaming: the agent loop
// never needs token-level output (streaming is an explicit Non-goal).
func (p *AnthropicProvider) Complete(ctx context.Context, req llm.Request) (models.Reply, error) {
	messages, err := convertMessages(req.History)
	if err != nil {
		return models.Reply{}, err
	}
	tools, err := convertTools(req.Tools)
	if err != nil {
		return models.Reply{}, err
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model),
		MaxTokens: 1024,
		Messages:  messages,
		Tools:     tools,
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}

	var lastErr error
	for attempt := 1; attempt <= p.cfg.MaxRetries+1; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, p.cfg.RequestTimeout)
		msg, err := p.client.NewMessage(callCtx, params)
		cancel()
		if err == nil {
			return decodeMessage(msg), nil
		}
		lastErr = err
		if !isRetryable(err) || attempt > p.cfg.MaxRetries {
			break
		}
		p.logger.Warn("retrying after transient error", "attempt", attempt, "error", err)
		if sleepErr := backoff.SleepWithBackoff(ctx, p.cfg.RetryBackoff, attempt); sleepErr != nil {
			lastErr = sleepErr
			break
		}
	}
	return classifyError(lastErr), nil
}

func isRetryable(err error) bool {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		status := apiErr.StatusCode
		return status == http.StatusTooManyRequests || status >= 500
	}
	return true // transport-level (timeout, connection reset) is retryable
}

func classifyError(err error) models.Reply {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden:
			return models.Reply{Kind: models.ReplyError, Err: models.ErrAuth}
		case apiErr.StatusCode == http.StatusTooManyRequests:
			return models.Reply{Kind: models.ReplyError, Err: models.ErrRateLimitedByVendor}
		}
	}
	return models.Reply{Kind: models.ReplyError, Err: models.ErrTransport}
}

func convertMessages(history []models.Turn) ([]anthropic.MessageParam, error) {
	result := make([]anthropic.MessageParam, 0, len(history))
	for _, turn := range history {
		switch turn.Role {
		case models.RoleUser:
			result = append(result, anthropic.NewUserMessage(anthropic.NewTextBlock(turn.Content)))
		case models.RoleAssistant:
			if turn.Tool != nil {
				var input map[string]interface{}
				_ = json.Unmarshal([]byte(turn.Content), &input)
				result = append(result, anthropic.NewAssistantMessage(
					anthropic.NewToolUseBlock(turn.Tool.CallID, input, turn.Tool.Name),
				))
			} else {
				result = append(result, anthropic.NewAssistantMessage(anthropic.NewTextBlock(turn.Content)))
			}
		case models.RoleTool:
			callID := ""
			if turn.Tool != nil {
				callID = turn.Tool.CallID
			}
			result = append(result, anthropic.NewUserMessage(
				anthropic.NewToolResultBlock(callID, turn.Content, false),
			))
		}
	}
	return result, nil
}

func convertTools(tools []llm.ToolManifestEntry) ([]anthropic.ToolUnionParam, error) {
	result := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, t := range tools {
		var schema anthropic.ToolInputSchemaParam
		if err := json.Unmarshal(t.Schema, &schema); err != nil {
			return nil, fmt.Errorf("anthropic: tool %q schema: %w", t.Name, err)
		}
		toolParam := anthropic.ToolUnionParamOfTool(schema, t.Name)
		toolParam.OfTool.Description = anthropic.String(t.Description)
		result = append(result, toolParam)
	}
	return result, nil
}

func decodeMessage(msg *anthropic.Message) models.Reply {
	for _, block := range msg.Content {
		if tu := block.AsToolUse(); tu.ID != "" {
			args, _ := json.Marshal(tu.Input)
			return models.Reply{
				Kind:         models.ReplyToolCall,
				ToolCallID:   tu.ID,
				ToolName:     tu.Name,
				ToolArgsJSON: string(args),
			}
		}
	}
	var text string
	for _, block := range msg.Content {
		if t := block.AsText(); t.Text != "" {
			text += t.Text
		}
	}
	if text == "" {
		return models.Reply{Kind: models.ReplyError, Err: models.ErrInvalidResponse}
	}
	return models.Reply{Kind: models.ReplyAssistantText, Text: text}
}
