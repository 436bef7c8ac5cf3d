package providers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/joaolucaswork/esp32-concierge/internal/backoff"
	"github.com/joaolucaswork/esp32-concierge/internal/llm"
	"github.com/joaolucaswork/esp32-concierge/pkg/models"
)

// OpenAIConfig configures the OpenAI-compatible adapter. OpenRouter is the
// same wire protocol against a different base URL and auth header value,
// so one adapter serves both vendor profiles (§6).
type OpenAIConfig struct {
	APIKey         string
	Model          string
	BaseURL        string // empty = api.openai.com; set for OpenRouter
	MaxRetries     int
	RetryBackoff   backoff.BackoffPolicy
	RequestTimeout time.Duration
}

// OpenAIProvider implements llm.Transport against the Chat Completions
// wire shape (assistant.tool_calls / tool-role messages).
type OpenAIProvider struct {
	client *openai.Client
	model  string
	cfg    OpenAIConfig
	logger *slog.Logger
}

// NewOpenAIProvider builds an adapter for OpenAI. BaseURL is left default.
func NewOpenAIProvider(cfg OpenAIConfig) (*OpenAIProvider, error) {
	return newOpenAICompatible(cfg, "llm.openai")
}

// NewOpenRouterProvider builds the same adapter pointed at OpenRouter's
// base URL (§6: OpenRouter is wire-compatible with the Chat Completions API).
func NewOpenRouterProvider(cfg OpenAIConfig) (*OpenAIProvider, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://openrouter.ai/api/v1"
	}
	return newOpenAICompatible(cfg, "llm.openrouter")
}

func newOpenAICompatible(cfg OpenAIConfig, component string) (*OpenAIProvider, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai: api key is required")
	}
	if cfg.Model == "" {
		cfg.Model = openai.GPT4oMini
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
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &OpenAIProvider{
		client: openai.NewClientWithConfig(clientCfg),
		model:  cfg.Model,
		cfg:    cfg,
		logger: slog.Default().With("component", component),
	}, nil
}

// Complete implements llm.Transport, non-streaming.
func (p *OpenAIProvider) Complete(ctx context.Context, req llm.Request) (models.Reply, error) {
	messages := convertMessagesOpenAI(req.History, req.System)
	tools := convertToolsOpenAI(req.Tools)

	chatReq := openai.ChatCompletionRequest{
		Model:    p.model,
		Messages: messages,
		Tools:    tools,
	}

	var lastErr error
	for attempt := 1; attempt <= p.cfg.MaxRetries+1; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, p.cfg.RequestTimeout)
		resp, err := p.client.CreateChatCompletion(callCtx, chatReq)
		cancel()
		if err == nil {
			return decodeChatCompletion(resp), nil
		}
		lastErr = err
		if !isRetryableOpenAI(err) || attempt > p.cfg.MaxRetries {
			break
		}
		p.logger.Warn("retrying after transient error", "attempt", attempt, "error", err)
		if sleepErr := backoff.SleepWithBackoff(ctx, p.cfg.RetryBackoff, attempt); sleepErr != nil {
			lastErr = sleepErr
			break
		}
	}
	return classifyErrorOpenAI(lastErr), nil
}

func isRetryableOpenAI(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests || apiErr.HTTPStatusCode >= 500
	}
	return true
}

func classifyErrorOpenAI(err error) models.Reply {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.HTTPStatusCode == http.StatusUnauthorized || apiErr.HTTPStatusCode == http.StatusForbidden:
			return models.Reply{Kind: models.ReplyError, Err: models.ErrAuth}
		case apiErr.HTTPStatusCode == http.StatusTooManyRequests:
			return models.Reply{Kind: models.ReplyError, Err: models.ErrRateLimitedByVendor}
		}
	}
	return models.Reply{Kind: models.ReplyError, Err: models.ErrTransport}
}

func convertMessagesOpenAI(history []models.Turn, system string) []openai.ChatCompletionMessage {
	result := make([]openai.ChatCompletionMessage, 0, len(history)+1)
	if system != "" {
		result = append(result, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: system})
	}
	for _, turn := range history {
		switch turn.Role {
		case models.RoleUser:
			result = append(result, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: turn.Content})
		case models.RoleAssistant:
			msg := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant}
			if turn.Tool != nil {
				msg.ToolCalls = []openai.ToolCall{{
					ID:   turn.Tool.CallID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      turn.Tool.Name,
						Arguments: turn.Content,
					},
				}}
			} else {
				msg.Content = turn.Content
			}
			result = append(result, msg)
		case models.RoleTool:
			callID := ""
			if turn.Tool != nil {
				callID = turn.Tool.CallID
			}
			result = append(result, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    turn.Content,
				ToolCallID: callID,
			})
		}
	}
	return result
}

func convertToolsOpenAI(tools []llm.ToolManifestEntry) []openai.Tool {
	result := make([]openai.Tool, 0, len(tools))
	for _, t := range tools {
		var params map[string]interface{}
		_ = json.Unmarshal(t.Schema, &params)
		result = append(result, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  params,
			},
		})
	}
	return result
}

func decodeChatCompletion(resp openai.ChatCompletionResponse) models.Reply {
	if len(resp.Choices) == 0 {
		return models.Reply{Kind: models.ReplyError, Err: models.ErrInvalidResponse}
	}
	msg := resp.Choices[0].Message
	if len(msg.ToolCalls) > 0 {
		tc := msg.ToolCalls[0]
		return models.Reply{
			Kind:         models.ReplyToolCall,
			ToolCallID:   tc.ID,
			ToolName:     tc.Function.Name,
			ToolArgsJSON: tc.Function.Arguments,
		}
	}
	if msg.Content == "" {
		return models.Reply{Kind: models.ReplyError, Err: models.ErrInvalidResponse}
	}
	return models.Reply{Kind: models.ReplyAssistantText, Text: msg.Content}
}
