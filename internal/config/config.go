// Package config provides typed accessors over the persistent store's
// config-bearing namespaces (§6 persistent config keys), split by
// concern the way the teacher splits its config package into
// config_*.go files, one per subsystem.
package config

import (
	"context"
	"fmt"
	"strings"

	"github.com/joaolucaswork/esp32-concierge/internal/store"
	"github.com/joaolucaswork/esp32-concierge/pkg/models"
)

const (
	keyProvider = "provider"
	keyAPIKey   = "api_key"
	keyModel    = "model"
	keyBaseURL  = "base_url"
)

// LLM is the vendor profile selected once at startup (§3, §9): which
// provider to dial, its credential, and model id. BaseURL is optional
// and lets an OpenAI-compatible endpoint (OpenRouter, self-hosted) be
// reached without a rebuild (§6 expansion).
type LLM struct {
	Provider models.Vendor
	APIKey   string
	Model    string
	BaseURL  string
}

// LoadLLM reads the LLM vendor profile. A missing key yields the zero
// value for that field rather than an error; callers decide whether an
// empty Provider means "not configured".
func LoadLLM(ctx context.Context, s store.Store) (LLM, error) {
	var cfg LLM
	provider, err := getOptional(ctx, s, store.NamespaceLLMConfig, keyProvider)
	if err != nil {
		return cfg, err
	}
	cfg.Provider = models.Vendor(provider)

	apiKey, err := getOptional(ctx, s, store.NamespaceLLMConfig, keyAPIKey)
	if err != nil {
		return cfg, err
	}
	cfg.APIKey = apiKey

	model, err := getOptional(ctx, s, store.NamespaceLLMConfig, keyModel)
	if err != nil {
		return cfg, err
	}
	cfg.Model = model

	baseURL, err := getOptional(ctx, s, store.NamespaceLLMConfig, keyBaseURL)
	if err != nil {
		return cfg, err
	}
	cfg.BaseURL = baseURL
	return cfg, nil
}

// SaveLLM persists the vendor profile. An empty BaseURL is stored as
// such (not omitted) so a previously-set override can be cleared.
func SaveLLM(ctx context.Context, s store.Store, cfg LLM) error {
	if cfg.Provider != models.VendorAnthropic && cfg.Provider != models.VendorOpenAI && cfg.Provider != models.VendorOpenRouter {
		return fmt.Errorf("config: unknown llm provider %q", cfg.Provider)
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return fmt.Errorf("config: llm api key is required")
	}
	if err := s.Put(ctx, store.NamespaceLLMConfig, keyProvider, []byte(cfg.Provider)); err != nil {
		return err
	}
	if err := s.Put(ctx, store.NamespaceLLMConfig, keyAPIKey, []byte(cfg.APIKey)); err != nil {
		return err
	}
	if err := s.Put(ctx, store.NamespaceLLMConfig, keyModel, []byte(cfg.Model)); err != nil {
		return err
	}
	return s.Put(ctx, store.NamespaceLLMConfig, keyBaseURL, []byte(cfg.BaseURL))
}

func getOptional(ctx context.Context, s store.Store, namespace, key string) (string, error) {
	value, err := s.Get(ctx, namespace, key)
	if err == store.ErrNotFound {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return string(value), nil
}
