// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package generate wraps the text-generation backends used by the research,
// critique and revision stages. Every failure surfaces as a
// *types.GenerationError so the coordinator can treat it uniformly.
package generate

import (
	"context"
	"fmt"
	"net/http"

	"github.com/pdiddy/research-coordinator/pkg/types"
)

// GenerateOptions tunes a single generation call. Zero values fall back to
// the backend defaults.
type GenerateOptions struct {
	System      string
	Temperature float64
	MaxTokens   int
}

// Generator produces free text for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error)
	Close() error
}

// New builds the generator selected by cfg.Provider. client may be nil, in
// which case one is created with cfg.Timeout.
func New(cfg types.GeneratorConfig, client *http.Client) (Generator, error) {
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("no API key configured for provider %q", cfg.Provider)
	}

	switch cfg.Provider {
	case types.ProviderAnthropic, "":
		return &ClaudeGenerator{
			APIKey:    cfg.APIKey,
			Model:     cfg.Model,
			BaseURL:   cfg.BaseURL,
			MaxTokens: cfg.MaxTokens,
			Client:    client,
		}, nil
	case types.ProviderOpenAI:
		return NewOpenAIGenerator(cfg, client), nil
	default:
		return nil, fmt.Errorf("unknown generator provider %q", cfg.Provider)
	}
}

// truncateBody shortens an error response body for inclusion in messages.
func truncateBody(body []byte) string {
	s := string(body)
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}
