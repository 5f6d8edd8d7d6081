// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// HTTPConfig holds shared HTTP settings used by data sources and generators.
type HTTPConfig struct {
	// Timeout is the HTTP client timeout. Per-call gather deadlines are
	// applied separately through the request context.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "research-coordinator/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// SourceName identifies a data source adapter.
type SourceName string

const (
	SourceArxiv           SourceName = "arxiv"
	SourceSemanticScholar SourceName = "semantic_scholar"
	SourceOpenAlex        SourceName = "openalex"
	SourceWikipedia       SourceName = "wikipedia"
	SourceWeb             SourceName = "web"
)

// GatherConfig holds settings for the concurrent data-gathering step.
type GatherConfig struct {
	HTTPConfig `yaml:",inline"`

	// Sources lists the enabled adapters in merge order.
	Sources []SourceName `json:"sources" yaml:"sources"`

	// CallTimeout bounds each individual source call (default 30s).
	CallTimeout time.Duration `json:"call_timeout" yaml:"call_timeout"`

	// ResultsPerQuery is the limit passed to each source call (default 5).
	ResultsPerQuery int `json:"results_per_query" yaml:"results_per_query"`

	// DocChars caps the snippet length of a single document (default 1500).
	DocChars int `json:"doc_chars" yaml:"doc_chars"`

	// TotalChars caps the snippet volume passed to the generator (default 12000).
	TotalChars int `json:"total_chars" yaml:"total_chars"`

	// SemanticScholarAPIKey is an optional API key for higher rate limits.
	SemanticScholarAPIKey string `json:"semantic_scholar_api_key,omitempty" yaml:"semantic_scholar_api_key,omitempty"`

	// TavilyAPIKey enables the Tavily web search backend; without it the web
	// source uses DuckDuckGo instant answers only.
	TavilyAPIKey string `json:"tavily_api_key,omitempty" yaml:"tavily_api_key,omitempty"`

	// OpenAlexEmail is sent as the mailto parameter for polite pool access.
	OpenAlexEmail string `json:"openalex_email,omitempty" yaml:"openalex_email,omitempty"`
}

// GeneratorProvider selects the text generation backend.
type GeneratorProvider string

const (
	ProviderAnthropic GeneratorProvider = "anthropic"
	ProviderOpenAI    GeneratorProvider = "openai"
)

// GeneratorConfig holds settings for the text generation backend.
type GeneratorConfig struct {
	HTTPConfig `yaml:",inline"`

	// Provider selects anthropic (Claude Messages API) or openai (any
	// OpenAI-compatible chat completions endpoint, Groq by default).
	Provider GeneratorProvider `json:"provider" yaml:"provider"`

	// Model is the model identifier (e.g. "claude-sonnet-4-5-20250929").
	Model string `json:"model" yaml:"model"`

	// APIKey is the authentication key for the API.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// BaseURL overrides the API endpoint.
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty"`

	// MaxTokens caps the response length (default 4096).
	MaxTokens int `json:"max_tokens" yaml:"max_tokens"`
}

// CoordinatorConfig holds the default per-run options.
type CoordinatorConfig struct {
	// Threshold is the quality gate score (default 7.0).
	Threshold float64 `json:"threshold" yaml:"threshold"`

	// MaxRetries bounds the number of revisions (default 3).
	MaxRetries int `json:"max_retries" yaml:"max_retries"`

	// Timeout bounds a whole run (default 10m).
	Timeout time.Duration `json:"timeout" yaml:"timeout"`
}

// StoreConfig holds settings for the task store.
type StoreConfig struct {
	// Path is the SQLite database file (default "data/research.db").
	Path string `json:"path" yaml:"path"`
}

// Config groups all settings for the application.
type Config struct {
	Gather      GatherConfig      `json:"gather" yaml:"gather"`
	Generator   GeneratorConfig   `json:"generator" yaml:"generator"`
	Coordinator CoordinatorConfig `json:"coordinator" yaml:"coordinator"`
	Store       StoreConfig       `json:"store" yaml:"store"`
	LogLevel    string            `json:"log_level" yaml:"log_level"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	httpCfg := HTTPConfig{
		Timeout:   60 * time.Second,
		UserAgent: "research-coordinator/0.1",
	}
	return Config{
		Gather: GatherConfig{
			HTTPConfig: httpCfg,
			Sources: []SourceName{
				SourceArxiv, SourceSemanticScholar, SourceOpenAlex,
				SourceWikipedia, SourceWeb,
			},
			CallTimeout:     30 * time.Second,
			ResultsPerQuery: 5,
			DocChars:        1500,
			TotalChars:      12000,
		},
		Generator: GeneratorConfig{
			HTTPConfig: HTTPConfig{Timeout: 120 * time.Second, UserAgent: httpCfg.UserAgent},
			Provider:   ProviderAnthropic,
			Model:      "claude-sonnet-4-5-20250929",
			MaxTokens:  4096,
		},
		Coordinator: CoordinatorConfig{
			Threshold:  7.0,
			MaxRetries: DefaultMaxRetries,
			Timeout:    10 * time.Minute,
		},
		Store: StoreConfig{
			Path: "data/research.db",
		},
		LogLevel: "info",
	}
}
