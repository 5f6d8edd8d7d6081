// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/spf13/viper"

	"github.com/pdiddy/research-coordinator/internal/coordinator"
	"github.com/pdiddy/research-coordinator/internal/generate"
	"github.com/pdiddy/research-coordinator/internal/search"
	"github.com/pdiddy/research-coordinator/internal/secrets"
	"github.com/pdiddy/research-coordinator/internal/stage"
	"github.com/pdiddy/research-coordinator/internal/store"
	"github.com/pdiddy/research-coordinator/pkg/types"
)

// setDefaults registers every configuration key so that environment
// variables can override keys absent from the config file.
func setDefaults(v *viper.Viper) {
	d := types.DefaultConfig()

	v.SetDefault("store.path", d.Store.Path)
	v.SetDefault("log.level", d.LogLevel)
	v.SetDefault("http.user_agent", d.Gather.UserAgent)

	v.SetDefault("generator.provider", string(d.Generator.Provider))
	v.SetDefault("generator.model", d.Generator.Model)
	v.SetDefault("generator.base_url", d.Generator.BaseURL)
	v.SetDefault("generator.api_key", "")
	v.SetDefault("generator.max_tokens", d.Generator.MaxTokens)
	v.SetDefault("generator.timeout", d.Generator.Timeout)

	sources := make([]string, len(d.Gather.Sources))
	for i, s := range d.Gather.Sources {
		sources[i] = string(s)
	}
	v.SetDefault("gather.sources", sources)
	v.SetDefault("gather.timeout", d.Gather.Timeout)
	v.SetDefault("gather.call_timeout", d.Gather.CallTimeout)
	v.SetDefault("gather.results_per_query", d.Gather.ResultsPerQuery)
	v.SetDefault("gather.doc_chars", d.Gather.DocChars)
	v.SetDefault("gather.total_chars", d.Gather.TotalChars)
	v.SetDefault("gather.tavily_api_key", "")
	v.SetDefault("gather.semantic_scholar_api_key", "")
	v.SetDefault("gather.openalex_email", "")

	v.SetDefault("coordinator.threshold", d.Coordinator.Threshold)
	v.SetDefault("coordinator.max_retries", d.Coordinator.MaxRetries)
	v.SetDefault("coordinator.timeout", d.Coordinator.Timeout)
}

// loadConfig reads the typed configuration from v and fills missing
// credentials from s.
func loadConfig(v *viper.Viper, s secrets.Secrets) (types.Config, error) {
	cfg := types.Config{
		Store:    types.StoreConfig{Path: v.GetString("store.path")},
		LogLevel: v.GetString("log.level"),
	}
	userAgent := v.GetString("http.user_agent")

	cfg.Generator = types.GeneratorConfig{
		HTTPConfig: types.HTTPConfig{Timeout: v.GetDuration("generator.timeout"), UserAgent: userAgent},
		Provider:   types.GeneratorProvider(v.GetString("generator.provider")),
		Model:      v.GetString("generator.model"),
		APIKey:     v.GetString("generator.api_key"),
		BaseURL:    v.GetString("generator.base_url"),
		MaxTokens:  v.GetInt("generator.max_tokens"),
	}
	switch cfg.Generator.Provider {
	case types.ProviderAnthropic, types.ProviderOpenAI:
	default:
		return cfg, fmt.Errorf("generator.provider %q: want anthropic or openai", cfg.Generator.Provider)
	}

	cfg.Gather = types.GatherConfig{
		HTTPConfig:            types.HTTPConfig{Timeout: v.GetDuration("gather.timeout"), UserAgent: userAgent},
		CallTimeout:           v.GetDuration("gather.call_timeout"),
		ResultsPerQuery:       v.GetInt("gather.results_per_query"),
		DocChars:              v.GetInt("gather.doc_chars"),
		TotalChars:            v.GetInt("gather.total_chars"),
		TavilyAPIKey:          v.GetString("gather.tavily_api_key"),
		SemanticScholarAPIKey: v.GetString("gather.semantic_scholar_api_key"),
		OpenAlexEmail:         v.GetString("gather.openalex_email"),
	}
	for _, name := range v.GetStringSlice("gather.sources") {
		cfg.Gather.Sources = append(cfg.Gather.Sources, types.SourceName(name))
	}

	cfg.Coordinator = types.CoordinatorConfig{
		Threshold:  v.GetFloat64("coordinator.threshold"),
		MaxRetries: v.GetInt("coordinator.max_retries"),
		Timeout:    v.GetDuration("coordinator.timeout"),
	}
	if err := checkThreshold(cfg.Coordinator.Threshold); err != nil {
		return cfg, fmt.Errorf("coordinator.threshold: %w", err)
	}

	s.Apply(&cfg)
	return cfg, nil
}

// app holds the long-lived resources of one command invocation.
type app struct {
	cfg         types.Config
	store       *store.SQLiteStore
	generator   generate.Generator
	gatherer    *search.Gatherer
	coordinator *coordinator.Coordinator
}

// newGatherer builds the data sources and the gatherer from cfg.
func newGatherer(cfg types.GatherConfig, log *slog.Logger) (*search.Gatherer, error) {
	sources, err := search.NewSources(cfg, &http.Client{Timeout: cfg.Timeout})
	if err != nil {
		return nil, err
	}
	return search.NewGatherer(sources, cfg, log), nil
}

// newApp opens the store and builds the generation pipeline. The caller
// must call close.
func newApp(cfg types.Config, log *slog.Logger, metrics *coordinator.Metrics) (*app, error) {
	gatherer, err := newGatherer(cfg.Gather, log)
	if err != nil {
		return nil, err
	}
	gen, err := generate.New(cfg.Generator, &http.Client{Timeout: cfg.Generator.Timeout})
	if err != nil {
		return nil, err
	}
	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		gen.Close()
		return nil, err
	}

	c := coordinator.New(st,
		&stage.ResearchStage{Gatherer: gatherer, Generator: gen, Limits: search.LimitsFromConfig(cfg.Gather), Logger: log},
		&stage.CritiqueStage{Generator: gen},
		&stage.RevisionStage{Generator: gen},
	)
	c.Defaults = coordinator.RunOptionsFromConfig(cfg.Coordinator)
	c.Logger = log
	c.Metrics = metrics

	return &app{cfg: cfg, store: st, generator: gen, gatherer: gatherer, coordinator: c}, nil
}

func (a *app) close() {
	if err := a.generator.Close(); err != nil {
		logger.Warn("closing generator", slog.Any("error", err))
	}
	if err := a.store.Close(); err != nil {
		logger.Warn("closing store", slog.Any("error", err))
	}
}

// openStore opens only the task store, for the inspection commands.
func openStore() (*store.SQLiteStore, error) {
	return store.Open(viper.GetString("store.path"))
}

// checkThreshold rejects acceptance thresholds outside (0, 10]. Zero is
// refused because the coordinator reads it as "use the default".
func checkThreshold(t float64) error {
	if t <= types.MinScore || t > types.MaxScore {
		return fmt.Errorf("threshold %.2f must be in (%.0f,%.0f]", t, types.MinScore, types.MaxScore)
	}
	return nil
}
