// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"fmt"
	"net/http"

	"github.com/pdiddy/research-coordinator/pkg/types"
)

// NewSources builds the configured adapters in configuration order. All
// adapters share client.
func NewSources(cfg types.GatherConfig, client *http.Client) ([]Source, error) {
	if len(cfg.Sources) == 0 {
		return nil, fmt.Errorf("no data sources configured")
	}

	seen := make(map[types.SourceName]bool)
	var sources []Source
	for _, name := range cfg.Sources {
		if seen[name] {
			continue
		}
		seen[name] = true

		switch name {
		case types.SourceArxiv:
			sources = append(sources, &ArxivSource{Client: client, UserAgent: cfg.UserAgent})
		case types.SourceSemanticScholar:
			sources = append(sources, &SemanticScholarSource{Client: client, UserAgent: cfg.UserAgent, APIKey: cfg.SemanticScholarAPIKey})
		case types.SourceOpenAlex:
			sources = append(sources, &OpenAlexSource{Client: client, UserAgent: cfg.UserAgent, Email: cfg.OpenAlexEmail})
		case types.SourceWikipedia:
			sources = append(sources, &WikipediaSource{Client: client, UserAgent: cfg.UserAgent})
		case types.SourceWeb:
			sources = append(sources, &WebSource{Client: client, UserAgent: cfg.UserAgent, TavilyAPIKey: cfg.TavilyAPIKey})
		default:
			return nil, fmt.Errorf("unknown data source %q", name)
		}
	}
	return sources, nil
}
