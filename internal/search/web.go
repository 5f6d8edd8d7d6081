// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/pdiddy/research-coordinator/pkg/types"
)

// Web search endpoints. Declared as vars so tests can substitute httptest servers.
var (
	tavilyAPIURL     = "https://api.tavily.com/search"
	duckDuckGoAPIURL = "https://api.duckduckgo.com/"
)

// WebSource searches the general web. With a Tavily key it queries Tavily
// first and falls back to DuckDuckGo instant answers when Tavily fails or
// finds nothing.
type WebSource struct {
	Client       *http.Client
	UserAgent    string
	TavilyAPIKey string
}

// Name returns the source identifier.
func (s *WebSource) Name() string { return string(types.SourceWeb) }

// Origin returns web.
func (s *WebSource) Origin() types.Origin { return types.OriginWeb }

// Search returns up to limit web documents.
func (s *WebSource) Search(ctx context.Context, query string, limit int) ([]types.SourceDocument, error) {
	var tavilyErr error
	if s.TavilyAPIKey != "" {
		docs, err := s.searchTavily(ctx, query, limit)
		if err == nil && len(docs) > 0 {
			return docs, nil
		}
		tavilyErr = err
	}

	docs, err := s.searchDuckDuckGo(ctx, query, limit)
	if err != nil {
		if tavilyErr != nil {
			return nil, errors.Join(tavilyErr, err)
		}
		return nil, err
	}
	return docs, nil
}

type tavilyRequest struct {
	APIKey            string `json:"api_key"`
	Query             string `json:"query"`
	MaxResults        int    `json:"max_results"`
	IncludeAnswer     bool   `json:"include_answer"`
	IncludeRawContent bool   `json:"include_raw_content"`
}

type tavilyResponse struct {
	Results []struct {
		Title   string  `json:"title"`
		URL     string  `json:"url"`
		Content string  `json:"content"`
		Score   float64 `json:"score"`
	} `json:"results"`
}

func (s *WebSource) searchTavily(ctx context.Context, query string, limit int) ([]types.SourceDocument, error) {
	body, err := json.Marshal(tavilyRequest{
		APIKey:     s.TavilyAPIKey,
		Query:      query,
		MaxResults: limit,
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling Tavily request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tavilyAPIURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", s.UserAgent)

	resp, err := clientOrDefault(s.Client).Do(req)
	if err != nil {
		return nil, fmt.Errorf("Tavily API request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("Tavily API returned HTTP %d", resp.StatusCode)
	}

	var tr tavilyResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return nil, fmt.Errorf("parsing Tavily response: %w", err)
	}

	var docs []types.SourceDocument
	for _, r := range tr.Results {
		if len(docs) == limit {
			break
		}
		docs = append(docs, types.SourceDocument{
			Origin:  types.OriginWeb,
			Source:  "tavily",
			Title:   r.Title,
			URL:     r.URL,
			Snippet: collapseSpace(r.Content),
		})
	}
	return docs, nil
}

// DuckDuckGo instant answer JSON structures. RelatedTopics mixes plain
// topics with named groups that nest further topics.
type ddgResponse struct {
	Heading       string     `json:"Heading"`
	AbstractText  string     `json:"AbstractText"`
	AbstractURL   string     `json:"AbstractURL"`
	RelatedTopics []ddgTopic `json:"RelatedTopics"`
}

type ddgTopic struct {
	Text     string     `json:"Text"`
	FirstURL string     `json:"FirstURL"`
	Result   string     `json:"Result"`
	Name     string     `json:"Name"`
	Topics   []ddgTopic `json:"Topics"`
}

func (s *WebSource) searchDuckDuckGo(ctx context.Context, query string, limit int) ([]types.SourceDocument, error) {
	params := url.Values{
		"q":             {query},
		"format":        {"json"},
		"no_html":       {"1"},
		"skip_disambig": {"1"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, duckDuckGoAPIURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", s.UserAgent)

	resp, err := clientOrDefault(s.Client).Do(req)
	if err != nil {
		return nil, fmt.Errorf("DuckDuckGo API request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("DuckDuckGo API returned HTTP %d", resp.StatusCode)
	}

	var dr ddgResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return nil, fmt.Errorf("parsing DuckDuckGo response: %w", err)
	}

	var docs []types.SourceDocument
	if dr.AbstractText != "" {
		title := dr.Heading
		if title == "" {
			title = query
		}
		docs = append(docs, types.SourceDocument{
			Origin:  types.OriginWeb,
			Source:  "duckduckgo",
			Title:   title,
			URL:     dr.AbstractURL,
			Snippet: dr.AbstractText,
		})
	}

	var walk func(topics []ddgTopic)
	walk = func(topics []ddgTopic) {
		for _, t := range topics {
			if len(docs) >= limit {
				return
			}
			if len(t.Topics) > 0 {
				walk(t.Topics)
				continue
			}
			if t.Text == "" {
				continue
			}
			docs = append(docs, types.SourceDocument{
				Origin:  types.OriginWeb,
				Source:  "duckduckgo",
				Title:   ddgTitle(t),
				URL:     t.FirstURL,
				Snippet: t.Text,
			})
		}
	}
	walk(dr.RelatedTopics)

	if len(docs) > limit {
		docs = docs[:limit]
	}
	return docs, nil
}

// ddgTitle prefers the anchor text of the Result HTML and falls back to the
// first 100 characters of the topic text.
func ddgTitle(t ddgTopic) string {
	if t.Result != "" {
		if text, _ := firstAnchor(t.Result); text != "" {
			return text
		}
	}
	title, _ := truncateRunes(t.Text, 100)
	return title
}
