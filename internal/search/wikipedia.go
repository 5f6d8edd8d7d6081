// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/pdiddy/research-coordinator/internal/httputil"
	"github.com/pdiddy/research-coordinator/pkg/types"
)

// wikipediaAPIBase is the MediaWiki action API endpoint. Declared as a var
// so tests can substitute an httptest server.
var wikipediaAPIBase = "https://en.wikipedia.org/w/api.php"

// wikipediaPageBase prefixes article titles to form page URLs.
const wikipediaPageBase = "https://en.wikipedia.org/wiki/"

// WikipediaSource searches English Wikipedia articles.
type WikipediaSource struct {
	Client    *http.Client
	UserAgent string
}

// Name returns the source identifier.
func (s *WikipediaSource) Name() string { return string(types.SourceWikipedia) }

// Origin returns encyclopedia.
func (s *WikipediaSource) Origin() types.Origin { return types.OriginEncyclopedia }

// Search runs a full-text article search and returns cleaned snippets.
func (s *WikipediaSource) Search(ctx context.Context, query string, limit int) ([]types.SourceDocument, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("empty Wikipedia query")
	}

	params := url.Values{
		"action":        {"query"},
		"list":          {"search"},
		"srsearch":      {query},
		"srlimit":       {strconv.Itoa(limit)},
		"format":        {"json"},
		"utf8":          {"1"},
		"formatversion": {"2"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, wikipediaAPIBase+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", s.UserAgent)

	resp, err := httputil.DoWithRetry(ctx, clientOrDefault(s.Client), req, 2)
	if err != nil {
		return nil, fmt.Errorf("Wikipedia API request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("Wikipedia API returned HTTP %d", resp.StatusCode)
	}

	var wr wikipediaResponse
	if err := json.NewDecoder(resp.Body).Decode(&wr); err != nil {
		return nil, fmt.Errorf("parsing Wikipedia response: %w", err)
	}
	if wr.Error != nil {
		return nil, fmt.Errorf("Wikipedia API error %s: %s", wr.Error.Code, wr.Error.Info)
	}

	var docs []types.SourceDocument
	for _, item := range wr.Query.Search {
		if item.Title == "" {
			continue
		}
		docs = append(docs, types.SourceDocument{
			Origin:  types.OriginEncyclopedia,
			Source:  s.Name(),
			Title:   item.Title,
			Snippet: plainText(item.Snippet),
			URL:     wikipediaPageURL(item.Title),
		})
	}
	return docs, nil
}

func wikipediaPageURL(title string) string {
	return wikipediaPageBase + url.PathEscape(strings.ReplaceAll(title, " ", "_"))
}

// MediaWiki API JSON structures (formatversion=2).
type wikipediaResponse struct {
	Query struct {
		Search []wikipediaHit `json:"search"`
	} `json:"query"`
	Error *struct {
		Code string `json:"code"`
		Info string `json:"info"`
	} `json:"error"`
}

type wikipediaHit struct {
	Title   string `json:"title"`
	PageID  int    `json:"pageid"`
	Snippet string `json:"snippet"`
}
