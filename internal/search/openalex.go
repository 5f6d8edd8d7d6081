// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pdiddy/research-coordinator/pkg/types"
)

// openAlexSearchBase is the OpenAlex Works search endpoint. Declared as a
// var so tests can substitute an httptest server.
var openAlexSearchBase = "https://api.openalex.org/works"

const openAlexMaxPerPage = 200

// OpenAlexSource queries the OpenAlex works index.
type OpenAlexSource struct {
	Client    *http.Client
	UserAgent string
	// Email is sent as mailto parameter for polite pool access.
	Email string
}

// Name returns the source identifier.
func (s *OpenAlexSource) Name() string { return string(types.SourceOpenAlex) }

// Origin returns academic.
func (s *OpenAlexSource) Origin() types.Origin { return types.OriginAcademic }

// Search queries OpenAlex and returns works in relevance order.
func (s *OpenAlexSource) Search(ctx context.Context, query string, limit int) ([]types.SourceDocument, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("empty OpenAlex query")
	}
	if limit > openAlexMaxPerPage {
		limit = openAlexMaxPerPage
	}

	params := url.Values{
		"search":   {query},
		"per_page": {strconv.Itoa(limit)},
		"page":     {"1"},
	}
	if s.Email != "" {
		params.Set("mailto", s.Email)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, openAlexSearchBase+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", s.UserAgent)

	resp, err := clientOrDefault(s.Client).Do(req)
	if err != nil {
		return nil, fmt.Errorf("OpenAlex API request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("OpenAlex API returned HTTP %d", resp.StatusCode)
	}

	var oar openAlexResponse
	if err := json.NewDecoder(resp.Body).Decode(&oar); err != nil {
		return nil, fmt.Errorf("parsing OpenAlex response: %w", err)
	}

	var docs []types.SourceDocument
	for _, work := range oar.Results {
		d := types.SourceDocument{
			Origin:  types.OriginAcademic,
			Source:  s.Name(),
			Title:   work.Title,
			Snippet: reconstructAbstract(work.AbstractInvertedIndex),
			URL:     work.DOI,
		}
		if d.URL == "" {
			d.URL = work.ID
		}
		for _, authorship := range work.Authorships {
			if authorship.Author.DisplayName != "" {
				d.Authors = append(d.Authors, authorship.Author.DisplayName)
			}
		}
		for _, c := range work.Concepts {
			d.Categories = append(d.Categories, c.DisplayName)
		}
		if work.PublicationDate != "" {
			if t, parseErr := time.Parse("2006-01-02", work.PublicationDate); parseErr == nil {
				d.Published = t
			}
		} else if work.PublicationYear > 0 {
			d.Published = time.Date(work.PublicationYear, 1, 1, 0, 0, 0, 0, time.UTC)
		}
		docs = append(docs, d)
	}
	return docs, nil
}

// reconstructAbstract converts OpenAlex's abstract_inverted_index back to
// plain text. The inverted index maps each word to the positions where it
// appears.
func reconstructAbstract(invertedIndex map[string][]int) string {
	if len(invertedIndex) == 0 {
		return ""
	}

	type posWord struct {
		pos  int
		word string
	}
	var pairs []posWord
	for word, positions := range invertedIndex {
		for _, pos := range positions {
			pairs = append(pairs, posWord{pos: pos, word: word})
		}
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].pos < pairs[j].pos })

	words := make([]string, len(pairs))
	for i, p := range pairs {
		words[i] = p.word
	}
	return strings.Join(words, " ")
}

// OpenAlex API JSON structures.
type openAlexResponse struct {
	Results []openAlexWork `json:"results"`
}

type openAlexWork struct {
	ID                    string               `json:"id"`
	Title                 string               `json:"title"`
	DOI                   string               `json:"doi"`
	PublicationDate       string               `json:"publication_date"`
	PublicationYear       int                  `json:"publication_year"`
	Authorships           []openAlexAuthorship `json:"authorships"`
	Concepts              []openAlexConcept    `json:"concepts"`
	AbstractInvertedIndex map[string][]int     `json:"abstract_inverted_index"`
}

type openAlexAuthorship struct {
	Author openAlexAuthor `json:"author"`
}

type openAlexAuthor struct {
	DisplayName string `json:"display_name"`
}

type openAlexConcept struct {
	DisplayName string `json:"display_name"`
}
