// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/pdiddy/research-coordinator/internal/httputil"
	"github.com/pdiddy/research-coordinator/pkg/types"
)

// semanticAPIBase is the Semantic Scholar paper search endpoint. Declared
// as a var so tests can substitute an httptest server.
var semanticAPIBase = "https://api.semanticscholar.org/graph/v1/paper/search"

const semanticFields = "title,abstract,authors,externalIds,year,publicationDate,url,fieldsOfStudy"

// SemanticScholarSource queries the Semantic Scholar Graph API.
type SemanticScholarSource struct {
	Client    *http.Client
	APIKey    string
	UserAgent string
}

// Name returns the source identifier.
func (s *SemanticScholarSource) Name() string { return string(types.SourceSemanticScholar) }

// Origin returns academic.
func (s *SemanticScholarSource) Origin() types.Origin { return types.OriginAcademic }

// Search queries Semantic Scholar. Rate-limited responses are retried with
// backoff until the call's deadline.
func (s *SemanticScholarSource) Search(ctx context.Context, query string, limit int) ([]types.SourceDocument, error) {
	if query == "" {
		return nil, fmt.Errorf("empty Semantic Scholar query")
	}

	params := url.Values{
		"query":  {query},
		"limit":  {strconv.Itoa(limit)},
		"fields": {semanticFields},
	}
	reqURL := semanticAPIBase + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", s.UserAgent)
	if s.APIKey != "" {
		req.Header.Set("x-api-key", s.APIKey)
	}

	resp, err := httputil.DoWithRetry(ctx, clientOrDefault(s.Client), req, 0)
	if err != nil {
		return nil, fmt.Errorf("Semantic Scholar API request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("Semantic Scholar API returned HTTP %d", resp.StatusCode)
	}

	var sr semanticResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("parsing Semantic Scholar response: %w", err)
	}

	var docs []types.SourceDocument
	for _, paper := range sr.Data {
		d := types.SourceDocument{
			Origin:     types.OriginAcademic,
			Source:     s.Name(),
			Title:      paper.Title,
			Snippet:    paper.Abstract,
			URL:        semanticURL(paper),
			Categories: paper.FieldsOfStudy,
		}
		for _, a := range paper.Authors {
			d.Authors = append(d.Authors, a.Name)
		}
		if paper.PublicationDate != "" {
			if t, parseErr := time.Parse("2006-01-02", paper.PublicationDate); parseErr == nil {
				d.Published = t
			}
		} else if paper.Year > 0 {
			d.Published = time.Date(paper.Year, 1, 1, 0, 0, 0, 0, time.UTC)
		}
		docs = append(docs, d)
	}
	return docs, nil
}

// semanticURL prefers the arXiv abstract page, then the DOI resolver, then
// the Semantic Scholar page, so the same paper dedupes against other sources.
func semanticURL(p semanticPaper) string {
	switch {
	case p.ExternalIDs.ArXiv != "":
		return "https://arxiv.org/abs/" + p.ExternalIDs.ArXiv
	case p.ExternalIDs.DOI != "":
		return "https://doi.org/" + p.ExternalIDs.DOI
	case p.URL != "":
		return p.URL
	case p.PaperID != "":
		return "https://www.semanticscholar.org/paper/" + p.PaperID
	}
	return ""
}

// Semantic Scholar API JSON structures.
type semanticResponse struct {
	Total  int             `json:"total"`
	Offset int             `json:"offset"`
	Data   []semanticPaper `json:"data"`
}

type semanticPaper struct {
	PaperID         string              `json:"paperId"`
	URL             string              `json:"url"`
	Title           string              `json:"title"`
	Abstract        string              `json:"abstract"`
	Year            int                 `json:"year"`
	PublicationDate string              `json:"publicationDate"`
	FieldsOfStudy   []string            `json:"fieldsOfStudy"`
	Authors         []semanticAuthor    `json:"authors"`
	ExternalIDs     semanticExternalIDs `json:"externalIds"`
}

type semanticAuthor struct {
	AuthorID string `json:"authorId"`
	Name     string `json:"name"`
}

type semanticExternalIDs struct {
	DOI   string `json:"DOI"`
	ArXiv string `json:"ArXiv"`
}
