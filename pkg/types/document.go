// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// Origin classifies the kind of data source a document came from.
type Origin string

const (
	OriginWeb          Origin = "web"
	OriginEncyclopedia Origin = "encyclopedia"
	OriginAcademic     Origin = "academic"
)

// Priority ranks origins for the truncation policy. Lower values are kept first.
func (o Origin) Priority() int {
	switch o {
	case OriginAcademic:
		return 0
	case OriginEncyclopedia:
		return 1
	case OriginWeb:
		return 2
	default:
		return 3
	}
}

// Valid reports whether o is one of the known origins.
func (o Origin) Valid() bool {
	return o == OriginWeb || o == OriginEncyclopedia || o == OriginAcademic
}

// SourceDocument is a normalized search hit returned by a data source.
// Documents are produced by sources and read, never modified, by the
// research stage.
type SourceDocument struct {
	// Origin tags the kind of source (web, encyclopedia, academic).
	Origin Origin `json:"origin" yaml:"origin"`

	// Source names the adapter that produced the document (e.g. "arxiv", "wikipedia").
	Source string `json:"source" yaml:"source"`

	// Query is the logical query that found this document.
	Query string `json:"query" yaml:"query"`

	// Title is the document title as returned by the source.
	Title string `json:"title" yaml:"title"`

	// URL locates the document. It is the deduplication key.
	URL string `json:"url" yaml:"url"`

	// Snippet is the search snippet or abstract text.
	Snippet string `json:"snippet" yaml:"snippet"`

	// Authors lists document authors in source order, when known.
	Authors []string `json:"authors,omitempty" yaml:"authors,omitempty"`

	// Categories lists subject categories, when known (e.g. arXiv "cs.AI").
	Categories []string `json:"categories,omitempty" yaml:"categories,omitempty"`

	// Published is the publication date, when known.
	Published time.Time `json:"published,omitempty" yaml:"published,omitempty"`
}
