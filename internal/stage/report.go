// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package stage

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pdiddy/research-coordinator/internal/generate"
	"github.com/pdiddy/research-coordinator/pkg/types"
)

// reportWire is the JSON shape models return for a report. Sections accept
// both heading/body and title/content keys.
type reportWire struct {
	Title           string        `json:"title"`
	Abstract        string        `json:"abstract"`
	Sections        []sectionWire `json:"sections"`
	Conclusion      string        `json:"conclusion"`
	Sources         []sourceWire  `json:"sources"`
	RevisionSummary string        `json:"revision_summary"`
}

type sectionWire struct {
	Heading string `json:"heading"`
	Title   string `json:"title"`
	Body    string `json:"body"`
	Content string `json:"content"`
}

type sourceWire struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// UnmarshalJSON accepts a bare string as a source title.
func (s *sourceWire) UnmarshalJSON(data []byte) error {
	var title string
	if err := json.Unmarshal(data, &title); err == nil {
		s.Title = title
		return nil
	}
	type alias sourceWire
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*s = sourceWire(a)
	return nil
}

// parseReport decodes a model reply into a report. A reply with neither an
// abstract nor a section body is rejected.
func parseReport(reply string) (*types.ResearchReport, string, error) {
	var w reportWire
	if err := generate.DecodeJSON(reply, &w); err != nil {
		return nil, "", types.NewGenerationError("unparsable report", err)
	}

	r := &types.ResearchReport{
		Title:      strings.TrimSpace(w.Title),
		Abstract:   strings.TrimSpace(w.Abstract),
		Conclusion: strings.TrimSpace(w.Conclusion),
		Metadata:   map[string]any{},
	}
	for _, s := range w.Sections {
		heading := firstNonEmpty(s.Heading, s.Title)
		body := firstNonEmpty(s.Body, s.Content)
		if heading == "" && body == "" {
			continue
		}
		r.Sections = append(r.Sections, types.ReportSection{Heading: heading, Body: body})
	}
	for _, s := range w.Sources {
		r.Sources = append(r.Sources, types.SourceRef{Title: strings.TrimSpace(s.Title), URL: strings.TrimSpace(s.URL)})
	}
	r.Sources = dedupeRefs(r.Sources)

	if r.Abstract == "" && len(r.Sections) == 0 {
		return nil, "", types.NewGenerationError("report has no abstract and no sections", nil)
	}
	return r, strings.TrimSpace(w.RevisionSummary), nil
}

// refsFromDocuments turns gathered documents into report references.
func refsFromDocuments(docs []types.SourceDocument) []types.SourceRef {
	refs := make([]types.SourceRef, 0, len(docs))
	for _, d := range docs {
		refs = append(refs, types.SourceRef{Title: d.Title, URL: d.URL, Origin: d.Origin})
	}
	return dedupeRefs(refs)
}

// annotateOrigins fills in the origin of model-cited references that match a
// gathered document by URL.
func annotateOrigins(refs []types.SourceRef, docs []types.SourceDocument) {
	byURL := make(map[string]types.Origin, len(docs))
	for _, d := range docs {
		if d.URL != "" {
			byURL[strings.ToLower(d.URL)] = d.Origin
		}
	}
	for i := range refs {
		if refs[i].Origin == "" {
			refs[i].Origin = byURL[strings.ToLower(refs[i].URL)]
		}
	}
}

// dedupeRefs drops empty references and repeats of a URL (or title when the
// URL is missing), keeping the first.
func dedupeRefs(refs []types.SourceRef) []types.SourceRef {
	seen := make(map[string]bool, len(refs))
	var out []types.SourceRef
	for _, r := range refs {
		key := strings.ToLower(r.URL)
		if key == "" {
			key = "title:" + strings.ToLower(r.Title)
		}
		if key == "title:" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, r)
	}
	return out
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func generationFailed(stage string, err error) error {
	if types.IsGenerationError(err) {
		return fmt.Errorf("%s: %w", stage, err)
	}
	return types.NewGenerationError(stage, err)
}
