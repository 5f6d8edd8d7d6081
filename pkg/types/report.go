// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"fmt"
	"strings"
)

// ReportSection is one headed section of a research report.
type ReportSection struct {
	Heading string `json:"heading" yaml:"heading"`
	Body    string `json:"body" yaml:"body"`
}

// SourceRef is a reference from a report to a source it drew on.
type SourceRef struct {
	Title  string `json:"title" yaml:"title"`
	URL    string `json:"url,omitempty" yaml:"url,omitempty"`
	Origin Origin `json:"origin,omitempty" yaml:"origin,omitempty"`
}

// ResearchReport is a structured research report. A task holds exactly one
// current report; a revision produces a new report rather than editing the
// current one.
type ResearchReport struct {
	// Title is the report title.
	Title string `json:"title" yaml:"title"`

	// Abstract summarizes the whole report.
	Abstract string `json:"abstract" yaml:"abstract"`

	// Sections holds the report body in reading order.
	Sections []ReportSection `json:"sections" yaml:"sections"`

	// Conclusion states the key findings.
	Conclusion string `json:"conclusion" yaml:"conclusion"`

	// Sources lists the references used, without duplicates.
	Sources []SourceRef `json:"sources" yaml:"sources"`

	// Metadata holds free-form producer annotations (revision number, depth, ...).
	Metadata map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// Clone returns a deep copy of r. Metadata values are copied shallowly.
func (r *ResearchReport) Clone() *ResearchReport {
	if r == nil {
		return nil
	}
	out := &ResearchReport{
		Title:      r.Title,
		Abstract:   r.Abstract,
		Conclusion: r.Conclusion,
		Sections:   append([]ReportSection(nil), r.Sections...),
		Sources:    append([]SourceRef(nil), r.Sources...),
	}
	if r.Metadata != nil {
		out.Metadata = make(map[string]any, len(r.Metadata))
		for k, v := range r.Metadata {
			out.Metadata[k] = v
		}
	}
	return out
}

// RevisionNumber returns the revision counter recorded in metadata, or 0 for
// an initial draft. Numbers decoded from JSON arrive as float64.
func (r *ResearchReport) RevisionNumber() int {
	if r == nil {
		return 0
	}
	switch v := r.Metadata["revision_number"].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

// Text renders the report as plain text with numbered sections.
func (r *ResearchReport) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Title: %s\n\n", r.Title)
	fmt.Fprintf(&b, "Abstract: %s\n\n", r.Abstract)
	b.WriteString("Sections:\n")
	for i, s := range r.Sections {
		fmt.Fprintf(&b, "\n%d. %s\n%s\n", i+1, s.Heading, s.Body)
	}
	fmt.Fprintf(&b, "\nConclusion: %s\n", r.Conclusion)
	fmt.Fprintf(&b, "\nSources: %d referenced\n", len(r.Sources))
	return b.String()
}
