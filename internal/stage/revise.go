// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package stage

import (
	"context"
	"fmt"

	"github.com/pdiddy/research-coordinator/internal/generate"
	"github.com/pdiddy/research-coordinator/pkg/types"
)

// RevisionStage rewrites a report to address critique feedback.
type RevisionStage struct {
	Generator generate.Generator
}

// Run returns a new report; the input report is left untouched. The new
// report inherits the previous metadata and sources unless the model
// supplies its own sources.
func (s *RevisionStage) Run(ctx context.Context, query types.ResearchQuery, report *types.ResearchReport, feedback types.CritiqueFeedback) (*types.ResearchReport, error) {
	if report == nil {
		return nil, types.NewGenerationError("revision: no report to revise", nil)
	}

	prev := report.RevisionNumber()
	prompt, err := render(revisionPromptTmpl, revisionPromptData{
		Query:       query,
		Report:      report,
		Feedback:    feedback,
		Revision:    prev,
		Corrections: correctionsText(feedback.SpecificCorrections),
	})
	if err != nil {
		return nil, types.NewGenerationError("revision prompt", err)
	}

	reply, err := s.Generator.Generate(ctx, prompt, generate.GenerateOptions{System: revisionSystem, Temperature: 0.5})
	if err != nil {
		return nil, generationFailed("revision", err)
	}

	revised, summary, err := parseReport(reply)
	if err != nil {
		return nil, generationFailed("revision", err)
	}

	if revised.Title == "" {
		revised.Title = report.Title
	}
	if len(revised.Sources) == 0 {
		revised.Sources = append([]types.SourceRef(nil), report.Sources...)
	} else {
		carryOrigins(revised.Sources, report.Sources)
	}

	meta := report.Clone().Metadata
	if meta == nil {
		meta = map[string]any{}
	}
	if summary == "" {
		summary = fmt.Sprintf("Addressed %d priority issues and %d weaknesses from critique scored %.1f",
			len(feedback.PriorityIssues), len(feedback.Weaknesses), feedback.OverallScore)
	}
	meta["revision_number"] = prev + 1
	meta["original_feedback_score"] = feedback.OverallScore
	meta["revision_summary"] = summary
	revised.Metadata = meta
	return revised, nil
}

// carryOrigins copies origins from the previous references onto matching
// revised references.
func carryOrigins(refs, previous []types.SourceRef) {
	docs := make([]types.SourceDocument, 0, len(previous))
	for _, p := range previous {
		docs = append(docs, types.SourceDocument{URL: p.URL, Origin: p.Origin})
	}
	annotateOrigins(refs, docs)
}
