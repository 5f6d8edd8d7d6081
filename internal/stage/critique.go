// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package stage

import (
	"context"
	"strings"

	"github.com/pdiddy/research-coordinator/internal/generate"
	"github.com/pdiddy/research-coordinator/pkg/types"
)

// CritiqueStage scores a report.
type CritiqueStage struct {
	Generator generate.Generator
}

// critiqueWire leaves the score as a pointer so a missing score is
// distinguishable from 0.
type critiqueWire struct {
	OverallScore        *float64          `json:"overall_score"`
	Strengths           []string          `json:"strengths"`
	Weaknesses          []string          `json:"weaknesses"`
	Suggestions         []string          `json:"suggestions"`
	SpecificCorrections map[string]string `json:"specific_corrections"`
	PriorityIssues      []string          `json:"priority_issues"`
}

// Run evaluates report against query. A reply without a numeric score in
// [0,10] is a generation failure.
func (s *CritiqueStage) Run(ctx context.Context, query types.ResearchQuery, report *types.ResearchReport) (types.CritiqueFeedback, error) {
	if report == nil {
		return types.CritiqueFeedback{}, types.NewGenerationError("critique: no report to evaluate", nil)
	}

	prompt, err := render(critiquePromptTmpl, critiquePromptData{Query: query, Report: report})
	if err != nil {
		return types.CritiqueFeedback{}, types.NewGenerationError("critique prompt", err)
	}

	reply, err := s.Generator.Generate(ctx, prompt, generate.GenerateOptions{System: critiqueSystem, Temperature: 0.3})
	if err != nil {
		return types.CritiqueFeedback{}, generationFailed("critique", err)
	}

	var w critiqueWire
	if err := generate.DecodeJSON(reply, &w); err != nil {
		return types.CritiqueFeedback{}, types.NewGenerationError("critique: unparsable feedback", err)
	}
	if w.OverallScore == nil {
		return types.CritiqueFeedback{}, types.NewGenerationError("critique: missing overall_score", nil)
	}

	fb := types.CritiqueFeedback{
		OverallScore:        *w.OverallScore,
		Strengths:           cleanList(w.Strengths),
		Weaknesses:          cleanList(w.Weaknesses),
		Suggestions:         cleanList(w.Suggestions),
		SpecificCorrections: w.SpecificCorrections,
		PriorityIssues:      cleanList(w.PriorityIssues),
	}
	if err := fb.Validate(); err != nil {
		return types.CritiqueFeedback{}, types.NewGenerationError("critique", err)
	}
	return fb, nil
}

func cleanList(items []string) []string {
	var out []string
	for _, it := range items {
		if it = strings.TrimSpace(it); it != "" {
			out = append(out, it)
		}
	}
	return out
}
