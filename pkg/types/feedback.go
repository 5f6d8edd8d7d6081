// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"fmt"
	"math"
)

const (
	MinScore = 0.0
	MaxScore = 10.0
)

// CritiqueFeedback is the structured result of one critique round. Feedback
// is appended to a task's history and never edited.
type CritiqueFeedback struct {
	// OverallScore rates the report on [0.0, 10.0].
	OverallScore float64 `json:"overall_score" yaml:"overall_score"`

	Strengths   []string `json:"strengths" yaml:"strengths"`
	Weaknesses  []string `json:"weaknesses" yaml:"weaknesses"`
	Suggestions []string `json:"suggestions" yaml:"suggestions"`

	// SpecificCorrections maps a section identifier (e.g. "abstract",
	// "section_2") to the correction it needs.
	SpecificCorrections map[string]string `json:"specific_corrections" yaml:"specific_corrections"`

	// PriorityIssues lists the issues a revision must address first.
	PriorityIssues []string `json:"priority_issues" yaml:"priority_issues"`
}

// Validate checks the score range.
func (f CritiqueFeedback) Validate() error {
	s := f.OverallScore
	if math.IsNaN(s) || math.IsInf(s, 0) {
		return fmt.Errorf("overall score is not a finite number")
	}
	if s < MinScore || s > MaxScore {
		return fmt.Errorf("overall score %.2f out of range [%.1f,%.1f]", s, MinScore, MaxScore)
	}
	return nil
}

// Passes reports whether the feedback meets the quality threshold.
func (f CritiqueFeedback) Passes(threshold float64) bool {
	return f.OverallScore >= threshold
}

// clone copies the slices and map so a logged entry cannot be changed through
// the caller's value.
func (f CritiqueFeedback) clone() CritiqueFeedback {
	out := f
	out.Strengths = append([]string(nil), f.Strengths...)
	out.Weaknesses = append([]string(nil), f.Weaknesses...)
	out.Suggestions = append([]string(nil), f.Suggestions...)
	out.PriorityIssues = append([]string(nil), f.PriorityIssues...)
	if f.SpecificCorrections != nil {
		out.SpecificCorrections = make(map[string]string, len(f.SpecificCorrections))
		for k, v := range f.SpecificCorrections {
			out.SpecificCorrections[k] = v
		}
	}
	return out
}
