// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the research-coordinator
// pipeline: the research query, gathered source documents, reports, critique
// feedback, the agent audit log, and the research task that ties them
// together. Field names and enum values are part of the persisted format.
package types

import (
	"fmt"
	"os"
	"strings"

	"go.yaml.in/yaml/v3"
)

const (
	MinDepthLevel     = 1
	MaxDepthLevel     = 5
	DefaultDepthLevel = 3
)

// ResearchQuery describes what a task should research. A query is attached to
// a task by value when the task is created and never changes afterwards.
type ResearchQuery struct {
	// Topic is the main research topic.
	Topic string `json:"topic" yaml:"topic"`

	// Subtopics lists additional angles to explore, in caller order.
	Subtopics []string `json:"subtopics" yaml:"subtopics"`

	// DepthLevel is the requested research depth, 1 (overview) to 5 (most detailed).
	DepthLevel int `json:"depth_level" yaml:"depth_level"`

	// Requirements holds optional free-form instructions for the report.
	Requirements string `json:"requirements,omitempty" yaml:"requirements,omitempty"`
}

// Normalize trims whitespace, drops blank subtopics, and applies the default
// depth level when none was given.
func (q ResearchQuery) Normalize() ResearchQuery {
	out := ResearchQuery{
		Topic:        strings.TrimSpace(q.Topic),
		DepthLevel:   q.DepthLevel,
		Requirements: strings.TrimSpace(q.Requirements),
	}
	for _, s := range q.Subtopics {
		if s = strings.TrimSpace(s); s != "" {
			out.Subtopics = append(out.Subtopics, s)
		}
	}
	if out.DepthLevel == 0 {
		out.DepthLevel = DefaultDepthLevel
	}
	return out
}

// Validate reports whether the query can be researched.
func (q ResearchQuery) Validate() error {
	if strings.TrimSpace(q.Topic) == "" {
		return fmt.Errorf("query topic is empty")
	}
	if q.DepthLevel < MinDepthLevel || q.DepthLevel > MaxDepthLevel {
		return fmt.Errorf("depth level %d out of range [%d,%d]", q.DepthLevel, MinDepthLevel, MaxDepthLevel)
	}
	return nil
}

// SearchTerms returns the logical queries issued to every data source: the
// topic first, then each subtopic in order. Subtopics are qualified with the
// topic so that a bare subtopic such as "history" stays on subject.
func (q ResearchQuery) SearchTerms() []string {
	terms := []string{q.Topic}
	for _, s := range q.Subtopics {
		terms = append(terms, q.Topic+" "+s)
	}
	return terms
}

// SubtopicsText renders the subtopics for prompts.
func (q ResearchQuery) SubtopicsText() string {
	if len(q.Subtopics) == 0 {
		return "None specified"
	}
	return strings.Join(q.Subtopics, ", ")
}

// RequirementsText renders the requirements for prompts.
func (q ResearchQuery) RequirementsText() string {
	if q.Requirements == "" {
		return "None specified"
	}
	return q.Requirements
}

// QueryFile is the on-disk YAML form of a research query plus optional
// per-run overrides.
type QueryFile struct {
	Query      ResearchQuery `yaml:"query"`
	MaxRetries *int          `yaml:"max_retries,omitempty"`
	Threshold  *float64      `yaml:"threshold,omitempty"`
}

// LoadQueryFile reads a query file from disk, normalizes the query, and
// validates it.
func LoadQueryFile(path string) (*QueryFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading query file: %w", err)
	}
	var qf QueryFile
	if err := yaml.Unmarshal(data, &qf); err != nil {
		return nil, fmt.Errorf("parsing query file: %w", err)
	}
	qf.Query = qf.Query.Normalize()
	if err := qf.Query.Validate(); err != nil {
		return nil, fmt.Errorf("query file %s: %w", path, err)
	}
	return &qf, nil
}
