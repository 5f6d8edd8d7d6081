// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package stage implements the three producers of the pipeline: research
// drafts a report from gathered documents, critique scores it, and revision
// rewrites it against the critique. Each stage makes exactly one generation
// call and reports every failure as a *types.GenerationError; retrying is
// the coordinator's business.
package stage

import (
	"context"
	"io"
	"log/slog"

	"github.com/pdiddy/research-coordinator/internal/generate"
	"github.com/pdiddy/research-coordinator/internal/search"
	"github.com/pdiddy/research-coordinator/pkg/types"
)

// Gatherer collects source documents for a query.
type Gatherer interface {
	Gather(ctx context.Context, query types.ResearchQuery) search.GatherResult
}

// ResearchStage drafts the initial report.
type ResearchStage struct {
	Gatherer  Gatherer
	Generator generate.Generator
	Limits    search.Limits
	Logger    *slog.Logger
}

// ResearchOutput is the drafted report plus gathering statistics for the
// audit log.
type ResearchOutput struct {
	Report   *types.ResearchReport
	Gathered search.GatherResult
	Bounded  search.Bounded
}

// Run gathers documents, bounds them, and asks the generator for a report.
// Source failures never fail the stage.
func (s *ResearchStage) Run(ctx context.Context, query types.ResearchQuery) (ResearchOutput, error) {
	var out ResearchOutput
	if s.Gatherer != nil {
		out.Gathered = s.Gatherer.Gather(ctx, query)
	}
	if out.Gathered.AllFailed() {
		logger(s.Logger).Warn("all data sources failed; drafting without documents",
			slog.String("topic", query.Topic),
			slog.Int("calls", out.Gathered.Calls))
	}
	out.Bounded = search.Bound(out.Gathered.Documents, query.SearchTerms(), s.Limits)

	prompt, err := render(researchPromptTmpl, researchPromptData{Query: query, Documents: out.Bounded.Documents})
	if err != nil {
		return out, types.NewGenerationError("research prompt", err)
	}

	reply, err := s.Generator.Generate(ctx, prompt, generate.GenerateOptions{System: researchSystem, Temperature: 0.7})
	if err != nil {
		return out, generationFailed("research", err)
	}

	report, _, err := parseReport(reply)
	if err != nil {
		return out, generationFailed("research", err)
	}
	if report.Title == "" {
		report.Title = "Research Report: " + query.Topic
	}
	if len(report.Sources) == 0 {
		report.Sources = refsFromDocuments(out.Bounded.Documents)
	} else {
		annotateOrigins(report.Sources, out.Bounded.Documents)
	}

	report.Metadata["depth_level"] = query.DepthLevel
	report.Metadata["subtopics_explored"] = append([]string{}, query.Subtopics...)
	report.Metadata["documents_used"] = len(out.Bounded.Documents)
	report.Metadata["source_failures"] = len(out.Gathered.Failures)

	out.Report = report
	return out, nil
}

func logger(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return l
}
