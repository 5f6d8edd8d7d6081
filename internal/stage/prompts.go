// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package stage

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
	"text/template"

	"github.com/pdiddy/research-coordinator/pkg/types"
)

const researchSystem = `You are an expert researcher. Write accurate, well-structured research reports grounded in the documents you are given. Cite only sources from the provided context, keep an objective tone, and consider multiple perspectives.`

const critiqueSystem = `You are an expert research critic. Evaluate reports for accuracy, depth, structure, source quality, objectivity, clarity, and completeness relative to the query. Be specific, constructive, and fair.`

const revisionSystem = `You are an expert editor. Revise research reports to address every point of feedback while preserving the original research intent and factual accuracy.`

var promptFuncs = template.FuncMap{
	"inc":    func(i int) int { return i + 1 },
	"bullet": bulletList,
}

var researchPromptTmpl = template.Must(template.New("research").Funcs(promptFuncs).Parse(`Write a research report on the following query.

Topic: {{.Query.Topic}}
Subtopics: {{.Query.SubtopicsText}}
Depth Level: {{.Query.DepthLevel}} (1-5, where 5 is most detailed)
Requirements: {{.Query.RequirementsText}}

Gathered documents:
{{if .Documents}}{{range $i, $d := .Documents}}
[{{inc $i}}] {{$d.Title}} ({{$d.Origin}}, {{$d.Source}})
URL: {{$d.URL}}
{{$d.Snippet}}
{{end}}{{else}}
No documents could be gathered. Rely on general knowledge and say so in the abstract.
{{end}}
Respond with a single JSON object and nothing else:
{"title": "...", "abstract": "...", "sections": [{"heading": "...", "body": "..."}], "conclusion": "...", "sources": [{"title": "...", "url": "..."}]}

The abstract should be 150-200 words. Use as many sections as the depth level warrants. List only sources you actually used from the documents above.
`))

var critiquePromptTmpl = template.Must(template.New("critique").Funcs(promptFuncs).Parse(`Critique the following research report.

Research query:
Topic: {{.Query.Topic}}
Subtopics: {{.Query.SubtopicsText}}
Depth Level: {{.Query.DepthLevel}}
Requirements: {{.Query.RequirementsText}}

Report:
{{.Report.Text}}
Respond with a single JSON object and nothing else:
{"overall_score": 7.5, "strengths": ["..."], "weaknesses": ["..."], "suggestions": ["..."], "specific_corrections": {"abstract": "...", "section_2": "..."}, "priority_issues": ["..."]}

Scoring guidelines for overall_score (a number from 0.0 to 10.0):
- 9.0-10.0: excellent, publication-ready
- 8.0-8.9: very good, minor improvements needed
- 7.0-7.9: good, moderate improvements needed
- 6.0-6.9: acceptable, significant improvements needed
- 5.0-5.9: needs major improvements
- below 5.0: requires complete revision
`))

var revisionPromptTmpl = template.Must(template.New("revision").Funcs(promptFuncs).Parse(`Revise the research report below using the critique.

Research query:
Topic: {{.Query.Topic}}
Subtopics: {{.Query.SubtopicsText}}
Depth Level: {{.Query.DepthLevel}}
Requirements: {{.Query.RequirementsText}}

Current report (revision {{.Revision}}):
{{.Report.Text}}
Critique (score {{printf "%.1f" .Feedback.OverallScore}}/10):
Priority issues:
{{bullet .Feedback.PriorityIssues}}
Weaknesses:
{{bullet .Feedback.Weaknesses}}
Suggestions:
{{bullet .Feedback.Suggestions}}
Specific corrections:
{{.Corrections}}
Strengths to keep:
{{bullet .Feedback.Strengths}}

Address the priority issues first. Respond with a single JSON object and nothing else:
{"title": "...", "abstract": "...", "sections": [{"heading": "...", "body": "..."}], "conclusion": "...", "sources": [{"title": "...", "url": "..."}], "revision_summary": "one or two sentences describing what changed"}
`))

func render(tmpl *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("rendering %s prompt: %w", tmpl.Name(), err)
	}
	return buf.String(), nil
}

func bulletList(items []string) string {
	if len(items) == 0 {
		return "- none"
	}
	var b strings.Builder
	for i, it := range items {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString("- ")
		b.WriteString(it)
	}
	return b.String()
}

// correctionsText renders corrections sorted by section key so prompts are
// deterministic.
func correctionsText(c map[string]string) string {
	if len(c) == 0 {
		return "- none"
	}
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	lines := make([]string, len(keys))
	for i, k := range keys {
		lines[i] = k + ": " + c[k]
	}
	return bulletList(lines)
}

type researchPromptData struct {
	Query     types.ResearchQuery
	Documents []types.SourceDocument
}

type critiquePromptData struct {
	Query  types.ResearchQuery
	Report *types.ResearchReport
}

type revisionPromptData struct {
	Query       types.ResearchQuery
	Report      *types.ResearchReport
	Feedback    types.CritiqueFeedback
	Revision    int
	Corrections string
}
