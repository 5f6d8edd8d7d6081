// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package search queries the configured data sources concurrently and merges
// their documents into one ordered, deduplicated, size-bounded list.
//
// Every (source, query) call is an independent failure domain with its own
// deadline. Failures are recorded and masked to an empty contribution so
// that one slow or broken source never aborts or delays the others.
package search

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/pdiddy/research-coordinator/pkg/types"
)

const (
	defaultCallTimeout = 30 * time.Second
	defaultLimit       = 5
	defaultDocChars    = 1500
	defaultTotalChars  = 12000

	// minTailChars is the smallest remaining budget worth spending on a
	// partially truncated document.
	minTailChars = 200
)

// Source searches a single external data source. Each adapter (arXiv,
// Wikipedia, web, ...) implements this interface.
type Source interface {
	Name() string
	Origin() types.Origin
	Search(ctx context.Context, query string, limit int) ([]types.SourceDocument, error)
}

// Gatherer fans a research query out to every source.
type Gatherer struct {
	Sources     []Source
	CallTimeout time.Duration
	Limit       int
	Logger      *slog.Logger
}

// GatherResult holds the merged documents and per-call statistics.
type GatherResult struct {
	Documents   []types.SourceDocument
	Failures    []*types.DataSourceError
	Calls       int
	EmptyCalls  int
	DupsRemoved int
	Elapsed     time.Duration
}

// AllFailed reports whether every call failed.
func (r GatherResult) AllFailed() bool {
	return r.Calls > 0 && len(r.Failures) == r.Calls
}

// FailureSummaries renders the failures for the audit log.
func (r GatherResult) FailureSummaries() []string {
	out := make([]string, len(r.Failures))
	for i, f := range r.Failures {
		out[i] = f.Error()
	}
	return out
}

// NewGatherer builds a gatherer from configuration.
func NewGatherer(sources []Source, cfg types.GatherConfig, logger *slog.Logger) *Gatherer {
	return &Gatherer{
		Sources:     sources,
		CallTimeout: cfg.CallTimeout,
		Limit:       cfg.ResultsPerQuery,
		Logger:      logger,
	}
}

type callResult struct {
	sourceIdx int
	queryIdx  int
	docs      []types.SourceDocument
	err       error
}

// Gather issues one call per (source, search term) concurrently and joins
// them. It never returns an error: failed calls contribute nothing and are
// listed in GatherResult.Failures.
func (g *Gatherer) Gather(ctx context.Context, query types.ResearchQuery) GatherResult {
	start := time.Now()
	terms := query.SearchTerms()

	ch := make(chan callResult, len(g.Sources)*len(terms))
	var wg sync.WaitGroup

	for si, src := range g.Sources {
		for qi, term := range terms {
			wg.Add(1)
			go func(si, qi int, src Source, term string) {
				defer wg.Done()
				docs, err := g.call(ctx, src, term)
				ch <- callResult{sourceIdx: si, queryIdx: qi, docs: docs, err: err}
			}(si, qi, src, term)
		}
	}

	go func() {
		wg.Wait()
		close(ch)
	}()

	grid := make([][]callResult, len(g.Sources))
	for i := range grid {
		grid[i] = make([]callResult, len(terms))
	}

	res := GatherResult{Calls: len(g.Sources) * len(terms)}
	for cr := range ch {
		grid[cr.sourceIdx][cr.queryIdx] = cr
	}

	var all []types.SourceDocument
	for si, row := range grid {
		src := g.Sources[si]
		for qi, cr := range row {
			if cr.err != nil {
				dsErr := &types.DataSourceError{Source: src.Name(), Query: terms[qi], Err: cr.err}
				res.Failures = append(res.Failures, dsErr)
				g.logger().Warn("source call failed",
					slog.String("source", src.Name()),
					slog.String("query", terms[qi]),
					slog.String("error", cr.err.Error()))
				continue
			}
			if len(cr.docs) == 0 {
				res.EmptyCalls++
				continue
			}
			for _, d := range cr.docs {
				all = append(all, stamp(d, src, terms[qi]))
			}
		}
	}

	res.Documents, res.DupsRemoved = deduplicate(all)
	res.Elapsed = time.Since(start)

	if res.AllFailed() {
		g.logger().Warn("every source call failed; continuing with no documents",
			slog.Int("calls", res.Calls))
	}
	return res
}

// call runs one source search under its own deadline. The result is
// abandoned if the source ignores cancellation, so a stuck adapter cannot
// hold the join past the timeout.
func (g *Gatherer) call(ctx context.Context, src Source, term string) (docs []types.SourceDocument, err error) {
	timeout := g.CallTimeout
	if timeout <= 0 {
		timeout = defaultCallTimeout
	}
	limit := g.Limit
	if limit <= 0 {
		limit = defaultLimit
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		docs []types.SourceDocument
		err  error
	}
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("panic: %v", r)}
			}
		}()
		d, err := src.Search(ctx, term, limit)
		done <- outcome{docs: d, err: err}
	}()

	select {
	case o := <-done:
		return o.docs, o.err
	case <-ctx.Done():
		return nil, fmt.Errorf("after %s: %w", timeout, ctx.Err())
	}
}

func (g *Gatherer) logger() *slog.Logger {
	if g.Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return g.Logger
}

// stamp fills the provenance fields an adapter left empty.
func stamp(d types.SourceDocument, src Source, term string) types.SourceDocument {
	if d.Origin == "" {
		d.Origin = src.Origin()
	}
	if d.Source == "" {
		d.Source = src.Name()
	}
	if d.Query == "" {
		d.Query = term
	}
	return d
}

// deduplicate keeps the first document for each normalized URL. Documents
// without a URL fall back to their normalized title.
func deduplicate(docs []types.SourceDocument) ([]types.SourceDocument, int) {
	seen := make(map[string]bool)
	var out []types.SourceDocument
	removed := 0
	for _, d := range docs {
		key := dedupKey(d)
		if key != "" {
			if seen[key] {
				removed++
				continue
			}
			seen[key] = true
		}
		out = append(out, d)
	}
	return out, removed
}

func dedupKey(d types.SourceDocument) string {
	if u := normalizeURL(d.URL); u != "" {
		return "url:" + u
	}
	if t := normalizeTitle(d.Title); t != "" {
		return "title:" + t
	}
	return ""
}

// normalizeURL lowercases scheme and host, ignores the scheme difference
// between http and https, and drops fragments and trailing slashes.
func normalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return strings.TrimSuffix(strings.ToLower(raw), "/")
	}
	host := strings.TrimPrefix(strings.ToLower(u.Host), "www.")
	path := strings.TrimSuffix(u.EscapedPath(), "/")
	key := host + path
	if u.RawQuery != "" {
		key += "?" + u.RawQuery
	}
	return key
}

// normalizeTitle returns a lowercased, punctuation-stripped version of the title.
func normalizeTitle(title string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(title) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// Limits bounds the document text passed downstream.
type Limits struct {
	DocChars   int
	TotalChars int
}

// LimitsFromConfig reads the truncation caps from configuration.
func LimitsFromConfig(cfg types.GatherConfig) Limits {
	return Limits{DocChars: cfg.DocChars, TotalChars: cfg.TotalChars}
}

// Bounded is the outcome of applying Limits.
type Bounded struct {
	Documents []types.SourceDocument
	Truncated int
	Dropped   int
}

// Bound applies the truncation policy. Documents are ranked academic first,
// then encyclopedia, then web; ties keep search-term order and then
// first-seen order. Each snippet is capped at DocChars and documents are
// kept until TotalChars (title plus snippet) is spent.
func Bound(docs []types.SourceDocument, terms []string, limits Limits) Bounded {
	docChars := limits.DocChars
	if docChars <= 0 {
		docChars = defaultDocChars
	}
	total := limits.TotalChars
	if total <= 0 {
		total = defaultTotalChars
	}

	termIdx := make(map[string]int, len(terms))
	for i, t := range terms {
		if _, ok := termIdx[t]; !ok {
			termIdx[t] = i
		}
	}
	rank := func(d types.SourceDocument) int {
		if i, ok := termIdx[d.Query]; ok {
			return i
		}
		return len(terms)
	}

	ordered := append([]types.SourceDocument(nil), docs...)
	sort.SliceStable(ordered, func(i, j int) bool {
		pi, pj := ordered[i].Origin.Priority(), ordered[j].Origin.Priority()
		if pi != pj {
			return pi < pj
		}
		return rank(ordered[i]) < rank(ordered[j])
	})

	var out Bounded
	used := 0
	for i, d := range ordered {
		if s, cut := truncateRunes(d.Snippet, docChars); cut {
			d.Snippet = s
			out.Truncated++
		}
		cost := runeLen(d.Title) + runeLen(d.Snippet)
		if used+cost > total {
			remaining := total - used - runeLen(d.Title)
			if remaining >= minTailChars {
				d.Snippet, _ = truncateRunes(d.Snippet, remaining)
				out.Truncated++
				out.Documents = append(out.Documents, d)
				out.Dropped += len(ordered) - i - 1
			} else {
				out.Dropped += len(ordered) - i
			}
			return out
		}
		used += cost
		out.Documents = append(out.Documents, d)
	}
	return out
}

func runeLen(s string) int { return len([]rune(s)) }

// truncateRunes cuts s to at most max runes, ending with "..." when cut.
func truncateRunes(s string, max int) (string, bool) {
	r := []rune(s)
	if len(r) <= max {
		return s, false
	}
	if max <= 3 {
		return string(r[:max]), true
	}
	return string(r[:max-3]) + "...", true
}

// FormatTable writes documents as a human-readable table to w.
func FormatTable(docs []types.SourceDocument, w io.Writer) {
	if len(docs) == 0 {
		fmt.Fprintln(w, "No documents found.")
		return
	}

	fmt.Fprintf(w, "%-4s  %-12s  %-16s  %-60s  %s\n", "#", "Origin", "Source", "Title", "URL")
	fmt.Fprintln(w, strings.Repeat("-", 130))
	for i, d := range docs {
		title, _ := truncateRunes(d.Title, 60)
		fmt.Fprintf(w, "%-4d  %-12s  %-16s  %-60s  %s\n", i+1, d.Origin, d.Source, title, d.URL)
	}
	fmt.Fprintf(w, "\n%d documents\n", len(docs))
}
