// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/research-coordinator/pkg/types"
)

type fakeSource struct {
	name   string
	origin types.Origin
	search func(ctx context.Context, query string, limit int) ([]types.SourceDocument, error)
	calls  int32
}

func (f *fakeSource) Name() string         { return f.name }
func (f *fakeSource) Origin() types.Origin { return f.origin }
func (f *fakeSource) Search(ctx context.Context, query string, limit int) ([]types.SourceDocument, error) {
	atomic.AddInt32(&f.calls, 1)
	return f.search(ctx, query, limit)
}

// echoSource returns one document per query whose URL encodes the source
// and query so ordering can be asserted.
func echoSource(name string, origin types.Origin, delay time.Duration) *fakeSource {
	return &fakeSource{
		name:   name,
		origin: origin,
		search: func(ctx context.Context, query string, _ int) ([]types.SourceDocument, error) {
			if delay > 0 {
				time.Sleep(delay)
			}
			return []types.SourceDocument{{
				Title:   name + ": " + query,
				URL:     "https://" + name + ".example/" + strings.ReplaceAll(query, " ", "-"),
				Snippet: "about " + query,
			}}, nil
		},
	}
}

func failingSource(name string) *fakeSource {
	return &fakeSource{
		name:   name,
		origin: types.OriginWeb,
		search: func(context.Context, string, int) ([]types.SourceDocument, error) {
			return nil, errors.New("connection refused")
		},
	}
}

func testQuery() types.ResearchQuery {
	return types.ResearchQuery{Topic: "quantum computing", Subtopics: []string{"error correction"}, DepthLevel: types.MaxDepthLevel}
}

func TestGather_OrdersBySourceThenQuery(t *testing.T) {
	// The first source finishes last; output order must not depend on timing.
	a := echoSource("alpha", types.OriginAcademic, 30*time.Millisecond)
	b := echoSource("beta", types.OriginWeb, 0)
	g := &Gatherer{Sources: []Source{a, b}, CallTimeout: time.Second}

	res := g.Gather(context.Background(), testQuery())

	require.Len(t, res.Documents, 4)
	assert.Equal(t, 4, res.Calls)
	assert.Empty(t, res.Failures)

	var titles []string
	for _, d := range res.Documents {
		titles = append(titles, d.Title)
	}
	assert.Equal(t, []string{
		"alpha: quantum computing",
		"alpha: quantum computing error correction",
		"beta: quantum computing",
		"beta: quantum computing error correction",
	}, titles)

	first := res.Documents[0]
	assert.Equal(t, types.OriginAcademic, first.Origin)
	assert.Equal(t, "alpha", first.Source)
	assert.Equal(t, "quantum computing", first.Query)
}

func TestGather_FailingSourceIsMasked(t *testing.T) {
	good := echoSource("good", types.OriginEncyclopedia, 0)
	bad := failingSource("bad")
	g := &Gatherer{Sources: []Source{bad, good}, CallTimeout: time.Second}

	res := g.Gather(context.Background(), testQuery())

	assert.Len(t, res.Documents, 2)
	require.Len(t, res.Failures, 2)
	assert.False(t, res.AllFailed())
	for _, f := range res.Failures {
		assert.Equal(t, "bad", f.Source)
		assert.Contains(t, f.Error(), "connection refused")
	}
	assert.Equal(t, "quantum computing", res.Failures[0].Query)
	assert.Len(t, res.FailureSummaries(), 2)
}

func TestGather_AllFailed(t *testing.T) {
	g := &Gatherer{Sources: []Source{failingSource("a"), failingSource("b")}, CallTimeout: time.Second}

	res := g.Gather(context.Background(), types.ResearchQuery{Topic: "x"})

	assert.True(t, res.AllFailed())
	assert.Empty(t, res.Documents)
	assert.Len(t, res.Failures, 2)
}

func TestGather_StuckSourceBoundedByCallTimeout(t *testing.T) {
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })

	stuck := &fakeSource{
		name:   "stuck",
		origin: types.OriginWeb,
		search: func(context.Context, string, int) ([]types.SourceDocument, error) {
			<-release // ignores cancellation
			return nil, nil
		},
	}
	fast := echoSource("fast", types.OriginAcademic, 0)
	g := &Gatherer{Sources: []Source{stuck, fast}, CallTimeout: 50 * time.Millisecond}

	start := time.Now()
	res := g.Gather(context.Background(), types.ResearchQuery{Topic: "x"})

	assert.Less(t, time.Since(start), 2*time.Second)
	require.Len(t, res.Failures, 1)
	assert.ErrorIs(t, res.Failures[0], context.DeadlineExceeded)
	require.Len(t, res.Documents, 1)
	assert.Equal(t, "fast", res.Documents[0].Source)
}

func TestGather_PanicIsRecovered(t *testing.T) {
	boom := &fakeSource{
		name:   "boom",
		origin: types.OriginWeb,
		search: func(context.Context, string, int) ([]types.SourceDocument, error) {
			panic("nil map")
		},
	}
	g := &Gatherer{Sources: []Source{boom}, CallTimeout: time.Second}

	res := g.Gather(context.Background(), types.ResearchQuery{Topic: "x"})

	require.Len(t, res.Failures, 1)
	assert.Contains(t, res.Failures[0].Error(), "panic: nil map")
}

func TestGather_EmptyCallsAreNotFailures(t *testing.T) {
	empty := &fakeSource{
		name:   "empty",
		origin: types.OriginWeb,
		search: func(context.Context, string, int) ([]types.SourceDocument, error) {
			return nil, nil
		},
	}
	g := &Gatherer{Sources: []Source{empty}}

	res := g.Gather(context.Background(), testQuery())

	assert.Equal(t, 2, res.EmptyCalls)
	assert.Empty(t, res.Failures)
	assert.False(t, res.AllFailed())
}

func TestGather_PassesLimit(t *testing.T) {
	var got int32
	src := &fakeSource{
		name:   "limit",
		origin: types.OriginWeb,
		search: func(_ context.Context, _ string, limit int) ([]types.SourceDocument, error) {
			atomic.StoreInt32(&got, int32(limit))
			return nil, nil
		},
	}

	(&Gatherer{Sources: []Source{src}, Limit: 7}).Gather(context.Background(), types.ResearchQuery{Topic: "x"})
	assert.Equal(t, int32(7), atomic.LoadInt32(&got))

	(&Gatherer{Sources: []Source{src}}).Gather(context.Background(), types.ResearchQuery{Topic: "x"})
	assert.Equal(t, int32(defaultLimit), atomic.LoadInt32(&got))
}

func TestGather_Deduplicates(t *testing.T) {
	a := &fakeSource{
		name:   "a",
		origin: types.OriginAcademic,
		search: func(context.Context, string, int) ([]types.SourceDocument, error) {
			return []types.SourceDocument{
				{Title: "Paper", URL: "https://arxiv.org/abs/2301.00001"},
				{Title: "No URL: A Study"},
			}, nil
		},
	}
	b := &fakeSource{
		name:   "b",
		origin: types.OriginAcademic,
		search: func(context.Context, string, int) ([]types.SourceDocument, error) {
			return []types.SourceDocument{
				{Title: "Paper (copy)", URL: "http://www.arxiv.org/abs/2301.00001/"},
				{Title: "no url a study"},
				{Title: "Other", URL: "https://example.org/x#section"},
			}, nil
		},
	}
	g := &Gatherer{Sources: []Source{a, b}}

	res := g.Gather(context.Background(), types.ResearchQuery{Topic: "x"})

	require.Len(t, res.Documents, 3)
	assert.Equal(t, 2, res.DupsRemoved)
	assert.Equal(t, "Paper", res.Documents[0].Title)
	assert.Equal(t, "a", res.Documents[0].Source)
	assert.Equal(t, "Other", res.Documents[2].Title)
}

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"https://Example.com/a/", "example.com/a"},
		{"http://www.example.com/a", "example.com/a"},
		{"https://example.com/a?q=1#frag", "example.com/a?q=1"},
		{"not a url/", "not a url"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, normalizeURL(tt.in), tt.in)
	}
}

func TestNormalizeTitle(t *testing.T) {
	assert.Equal(t, "attention is all you need", normalizeTitle("  Attention   Is All You Need! "))
	assert.Equal(t, "", normalizeTitle("!!!"))
}

func snippet(n int) string { return strings.Repeat("x", n) }

func TestBound_PriorityOrder(t *testing.T) {
	terms := []string{"topic", "topic sub"}
	docs := []types.SourceDocument{
		{Origin: types.OriginWeb, Query: "topic", Title: "web"},
		{Origin: types.OriginAcademic, Query: "topic sub", Title: "academic sub"},
		{Origin: types.OriginEncyclopedia, Query: "topic", Title: "wiki"},
		{Origin: types.OriginAcademic, Query: "topic", Title: "academic topic"},
		{Origin: types.OriginAcademic, Query: "topic", Title: "academic topic 2"},
	}

	out := Bound(docs, terms, Limits{})

	var titles []string
	for _, d := range out.Documents {
		titles = append(titles, d.Title)
	}
	assert.Equal(t, []string{"academic topic", "academic topic 2", "academic sub", "wiki", "web"}, titles)
	assert.Zero(t, out.Dropped)
	assert.Zero(t, out.Truncated)
	// Input is not reordered in place.
	assert.Equal(t, "web", docs[0].Title)
}

func TestBound_PerDocumentCap(t *testing.T) {
	docs := []types.SourceDocument{{Origin: types.OriginWeb, Title: "t", Snippet: snippet(300)}}

	out := Bound(docs, nil, Limits{DocChars: 100, TotalChars: 10000})

	require.Len(t, out.Documents, 1)
	assert.Equal(t, 100, runeLen(out.Documents[0].Snippet))
	assert.True(t, strings.HasSuffix(out.Documents[0].Snippet, "..."))
	assert.Equal(t, 1, out.Truncated)
	assert.Equal(t, snippet(300), docs[0].Snippet)
}

func TestBound_TotalCap(t *testing.T) {
	docs := []types.SourceDocument{
		{Origin: types.OriginAcademic, Title: "a", Snippet: snippet(300)},
		{Origin: types.OriginAcademic, Title: "b", Snippet: snippet(300)},
		{Origin: types.OriginAcademic, Title: "c", Snippet: snippet(300)},
	}

	t.Run("tail too small is dropped", func(t *testing.T) {
		out := Bound(docs, nil, Limits{DocChars: 1000, TotalChars: 500})
		require.Len(t, out.Documents, 1)
		assert.Equal(t, 2, out.Dropped)
	})

	t.Run("tail fits remaining budget", func(t *testing.T) {
		out := Bound(docs, nil, Limits{DocChars: 1000, TotalChars: 600})
		require.Len(t, out.Documents, 2)
		assert.Equal(t, 298, runeLen(out.Documents[1].Snippet))
		assert.Equal(t, 1, out.Truncated)
		assert.Equal(t, 1, out.Dropped)

		total := 0
		for _, d := range out.Documents {
			total += runeLen(d.Title) + runeLen(d.Snippet)
		}
		assert.LessOrEqual(t, total, 600)
	})
}

func TestTruncateRunes(t *testing.T) {
	s, cut := truncateRunes("héllo wörld", 8)
	assert.True(t, cut)
	assert.Equal(t, "héllo...", s)

	s, cut = truncateRunes("short", 10)
	assert.False(t, cut)
	assert.Equal(t, "short", s)
}

func TestFormatTable(t *testing.T) {
	var buf bytes.Buffer
	FormatTable(nil, &buf)
	assert.Contains(t, buf.String(), "No documents found.")

	buf.Reset()
	FormatTable([]types.SourceDocument{{Origin: types.OriginAcademic, Source: "arxiv", Title: "Paper", URL: "https://arxiv.org/abs/1"}}, &buf)
	assert.Contains(t, buf.String(), "arxiv")
	assert.Contains(t, buf.String(), "1 documents")
}

func TestNewGatherer(t *testing.T) {
	cfg := types.DefaultConfig().Gather
	g := NewGatherer(nil, cfg, nil)
	assert.Equal(t, cfg.CallTimeout, g.CallTimeout)
	assert.Equal(t, cfg.ResultsPerQuery, g.Limit)
}
