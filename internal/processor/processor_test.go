package processor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/content-harvester/internal/cache"
	"github.com/JakeFAU/content-harvester/internal/clock/manual"
	"github.com/JakeFAU/content-harvester/internal/harvest"
)

func rec(t harvest.SourceType, id, title, url string) harvest.ContentRecord {
	return harvest.ContentRecord{SourceType: t, SourceID: id, Title: title, URL: url}
}

func TestProcessKeepsHigherPriorityDuplicate(t *testing.T) {
	t.Parallel()

	p := New(Config{}, nil, zap.NewNop())
	out := p.Process(context.Background(), []harvest.ContentRecord{
		rec(harvest.SourceForum, "f1", "Discussing the paper", "https://arxiv.org/abs/2410.01234?utm_source=reddit"),
		rec(harvest.SourceResearch, "2410.01234", "The paper", "https://ARXIV.org/abs/2410.01234/"),
	})
	require.Len(t, out, 1)
	assert.Equal(t, harvest.SourceResearch, out[0].SourceType)
	assert.Equal(t, "2410.01234", out[0].SourceID)
}

func TestProcessCustomPriority(t *testing.T) {
	t.Parallel()

	p := New(Config{Priority: []harvest.SourceType{harvest.SourceForum}}, nil, zap.NewNop())
	out := p.Process(context.Background(), []harvest.ContentRecord{
		rec(harvest.SourceResearch, "r", "Paper", "https://example.com/p"),
		rec(harvest.SourceForum, "f", "Thread", "https://example.com/p"),
	})
	require.Len(t, out, 1)
	assert.Equal(t, harvest.SourceForum, out[0].SourceType)
}

func TestProcessFingerprintsRecordsWithoutURL(t *testing.T) {
	t.Parallel()

	p := New(Config{}, nil, zap.NewNop())
	out := p.Process(context.Background(), []harvest.ContentRecord{
		{SourceType: harvest.SourceNewsFeed, SourceID: "a", Title: "Launch Day", Body: "Details"},
		{SourceType: harvest.SourceBlogFeed, SourceID: "b", Title: "launch day", Body: "DETAILS"},
		{SourceType: harvest.SourceBlogFeed, SourceID: "c", Title: "Launch Day", Body: "Other details"},
	})
	require.Len(t, out, 2)
	assert.Equal(t, "a", out[0].SourceID)
	assert.Equal(t, "c", out[1].SourceID)
}

func TestProcessRelevance(t *testing.T) {
	t.Parallel()

	p := New(Config{Include: []string{"Go", " generics ", ""}, Exclude: []string{"sponsored"}}, nil, zap.NewNop())
	out := p.Process(context.Background(), []harvest.ContentRecord{
		{SourceType: harvest.SourceNewsFeed, SourceID: "1", Title: "Go generics deep dive", URL: "https://a.example/1", Tags: []string{"GO"}},
		{SourceType: harvest.SourceNewsFeed, SourceID: "2", Title: "Rust news", URL: "https://a.example/2"},
		{SourceType: harvest.SourceNewsFeed, SourceID: "3", Title: "Go tips", Body: "Sponsored content", URL: "https://a.example/3"},
	})
	require.Len(t, out, 1)
	assert.Equal(t, "1", out[0].SourceID)
	assert.Equal(t, 2, out[0].Relevance)
	assert.Equal(t, []string{"GO", "generics"}, out[0].Tags)
}

func TestPredicateMatchesWholeWords(t *testing.T) {
	t.Parallel()

	p := NewPredicate([]string{"go", "c++", "distributed systems"}, []string{"ad"})
	cases := []struct {
		name  string
		title string
		body  string
		hits  []string
		ok    bool
	}{
		{name: "substring is not a word", title: "A good read from long ago", ok: false},
		{name: "exclude needs the whole word", title: "Go, a good read", hits: []string{"go"}, ok: true},
		{name: "punctuation is a boundary", title: "Why (Go)?", body: "Notes on C++ and distributed systems.", hits: []string{"go", "c++", "distributed systems"}, ok: true},
		{name: "excluded word drops", title: "Go ad campaign", ok: false},
		{name: "case insensitive", title: "GO release notes", hits: []string{"go"}, ok: true},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			hits, ok := p.Match(harvest.ContentRecord{Title: tc.title, Body: tc.body})
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.hits, hits)
		})
	}
}

func TestProcessEmptyIncludeAcceptsAll(t *testing.T) {
	t.Parallel()

	p := New(Config{Exclude: []string{"spam"}}, nil, zap.NewNop())
	out := p.Process(context.Background(), []harvest.ContentRecord{
		rec(harvest.SourceForum, "1", "anything", "https://a.example/1"),
		rec(harvest.SourceForum, "2", "spam spam", "https://a.example/2"),
	})
	require.Len(t, out, 1)
	assert.Equal(t, 0, out[0].Relevance)
	assert.Nil(t, out[0].Tags)
}

func TestProcessIsIdempotent(t *testing.T) {
	t.Parallel()

	p := New(Config{Include: []string{"go", "cache"}}, nil, zap.NewNop())
	input := []harvest.ContentRecord{
		rec(harvest.SourceForum, "f1", "Go cache patterns", "https://x.example/a?utm_medium=social"),
		rec(harvest.SourceBlogFeed, "b1", "Go cache patterns", "https://x.example/a"),
		rec(harvest.SourceVideo, "v1", "Intro to Go", "https://youtube.example/watch?v=1"),
		rec(harvest.SourceNewsFeed, "n1", "Cache invalidation in Go", "https://news.example/c"),
	}
	once := p.Process(context.Background(), input)
	twice := p.Process(context.Background(), once)
	require.Equal(t, once, twice)

	keys := make(map[string]struct{})
	for _, r := range once {
		key := DedupKey(r)
		_, dup := keys[key]
		require.False(t, dup, "duplicate key %s", key)
		keys[key] = struct{}{}
	}
}

func TestProcessDoesNotMutateInput(t *testing.T) {
	t.Parallel()

	tags := make([]string, 1, 4)
	tags[0] = "existing"
	input := []harvest.ContentRecord{{SourceType: harvest.SourceBlogFeed, Title: "go", URL: "https://b.example", Tags: tags}}

	out := New(Config{Include: []string{"go"}}, nil, zap.NewNop()).Process(context.Background(), input)
	require.Len(t, out, 1)
	assert.Equal(t, []string{"existing", "go"}, out[0].Tags)
	assert.Equal(t, []string{"existing"}, input[0].Tags)
	assert.Equal(t, 0, input[0].Relevance)
}

func TestProcessHistoryDropsPreviouslyDelivered(t *testing.T) {
	t.Parallel()

	clk := manual.New(time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC))
	c := cache.NewManager(context.Background(), nil, clk, cache.Config{}, zap.NewNop())
	history := NewHistory(c, clk, 2, zap.NewNop())
	require.NotNil(t, history)
	p := New(Config{HistoryDays: 2}, history, zap.NewNop())
	ctx := context.Background()

	day1 := []harvest.ContentRecord{
		rec(harvest.SourceNewsFeed, "1", "Old story", "https://n.example/1"),
	}
	require.Len(t, p.Process(ctx, day1), 1)
	require.Len(t, p.Process(ctx, day1), 1, "same-day reprocessing is idempotent")

	clk.Advance(24 * time.Hour)
	day2 := append(day1, rec(harvest.SourceNewsFeed, "2", "New story", "https://n.example/2"))
	out := p.Process(ctx, day2)
	require.Len(t, out, 1)
	assert.Equal(t, "2", out[0].SourceID)

	// Three days later the first day is outside the lookback window.
	clk.Advance(3 * 24 * time.Hour)
	require.Len(t, p.Process(ctx, day1), 1)
}

func TestNewHistoryDisabled(t *testing.T) {
	t.Parallel()

	require.Nil(t, NewHistory(nil, nil, 3, nil))
	c := cache.NewManager(context.Background(), nil, nil, cache.Config{}, zap.NewNop())
	require.Nil(t, NewHistory(c, nil, 0, nil))
}

func TestHistoryKey(t *testing.T) {
	t.Parallel()

	key := HistoryKey(time.Date(2026, 10, 16, 23, 0, 0, 0, time.FixedZone("x", -5*3600)))
	assert.Equal(t, "derived:history:2026-10-17", key)
	assert.Equal(t, "history", cache.PrefixOf(key))
}
