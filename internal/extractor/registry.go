package extractor

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/JakeFAU/content-harvester/internal/harvest"
	"github.com/JakeFAU/content-harvester/internal/policy/ratelimit"
)

// Config carries everything needed to build the full extractor set.
type Config struct {
	Client    ClientConfig  `mapstructure:"http"`
	BodyLimit int           `mapstructure:"body_limit"`
	RedditURL string        `mapstructure:"reddit_url"`
	ArxivURL  string        `mapstructure:"arxiv_url"`
	YouTube   YouTubeConfig `mapstructure:"youtube"`
}

// Registry maps each source type to its extractor. It is built once and is
// read-only afterwards.
type Registry struct {
	extractors map[harvest.SourceType]harvest.Extractor
}

// NewRegistry indexes extractors by type. Later duplicates replace earlier ones.
func NewRegistry(extractors ...harvest.Extractor) *Registry {
	r := &Registry{extractors: make(map[harvest.SourceType]harvest.Extractor, len(extractors))}
	for _, e := range extractors {
		r.extractors[e.Type()] = e
	}
	return r
}

// Build constructs one extractor per supported source type.
func Build(ctx context.Context, cfg Config, limiter *ratelimit.Limiter, logger *zap.Logger) (*Registry, error) {
	client := NewClient(cfg.Client, limiter, logger)
	cfg.YouTube.BodyLimit = cfg.BodyLimit

	video, err := NewVideo(ctx, cfg.YouTube, limiter)
	if err != nil {
		return nil, fmt.Errorf("video extractor: %w", err)
	}
	shortVideo, err := NewShortVideo(ctx, cfg.YouTube, limiter)
	if err != nil {
		return nil, fmt.Errorf("short video extractor: %w", err)
	}
	return NewRegistry(
		NewForum(client, cfg.RedditURL, cfg.BodyLimit),
		video,
		shortVideo,
		NewResearch(client, cfg.ArxivURL, cfg.BodyLimit),
		NewFeed(harvest.SourceNewsFeed, client, cfg.BodyLimit),
		NewFeed(harvest.SourceBlogFeed, client, cfg.BodyLimit),
	), nil
}

// Lookup returns the extractor for t.
func (r *Registry) Lookup(t harvest.SourceType) (harvest.Extractor, bool) {
	e, ok := r.extractors[t]
	return e, ok
}

// Types returns the registered source types, sorted.
func (r *Registry) Types() []harvest.SourceType {
	out := make([]harvest.SourceType, 0, len(r.extractors))
	for t := range r.extractors {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
