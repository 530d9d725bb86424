package extractor

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	"github.com/JakeFAU/content-harvester/internal/harvest"
	"github.com/JakeFAU/content-harvester/internal/policy/ratelimit"
)

const defaultVideoItems = 10

var channelIDPattern = regexp.MustCompile(`^UC[0-9A-Za-z_-]{22}$`)

// YouTubeConfig configures the video extractors.
type YouTubeConfig struct {
	APIKey string `mapstructure:"api_key"`
	// Endpoint overrides the API base URL. Used by tests.
	Endpoint  string `mapstructure:"endpoint"`
	BodyLimit int    `mapstructure:"-"`
}

// Video searches the YouTube Data API. The source identifier is either a
// channel id (UC...) or a free-text query. The same type serves short-form
// video by restricting results to short durations.
//
// Params: published_within (Go duration, e.g. 48h), order (default date).
type Video struct {
	sourceType harvest.SourceType
	svc        *youtube.Service
	limiter    *ratelimit.Limiter
	bodyLimit  int
}

var _ harvest.Extractor = (*Video)(nil)

// NewVideo builds a long-form video extractor.
func NewVideo(ctx context.Context, cfg YouTubeConfig, limiter *ratelimit.Limiter) (*Video, error) {
	return newVideo(ctx, harvest.SourceVideo, cfg, limiter)
}

// NewShortVideo builds a short-form video extractor.
func NewShortVideo(ctx context.Context, cfg YouTubeConfig, limiter *ratelimit.Limiter) (*Video, error) {
	return newVideo(ctx, harvest.SourceShortVideo, cfg, limiter)
}

func newVideo(ctx context.Context, sourceType harvest.SourceType, cfg YouTubeConfig, limiter *ratelimit.Limiter) (*Video, error) {
	if limiter == nil {
		limiter = ratelimit.New(ratelimit.Config{})
	}
	if cfg.BodyLimit == 0 {
		cfg.BodyLimit = defaultBodyLimit
	}
	v := &Video{sourceType: sourceType, limiter: limiter, bodyLimit: cfg.BodyLimit}
	// Without a key every fetch reports auth_failed rather than failing wiring.
	if cfg.APIKey == "" {
		return v, nil
	}
	opts := []option.ClientOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(strings.TrimRight(cfg.Endpoint, "/")+"/"))
	}
	svc, err := youtube.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create youtube service: %w", err)
	}
	v.svc = svc
	return v, nil
}

// Type implements harvest.Extractor.
func (v *Video) Type() harvest.SourceType {
	return v.sourceType
}

// Fetch implements harvest.Extractor.
func (v *Video) Fetch(ctx context.Context, source harvest.SourceConfig) ([]harvest.ContentRecord, error) {
	if v.svc == nil {
		return nil, harvest.NewExtractError(harvest.KindAuthFailed, nil, "youtube api key not configured")
	}
	identifier := strings.TrimSpace(source.Identifier)
	if identifier == "" {
		return nil, harvest.NewExtractError(harvest.KindNotFound, nil, "empty video query")
	}
	limit := source.MaxItems
	if limit <= 0 {
		limit = defaultVideoItems
	}

	call := v.svc.Search.List([]string{"snippet"}).
		Type("video").
		MaxResults(int64(limit)).
		Order(source.Param("order", "date"))
	if channelIDPattern.MatchString(identifier) {
		call = call.ChannelId(identifier)
	} else {
		call = call.Q(identifier)
	}
	if v.sourceType == harvest.SourceShortVideo {
		call = call.VideoDuration("short")
	}
	if within := source.Param("published_within", ""); within != "" {
		d, err := time.ParseDuration(within)
		if err != nil {
			return nil, harvest.NewExtractError(harvest.KindUnknown, err, "invalid published_within for %s", source.Name())
		}
		call = call.PublishedAfter(time.Now().Add(-d).UTC().Format(time.RFC3339))
	}

	if err := v.limiter.Wait(ctx, string(v.sourceType)); err != nil {
		return nil, harvest.NewExtractError(harvest.KindOf(err), err, "rate limiter for %s", v.sourceType)
	}
	resp, err := call.Context(ctx).Do()
	if err != nil {
		return nil, classifyAPIError(err, source)
	}

	records := make([]harvest.ContentRecord, 0, len(resp.Items))
	for _, item := range resp.Items {
		if item == nil || item.Id == nil || item.Id.VideoId == "" || item.Snippet == nil {
			continue
		}
		records = append(records, v.record(item))
	}
	return records, nil
}

func (v *Video) record(item *youtube.SearchResult) harvest.ContentRecord {
	id := item.Id.VideoId
	link := "https://www.youtube.com/watch?v=" + id
	if v.sourceType == harvest.SourceShortVideo {
		link = "https://www.youtube.com/shorts/" + id
	}
	published, _ := time.Parse(time.RFC3339, item.Snippet.PublishedAt)
	var tags []string
	if item.Snippet.ChannelTitle != "" {
		tags = append(tags, "channel:"+item.Snippet.ChannelTitle)
	}
	return harvest.ContentRecord{
		SourceType:  v.sourceType,
		SourceID:    id,
		Title:       htmlToText(item.Snippet.Title),
		Body:        truncate(htmlToText(item.Snippet.Description), v.bodyLimit),
		URL:         link,
		PublishedAt: published.UTC(),
		Tags:        tags,
	}
}

func classifyAPIError(err error, source harvest.SourceConfig) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		kind := KindForStatus(apiErr.Code)
		// Quota exhaustion is reported as 403 with a quota reason.
		for _, e := range apiErr.Errors {
			if strings.Contains(e.Reason, "quota") || e.Reason == "rateLimitExceeded" {
				kind = harvest.KindRateLimited
			}
		}
		return harvest.NewExtractError(kind, err, "youtube search for %s returned %d", source.Name(), apiErr.Code)
	}
	return harvest.NewExtractError(harvest.KindOf(err), err, "youtube search for %s", source.Name())
}
