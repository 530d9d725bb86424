package extractor

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/JakeFAU/content-harvester/internal/harvest"
)

// DefaultRedditURL is the public Reddit listing host.
const DefaultRedditURL = "https://www.reddit.com"

const defaultForumItems = 25

// Forum reads a subreddit listing. The source identifier is the subreddit
// name without the r/ prefix.
//
// Params: sort (hot|new|top|rising, default top), window (hour|day|week|month,
// default day), min_score (default 0).
type Forum struct {
	client    *Client
	baseURL   string
	bodyLimit int
}

var _ harvest.Extractor = (*Forum)(nil)

type redditListing struct {
	Data struct {
		Children []struct {
			Data redditPost `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type redditPost struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	Selftext   string  `json:"selftext"`
	URL        string  `json:"url"`
	Permalink  string  `json:"permalink"`
	Score      int     `json:"score"`
	CreatedUTC float64 `json:"created_utc"`
	Stickied   bool    `json:"stickied"`
	Flair      string  `json:"link_flair_text"`
}

// NewForum builds the forum extractor. An empty baseURL selects
// DefaultRedditURL.
func NewForum(client *Client, baseURL string, bodyLimit int) *Forum {
	if baseURL == "" {
		baseURL = DefaultRedditURL
	}
	if bodyLimit == 0 {
		bodyLimit = defaultBodyLimit
	}
	return &Forum{client: client, baseURL: strings.TrimRight(baseURL, "/"), bodyLimit: bodyLimit}
}

// Type implements harvest.Extractor.
func (f *Forum) Type() harvest.SourceType {
	return harvest.SourceForum
}

// Fetch implements harvest.Extractor.
func (f *Forum) Fetch(ctx context.Context, source harvest.SourceConfig) ([]harvest.ContentRecord, error) {
	sub := strings.TrimPrefix(strings.TrimSpace(source.Identifier), "r/")
	if sub == "" || strings.ContainsAny(sub, "/?#") {
		return nil, harvest.NewExtractError(harvest.KindNotFound, nil, "invalid subreddit %q", source.Identifier)
	}
	limit := source.MaxItems
	if limit <= 0 {
		limit = defaultForumItems
	}
	minScore, err := strconv.Atoi(source.Param("min_score", "0"))
	if err != nil {
		return nil, harvest.NewExtractError(harvest.KindUnknown, err, "invalid min_score for %s", source.Name())
	}

	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("t", source.Param("window", "day"))
	q.Set("raw_json", "1")
	listingURL := fmt.Sprintf("%s/r/%s/%s.json?%s", f.baseURL, url.PathEscape(sub), source.Param("sort", "top"), q.Encode())

	body, err := f.client.Get(ctx, harvest.SourceForum, listingURL)
	if err != nil {
		return nil, err
	}
	var listing redditListing
	if err := json.Unmarshal(body, &listing); err != nil {
		return nil, harvest.NewExtractError(harvest.KindParseError, err, "decode listing for r/%s", sub)
	}

	records := make([]harvest.ContentRecord, 0, len(listing.Data.Children))
	for _, child := range listing.Data.Children {
		post := child.Data
		if post.Stickied || post.Score < minScore || post.ID == "" {
			continue
		}
		if len(records) >= limit {
			break
		}
		records = append(records, f.record(post))
	}
	return records, nil
}

func (f *Forum) record(post redditPost) harvest.ContentRecord {
	link := post.URL
	if link == "" || strings.HasPrefix(link, "/") {
		link = DefaultRedditURL + post.Permalink
	}
	var tags []string
	if post.Flair != "" {
		tags = append(tags, post.Flair)
	}
	return harvest.ContentRecord{
		SourceType:  harvest.SourceForum,
		SourceID:    post.ID,
		Title:       collapse(post.Title),
		Body:        truncate(collapse(post.Selftext), f.bodyLimit),
		URL:         link,
		PublishedAt: time.Unix(int64(post.CreatedUTC), 0).UTC(),
		Tags:        tags,
	}
}
