package extractor

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/content-harvester/internal/harvest"
)

const sampleRSS = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
  <title>Example News</title>
  <link>https://news.example.com</link>
  <description>Example</description>
  <item>
    <title>First &amp; best</title>
    <link>https://news.example.com/a?utm_source=rss</link>
    <guid>a-1</guid>
    <description><![CDATA[<p>Hello <b>world</b></p><script>track()</script>]]></description>
    <pubDate>Mon, 12 Oct 2026 10:00:00 GMT</pubDate>
    <category>go</category>
  </item>
  <item>
    <title>Second</title>
    <link>https://news.example.com/b</link>
    <description>Plain text body that is somewhat long</description>
  </item>
  <item>
    <description>orphan</description>
  </item>
</channel>
</rss>`

func serveBody(t *testing.T, contentType, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", contentType)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFeedFetch(t *testing.T) {
	t.Parallel()

	srv := serveBody(t, "application/rss+xml", sampleRSS)
	f := NewFeed(harvest.SourceNewsFeed, newTestClient(t, ClientConfig{}), 0)
	require.Equal(t, harvest.SourceNewsFeed, f.Type())

	records, err := f.Fetch(context.Background(), harvest.SourceConfig{Type: harvest.SourceNewsFeed, Identifier: srv.URL})
	require.NoError(t, err)
	require.Len(t, records, 2, "items without title and link are skipped")

	first := records[0]
	assert.Equal(t, harvest.SourceNewsFeed, first.SourceType)
	assert.Equal(t, "a-1", first.SourceID)
	assert.Equal(t, "First & best", first.Title)
	assert.Equal(t, "Hello world", first.Body)
	assert.Equal(t, "https://news.example.com/a?utm_source=rss", first.URL)
	assert.Equal(t, time.Date(2026, 10, 12, 10, 0, 0, 0, time.UTC), first.PublishedAt)
	assert.Equal(t, []string{"go"}, first.Tags)

	second := records[1]
	assert.Len(t, second.SourceID, 64, "missing guid falls back to a fingerprint")
	assert.True(t, second.PublishedAt.IsZero())
}

func TestFeedFetchLimits(t *testing.T) {
	t.Parallel()

	srv := serveBody(t, "application/rss+xml", sampleRSS)
	f := NewFeed(harvest.SourceBlogFeed, newTestClient(t, ClientConfig{}), 0)

	records, err := f.Fetch(context.Background(), harvest.SourceConfig{
		Type:       harvest.SourceBlogFeed,
		Identifier: srv.URL,
		MaxItems:   1,
		Params:     map[string]string{"body_limit": "8"},
	})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Hello...", records[0].Body)
}

func TestFeedFetchErrors(t *testing.T) {
	t.Parallel()

	f := NewFeed(harvest.SourceNewsFeed, newTestClient(t, ClientConfig{}), 0)

	_, err := f.Fetch(context.Background(), harvest.SourceConfig{Identifier: "not a url"})
	requireKind(t, err, harvest.KindNotFound)

	srv := serveBody(t, "text/plain", "definitely not a feed")
	_, err = f.Fetch(context.Background(), harvest.SourceConfig{Identifier: srv.URL})
	requireKind(t, err, harvest.KindParseError)
}

func TestHTMLToText(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "a b", htmlToText("  a \n b "))
	assert.Equal(t, "Tom & Jerry", htmlToText("Tom &amp; Jerry"))
	assert.Equal(t, "title text", htmlToText("<div><h1>title</h1>\n<style>p{}</style><p>text</p></div>"))
	assert.Equal(t, "héllo", truncate("héllo", 5))
	assert.Equal(t, "hé", truncate("héllo", 2))
	assert.Equal(t, "abcdef", truncate("abcdef", 0))
}
