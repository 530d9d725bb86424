package extractor

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/content-harvester/internal/harvest"
)

const sampleArxiv = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>ArXiv Query</title>
  <id>http://arxiv.org/api/query</id>
  <updated>2026-10-15T00:00:00-04:00</updated>
  <entry>
    <id>http://arxiv.org/abs/2410.01234v2</id>
    <updated>2026-10-14T17:59:59Z</updated>
    <published>2026-10-14T17:59:59Z</published>
    <title>Retrieval  at
      scale</title>
    <summary>We study retrieval for agents.</summary>
    <author><name>Ada Lovelace</name></author>
    <link href="http://arxiv.org/abs/2410.01234v2" rel="alternate" type="text/html"/>
    <category term="cs.AI" scheme="http://arxiv.org/schemas/atom"/>
  </entry>
</feed>`

func TestResearchFetch(t *testing.T) {
	t.Parallel()

	queries := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		queries <- r.URL.RawQuery
		_, _ = w.Write([]byte(sampleArxiv))
	}))
	t.Cleanup(srv.Close)

	r := NewResearch(newTestClient(t, ClientConfig{}), srv.URL, 0)
	records, err := r.Fetch(context.Background(), harvest.SourceConfig{
		Type:       harvest.SourceResearch,
		Identifier: "cat:cs.AI",
		MaxItems:   5,
	})
	require.NoError(t, err)
	query := <-queries
	require.Contains(t, query, "search_query=cat%3Acs.AI")
	require.Contains(t, query, "max_results=5")

	require.Len(t, records, 1)
	rec := records[0]
	assert.Equal(t, harvest.SourceResearch, rec.SourceType)
	assert.Equal(t, "2410.01234", rec.SourceID)
	assert.Equal(t, "Retrieval at scale", rec.Title)
	assert.Equal(t, "We study retrieval for agents.", rec.Body)
	assert.Equal(t, "http://arxiv.org/abs/2410.01234v2", rec.URL)
	assert.Contains(t, rec.Tags, "cs.AI")
	assert.Contains(t, rec.Tags, "author:Ada Lovelace")
}

func TestResearchEmptyQuery(t *testing.T) {
	t.Parallel()

	_, err := NewResearch(newTestClient(t, ClientConfig{}), "", 0).Fetch(context.Background(), harvest.SourceConfig{})
	requireKind(t, err, harvest.KindNotFound)
}

func TestArxivID(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "2401.01234", arxivID("http://arxiv.org/abs/2401.01234v2"))
	assert.Equal(t, "2401.01234", arxivID("http://arxiv.org/abs/2401.01234"))
	assert.Equal(t, "hep-th/9901001", arxivID("http://arxiv.org/abs/hep-th/9901001v1"))
	assert.Equal(t, "solv-int/9901001", arxivID("http://arxiv.org/abs/solv-int/9901001"))
	assert.Equal(t, "", arxivID("urn:uuid:1234"))
}
