package processor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeURL(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"HTTPS://Example.COM:443/a/b/":                           "https://example.com/a/b",
		"http://example.com:80/":                                 "http://example.com",
		"https://example.com/post?utm_source=x&b=2&a=1#comments": "https://example.com/post?a=1&b=2",
		"https://example.com/post?fbclid=abc&UTM_Medium=email":   "https://example.com/post",
		"https://user:pw@example.com/p?":                         "https://example.com/p",
		"https://example.com:8443/p":                             "https://example.com:8443/p",
	}
	for in, want := range cases {
		got, err := NormalizeURL(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}

func TestNormalizeURLRejectsRelative(t *testing.T) {
	t.Parallel()

	_, err := NormalizeURL("/just/a/path")
	require.Error(t, err)
	_, err = NormalizeURL("http://[::1")
	require.Error(t, err)
}

func TestNormalizeURLIsIdempotent(t *testing.T) {
	t.Parallel()

	once, err := NormalizeURL("https://Example.com/x/?utm_campaign=a&q=go#top")
	require.NoError(t, err)
	twice, err := NormalizeURL(once)
	require.NoError(t, err)
	require.Equal(t, once, twice)
}
