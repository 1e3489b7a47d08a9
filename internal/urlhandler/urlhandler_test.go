package urlhandler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lessuselesss/bounty-crawl/internal/config"
)

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"lowercases scheme and host", "HTTPS://Bounties.Example.COM/Listing", "https://bounties.example.com/Listing"},
		{"strips default https port", "https://example.com:443/listing", "https://example.com/listing"},
		{"strips default http port", "http://example.com:80/listing", "http://example.com/listing"},
		{"keeps explicit port", "https://example.com:8443/listing", "https://example.com:8443/listing"},
		{"drops fragment", "https://example.com/listing#section", "https://example.com/listing"},
		{"drops trailing slash", "https://example.com/listing/", "https://example.com/listing"},
		{"trims whitespace", "  https://example.com/listing  ", "https://example.com/listing"},
		{"keeps query string", "https://example.com/listing?page=2", "https://example.com/listing?page=2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeURL(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeURLRejectsRelative(t *testing.T) {
	_, err := NormalizeURL("/listing")
	assert.Error(t, err)

	_, err = NormalizeURL("not a url at all ://")
	assert.Error(t, err)
}

func newTestResolver() *ResourceResolver {
	return NewResourceResolver([]config.WatchedResource{
		{ID: "acme-board", Endpoint: "https://bounties.acme.example/board"},
		{ID: "acme-board-archive", Endpoint: "https://bounties.acme.example/board/archive"},
		{ID: "other-site", Endpoint: "https://other.example/listing/"},
	})
}

func TestResolveExactMatch(t *testing.T) {
	id, err := newTestResolver().Resolve("https://bounties.acme.example/board")
	require.NoError(t, err)
	assert.Equal(t, "acme-board", id)
}

func TestResolveMatchesDespiteNormalization(t *testing.T) {
	id, err := newTestResolver().Resolve("HTTPS://OTHER.EXAMPLE:443/listing#top")
	require.NoError(t, err)
	assert.Equal(t, "other-site", id)
}

func TestResolvePrefersLongestPrefix(t *testing.T) {
	id, err := newTestResolver().Resolve("https://bounties.acme.example/board/archive/2026")
	require.NoError(t, err)
	assert.Equal(t, "acme-board-archive", id)

	id, err = newTestResolver().Resolve("https://bounties.acme.example/board/item/42")
	require.NoError(t, err)
	assert.Equal(t, "acme-board", id)
}

func TestResolveUnmappableURL(t *testing.T) {
	_, err := newTestResolver().Resolve("https://unrelated.example/page")
	assert.Error(t, err)
}
