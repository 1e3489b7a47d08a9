package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lessuselesss/bounty-crawl/internal/common"
	"github.com/lessuselesss/bounty-crawl/internal/config"
)

func newTestHTTPFetcher() *HTTPFetcher {
	return NewHTTPFetcher(config.HTTPBackend{TimeoutSeconds: 5}, zerolog.Nop())
}

func TestHTTPFetchReturnsBodyAndValidators(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("ETag", `"v1"`)
		w.Header().Set("Last-Modified", "Mon, 02 Mar 2026 09:00:00 GMT")
		_, _ = w.Write([]byte("<html><body>bounties</body></html>"))
	}))
	defer server.Close()

	content, err := newTestHTTPFetcher().Fetch(context.Background(), FetchRequest{
		ResourceID: "res-1",
		Endpoint:   server.URL,
	})
	require.NoError(t, err)
	require.NotNil(t, content)

	assert.Equal(t, 200, content.StatusCode)
	assert.Equal(t, []byte("<html><body>bounties</body></html>"), content.Body)
	assert.Equal(t, "text/html; charset=utf-8", content.ContentType)
	assert.Equal(t, `"v1"`, content.ETag)
	assert.Equal(t, "Mon, 02 Mar 2026 09:00:00 GMT", content.LastModified)
	assert.Equal(t, "http", content.Backend)
}

func TestHTTPFetchSendsConditionalHeaders(t *testing.T) {
	var gotETag, gotModified string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotETag = r.Header.Get("If-None-Match")
		gotModified = r.Header.Get("If-Modified-Since")
		w.WriteHeader(http.StatusNotModified)
	}))
	defer server.Close()

	_, err := newTestHTTPFetcher().Fetch(context.Background(), FetchRequest{
		ResourceID:           "res-1",
		Endpoint:             server.URL,
		PreviousETag:         `"v1"`,
		PreviousLastModified: "Mon, 02 Mar 2026 09:00:00 GMT",
	})

	assert.ErrorIs(t, err, common.ErrNotModified)
	assert.Equal(t, `"v1"`, gotETag)
	assert.Equal(t, "Mon, 02 Mar 2026 09:00:00 GMT", gotModified)
}

func TestHTTPFetchClassifiesErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone fishing", http.StatusNotFound)
	}))
	defer server.Close()

	_, err := newTestHTTPFetcher().Fetch(context.Background(), FetchRequest{
		ResourceID: "res-1",
		Endpoint:   server.URL,
	})
	require.Error(t, err)

	var httpErr *common.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusNotFound, httpErr.StatusCode)
}

func TestHTTPFetchReportsNetworkFailure(t *testing.T) {
	// Unroutable port on localhost, connection refused.
	_, err := newTestHTTPFetcher().Fetch(context.Background(), FetchRequest{
		ResourceID: "res-1",
		Endpoint:   "http://127.0.0.1:1/listing",
	})
	require.Error(t, err)
	assert.NotErrorIs(t, err, common.ErrNotModified)
}
