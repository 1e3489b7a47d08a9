package notifier

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lessuselesss/bounty-crawl/internal/config"
	"github.com/lessuselesss/bounty-crawl/internal/models"
)

func newTestNotifier(webhookURL string, retries int) *WebhookNotifier {
	return NewWebhookNotifier(config.NotificationConfig{
		JobRunnerWebhookURL: webhookURL,
		RetryAttempts:       retries,
		RetryDelaySeconds:   1,
		TimeoutSeconds:      5,
	}, zerolog.Nop())
}

func TestDispatchPostsBatchPayload(t *testing.T) {
	var got batchPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, &got))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	batch := models.PendingChangeBatch{
		ResourceIDs:    []string{"res-a", "res-b"},
		WindowOpenedAt: time.Now().UTC(),
	}
	require.NoError(t, newTestNotifier(server.URL, 0).Dispatch(context.Background(), batch))

	assert.Equal(t, []string{"res-a", "res-b"}, got.ChangedResourceIDs)
	assert.Equal(t, 2, got.BatchSize)
	assert.False(t, got.Timestamp.IsZero())
}

func TestDispatchRetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	batch := models.PendingChangeBatch{ResourceIDs: []string{"res-a"}}
	require.NoError(t, newTestNotifier(server.URL, 2).Dispatch(context.Background(), batch))
	assert.Equal(t, int32(2), calls.Load())
}

func TestDispatchSurfacesFailureAfterRetries(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	batch := models.PendingChangeBatch{ResourceIDs: []string{"res-a"}}
	err := newTestNotifier(server.URL, 1).Dispatch(context.Background(), batch)
	assert.Error(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestDispatchWithoutWebhookIsNoOp(t *testing.T) {
	batch := models.PendingChangeBatch{ResourceIDs: []string{"res-a"}}
	assert.NoError(t, newTestNotifier("", 0).Dispatch(context.Background(), batch))
}

func TestReportErrorsPostsAggregatedPayload(t *testing.T) {
	var got errorReportPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	errs := map[string]string{
		"res-a": "fetch timed out",
		"res-b": "no entities extracted",
	}
	require.NoError(t, newTestNotifier(server.URL, 0).ReportErrors(context.Background(), "run-1", errs))

	assert.Equal(t, "run-1", got.RunID)
	assert.Equal(t, errs, got.Errors)
}

func TestReportErrorsSkipsEmptyMap(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer server.Close()

	require.NoError(t, newTestNotifier(server.URL, 0).ReportErrors(context.Background(), "run-1", nil))
	assert.Equal(t, int32(0), calls.Load())
}
