// Package notifier delivers coalesced change batches and run-level error
// reports to the downstream job-runner webhook.
package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/lessuselesss/bounty-crawl/internal/common"
	"github.com/lessuselesss/bounty-crawl/internal/config"
	"github.com/lessuselesss/bounty-crawl/internal/models"
)

// WebhookNotifier posts batch and error payloads to the configured webhook
// with a small fixed retry. A batch that still fails after retries is logged
// loudly and surfaced to the caller; it is never silently discarded, the
// periodic full scan re-derives anything lost.
type WebhookNotifier struct {
	cfg    config.NotificationConfig
	logger zerolog.Logger
	client *http.Client
}

// NewWebhookNotifier creates a notifier.
func NewWebhookNotifier(cfg config.NotificationConfig, logger zerolog.Logger) *WebhookNotifier {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &WebhookNotifier{
		cfg:    cfg,
		logger: logger.With().Str("component", "WebhookNotifier").Logger(),
		client: &http.Client{Timeout: timeout},
	}
}

type batchPayload struct {
	ChangedResourceIDs []string  `json:"changed_resource_ids"`
	Timestamp          time.Time `json:"timestamp"`
	BatchSize          int       `json:"batch_size"`
}

type errorReportPayload struct {
	RunID     string            `json:"run_id"`
	Timestamp time.Time         `json:"timestamp"`
	Errors    map[string]string `json:"errors"`
}

// Dispatch implements the coalescer batch sink.
func (n *WebhookNotifier) Dispatch(ctx context.Context, batch models.PendingChangeBatch) error {
	if n.cfg.JobRunnerWebhookURL == "" {
		n.logger.Debug().Msg("No webhook configured, dropping batch dispatch")
		return nil
	}
	payload := batchPayload{
		ChangedResourceIDs: batch.ResourceIDs,
		Timestamp:          time.Now().UTC(),
		BatchSize:          len(batch.ResourceIDs),
	}
	err := n.post(ctx, payload)
	if err != nil {
		n.logger.Error().
			Err(err).
			Int("batch_size", len(batch.ResourceIDs)).
			Strs("resource_ids", batch.ResourceIDs).
			Msg("Batch delivery failed after retries")
	}
	return err
}

// ReportErrors sends one aggregated notification for the run's fetch and
// extraction failures instead of one message per resource.
func (n *WebhookNotifier) ReportErrors(ctx context.Context, runID string, errorsByResource map[string]string) error {
	if n.cfg.JobRunnerWebhookURL == "" || len(errorsByResource) == 0 {
		return nil
	}
	payload := errorReportPayload{
		RunID:     runID,
		Timestamp: time.Now().UTC(),
		Errors:    errorsByResource,
	}
	err := n.post(ctx, payload)
	if err != nil {
		n.logger.Error().
			Err(err).
			Str("run_id", runID).
			Int("error_count", len(errorsByResource)).
			Msg("Error report delivery failed after retries")
	}
	return err
}

func (n *WebhookNotifier) post(ctx context.Context, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return common.WrapError(err, "failed to marshal webhook payload")
	}

	attempts := n.cfg.RetryAttempts + 1
	retryDelay := time.Duration(n.cfg.RetryDelaySeconds) * time.Second
	if retryDelay <= 0 {
		retryDelay = 5 * time.Second
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(retryDelay):
			case <-ctx.Done():
				return common.WrapError(ctx.Err(), "webhook retry aborted")
			}
		}
		if lastErr = n.postOnce(ctx, body); lastErr == nil {
			return nil
		}
		n.logger.Warn().Err(lastErr).Int("attempt", attempt+1).Msg("Webhook delivery attempt failed")
	}
	return lastErr
}

func (n *WebhookNotifier) postOnce(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.cfg.JobRunnerWebhookURL, bytes.NewReader(body))
	if err != nil {
		return common.WrapError(err, "failed to build webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return common.NewNetworkError(n.cfg.JobRunnerWebhookURL, "webhook request failed", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return common.NewHTTPErrorWithURL(resp.StatusCode, http.StatusText(resp.StatusCode), n.cfg.JobRunnerWebhookURL)
	}
	return nil
}
