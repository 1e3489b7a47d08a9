package fetcher

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/lessuselesss/bounty-crawl/internal/common"
	"github.com/lessuselesss/bounty-crawl/internal/config"
)

// AIFetcher calls a metered extraction API that renders and extracts the
// page remotely, returning structured entity JSON rather than raw markup.
// Keys rotate through the credential pool; a rejected or throttled key is
// retried once on the next key before the attempt fails.
type AIFetcher struct {
	cfg         config.AIExtractConfig
	logger      zerolog.Logger
	client      *http.Client
	credentials *CredentialPool
}

type aiExtractRequest struct {
	URL string `json:"url"`
}

// NewAIFetcher creates the metered extraction backend.
func NewAIFetcher(cfg config.AIExtractConfig, logger zerolog.Logger) *AIFetcher {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &AIFetcher{
		cfg:         cfg,
		logger:      logger.With().Str("component", "AIFetcher").Logger(),
		client:      &http.Client{Timeout: timeout},
		credentials: NewCredentialPool(cfg.APIKeys),
	}
}

// Name implements Fetcher.
func (af *AIFetcher) Name() string { return "ai" }

// Capabilities implements Fetcher.
func (af *AIFetcher) Capabilities() Capabilities {
	return Capabilities{RendersScripts: true, ExtractsStructured: true}
}

// Fetch submits the endpoint to the extraction API and returns its JSON
// payload with Structured set.
func (af *AIFetcher) Fetch(ctx context.Context, req FetchRequest) (*RawContent, error) {
	if !af.cfg.Enabled {
		return nil, common.NewError("ai extraction backend is disabled")
	}

	attempts := af.credentials.Size()
	if attempts == 0 {
		return nil, common.NewError("ai extraction backend has no credentials")
	}
	if attempts > 2 {
		attempts = 2
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		key, err := af.credentials.Next()
		if err != nil {
			return nil, err
		}

		content, err := af.fetchWithKey(ctx, req, key)
		if err == nil {
			return content, nil
		}
		lastErr = err

		if !isCredentialFailure(err) {
			return nil, err
		}
		af.logger.Warn().Str("resource_id", req.ResourceID).Msg("Extraction API rejected credential, rotating")
	}
	return nil, lastErr
}

func (af *AIFetcher) fetchWithKey(ctx context.Context, req FetchRequest, key string) (*RawContent, error) {
	payload, err := json.Marshal(aiExtractRequest{URL: req.Endpoint})
	if err != nil {
		return nil, common.WrapError(err, "failed to marshal extraction request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, af.cfg.EndpointURL, bytes.NewReader(payload))
	if err != nil {
		return nil, common.WrapError(err, "failed to build extraction request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+key)

	resp, err := af.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, common.WrapError(common.ErrTimeout, "extraction request aborted by deadline")
		}
		return nil, common.NewNetworkError(req.Endpoint, "extraction API request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, common.NewNetworkError(req.Endpoint, "failed reading extraction API response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, common.NewHTTPErrorWithURL(resp.StatusCode, http.StatusText(resp.StatusCode), req.Endpoint)
	}

	return &RawContent{
		URL:         req.Endpoint,
		Body:        body,
		ContentType: "application/json",
		StatusCode:  resp.StatusCode,
		Backend:     af.Name(),
		FetchedAt:   time.Now().UTC(),
		Structured:  true,
	}, nil
}

// isCredentialFailure reports whether the error indicates an exhausted or
// rejected key that a different credential might avoid.
func isCredentialFailure(err error) bool {
	var httpErr *common.HTTPError
	if !errors.As(err, &httpErr) {
		return false
	}
	return httpErr.StatusCode == http.StatusUnauthorized ||
		httpErr.StatusCode == http.StatusForbidden ||
		httpErr.StatusCode == http.StatusTooManyRequests
}
