package fetcher

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/rs/zerolog"

	"github.com/lessuselesss/bounty-crawl/internal/common"
	"github.com/lessuselesss/bounty-crawl/internal/config"
)

// HTTPFetcher is the lightweight last-resort backend: a single colly GET of
// the static markup, with conditional request support.
type HTTPFetcher struct {
	cfg           config.HTTPBackend
	logger        zerolog.Logger
	baseCollector *colly.Collector
}

// NewHTTPFetcher creates the colly-based HTTP backend.
func NewHTTPFetcher(cfg config.HTTPBackend, logger zerolog.Logger) *HTTPFetcher {
	c := colly.NewCollector(colly.Async(false))
	c.IgnoreRobotsTxt = true
	c.WithTransport(newHTTPTransport(cfg.InsecureSkipVerify))

	return &HTTPFetcher{
		cfg:           cfg,
		logger:        logger.With().Str("component", "HTTPFetcher").Logger(),
		baseCollector: c,
	}
}

// Name implements Fetcher.
func (hf *HTTPFetcher) Name() string { return "http" }

// Capabilities implements Fetcher.
func (hf *HTTPFetcher) Capabilities() Capabilities {
	return Capabilities{FetchesStaticHTML: true}
}

// Fetch executes a single HTTP GET honoring the context deadline.
func (hf *HTTPFetcher) Fetch(ctx context.Context, req FetchRequest) (*RawContent, error) {
	var (
		result   *RawContent
		fetchErr error
	)

	collector := hf.baseCollector.Clone()
	if hf.cfg.UserAgent != "" {
		collector.UserAgent = hf.cfg.UserAgent
	}
	collector.SetRequestTimeout(hf.requestTimeout(ctx))
	if hf.cfg.MaxContentSize > 0 {
		collector.MaxBodySize = hf.cfg.MaxContentSize
	}

	collector.OnRequest(func(r *colly.Request) {
		if req.PreviousETag != "" {
			r.Headers.Set("If-None-Match", req.PreviousETag)
		}
		if req.PreviousLastModified != "" {
			r.Headers.Set("If-Modified-Since", req.PreviousLastModified)
		}
	})

	collector.OnResponse(func(r *colly.Response) {
		body := make([]byte, len(r.Body))
		copy(body, r.Body)
		result = &RawContent{
			URL:          r.Request.URL.String(),
			Body:         body,
			ContentType:  r.Headers.Get("Content-Type"),
			StatusCode:   r.StatusCode,
			Backend:      hf.Name(),
			FetchedAt:    time.Now().UTC(),
			ETag:         r.Headers.Get("ETag"),
			LastModified: r.Headers.Get("Last-Modified"),
		}
	})

	collector.OnError(func(r *colly.Response, err error) {
		fetchErr = hf.classifyError(req.Endpoint, r, err)
	})

	if err := collector.Visit(req.Endpoint); err != nil {
		if fetchErr == nil {
			fetchErr = hf.classifyError(req.Endpoint, nil, err)
		}
	}
	collector.Wait()

	if ctx.Err() != nil {
		return nil, common.WrapError(common.ErrTimeout, "http fetch aborted by deadline")
	}
	if fetchErr != nil {
		return nil, fetchErr
	}
	if result == nil {
		return nil, common.NewNetworkError(req.Endpoint, "no response received", nil)
	}
	return result, nil
}

// requestTimeout derives the collector timeout from the context deadline,
// falling back to the configured value.
func (hf *HTTPFetcher) requestTimeout(ctx context.Context) time.Duration {
	timeout := time.Duration(hf.cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining > 0 && remaining < timeout {
			timeout = remaining
		}
	}
	return timeout
}

func (hf *HTTPFetcher) classifyError(endpoint string, r *colly.Response, err error) error {
	if r != nil {
		if r.StatusCode == http.StatusNotModified {
			return common.ErrNotModified
		}
		if r.StatusCode > 0 && (r.StatusCode < 200 || r.StatusCode >= 300) {
			return common.NewHTTPErrorWithURL(r.StatusCode, http.StatusText(r.StatusCode), endpoint)
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return common.WrapError(common.ErrTimeout, "http fetch timed out")
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return common.WrapError(common.ErrTimeout, "http fetch timed out")
	}
	if err != nil && strings.Contains(err.Error(), "Not Modified") {
		return common.ErrNotModified
	}
	return common.NewNetworkError(endpoint, "HTTP request failed", err)
}

func newHTTPTransport(insecureSkipVerify bool) *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        32,
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     60 * time.Second,
		TLSClientConfig:     &tls.Config{InsecureSkipVerify: insecureSkipVerify},
	}
}
