// Package prober runs the cheap poll pass: a fast httpx sweep collecting
// status, content length and body hash per endpoint, without fetching or
// extracting anything.
package prober

import (
	"fmt"
	"time"

	"github.com/projectdiscovery/httpx/runner"
	"github.com/rs/zerolog"

	"github.com/lessuselesss/bounty-crawl/internal/common"
	"github.com/lessuselesss/bounty-crawl/internal/config"
)

// ProbeResult is the cheap observation for one endpoint.
type ProbeResult struct {
	ResourceID    string
	URL           string
	StatusCode    int
	ContentLength int64
	BodyHash      string
	Timestamp     time.Time
	Failed        bool
}

// CompositeHash folds the observation into one comparable string. Two
// observations with equal composites are treated as "probably unchanged";
// a mismatch only ever means "maybe changed".
func (pr ProbeResult) CompositeHash() string {
	return fmt.Sprintf("%d:%d:%s", pr.StatusCode, pr.ContentLength, pr.BodyHash)
}

// Prober wraps the httpx library runner for one-shot sweeps over the watched
// endpoints.
type Prober struct {
	cfg    config.ProberConfig
	logger zerolog.Logger
}

// NewProber creates a prober.
func NewProber(cfg config.ProberConfig, logger zerolog.Logger) *Prober {
	return &Prober{
		cfg:    cfg,
		logger: logger.With().Str("component", "Prober").Logger(),
	}
}

// Probe sweeps the endpoints of the given resources and returns one result
// per resource that answered. Endpoints that never produced a result are
// absent from the map; callers treat absence as "maybe changed" so a probe
// outage cannot suppress detection.
func (p *Prober) Probe(resources []config.WatchedResource) (map[string]ProbeResult, error) {
	if !p.cfg.Enabled || len(resources) == 0 {
		return map[string]ProbeResult{}, nil
	}

	byEndpoint := make(map[string]string, len(resources))
	targets := make([]string, 0, len(resources))
	for _, resource := range resources {
		byEndpoint[resource.Endpoint] = resource.ID
		targets = append(targets, resource.Endpoint)
	}

	results := make(map[string]ProbeResult, len(resources))
	resultsChan := make(chan ProbeResult, len(resources))

	options := &runner.Options{
		Methods:            "GET",
		InputTargetHost:    targets,
		FollowRedirects:    true,
		Timeout:            p.timeoutSeconds(),
		Retries:            p.cfg.Retries,
		Threads:            p.threads(),
		Hashes:             "sha256",
		DisableUpdateCheck: true,
		Silent:             true,
		OnResult: func(res runner.Result) {
			resourceID, known := byEndpoint[res.Input]
			if !known {
				resourceID = byEndpoint[res.URL]
			}
			if resourceID == "" {
				return
			}
			resultsChan <- ProbeResult{
				ResourceID:    resourceID,
				URL:           res.URL,
				StatusCode:    res.StatusCode,
				ContentLength: int64(res.ContentLength),
				BodyHash:      bodyHashFrom(res),
				Timestamp:     time.Now().UTC(),
				Failed:        res.Error != "",
			}
		},
	}

	httpxRunner, err := runner.New(options)
	if err != nil {
		return nil, common.WrapError(err, "failed to initialize httpx runner")
	}
	defer httpxRunner.Close()

	httpxRunner.RunEnumeration()
	close(resultsChan)

	for result := range resultsChan {
		results[result.ResourceID] = result
	}

	p.logger.Info().
		Int("targets", len(targets)).
		Int("answered", len(results)).
		Msg("Cheap poll pass completed")
	return results, nil
}

func (p *Prober) timeoutSeconds() int {
	if p.cfg.TimeoutSeconds > 0 {
		return p.cfg.TimeoutSeconds
	}
	return 10
}

func (p *Prober) threads() int {
	if p.cfg.Threads > 0 {
		return p.cfg.Threads
	}
	return 10
}

// bodyHashFrom digs the body sha256 out of the httpx hash map.
func bodyHashFrom(res runner.Result) string {
	if res.Hashes == nil {
		return ""
	}
	if hash, ok := res.Hashes["body_sha256"].(string); ok {
		return hash
	}
	return ""
}
