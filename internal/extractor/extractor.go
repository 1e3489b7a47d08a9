// Package extractor turns fetched page content into normalized bounty
// entities via a chain of extraction strategies.
package extractor

import (
	"context"
	"encoding/json"
	"regexp"

	"github.com/rs/zerolog"

	"github.com/lessuselesss/bounty-crawl/internal/common"
	"github.com/lessuselesss/bounty-crawl/internal/config"
	"github.com/lessuselesss/bounty-crawl/internal/fetcher"
	"github.com/lessuselesss/bounty-crawl/internal/models"
)

// Extractor runs the configured strategies in order until one yields
// entities. Structured backend output bypasses the markup strategies.
type Extractor struct {
	cfg      config.ExtractorConfig
	logger   zerolog.Logger
	embedded *EmbeddedJSONStrategy
	pattern  *PatternStrategy
	api      *APIClientStrategy
}

// NewExtractor compiles the reference patterns and assembles the strategy
// chain. Invalid patterns are rejected up front rather than silently skipped
// at extraction time.
func NewExtractor(cfg config.ExtractorConfig, logger zerolog.Logger) (*Extractor, error) {
	patterns := make([]*regexp.Regexp, 0, len(cfg.IssueURLPatterns))
	for _, raw := range cfg.IssueURLPatterns {
		compiled, err := regexp.Compile(raw)
		if err != nil {
			return nil, common.WrapError(err, "invalid issue URL pattern "+raw)
		}
		patterns = append(patterns, compiled)
	}
	if len(patterns) == 0 {
		return nil, common.NewError("extractor requires at least one issue URL pattern")
	}

	componentLogger := logger.With().Str("component", "Extractor").Logger()
	return &Extractor{
		cfg:      cfg,
		logger:   componentLogger,
		embedded: NewEmbeddedJSONStrategy(patterns, logger),
		pattern:  NewPatternStrategy(patterns, cfg.ScanInlineScripts, logger),
		api:      NewAPIClientStrategy(cfg.CanonicalAPIBase, cfg.APITimeoutSeconds, logger),
	}, nil
}

// Extract resolves bounty entities from the fetched content. Zero entities
// with a nil error never happens; an all-strategy miss returns ErrNoEntities
// so callers can warn without treating it as a fetch failure.
func (e *Extractor) Extract(ctx context.Context, resourceID string, content *fetcher.RawContent) ([]models.Bounty, error) {
	if content.Structured {
		bounties, err := e.decodeStructured(content.Body, content.URL)
		if err != nil {
			return nil, err
		}
		return e.finish(resourceID, "structured", bounties)
	}

	if bounties := e.embedded.Extract(content.Body, content.URL); len(bounties) > 0 {
		return e.finish(resourceID, e.embedded.Name(), bounties)
	}
	if bounties := e.pattern.Extract(content.Body, content.URL); len(bounties) > 0 {
		return e.finish(resourceID, e.pattern.Name(), bounties)
	}
	if e.api.Applicable(content.URL) {
		bounties, err := e.api.Extract(ctx, content.URL)
		if err != nil {
			e.logger.Warn().Err(err).Str("resource_id", resourceID).Msg("Canonical API strategy failed")
		} else if len(bounties) > 0 {
			return e.finish(resourceID, e.api.Name(), bounties)
		}
	}

	return nil, common.WrapError(common.ErrNoEntities, "all extraction strategies exhausted for "+resourceID)
}

// structuredPayload is the envelope the extraction API returns. A bare array
// of bounties is also accepted.
type structuredPayload struct {
	Bounties []models.Bounty `json:"bounties"`
}

func (e *Extractor) decodeStructured(body []byte, sourceURL string) ([]models.Bounty, error) {
	var envelope structuredPayload
	if err := json.Unmarshal(body, &envelope); err == nil && len(envelope.Bounties) > 0 {
		return e.normalizeStructured(envelope.Bounties, sourceURL), nil
	}
	var bare []models.Bounty
	if err := json.Unmarshal(body, &bare); err == nil && len(bare) > 0 {
		return e.normalizeStructured(bare, sourceURL), nil
	}
	return nil, common.WrapError(common.ErrNoEntities, "structured payload carried no bounties")
}

func (e *Extractor) normalizeStructured(bounties []models.Bounty, sourceURL string) []models.Bounty {
	out := bounties[:0]
	for _, bounty := range bounties {
		if bounty.ID == "" {
			continue
		}
		if bounty.SourceURL == "" {
			bounty.SourceURL = sourceURL
		}
		if bounty.Status == "" {
			bounty.Status = models.StatusOpen
		}
		if bounty.RewardAmountMinorUnits == 0 && bounty.Currency == "" {
			bounty.RewardAmountMinorUnits = models.AmountUnknown
		}
		bounty.NormalizeTags()
		out = append(out, bounty)
	}
	return out
}

// finish applies the id requirement and the per-page cap, then logs the
// outcome.
func (e *Extractor) finish(resourceID, strategy string, bounties []models.Bounty) ([]models.Bounty, error) {
	kept := bounties[:0]
	for _, bounty := range bounties {
		if bounty.ID == "" {
			continue
		}
		kept = append(kept, bounty)
	}
	if e.cfg.MaxEntitiesPerPage > 0 && len(kept) > e.cfg.MaxEntitiesPerPage {
		e.logger.Warn().
			Str("resource_id", resourceID).
			Int("extracted", len(kept)).
			Int("cap", e.cfg.MaxEntitiesPerPage).
			Msg("Entity count exceeds per-page cap, truncating")
		kept = kept[:e.cfg.MaxEntitiesPerPage]
	}
	if len(kept) == 0 {
		return nil, common.WrapError(common.ErrNoEntities, "strategy "+strategy+" produced only unidentifiable entities")
	}

	e.logger.Debug().
		Str("resource_id", resourceID).
		Str("strategy", strategy).
		Int("entities", len(kept)).
		Msg("Extraction completed")
	return kept, nil
}
