package config

import (
	"net/url"
	"strings"

	"github.com/rs/zerolog"
)

// ResourceTier classifies how aggressively a watched resource is polled.
type ResourceTier string

const (
	TierCritical   ResourceTier = "critical"
	TierActive     ResourceTier = "active"
	TierEmerging   ResourceTier = "emerging"
	TierBackground ResourceTier = "background"
)

// IsValid reports whether the tier is one of the known values.
func (t ResourceTier) IsValid() bool {
	switch t {
	case TierCritical, TierActive, TierEmerging, TierBackground:
		return true
	}
	return false
}

// WatchedResource is one externally hosted bounty page being watched for
// change. The set of IDs is the universe over which scans operate; entries
// are immutable during a run.
type WatchedResource struct {
	ID                  string       `json:"id" yaml:"id" validate:"required"`
	Endpoint            string       `json:"endpoint" yaml:"endpoint" validate:"required,url"`
	Tier                ResourceTier `json:"tier,omitempty" yaml:"tier,omitempty"`
	PollIntervalSeconds int          `json:"poll_interval_seconds,omitempty" yaml:"poll_interval_seconds,omitempty" validate:"omitempty,min=1"`
}

// EffectivePollInterval returns the configured poll interval in seconds,
// falling back to the tier default when unset.
func (r WatchedResource) EffectivePollInterval() int {
	if r.PollIntervalSeconds > 0 {
		return r.PollIntervalSeconds
	}
	return defaultPollIntervalSeconds(r.Tier)
}

// ResourcesConfig holds the watched resource list.
type ResourcesConfig struct {
	Resources []WatchedResource `json:"resources,omitempty" yaml:"resources,omitempty"`
}

// NewDefaultResourcesConfig creates an empty resources configuration.
func NewDefaultResourcesConfig() ResourcesConfig {
	return ResourcesConfig{Resources: []WatchedResource{}}
}

// ValidResources returns the well-formed entries. Malformed entries are
// rejected individually with a warning, never fatally for the whole load.
func (rc ResourcesConfig) ValidResources(logger zerolog.Logger) []WatchedResource {
	log := logger.With().Str("component", "ResourcesConfig").Logger()

	valid := make([]WatchedResource, 0, len(rc.Resources))
	seen := make(map[string]struct{}, len(rc.Resources))
	for _, res := range rc.Resources {
		if reason := validateResource(res); reason != "" {
			log.Warn().
				Str("resource_id", res.ID).
				Str("endpoint", res.Endpoint).
				Str("reason", reason).
				Msg("Rejecting malformed watched resource entry")
			continue
		}
		if _, dup := seen[res.ID]; dup {
			log.Warn().Str("resource_id", res.ID).Msg("Rejecting duplicate watched resource id")
			continue
		}
		seen[res.ID] = struct{}{}

		if res.Tier == "" {
			res.Tier = TierActive
		}
		if res.PollIntervalSeconds <= 0 {
			res.PollIntervalSeconds = defaultPollIntervalSeconds(res.Tier)
		}
		valid = append(valid, res)
	}
	return valid
}

func validateResource(res WatchedResource) string {
	if strings.TrimSpace(res.ID) == "" {
		return "empty id"
	}
	u, err := url.Parse(res.Endpoint)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "endpoint is not an absolute URL"
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "endpoint scheme must be http or https"
	}
	if res.Tier != "" && !res.Tier.IsValid() {
		return "unknown tier"
	}
	return ""
}

func defaultPollIntervalSeconds(tier ResourceTier) int {
	switch tier {
	case TierCritical:
		return 900
	case TierActive:
		return 3600
	case TierEmerging:
		return 6 * 3600
	default:
		return 24 * 3600
	}
}
