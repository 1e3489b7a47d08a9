// Package urlhandler normalizes URLs and maps incoming signal URLs onto
// known watched-resource identifiers.
package urlhandler

import (
	"net/url"
	"strings"

	"github.com/lessuselesss/bounty-crawl/internal/common"
	"github.com/lessuselesss/bounty-crawl/internal/config"
)

// NormalizeURL lowercases scheme and host, strips default ports, fragments
// and trailing slashes so equivalent URLs compare equal.
func NormalizeURL(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", common.WrapError(err, "failed to parse URL")
	}
	if u.Scheme == "" || u.Host == "" {
		return "", common.NewValidationError("url", raw, "URL must be absolute")
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""

	host := u.Host
	if u.Scheme == "http" {
		host = strings.TrimSuffix(host, ":80")
	} else if u.Scheme == "https" {
		host = strings.TrimSuffix(host, ":443")
	}
	u.Host = host
	u.Path = strings.TrimSuffix(u.Path, "/")

	return u.String(), nil
}

// ResourceResolver maps URLs onto watched-resource IDs.
//
// Resolution is two-step: an exact match against the normalized configured
// endpoint, then a longest-prefix match so deep links into a watched site
// (for example an individual issue page) still resolve to the owning
// resource.
type ResourceResolver struct {
	byEndpoint map[string]string
	prefixes   []prefixEntry
}

type prefixEntry struct {
	prefix     string
	resourceID string
}

// NewResourceResolver builds a resolver over the configured resource set.
func NewResourceResolver(resources []config.WatchedResource) *ResourceResolver {
	rr := &ResourceResolver{
		byEndpoint: make(map[string]string, len(resources)),
	}
	for _, res := range resources {
		normalized, err := NormalizeURL(res.Endpoint)
		if err != nil {
			continue
		}
		rr.byEndpoint[normalized] = res.ID
		rr.prefixes = append(rr.prefixes, prefixEntry{prefix: normalized, resourceID: res.ID})
	}
	return rr
}

// Resolve maps a URL onto a watched resource ID. Unknown URLs return
// common.ErrNotFound-style validation errors so callers can answer with a
// 4xx-equivalent instead of silently dropping the signal.
func (rr *ResourceResolver) Resolve(raw string) (string, error) {
	normalized, err := NormalizeURL(raw)
	if err != nil {
		return "", err
	}

	if id, ok := rr.byEndpoint[normalized]; ok {
		return id, nil
	}

	best := ""
	bestID := ""
	for _, entry := range rr.prefixes {
		if strings.HasPrefix(normalized, entry.prefix) && len(entry.prefix) > len(best) {
			best = entry.prefix
			bestID = entry.resourceID
		}
	}
	if bestID != "" {
		return bestID, nil
	}

	return "", common.NewValidationError("url", raw, "URL does not map to any watched resource")
}
