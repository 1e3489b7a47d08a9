// Package fetcher provides the interchangeable content fetch backends.
package fetcher

import (
	"context"
	"time"
)

// Capabilities describes what a backend can do. The orchestrator uses the
// configured preference order; capabilities exist so callers can reason about
// what a result may contain.
type Capabilities struct {
	FetchesStaticHTML  bool
	RendersScripts     bool
	ExtractsStructured bool
}

// FetchRequest carries one fetch attempt's parameters.
type FetchRequest struct {
	ResourceID string
	Endpoint   string
	// PreviousETag and PreviousLastModified enable conditional GETs on
	// backends that support them; a 304 answer surfaces as ErrNotModified.
	PreviousETag         string
	PreviousLastModified string
}

// RawContent is the normalized result of one successful fetch.
type RawContent struct {
	URL          string
	Body         []byte
	ContentType  string
	StatusCode   int
	Backend      string
	FetchedAt    time.Time
	ETag         string
	LastModified string
	// Structured is set when the backend already extracted structured data
	// (the AI backend returns extraction output rather than raw markup).
	Structured bool
}

// Fetcher is the common contract satisfied by every backend. Implementations
// must respect the context deadline; a timed-out attempt returns an error
// wrapping common.ErrTimeout.
type Fetcher interface {
	Name() string
	Capabilities() Capabilities
	Fetch(ctx context.Context, req FetchRequest) (*RawContent, error)
}
