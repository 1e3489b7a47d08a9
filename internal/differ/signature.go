package differ

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/lessuselesss/bounty-crawl/internal/config"
)

// SignatureGenerator computes the cheap-mode content signature: a sha256
// over the marker-substring counts and the content length. It is sensitive
// to listing churn while ignoring most cosmetic markup noise. A signature
// mismatch means "maybe changed", never a confirmed change.
type SignatureGenerator struct {
	markers []string
}

// NewSignatureGenerator creates a generator over the configured markers.
func NewSignatureGenerator(cfg config.DiffConfig) *SignatureGenerator {
	return &SignatureGenerator{markers: cfg.MarkerSubstrings}
}

// Generate returns the hex signature for the content.
func (sg *SignatureGenerator) Generate(content []byte) string {
	var sb strings.Builder
	text := string(content)
	for _, marker := range sg.markers {
		fmt.Fprintf(&sb, "%s=%d;", marker, strings.Count(text, marker))
	}
	fmt.Fprintf(&sb, "len=%d", len(content))

	sum := sha256.Sum256([]byte(sb.String()))
	return hex.EncodeToString(sum[:])
}
