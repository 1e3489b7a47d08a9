package differ

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lessuselesss/bounty-crawl/internal/config"
)

func TestGenerateIsDeterministic(t *testing.T) {
	sg := NewSignatureGenerator(config.NewDefaultDiffConfig())
	content := []byte(`<a href="/issues/1">bounty $100</a>`)

	assert.Equal(t, sg.Generate(content), sg.Generate(content))
}

func TestGenerateChangesWhenMarkerCountMoves(t *testing.T) {
	sg := NewSignatureGenerator(config.NewDefaultDiffConfig())
	one := []byte(`<a href="/issues/1">bounty</a> padding padding`)
	two := []byte(`<a href="/issues/1">bounty</a> /issues/2 padding`)

	assert.NotEqual(t, sg.Generate(one), sg.Generate(two))
}

func TestGenerateChangesWhenLengthMoves(t *testing.T) {
	sg := NewSignatureGenerator(config.NewDefaultDiffConfig())
	short := []byte("no markers here")
	long := []byte("no markers here at all")

	assert.NotEqual(t, sg.Generate(short), sg.Generate(long))
}

func TestGenerateIgnoresChangesPreservingMarkersAndLength(t *testing.T) {
	sg := NewSignatureGenerator(config.NewDefaultDiffConfig())
	// Same length, same marker counts: cosmetic churn the cheap mode
	// deliberately cannot see.
	a := []byte("abc bounty xyz")
	b := []byte("zyx bounty cba")

	assert.Equal(t, sg.Generate(a), sg.Generate(b))
}
