package differ

import (
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/lessuselesss/bounty-crawl/internal/config"
)

// TextDiffer renders a compact unified-style text diff of old and new page
// content for notification context. Oversized content is truncated before
// diffing to bound work on pathological pages.
type TextDiffer struct {
	dmp      *diffmatchpatch.DiffMatchPatch
	maxBytes int
}

// NewTextDiffer creates a text differ from configuration.
func NewTextDiffer(cfg config.DiffConfig) *TextDiffer {
	return &TextDiffer{
		dmp:      diffmatchpatch.New(),
		maxBytes: cfg.MaxDiffContentBytes,
	}
}

// UnifiedDiff returns the changed hunks with -/+ line prefixes. Unchanged
// runs are collapsed to keep the output notification-sized.
func (td *TextDiffer) UnifiedDiff(oldContent, newContent []byte) string {
	oldText := td.clamp(oldContent)
	newText := td.clamp(newContent)

	diffs := td.dmp.DiffMain(oldText, newText, true)
	diffs = td.dmp.DiffCleanupSemantic(diffs)

	var sb strings.Builder
	for _, diff := range diffs {
		switch diff.Type {
		case diffmatchpatch.DiffDelete:
			writePrefixedLines(&sb, "- ", diff.Text)
		case diffmatchpatch.DiffInsert:
			writePrefixedLines(&sb, "+ ", diff.Text)
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

func (td *TextDiffer) clamp(content []byte) string {
	if td.maxBytes > 0 && len(content) > td.maxBytes {
		content = content[:td.maxBytes]
	}
	return string(content)
}

func writePrefixedLines(sb *strings.Builder, prefix, text string) {
	for _, line := range strings.Split(strings.Trim(text, "\n"), "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		sb.WriteString(prefix)
		sb.WriteString(trimmed)
		sb.WriteString("\n")
	}
}
