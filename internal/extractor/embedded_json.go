package extractor

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/net/html"

	"github.com/lessuselesss/bounty-crawl/internal/models"
)

// EmbeddedJSONStrategy extracts bounties from JSON data blocks that
// client-rendered pages ship alongside their markup, such as
// script#__NEXT_DATA__ or plain application/json script tags.
type EmbeddedJSONStrategy struct {
	logger   zerolog.Logger
	patterns []*regexp.Regexp
}

// NewEmbeddedJSONStrategy creates the embedded JSON strategy. The reference
// patterns derive stable ids from issue URLs found inside the JSON.
func NewEmbeddedJSONStrategy(patterns []*regexp.Regexp, logger zerolog.Logger) *EmbeddedJSONStrategy {
	return &EmbeddedJSONStrategy{
		logger:   logger.With().Str("component", "EmbeddedJSONStrategy").Logger(),
		patterns: patterns,
	}
}

// Name identifies the strategy in logs.
func (s *EmbeddedJSONStrategy) Name() string { return "embedded_json" }

// Extract walks the document for JSON script blocks and mines each one for
// bounty-shaped objects.
func (s *EmbeddedJSONStrategy) Extract(body []byte, sourceURL string) []models.Bounty {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		s.logger.Debug().Err(err).Msg("Failed to parse HTML for embedded JSON")
		return nil
	}

	var bounties []models.Bounty
	for _, block := range collectJSONBlocks(doc) {
		var root any
		if err := json.Unmarshal([]byte(block), &root); err != nil {
			continue
		}
		s.mineBountyObjects(root, sourceURL, &bounties)
	}
	return bounties
}

// collectJSONBlocks returns the text content of every script tag carrying
// JSON payloads.
func collectJSONBlocks(node *html.Node) []string {
	var blocks []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "script" && isJSONScript(n) {
			if text := scriptText(n); text != "" {
				blocks = append(blocks, text)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(node)
	return blocks
}

func isJSONScript(n *html.Node) bool {
	var typeAttr, idAttr string
	for _, attr := range n.Attr {
		switch attr.Key {
		case "type":
			typeAttr = attr.Val
		case "id":
			idAttr = attr.Val
		}
	}
	if strings.Contains(typeAttr, "json") {
		return true
	}
	return idAttr == "__NEXT_DATA__" || idAttr == "__NUXT_DATA__"
}

func scriptText(n *html.Node) string {
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			sb.WriteString(c.Data)
		}
	}
	return strings.TrimSpace(sb.String())
}

// mineBountyObjects recursively searches decoded JSON for objects that look
// like bounty records: an id-bearing object with a title.
func (s *EmbeddedJSONStrategy) mineBountyObjects(node any, sourceURL string, out *[]models.Bounty) {
	switch v := node.(type) {
	case map[string]any:
		if bounty, ok := s.bountyFromObject(v, sourceURL); ok {
			*out = append(*out, bounty)
			return
		}
		for _, child := range v {
			s.mineBountyObjects(child, sourceURL, out)
		}
	case []any:
		for _, child := range v {
			s.mineBountyObjects(child, sourceURL, out)
		}
	}
}

// bountyFromObject maps one JSON object onto a Bounty when it carries the
// minimum recognizable shape. Objects with no stable identity are rejected.
func (s *EmbeddedJSONStrategy) bountyFromObject(obj map[string]any, sourceURL string) (models.Bounty, bool) {
	id := firstString(obj, "issue_ref", "issueRef", "bounty_id", "bountyId")
	if id == "" {
		if url := firstString(obj, "issue_url", "issueUrl", "task_url", "taskUrl"); url != "" {
			id = referenceFromURL(s.patterns, url)
		}
	}
	title := firstString(obj, "title", "name", "summary")
	if id == "" || title == "" {
		return models.Bounty{}, false
	}

	bounty := models.Bounty{
		ID:                     id,
		Title:                  title,
		RewardAmountMinorUnits: models.AmountUnknown,
		Status:                 parseStatus(firstString(obj, "status", "state")),
		SourceURL:              sourceURL,
	}

	if raw := firstString(obj, "reward", "amount", "bounty_amount", "bountyAmount", "value"); raw != "" {
		bounty.RewardAmountMinorUnits, bounty.Currency = ParseAmount(raw)
	}
	if bounty.RewardAmountMinorUnits == models.AmountUnknown {
		if num, ok := firstNumber(obj, "reward_amount_minor_units", "amount_minor_units", "amount_cents"); ok {
			bounty.RewardAmountMinorUnits = num
		}
	}
	if cur := firstString(obj, "currency", "currency_code", "currencyCode"); cur != "" {
		bounty.Currency = strings.ToUpper(cur)
	}
	if url := firstString(obj, "url", "html_url", "link", "issue_url", "issueUrl"); url != "" {
		bounty.SourceURL = url
	}

	if rawTags, ok := obj["tags"].([]any); ok {
		for _, t := range rawTags {
			if tag, ok := t.(string); ok {
				bounty.Tags = append(bounty.Tags, tag)
			}
		}
	} else if rawLabels, ok := obj["labels"].([]any); ok {
		for _, l := range rawLabels {
			switch label := l.(type) {
			case string:
				bounty.Tags = append(bounty.Tags, label)
			case map[string]any:
				if name, ok := label["name"].(string); ok {
					bounty.Tags = append(bounty.Tags, name)
				}
			}
		}
	}
	bounty.NormalizeTags()

	if ts := firstString(obj, "created_at", "createdAt"); ts != "" {
		if parsed, err := time.Parse(time.RFC3339, ts); err == nil {
			bounty.CreatedAt = parsed.UTC()
		}
	}
	if ts := firstString(obj, "updated_at", "updatedAt"); ts != "" {
		if parsed, err := time.Parse(time.RFC3339, ts); err == nil {
			bounty.UpdatedAt = parsed.UTC()
		}
	}

	return bounty, true
}

func firstString(obj map[string]any, keys ...string) string {
	for _, key := range keys {
		if v, ok := obj[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

func firstNumber(obj map[string]any, keys ...string) (int64, bool) {
	for _, key := range keys {
		if v, ok := obj[key].(float64); ok {
			return int64(v), true
		}
	}
	return 0, false
}
