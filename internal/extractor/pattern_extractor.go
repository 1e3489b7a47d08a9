package extractor

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/BishopFox/jsluice"
	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"

	"github.com/lessuselesss/bounty-crawl/internal/models"
)

// PatternStrategy extracts bounties from rendered markup by locating anchors
// to canonical issue URLs and reading title, amount and tag context from the
// surrounding card. Inline scripts are optionally mined with jsluice for
// issue URLs the DOM does not link directly.
type PatternStrategy struct {
	logger            zerolog.Logger
	patterns          []*regexp.Regexp
	scanInlineScripts bool
}

// NewPatternStrategy creates the DOM pattern strategy.
func NewPatternStrategy(patterns []*regexp.Regexp, scanInlineScripts bool, logger zerolog.Logger) *PatternStrategy {
	return &PatternStrategy{
		logger:            logger.With().Str("component", "PatternStrategy").Logger(),
		patterns:          patterns,
		scanInlineScripts: scanInlineScripts,
	}
}

// Name identifies the strategy in logs.
func (s *PatternStrategy) Name() string { return "pattern" }

// Extract parses the markup and collects one bounty per distinct issue
// reference found.
func (s *PatternStrategy) Extract(body []byte, sourceURL string) []models.Bounty {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		s.logger.Debug().Err(err).Msg("Failed to parse HTML for pattern extraction")
		return nil
	}

	seen := make(map[string]bool)
	var bounties []models.Bounty

	doc.Find("a[href]").Each(func(_ int, anchor *goquery.Selection) {
		href, _ := anchor.Attr("href")
		ref := referenceFromURL(s.patterns, href)
		if ref == "" || seen[ref] {
			return
		}
		seen[ref] = true
		bounties = append(bounties, s.bountyFromAnchor(ref, href, anchor))
	})

	if s.scanInlineScripts {
		doc.Find("script").Each(func(_ int, script *goquery.Selection) {
			if _, external := script.Attr("src"); external {
				return
			}
			for _, ref := range s.referencesFromScript(script.Text()) {
				if seen[ref.id] {
					continue
				}
				seen[ref.id] = true
				bounties = append(bounties, models.Bounty{
					ID:                     ref.id,
					Title:                  ref.id,
					RewardAmountMinorUnits: models.AmountUnknown,
					Status:                 models.StatusOpen,
					SourceURL:              ref.url,
				})
			}
		})
	}

	return bounties
}

// bountyFromAnchor builds a bounty from the anchor and its nearest enclosing
// card container.
func (s *PatternStrategy) bountyFromAnchor(ref, href string, anchor *goquery.Selection) models.Bounty {
	bounty := models.Bounty{
		ID:                     ref,
		Title:                  strings.TrimSpace(anchor.Text()),
		RewardAmountMinorUnits: models.AmountUnknown,
		Status:                 models.StatusOpen,
		SourceURL:              href,
	}

	card := s.enclosingCard(anchor)
	if card == nil {
		if bounty.Title == "" {
			bounty.Title = ref
		}
		return bounty
	}

	cardText := card.Text()
	bounty.RewardAmountMinorUnits, bounty.Currency = ParseAmount(cardText)
	if bounty.Title == "" {
		if heading := strings.TrimSpace(card.Find("h1,h2,h3,h4").First().Text()); heading != "" {
			bounty.Title = heading
		} else {
			bounty.Title = ref
		}
	}

	card.Find(".tag, .label, .badge, [data-tag]").Each(func(_ int, tag *goquery.Selection) {
		if text := strings.TrimSpace(tag.Text()); text != "" {
			bounty.Tags = append(bounty.Tags, text)
		}
	})
	bounty.NormalizeTags()

	if statusText := strings.TrimSpace(card.Find(".status, [data-status]").First().Text()); statusText != "" {
		bounty.Status = parseStatus(statusText)
	}

	return bounty
}

// enclosingCard climbs from the anchor to the nearest list-item-shaped
// ancestor, stopping before document-level containers.
func (s *PatternStrategy) enclosingCard(anchor *goquery.Selection) *goquery.Selection {
	node := anchor.Parent()
	for depth := 0; depth < 5 && node.Length() > 0; depth++ {
		tag := goquery.NodeName(node)
		if tag == "li" || tag == "article" || tag == "tr" {
			return node
		}
		if class, ok := node.Attr("class"); ok {
			lowered := strings.ToLower(class)
			if strings.Contains(lowered, "card") || strings.Contains(lowered, "item") || strings.Contains(lowered, "row") {
				return node
			}
		}
		if tag == "body" || tag == "html" {
			return nil
		}
		node = node.Parent()
	}
	return nil
}

type scriptReference struct {
	id  string
	url string
}

// referencesFromScript runs jsluice over inline JavaScript and keeps URLs
// matching the issue patterns.
func (s *PatternStrategy) referencesFromScript(source string) []scriptReference {
	analyzer := jsluice.NewAnalyzer([]byte(source))
	var refs []scriptReference
	for _, result := range analyzer.GetURLs() {
		if ref := referenceFromURL(s.patterns, result.URL); ref != "" {
			refs = append(refs, scriptReference{id: ref, url: result.URL})
		}
	}
	return refs
}

// referenceFromURL derives the stable entity reference from a canonical
// issue URL, e.g. "acme/widgets#123". Returns "" when no pattern matches.
func referenceFromURL(patterns []*regexp.Regexp, url string) string {
	for _, pattern := range patterns {
		match := pattern.FindStringSubmatch(url)
		if match == nil {
			continue
		}
		if len(match) >= 3 {
			return fmt.Sprintf("%s#%s", match[1], match[2])
		}
		if len(match) == 2 {
			return match[1]
		}
	}
	return ""
}
