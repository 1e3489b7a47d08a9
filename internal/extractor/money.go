package extractor

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/lessuselesss/bounty-crawl/internal/models"
)

var amountPattern = regexp.MustCompile(`([$€£])\s*([0-9][0-9,]*)(?:\.([0-9]{1,2}))?`)

var currencyBySymbol = map[string]string{
	"$": "USD",
	"€": "EUR",
	"£": "GBP",
}

// ParseAmount extracts the first monetary amount from text and returns it in
// minor units with its currency code. "$1,234.56" yields 123456, "USD".
// When no amount is parseable it returns the unknown sentinel and an empty
// currency.
func ParseAmount(text string) (int64, string) {
	match := amountPattern.FindStringSubmatch(text)
	if match == nil {
		return models.AmountUnknown, ""
	}

	whole := strings.ReplaceAll(match[2], ",", "")
	major, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return models.AmountUnknown, ""
	}

	var minor int64
	if match[3] != "" {
		cents := match[3]
		if len(cents) == 1 {
			cents += "0"
		}
		minor, err = strconv.ParseInt(cents, 10, 64)
		if err != nil {
			return models.AmountUnknown, ""
		}
	}

	return major*100 + minor, currencyBySymbol[match[1]]
}

// parseStatus maps loosely formatted status text onto the bounty status enum.
// Unrecognized text defaults to open, the least surprising state for a listed
// bounty.
func parseStatus(text string) models.BountyStatus {
	switch strings.ToLower(strings.TrimSpace(strings.ReplaceAll(text, " ", "_"))) {
	case "in_progress", "inprogress", "in-progress", "assigned", "claimed":
		return models.StatusInProgress
	case "completed", "done", "paid", "awarded":
		return models.StatusCompleted
	case "closed", "cancelled", "canceled", "expired":
		return models.StatusClosed
	default:
		return models.StatusOpen
	}
}
