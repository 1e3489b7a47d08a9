package extractor

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lessuselesss/bounty-crawl/internal/models"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		name         string
		text         string
		wantMinor    int64
		wantCurrency string
	}{
		{"dollars with cents", "Reward: $1,234.56 for this task", 123456, "USD"},
		{"whole dollars", "$500 bounty", 50000, "USD"},
		{"single decimal digit", "$10.5", 1050, "USD"},
		{"euros", "€250 prize", 25000, "EUR"},
		{"pounds", "£99.99", 9999, "GBP"},
		{"symbol with space", "$ 42", 4200, "USD"},
		{"first amount wins", "$100 or maybe $200", 10000, "USD"},
		{"no amount", "no reward advertised here", models.AmountUnknown, ""},
		{"bare number without symbol", "pays 500 on completion", models.AmountUnknown, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			minor, currency := ParseAmount(tt.text)
			assert.Equal(t, tt.wantMinor, minor)
			assert.Equal(t, tt.wantCurrency, currency)
		})
	}
}

func TestParseStatus(t *testing.T) {
	assert.Equal(t, models.StatusOpen, parseStatus("Open"))
	assert.Equal(t, models.StatusOpen, parseStatus("anything else"))
	assert.Equal(t, models.StatusInProgress, parseStatus("In Progress"))
	assert.Equal(t, models.StatusInProgress, parseStatus("claimed"))
	assert.Equal(t, models.StatusCompleted, parseStatus("PAID"))
	assert.Equal(t, models.StatusClosed, parseStatus("expired"))
	assert.Equal(t, models.StatusClosed, parseStatus(" cancelled "))
}
