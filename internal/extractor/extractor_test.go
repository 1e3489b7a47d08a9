package extractor

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lessuselesss/bounty-crawl/internal/common"
	"github.com/lessuselesss/bounty-crawl/internal/config"
	"github.com/lessuselesss/bounty-crawl/internal/fetcher"
	"github.com/lessuselesss/bounty-crawl/internal/models"
)

func newTestExtractor(t *testing.T) *Extractor {
	t.Helper()
	cfg := config.NewDefaultExtractorConfig()
	e, err := NewExtractor(cfg, zerolog.Nop())
	require.NoError(t, err)
	return e
}

func htmlContent(body string) *fetcher.RawContent {
	return &fetcher.RawContent{
		URL:         "https://bounties.example.com/listing",
		Body:        []byte(body),
		ContentType: "text/html; charset=utf-8",
		StatusCode:  200,
		Backend:     "http",
		FetchedAt:   time.Now().UTC(),
	}
}

func TestExtractFromAnchorCards(t *testing.T) {
	page := `<html><body><ul>
		<li class="bounty-card">
			<h3>Fix pagination crash</h3>
			<a href="https://github.com/acme/widgets/issues/12">details</a>
			<span class="amount">$1,500.00</span>
			<span class="tag">bug</span>
			<span class="tag">frontend</span>
			<span class="status">Claimed</span>
		</li>
		<li class="bounty-card">
			<a href="https://github.com/acme/widgets/issues/15">Add CSV export</a>
			<span>€250</span>
		</li>
	</ul></body></html>`

	bounties, err := newTestExtractor(t).Extract(context.Background(), "res-1", htmlContent(page))
	require.NoError(t, err)
	require.Len(t, bounties, 2)

	first := bounties[0]
	assert.Equal(t, "acme/widgets#12", first.ID)
	assert.Equal(t, int64(150000), first.RewardAmountMinorUnits)
	assert.Equal(t, "USD", first.Currency)
	assert.Equal(t, models.StatusInProgress, first.Status)
	assert.Equal(t, []string{"bug", "frontend"}, first.Tags)

	second := bounties[1]
	assert.Equal(t, "acme/widgets#15", second.ID)
	assert.Equal(t, "Add CSV export", second.Title)
	assert.Equal(t, int64(25000), second.RewardAmountMinorUnits)
	assert.Equal(t, "EUR", second.Currency)
	assert.Equal(t, models.StatusOpen, second.Status)
}

func TestExtractDeduplicatesRepeatedReferences(t *testing.T) {
	page := `<html><body>
		<a href="https://github.com/acme/widgets/issues/12">card link</a>
		<a href="https://github.com/acme/widgets/issues/12">title link</a>
	</body></html>`

	bounties, err := newTestExtractor(t).Extract(context.Background(), "res-1", htmlContent(page))
	require.NoError(t, err)
	assert.Len(t, bounties, 1)
}

func TestExtractFromEmbeddedNextData(t *testing.T) {
	page := `<html><body>
		<div id="app"></div>
		<script id="__NEXT_DATA__" type="application/json">
		{"props":{"pageProps":{"bounties":[
			{"issue_ref":"acme/widgets#12","title":"Fix pagination crash","reward":"$1,500","status":"open","tags":["bug"],"created_at":"2026-03-01T10:00:00Z"},
			{"issue_url":"https://github.com/acme/widgets/issues/15","title":"Add CSV export","amount_cents":25000,"currency":"eur","state":"assigned"}
		]}}}
		</script>
	</body></html>`

	bounties, err := newTestExtractor(t).Extract(context.Background(), "res-1", htmlContent(page))
	require.NoError(t, err)
	require.Len(t, bounties, 2)

	assert.Equal(t, "acme/widgets#12", bounties[0].ID)
	assert.Equal(t, int64(150000), bounties[0].RewardAmountMinorUnits)
	assert.Equal(t, []string{"bug"}, bounties[0].Tags)
	assert.Equal(t, time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC), bounties[0].CreatedAt)

	assert.Equal(t, "acme/widgets#15", bounties[1].ID)
	assert.Equal(t, int64(25000), bounties[1].RewardAmountMinorUnits)
	assert.Equal(t, "EUR", bounties[1].Currency)
	assert.Equal(t, models.StatusInProgress, bounties[1].Status)
}

func TestExtractStructuredPayloadFillsDefaults(t *testing.T) {
	content := &fetcher.RawContent{
		URL:         "https://bounties.example.com/listing",
		Body:        []byte(`{"bounties":[{"id":"acme/widgets#12","title":"Fix pagination crash"},{"title":"no identity"}]}`),
		ContentType: "application/json",
		StatusCode:  200,
		Structured:  true,
	}

	bounties, err := newTestExtractor(t).Extract(context.Background(), "res-1", content)
	require.NoError(t, err)
	require.Len(t, bounties, 1, "entities without an id must be dropped")

	b := bounties[0]
	assert.Equal(t, models.StatusOpen, b.Status)
	assert.Equal(t, models.AmountUnknown, b.RewardAmountMinorUnits)
	assert.Equal(t, "https://bounties.example.com/listing", b.SourceURL)
}

func TestExtractReturnsErrNoEntitiesWhenNothingMatches(t *testing.T) {
	page := `<html><body><p>Nothing to see here.</p></body></html>`

	bounties, err := newTestExtractor(t).Extract(context.Background(), "res-1", htmlContent(page))
	assert.Nil(t, bounties)
	assert.ErrorIs(t, err, common.ErrNoEntities)
}

func TestExtractAppliesPerPageCap(t *testing.T) {
	cfg := config.NewDefaultExtractorConfig()
	cfg.MaxEntitiesPerPage = 2
	e, err := NewExtractor(cfg, zerolog.Nop())
	require.NoError(t, err)

	page := `<html><body>
		<a href="https://github.com/acme/widgets/issues/1">one</a>
		<a href="https://github.com/acme/widgets/issues/2">two</a>
		<a href="https://github.com/acme/widgets/issues/3">three</a>
	</body></html>`

	bounties, err := e.Extract(context.Background(), "res-1", htmlContent(page))
	require.NoError(t, err)
	assert.Len(t, bounties, 2)
}

func TestNewExtractorRejectsInvalidPatterns(t *testing.T) {
	cfg := config.NewDefaultExtractorConfig()
	cfg.IssueURLPatterns = []string{`[unclosed`}
	_, err := NewExtractor(cfg, zerolog.Nop())
	assert.Error(t, err)

	cfg.IssueURLPatterns = nil
	_, err = NewExtractor(cfg, zerolog.Nop())
	assert.Error(t, err)
}
