package extractor

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"time"

	"github.com/rs/zerolog"

	"github.com/lessuselesss/bounty-crawl/internal/common"
	"github.com/lessuselesss/bounty-crawl/internal/models"
)

var repoPattern = regexp.MustCompile(`https?://(?:www\.)?github\.com/([\w.-]+)/([\w.-]+)`)

// APIClientStrategy fetches entities from the canonical issues API when the
// watched endpoint maps to a repository. It is the fallback for pages whose
// markup yields nothing.
type APIClientStrategy struct {
	logger  zerolog.Logger
	baseURL string
	client  *http.Client
}

// NewAPIClientStrategy creates the canonical API strategy.
func NewAPIClientStrategy(baseURL string, timeoutSeconds int, logger zerolog.Logger) *APIClientStrategy {
	timeout := time.Duration(timeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &APIClientStrategy{
		logger:  logger.With().Str("component", "APIClientStrategy").Logger(),
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// Name identifies the strategy in logs.
func (s *APIClientStrategy) Name() string { return "api" }

// Applicable reports whether the endpoint maps to a repository this strategy
// can query.
func (s *APIClientStrategy) Applicable(endpoint string) bool {
	return s.baseURL != "" && repoPattern.MatchString(endpoint)
}

type apiIssue struct {
	Number    int       `json:"number"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	State     string    `json:"state"`
	HTMLURL   string    `json:"html_url"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Labels    []struct {
		Name string `json:"name"`
	} `json:"labels"`
	Assignee *struct {
		Login string `json:"login"`
	} `json:"assignee"`
}

// Extract lists open issues for the repository behind the endpoint and maps
// them onto bounties.
func (s *APIClientStrategy) Extract(ctx context.Context, endpoint string) ([]models.Bounty, error) {
	match := repoPattern.FindStringSubmatch(endpoint)
	if match == nil {
		return nil, common.NewError("endpoint does not map to a repository: %s", endpoint)
	}
	owner, repo := match[1], match[2]

	url := fmt.Sprintf("%s/repos/%s/%s/issues?state=open&per_page=100", s.baseURL, owner, repo)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, common.WrapError(err, "failed to build issues API request")
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, common.NewNetworkError(url, "issues API request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, common.NewHTTPErrorWithURL(resp.StatusCode, http.StatusText(resp.StatusCode), url)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, common.NewNetworkError(url, "failed reading issues API response", err)
	}

	var issues []apiIssue
	if err := json.Unmarshal(body, &issues); err != nil {
		return nil, common.WrapError(err, "failed to decode issues API response")
	}

	bounties := make([]models.Bounty, 0, len(issues))
	for _, issue := range issues {
		bounty := models.Bounty{
			ID:        fmt.Sprintf("%s/%s#%d", owner, repo, issue.Number),
			Title:     issue.Title,
			Status:    models.StatusOpen,
			SourceURL: issue.HTMLURL,
			CreatedAt: issue.CreatedAt.UTC(),
			UpdatedAt: issue.UpdatedAt.UTC(),
		}
		if issue.State == "closed" {
			bounty.Status = models.StatusClosed
		} else if issue.Assignee != nil {
			bounty.Status = models.StatusInProgress
		}
		bounty.RewardAmountMinorUnits, bounty.Currency = ParseAmount(issue.Title + " " + issue.Body)
		for _, label := range issue.Labels {
			bounty.Tags = append(bounty.Tags, label.Name)
		}
		bounty.NormalizeTags()
		bounties = append(bounties, bounty)
	}
	return bounties, nil
}
