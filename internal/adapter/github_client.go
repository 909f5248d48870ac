package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/repo-ingest/internal/circuitbreaker"
	"github.com/repo-ingest/internal/config"
	apperrors "github.com/repo-ingest/internal/errors"
	"github.com/repo-ingest/internal/models"
	"github.com/repo-ingest/internal/retry"
	"github.com/repo-ingest/internal/types"
)

const (
	defaultPageSize = 100
	maxPageSize     = 100
)

// GitHubClient fetches event pages from the GitHub REST API.
// The cursor is a page number; GitHub's Link header decides whether a
// next page exists.
type GitHubClient struct {
	baseURL  string
	token    string
	client   *http.Client
	breaker  *circuitbreaker.CircuitBreaker
	retryCfg *retry.Config
}

// NewGitHubClient creates a new GitHub API client
func NewGitHubClient(cfg config.GitHubConfig) *GitHubClient {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	// Only transient failures are worth a second attempt inside one fetch;
	// rate limits and 4xx go straight back to the tracker.
	retryCfg := &retry.Config{
		MaxAttempts:  3,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Multiplier:   2.0,
		RetryIf:      apperrors.IsRetryable,
	}

	return &GitHubClient{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		token:    cfg.Token,
		client:   &http.Client{Timeout: timeout},
		breaker:  circuitbreaker.NewCircuitBreaker(circuitbreaker.DefaultConfig("github")),
		retryCfg: retryCfg,
	}
}

// githubEvent is the wire shape of one item on the events feed
type githubEvent struct {
	ID    string `json:"id"`
	Type  string `json:"type"`
	Actor struct {
		Login string `json:"login"`
	} `json:"actor"`
	Repo struct {
		Name string `json:"name"`
	} `json:"repo"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

// eventFilter returns the event kinds a job type ingests, or nil when the
// job type has no upstream page source.
func eventFilter(jobType types.JobType) map[string]bool {
	switch jobType {
	case types.JobTypeEventSync:
		return models.RelevantEventTypes
	case types.JobTypePRSync:
		return map[string]bool{"PullRequestEvent": true}
	case types.JobTypeIssueSync:
		return map[string]bool{"IssuesEvent": true}
	default:
		return nil
	}
}

// FetchPage fetches one page of the repository events feed
func (c *GitHubClient) FetchPage(ctx context.Context, req PageRequest) (*RawPage, error) {
	filter := eventFilter(req.JobType)
	if filter == nil {
		return nil, apperrors.NewFatal(fmt.Sprintf("job type %s has no upstream page source", req.JobType), nil)
	}

	if !strings.Contains(req.TargetID, "/") {
		return nil, apperrors.NewFatal(fmt.Sprintf("target %q is not an owner/repo pair", req.TargetID), nil)
	}

	page := 1
	if req.Cursor != "" {
		parsed, err := strconv.Atoi(req.Cursor)
		if err != nil || parsed < 1 {
			return nil, apperrors.NewFatal(fmt.Sprintf("invalid cursor %q", req.Cursor), err)
		}
		page = parsed
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	url := fmt.Sprintf("%s/repos/%s/events?page=%d&per_page=%d", c.baseURL, req.TargetID, page, pageSize)

	var result *RawPage
	err := retry.WithExponentialBackoff(ctx, c.retryCfg, func(ctx context.Context, attempt int) error {
		execErr := c.breaker.Execute(func() error {
			var fetchErr error
			result, fetchErr = c.fetchOnce(ctx, url, page, filter)
			return fetchErr
		})
		if execErr == circuitbreaker.ErrCircuitOpen {
			return apperrors.NewTransient("upstream circuit open", execErr)
		}
		return execErr
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

func (c *GitHubClient) fetchOnce(ctx context.Context, url string, page int, filter map[string]bool) (*RawPage, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, apperrors.NewFatal("failed to build request", err)
	}

	httpReq.Header.Set("Accept", "application/vnd.github+json")
	httpReq.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	if c.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, apperrors.NewTransient("request failed", err)
	}
	defer resp.Body.Close()

	snapshot := parseRateLimit(resp.Header)

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, apperrors.FromHTTPStatus(resp.StatusCode, snapshot.Exhausted(), snapshot.ResetAt)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.NewTransient("failed to read response", err)
	}

	var raw []githubEvent
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, apperrors.NewFatal("failed to parse events page", err)
	}

	now := time.Now().UTC()
	items := make([]*models.Event, 0, len(raw))
	for _, ev := range raw {
		if !filter[ev.Type] {
			continue
		}
		owner, name, _ := strings.Cut(ev.Repo.Name, "/")
		items = append(items, &models.Event{
			EventID:    ev.ID,
			EventType:  ev.Type,
			ActorLogin: ev.Actor.Login,
			RepoOwner:  owner,
			RepoName:   name,
			Payload:    ev.Payload,
			CreatedAt:  ev.CreatedAt,
			IngestedAt: now,
		})
	}

	hasNext := hasNextPage(resp.Header.Get("Link"))
	nextCursor := ""
	if hasNext {
		nextCursor = strconv.Itoa(page + 1)
	}

	return &RawPage{
		Items:      items,
		NextCursor: nextCursor,
		HasNext:    hasNext,
		Snapshot:   snapshot,
	}, nil
}

// parseRateLimit reads the X-RateLimit-* headers into a snapshot.
// Missing headers leave zero values; Exhausted() requires Limit > 0 so a
// response without quota headers never reads as exhausted.
func parseRateLimit(header http.Header) types.RateLimitSnapshot {
	var snapshot types.RateLimitSnapshot

	if v := header.Get("X-RateLimit-Remaining"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			snapshot.Remaining = n
		}
	}
	if v := header.Get("X-RateLimit-Limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			snapshot.Limit = n
		}
	}
	if v := header.Get("X-RateLimit-Reset"); v != "" {
		if unix, err := strconv.ParseInt(v, 10, 64); err == nil {
			snapshot.ResetAt = time.Unix(unix, 0).UTC()
		}
	}

	return snapshot
}

// hasNextPage checks the Link header for a rel="next" entry
func hasNextPage(link string) bool {
	if link == "" {
		return false
	}
	for _, part := range strings.Split(link, ",") {
		if strings.Contains(part, `rel="next"`) {
			return true
		}
	}
	return false
}
