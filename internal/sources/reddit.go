package sources

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"trendwatch/internal/config"
	"trendwatch/internal/core"
	"trendwatch/internal/logger"
	"trendwatch/internal/normalize"

	"github.com/google/uuid"
)

const (
	defaultTokenURL = "https://www.reddit.com/api/v1/access_token"
	defaultAPIURL   = "https://oauth.reddit.com"

	// Pause between subreddit requests to stay inside rate limits.
	subredditPause = time.Second
)

// RedditAdapter ingests submissions from the Reddit JSON API using an
// application-only OAuth2 token.
type RedditAdapter struct {
	cfg    config.Reddit
	client *http.Client

	// Overridable for tests.
	tokenURL string
	apiURL   string

	token       string
	tokenExpiry time.Time
}

// NewRedditAdapter builds the adapter. Call config.Reddit.Enabled first;
// constructing an adapter without credentials yields auth failures.
func NewRedditAdapter(cfg config.Reddit) *RedditAdapter {
	return &RedditAdapter{
		cfg:      cfg,
		client:   &http.Client{Timeout: 30 * time.Second},
		tokenURL: defaultTokenURL,
		apiURL:   defaultAPIURL,
	}
}

func (r *RedditAdapter) Name() string {
	return "reddit"
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// authenticate obtains an application-only token via the client-credentials
// grant, reusing a cached token until shortly before it expires.
func (r *RedditAdapter) authenticate(ctx context.Context) error {
	if r.token != "" && time.Now().Before(r.tokenExpiry) {
		return nil
	}

	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.tokenURL,
		strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create token request: %w", err)
	}
	req.SetBasicAuth(r.cfg.ClientID, r.cfg.ClientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", r.cfg.UserAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("token endpoint returned status %d", resp.StatusCode)
	}

	var tok tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return fmt.Errorf("failed to decode token response: %w", err)
	}
	if tok.AccessToken == "" {
		return fmt.Errorf("token endpoint returned no access token")
	}

	r.token = tok.AccessToken
	r.tokenExpiry = time.Now().Add(time.Duration(tok.ExpiresIn-60) * time.Second)
	return nil
}

// listing mirrors the Reddit listing JSON envelope.
type listing struct {
	Data struct {
		Children []struct {
			Data submission `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type submission struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	SelfText   string  `json:"selftext"`
	Author     string  `json:"author"`
	Permalink  string  `json:"permalink"`
	CreatedUTC float64 `json:"created_utc"`
}

// listingPath maps the configured sort policy onto an API path and query.
func (r *RedditAdapter) listingPath(subreddit string, limit int) string {
	sort := r.cfg.Sort
	query := url.Values{"limit": {strconv.Itoa(limit)}}

	switch sort {
	case "top-daily":
		sort = "top"
		query.Set("t", "day")
	case "hot", "new":
	default:
		sort = "new"
	}

	return fmt.Sprintf("%s/r/%s/%s.json?%s", r.apiURL, url.PathEscape(subreddit), sort, query.Encode())
}

func (r *RedditAdapter) fetchSubreddit(ctx context.Context, subreddit string, limit int) ([]submission, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.listingPath(subreddit, limit), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create listing request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+r.token)
	req.Header.Set("User-Agent", r.cfg.UserAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("listing request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("r/%s returned status %d", subreddit, resp.StatusCode)
	}

	var page listing
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("failed to decode r/%s listing: %w", subreddit, err)
	}

	subs := make([]submission, 0, len(page.Data.Children))
	for _, child := range page.Data.Children {
		subs = append(subs, child.Data)
	}
	return subs, nil
}

// Fetch pulls up to limit submissions from each configured subreddit. A
// failing subreddit is recorded and skipped; only auth failure aborts.
func (r *RedditAdapter) Fetch(ctx context.Context, limit int) (FetchResult, error) {
	var result FetchResult

	if err := r.authenticate(ctx); err != nil {
		return result, fmt.Errorf("reddit authentication failed: %w", err)
	}

	subreddits := r.cfg.Subreddits
	if len(subreddits) == 0 {
		subreddits = config.DefaultSubreddits
	}

	for i, subreddit := range subreddits {
		if i > 0 {
			if err := sleepCtx(ctx, subredditPause); err != nil {
				return result, err
			}
		}

		subs, err := r.fetchSubreddit(ctx, subreddit, limit)
		if err != nil {
			result.Errors = append(result.Errors, err.Error())
			logger.Error("Failed to fetch subreddit", err, "subreddit", subreddit)
			continue
		}
		result.Fetched += len(subs)

		for _, sub := range subs {
			post, err := r.normalizeSubmission(sub)
			if err != nil {
				if errors.Is(err, normalize.ErrTooShort) {
					result.Skipped++
				} else {
					result.Errors = append(result.Errors, fmt.Sprintf("submission %s: %v", sub.ID, err))
				}
				continue
			}
			result.Posts = append(result.Posts, *post)
		}

		logger.Debug("Fetched subreddit", "subreddit", subreddit, "submissions", len(subs))
	}

	return result, nil
}

func (r *RedditAdapter) normalizeSubmission(sub submission) (*core.Post, error) {
	id := sub.ID
	if id == "" {
		// Listings occasionally carry promoted items without ids
		id = uuid.NewSHA1(uuid.NameSpaceURL, []byte(sub.Permalink+sub.Title)).String()
	}

	author := sub.Author
	if author == "[deleted]" {
		author = ""
	}

	return normalize.NormalizeDiscussion(normalize.Discussion{
		ID:        id,
		Title:     sub.Title,
		Body:      sub.SelfText,
		Author:    author,
		Permalink: sub.Permalink,
		CreatedAt: time.Unix(int64(sub.CreatedUTC), 0).UTC(),
	})
}
