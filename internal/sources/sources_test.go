package sources

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"trendwatch/internal/config"
	"trendwatch/internal/core"
)

func redditTestServers(t *testing.T, listingHandler http.HandlerFunc) (token, api *httptest.Server) {
	t.Helper()

	token = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "id" || pass != "secret" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "tok123",
			"token_type":   "bearer",
			"expires_in":   3600,
		})
	}))
	t.Cleanup(token.Close)

	api = httptest.NewServer(listingHandler)
	t.Cleanup(api.Close)
	return token, api
}

func newTestRedditAdapter(cfg config.Reddit, tokenURL, apiURL string) *RedditAdapter {
	a := NewRedditAdapter(cfg)
	a.tokenURL = tokenURL
	a.apiURL = apiURL
	return a
}

func TestRedditAdapterFetch(t *testing.T) {
	createdUTC := float64(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC).Unix())

	tokenSrv, apiSrv := redditTestServers(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok123" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		if !strings.HasPrefix(r.URL.Path, "/r/golang/new.json") {
			http.NotFound(w, r)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{
				"children": []any{
					map[string]any{"data": map[string]any{
						"id":          "abc",
						"title":       "Go 1.25 released with big improvements",
						"selftext":    "The release notes cover everything.",
						"author":      "gopher",
						"permalink":   "/r/golang/comments/abc/go_release/",
						"created_utc": createdUTC,
					}},
					map[string]any{"data": map[string]any{
						"id":          "def",
						"title":       "hi",
						"selftext":    "",
						"author":      "short",
						"permalink":   "/r/golang/comments/def/hi/",
						"created_utc": createdUTC,
					}},
				},
			},
		})
	})

	adapter := newTestRedditAdapter(config.Reddit{
		ClientID:     "id",
		ClientSecret: "secret",
		UserAgent:    "test-agent",
		Subreddits:   []string{"golang"},
		Sort:         "new",
	}, tokenSrv.URL, apiSrv.URL)

	result, err := adapter.Fetch(context.Background(), 25)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}

	if result.Fetched != 2 {
		t.Errorf("Expected 2 fetched, got %d", result.Fetched)
	}
	if result.Skipped != 1 {
		t.Errorf("Expected 1 skipped (too short), got %d", result.Skipped)
	}
	if len(result.Posts) != 1 {
		t.Fatalf("Expected 1 post, got %d", len(result.Posts))
	}

	post := result.Posts[0]
	if post.ID != "discussion_abc" {
		t.Errorf("Unexpected post id %q", post.ID)
	}
	if post.SourceKind != core.SourceDiscussion {
		t.Errorf("Unexpected source kind %q", post.SourceKind)
	}
	if post.Author != "gopher" {
		t.Errorf("Unexpected author %q", post.Author)
	}
}

func TestRedditAdapterAuthFailure(t *testing.T) {
	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer tokenSrv.Close()

	adapter := newTestRedditAdapter(config.Reddit{
		ClientID:     "bad",
		ClientSecret: "creds",
		Subreddits:   []string{"golang"},
	}, tokenSrv.URL, "http://unused.invalid")

	if _, err := adapter.Fetch(context.Background(), 10); err == nil {
		t.Error("Expected error on auth failure")
	}
}

func TestRedditAdapterSubredditFailureContained(t *testing.T) {
	tokenSrv, apiSrv := redditTestServers(t, func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/r/broken/") {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{
				"children": []any{
					map[string]any{"data": map[string]any{
						"id":          "ok1",
						"title":       "A perfectly reasonable headline here",
						"selftext":    "",
						"author":      "someone",
						"permalink":   "/r/good/comments/ok1/x/",
						"created_utc": float64(time.Now().Unix()),
					}},
				},
			},
		})
	})

	adapter := newTestRedditAdapter(config.Reddit{
		ClientID:     "id",
		ClientSecret: "secret",
		Subreddits:   []string{"broken", "good"},
	}, tokenSrv.URL, apiSrv.URL)

	result, err := adapter.Fetch(context.Background(), 10)
	if err != nil {
		t.Fatalf("Fetch should contain subreddit failures: %v", err)
	}
	if len(result.Errors) != 1 {
		t.Errorf("Expected 1 error recorded, got %v", result.Errors)
	}
	if len(result.Posts) != 1 {
		t.Errorf("Expected the healthy subreddit to still yield a post, got %d", len(result.Posts))
	}
}

func TestRedditListingPathSorts(t *testing.T) {
	tests := []struct {
		sort     string
		wantPath string
		wantT    bool
	}{
		{"new", "/r/news/new.json", false},
		{"hot", "/r/news/hot.json", false},
		{"top-daily", "/r/news/top.json", true},
		{"bogus", "/r/news/new.json", false},
	}

	for _, tt := range tests {
		adapter := NewRedditAdapter(config.Reddit{Sort: tt.sort})
		adapter.apiURL = "http://api.test"
		got := adapter.listingPath("news", 25)
		if !strings.Contains(got, tt.wantPath) {
			t.Errorf("sort %q: expected path %q in %q", tt.sort, tt.wantPath, got)
		}
		if strings.Contains(got, "t=day") != tt.wantT {
			t.Errorf("sort %q: t=day presence wrong in %q", tt.sort, got)
		}
	}
}

const adapterTestFeed = `<?xml version="1.0"?>
<rss version="2.0"><channel>
  <title>Adapter Feed</title>
  <item>
    <title>Market rally continues into the weekend</title>
    <link>https://example.com/markets</link>
    <description>Stocks climbed again as traders cheered.</description>
    <pubDate>Mon, 02 Jun 2025 09:00:00 GMT</pubDate>
  </item>
  <item>
    <title>x</title>
    <link>https://example.com/short</link>
    <description></description>
  </item>
</channel></rss>`

func TestRSSAdapterFetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(adapterTestFeed))
	}))
	defer server.Close()

	adapter := NewRSSAdapter(config.Feeds{
		URLs:              []string{server.URL},
		Timeout:           "5s",
		MaxEntriesPerFeed: 50,
	})

	result, err := adapter.Fetch(context.Background(), 0)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if result.Fetched != 2 {
		t.Errorf("Expected 2 fetched, got %d", result.Fetched)
	}
	if result.Skipped != 1 {
		t.Errorf("Expected 1 skipped, got %d", result.Skipped)
	}
	if len(result.Posts) != 1 {
		t.Fatalf("Expected 1 post, got %d", len(result.Posts))
	}
	if result.Posts[0].SourceKind != core.SourceFeed {
		t.Errorf("Unexpected source kind %q", result.Posts[0].SourceKind)
	}
}

func TestRSSAdapterFeedFailureContained(t *testing.T) {
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer bad.Close()
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(adapterTestFeed))
	}))
	defer good.Close()

	adapter := NewRSSAdapter(config.Feeds{
		URLs:    []string{bad.URL, good.URL},
		Timeout: "5s",
	})

	result, err := adapter.Fetch(context.Background(), 0)
	if err != nil {
		t.Fatalf("Fetch should contain feed failures: %v", err)
	}
	if len(result.Errors) != 1 {
		t.Errorf("Expected 1 error recorded, got %v", result.Errors)
	}
	if len(result.Posts) != 1 {
		t.Errorf("Expected the healthy feed to still yield a post, got %d", len(result.Posts))
	}
}

func TestRSSAdapterLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(adapterTestFeed))
	}))
	defer server.Close()

	adapter := NewRSSAdapter(config.Feeds{URLs: []string{server.URL}, Timeout: "5s"})

	result, err := adapter.Fetch(context.Background(), 1)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if result.Fetched != 1 {
		t.Errorf("Expected limit to cap fetch at 1, got %d", result.Fetched)
	}
}
