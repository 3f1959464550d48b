package sources

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"trendwatch/internal/config"
	"trendwatch/internal/feeds"
	"trendwatch/internal/logger"
	"trendwatch/internal/normalize"
)

// Pause between feed fetches so a long feed list does not hammer hosts.
const feedPause = time.Second

// RSSAdapter ingests entries from configured syndication feeds.
type RSSAdapter struct {
	cfg     config.Feeds
	manager *feeds.FeedManager

	mu    sync.Mutex
	cache map[string]feedState
}

type feedState struct {
	lastModified string
	etag         string
}

// NewRSSAdapter builds the adapter from feed configuration.
func NewRSSAdapter(cfg config.Feeds) *RSSAdapter {
	timeout, err := time.ParseDuration(cfg.Timeout)
	if err != nil {
		timeout = 30 * time.Second
	}
	return &RSSAdapter{
		cfg:     cfg,
		manager: feeds.NewFeedManager(cfg.UserAgent, timeout),
		cache:   map[string]feedState{},
	}
}

func (a *RSSAdapter) Name() string {
	return "rss"
}

// Fetch pulls entries from every configured feed. A failing feed is recorded
// and the rest still run; limit caps entries taken per feed (0 uses the
// configured maximum).
func (a *RSSAdapter) Fetch(ctx context.Context, limit int) (FetchResult, error) {
	var result FetchResult

	maxEntries := a.cfg.MaxEntriesPerFeed
	if limit > 0 && (maxEntries == 0 || limit < maxEntries) {
		maxEntries = limit
	}

	for i, feedURL := range a.cfg.URLs {
		if i > 0 {
			if err := sleepCtx(ctx, feedPause); err != nil {
				return result, err
			}
		}

		state := a.getState(feedURL)
		parsed, err := a.manager.FetchFeed(ctx, feedURL, state.lastModified, state.etag)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("feed %s: %v", feedURL, err))
			logger.Error("Failed to fetch feed", err, "url", feedURL)
			continue
		}
		if parsed.NotModified {
			logger.Debug("Feed not modified", "url", feedURL)
			continue
		}
		a.setState(feedURL, feedState{lastModified: parsed.LastModified, etag: parsed.ETag})

		items := parsed.Items
		if maxEntries > 0 && len(items) > maxEntries {
			items = items[:maxEntries]
		}
		result.Fetched += len(items)

		for _, item := range items {
			post, err := normalize.NormalizeFeedEntry(normalize.FeedEntry{
				Title:     item.Title,
				Summary:   item.Summary,
				Author:    item.Author,
				Link:      item.Link,
				Published: item.Published,
			})
			if err != nil {
				if errors.Is(err, normalize.ErrTooShort) {
					result.Skipped++
				} else {
					result.Errors = append(result.Errors, fmt.Sprintf("entry %s: %v", item.Link, err))
				}
				continue
			}
			result.Posts = append(result.Posts, *post)
		}

		logger.Debug("Fetched feed", "url", feedURL, "entries", len(items))
	}

	return result, nil
}

func (a *RSSAdapter) getState(feedURL string) feedState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cache[feedURL]
}

func (a *RSSAdapter) setState(feedURL string, state feedState) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cache[feedURL] = state
}
