// Package feeds fetches and parses RSS/Atom syndication feeds.
package feeds

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// RSS represents an RSS feed structure
type RSS struct {
	XMLName xml.Name `xml:"rss"`
	Channel Channel  `xml:"channel"`
}

// Channel represents an RSS channel
type Channel struct {
	Title       string    `xml:"title"`
	Description string    `xml:"description"`
	Link        string    `xml:"link"`
	Items       []RSSItem `xml:"item"`
}

// RSSItem represents an RSS item
type RSSItem struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	Description string `xml:"description"`
	Author      string `xml:"author"`
	Creator     string `xml:"creator"` // dc:creator, common in news feeds
	PubDate     string `xml:"pubDate"`
	GUID        string `xml:"guid"`
}

// Atom represents an Atom feed structure
type Atom struct {
	XMLName xml.Name    `xml:"feed"`
	Title   string      `xml:"title"`
	Link    []AtomLink  `xml:"link"`
	Entries []AtomEntry `xml:"entry"`
}

// AtomLink represents an Atom link element
type AtomLink struct {
	Href string `xml:"href,attr"`
	Rel  string `xml:"rel,attr"`
	Type string `xml:"type,attr"`
}

// AtomEntry represents an Atom entry
type AtomEntry struct {
	Title     string     `xml:"title"`
	Link      []AtomLink `xml:"link"`
	Summary   string     `xml:"summary"`
	Content   string     `xml:"content"`
	Author    AtomAuthor `xml:"author"`
	Published string     `xml:"published"`
	Updated   string     `xml:"updated"`
	ID        string     `xml:"id"`
}

// AtomAuthor represents an Atom author element
type AtomAuthor struct {
	Name string `xml:"name"`
}

// Item is one parsed feed entry in source-neutral form.
type Item struct {
	Title     string
	Link      string
	Summary   string
	Author    string
	GUID      string
	Published time.Time
}

// ParsedFeed is the result of one fetch.
type ParsedFeed struct {
	Title        string
	Description  string
	Items        []Item
	LastModified string
	ETag         string
	NotModified  bool
}

// FeedManager fetches and parses syndication feeds.
type FeedManager struct {
	client    *http.Client
	userAgent string
}

// NewFeedManager creates a feed manager with the given user agent.
func NewFeedManager(userAgent string, timeout time.Duration) *FeedManager {
	if userAgent == "" {
		userAgent = "trendwatch/1.0"
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &FeedManager{
		client:    &http.Client{Timeout: timeout},
		userAgent: userAgent,
	}
}

// FetchFeed fetches and parses a feed. lastModified and etag enable
// conditional requests; a 304 response returns NotModified with no items.
func (fm *FeedManager) FetchFeed(ctx context.Context, feedURL, lastModified, etag string) (*ParsedFeed, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if lastModified != "" {
		req.Header.Set("If-Modified-Since", lastModified)
	}
	if etag != "" {
		req.Header.Set("If-None-Match", etag)
	}
	req.Header.Set("User-Agent", fm.userAgent)

	resp, err := fm.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotModified {
		return &ParsedFeed{NotModified: true}, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read feed body: %w", err)
	}

	parsed, err := ParseFeed(body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed %s: %w", feedURL, err)
	}

	parsed.LastModified = resp.Header.Get("Last-Modified")
	parsed.ETag = resp.Header.Get("ETag")
	return parsed, nil
}

// ParseFeed parses feed bytes, trying RSS first and falling back to Atom.
func ParseFeed(body []byte) (*ParsedFeed, error) {
	var rss RSS
	if err := xml.Unmarshal(body, &rss); err == nil && rss.Channel.Title != "" {
		return parseRSS(rss), nil
	}

	var atom Atom
	if err := xml.Unmarshal(body, &atom); err == nil && atom.Title != "" {
		return parseAtom(atom), nil
	}

	return nil, fmt.Errorf("unable to parse as RSS or Atom feed")
}

func parseRSS(rss RSS) *ParsedFeed {
	parsed := &ParsedFeed{
		Title:       rss.Channel.Title,
		Description: rss.Channel.Description,
	}

	for _, item := range rss.Channel.Items {
		author := item.Author
		if author == "" {
			author = item.Creator
		}
		parsed.Items = append(parsed.Items, Item{
			Title:     item.Title,
			Link:      item.Link,
			Summary:   item.Description,
			Author:    author,
			GUID:      item.GUID,
			Published: parseRSSDate(item.PubDate),
		})
	}
	return parsed
}

func parseAtom(atom Atom) *ParsedFeed {
	parsed := &ParsedFeed{Title: atom.Title}

	for _, entry := range atom.Entries {
		// Find the main link
		var link string
		for _, l := range entry.Link {
			if l.Rel == "" || l.Rel == "alternate" {
				link = l.Href
				break
			}
		}

		summary := entry.Summary
		if summary == "" {
			summary = entry.Content
		}
		published := entry.Published
		if published == "" {
			published = entry.Updated
		}

		parsed.Items = append(parsed.Items, Item{
			Title:     entry.Title,
			Link:      link,
			Summary:   summary,
			Author:    entry.Author.Name,
			GUID:      entry.ID,
			Published: parseAtomDate(published),
		})
	}
	return parsed
}

// parseRSSDate parses RSS date formats
func parseRSSDate(dateStr string) time.Time {
	if dateStr == "" {
		return time.Time{}
	}

	// Common RSS date formats
	formats := []string{
		time.RFC1123,
		time.RFC1123Z,
		"Mon, 2 Jan 2006 15:04:05 -0700",
		"Mon, 2 Jan 2006 15:04:05 MST",
		"2006-01-02T15:04:05Z07:00",
		"2006-01-02T15:04:05Z",
		"2006-01-02 15:04:05",
	}

	for _, format := range formats {
		if t, err := time.Parse(format, strings.TrimSpace(dateStr)); err == nil {
			return t.UTC()
		}
	}

	return time.Time{}
}

// parseAtomDate parses Atom date formats
func parseAtomDate(dateStr string) time.Time {
	if dateStr == "" {
		return time.Time{}
	}

	// Atom uses RFC3339
	if t, err := time.Parse(time.RFC3339, strings.TrimSpace(dateStr)); err == nil {
		return t.UTC()
	}

	// Fallback to common formats
	return parseRSSDate(dateStr)
}

// FeedInfo summarizes a validated feed.
type FeedInfo struct {
	Title      string
	EntryCount int
}

// ValidateFeed fetches a feed once and reports its title and entry count.
func (fm *FeedManager) ValidateFeed(ctx context.Context, feedURL string) (*FeedInfo, error) {
	parsed, err := fm.FetchFeed(ctx, feedURL, "", "")
	if err != nil {
		return nil, fmt.Errorf("invalid feed URL: %w", err)
	}
	return &FeedInfo{
		Title:      parsed.Title,
		EntryCount: len(parsed.Items),
	}, nil
}
