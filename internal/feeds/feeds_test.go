package feeds

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

const sampleRSS = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Example News</title>
    <description>Test feed</description>
    <link>https://example.com</link>
    <item>
      <title>First story</title>
      <link>https://example.com/1</link>
      <description>Something happened today</description>
      <pubDate>Mon, 02 Jun 2025 10:00:00 GMT</pubDate>
      <guid>https://example.com/1</guid>
    </item>
    <item>
      <title>Second story</title>
      <link>https://example.com/2</link>
      <description>More things happened</description>
      <pubDate>Mon, 02 Jun 2025 11:00:00 +0000</pubDate>
    </item>
  </channel>
</rss>`

const sampleAtom = `<?xml version="1.0" encoding="utf-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Example Atom</title>
  <entry>
    <title>Atom entry</title>
    <link rel="alternate" href="https://example.com/a/1"/>
    <summary>An atom summary</summary>
    <author><name>writer</name></author>
    <published>2025-06-02T10:00:00Z</published>
    <id>tag:example.com,2025:1</id>
  </entry>
</feed>`

func TestParseFeedRSS(t *testing.T) {
	parsed, err := ParseFeed([]byte(sampleRSS))
	if err != nil {
		t.Fatalf("ParseFeed failed: %v", err)
	}
	if parsed.Title != "Example News" {
		t.Errorf("Unexpected title %q", parsed.Title)
	}
	if len(parsed.Items) != 2 {
		t.Fatalf("Expected 2 items, got %d", len(parsed.Items))
	}

	first := parsed.Items[0]
	if first.Title != "First story" || first.Link != "https://example.com/1" {
		t.Errorf("Unexpected first item %+v", first)
	}
	want := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	if !first.Published.Equal(want) {
		t.Errorf("Expected published %v, got %v", want, first.Published)
	}
}

func TestParseFeedAtom(t *testing.T) {
	parsed, err := ParseFeed([]byte(sampleAtom))
	if err != nil {
		t.Fatalf("ParseFeed failed: %v", err)
	}
	if parsed.Title != "Example Atom" {
		t.Errorf("Unexpected title %q", parsed.Title)
	}
	if len(parsed.Items) != 1 {
		t.Fatalf("Expected 1 item, got %d", len(parsed.Items))
	}

	item := parsed.Items[0]
	if item.Link != "https://example.com/a/1" {
		t.Errorf("Unexpected link %q", item.Link)
	}
	if item.Author != "writer" {
		t.Errorf("Unexpected author %q", item.Author)
	}
	if item.Summary != "An atom summary" {
		t.Errorf("Unexpected summary %q", item.Summary)
	}
}

func TestParseFeedInvalid(t *testing.T) {
	if _, err := ParseFeed([]byte("this is not xml")); err == nil {
		t.Error("Expected error for non-feed content")
	}
	if _, err := ParseFeed([]byte("<html><body>nope</body></html>")); err == nil {
		t.Error("Expected error for non-feed XML")
	}
}

func TestFetchFeed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("If-None-Match") == `"v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write([]byte(sampleRSS))
	}))
	defer server.Close()

	fm := NewFeedManager("test-agent", 5*time.Second)

	parsed, err := fm.FetchFeed(context.Background(), server.URL, "", "")
	if err != nil {
		t.Fatalf("FetchFeed failed: %v", err)
	}
	if parsed.NotModified {
		t.Error("First fetch should not be NotModified")
	}
	if parsed.ETag != `"v1"` {
		t.Errorf("Expected etag to be captured, got %q", parsed.ETag)
	}

	// Conditional re-fetch honors the etag
	again, err := fm.FetchFeed(context.Background(), server.URL, "", parsed.ETag)
	if err != nil {
		t.Fatalf("Conditional FetchFeed failed: %v", err)
	}
	if !again.NotModified {
		t.Error("Expected NotModified on conditional fetch")
	}
}

func TestFetchFeedServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	fm := NewFeedManager("", 5*time.Second)
	if _, err := fm.FetchFeed(context.Background(), server.URL, "", ""); err == nil {
		t.Error("Expected error for 500 response")
	}
}

func TestValidateFeed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(sampleRSS))
	}))
	defer server.Close()

	fm := NewFeedManager("", 5*time.Second)
	info, err := fm.ValidateFeed(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("ValidateFeed failed: %v", err)
	}
	if info.Title != "Example News" || info.EntryCount != 2 {
		t.Errorf("Unexpected feed info %+v", info)
	}
}
