package normalize

import (
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"
)

func TestCleanText(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		expected string
	}{
		{
			name:     "empty",
			text:     "",
			expected: "",
		},
		{
			name:     "whitespace collapsed",
			text:     "hello   \n\t world",
			expected: "hello world",
		},
		{
			name:     "moderation placeholders removed",
			text:     "before [removed] after [deleted] end",
			expected: "before after end",
		},
		{
			name:     "punctuation collapsed",
			text:     "what!!!! really???? wait......",
			expected: "what! really? wait...",
		},
		{
			name:     "smart quotes converted",
			text:     "she said “hello” and ‘bye’",
			expected: `she said "hello" and 'bye'`,
		},
		{
			name:     "html stripped",
			text:     "<p>Breaking <b>news</b> today</p>",
			expected: "Breaking news today",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CleanText(tt.text); got != tt.expected {
				t.Errorf("CleanText(%q) = %q, want %q", tt.text, got, tt.expected)
			}
		})
	}
}

func TestCleanTextIdempotent(t *testing.T) {
	inputs := []string{
		"hello   world!!! [removed] “quoted”",
		"<div>some <i>html</i></div> with....dots",
		strings.Repeat("a", 9000),
		"plain already-clean text",
	}
	for _, in := range inputs {
		once := CleanText(in)
		twice := CleanText(once)
		if once != twice {
			t.Errorf("CleanText not idempotent for %.40q: %q vs %q", in, once, twice)
		}
	}
}

func TestCleanTextLengthCap(t *testing.T) {
	got := CleanText(strings.Repeat("x", 10000))
	if len(got) != 8000 {
		t.Errorf("Expected 8000 chars, got %d", len(got))
	}
}

func TestCleanTextLengthCapMultiByte(t *testing.T) {
	// A rune straddling the cap position must never be split
	got := CleanText(strings.Repeat("a", 7999) + "é" + strings.Repeat("b", 100))
	if !utf8.ValidString(got) {
		t.Fatal("CleanText produced invalid UTF-8 at the length cap")
	}
	if n := utf8.RuneCountInString(got); n != 8000 {
		t.Errorf("Expected 8000 runes, got %d", n)
	}
	if !strings.HasSuffix(got, "é") {
		t.Errorf("Expected the multi-byte rune to be kept whole, got suffix %q", got[len(got)-4:])
	}

	got = CleanText(strings.Repeat("日", 9000))
	if !utf8.ValidString(got) {
		t.Fatal("CleanText produced invalid UTF-8 for multi-byte text")
	}
	if n := utf8.RuneCountInString(got); n != 8000 {
		t.Errorf("Expected 8000 runes, got %d", n)
	}
}

func TestNormalizeDiscussion(t *testing.T) {
	createdAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	post, err := NormalizeDiscussion(Discussion{
		ID:        "abc123",
		Title:     "Bitcoin hits new high",
		Body:      "Traders say bitcoin momentum is strong. #crypto",
		Author:    "satoshi_fan",
		Permalink: "/r/news/comments/abc123/bitcoin/",
		CreatedAt: createdAt,
	})
	if err != nil {
		t.Fatalf("NormalizeDiscussion failed: %v", err)
	}

	if post.ID != "discussion_abc123" {
		t.Errorf("Unexpected id %q", post.ID)
	}
	if post.SourceKind != "discussion" {
		t.Errorf("Unexpected source kind %q", post.SourceKind)
	}
	if post.URL != "https://reddit.com/r/news/comments/abc123/bitcoin/" {
		t.Errorf("Unexpected url %q", post.URL)
	}
	if !post.CreatedAt.Equal(createdAt) {
		t.Errorf("Unexpected created_at %v", post.CreatedAt)
	}

	found := false
	for _, e := range post.Entities {
		if e == "bitcoin" {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected bitcoin entity, got %v", post.Entities)
	}
	if len(post.Hashtags) != 1 || post.Hashtags[0] != "#crypto" {
		t.Errorf("Unexpected hashtags %v", post.Hashtags)
	}
}

func TestNormalizeDiscussionTooShort(t *testing.T) {
	_, err := NormalizeDiscussion(Discussion{ID: "x", Title: "hi", CreatedAt: time.Now()})
	if !errors.Is(err, ErrTooShort) {
		t.Errorf("Expected ErrTooShort, got %v", err)
	}

	// A post that collapses to nothing after cleaning is also rejected
	_, err = NormalizeDiscussion(Discussion{ID: "y", Title: "[removed]", Body: "[deleted]", CreatedAt: time.Now()})
	if !errors.Is(err, ErrTooShort) {
		t.Errorf("Expected ErrTooShort for removed content, got %v", err)
	}

	// The minimum is measured in characters: five accented letters are ten
	// bytes but still too short
	_, err = NormalizeDiscussion(Discussion{ID: "z", Title: "ééééé", CreatedAt: time.Now()})
	if !errors.Is(err, ErrTooShort) {
		t.Errorf("Expected ErrTooShort for 5-rune text, got %v", err)
	}
}

func TestNormalizeFeedEntryDeterministicID(t *testing.T) {
	entry := FeedEntry{
		Title:     "Election results announced",
		Summary:   "<p>Full coverage of the election results.</p>",
		Link:      "https://example.com/news/1",
		Published: time.Date(2025, 6, 1, 8, 30, 0, 0, time.UTC),
	}

	first, err := NormalizeFeedEntry(entry)
	if err != nil {
		t.Fatalf("NormalizeFeedEntry failed: %v", err)
	}
	second, err := NormalizeFeedEntry(entry)
	if err != nil {
		t.Fatalf("NormalizeFeedEntry failed: %v", err)
	}

	if first.ID != second.ID {
		t.Errorf("Same entry produced different ids: %q vs %q", first.ID, second.ID)
	}
	if !strings.HasPrefix(first.ID, "feed_") {
		t.Errorf("Unexpected id prefix: %q", first.ID)
	}
	if strings.Contains(first.Text, "<p>") {
		t.Errorf("HTML leaked into text: %q", first.Text)
	}

	// A different link yields a different id
	entry.Link = "https://example.com/news/2"
	third, err := NormalizeFeedEntry(entry)
	if err != nil {
		t.Fatalf("NormalizeFeedEntry failed: %v", err)
	}
	if third.ID == first.ID {
		t.Error("Different links should produce different ids")
	}
}

func TestNormalizeFeedEntryDefaultsPublished(t *testing.T) {
	post, err := NormalizeFeedEntry(FeedEntry{
		Title:   "A headline long enough to keep",
		Summary: "body",
		Link:    "https://example.com/x",
	})
	if err != nil {
		t.Fatalf("NormalizeFeedEntry failed: %v", err)
	}
	if post.CreatedAt.IsZero() {
		t.Error("Expected created_at to default to now")
	}
}
