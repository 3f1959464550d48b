// Package normalize converts raw source records into canonical posts.
package normalize

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"trendwatch/internal/core"
	"trendwatch/internal/features"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"
)

// ErrTooShort marks records whose cleaned text is under the minimum length.
// Callers count these as skipped, not failed.
var ErrTooShort = errors.New("text too short after cleaning")

// minTextLength is the floor below which a record carries no signal.
const minTextLength = 10

// maxTextLength caps stored text.
const maxTextLength = 8000

var (
	whitespacePattern  = regexp.MustCompile(`\s+`)
	removedPattern     = regexp.MustCompile(`\[removed\]|\[deleted\]`)
	exclamationPattern = regexp.MustCompile(`!{2,}`)
	questionPattern    = regexp.MustCompile(`\?{2,}`)
	ellipsisPattern    = regexp.MustCompile(`\.{3,}`)
	tagPattern         = regexp.MustCompile(`<[^>]+>`)
)

var quoteReplacer = strings.NewReplacer(
	"“", `"`, // left double quote
	"”", `"`, // right double quote
	"‘", "'", // left single quote
	"’", "'", // right single quote
)

// stripHTML extracts the text content of an HTML fragment. Feed summaries
// routinely arrive as markup.
func stripHTML(text string) string {
	if !strings.ContainsRune(text, '<') {
		return text
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(text))
	if err != nil {
		// Malformed beyond parsing; fall back to tag removal
		return tagPattern.ReplaceAllString(text, " ")
	}
	return doc.Text()
}

// CleanText applies the canonical cleaning pipeline: HTML stripped,
// whitespace collapsed, moderation placeholders removed, repeated
// punctuation collapsed, smart quotes converted, length capped.
// CleanText is idempotent: CleanText(CleanText(s)) == CleanText(s).
func CleanText(text string) string {
	if text == "" {
		return ""
	}

	text = stripHTML(text)
	text = removedPattern.ReplaceAllString(text, "")
	text = exclamationPattern.ReplaceAllString(text, "!")
	text = questionPattern.ReplaceAllString(text, "?")
	text = ellipsisPattern.ReplaceAllString(text, "...")
	text = quoteReplacer.Replace(text)
	text = whitespacePattern.ReplaceAllString(strings.TrimSpace(text), " ")

	// Length limits are in characters, not bytes; cutting mid-rune would
	// store invalid UTF-8.
	if len(text) > maxTextLength {
		if runes := []rune(text); len(runes) > maxTextLength {
			text = strings.TrimSpace(string(runes[:maxTextLength]))
		}
	}
	return text
}

// Discussion is the raw shape of a discussion-site submission.
type Discussion struct {
	ID        string
	Title     string
	Body      string
	Author    string
	Permalink string
	CreatedAt time.Time
}

// FeedEntry is the raw shape of one syndication feed item.
type FeedEntry struct {
	Title     string
	Summary   string
	Author    string
	Link      string
	Published time.Time
}

// NormalizeDiscussion converts a discussion submission into a canonical post.
// Title and body are joined before cleaning so entity extraction sees both.
func NormalizeDiscussion(d Discussion) (*core.Post, error) {
	if d.ID == "" {
		return nil, fmt.Errorf("discussion record has no id")
	}

	text := CleanText(strings.TrimSpace(d.Title + "\n\n" + d.Body))
	if utf8.RuneCountInString(text) < minTextLength {
		return nil, ErrTooShort
	}

	url := d.Permalink
	if url != "" && strings.HasPrefix(url, "/") {
		url = "https://reddit.com" + url
	}

	return &core.Post{
		ID:         "discussion_" + d.ID,
		SourceKind: core.SourceDiscussion,
		Author:     d.Author,
		Text:       text,
		URL:        url,
		CreatedAt:  d.CreatedAt.UTC(),
		Hashtags:   features.ExtractHashtags(text),
		Entities:   features.ExtractEntities(text),
	}, nil
}

// NormalizeFeedEntry converts a feed item into a canonical post. Entries have
// no stable upstream id, so one is derived deterministically from the link
// and publication instant: the same entry always maps to the same post id.
func NormalizeFeedEntry(e FeedEntry) (*core.Post, error) {
	text := CleanText(strings.TrimSpace(e.Title + "\n\n" + e.Summary))
	if utf8.RuneCountInString(text) < minTextLength {
		return nil, ErrTooShort
	}

	published := e.Published
	if published.IsZero() {
		published = time.Now()
	}
	published = published.UTC()

	seed := e.Link + "|" + published.Format(time.RFC3339)
	id := uuid.NewSHA1(uuid.NameSpaceURL, []byte(seed))

	return &core.Post{
		ID:         "feed_" + id.String(),
		SourceKind: core.SourceFeed,
		Author:     e.Author,
		Text:       text,
		URL:        e.Link,
		CreatedAt:  published,
		Hashtags:   features.ExtractHashtags(text),
		Entities:   features.ExtractEntities(text),
	}, nil
}
