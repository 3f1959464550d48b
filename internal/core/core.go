package core

import (
	"strings"
	"time"
)

// SourceKind identifies the class of source a post was ingested from.
type SourceKind string

const (
	SourceDiscussion SourceKind = "discussion" // discussion-site submissions (Reddit)
	SourceFeed       SourceKind = "feed"       // RSS/Atom syndication entries
)

// Post is the canonical record of one ingested item.
type Post struct {
	ID         string     `json:"id"`          // "{source_kind}_{source_local_id}"
	SourceKind SourceKind `json:"source_kind"` // originating source class
	Author     string     `json:"author"`      // optional author handle
	Text       string     `json:"text"`        // cleaned text, 10..8000 chars
	URL        string     `json:"url"`         // optional canonical URL
	CreatedAt  time.Time  `json:"created_at"`  // publication time, UTC
	Hashtags   []string   `json:"hashtags"`    // lowercase, leading '#' kept
	Entities   []string   `json:"entities"`    // sorted, deduplicated entity tokens
	IndexedAt  time.Time  `json:"indexed_at"`  // set by the store on insert
}

// JoinedEntities returns the canonical comma-joined form stored in the database.
func (p Post) JoinedEntities() string {
	return strings.Join(p.Entities, ",")
}

// JoinedHashtags returns the comma-joined hashtag column value.
func (p Post) JoinedHashtags() string {
	return strings.Join(p.Hashtags, ",")
}

// SplitList splits a comma-joined column value back into tokens, dropping empties.
func SplitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Trend scores one entity on one source for a single engine run.
type Trend struct {
	Entity        string     `json:"entity"`
	SourceKind    SourceKind `json:"source_kind"`
	CurrentCount  int        `json:"current_count"`
	BaselineCount int        `json:"baseline_count"`
	TrendScore    float64    `json:"trend_score"`
	GrowthRate    float64    `json:"growth_rate"` // capped at GrowthSentinel, never infinite
	Velocity      float64    `json:"velocity"`    // mentions per hour in the current window
	ZScore        float64    `json:"z_score"`
	CreatedAt     time.Time  `json:"created_at"` // shared by all rows of one run
}

// GrowthSentinel is persisted in place of an infinite growth rate (baseline 0).
const GrowthSentinel = 999.0

// AlertKind classifies a persisted alert.
type AlertKind string

const (
	AlertTrendSpike AlertKind = "trend_spike"
	AlertViral      AlertKind = "viral"
	AlertManual     AlertKind = "manual"
	AlertTest       AlertKind = "test"
)

// AlertStatus tracks an alert's lifecycle.
type AlertStatus string

const (
	AlertActive   AlertStatus = "active"
	AlertResolved AlertStatus = "resolved"
)

// Alert is the durable record of a trend crossing a threshold.
type Alert struct {
	ID             int64       `json:"id"`
	Entity         string      `json:"entity"`
	Kind           AlertKind   `json:"kind"`
	ThresholdValue float64     `json:"threshold_value"`
	ActualValue    float64     `json:"actual_value"`
	Message        string      `json:"message"`
	CreatedAt      time.Time   `json:"created_at"`
	Status         AlertStatus `json:"status"`
}

// AlertPayload is the stable wire form handed to notification sinks.
type AlertPayload struct {
	Kind         AlertKind  `json:"kind"`
	Entity       string     `json:"entity"`
	SourceKind   SourceKind `json:"source_kind"`
	TrendScore   float64    `json:"trend_score"`
	CurrentCount int        `json:"current_count"`
	GrowthRate   float64    `json:"growth_rate"`
	Timestamp    time.Time  `json:"timestamp"` // RFC 3339 UTC
	Message      string     `json:"message"`
}

// SourceResult reports one adapter's share of an ingestion cycle.
type SourceResult struct {
	Source   string   `json:"source"`
	Fetched  int      `json:"fetched"`
	Ingested int      `json:"ingested"`
	Skipped  int      `json:"skipped"`
	Errors   []string `json:"errors,omitempty"`
}

// CycleResult summarizes one full ingestion cycle across all adapters.
type CycleResult struct {
	Sources  []SourceResult `json:"sources"`
	Duration time.Duration  `json:"duration"`
}

// TotalIngested sums ingested posts across sources.
func (c CycleResult) TotalIngested() int {
	n := 0
	for _, s := range c.Sources {
		n += s.Ingested
	}
	return n
}

// HasErrors reports whether any source recorded a per-record or adapter error.
func (c CycleResult) HasErrors() bool {
	for _, s := range c.Sources {
		if len(s.Errors) > 0 {
			return true
		}
	}
	return false
}
