// Package trends implements two-window statistical trend scoring. An
// entity's mention count in the current window is compared against the
// baseline period, per source kind, using a z-score with growth and
// velocity boosts.
package trends

import (
	"fmt"
	"math"
	"sort"
	"time"

	"trendwatch/internal/core"
	"trendwatch/internal/logger"
)

// PostSource is the read slice of the store the engine needs.
type PostSource interface {
	PostsSince(since time.Time) ([]core.Post, error)
}

// TrendSink persists one engine run.
type TrendSink interface {
	InsertTrends(trends []core.Trend) error
}

// Options are the scoring parameters for one run.
type Options struct {
	MinCount      int
	WindowHours   int
	BaselineHours int
}

// DefaultOptions match the standard 24h window over a 7-day baseline.
func DefaultOptions() Options {
	return Options{MinCount: 10, WindowHours: 24, BaselineHours: 168}
}

// Data sufficiency floors. Runs below these still proceed; scores are just
// statistically weak, which operators should know about.
const (
	minBaselinePosts      = 50
	minEntityBearingPosts = 20
)

// Engine computes and persists trend scores.
type Engine struct {
	posts PostSource
	sink  TrendSink
	opts  Options
}

// NewEngine builds an engine over the given store slices.
func NewEngine(posts PostSource, sink TrendSink, opts Options) *Engine {
	if opts.MinCount <= 0 {
		opts.MinCount = 10
	}
	if opts.WindowHours <= 0 {
		opts.WindowHours = 24
	}
	if opts.BaselineHours <= 0 {
		opts.BaselineHours = 168
	}
	return &Engine{posts: posts, sink: sink, opts: opts}
}

type entityKey struct {
	entity string
	source core.SourceKind
}

// countMentions tallies, per entity and source kind, the number of posts
// mentioning the entity. A post counts once per entity even if the entity
// list somehow repeats.
func countMentions(posts []core.Post) map[entityKey]int {
	counts := map[entityKey]int{}
	for _, post := range posts {
		seen := map[string]bool{}
		for _, entity := range post.Entities {
			if entity == "" || seen[entity] {
				continue
			}
			seen[entity] = true
			counts[entityKey{entity: entity, source: post.SourceKind}]++
		}
	}
	return counts
}

// Run executes one scoring cycle: count both windows, score, persist, and
// return the ranked trends.
func (e *Engine) Run() ([]core.Trend, error) {
	now := time.Now().UTC()

	baselinePosts, err := e.posts.PostsSince(now.Add(-time.Duration(e.opts.BaselineHours) * time.Hour))
	if err != nil {
		return nil, fmt.Errorf("failed to load baseline posts: %w", err)
	}
	e.checkDataSufficiency(baselinePosts)

	windowStart := now.Add(-time.Duration(e.opts.WindowHours) * time.Hour)
	var currentPosts []core.Post
	for _, post := range baselinePosts {
		if !post.CreatedAt.Before(windowStart) {
			currentPosts = append(currentPosts, post)
		}
	}

	trends := e.score(countMentions(currentPosts), countMentions(baselinePosts), now)
	if len(trends) == 0 {
		logger.Info("No trending topics found")
		return nil, nil
	}

	if err := e.sink.InsertTrends(trends); err != nil {
		return nil, fmt.Errorf("failed to persist trends: %w", err)
	}

	logger.Info("Trend cycle complete", "trends", len(trends),
		"window_hours", e.opts.WindowHours, "baseline_hours", e.opts.BaselineHours)
	return trends, nil
}

// checkDataSufficiency warns when the corpus is too thin for stable
// statistics. The run proceeds regardless; min_count gates the output.
func (e *Engine) checkDataSufficiency(posts []core.Post) {
	entityBearing := 0
	for _, post := range posts {
		if len(post.Entities) > 0 {
			entityBearing++
		}
	}
	if len(posts) < minBaselinePosts {
		logger.Warn("Sparse corpus: trend scores may be unstable",
			"posts", len(posts), "wanted", minBaselinePosts)
	} else if entityBearing < minEntityBearingPosts {
		logger.Warn("Few entity-bearing posts: trend scores may be unstable",
			"entity_bearing", entityBearing, "wanted", minEntityBearingPosts)
	}
}

// score computes trend rows from the two count maps. Scoring runs per source
// kind: each source's baseline distribution sets its own normal.
func (e *Engine) score(current, baseline map[entityKey]int, now time.Time) []core.Trend {
	// Qualifying entities grouped by source
	groups := map[core.SourceKind][]entityKey{}
	for key, count := range current {
		if count >= e.opts.MinCount {
			groups[key.source] = append(groups[key.source], key)
		}
	}

	var trends []core.Trend
	for source, keys := range groups {
		// A single entity gives no distribution to score against
		if len(keys) < 2 {
			continue
		}

		baselineMean, baselineStd := baselineStats(keys, baseline)
		if baselineStd == 0 {
			baselineStd = 1
		}
		velocityFloor := baselineMean / float64(e.opts.BaselineHours)

		for _, key := range keys {
			currentCount := current[key]
			baselineCount := baseline[key]

			zScore := (float64(currentCount) - baselineMean) / baselineStd

			growthRate := 0.0
			if baselineCount > 0 {
				growthRate = float64(currentCount-baselineCount) / float64(baselineCount)
			} else if currentCount > 0 {
				growthRate = math.Inf(1)
			}

			velocity := float64(currentCount) / float64(e.opts.WindowHours)

			trendScore := zScore
			if growthRate > 1.0 {
				trendScore *= 1 + math.Min(growthRate, 5)
			}
			if velocity > velocityFloor {
				trendScore *= 1.2
			}

			// Infinity never reaches storage or JSON
			if math.IsInf(growthRate, 1) {
				growthRate = core.GrowthSentinel
			}

			trends = append(trends, core.Trend{
				Entity:        key.entity,
				SourceKind:    source,
				CurrentCount:  currentCount,
				BaselineCount: baselineCount,
				TrendScore:    trendScore,
				GrowthRate:    growthRate,
				Velocity:      velocity,
				ZScore:        zScore,
				CreatedAt:     now,
			})
		}
	}

	sort.Slice(trends, func(i, j int) bool {
		if trends[i].TrendScore != trends[j].TrendScore {
			return trends[i].TrendScore > trends[j].TrendScore
		}
		if trends[i].Entity != trends[j].Entity {
			return trends[i].Entity < trends[j].Entity
		}
		return trends[i].SourceKind < trends[j].SourceKind
	})
	return trends
}

// baselineStats returns the mean and sample standard deviation of the
// baseline counts of the group's entities.
func baselineStats(keys []entityKey, baseline map[entityKey]int) (mean, std float64) {
	n := float64(len(keys))
	sum := 0.0
	for _, key := range keys {
		sum += float64(baseline[key])
	}
	mean = sum / n

	if len(keys) < 2 {
		return mean, 0
	}
	variance := 0.0
	for _, key := range keys {
		d := float64(baseline[key]) - mean
		variance += d * d
	}
	variance /= n - 1
	return mean, math.Sqrt(variance)
}

// Summary aggregates one run for operator output.
type Summary struct {
	Total       int     `json:"total_trends"`
	AvgScore    float64 `json:"avg_score"`
	MaxScore    float64 `json:"max_score"`
	HighTrends  int     `json:"high_trends"`  // score >= 2 sigma
	ViralTrends int     `json:"viral_trends"` // score >= 3 sigma
	Sources     int     `json:"sources"`
}

// Summarize reduces a ranked trend list to its headline numbers.
func Summarize(trends []core.Trend) Summary {
	var s Summary
	s.Total = len(trends)
	if s.Total == 0 {
		return s
	}

	sources := map[core.SourceKind]bool{}
	sum := 0.0
	s.MaxScore = trends[0].TrendScore
	for _, t := range trends {
		sum += t.TrendScore
		if t.TrendScore > s.MaxScore {
			s.MaxScore = t.TrendScore
		}
		if t.TrendScore >= 2.0 {
			s.HighTrends++
		}
		if t.TrendScore >= 3.0 {
			s.ViralTrends++
		}
		sources[t.SourceKind] = true
	}
	s.AvgScore = sum / float64(s.Total)
	s.Sources = len(sources)
	return s
}
