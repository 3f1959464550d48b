// Package alerts gates scored trends against thresholds and dispatches
// qualifying ones to notification sinks. Persistence happens before
// delivery, so an alert is never sent without a durable record, and the
// store's cooldown dedup keeps a hot entity from re-alerting every cycle.
package alerts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"trendwatch/internal/config"
	"trendwatch/internal/core"
	"trendwatch/internal/logger"
	"trendwatch/internal/store"
)

// AlertStore is the slice of the store the gate needs.
type AlertStore interface {
	InsertAlert(alert core.Alert, cooldown time.Duration) (int64, error)
}

// Sink delivers alert payloads to one destination.
type Sink interface {
	Name() string
	Send(ctx context.Context, payload core.AlertPayload) error
}

// viralThreshold marks scores treated as viral regardless of config.
const viralThreshold = 3.0

// Gate evaluates trends and fans qualifying alerts out to sinks.
type Gate struct {
	cfg       config.Alerts
	store     AlertStore
	sinks     []Sink
	watchlist map[string]bool
}

// NewGate builds a gate. Sinks are derived from configured credentials;
// an unconfigured sink is simply absent.
func NewGate(cfg config.Alerts, st AlertStore) *Gate {
	g := &Gate{cfg: cfg, store: st, watchlist: map[string]bool{}}
	for _, kw := range cfg.KeywordWatchlist {
		if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" {
			g.watchlist[kw] = true
		}
	}
	if cfg.WebhookURL != "" {
		g.sinks = append(g.sinks, NewWebhookSink(cfg.WebhookURL))
	}
	if cfg.EmailConfigured() {
		g.sinks = append(g.sinks, NewEmailSink(cfg))
	}
	return g
}

// AddSink registers an extra sink. Used by tests and embedders.
func (g *Gate) AddSink(s Sink) {
	g.sinks = append(g.sinks, s)
}

// classify maps a trend onto an alert kind, or "" when it does not qualify.
// Watchlisted entities always qualify.
func (g *Gate) classify(t core.Trend) core.AlertKind {
	if t.TrendScore >= viralThreshold {
		return core.AlertViral
	}
	if t.TrendScore >= g.cfg.TrendThreshold ||
		t.GrowthRate >= g.cfg.GrowthThreshold ||
		t.CurrentCount >= g.cfg.VolumeThreshold {
		return core.AlertTrendSpike
	}
	if g.watchlist[strings.ToLower(t.Entity)] {
		return core.AlertTrendSpike
	}
	return ""
}

func (g *Gate) threshold(kind core.AlertKind) float64 {
	if kind == core.AlertViral {
		return viralThreshold
	}
	return g.cfg.TrendThreshold
}

// Result reports one gating pass.
type Result struct {
	Evaluated  int `json:"evaluated"`
	Qualified  int `json:"qualified"`
	Suppressed int `json:"suppressed"`
	Sent       int `json:"sent"`
	Failures   int `json:"failures"`
}

// Process evaluates a ranked trend list. Disabled config short-circuits.
// Sink failures are logged and counted, never returned: alert delivery must
// not fail the pipeline.
func (g *Gate) Process(ctx context.Context, trends []core.Trend) (Result, error) {
	var result Result
	if !g.cfg.Enabled {
		return result, nil
	}

	cooldown := time.Duration(g.cfg.CooldownSeconds) * time.Second

	for _, trend := range trends {
		result.Evaluated++

		kind := g.classify(trend)
		if kind == "" {
			continue
		}
		result.Qualified++

		message := fmt.Sprintf("Trending alert for %s with score %.2f sigma", trend.Entity, trend.TrendScore)
		alert := core.Alert{
			Entity:         trend.Entity,
			Kind:           kind,
			ThresholdValue: g.threshold(kind),
			ActualValue:    trend.TrendScore,
			Message:        message,
			CreatedAt:      time.Now().UTC(),
		}

		if _, err := g.store.InsertAlert(alert, cooldown); err != nil {
			if errors.Is(err, store.ErrDuplicateAlert) {
				result.Suppressed++
				logger.Debug("Alert suppressed by cooldown", "entity", trend.Entity, "kind", string(kind))
				continue
			}
			return result, fmt.Errorf("failed to record alert for %s: %w", trend.Entity, err)
		}

		payload := core.AlertPayload{
			Kind:         kind,
			Entity:       trend.Entity,
			SourceKind:   trend.SourceKind,
			TrendScore:   trend.TrendScore,
			CurrentCount: trend.CurrentCount,
			GrowthRate:   trend.GrowthRate,
			Timestamp:    alert.CreatedAt,
			Message:      message,
		}

		delivered := false
		for _, sink := range g.sinks {
			if err := sink.Send(ctx, payload); err != nil {
				result.Failures++
				logger.Error("Alert delivery failed", err, "sink", sink.Name(), "entity", trend.Entity)
				continue
			}
			delivered = true
		}
		if delivered || len(g.sinks) == 0 {
			result.Sent++
		}
	}

	return result, nil
}

// SendTest pushes a test payload through every sink and reports per-sink
// outcome. Used to verify credentials before relying on alerting.
func (g *Gate) SendTest(ctx context.Context) map[string]error {
	payload := core.AlertPayload{
		Kind:      core.AlertTest,
		Entity:    "test",
		Timestamp: time.Now().UTC(),
		Message:   "Test notification from trendwatch",
	}

	results := map[string]error{}
	for _, sink := range g.sinks {
		results[sink.Name()] = sink.Send(ctx, payload)
	}
	return results
}
