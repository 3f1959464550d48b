package handlers

import (
	"context"
	"fmt"
	"os"

	"trendwatch/internal/alerts"
	"trendwatch/internal/config"
	"trendwatch/internal/logger"
	"trendwatch/internal/store"
	"trendwatch/internal/trends"

	"github.com/spf13/cobra"
)

// NewTrendsCmd creates the trend analysis command
func NewTrendsCmd() *cobra.Command {
	trendsCmd := &cobra.Command{
		Use:   "trends",
		Short: "Compute trend scores, check alerts, and clean up old data",
		Long: `Score every entity's current mention count against the baseline period
using per-source z-scores, persist the ranked results, send alerts for
qualifying trends, and prune old trend rows.`,
		Run: func(cmd *cobra.Command, args []string) {
			opts := trends.Options{}
			opts.WindowHours, _ = cmd.Flags().GetInt("window")
			opts.BaselineHours, _ = cmd.Flags().GetInt("baseline")
			opts.MinCount, _ = cmd.Flags().GetInt("min-count")
			skipAlerts, _ := cmd.Flags().GetBool("skip-alerts")
			skipCleanup, _ := cmd.Flags().GetBool("skip-cleanup")
			cleanupDays, _ := cmd.Flags().GetInt("cleanup-days")

			partial, err := runTrends(opts, skipAlerts, skipCleanup, cleanupDays)
			if err != nil {
				logger.Error("Trend analysis failed", err)
				os.Exit(exitStorage)
			}
			if partial {
				os.Exit(exitPartial)
			}
		},
	}

	trendsCmd.Flags().Int("window", 0, "Current window in hours (default from config)")
	trendsCmd.Flags().Int("baseline", 0, "Baseline period in hours (default from config)")
	trendsCmd.Flags().Int("min-count", 0, "Minimum mentions to qualify (default from config)")
	trendsCmd.Flags().Bool("skip-alerts", false, "Skip alert checking")
	trendsCmd.Flags().Bool("skip-cleanup", false, "Skip old trend cleanup")
	trendsCmd.Flags().Int("cleanup-days", 0, "Days of trend data to keep (default from config)")
	return trendsCmd
}

func runTrends(opts trends.Options, skipAlerts, skipCleanup bool, cleanupDays int) (partial bool, err error) {
	cfg := config.Get()

	// Flags override config; zero means "use the configured value"
	if opts.MinCount == 0 {
		opts.MinCount = cfg.Trends.MinCount
	}
	if opts.WindowHours == 0 {
		opts.WindowHours = cfg.Trends.WindowHours
	}
	if opts.BaselineHours == 0 {
		opts.BaselineHours = cfg.Trends.BaselineHours
	}
	if cleanupDays == 0 {
		cleanupDays = cfg.Trends.RetentionDays
	}

	st, err := store.Open(cfg.Database.Path)
	if err != nil {
		return false, fmt.Errorf("failed to open store: %w", err)
	}
	defer st.Close()

	fmt.Printf("📈 Scoring trends (window %dh, baseline %dh, min count %d)...\n\n",
		opts.WindowHours, opts.BaselineHours, opts.MinCount)

	engine := trends.NewEngine(st, st, opts)
	ranked, err := engine.Run()
	if err != nil {
		return false, err
	}

	if len(ranked) == 0 {
		fmt.Println("No trending topics found")
		return false, nil
	}

	top := ranked
	if len(top) > 10 {
		top = top[:10]
	}
	fmt.Printf("Top %d trending topics:\n", len(top))
	for i, t := range top {
		fmt.Printf("%2d. %s (%s): %.2fσ, %d mentions, growth %.1f%%\n",
			i+1, t.Entity, t.SourceKind, t.TrendScore, t.CurrentCount, t.GrowthRate*100)
	}

	summary := trends.Summarize(ranked)
	fmt.Printf("\n📊 %d trends | avg %.2fσ | max %.2fσ | ≥2σ: %d | ≥3σ: %d\n",
		summary.Total, summary.AvgScore, summary.MaxScore, summary.HighTrends, summary.ViralTrends)

	if !skipAlerts {
		gate := alerts.NewGate(cfg.Alerts, st)
		result, err := gate.Process(context.Background(), ranked)
		if err != nil {
			return false, fmt.Errorf("alert processing failed: %w", err)
		}
		if result.Qualified > 0 {
			fmt.Printf("🚨 Alerts: %d qualified, %d sent, %d suppressed by cooldown\n",
				result.Qualified, result.Sent, result.Suppressed)
		}
		if result.Failures > 0 {
			fmt.Printf("⚠️  %d alert deliveries failed\n", result.Failures)
			partial = true
		}
	}

	if !skipCleanup {
		cleaned, err := st.Cleanup(cleanupDays)
		if err != nil {
			return partial, fmt.Errorf("cleanup failed: %w", err)
		}
		if cleaned.TrendsDeleted > 0 || cleaned.AlertsDeleted > 0 {
			fmt.Printf("🧹 Removed %d old trends, %d resolved alerts\n",
				cleaned.TrendsDeleted, cleaned.AlertsDeleted)
		}
	}

	return partial, nil
}
