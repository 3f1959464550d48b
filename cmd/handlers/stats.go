package handlers

import (
	"fmt"
	"os"
	"sort"
	"time"

	"trendwatch/internal/config"
	"trendwatch/internal/core"
	"trendwatch/internal/logger"
	"trendwatch/internal/store"

	"github.com/spf13/cobra"
)

// NewStatsCmd creates the store statistics command
func NewStatsCmd() *cobra.Command {
	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Show store statistics and current top trends",
		Long:  `Display post, trend, and alert counts, storage usage, and the highest-scoring trends of the last 24 hours.`,
		Run: func(cmd *cobra.Command, args []string) {
			limit, _ := cmd.Flags().GetInt("top")
			if err := runStats(limit); err != nil {
				logger.Error("Failed to get stats", err)
				os.Exit(exitStorage)
			}
		},
	}

	statsCmd.Flags().Int("top", 10, "Number of top trends to display")
	return statsCmd
}

func runStats(topLimit int) error {
	cfg := config.Get()

	st, err := store.Open(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer st.Close()

	stats, err := st.GetStats()
	if err != nil {
		return err
	}

	fmt.Println(titleStyle.Render("Store Statistics"))
	fmt.Println()
	fmt.Printf("%s %d (%d in last 24h)\n", labelStyle.Render("Posts:"), stats.TotalPosts, stats.PostsLast24h)

	kinds := make([]string, 0, len(stats.PostsBySource))
	for kind := range stats.PostsBySource {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	for _, kind := range kinds {
		fmt.Printf("%s %d\n", labelStyle.Render("  "+kind+":"), stats.PostsBySource[kind])
	}

	fmt.Printf("%s %d (%d in last 24h, max score %.2fσ)\n",
		labelStyle.Render("Trends:"), stats.TotalTrends, stats.TrendsLast24h, stats.MaxTrendScore)
	fmt.Printf("%s %d\n", labelStyle.Render("Active alerts:"), stats.ActiveAlerts)
	fmt.Printf("%s %.2f MB\n", labelStyle.Render("Database size:"), float64(stats.SizeBytes)/1024/1024)

	top, err := st.TopTrends(core.SourceKind(""), 24*time.Hour, topLimit)
	if err != nil {
		return err
	}
	if len(top) > 0 {
		fmt.Println()
		fmt.Println(titleStyle.Render("Top Trends (24h)"))
		for i, t := range top {
			fmt.Printf("%2d. %s (%s): %.2fσ, %d mentions\n",
				i+1, t.Entity, t.SourceKind, t.TrendScore, t.CurrentCount)
		}
	}

	return nil
}
