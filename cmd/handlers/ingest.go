package handlers

import (
	"context"
	"fmt"
	"os"

	"trendwatch/internal/config"
	"trendwatch/internal/ingest"
	"trendwatch/internal/logger"
	"trendwatch/internal/sources"
	"trendwatch/internal/store"

	"github.com/spf13/cobra"
)

// NewIngestCmd creates the ingestion command
func NewIngestCmd() *cobra.Command {
	ingestCmd := &cobra.Command{
		Use:   "ingest",
		Short: "Run one ingestion cycle across all configured sources",
		Long: `Fetch the latest posts from every configured source (Reddit, RSS feeds),
normalize them, extract entities, and store them. Sources run in parallel;
a failing source never blocks the others.`,
		Run: func(cmd *cobra.Command, args []string) {
			limit, _ := cmd.Flags().GetInt("limit-per-source")
			partial, err := runIngest(limit)
			if err != nil {
				logger.Error("Ingestion failed", err)
				os.Exit(exitStorage)
			}
			if partial {
				os.Exit(exitPartial)
			}
		},
	}

	ingestCmd.Flags().Int("limit-per-source", 100, "Maximum items to fetch per subreddit/feed")
	return ingestCmd
}

func runIngest(limit int) (partial bool, err error) {
	cfg := config.Get()

	st, err := store.Open(cfg.Database.Path)
	if err != nil {
		return false, fmt.Errorf("failed to open store: %w", err)
	}
	defer st.Close()

	var adapters []sources.Adapter
	if cfg.Reddit.Enabled() {
		adapters = append(adapters, sources.NewRedditAdapter(cfg.Reddit))
	} else {
		logger.Info("Reddit adapter disabled: no credentials configured")
	}
	if len(cfg.Feeds.URLs) > 0 {
		adapters = append(adapters, sources.NewRSSAdapter(cfg.Feeds))
	}
	if len(adapters) == 0 {
		return false, fmt.Errorf("no sources configured")
	}

	fmt.Printf("🔄 Ingesting from %d source(s)...\n\n", len(adapters))

	cycle := ingest.NewCoordinator(st, adapters...).Run(context.Background(), limit)

	for _, sr := range cycle.Sources {
		fmt.Printf("📥 %s: fetched %d, ingested %d, skipped %d\n",
			sr.Source, sr.Fetched, sr.Ingested, sr.Skipped)
		for _, e := range sr.Errors {
			fmt.Printf("   ⚠️  %s\n", e)
		}
	}

	fmt.Printf("\n✅ Cycle complete: %d posts in %.1fs\n",
		cycle.TotalIngested(), cycle.Duration.Seconds())

	return cycle.HasErrors(), nil
}
