package handlers

import (
	"fmt"
	"os"

	"trendwatch/internal/config"
	"trendwatch/internal/logger"
	"trendwatch/internal/store"

	"github.com/spf13/cobra"
)

// NewInitCmd creates the database initialization command
func NewInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the database schema",
		Long:  `Open (creating if needed) the SQLite database and ensure all tables and indexes exist. Safe to run repeatedly.`,
		Run: func(cmd *cobra.Command, args []string) {
			if err := runInit(); err != nil {
				logger.Error("Failed to initialize database", err)
				os.Exit(exitStorage)
			}
		},
	}
}

func runInit() error {
	cfg := config.Get()

	st, err := store.Open(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer st.Close()

	fmt.Printf("✅ Database ready at %s\n", st.Path())

	sourcesReady := 0
	if cfg.Reddit.Enabled() {
		fmt.Printf("📡 Reddit: %d subreddits configured\n", len(cfg.Reddit.Subreddits))
		sourcesReady++
	} else {
		fmt.Println("📡 Reddit: disabled (no credentials)")
	}
	fmt.Printf("📰 RSS: %d feeds configured\n", len(cfg.Feeds.URLs))
	if len(cfg.Feeds.URLs) > 0 {
		sourcesReady++
	}

	fmt.Printf("\nRun 'trendwatch ingest' to start collecting from %d source(s)\n", sourcesReady)
	return nil
}
