package handlers

import (
	"fmt"
	"os"

	"trendwatch/internal/config"
	"trendwatch/internal/logger"
	"trendwatch/internal/store"

	"github.com/spf13/cobra"
)

// NewCleanupCmd creates the data retention command
func NewCleanupCmd() *cobra.Command {
	cleanupCmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Remove old trend rows and resolved alerts",
		Long: `Delete trend records older than the retention period and resolved
alerts older than twice that. Posts are kept; run with --vacuum to
reclaim the freed space.`,
		Run: func(cmd *cobra.Command, args []string) {
			days, _ := cmd.Flags().GetInt("days")
			vacuum, _ := cmd.Flags().GetBool("vacuum")
			if err := runCleanup(days, vacuum); err != nil {
				logger.Error("Cleanup failed", err)
				os.Exit(exitStorage)
			}
		},
	}

	cleanupCmd.Flags().Int("days", 0, "Days of trend data to keep (default from config)")
	cleanupCmd.Flags().Bool("vacuum", false, "Reclaim free space after deleting")
	return cleanupCmd
}

func runCleanup(days int, vacuum bool) error {
	cfg := config.Get()
	if days == 0 {
		days = cfg.Trends.RetentionDays
	}

	st, err := store.Open(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer st.Close()

	result, err := st.Cleanup(days)
	if err != nil {
		return err
	}

	fmt.Printf("🧹 Removed %d trend rows older than %d days\n", result.TrendsDeleted, days)
	fmt.Printf("🧹 Removed %d resolved alerts older than %d days\n", result.AlertsDeleted, days*2)

	if vacuum {
		if err := st.Vacuum(); err != nil {
			return err
		}
		fmt.Println("💾 Database vacuumed")
	}
	return nil
}
