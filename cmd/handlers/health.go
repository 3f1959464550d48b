package handlers

import (
	"fmt"
	"os"

	"trendwatch/internal/config"
	"trendwatch/internal/logger"
	"trendwatch/internal/store"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	errStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	labelStyle = lipgloss.NewStyle().Width(20)
)

// NewHealthCmd creates the database health check command
func NewHealthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check database integrity and structure",
		Long:  `Run an integrity check, verify all expected indexes exist, and report database size and archivable rows.`,
		Run: func(cmd *cobra.Command, args []string) {
			healthy, err := runHealth()
			if err != nil {
				logger.Error("Health check failed", err)
				os.Exit(exitStorage)
			}
			if !healthy {
				os.Exit(exitStorage)
			}
		},
	}
}

func runHealth() (healthy bool, err error) {
	cfg := config.Get()

	st, err := store.Open(cfg.Database.Path)
	if err != nil {
		return false, fmt.Errorf("failed to open store: %w", err)
	}
	defer st.Close()

	report, err := st.Health()
	if err != nil {
		return false, err
	}

	fmt.Println(titleStyle.Render("Database Health"))
	fmt.Println()

	status := okStyle.Render("✅ healthy")
	if !report.OK {
		status = errStyle.Render("❌ unhealthy")
	}
	fmt.Printf("%s %s\n", labelStyle.Render("Status:"), status)
	fmt.Printf("%s %s\n", labelStyle.Render("Integrity:"), report.IntegrityResult)
	fmt.Printf("%s %.2f MB\n", labelStyle.Render("Size:"), float64(report.SizeBytes)/1024/1024)

	if len(report.MissingIndexes) > 0 {
		fmt.Printf("%s %s\n", labelStyle.Render("Missing indexes:"),
			warnStyle.Render(fmt.Sprintf("%v", report.MissingIndexes)))
	} else {
		fmt.Printf("%s all present\n", labelStyle.Render("Indexes:"))
	}

	if report.ArchivablePosts > 0 {
		fmt.Printf("%s %s\n", labelStyle.Render("Archivable posts:"),
			warnStyle.Render(fmt.Sprintf("%d older than 90 days", report.ArchivablePosts)))
	}

	for _, issue := range report.Issues {
		fmt.Printf("  %s\n", errStyle.Render("• "+issue))
	}
	for _, rec := range report.Recommendations {
		fmt.Printf("  %s\n", warnStyle.Render("→ "+rec))
	}

	return report.OK, nil
}
