/*
Copyright © 2025 Your Name

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package handlers

import (
	"fmt"
	"os"

	"trendwatch/internal/config"
	"trendwatch/internal/logger"

	"github.com/spf13/cobra"
)

// Exit codes reported by every command.
const (
	exitOK      = 0
	exitConfig  = 1
	exitStorage = 2
	exitPartial = 3
)

var cfgFile string

// NewRootCmd creates the root command with all subcommands attached
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "trendwatch",
		Short: "Trendwatch detects trending topics across social and news sources.",
		Long: `Trendwatch ingests posts from discussion sites and RSS feeds,
extracts entities, and scores them statistically against a baseline
period to surface topics that are spiking right now.

Typical flow:

  trendwatch init      # create the database
  trendwatch ingest    # pull one batch from all sources
  trendwatch trends    # score, alert, and clean up
  trendwatch stats     # see what the store holds`,
	}

	// Initialize configuration
	cobra.OnInitialize(initConfig)

	// Add persistent flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.trendwatch.yaml)")

	// Add subcommands
	rootCmd.AddCommand(NewInitCmd())
	rootCmd.AddCommand(NewIngestCmd())
	rootCmd.AddCommand(NewTrendsCmd())
	rootCmd.AddCommand(NewCleanupCmd())
	rootCmd.AddCommand(NewHealthCmd())
	rootCmd.AddCommand(NewStatsCmd())

	return rootCmd
}

// Execute runs the root command
func Execute() {
	logger.Init()
	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitConfig)
	}
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	_, err := config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(exitConfig)
	}
}
