package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "convoy",
		Short: "Tool-use conversation orchestrator",
		Long:  "Convoy runs prompts against an LLM endpoint, executing the tools the model requests and recording every step for auditability.",
	}

	rootCmd.PersistentFlags().String("db", defaultDBPath(), "Path to the workflow history database")
	rootCmd.PersistentFlags().String("log-level", "warn", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(newRunCommand())
	rootCmd.AddCommand(newHistoryCommand())
	rootCmd.AddCommand(newStatsCommand())
	rootCmd.AddCommand(newCleanupCommand())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func defaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "convoy.db"
	}
	return home + "/.convoy/workflows.db"
}
