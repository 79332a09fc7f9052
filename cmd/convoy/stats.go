package main

import (
	"fmt"
	"sort"
	"time"

	"github.com/driftwood-ai/convoy/workflow"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func newStatsCommand() *cobra.Command {
	var (
		status  string
		modelID string
	)

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Summarize execution history",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger(cmd)
			tracker, store, err := newTracker(cmd, logger)
			if err != nil {
				return err
			}
			defer store.Close()

			stats, err := tracker.GetWorkflowStatistics(cmd.Context(), workflow.Filter{
				Status:  status,
				ModelID: modelID,
			})
			if err != nil {
				return err
			}

			color.New(color.Bold).Printf("Executions: %d\n", stats.TotalExecutions)
			if stats.TotalExecutions == 0 {
				return nil
			}
			fmt.Printf("Average duration:   %s\n", stats.AverageDuration.Round(time.Millisecond))
			fmt.Printf("Average iterations: %.1f\n", stats.AverageIterations)

			fmt.Println("\nBy status:")
			for _, name := range sortedKeys(stats.ByStatus) {
				statusColor(name).Printf("  %-10s", name)
				fmt.Printf(" %d\n", stats.ByStatus[name])
			}
			if len(stats.ByModel) > 0 {
				fmt.Println("\nBy model:")
				for _, name := range sortedKeys(stats.ByModel) {
					fmt.Printf("  %-30s %d\n", name, stats.ByModel[name])
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "Filter by status")
	cmd.Flags().StringVar(&modelID, "model", "", "Filter by model identifier")
	return cmd
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
