package main

import (
	"fmt"
	"time"

	"github.com/driftwood-ai/convoy/workflow"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func newHistoryCommand() *cobra.Command {
	var (
		status  string
		modelID string
		limit   int
		offset  int
		showID  string
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Browse finished executions",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger(cmd)
			tracker, store, err := newTracker(cmd, logger)
			if err != nil {
				return err
			}
			defer store.Close()

			if showID != "" {
				record, err := tracker.LoadWorkflow(cmd.Context(), showID)
				if err != nil {
					return err
				}
				printRecord(record)
				return nil
			}

			records, err := tracker.GetWorkflowHistory(cmd.Context(), workflow.Filter{
				Status:  status,
				ModelID: modelID,
				Limit:   limit,
				Offset:  offset,
			})
			if err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Println("No executions found.")
				return nil
			}
			for _, record := range records {
				printRecordLine(record)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "Filter by status (completed, error, cancelled)")
	cmd.Flags().StringVar(&modelID, "model", "", "Filter by model identifier")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of executions to list")
	cmd.Flags().IntVar(&offset, "offset", 0, "Number of executions to skip")
	cmd.Flags().StringVar(&showID, "id", "", "Show the full step log of one execution")
	return cmd
}

func statusColor(status string) *color.Color {
	switch status {
	case workflow.StatusCompleted:
		return color.New(color.FgGreen)
	case workflow.StatusError:
		return color.New(color.FgRed)
	case workflow.StatusCancelled:
		return color.New(color.FgYellow)
	default:
		return color.New(color.Faint)
	}
}

func printRecordLine(record *workflow.Record) {
	statusColor(record.Status).Printf("%-10s", record.Status)
	fmt.Printf(" %s  %s  %s  %d iterations, %d tool calls\n",
		record.ExecutionID,
		record.StartTime.Format(time.RFC3339),
		record.Duration.Round(time.Millisecond),
		record.Iterations,
		record.TotalToolCalls)
}

func printRecord(record *workflow.Record) {
	printRecordLine(record)
	if record.Error != "" {
		color.New(color.FgRed).Printf("error: %s\n", record.Error)
	}
	for _, step := range record.Steps {
		fmt.Printf("  [%s] iter=%d %-24s %s\n",
			step.Timestamp.Format("15:04:05.000"),
			step.Iteration,
			step.Type,
			step.Status)
	}
	if record.FinalResponse != "" {
		fmt.Println()
		fmt.Println(record.FinalResponse)
	}
}
