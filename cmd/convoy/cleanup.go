package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newCleanupCommand() *cobra.Command {
	var (
		maxAge   time.Duration
		maxCount int
	)

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete old executions from history",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger(cmd)
			tracker, store, err := newTracker(cmd, logger)
			if err != nil {
				return err
			}
			defer store.Close()

			deleted, remaining, err := tracker.CleanupWorkflows(cmd.Context(), maxAge, maxCount)
			if err != nil {
				return err
			}
			fmt.Printf("Deleted %d execution(s), %d remaining.\n", deleted, remaining)
			return nil
		},
	}

	cmd.Flags().DurationVar(&maxAge, "max-age", 30*24*time.Hour, "Delete executions older than this")
	cmd.Flags().IntVar(&maxCount, "max-count", 0, "Additionally keep at most this many executions (0 = unlimited)")
	return cmd
}
