package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/driftwood-ai/convoy/slogger"
	"github.com/driftwood-ai/convoy/workflow"
	"github.com/spf13/cobra"
)

func newLogger(cmd *cobra.Command) slogger.Logger {
	level, _ := cmd.Flags().GetString("log-level")
	return slogger.New(slogger.LevelFromString(level))
}

func openStore(cmd *cobra.Command) (*workflow.SQLiteStore, error) {
	dbPath, _ := cmd.Flags().GetString("db")
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}
	return workflow.NewSQLiteStore(dbPath, workflow.DefaultSQLiteStoreOptions())
}

func newTracker(cmd *cobra.Command, logger slogger.Logger) (*workflow.Tracker, *workflow.SQLiteStore, error) {
	store, err := openStore(cmd)
	if err != nil {
		return nil, nil, err
	}
	tracker, err := workflow.NewTracker(workflow.TrackerOptions{
		Store:  store,
		Logger: logger,
	})
	if err != nil {
		store.Close()
		return nil, nil, err
	}
	return tracker, store, nil
}
