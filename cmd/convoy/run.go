package main

import (
	"fmt"
	"os"

	"github.com/driftwood-ai/convoy/config"
	"github.com/driftwood-ai/convoy/orchestrator"
	"github.com/driftwood-ai/convoy/providers/anthropic"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func newRunCommand() *cobra.Command {
	var (
		scenarioPath  string
		prompt        string
		dataPath      string
		modelOverride string
		maxIterations int
		quiet         bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a prompt through a scenario's tool-use conversation",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger(cmd)

			scenario, err := config.ParseFile(scenarioPath)
			if err != nil {
				return fmt.Errorf("failed to load scenario: %w", err)
			}
			toolset, err := config.BuildToolSet(scenario, config.DefaultHandlerRegistry())
			if err != nil {
				return fmt.Errorf("failed to build tool set: %w", err)
			}

			modelID := scenario.Model
			if modelOverride != "" {
				modelID = modelOverride
			}
			providerOpts := []anthropic.Option{}
			if modelID != "" {
				providerOpts = append(providerOpts, anthropic.WithModel(modelID))
			}
			model := anthropic.New(providerOpts...)

			limit := scenario.MaxIterations
			if maxIterations > 0 {
				limit = maxIterations
			}

			var contextPayload string
			if dataPath != "" {
				data, err := os.ReadFile(dataPath)
				if err != nil {
					return fmt.Errorf("failed to read data file: %w", err)
				}
				contextPayload = string(data)
			}

			tracker, store, err := newTracker(cmd, logger)
			if err != nil {
				return err
			}
			defer store.Close()

			engine, err := orchestrator.New(orchestrator.Options{
				Model:   model,
				Tracker: tracker,
				Logger:  logger,
			})
			if err != nil {
				return err
			}

			var onStream orchestrator.EventCallback
			if !quiet {
				onStream = renderStreamEvent
			}

			execution, err := engine.StartExecution(cmd.Context(), orchestrator.StartOptions{
				ModelID:        modelID,
				SystemPrompt:   scenario.SystemPrompt,
				UserPrompt:     prompt,
				ContextPayload: contextPayload,
				ToolSet:        toolset,
				MaxIterations:  limit,
				OnStream:       onStream,
			})
			if err != nil {
				return err
			}

			snapshot, statusErr := engine.GetStatus(execution.ID())
			if statusErr != nil {
				return statusErr
			}
			fmt.Println()
			color.New(color.Bold).Printf("Execution %s (%s, %d iterations, %d tool calls)\n",
				snapshot.ExecutionID, snapshot.Status,
				snapshot.CurrentIteration, snapshot.TotalToolCalls)
			if response := execution.FinalResponse(); response != "" {
				fmt.Println()
				fmt.Println(response)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&scenarioPath, "scenario", "c", "", "Path to the scenario file (YAML or JSON)")
	cmd.Flags().StringVarP(&prompt, "prompt", "p", "", "User prompt to run")
	cmd.Flags().StringVar(&dataPath, "data", "", "Path to a file with context data to analyze")
	cmd.Flags().StringVarP(&modelOverride, "model", "m", "", "Model identifier override")
	cmd.Flags().IntVar(&maxIterations, "max-iterations", 0, "Iteration limit override")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Suppress streaming output")
	cmd.MarkFlagRequired("scenario")
	cmd.MarkFlagRequired("prompt")
	return cmd
}
