package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/driftwood-ai/convoy/orchestrator"
	"github.com/fatih/color"
)

var (
	iterationColor = color.New(color.FgCyan, color.Bold)
	toolColor      = color.New(color.FgYellow)
	successColor   = color.New(color.FgGreen)
	errorColor     = color.New(color.FgRed)
	dimColor       = color.New(color.Faint)
)

// renderStreamEvent prints execution progress to the terminal.
func renderStreamEvent(ctx context.Context, event *orchestrator.StreamEvent) error {
	switch event.Type {
	case orchestrator.StreamIterationStart:
		iterationColor.Printf("\n=== %s ===\n", event.Summary)
	case orchestrator.StreamModelRequest:
		dimColor.Printf("%s\n", event.Summary)
	case orchestrator.StreamToolRequests:
		toolColor.Printf("Tools requested: %s\n", strings.Join(event.ToolNames, ", "))
	case orchestrator.StreamToolExecution:
		toolColor.Printf("  -> %s\n", event.ToolName)
	case orchestrator.StreamToolResult:
		successColor.Printf("  ok %s\n", event.ToolName)
	case orchestrator.StreamToolError:
		errorColor.Printf("  !! %s\n", event.Summary)
	case orchestrator.StreamCompletion:
		successColor.Printf("\n%s\n", event.Summary)
	default:
		fmt.Printf("%s\n", event.Summary)
	}
	return nil
}
