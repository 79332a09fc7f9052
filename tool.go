package convoy

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/driftwood-ai/convoy/schema"
)

// ToolAnnotations describe optional behavioral properties of a tool.
type ToolAnnotations struct {
	Title           string `json:"title,omitempty"`
	ReadOnlyHint    bool   `json:"readOnlyHint,omitempty"`
	DestructiveHint bool   `json:"destructiveHint,omitempty"`
	IdempotentHint  bool   `json:"idempotentHint,omitempty"`
}

// ToolResultContent is one block of content in a tool result.
type ToolResultContent struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// ToolResult is the output from a tool call.
type ToolResult struct {
	Content []*ToolResultContent `json:"content"`
	IsError bool                 `json:"isError,omitempty"`
}

// Text returns the concatenated text content of the result.
func (r *ToolResult) Text() string {
	var text string
	for _, c := range r.Content {
		if c.Type == "text" {
			if text != "" {
				text += "\n"
			}
			text += c.Text
		}
	}
	return text
}

// NewToolResultText creates a new ToolResult with the given text content.
func NewToolResultText(text string) *ToolResult {
	return &ToolResult{
		Content: []*ToolResultContent{{Type: "text", Text: text}},
	}
}

// NewToolResultError creates a new ToolResult containing an error message.
func NewToolResultError(text string) *ToolResult {
	return &ToolResult{
		IsError: true,
		Content: []*ToolResultContent{{Type: "text", Text: text}},
	}
}

// Tool is an interface for a tool that can be called by an LLM.
type Tool interface {
	// Name of the tool.
	Name() string

	// Description of the tool.
	Description() string

	// Schema describes the parameters used to call the tool.
	Schema() schema.Schema

	// Annotations returns optional properties that describe tool behavior.
	Annotations() ToolAnnotations

	// Call is the function that is called to use the tool.
	Call(ctx context.Context, input any) (*ToolResult, error)
}

// TypedTool is a tool that can be called with a specific type of input.
type TypedTool[T any] interface {
	Name() string
	Description() string
	Schema() schema.Schema
	Annotations() ToolAnnotations
	Call(ctx context.Context, input T) (*ToolResult, error)
}

// ToolAdapter creates a new TypedToolAdapter for the given tool.
func ToolAdapter[T any](tool TypedTool[T]) *TypedToolAdapter[T] {
	return &TypedToolAdapter[T]{tool: tool}
}

// TypedToolAdapter allows a TypedTool to be used as a regular Tool. Call
// accepts `input any`, internally unmarshals it to the correct type, and
// passes it to the wrapped tool.
type TypedToolAdapter[T any] struct {
	tool TypedTool[T]
}

func (t *TypedToolAdapter[T]) Name() string {
	return t.tool.Name()
}

func (t *TypedToolAdapter[T]) Description() string {
	return t.tool.Description()
}

func (t *TypedToolAdapter[T]) Schema() schema.Schema {
	return t.tool.Schema()
}

func (t *TypedToolAdapter[T]) Annotations() ToolAnnotations {
	return t.tool.Annotations()
}

func (t *TypedToolAdapter[T]) Call(ctx context.Context, input any) (*ToolResult, error) {
	// Pass through if the input is already the correct type
	if converted, ok := input.(T); ok {
		return t.tool.Call(ctx, converted)
	}
	var data []byte
	var err error
	if raw, ok := input.(json.RawMessage); ok {
		data = raw
	} else if raw, ok := input.([]byte); ok {
		data = raw
	} else {
		data, err = json.Marshal(input)
		if err != nil {
			return NewToolResultError(fmt.Sprintf("invalid json for tool %s: %v", t.Name(), err)), nil
		}
	}
	var typedInput T
	if err := json.Unmarshal(data, &typedInput); err != nil {
		return NewToolResultError(fmt.Sprintf("invalid json for tool %s: %v", t.Name(), err)), nil
	}
	return t.tool.Call(ctx, typedInput)
}

// Unwrap returns the underlying TypedTool.
func (t *TypedToolAdapter[T]) Unwrap() TypedTool[T] {
	return t.tool
}
