package llm

import "encoding/json"

// Response represents a model response.
type Response struct {
	id         string
	model      string
	stopReason string
	message    *Message
	usage      Usage
	toolCalls  []*ToolCall
}

// ID returns the unique identifier of the response.
func (r *Response) ID() string { return r.id }

// Model returns the model name that generated the response.
func (r *Response) Model() string { return r.model }

// StopReason returns the model's declared reason for ending the turn.
func (r *Response) StopReason() string { return r.stopReason }

// Message returns the message content.
func (r *Response) Message() *Message { return r.message }

// Usage returns the token usage information.
func (r *Response) Usage() Usage { return r.usage }

// ToolCalls returns the tool calls made by the model.
func (r *Response) ToolCalls() []*ToolCall { return r.toolCalls }

// ToolCall is a tool invocation requested by the model.
type ToolCall struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Input json.RawMessage `json:"input"`
}

// ResponseOptions contains the configuration for creating a new Response.
type ResponseOptions struct {
	ID         string
	Model      string
	StopReason string
	Message    *Message
	Usage      Usage
}

// NewResponse creates a new Response. Tool calls are extracted from the
// message's tool_use content blocks.
func NewResponse(opts ResponseOptions) *Response {
	var toolCalls []*ToolCall
	if opts.Message != nil {
		for _, content := range opts.Message.Content {
			if content.Type == ContentTypeToolUse {
				toolCalls = append(toolCalls, &ToolCall{
					ID:    content.ID, // e.g. "toolu_01A09q90qw90lq917835lq9"
					Name:  content.Name,
					Input: content.Input,
				})
			}
		}
	}
	return &Response{
		id:         opts.ID,
		model:      opts.Model,
		stopReason: opts.StopReason,
		message:    opts.Message,
		usage:      opts.Usage,
		toolCalls:  toolCalls,
	}
}
