package anthropic

import (
	"encoding/json"
	"fmt"

	"github.com/driftwood-ai/convoy/llm"
	"github.com/driftwood-ai/convoy/schema"
)

// Request is the Messages API request body.
type Request struct {
	Model       string      `json:"model"`
	MaxTokens   *int        `json:"max_tokens"`
	System      string      `json:"system,omitempty"`
	Messages    []*Message  `json:"messages"`
	Temperature *float64    `json:"temperature,omitempty"`
	Tools       []*ToolSpec `json:"tools,omitempty"`
}

// Message is one conversation turn on the wire.
type Message struct {
	Role    string          `json:"role"`
	Content []*ContentBlock `json:"content"`
}

// ContentBlock is one content block on the wire. The Type field selects
// which of the remaining fields apply.
type ContentBlock struct {
	Type string `json:"type"`

	// text
	Text string `json:"text,omitempty"`

	// tool_use
	ID    string          `json:"id,omitempty"`
	Name  string          `json:"name,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`

	// tool_result
	ToolUseID string `json:"tool_use_id,omitempty"`
	Content   string `json:"content,omitempty"`
	IsError   bool   `json:"is_error,omitempty"`
}

// ToolSpec describes one callable tool to the API.
type ToolSpec struct {
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	InputSchema schema.Schema `json:"input_schema"`
}

// Response is the Messages API response body.
type Response struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	Role       string          `json:"role"`
	Model      string          `json:"model"`
	StopReason string          `json:"stop_reason"`
	Content    []*ContentBlock `json:"content"`
	Usage      Usage           `json:"usage"`
}

// Usage is the token accounting returned by the API.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

func convertMessages(messages []*llm.Message) ([]*Message, error) {
	if len(messages) == 0 {
		return nil, fmt.Errorf("no messages provided")
	}
	converted := make([]*Message, len(messages))
	for i, message := range messages {
		if len(message.Content) == 0 {
			return nil, fmt.Errorf("empty message detected (index %d)", i)
		}
		blocks := make([]*ContentBlock, 0, len(message.Content))
		for _, content := range message.Content {
			switch content.Type {
			case llm.ContentTypeText:
				blocks = append(blocks, &ContentBlock{
					Type: "text",
					Text: content.Text,
				})
			case llm.ContentTypeToolUse:
				blocks = append(blocks, &ContentBlock{
					Type:  "tool_use",
					ID:    content.ID,
					Name:  content.Name,
					Input: content.Input,
				})
			case llm.ContentTypeToolResult:
				// The API rejects a "name" field on tool results
				blocks = append(blocks, &ContentBlock{
					Type:      "tool_result",
					ToolUseID: content.ToolUseID,
					Content:   content.Text,
					IsError:   content.IsError,
				})
			default:
				return nil, fmt.Errorf("unsupported content type %q (index %d)", content.Type, i)
			}
		}
		converted[i] = &Message{
			Role:    message.Role.String(),
			Content: blocks,
		}
	}
	return converted, nil
}

func convertResponse(response *Response) (*llm.Response, error) {
	if len(response.Content) == 0 {
		return nil, fmt.Errorf("empty response from anthropic api")
	}
	content := make([]*llm.Content, 0, len(response.Content))
	for _, block := range response.Content {
		switch block.Type {
		case "text":
			content = append(content, &llm.Content{
				Type: llm.ContentTypeText,
				Text: block.Text,
			})
		case "tool_use":
			content = append(content, &llm.Content{
				Type:  llm.ContentTypeToolUse,
				ID:    block.ID,
				Name:  block.Name,
				Input: block.Input,
			})
		default:
			return nil, fmt.Errorf("unsupported content type %q in response", block.Type)
		}
	}
	return llm.NewResponse(llm.ResponseOptions{
		ID:         response.ID,
		Model:      response.Model,
		StopReason: response.StopReason,
		Message:    llm.NewMessage(llm.Assistant, content),
		Usage: llm.Usage{
			InputTokens:  response.Usage.InputTokens,
			OutputTokens: response.Usage.OutputTokens,
		},
	}), nil
}
