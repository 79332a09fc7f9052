package llm

import (
	"encoding/json"
	"strings"
)

// Role indicates the speaker of a message. Either "user" or "assistant";
// system instructions are carried separately.
type Role string

const (
	User      Role = "user"
	Assistant Role = "assistant"
)

func (r Role) String() string {
	return string(r)
}

// Usage contains token usage information for a model response.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Add accumulates another usage into this one.
func (u *Usage) Add(other *Usage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
}

// ContentType indicates the type of a content block in a message.
type ContentType string

const (
	ContentTypeText       ContentType = "text"
	ContentTypeToolUse    ContentType = "tool_use"
	ContentTypeToolResult ContentType = "tool_result"
)

// Content is a single block of content in a message. A message may contain
// multiple content blocks.
type Content struct {
	Type ContentType `json:"type"`

	// Text content
	Text string `json:"text,omitempty"`

	// ID of a tool_use block
	ID string `json:"id,omitempty"`

	// Name of the tool in a tool_use block
	Name string `json:"name,omitempty"`

	// Input of a tool_use block
	Input json.RawMessage `json:"input,omitempty"`

	// ToolUseID correlates a tool_result block to its tool_use block
	ToolUseID string `json:"tool_use_id,omitempty"`

	// IsError marks a tool_result block carrying a failure
	IsError bool `json:"is_error,omitempty"`
}

// Message containing content passed to or from a model.
type Message struct {
	Role    Role       `json:"role"`
	Content []*Content `json:"content"`
}

// Text returns the last text content in the message.
func (m *Message) Text() string {
	for i := len(m.Content) - 1; i >= 0; i-- {
		if m.Content[i].Type == ContentTypeText {
			return m.Content[i].Text
		}
	}
	return ""
}

// CompleteText returns a concatenated text from all message content. Multiple
// text contents are separated by two newlines.
func (m *Message) CompleteText() string {
	var sb strings.Builder
	for _, content := range m.Content {
		if content.Type == ContentTypeText {
			if sb.Len() > 0 {
				sb.WriteString("\n\n")
			}
			sb.WriteString(content.Text)
		}
	}
	return sb.String()
}

// ToolUses returns all tool_use content blocks in the message, in order.
func (m *Message) ToolUses() []*Content {
	var uses []*Content
	for _, content := range m.Content {
		if content.Type == ContentTypeToolUse {
			uses = append(uses, content)
		}
	}
	return uses
}

// NewMessage creates a new message with the given role and content blocks.
func NewMessage(role Role, content []*Content) *Message {
	return &Message{Role: role, Content: content}
}

// NewUserMessage creates a new user message with a single text content block.
func NewUserMessage(text string) *Message {
	return &Message{
		Role:    User,
		Content: []*Content{{Type: ContentTypeText, Text: text}},
	}
}

// NewAssistantMessage creates a new assistant message with a single text
// content block.
func NewAssistantMessage(text string) *Message {
	return &Message{
		Role:    Assistant,
		Content: []*Content{{Type: ContentTypeText, Text: text}},
	}
}

// ToolOutput carries the result of one tool call back to the model.
type ToolOutput struct {
	ID      string
	Name    string
	Output  string
	IsError bool
}

// NewToolOutputMessage creates a user message containing tool_result blocks,
// one per output, in the given order.
func NewToolOutputMessage(outputs []*ToolOutput) *Message {
	content := make([]*Content, len(outputs))
	for i, output := range outputs {
		content[i] = &Content{
			Type:      ContentTypeToolResult,
			ToolUseID: output.ID,
			Name:      output.Name,
			Text:      output.Output,
			IsError:   output.IsError,
		}
	}
	return &Message{Role: User, Content: content}
}
