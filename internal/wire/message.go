// Package wire defines the Anthropic Messages API wire types exchanged with
// Xcode: request bodies, message content unions, and the SSE event shapes
// streamed back. The codec is hand-rolled against the data model rather than
// bound to the anthropic-sdk-go request/response structs, since this proxy
// never calls the Anthropic API directly — it only speaks Anthropic's wire
// shape to Xcode while driving an unrelated internal session library.
package wire

import (
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
)

// Model is the canonical model identifier type threaded through the session
// config builder and the messages handler's model resolution, shared with the
// real SDK so a validated model string carries the same type ecosystem-wide.
type Model = anthropic.Model

// Role identifies the speaker for a Message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
)

// Request is the inbound POST /v1/messages body.
type Request struct {
	Model     string     `json:"model"`
	MaxTokens int        `json:"max_tokens"`
	System    string     `json:"system,omitempty"`
	Messages  []Message  `json:"messages"`
	Tools     []ToolDef  `json:"tools,omitempty"`
	Stream    bool       `json:"stream,omitempty"`
}

// ToolDef mirrors spec §3's tool definition shape.
type ToolDef struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"input_schema"`
}

// Message is one entry in the Messages request. Content is a tagged union:
// either a plain string or an ordered list of Blocks, modeled here as a sum
// type per spec §9 ("Dynamic union content → tagged variant").
type Message struct {
	Role    Role
	Text    string  // set when the wire content was a plain string
	Blocks  []Block // set when the wire content was an array of blocks
	isText  bool
}

// IsPlainText reports whether this message's content was a bare string rather
// than an array of content blocks (used by findByContinuation step 2).
func (m Message) IsPlainText() bool { return m.isText }

// Block is one content block: exactly one of the three field groups below
// (text, tool_use, tool_result) is meaningful, selected by Type.
type Block struct {
	Type string

	// Text block.
	Text string

	// ToolUse block (assistant declares a tool invocation).
	ToolUseID   string
	ToolName    string
	ToolInput   json.RawMessage

	// ToolResult block (user delivers a tool result).
	ToolResultForID string
	ToolResultBody  any
	ToolResultIsErr bool
}

const (
	BlockTypeText       = "text"
	BlockTypeToolUse    = "tool_use"
	BlockTypeToolResult = "tool_result"
)

type messageWire struct {
	Role    Role            `json:"role"`
	Content json.RawMessage `json:"content"`
}

type blockWire struct {
	Type      string          `json:"type"`
	Text      string          `json:"text,omitempty"`
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Input     json.RawMessage `json:"input,omitempty"`
	ToolUseID string          `json:"tool_use_id,omitempty"`
	Content   any             `json:"content,omitempty"`
	IsError   bool            `json:"is_error,omitempty"`
}

// UnmarshalJSON discriminates Message.Content between a raw string and an
// array of content blocks.
func (m *Message) UnmarshalJSON(data []byte) error {
	var w messageWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	m.Role = w.Role
	if len(w.Content) == 0 {
		return nil
	}
	switch w.Content[0] {
	case '"':
		var s string
		if err := json.Unmarshal(w.Content, &s); err != nil {
			return fmt.Errorf("message content string: %w", err)
		}
		m.Text = s
		m.isText = true
		return nil
	case '[':
		var raws []blockWire
		if err := json.Unmarshal(w.Content, &raws); err != nil {
			return fmt.Errorf("message content blocks: %w", err)
		}
		m.Blocks = make([]Block, len(raws))
		for i, b := range raws {
			m.Blocks[i] = Block{
				Type:            b.Type,
				Text:            b.Text,
				ToolUseID:       b.ID,
				ToolName:        b.Name,
				ToolInput:       b.Input,
				ToolResultForID: b.ToolUseID,
				ToolResultBody:  b.Content,
				ToolResultIsErr: b.IsError,
			}
		}
		return nil
	default:
		return fmt.Errorf("message content: unexpected leading byte %q", w.Content[0])
	}
}

// MarshalJSON re-encodes a Message back to its wire shape: string content for
// a plain-text message, a block array otherwise.
func (m Message) MarshalJSON() ([]byte, error) {
	w := messageWire{Role: m.Role}
	switch {
	case m.isText:
		raw, err := json.Marshal(m.Text)
		if err != nil {
			return nil, err
		}
		w.Content = raw
	default:
		blocks := make([]blockWire, len(m.Blocks))
		for i, b := range m.Blocks {
			blocks[i] = blockWire{
				Type:      b.Type,
				Text:      b.Text,
				ID:        b.ToolUseID,
				Name:      b.ToolName,
				Input:     b.ToolInput,
				ToolUseID: b.ToolResultForID,
				Content:   b.ToolResultBody,
				IsError:   b.ToolResultIsErr,
			}
		}
		raw, err := json.Marshal(blocks)
		if err != nil {
			return nil, err
		}
		w.Content = raw
	}
	return json.Marshal(w)
}

// ToolResultIDs collects tool_use_id values from ToolResult blocks in the
// message, in block order.
func (m Message) ToolResultIDs() []string {
	var ids []string
	for _, b := range m.Blocks {
		if b.Type == BlockTypeToolResult {
			ids = append(ids, b.ToolResultForID)
		}
	}
	return ids
}
