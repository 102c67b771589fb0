package wire

// SSE event name constants for the Anthropic Messages streaming protocol.
const (
	EventMessageStart      = "message_start"
	EventContentBlockStart = "content_block_start"
	EventContentBlockDelta = "content_block_delta"
	EventContentBlockStop  = "content_block_stop"
	EventMessageDelta      = "message_delta"
	EventMessageStop       = "message_stop"
)

// MessageStart is the payload for the message_start event.
type MessageStart struct {
	Type    string         `json:"type"`
	Message MessageStartBody `json:"message"`
}

// MessageStartBody is the nested "message" object of message_start.
type MessageStartBody struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Role    Role   `json:"role"`
	Model   string `json:"model"`
	Content []any  `json:"content"`
	Usage   Usage  `json:"usage"`
}

// Usage reports token accounting, mirrored in message_start and message_delta.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// ContentBlockStart is emitted when a new content block (text or tool_use) opens.
type ContentBlockStart struct {
	Type         string            `json:"type"`
	Index        int               `json:"index"`
	ContentBlock ContentBlockStartBody `json:"content_block"`
}

// ContentBlockStartBody discriminates between a text block and a tool_use block.
type ContentBlockStartBody struct {
	Type  string `json:"type"`
	Text  string `json:"text,omitempty"`
	ID    string `json:"id,omitempty"`
	Name  string `json:"name,omitempty"`
	Input any    `json:"input,omitempty"`
}

// ContentBlockDelta carries an incremental fragment for an open content block.
type ContentBlockDelta struct {
	Type  string     `json:"type"`
	Index int        `json:"index"`
	Delta DeltaBody  `json:"delta"`
}

// DeltaBody is the nested "delta" object: either a text_delta or input_json_delta.
type DeltaBody struct {
	Type        string `json:"type"`
	Text        string `json:"text,omitempty"`
	PartialJSON string `json:"partial_json,omitempty"`
}

// ContentBlockStop closes a content block by index.
type ContentBlockStop struct {
	Type  string `json:"type"`
	Index int    `json:"index"`
}

// MessageDelta carries the stop reason and final usage before message_stop.
type MessageDelta struct {
	Type  string           `json:"type"`
	Delta MessageDeltaBody `json:"delta"`
	Usage Usage            `json:"usage"`
}

// MessageDeltaBody is the nested "delta" object of message_delta.
type MessageDeltaBody struct {
	StopReason string `json:"stop_reason"`
}

// MessageStop is the terminal event of a successful turn.
type MessageStop struct {
	Type string `json:"type"`
}

// ErrorEnvelope is the Anthropic-format error body used for both HTTP-level
// 400s and in-stream error frames.
type ErrorEnvelope struct {
	Type  string      `json:"type"`
	Error ErrorDetail `json:"error"`
}

// ErrorDetail carries the error kind and message.
type ErrorDetail struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// NewInvalidRequestError builds the 400 envelope for a malformed request body
// or unknown model, per spec §7.
func NewInvalidRequestError(message string) ErrorEnvelope {
	return ErrorEnvelope{
		Type: "error",
		Error: ErrorDetail{
			Type:    "invalid_request_error",
			Message: message,
		},
	}
}

// Stop reason values used in MessageDeltaBody.StopReason.
const (
	StopReasonEndTurn      = "end_turn"
	StopReasonToolUse      = "tool_use"
	StopReasonErrorRuntime = "error"
)
