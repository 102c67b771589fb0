package wire_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"xcodebridge/internal/wire"
)

func TestMessageUnmarshalPlainTextContent(t *testing.T) {
	var m wire.Message
	require.NoError(t, json.Unmarshal([]byte(`{"role":"user","content":"hello there"}`), &m))
	require.True(t, m.IsPlainText())
	require.Equal(t, "hello there", m.Text)
	require.Equal(t, wire.RoleUser, m.Role)
}

func TestMessageUnmarshalBlockArrayContent(t *testing.T) {
	var m wire.Message
	raw := `{"role":"assistant","content":[{"type":"text","text":"thinking"},{"type":"tool_use","id":"call-1","name":"search_files","input":{"query":"foo"}}]}`
	require.NoError(t, json.Unmarshal([]byte(raw), &m))
	require.False(t, m.IsPlainText())
	require.Len(t, m.Blocks, 2)
	require.Equal(t, wire.BlockTypeText, m.Blocks[0].Type)
	require.Equal(t, "thinking", m.Blocks[0].Text)
	require.Equal(t, wire.BlockTypeToolUse, m.Blocks[1].Type)
	require.Equal(t, "call-1", m.Blocks[1].ToolUseID)
	require.Equal(t, "search_files", m.Blocks[1].ToolName)
}

func TestMessageRoundTripMarshalUnmarshalBlocks(t *testing.T) {
	raw := `{"role":"user","content":[{"type":"tool_result","tool_use_id":"call-1","content":"done","is_error":true}]}`
	var m wire.Message
	require.NoError(t, json.Unmarshal([]byte(raw), &m))

	data, err := json.Marshal(m)
	require.NoError(t, err)

	var roundTripped wire.Message
	require.NoError(t, json.Unmarshal(data, &roundTripped))
	require.Equal(t, m.Blocks, roundTripped.Blocks)
}

func TestMessageRoundTripMarshalUnmarshalPlainText(t *testing.T) {
	var m wire.Message
	require.NoError(t, json.Unmarshal([]byte(`{"role":"user","content":"plain"}`), &m))

	data, err := json.Marshal(m)
	require.NoError(t, err)

	var roundTripped wire.Message
	require.NoError(t, json.Unmarshal(data, &roundTripped))
	require.True(t, roundTripped.IsPlainText())
	require.Equal(t, "plain", roundTripped.Text)
}

func TestToolResultIDsCollectsOnlyToolResultBlocks(t *testing.T) {
	raw := `{"role":"user","content":[{"type":"text","text":"note"},{"type":"tool_result","tool_use_id":"call-1","content":"a"},{"type":"tool_result","tool_use_id":"call-2","content":"b"}]}`
	var m wire.Message
	require.NoError(t, json.Unmarshal([]byte(raw), &m))
	require.Equal(t, []string{"call-1", "call-2"}, m.ToolResultIDs())
}

func TestToolResultIDsEmptyWhenNoToolResultBlocks(t *testing.T) {
	var m wire.Message
	require.NoError(t, json.Unmarshal([]byte(`{"role":"assistant","content":[{"type":"text","text":"hi"}]}`), &m))
	require.Empty(t, m.ToolResultIDs())
}

func TestResolveModelKnownAndUnknown(t *testing.T) {
	info, ok := wire.ResolveModel("claude-opus-4")
	require.True(t, ok)
	require.True(t, info.SupportsReasoningEffort)

	_, ok = wire.ResolveModel("not-a-real-model")
	require.False(t, ok)
}

func TestNewInvalidRequestErrorShape(t *testing.T) {
	env := wire.NewInvalidRequestError("bad request")
	require.Equal(t, "error", env.Type)
	require.Equal(t, "invalid_request_error", env.Error.Type)
	require.Equal(t, "bad request", env.Error.Message)
}
