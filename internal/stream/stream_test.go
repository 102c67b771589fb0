package stream_test

import (
	"bufio"
	"context"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"xcodebridge/internal/convstate"
	"xcodebridge/internal/stream"
	"xcodebridge/internal/telemetry"
)

func collectEvents(t *testing.T, body string) []string {
	t.Helper()
	var names []string
	scanner := bufio.NewScanner(strings.NewReader(body))
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "event: ") {
			names = append(names, strings.TrimPrefix(line, "event: "))
		}
	}
	return names
}

func TestWriterEmitsTextDeltaThenIdleTerminatesTurn(t *testing.T) {
	rec := httptest.NewRecorder()
	state := convstate.New()

	w, err := stream.NewWriter(rec, state, "claude-opus-4", telemetry.NewNoopTracer(), telemetry.NewNoopMetrics(), "msg_1")
	require.NoError(t, err)

	ch := make(chan stream.Event, 2)
	ch <- stream.Event{Kind: stream.EventTextDelta, Text: "hi"}
	ch <- stream.Event{Kind: stream.EventIdle, StopReason: "end_turn"}
	close(ch)

	require.NoError(t, w.Run(context.Background(), ch))

	events := collectEvents(t, rec.Body.String())
	require.Contains(t, events, "message_start")
	require.Contains(t, events, "content_block_start")
	require.Contains(t, events, "content_block_delta")
	require.Contains(t, events, "content_block_stop")
	require.Contains(t, events, "message_delta")
	require.Contains(t, events, "message_stop")
	require.False(t, state.SessionActive())
}

// startProbe records, at the moment a content_block_start frame is written,
// whether call-1 was already registered as expected on the state.
type startProbe struct {
	*httptest.ResponseRecorder
	state           *convstate.State
	containsAtStart bool
	expectedAtStart bool
}

func (p *startProbe) Write(b []byte) (int, error) {
	if strings.HasPrefix(string(b), "event: content_block_start") {
		p.containsAtStart = p.state.ContainsID("call-1")
		p.expectedAtStart = p.state.HasExpectedTool("search_files")
	}
	return p.ResponseRecorder.Write(b)
}

func TestWriterRegistersExpectedBeforeToolUseBlockStart(t *testing.T) {
	state := convstate.New()
	rec := &startProbe{ResponseRecorder: httptest.NewRecorder(), state: state}

	w, err := stream.NewWriter(rec, state, "claude-opus-4", telemetry.NewNoopTracer(), telemetry.NewNoopMetrics(), "msg_1")
	require.NoError(t, err)

	ch := make(chan stream.Event, 1)
	ch <- stream.Event{Kind: stream.EventToolUse, ToolCallID: "call-1", ToolName: "search_files"}
	close(ch)

	require.NoError(t, w.Run(context.Background(), ch))
	require.True(t, rec.containsAtStart)
	require.True(t, rec.expectedAtStart)
}

func TestWriterErrorEventEmitsErrorFrameAndTerminates(t *testing.T) {
	rec := httptest.NewRecorder()
	state := convstate.New()

	w, err := stream.NewWriter(rec, state, "claude-opus-4", telemetry.NewNoopTracer(), telemetry.NewNoopMetrics(), "msg_1")
	require.NoError(t, err)

	ch := make(chan stream.Event, 1)
	ch <- stream.Event{Kind: stream.EventError, Err: errTest{}}
	close(ch)

	require.NoError(t, w.Run(context.Background(), ch))
	events := collectEvents(t, rec.Body.String())
	require.Contains(t, events, "error")
	require.True(t, state.HadError())
}

func TestWriterEmitsThroughRedirectedReply(t *testing.T) {
	first := httptest.NewRecorder()
	second := httptest.NewRecorder()
	state := convstate.New()

	w, err := stream.NewWriter(first, state, "claude-opus-4", telemetry.NewNoopTracer(), telemetry.NewNoopMetrics(), "msg_1")
	require.NoError(t, err)

	state.SetReply(second)

	ch := make(chan stream.Event, 1)
	ch <- stream.Event{Kind: stream.EventIdle, StopReason: "end_turn"}
	close(ch)

	require.NoError(t, w.Run(context.Background(), ch))

	require.Equal(t, []string{"message_start"}, collectEvents(t, first.Body.String()))
	events := collectEvents(t, second.Body.String())
	require.Contains(t, events, "message_delta")
	require.Contains(t, events, "message_stop")
}

type errTest struct{}

func (errTest) Error() string { return "boom" }
