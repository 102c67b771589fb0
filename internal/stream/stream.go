// Package stream implements the Streaming Transform (C6): it consumes
// session events and emits Anthropic SSE, registering expected tool calls
// before the tool_use block that advertises them becomes visible, and
// terminating the turn on idle or error.
package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"go.opentelemetry.io/otel/codes"

	"xcodebridge/internal/convstate"
	"xcodebridge/internal/telemetry"
	"xcodebridge/internal/wire"
)

// EventKind discriminates the four session event shapes this bridge reacts
// to. The teacher's own agent runtime models a much richer event catalogue
// (workflow/await/child-run events); none of that has a counterpart here
// since driving the agent runtime itself is out of scope for this proxy.
type EventKind int

const (
	// EventTextDelta carries an incremental text fragment for the assistant's reply.
	EventTextDelta EventKind = iota
	// EventToolUse announces a tool invocation the model wants to make.
	EventToolUse
	// EventIdle marks the end of the turn with no further content.
	EventIdle
	// EventError marks a session-level failure.
	EventError
)

// Event is the session library's sum-type streaming event, trimmed to the
// four kinds the transform needs.
type Event struct {
	Kind EventKind

	// EventTextDelta
	Text string

	// EventToolUse
	ToolCallID      string
	ToolName        string
	ToolInputJSON   json.RawMessage

	// EventIdle
	StopReason string
	Usage      wire.Usage

	// EventError
	Err error
}

// Writer drives one turn's SSE output onto w for conversation state, consuming
// events until idle or error. It implements the state machine:
// Idle -> Started -> Streaming{contentBlocks[]} -> (Tool? -> Streaming)* -> Done|Errored.
type Writer struct {
	state   *convstate.State
	tracer  telemetry.Tracer
	metrics telemetry.Metrics

	nextIndex     int
	textBlockOpen bool
	textIndex     int
}

// WriteSSEHeaders writes the SSE response headers used by both the
// new-session and continuation paths.
func WriteSSEHeaders(w http.ResponseWriter) {
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
}

// EmitMessageStart writes the message_start frame directly to w. Used by the
// continuation path, which writes its own headers/message_start on the new
// reply before the original streaming goroutine resumes writing through
// state.CurrentReply().
func EmitMessageStart(w http.ResponseWriter, model, messageID string) error {
	data, err := json.Marshal(wire.MessageStart{
		Type: "message_start",
		Message: wire.MessageStartBody{
			ID:      messageID,
			Type:    "message",
			Role:    wire.RoleAssistant,
			Model:   model,
			Content: []any{},
		},
	})
	if err != nil {
		return fmt.Errorf("stream: marshal message_start: %w", err)
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", wire.EventMessageStart, data); err != nil {
		return fmt.Errorf("stream: write message_start: %w", err)
	}
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
	return nil
}

// NewWriter attaches w to state as the current reply, writes SSE headers and
// the message_start event, and marks the conversation session active,
// matching spec §4.6's "On entry" step. Because the transform always writes
// through state.CurrentReply() rather than a writer captured here, a later
// continuation request can redirect subsequent frames to a new HTTP
// connection by calling state.SetReply again.
func NewWriter(w http.ResponseWriter, state *convstate.State, model string, tracer telemetry.Tracer, metrics telemetry.Metrics, messageID string) (*Writer, error) {
	state.SetReply(w)
	WriteSSEHeaders(w)
	state.MarkSessionActive()

	sw := &Writer{state: state, tracer: tracer, metrics: metrics}
	if err := EmitMessageStart(w, model, messageID); err != nil {
		return nil, err
	}
	return sw, nil
}

// Run consumes events from ch until it closes or an idle/error event
// terminates the turn, then performs the terminal cleanup: marking the
// session inactive and notifying any waiter on streamingDone. If ctx ends
// first (client disconnect), it sets hadError, runs the state's Cleanup
// (rejecting pending calls with ErrSessionCleanup), and notifies
// streamingDone.
func (w *Writer) Run(ctx context.Context, ch <-chan Event) error {
	spanCtx, span := w.tracer.Start(ctx, "stream.turn")
	defer span.End()

	for {
		select {
		case <-ctx.Done():
			w.state.SetHadError()
			w.state.Cleanup()
			w.state.NotifyStreamingDone()
			return ctx.Err()
		case ev, ok := <-ch:
			if !ok {
				w.terminal()
				return nil
			}
			done, err := w.handle(spanCtx, ev)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				return err
			}
			if done {
				w.terminal()
				return nil
			}
		}
	}
}

func (w *Writer) handle(ctx context.Context, ev Event) (done bool, err error) {
	switch ev.Kind {
	case EventTextDelta:
		if !w.textBlockOpen {
			w.textIndex = w.nextIndex
			w.nextIndex++
			w.textBlockOpen = true
			if err := w.emit(wire.EventContentBlockStart, wire.ContentBlockStart{
				Type:  "content_block_start",
				Index: w.textIndex,
				ContentBlock: wire.ContentBlockStartBody{
					Type: wire.BlockTypeText,
				},
			}); err != nil {
				return false, err
			}
		}
		return false, w.emit(wire.EventContentBlockDelta, wire.ContentBlockDelta{
			Type:  "content_block_delta",
			Index: w.textIndex,
			Delta: wire.DeltaBody{Type: "text_delta", Text: ev.Text},
		})

	case EventToolUse:
		if w.textBlockOpen {
			if err := w.emit(wire.EventContentBlockStop, wire.ContentBlockStop{Type: "content_block_stop", Index: w.textIndex}); err != nil {
				return false, err
			}
			w.textBlockOpen = false
		}
		index := w.nextIndex
		w.nextIndex++

		// registerExpected MUST complete before content_block_start for this
		// tool_use is visible to Xcode (spec §4.6 ordering guarantee).
		w.state.RegisterExpected(ev.ToolCallID, ev.ToolName)

		if err := w.emit(wire.EventContentBlockStart, wire.ContentBlockStart{
			Type:  "content_block_start",
			Index: index,
			ContentBlock: wire.ContentBlockStartBody{
				Type: wire.BlockTypeToolUse,
				ID:   ev.ToolCallID,
				Name: ev.ToolName,
			},
		}); err != nil {
			return false, err
		}
		if len(ev.ToolInputJSON) > 0 {
			if err := w.emit(wire.EventContentBlockDelta, wire.ContentBlockDelta{
				Type:  "content_block_delta",
				Index: index,
				Delta: wire.DeltaBody{Type: "input_json_delta", PartialJSON: string(ev.ToolInputJSON)},
			}); err != nil {
				return false, err
			}
		}
		return false, w.emit(wire.EventContentBlockStop, wire.ContentBlockStop{Type: "content_block_stop", Index: index})

	case EventIdle:
		if w.textBlockOpen {
			if err := w.emit(wire.EventContentBlockStop, wire.ContentBlockStop{Type: "content_block_stop", Index: w.textIndex}); err != nil {
				return false, err
			}
			w.textBlockOpen = false
		}
		stopReason := ev.StopReason
		if stopReason == "" {
			stopReason = wire.StopReasonEndTurn
		}
		if err := w.emit(wire.EventMessageDelta, wire.MessageDelta{
			Type:  "message_delta",
			Delta: wire.MessageDeltaBody{StopReason: stopReason},
			Usage: ev.Usage,
		}); err != nil {
			return false, err
		}
		if err := w.emit(wire.EventMessageStop, wire.MessageStop{Type: "message_stop"}); err != nil {
			return false, err
		}
		return true, nil

	case EventError:
		w.state.SetHadError()
		envelope := wire.NewInvalidRequestError(ev.Err.Error())
		envelope.Error.Type = wire.StopReasonErrorRuntime
		_ = w.emit("error", envelope)
		return true, nil

	default:
		return false, fmt.Errorf("stream: unknown event kind %d", ev.Kind)
	}
}

// terminal performs the shared cleanup for Done/Errored: mark the session
// inactive (draining stale expected/pending with "Session ended") and notify
// any waiter blocked on waitForStreamingDone.
func (w *Writer) terminal() {
	w.state.MarkSessionInactive()
	w.state.NotifyStreamingDone()
}

// emit writes to whatever reply is currently attached to the conversation
// state, so a continuation that redirects the reply mid-turn (C7) causes
// subsequent frames to land on the new HTTP connection.
func (w *Writer) emit(event string, payload any) error {
	reply := w.state.CurrentReply()
	if reply == nil {
		return fmt.Errorf("stream: no reply attached to conversation for %s event", event)
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("stream: marshal %s event: %w", event, err)
	}
	if _, err := fmt.Fprintf(reply, "event: %s\ndata: %s\n\n", event, data); err != nil {
		return fmt.Errorf("stream: write %s event: %w", event, err)
	}
	if f, ok := reply.(http.Flusher); ok {
		f.Flush()
	}
	return nil
}
