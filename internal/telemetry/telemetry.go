// Package telemetry defines the logging, metrics, and tracing seams used
// throughout the bridge, plus clue/OTEL-backed and no-op implementations.
package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type (
	// Logger emits structured log lines keyed by conversation/tool-call fields.
	Logger interface {
		Debug(ctx context.Context, msg string, keyvals ...any)
		Info(ctx context.Context, msg string, keyvals ...any)
		Warn(ctx context.Context, msg string, keyvals ...any)
		Error(ctx context.Context, msg string, keyvals ...any)
	}

	// Metrics records counters and timers for conversation and tool-call lifecycle.
	Metrics interface {
		IncCounter(name string, value float64, tags ...string)
		RecordTimer(name string, duration time.Duration, tags ...string)
	}

	// Tracer starts spans around streaming turns and tool-call round-trips.
	Tracer interface {
		Start(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, Span)
	}

	// Span is the minimal span surface the bridge needs.
	Span interface {
		End(opts ...trace.SpanEndOption)
		SetStatus(code codes.Code, description string)
		RecordError(err error, opts ...trace.EventOption)
	}
)

// Metric names used across the bridge, kept here so components share one vocabulary.
const (
	MetricConversationsCreated = "bridge.conversations.created"
	MetricConversationsRemoved = "bridge.conversations.removed"
	MetricToolCallsResolved    = "bridge.tool_calls.resolved"
	MetricToolCallsRejected    = "bridge.tool_calls.rejected"
	MetricToolCallsTimedOut    = "bridge.tool_calls.timed_out"
	MetricRequestsHandled      = "bridge.requests.handled"
)
