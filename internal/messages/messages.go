// Package messages implements the Messages Handler (C7): routes incoming
// requests to the new-session or continuation path, parses the body, and
// manages reply/close wiring.
package messages

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"xcodebridge/internal/config"
	"xcodebridge/internal/convmanager"
	"xcodebridge/internal/sessionconfig"
	"xcodebridge/internal/stream"
	"xcodebridge/internal/telemetry"
	"xcodebridge/internal/toolcache"
	"xcodebridge/internal/wire"
)

// Handler implements POST /v1/messages and GET /v1/models.
type Handler struct {
	manager *convmanager.Manager
	cfg     *config.Config
	library sessionconfig.Library
	log     telemetry.Logger
	metrics telemetry.Metrics
	port    int
}

// New constructs the Messages Handler.
func New(manager *convmanager.Manager, cfg *config.Config, library sessionconfig.Library, log telemetry.Logger, metrics telemetry.Metrics, port int) *Handler {
	return &Handler{manager: manager, cfg: cfg, library: library, log: log, metrics: metrics, port: port}
}

// RequireXcodeUserAgent is middleware gating both /v1/messages and /v1/models
// to requests claiming to be Xcode, per spec §6.
func RequireXcodeUserAgent(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.Header.Get("User-Agent"), "Xcode/") {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusForbidden)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "Forbidden"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ModelsHandler implements GET /v1/models.
func (h *Handler) ModelsHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]any{"data": wire.KnownModels})
}

// ServeHTTP implements POST /v1/messages.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req wire.Request
	r.Body = http.MaxBytesReader(w, r.Body, int64(h.cfg.BodyLimit))
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeInvalidRequest(w, "malformed request body: "+err.Error())
		return
	}

	if conv := h.manager.FindByContinuation(req.Messages); conv != nil {
		h.metrics.IncCounter(telemetry.MetricRequestsHandled, 1, "path", "continuation")
		h.log.Info(ctx, "messages request routed as continuation", "conversation_id", conv.ID)
		h.handleContinuation(ctx, w, r, conv, req)
		return
	}

	h.metrics.IncCounter(telemetry.MetricRequestsHandled, 1, "path", "new")
	h.handleNewSession(ctx, w, r, req)
}

func (h *Handler) writeInvalidRequest(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	_ = json.NewEncoder(w).Encode(wire.NewInvalidRequestError(message))
}

func (h *Handler) handleContinuation(ctx context.Context, w http.ResponseWriter, r *http.Request, conv *convmanager.Conversation, req wire.Request) {
	conv.State.SetReply(w)
	stream.WriteSSEHeaders(w)
	messageID := "msg_" + uuid.NewString()
	if err := stream.EmitMessageStart(w, req.Model, messageID); err != nil {
		h.log.Error(ctx, "failed to emit message_start on continuation", "conversation_id", conv.ID, "error", err.Error())
		return
	}

	closed := make(chan struct{})
	go func() {
		select {
		case <-r.Context().Done():
			if conv.State.CurrentReply() == w {
				conv.State.Cleanup()
				conv.State.NotifyStreamingDone()
			}
		case <-closed:
		}
	}()
	defer close(closed)

	last := req.Messages[len(req.Messages)-1]
	for _, b := range last.Blocks {
		if b.Type != wire.BlockTypeToolResult {
			continue
		}
		conv.State.ResolveToolCall(b.ToolResultForID, b.ToolResultBody)
	}

	conv.SentMessageCount = len(req.Messages)
	conv.State.WaitForStreamingDone()
}

func (h *Handler) handleNewSession(ctx context.Context, w http.ResponseWriter, r *http.Request, req wire.Request) {
	model, ok := wire.ResolveModel(req.Model)
	if !ok {
		h.writeInvalidRequest(w, fmt.Sprintf("unknown model %q", req.Model))
		return
	}

	conv := h.manager.Create()
	h.metrics.IncCounter(telemetry.MetricConversationsCreated, 1)

	if len(req.Tools) > 0 {
		defs := make([]toolcache.ToolDef, len(req.Tools))
		for i, t := range req.Tools {
			defs[i] = toolcache.ToolDef{Name: t.Name, Description: t.Description, InputSchema: t.InputSchema}
		}
		conv.State.Tools().Cache(defs)
	}

	params := sessionconfig.Params{
		Model:                   wire.Model(model.ID),
		SupportsReasoningEffort: model.SupportsReasoningEffort,
		HasToolBridge:           len(req.Tools) > 0,
		Port:                    h.port,
		ConversationID:          conv.ID,
	}
	if req.System != "" {
		params.SystemMessage = req.System
	}
	sessCfg := sessionconfig.Build(h.cfg, params)

	inputs := make([]sessionconfig.MessageInput, len(req.Messages))
	for i, m := range req.Messages {
		if m.IsPlainText() {
			inputs[i] = sessionconfig.MessageInput{Role: string(m.Role), Content: m.Text}
		} else {
			inputs[i] = sessionconfig.MessageInput{Role: string(m.Role), Content: m.Blocks}
		}
	}

	handle, err := h.library.NewSession(ctx, sessCfg, inputs)
	if err != nil {
		h.manager.Remove(conv.ID)
		h.writeInvalidRequest(w, "failed to start session: "+err.Error())
		return
	}

	messageID := "msg_" + uuid.NewString()
	sw, err := stream.NewWriter(w, conv.State, req.Model, telemetryTracerFromContext(ctx), h.metrics, messageID)
	if err != nil {
		h.log.Error(ctx, "failed to start stream writer", "conversation_id", conv.ID, "error", err.Error())
		return
	}

	conv.SentMessageCount = len(req.Messages)

	if err := sw.Run(r.Context(), handle.Events()); err != nil {
		h.log.Error(ctx, "stream turn ended with error", "conversation_id", conv.ID, "error", err.Error())
	}
}

// telemetryTracerFromContext resolves the Tracer configured on the
// application root. Kept as a small indirection so Handler does not need a
// Tracer field threaded through every constructor call in tests that only
// exercise routing, not tracing.
func telemetryTracerFromContext(ctx context.Context) telemetry.Tracer {
	if t, ok := ctx.Value(tracerContextKey{}).(telemetry.Tracer); ok {
		return t
	}
	return telemetry.NewNoopTracer()
}

type tracerContextKey struct{}

// WithTracer attaches tracer to ctx for ServeHTTP's downstream stream.Writer.
func WithTracer(ctx context.Context, tracer telemetry.Tracer) context.Context {
	return context.WithValue(ctx, tracerContextKey{}, tracer)
}
