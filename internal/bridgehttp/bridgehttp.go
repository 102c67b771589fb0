// Package bridgehttp implements the Bridge HTTP Routes (C4): the local-only
// endpoints the MCP shim calls to fetch the tool catalog and park tool-call
// requests until Xcode delivers a result.
package bridgehttp

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	goahttp "goa.design/goa/v3/http"
	"golang.org/x/time/rate"

	"xcodebridge/internal/bridgeerrors"
	"xcodebridge/internal/convmanager"
	"xcodebridge/internal/convstate"
	"xcodebridge/internal/telemetry"
)

// Routes wires the bridge's endpoints onto a goahttp.Muxer. single is the
// Conversation State whose catalog the server-level /internal/tools endpoint
// serves; when it is nil that endpoint answers 404. The server-level
// /internal/tool-call endpoint does not use single: it routes each call to the
// conversation returned by the manager's FindByExpectedTool.
type Routes struct {
	manager *convmanager.Manager
	single  *convstate.State
	log     telemetry.Logger
	metrics telemetry.Metrics

	limMu    sync.Mutex
	limiters map[string]*rate.Limiter
}

// New constructs the Bridge HTTP Routes.
func New(manager *convmanager.Manager, single *convstate.State, log telemetry.Logger, metrics telemetry.Metrics) *Routes {
	return &Routes{
		manager:  manager,
		single:   single,
		log:      log,
		metrics:  metrics,
		limiters: make(map[string]*rate.Limiter),
	}
}

// Mount registers the bridge's routes on mux.
func (r *Routes) Mount(mux goahttp.Muxer) {
	mux.Handle(http.MethodGet, "/mcp/{convId}/tools", r.handleTools(true))
	mux.Handle(http.MethodPost, "/mcp/{convId}/tool-call", r.handleToolCall(true))
	mux.Handle(http.MethodGet, "/internal/tools", r.handleTools(false))
	mux.Handle(http.MethodPost, "/internal/tool-call", r.handleToolCall(false))
}

func (r *Routes) stateFor(mux goahttp.Muxer, req *http.Request, keyed bool) (*convstate.State, string) {
	if !keyed {
		return r.single, ""
	}
	convID := mux.Vars(req)["convId"]
	conv := r.manager.Get(convID)
	if conv == nil {
		return nil, convID
	}
	return conv.State, convID
}

type toolsResponseEntry struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"inputSchema,omitempty"`
}

func (r *Routes) handleTools(keyed bool) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		mux := req.Context().Value(muxCtxKey{}).(goahttp.Muxer)
		state, convID := r.stateFor(mux, req, keyed)
		if state == nil {
			writeError(w, http.StatusNotFound, "unknown conversation "+convID)
			return
		}
		tools := state.Tools().Get()
		out := make([]toolsResponseEntry, len(tools))
		for i, t := range tools {
			out[i] = toolsResponseEntry{Name: t.Name, Description: t.Description, InputSchema: t.InputSchema}
		}
		writeJSON(w, http.StatusOK, map[string]any{"tools": out})
	}
}

type toolCallRequest struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

func (r *Routes) handleToolCall(keyed bool) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		mux := req.Context().Value(muxCtxKey{}).(goahttp.Muxer)
		var state *convstate.State
		var convID string
		if keyed {
			state, convID = r.stateFor(mux, req, true)
		}

		var body toolCallRequest
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "malformed tool-call body: "+err.Error())
			return
		}

		if state == nil {
			if keyed {
				writeError(w, http.StatusNotFound, "unknown conversation "+convID)
				return
			}
			conv := r.manager.FindByExpectedTool(body.Name)
			if conv == nil {
				writeError(w, http.StatusInternalServerError, bridgeerrors.ErrNoExpectedTool.Error()+" "+body.Name)
				return
			}
			state = conv.State
		}

		if !r.allow(convID) {
			writeError(w, http.StatusTooManyRequests, "tool-call rate limit exceeded")
			return
		}

		resolvedName := state.Tools().ResolveName(body.Name)
		normalized := state.Tools().NormalizeArgs(resolvedName, body.Arguments)
		_ = normalized // arguments are normalized for the session library's eventual re-dispatch; the bridge itself only relays the result.

		outcome := <-state.RegisterMCPRequest(resolvedName)
		if outcome.Err != nil {
			r.metrics.IncCounter(telemetry.MetricToolCallsRejected, 1, "tool", resolvedName)
			writeError(w, http.StatusInternalServerError, outcome.Err.Error())
			return
		}
		r.metrics.IncCounter(telemetry.MetricToolCallsResolved, 1, "tool", resolvedName)
		writeJSON(w, http.StatusOK, map[string]any{"content": outcome.Value})
	}
}

// allow applies the per-conversation rate limit guarding against a runaway
// shim; single-conversation deployments (empty convID) are not limited since
// there is nothing to key the bucket on.
func (r *Routes) allow(convID string) bool {
	if convID == "" {
		return true
	}
	r.limMu.Lock()
	lim, ok := r.limiters[convID]
	if !ok {
		lim = rate.NewLimiter(50, 100)
		r.limiters[convID] = lim
	}
	r.limMu.Unlock()
	return lim.Allow()
}

// EvictLimiter drops the rate limiter for a removed conversation.
func (r *Routes) EvictLimiter(convID string) {
	r.limMu.Lock()
	delete(r.limiters, convID)
	r.limMu.Unlock()
}

type muxCtxKey struct{}

// WithMuxer attaches mux to the request context so handlers can read path
// variables via mux.Vars without a global.
func WithMuxer(mux goahttp.Muxer, h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		h.ServeHTTP(w, req.WithContext(contextWithMuxer(req, mux)))
	})
}

func contextWithMuxer(req *http.Request, mux goahttp.Muxer) context.Context {
	return context.WithValue(req.Context(), muxCtxKey{}, mux)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
