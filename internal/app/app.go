// Package app wires the bridge's components into a running HTTP server: the
// Conversation Manager, the Messages Handler, the Bridge HTTP Routes, and
// telemetry, plus the listener lifecycle and graceful shutdown (A5).
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	goahttp "goa.design/goa/v3/http"

	"xcodebridge/internal/bridgehttp"
	"xcodebridge/internal/config"
	"xcodebridge/internal/convmanager"
	"xcodebridge/internal/messages"
	"xcodebridge/internal/sessionconfig"
	"xcodebridge/internal/telemetry"
)

// ShutdownGrace bounds how long Run waits for in-flight requests to drain
// once ctx is cancelled, per SPEC_FULL.md §5's 3-second cap (shorter than the
// teacher's own 30s HTTP shutdown cap, since this bridge only ever serves a
// single local client and has no reason to wait longer).
const ShutdownGrace = 3 * time.Second

// App is the application root: the long-lived state every handler closes
// over, constructed once at process start.
type App struct {
	Manager *convmanager.Manager
	Config  *config.Config
	Log     telemetry.Logger
	Metrics telemetry.Metrics
	Tracer  telemetry.Tracer

	routes   *bridgehttp.Routes
	messages *messages.Handler
}

// New builds an App from its already-loaded configuration and a Library
// implementation supplied by the caller (the out-of-scope session library
// binding lives at the cmd/ entrypoint, since internal/app itself must stay
// agnostic to which concrete library is wired in).
func New(cfg *config.Config, library sessionconfig.Library, log telemetry.Logger, metrics telemetry.Metrics, tracer telemetry.Tracer) *App {
	manager := convmanager.New()
	routes := bridgehttp.New(manager, nil, log, metrics)
	handler := messages.New(manager, cfg, library, log, metrics, cfg.Port)

	return &App{
		Manager:  manager,
		Config:   cfg,
		Log:      log,
		Metrics:  metrics,
		Tracer:   tracer,
		routes:   routes,
		messages: handler,
	}
}

// Mux builds the goahttp.Muxer carrying every route this bridge serves:
// the Xcode-facing /v1/messages and /v1/models endpoints (gated on the
// Xcode user-agent check) and the shim-facing /mcp/:convId/* and
// /internal/* endpoints.
func (a *App) Mux() goahttp.Muxer {
	mux := goahttp.NewMuxer()

	mux.Handle(http.MethodPost, "/v1/messages", messages.RequireXcodeUserAgent(a.messages).ServeHTTP)
	mux.Handle(http.MethodGet, "/v1/models", messages.RequireXcodeUserAgent(http.HandlerFunc(a.messages.ModelsHandler)).ServeHTTP)

	a.routes.Mount(mux)
	return mux
}

// Handler wraps Mux with the muxer-injection middleware the Bridge HTTP
// Routes need to read path variables, and attaches the Tracer to every
// request context so the Messages Handler's stream.Writer can trace turns.
func (a *App) Handler() http.Handler {
	mux := a.Mux()
	var h http.Handler = mux
	h = bridgehttp.WithMuxer(mux, h)
	return withTracer(a.Tracer, h)
}

func withTracer(tracer telemetry.Tracer, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := messages.WithTracer(r.Context(), tracer)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Run starts the HTTP listener on addr and blocks until ctx is cancelled,
// then shuts the server down with ShutdownGrace, matching the teacher's
// errc-channel pattern in example/cmd/assistant/http.go.
func (a *App) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           a.Handler(),
		ReadHeaderTimeout: 60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		a.Log.Info(ctx, "http server listening", "addr", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("app: listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	a.Log.Info(ctx, "shutting down http server", "addr", addr)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownGrace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("app: shutdown: %w", err)
	}
	return nil
}
