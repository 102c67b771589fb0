// Command xcodebridge runs the local HTTP proxy that lets Xcode's built-in
// AI assistant drive a Copilot-backed model through the internal session
// library, translating Xcode's Anthropic-style Messages API into the
// library's streaming API and routing tool-call round-trips back through
// Xcode via the MCP shim (cmd/mcp-bridge-shim).
//
// # Configuration
//
// Environment variables:
//
//	XCODEBRIDGE_ADDR         - HTTP listen address (default: ":8080")
//	XCODEBRIDGE_BODY_LIMIT   - request body limit in bytes (default: 10485760)
//	XCODEBRIDGE_DEBUG        - "1" enables debug-level logging
//
// Loading the full mcpServers/allowedCliTools config document from disk is an
// external concern (see internal/config); this entrypoint only reads the
// handful of process-level settings needed to bring the listener up.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	clue "goa.design/clue/log"

	"xcodebridge/internal/app"
	"xcodebridge/internal/config"
	"xcodebridge/internal/sessionconfig"
	"xcodebridge/internal/telemetry"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	addr := envOr("XCODEBRIDGE_ADDR", ":8080")
	debug := os.Getenv("XCODEBRIDGE_DEBUG") == "1"

	format := clue.FormatJSON
	if clue.IsTerminal() {
		format = clue.FormatTerminal
	}
	ctx := clue.Context(context.Background(), clue.WithFormat(format))
	if debug {
		ctx = clue.Context(ctx, clue.WithDebug())
	}

	port, err := hostPort(addr)
	if err != nil {
		return fmt.Errorf("xcodebridge: %w", err)
	}

	cfg := &config.Config{
		BodyLimit:       envIntOr("XCODEBRIDGE_BODY_LIMIT", config.DefaultBodyLimit),
		ReasoningEffort: os.Getenv("XCODEBRIDGE_REASONING_EFFORT"),
		Port:            port,
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("xcodebridge: invalid configuration: %w", err)
	}

	logger := telemetry.NewClueLogger()
	metrics := telemetry.NewClueMetrics()
	tracer := telemetry.NewClueTracer()

	a := app.New(cfg, sessionLibrary(), logger, metrics, tracer)

	errc := make(chan error, 1)
	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
		errc <- fmt.Errorf("%s", <-c)
	}()

	runCtx, cancel := context.WithCancel(ctx)
	go func() {
		if err := a.Run(runCtx, addr); err != nil {
			errc <- err
		}
	}()

	clue.Printf(ctx, "exiting (%v)", <-errc)
	cancel()
	return nil
}

func hostPort(addr string) (int, error) {
	for i := len(addr) - 1; i >= 0; i-- {
		if addr[i] == ':' {
			return strconv.Atoi(addr[i+1:])
		}
	}
	return 0, fmt.Errorf("address %q has no port", addr)
}

// sessionLibrary resolves the concrete binding to the session library this
// proxy drives. The library itself is an out-of-scope external collaborator
// (specified only by the sessionconfig.Library interface); the embedding
// integration that links this command against the real library is expected
// to replace this seam.
func sessionLibrary() sessionconfig.Library {
	return unconfiguredLibrary{}
}

type unconfiguredLibrary struct{}

func (unconfiguredLibrary) NewSession(context.Context, *sessionconfig.Session, []sessionconfig.MessageInput) (sessionconfig.SessionHandle, error) {
	return nil, fmt.Errorf("xcodebridge: no session library bound to this process")
}

func envOr(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envIntOr(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}
