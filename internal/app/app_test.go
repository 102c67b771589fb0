package app_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"xcodebridge/internal/app"
	"xcodebridge/internal/config"
	"xcodebridge/internal/sessionconfig"
	"xcodebridge/internal/telemetry"
)

type stubLibrary struct{}

func (stubLibrary) NewSession(context.Context, *sessionconfig.Session, []sessionconfig.MessageInput) (sessionconfig.SessionHandle, error) {
	return nil, context.DeadlineExceeded
}

func TestHandlerMountsModelsAndBridgeRoutes(t *testing.T) {
	cfg := &config.Config{BodyLimit: config.DefaultBodyLimit, Port: 8080}
	a := app.New(cfg, stubLibrary{}, telemetry.NewNoopLogger(), telemetry.NewNoopMetrics(), telemetry.NewNoopTracer())

	srv := httptest.NewServer(a.Handler())
	defer srv.Close()

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/v1/models", nil)
	require.NoError(t, err)
	req.Header.Set("User-Agent", "Xcode/16.0")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// The server-level /internal/tools endpoint serves single-conversation mode,
	// which this App was not configured with, so it reports no conversation
	// rather than 404ing the whole mux (proving the route is mounted and
	// reachable).
	resp2, err := http.Get(srv.URL + "/internal/tools")
	require.NoError(t, err)
	defer resp2.Body.Close()
	require.Equal(t, http.StatusNotFound, resp2.StatusCode)

	conv := a.Manager.Create()
	resp3, err := http.Get(srv.URL + "/mcp/" + conv.ID + "/tools")
	require.NoError(t, err)
	defer resp3.Body.Close()
	require.Equal(t, http.StatusOK, resp3.StatusCode)
}

func TestHandlerRejectsNonXcodeClientOnMessages(t *testing.T) {
	cfg := &config.Config{BodyLimit: config.DefaultBodyLimit, Port: 8080}
	a := app.New(cfg, stubLibrary{}, telemetry.NewNoopLogger(), telemetry.NewNoopMetrics(), telemetry.NewNoopTracer())

	srv := httptest.NewServer(a.Handler())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/v1/messages", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
}
