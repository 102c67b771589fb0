package bridgehttp_test

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	goahttp "goa.design/goa/v3/http"

	"xcodebridge/internal/bridgehttp"
	"xcodebridge/internal/convmanager"
	"xcodebridge/internal/convstate"
	"xcodebridge/internal/telemetry"
	"xcodebridge/internal/toolcache"
)

// resolveEventually retries ResolveToolCall until it succeeds or the deadline
// passes, since the HTTP handler registers the pending call asynchronously
// relative to the caller issuing the request. Returns whether it succeeded,
// so callers running it from a goroutine can assert without touching *testing.T
// off the main test goroutine.
func resolveEventually(conv *convmanager.Conversation, callID string, result any) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if conv.State.ResolveToolCall(callID, result) {
			return true
		}
		time.Sleep(time.Millisecond)
	}
	return false
}

func newServer(manager *convmanager.Manager, single *convstate.State) http.Handler {
	routes := bridgehttp.New(manager, single, telemetry.NewNoopLogger(), telemetry.NewNoopMetrics())
	mux := goahttp.NewMuxer()
	routes.Mount(mux)
	return bridgehttp.WithMuxer(mux, mux)
}

func TestHandleToolsReturnsCachedCatalogForConversation(t *testing.T) {
	manager := convmanager.New()
	conv := manager.Create()
	conv.State.Tools().Cache([]toolcache.ToolDef{{Name: "search_files", Description: "search"}})

	srv := httptest.NewServer(newServer(manager, nil))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/mcp/" + conv.ID + "/tools")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHandleToolsUnknownConversationReturns404(t *testing.T) {
	manager := convmanager.New()
	srv := httptest.NewServer(newServer(manager, nil))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/mcp/does-not-exist/tools")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHandleToolCallNoExpectedToolReturns500(t *testing.T) {
	manager := convmanager.New()
	conv := manager.Create()

	srv := httptest.NewServer(newServer(manager, nil))
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/mcp/"+conv.ID+"/tool-call", "application/json",
		bytes.NewReader([]byte(`{"name":"search_files","arguments":{}}`)))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestHandleToolCallResolvesAgainstPendingRequest(t *testing.T) {
	manager := convmanager.New()
	conv := manager.Create()
	conv.State.RegisterExpected("call-1", "search_files")

	srv := httptest.NewServer(newServer(manager, nil))
	defer srv.Close()

	done := make(chan *http.Response, 1)
	go func() {
		resp, err := http.Post(srv.URL+"/mcp/"+conv.ID+"/tool-call", "application/json",
			bytes.NewReader([]byte(`{"name":"search_files","arguments":{"query":"foo"}}`)))
		require.NoError(t, err)
		done <- resp
	}()

	require.True(t, resolveEventually(conv, "call-1", "result text"))

	resp := <-done
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHandleToolCallServerLevelRoutesByExpectedTool(t *testing.T) {
	manager := convmanager.New()
	conv := manager.Create()
	conv.State.RegisterExpected("call-1", "search_files")

	srv := httptest.NewServer(newServer(manager, nil))
	defer srv.Close()

	resolved := make(chan bool, 1)
	go func() { resolved <- resolveEventually(conv, "call-1", "ok") }()

	resp, err := http.Post(srv.URL+"/internal/tool-call", "application/json",
		bytes.NewReader([]byte(`{"name":"search_files","arguments":{}}`)))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.True(t, <-resolved)
}
