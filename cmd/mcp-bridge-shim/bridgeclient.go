package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// bridgeClient is the shim's HTTP leg to the Bridge HTTP Routes (C4). Its
// request/response envelope is adapted from the teacher's
// features/mcp/runtime/httpcaller.go httpTransport, which plays the same role
// (JSON-RPC-over-HTTP client) there that this shim's outbound leg plays here,
// even though the shim's *inbound* leg (stdin/stdout) is its own JSON-RPC
// server framing rather than a client.
type bridgeClient struct {
	baseURL string
	http    *http.Client
}

func newBridgeClient(baseURL string) *bridgeClient {
	return &bridgeClient{baseURL: baseURL, http: &http.Client{Timeout: 10 * time.Second}}
}

type toolsListResult struct {
	Tools []json.RawMessage `json:"tools"`
}

func (c *bridgeClient) listTools(ctx context.Context) (toolsListResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/tools", nil)
	if err != nil {
		return toolsListResult{}, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return toolsListResult{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return toolsListResult{}, fmt.Errorf("bridge /tools: status %d", resp.StatusCode)
	}
	var out toolsListResult
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return toolsListResult{}, err
	}
	return out, nil
}

type toolCallBody struct {
	Name      string `json:"name"`
	Arguments any    `json:"arguments"`
}

type toolCallResult struct {
	Content any `json:"content"`
}

func (c *bridgeClient) callTool(ctx context.Context, name string, arguments any) (toolCallResult, error) {
	body, err := json.Marshal(toolCallBody{Name: name, Arguments: arguments})
	if err != nil {
		return toolCallResult{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/tool-call", bytes.NewReader(body))
	if err != nil {
		return toolCallResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return toolCallResult{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		var errBody struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&errBody)
		if errBody.Error == "" {
			errBody.Error = fmt.Sprintf("bridge /tool-call: status %d", resp.StatusCode)
		}
		return toolCallResult{}, fmt.Errorf("%s", errBody.Error)
	}
	var out toolCallResult
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return toolCallResult{}, err
	}
	return out, nil
}
