// Command mcp-bridge-shim is the MCP Passthrough Shim (C8): a standalone
// process launched as a child of the session library that speaks JSON-RPC
// 2.0 over stdio and forwards tools/list and tools/call to the Bridge HTTP
// Routes (C4).
//
// Configuration is via the MCP_SERVER_PORT environment variable, which
// selects the bridge port; an optional MCP_CONVERSATION_ID selects the
// per-conversation /mcp/:convId/* routes over the server-level
// /internal/* routes.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
)

const protocolVersion = "2024-11-05"

func main() {
	port := os.Getenv("MCP_SERVER_PORT")
	if port == "" {
		port = "8080"
	}
	baseURL := fmt.Sprintf("http://127.0.0.1:%s/internal", port)
	if convID := os.Getenv("MCP_CONVERSATION_ID"); convID != "" {
		baseURL = fmt.Sprintf("http://127.0.0.1:%s/mcp/%s", port, convID)
	}

	client := newBridgeClient(baseURL)
	run(os.Stdin, os.Stdout, client)
}

func run(in *os.File, out *os.File, client *bridgeClient) {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	writer := bufio.NewWriter(out)
	ctx := context.Background()

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var req rpcRequest
		if err := json.Unmarshal(line, &req); err != nil {
			log.Printf("mcp-bridge-shim: malformed request: %v", err)
			continue
		}
		reply, hasReply := handle(ctx, client, req)
		if !hasReply {
			continue
		}
		data, err := json.Marshal(reply)
		if err != nil {
			log.Printf("mcp-bridge-shim: marshal reply: %v", err)
			continue
		}
		if _, err := writer.Write(data); err != nil {
			log.Printf("mcp-bridge-shim: write reply: %v", err)
			return
		}
		_ = writer.WriteByte('\n')
		if err := writer.Flush(); err != nil {
			log.Printf("mcp-bridge-shim: flush reply: %v", err)
			return
		}
	}
	if err := scanner.Err(); err != nil {
		log.Printf("mcp-bridge-shim: stdin read error: %v", err)
	}
}

func handle(ctx context.Context, client *bridgeClient, req rpcRequest) (rpcResponse, bool) {
	switch req.Method {
	case "initialize":
		return newResult(req.ID, map[string]any{
			"protocolVersion": protocolVersion,
			"capabilities":    map[string]any{"tools": map[string]any{}},
			"serverInfo":      map[string]any{"name": "mcp-bridge-shim", "version": "dev"},
		}), true

	case "notifications/initialized":
		return rpcResponse{}, false

	case "tools/list":
		result, err := client.listTools(ctx)
		if err != nil {
			return newError(req.ID, jsonrpcInternalError, err.Error()), !req.isNotification()
		}
		return newResult(req.ID, map[string]any{"tools": result.Tools}), true

	case "tools/call":
		var params struct {
			Name      string `json:"name"`
			Arguments any    `json:"arguments"`
		}
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return newError(req.ID, jsonrpcInternalError, "malformed tools/call params: "+err.Error()), true
		}
		result, err := client.callTool(ctx, params.Name, params.Arguments)
		if err != nil {
			return newError(req.ID, jsonrpcInternalError, err.Error()), true
		}
		return newResult(req.ID, map[string]any{
			"content": []map[string]any{{"type": "text", "text": result.Content}},
		}), true

	default:
		if req.isNotification() {
			return rpcResponse{}, false
		}
		return newError(req.ID, jsonrpcMethodNotFound, "unknown method "+req.Method), true
	}
}
