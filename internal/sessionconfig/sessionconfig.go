// Package sessionconfig implements the Session Config Builder (C5): a pure
// function of server config and per-request parameters that produces the
// configuration object fed to the (out-of-scope) session library, plus the
// minimal interface boundary this proxy needs against that library.
package sessionconfig

import (
	"fmt"

	"xcodebridge/internal/config"
	"xcodebridge/internal/wire"
)

// Params are the per-request inputs to Build, beyond the static server Config.
type Params struct {
	Model                   wire.Model
	SystemMessage           string
	SupportsReasoningEffort bool
	WorkingDirectory        string
	HasToolBridge           bool
	Port                    int
	ConversationID          string
}

// MCPServer describes one entry in the session config's mcpServers map.
type MCPServer struct {
	Name         string
	Type         string // "stdio" for user-configured servers, "http" for the bridge
	Command      string
	Args         []string
	Env          map[string]string
	URL          string
	Tools        []string
	AllowedTools []string
}

// PermissionRequest is the argument passed to OnPermissionRequest.
type PermissionRequest struct {
	Kind string
}

// Session is the Config produced for the session library. Building one never
// touches the network; it is a pure transform of server Config + Params.
type Session struct {
	Streaming               bool
	InfiniteSessionsEnabled bool
	Model                   wire.Model
	SystemMessage           string
	WorkingDirectory        string
	MCPServers              []MCPServer
	AvailableTools          []string // omitted (nil) unless no bridge and allowlist non-empty
	ReasoningEffort         string   // empty unless configured and supported

	OnUserInputRequest func() (string, error)
	OnPermissionRequest func(req PermissionRequest) bool
	OnPreToolUse        func(toolName string) bool
}

const bridgeServerName = "xcode-bridge"
const bridgeToolPrefix = "xcode-bridge-"

// Build constructs the session config per spec §4.5.
func Build(cfg *config.Config, p Params) *Session {
	s := &Session{
		Streaming:               true,
		InfiniteSessionsEnabled: true,
		Model:                   p.Model,
		SystemMessage:           p.SystemMessage,
		WorkingDirectory:        p.WorkingDirectory,
	}

	for name, srv := range cfg.MCPServers {
		s.MCPServers = append(s.MCPServers, MCPServer{
			Name:         name,
			Type:         "stdio",
			Command:      srv.Command,
			Args:         srv.Args,
			Env:          srv.Env,
			Tools:        []string{"*"},
			AllowedTools: srv.AllowedTools,
		})
	}

	if p.HasToolBridge {
		s.MCPServers = append(s.MCPServers, MCPServer{
			Name:  bridgeServerName,
			Type:  "http",
			URL:   fmt.Sprintf("http://127.0.0.1:%d/mcp/%s", p.Port, p.ConversationID),
			Tools: []string{"*"},
		})
	} else if len(cfg.AllowedCliTools) > 0 {
		s.AvailableTools = cfg.AllowedCliTools
	}

	if cfg.ReasoningEffort != "" && p.SupportsReasoningEffort {
		s.ReasoningEffort = cfg.ReasoningEffort
	}

	s.OnUserInputRequest = func() (string, error) {
		return "", fmt.Errorf("user input is not available in this environment")
	}

	s.OnPermissionRequest = func(req PermissionRequest) bool {
		switch v := cfg.AutoApprovePermissions.(type) {
		case bool:
			return v
		case []string:
			for _, kind := range v {
				if kind == req.Kind {
					return true
				}
			}
			return false
		default:
			return false
		}
	}

	s.OnPreToolUse = func(toolName string) bool {
		if len(toolName) >= len(bridgeToolPrefix) && toolName[:len(bridgeToolPrefix)] == bridgeToolPrefix {
			return true
		}
		if allowListed(cfg.AllowedCliTools, toolName) {
			return true
		}
		for _, srv := range cfg.MCPServers {
			if allowListed(srv.AllowedTools, toolName) {
				return true
			}
		}
		return false
	}

	return s
}

func allowListed(list []string, name string) bool {
	for _, v := range list {
		if v == "*" || v == name {
			return true
		}
	}
	return false
}
