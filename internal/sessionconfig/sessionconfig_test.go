package sessionconfig_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"xcodebridge/internal/config"
	"xcodebridge/internal/sessionconfig"
)

func baseConfig() *config.Config {
	return &config.Config{BodyLimit: config.DefaultBodyLimit}
}

func TestBuildAddsBridgeMCPServerWhenToolsPresent(t *testing.T) {
	s := sessionconfig.Build(baseConfig(), sessionconfig.Params{
		HasToolBridge:  true,
		Port:           8080,
		ConversationID: "conv-1",
	})
	require.Len(t, s.MCPServers, 1)
	require.Equal(t, "http", s.MCPServers[0].Type)
	require.Equal(t, "http://127.0.0.1:8080/mcp/conv-1", s.MCPServers[0].URL)
	require.Nil(t, s.AvailableTools)
}

func TestBuildUsesAllowedCliToolsWhenNoBridge(t *testing.T) {
	cfg := baseConfig()
	cfg.AllowedCliTools = []string{"grep", "ls"}
	s := sessionconfig.Build(cfg, sessionconfig.Params{HasToolBridge: false})
	require.Equal(t, []string{"grep", "ls"}, s.AvailableTools)
}

func TestBuildCarriesUserMCPServersAsStdio(t *testing.T) {
	cfg := baseConfig()
	cfg.MCPServers = map[string]config.MCPServerConfig{
		"filesystem": {Command: "mcp-fs", Args: []string{"--root", "/tmp"}},
	}
	s := sessionconfig.Build(cfg, sessionconfig.Params{})
	require.Len(t, s.MCPServers, 1)
	require.Equal(t, "stdio", s.MCPServers[0].Type)
	require.Equal(t, "mcp-fs", s.MCPServers[0].Command)
}

func TestBuildReasoningEffortOnlyWhenModelSupportsIt(t *testing.T) {
	cfg := baseConfig()
	cfg.ReasoningEffort = "high"

	supported := sessionconfig.Build(cfg, sessionconfig.Params{SupportsReasoningEffort: true})
	require.Equal(t, "high", supported.ReasoningEffort)

	unsupported := sessionconfig.Build(cfg, sessionconfig.Params{SupportsReasoningEffort: false})
	require.Empty(t, unsupported.ReasoningEffort)
}

func TestBuildOnPermissionRequestBoolPolicy(t *testing.T) {
	cfg := baseConfig()
	cfg.AutoApprovePermissions = true
	s := sessionconfig.Build(cfg, sessionconfig.Params{})
	require.True(t, s.OnPermissionRequest(sessionconfig.PermissionRequest{Kind: "file_write"}))
}

func TestBuildOnPermissionRequestKindListPolicy(t *testing.T) {
	cfg := baseConfig()
	cfg.AutoApprovePermissions = []string{"file_read"}
	s := sessionconfig.Build(cfg, sessionconfig.Params{})
	require.True(t, s.OnPermissionRequest(sessionconfig.PermissionRequest{Kind: "file_read"}))
	require.False(t, s.OnPermissionRequest(sessionconfig.PermissionRequest{Kind: "file_write"}))
}

func TestBuildOnPreToolUseAllowsBridgeToolsUnconditionally(t *testing.T) {
	s := sessionconfig.Build(baseConfig(), sessionconfig.Params{})
	require.True(t, s.OnPreToolUse("xcode-bridge-search_files"))
}

func TestBuildOnPreToolUseAllowsCliAllowlistedTool(t *testing.T) {
	cfg := baseConfig()
	cfg.AllowedCliTools = []string{"grep"}
	s := sessionconfig.Build(cfg, sessionconfig.Params{})
	require.True(t, s.OnPreToolUse("grep"))
	require.False(t, s.OnPreToolUse("rm"))
}

func TestBuildOnPreToolUseAllowsMCPServerAllowlistedTool(t *testing.T) {
	cfg := baseConfig()
	cfg.MCPServers = map[string]config.MCPServerConfig{
		"filesystem": {Command: "mcp-fs", AllowedTools: []string{"read_file"}},
	}
	s := sessionconfig.Build(cfg, sessionconfig.Params{})
	require.True(t, s.OnPreToolUse("read_file"))
	require.False(t, s.OnPreToolUse("write_file"))
}

func TestBuildOnUserInputRequestAlwaysErrors(t *testing.T) {
	s := sessionconfig.Build(baseConfig(), sessionconfig.Params{})
	_, err := s.OnUserInputRequest()
	require.Error(t, err)
}
