package config_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"xcodebridge/internal/config"
)

func TestValidateRejectsNonPositiveBodyLimit(t *testing.T) {
	c := &config.Config{BodyLimit: 0}
	require.Error(t, c.Validate())
}

func TestValidateAcceptsDefaults(t *testing.T) {
	c := &config.Config{BodyLimit: config.DefaultBodyLimit}
	require.NoError(t, c.Validate())
}

func TestValidateRejectsUnknownReasoningEffort(t *testing.T) {
	c := &config.Config{BodyLimit: config.DefaultBodyLimit, ReasoningEffort: "extreme"}
	require.Error(t, c.Validate())
}

func TestValidateAcceptsKnownReasoningEfforts(t *testing.T) {
	for _, effort := range []string{"", "low", "medium", "high"} {
		c := &config.Config{BodyLimit: config.DefaultBodyLimit, ReasoningEffort: effort}
		require.NoError(t, c.Validate(), "effort %q should be valid", effort)
	}
}

func TestValidateRejectsInvalidAutoApprovePermissionsType(t *testing.T) {
	c := &config.Config{BodyLimit: config.DefaultBodyLimit, AutoApprovePermissions: 42}
	require.Error(t, c.Validate())
}

func TestValidateAcceptsBoolOrListAutoApprovePermissions(t *testing.T) {
	boolCfg := &config.Config{BodyLimit: config.DefaultBodyLimit, AutoApprovePermissions: true}
	require.NoError(t, boolCfg.Validate())

	listCfg := &config.Config{BodyLimit: config.DefaultBodyLimit, AutoApprovePermissions: []string{"file_read"}}
	require.NoError(t, listCfg.Validate())
}

func TestValidateRejectsMCPServerWithEmptyCommand(t *testing.T) {
	c := &config.Config{
		BodyLimit: config.DefaultBodyLimit,
		MCPServers: map[string]config.MCPServerConfig{
			"filesystem": {},
		},
	}
	require.Error(t, c.Validate())
}
