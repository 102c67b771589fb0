// Package config defines the typed configuration document described in
// spec §6. Loading it from disk stays out of scope per spec §1 (an external
// loader owns that), but the struct shape and in-process validation live
// here so the loader has a concrete target type.
package config

import "fmt"

// MCPServerConfig is one entry in the config file's mcpServers map.
type MCPServerConfig struct {
	Command      string            `yaml:"command"`
	Args         []string          `yaml:"args,omitempty"`
	AllowedTools []string          `yaml:"allowedTools,omitempty"`
	Env          map[string]string `yaml:"env,omitempty"`
}

// Config is the full document described in spec §6.
type Config struct {
	MCPServers             map[string]MCPServerConfig `yaml:"mcpServers,omitempty"`
	AllowedCliTools        []string                   `yaml:"allowedCliTools,omitempty"`
	ExcludedFilePatterns   []string                   `yaml:"excludedFilePatterns,omitempty"`
	BodyLimit              int                        `yaml:"bodyLimit"`
	AutoApprovePermissions any                         `yaml:"autoApprovePermissions,omitempty"` // bool | []string
	ReasoningEffort        string                     `yaml:"reasoningEffort,omitempty"`

	// Port is the bridge HTTP listen port (not part of the on-disk document
	// in every deployment, but carried here so internal/app has one place to
	// read it from).
	Port int `yaml:"port,omitempty"`
}

var validReasoningEfforts = map[string]bool{"": true, "low": true, "medium": true, "high": true}

// Validate checks the config for obviously invalid values, the way the
// teacher's registry command validates its env-derived settings before
// starting. It does not fill in defaults; callers set BodyLimit themselves
// (see DefaultBodyLimit).
func (c *Config) Validate() error {
	if c.BodyLimit <= 0 {
		return fmt.Errorf("config: bodyLimit must be positive, got %d", c.BodyLimit)
	}
	if !validReasoningEfforts[c.ReasoningEffort] {
		return fmt.Errorf("config: reasoningEffort %q is not one of low|medium|high", c.ReasoningEffort)
	}
	switch c.AutoApprovePermissions.(type) {
	case nil, bool, []string:
	default:
		return fmt.Errorf("config: autoApprovePermissions must be a bool or a list of kinds")
	}
	for name, srv := range c.MCPServers {
		if srv.Command == "" {
			return fmt.Errorf("config: mcpServers[%s].command must not be empty", name)
		}
	}
	return nil
}

// DefaultBodyLimit is applied by callers that construct a Config
// programmatically (e.g. in tests) without going through the external loader.
const DefaultBodyLimit = 10 << 20 // 10 MiB
