package wire

// ModelInfo describes one entry in the GET /v1/models catalog.
type ModelInfo struct {
	ID                      string
	DisplayName             string
	SupportsReasoningEffort bool
}

// KnownModels is the statically configured model catalog this proxy exposes.
// The session library is the actual execution surface; these entries describe
// what Copilot-backed models it can be pointed at.
var KnownModels = []ModelInfo{
	{ID: "claude-opus-4", DisplayName: "Claude Opus 4", SupportsReasoningEffort: true},
	{ID: "claude-sonnet-4", DisplayName: "Claude Sonnet 4", SupportsReasoningEffort: true},
	{ID: "claude-haiku-4", DisplayName: "Claude Haiku 4", SupportsReasoningEffort: false},
}

// ResolveModel returns the ModelInfo for id and true, or false if unknown.
func ResolveModel(id string) (ModelInfo, bool) {
	for _, m := range KnownModels {
		if m.ID == id {
			return m, true
		}
	}
	return ModelInfo{}, false
}
