// Package bridgeerrors defines the sentinel and wrapped error kinds used across
// the tool-bridge continuation engine, per the error handling design.
package bridgeerrors

import "errors"

var (
	// ErrInvalidRequest marks a malformed request body or unknown model. Surfaced
	// as 400 with the Anthropic error envelope; no conversation is created.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrNoExpectedTool marks an MCP tool call whose name has no queued
	// registerExpected entry. Surfaced to the shim as a 500.
	ErrNoExpectedTool = errors.New("no expected tool call for name")

	// ErrToolCallTimeout marks a pending tool call that was not resolved within
	// the 5-minute window.
	ErrToolCallTimeout = errors.New("tool call timed out")

	// ErrSessionCleanup is the rejection cause used when a conversation is torn
	// down via client disconnect or explicit removal rather than a normal
	// session-end transition.
	ErrSessionCleanup = errors.New("session cleanup")

	// ErrSessionEnded is the rejection cause used when a conversation's session
	// ends normally (or with hadError set) while tool calls are still pending.
	ErrSessionEnded = errors.New("session ended")

	// ErrConversationNotFound marks a lookup against a conversation id the
	// manager does not (or no longer) holds.
	ErrConversationNotFound = errors.New("conversation not found")

	// ErrForbiddenUserAgent marks a request whose User-Agent does not match the
	// expected Xcode/* prefix.
	ErrForbiddenUserAgent = errors.New("forbidden user agent")
)
