package sessionconfig

import (
	"context"

	"xcodebridge/internal/stream"
)

// Library is the minimal boundary this proxy needs against the external
// session library (spec §1 names "the underlying session library itself" as
// an out-of-scope external collaborator, specified only by interface).
type Library interface {
	// NewSession starts a session against cfg and returns a handle streaming
	// its events until the turn completes.
	NewSession(ctx context.Context, cfg *Session, messages []MessageInput) (SessionHandle, error)
}

// MessageInput is the subset of an inbound message this proxy forwards to the
// session library: role and rendered text/tool content are the library's
// concern, not this proxy's.
type MessageInput struct {
	Role    string
	Content any
}

// SessionHandle is a running session's event source and teardown hook.
type SessionHandle interface {
	// Events yields the session's streaming events, translated by the caller
	// into stream.Event for C6. The channel closes when the turn completes.
	Events() <-chan stream.Event

	// Close best-effort stops the session. Neither process shutdown
	// (app.Run) nor client-disconnect cleanup in this proxy calls it.
	Close(ctx context.Context) error
}
