// Package convmanager implements the Conversation Manager (C3): a registry of
// conversations keyed by id, continuation matching by tool-use id, and
// auto-removal on session end.
package convmanager

import (
	"sort"
	"sync"

	"github.com/google/uuid"

	"xcodebridge/internal/convstate"
	"xcodebridge/internal/wire"
)

// Conversation is one registered conversation: its id, state, and the
// accounting the Messages Handler (C7) needs to avoid re-sending history the
// session library has already seen.
type Conversation struct {
	ID               string
	State            *convstate.State
	SentMessageCount int

	seq int64 // creation order, used to break ties deterministically
}

// Manager holds conversationsById.
type Manager struct {
	mu            sync.RWMutex
	conversations map[string]*Conversation
	nextSeq       int64
}

// New returns an empty Manager.
func New() *Manager {
	return &Manager{conversations: make(map[string]*Conversation)}
}

// Create mints a fresh id, builds a Conversation State, registers a
// session-end callback that removes the id, and returns the new
// Conversation.
func (m *Manager) Create() *Conversation {
	id := uuid.NewString()
	state := convstate.New()

	m.mu.Lock()
	m.nextSeq++
	conv := &Conversation{ID: id, State: state, seq: m.nextSeq}
	m.conversations[id] = conv
	m.mu.Unlock()

	state.SetSessionEndCallback(func() {
		m.Remove(id)
	})
	return conv
}

// Get returns the conversation for id, or nil if absent.
func (m *Manager) Get(id string) *Conversation {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.conversations[id]
}

// Remove deletes id from the registry; safe to call more than once.
func (m *Manager) Remove(id string) {
	m.mu.Lock()
	delete(m.conversations, id)
	m.mu.Unlock()
}

// sortedConversations returns all conversations ordered by creation sequence,
// so scans that must return "the first match" are deterministic (Go map
// iteration order is randomized, but the spec's continuation matching
// language requires a stable tie-break).
func (m *Manager) sortedConversations() []*Conversation {
	m.mu.RLock()
	out := make([]*Conversation, 0, len(m.conversations))
	for _, c := range m.conversations {
		out = append(out, c)
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].seq < out[j].seq })
	return out
}

// FindByContinuation decides whether messages represents a continuation of an
// existing conversation, per spec §4.3:
//  1. If the last message's role is not "user", return none.
//  2. If its content is a plain string, return none.
//  3. Collect tool_use_ids from any tool_result blocks in that last message.
//  4. For each collected id, scan all conversations (creation order); return
//     the first whose state contains that id.
//  5. If none matched but some conversation has sessionActive=true, return
//     that one.
//  6. Else return none.
//
// Step 5's fallback can misroute a continuation to the wrong conversation
// when multiple sessions are simultaneously active and the tool-use id fails
// to match any state; this is a known, spec-acknowledged risk (see
// SPEC_FULL.md §9) rather than a bug introduced here.
func (m *Manager) FindByContinuation(messages []wire.Message) *Conversation {
	if len(messages) == 0 {
		return nil
	}
	last := messages[len(messages)-1]
	if last.Role != wire.RoleUser {
		return nil
	}
	if last.IsPlainText() {
		return nil
	}

	ids := last.ToolResultIDs()
	conversations := m.sortedConversations()

	for _, id := range ids {
		for _, c := range conversations {
			if c.State.ContainsID(id) {
				return c
			}
		}
	}

	for _, c := range conversations {
		if c.State.SessionActive() {
			return c
		}
	}
	return nil
}

// FindByExpectedTool returns the first conversation (creation order) whose
// expectedByName has a non-empty queue for name, used by C4 when the shim
// calls a tool on a server-level bridge URL carrying no conversation id.
func (m *Manager) FindByExpectedTool(name string) *Conversation {
	for _, c := range m.sortedConversations() {
		if c.State.HasExpectedTool(name) {
			return c
		}
	}
	return nil
}
