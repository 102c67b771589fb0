// Package convstate implements the per-conversation tool-bridge state machine
// (C2): expected-call queues, the pending-call table, the session-active
// flag, and the streaming-done rendezvous. A single mutex guards the whole
// struct, per spec §9 ("Per-conversation mutable graph → arena + mutex").
package convstate

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"xcodebridge/internal/bridgeerrors"
	"xcodebridge/internal/toolcache"
)

// ToolCallTimeout is the duration a parked MCP tool call waits for resolution
// before it is rejected and evicted.
const ToolCallTimeout = 5 * time.Minute

// toolCallResult is what a pending tool call's one-shot channel carries: a
// successful result or a rejection cause, never both.
type toolCallResult struct {
	value any
	err   error
}

type pendingCall struct {
	resultCh chan toolCallResult
	timer    *time.Timer
	once     sync.Once
}

func (p *pendingCall) complete(value any, err error) {
	p.once.Do(func() {
		if p.timer != nil {
			p.timer.Stop()
		}
		p.resultCh <- toolCallResult{value: value, err: err}
		close(p.resultCh)
	})
}

// State is one Conversation's tool-bridge state.
type State struct {
	mu sync.Mutex

	tools *toolcache.Cache

	expectedByName  map[string][]string     // tool name -> FIFO queue of call ids
	pendingByCallID map[string]*pendingCall // call id -> in-flight rendezvous

	reply         http.ResponseWriter
	streamingDone chan struct{} // non-nil while a waiter may be listening

	sessionEndCallback func()
	sessionActive      bool
	hadError           bool
}

// New returns a fresh Conversation State: sessionActive=false, empty maps.
func New() *State {
	return &State{
		tools:           toolcache.New(),
		expectedByName:  make(map[string][]string),
		pendingByCallID: make(map[string]*pendingCall),
	}
}

// Tools returns the state's tool cache (C1), one per Conversation State.
func (s *State) Tools() *toolcache.Cache {
	return s.tools
}

// RegisterExpected appends callID to the queue for toolName. Invoked by C6 as
// it emits tool_use blocks, strictly before the corresponding
// content_block_start becomes visible to Xcode.
func (s *State) RegisterExpected(callID, toolName string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expectedByName[toolName] = append(s.expectedByName[toolName], callID)
}

// ToolCallOutcome is the eventual resolution of a parked MCP tool call.
type ToolCallOutcome struct {
	Value any
	Err   error
}

// RegisterMCPRequest is invoked by C4 when the shim posts a tool-call. It
// returns a channel that yields exactly one ToolCallOutcome once resolved,
// rejected, or timed out. If the queue for name is empty, the returned
// channel immediately yields ErrNoExpectedTool.
func (s *State) RegisterMCPRequest(name string) <-chan ToolCallOutcome {
	out := make(chan ToolCallOutcome, 1)

	s.mu.Lock()
	queue := s.expectedByName[name]
	if len(queue) == 0 {
		s.mu.Unlock()
		out <- ToolCallOutcome{Err: fmt.Errorf("%w for %s", bridgeerrors.ErrNoExpectedTool, name)}
		close(out)
		return out
	}
	callID := queue[0]
	s.expectedByName[name] = queue[1:]

	pc := &pendingCall{resultCh: make(chan toolCallResult, 1)}
	pc.timer = time.AfterFunc(ToolCallTimeout, func() {
		pc.complete(nil, fmt.Errorf("%w: %s", bridgeerrors.ErrToolCallTimeout, callID))
		s.mu.Lock()
		delete(s.pendingByCallID, callID)
		s.mu.Unlock()
	})
	s.pendingByCallID[callID] = pc
	s.mu.Unlock()

	go func() {
		r := <-pc.resultCh
		out <- ToolCallOutcome{Value: r.value, Err: r.err}
		close(out)
	}()
	return out
}

// ResolveToolCall resolves callID with result if it is currently pending. It
// returns false if no such pending id exists.
func (s *State) ResolveToolCall(callID string, result any) bool {
	s.mu.Lock()
	pc, ok := s.pendingByCallID[callID]
	if ok {
		delete(s.pendingByCallID, callID)
	}
	s.mu.Unlock()
	if !ok {
		return false
	}
	pc.complete(result, nil)
	return true
}

// HasPending reports whether pendingByCallId or any expectedByName queue is
// non-empty.
func (s *State) HasPending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.pendingByCallID) > 0 {
		return true
	}
	for _, q := range s.expectedByName {
		if len(q) > 0 {
			return true
		}
	}
	return false
}

// HasExpectedTool reports whether the queue for name is non-empty.
func (s *State) HasExpectedTool(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.expectedByName[name]) > 0
}

// ContainsID reports whether id appears in pendingByCallId or any
// expectedByName queue, used by findByContinuation's scan.
func (s *State) ContainsID(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.pendingByCallID[id]; ok {
		return true
	}
	for _, q := range s.expectedByName {
		for _, c := range q {
			if c == id {
				return true
			}
		}
	}
	return false
}

// SessionActive reports the current sessionActive flag.
func (s *State) SessionActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionActive
}

// MarkSessionActive flips sessionActive to true.
func (s *State) MarkSessionActive() {
	s.mu.Lock()
	s.sessionActive = true
	s.mu.Unlock()
}

// MarkSessionInactive clears every expected queue, rejects every pending call
// with ErrSessionEnded, and fires the session-end callback exactly once.
func (s *State) MarkSessionInactive() {
	s.drain(bridgeerrors.ErrSessionEnded)
}

// Cleanup performs the same drain as MarkSessionInactive but with
// ErrSessionCleanup as the rejection cause, for hard teardown (client
// disconnect, manager removal).
func (s *State) Cleanup() {
	s.drain(bridgeerrors.ErrSessionCleanup)
}

func (s *State) drain(cause error) {
	s.mu.Lock()
	s.sessionActive = false
	s.expectedByName = make(map[string][]string)
	pending := s.pendingByCallID
	s.pendingByCallID = make(map[string]*pendingCall)
	cb := s.sessionEndCallback
	s.sessionEndCallback = nil
	s.mu.Unlock()

	for _, pc := range pending {
		pc.complete(nil, cause)
	}
	if cb != nil {
		cb()
	}
}

// SetSessionEndCallback installs the single-shot notifier the manager uses
// for auto-removal.
func (s *State) SetSessionEndCallback(cb func()) {
	s.mu.Lock()
	s.sessionEndCallback = cb
	s.mu.Unlock()
}

// SetHadError flips the sticky hadError flag.
func (s *State) SetHadError() {
	s.mu.Lock()
	s.hadError = true
	s.mu.Unlock()
}

// HadError reports the sticky hadError flag.
func (s *State) HadError() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hadError
}

// NotifyStreamingDone resolves the current streamingDone rendezvous, if any
// waiter is listening; a notify with no waiter is a no-op.
func (s *State) NotifyStreamingDone() {
	s.mu.Lock()
	ch := s.streamingDone
	s.streamingDone = nil
	s.mu.Unlock()
	if ch != nil {
		close(ch)
	}
}

// WaitForStreamingDone blocks until NotifyStreamingDone is called.
func (s *State) WaitForStreamingDone() {
	s.mu.Lock()
	if s.streamingDone == nil {
		s.streamingDone = make(chan struct{})
	}
	ch := s.streamingDone
	s.mu.Unlock()
	<-ch
}

// SetReply attaches the HTTP response writer the streaming transform writes
// SSE frames to.
func (s *State) SetReply(w http.ResponseWriter) {
	s.mu.Lock()
	s.reply = w
	s.mu.Unlock()
}

// ClearReply detaches the current reply.
func (s *State) ClearReply() {
	s.mu.Lock()
	s.reply = nil
	s.mu.Unlock()
}

// CurrentReply returns the currently attached reply, or nil.
func (s *State) CurrentReply() http.ResponseWriter {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reply
}
