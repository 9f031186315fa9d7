package assistant

import (
	"time"

	"github.com/appforge-ai/console-api/internal/model"
)

// CloseReason classifies how an assistant turn was closed.
type CloseReason string

const (
	// CloseParsed means the buffer parsed as a completed envelope.
	CloseParsed CloseReason = "parsed"
	// CloseCeiling means the buffer exceeded the parse ceiling.
	CloseCeiling CloseReason = "ceiling"
	// CloseTimeout means the timeout supervisor fired.
	CloseTimeout CloseReason = "timeout"
	// CloseReset means the conversation was discarded while streaming.
	CloseReset CloseReason = "reset"
)

// Closure is the terminal outcome of a stream session. Result is set only
// for parsed closures; Raw carries the accumulated text for forced ones.
type Closure struct {
	Result *model.StructuredResult
	Raw    string
	Reason CloseReason
}

// FeedOutcome reports what a fragment did to the session.
type FeedOutcome int

const (
	// FeedOpen means the response is not yet complete.
	FeedOpen FeedOutcome = iota
	// FeedClosed means this fragment closed the turn.
	FeedClosed
	// FeedIgnored means the session was already closed; the fragment was
	// discarded entirely.
	FeedIgnored
	// FeedDuplicate means the fragment completed a result structurally
	// identical to one already committed; it was dropped silently.
	FeedDuplicate
)

// Guard is the one-shot completion latch with duplicate suppression. A
// committed result's fingerprint is retained so a structurally identical
// candidate is never committed twice.
type Guard struct {
	lastFingerprint string
	closed          bool
}

// Admit commits a candidate result: it records the fingerprint used for
// duplicate detection and latches the session closed. It returns false when
// a result was already committed.
func (g *Guard) Admit(r *model.StructuredResult) bool {
	if g.closed {
		return false
	}
	g.lastFingerprint = r.Fingerprint()
	g.closed = true
	return true
}

// IsDuplicate reports whether a candidate restates the committed result.
// Forced closures record no fingerprint, so nothing duplicates them.
func (g *Guard) IsDuplicate(r *model.StructuredResult) bool {
	return g.closed && g.lastFingerprint != "" && r.Fingerprint() == g.lastFingerprint
}

// Closed reports whether a result has been committed for this session.
func (g *Guard) Closed() bool {
	return g.closed
}

// ForceClose latches the session without a committed result (timeout or
// ceiling path).
func (g *Guard) ForceClose() {
	g.closed = true
}

// StreamSession is the transient per-turn accumulator: it lives for one
// assistant turn and is discarded once that turn closes or times out.
type StreamSession struct {
	ID        string
	StartedAt time.Time

	parser *Parser
	guard  Guard
}

// NewStreamSession creates a session for one outstanding request.
func NewStreamSession(id string, ceiling int) *StreamSession {
	return &StreamSession{
		ID:        id,
		StartedAt: time.Now(),
		parser:    NewParser(ceiling),
	}
}

// Feed processes one streamed fragment. Once the session is closed no
// fragment can commit anything further; a redelivered closing frame that
// restates the committed result is reported as a duplicate so redelivery
// stays observable, and all other residual fragments are dropped outright.
func (s *StreamSession) Feed(fragment string) (FeedOutcome, *Closure) {
	if s.guard.Closed() {
		if r, ok := NewParser(0).Feed(fragment); ok && s.guard.IsDuplicate(r) {
			return FeedDuplicate, nil
		}
		return FeedIgnored, nil
	}

	if result, ok := s.parser.Feed(fragment); ok {
		s.guard.Admit(result)
		return FeedClosed, &Closure{Result: result, Reason: CloseParsed}
	}

	if s.parser.OverCeiling() {
		s.guard.ForceClose()
		return FeedClosed, &Closure{Raw: s.parser.Raw(), Reason: CloseCeiling}
	}

	return FeedOpen, nil
}

// ForceClose closes the session with the raw accumulated text and no
// structured result. It returns false if the session already closed.
func (s *StreamSession) ForceClose(reason CloseReason) (*Closure, bool) {
	if s.guard.Closed() {
		return nil, false
	}
	s.guard.ForceClose()
	return &Closure{Raw: s.parser.Raw(), Reason: reason}, true
}

// Closed reports whether the session has latched.
func (s *StreamSession) Closed() bool {
	return s.guard.Closed()
}

// BufferLen returns the accumulated raw buffer length.
func (s *StreamSession) BufferLen() int {
	return s.parser.Len()
}
