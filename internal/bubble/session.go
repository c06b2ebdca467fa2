package bubble

import (
	"log/slog"
	"sync"

	"bubblestream/internal/apierror"
)

// Session holds every bubble for one conversation, plus at most one
// attached stream sink (C4). Bubble mutation happens from the owning
// handler goroutine only, by convention (enforced by "one attached sink
// per session"); the mutex guards against the controller's concurrent
// finalize/detach racing an abandoned, uncooperative handler goroutine —
// a possibility on the Go side that a single-threaded event loop wouldn't
// have.
type Session struct {
	mu             sync.Mutex
	conversationID string
	order          []string
	bubbles        map[string]*Bubble
	sink           Sink
	version        uint64
}

func newSession(conversationID string) *Session {
	return &Session{
		conversationID: conversationID,
		bubbles:        make(map[string]*Bubble),
	}
}

func (s *Session) ConversationID() string { return s.conversationID }

func (s *Session) append(b *Bubble) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b.sessionVersion = s.version
	s.order = append(s.order, b.id)
	s.bubbles[b.id] = b
}

// Get looks up a bubble by id, failing with BubbleNotFound if absent or if
// it belonged to a generation cleared by a prior clear().
func (s *Session) Get(id string) (*Bubble, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bubbles[id]
	if !ok {
		return nil, apierror.NewBubbleNotFound(id)
	}
	return b, nil
}

// isStale reports whether version is behind the session's current
// generation, i.e. whether a Bubble holding it was created before the most
// recent Clear/LoadHistory. Locked: called from the handler goroutine while
// the controller may concurrently Clear via a different handler, or
// finalize/detach after the handler has been abandoned.
func (s *Session) isStale(version uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version != version
}

// snapshotSink returns the currently attached sink (or nil), for callers
// that need to test for its presence and then emit through it without
// holding s.mu across the Sink.Emit call.
func (s *Session) snapshotSink() Sink {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sink
}

// mutateBubble runs fn under s.mu and emits the frame it returns (if any)
// after releasing the lock, unless b is already done or stale — checked
// here, atomically with fn's mutation, rather than by the caller. This is
// what keeps an abandoned handler goroutine's Bubble.Set/Stream/Config/Done
// from racing FinalizePending's markDone or a concurrent Clear/
// DetachStream on the same *Bubble.
func (s *Session) mutateBubble(b *Bubble, fn func() (Frame, bool)) {
	s.mu.Lock()
	var frame Frame
	var ok bool
	if !b.done && s.version == b.sessionVersion {
		frame, ok = fn()
	}
	sink := s.sink
	s.mu.Unlock()
	if ok && sink != nil {
		sink.Emit(frame)
	}
}

// AttachStream binds sink as the session's single active stream sink,
// failing with StreamAlreadyAttached if one is already bound.
func (s *Session) AttachStream(sink Sink) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sink != nil {
		return apierror.ErrStreamAlreadyAttached
	}
	s.sink = sink
	return nil
}

// DetachStream clears the attached sink. Idempotent.
func (s *Session) DetachStream() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sink = nil
}

// FinalizePending emits a done frame for every bubble with done=false and
// marks it done, logging a diagnostic per bubble (ported from the
// original's warn_if_not_done).
func (s *Session) FinalizePending(logger *slog.Logger) []string {
	s.mu.Lock()
	var finalized []string
	for _, id := range s.order {
		b := s.bubbles[id]
		if b.markDone() {
			finalized = append(finalized, id)
		}
	}
	sink := s.sink
	s.mu.Unlock()

	for _, id := range finalized {
		if sink != nil {
			sink.Emit(Frame{"type": "done", "bubbleId": id})
		}
	}
	if len(finalized) > 0 && logger != nil {
		logger.Warn("auto-finalized bubbles left open by handler",
			"conversationId", s.conversationID, "bubbleIds", finalized)
	}
	return finalized
}

// ExportMessages returns the ordered list of bubbles as plain records, for
// the history endpoint's fallback path.
func (s *Session) ExportMessages() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Record, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.bubbles[id].Record())
	}
	return out
}

// Clear drops all bubbles and order; the sink (if any) remains attached
// and keeps emitting. Bumps version so stale Bubble references held by a
// handler become silent no-ops rather than raising.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.order = nil
	s.bubbles = make(map[string]*Bubble)
	s.version++
}

// LoadHistory replaces the session's bubbles wholesale from plain records,
// marking every loaded bubble done=true and emitting nothing — ported from
// the original's load(context) bulk history seeding.
func (s *Session) LoadHistory(records []Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.order = nil
	s.bubbles = make(map[string]*Bubble)
	s.version++
	version := s.version
	for _, rec := range records {
		b := FromRecord(rec)
		b.session = s
		b.sessionVersion = version
		b.done = true
		s.order = append(s.order, b.id)
		s.bubbles[b.id] = b
	}
}
