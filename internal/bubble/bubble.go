package bubble

// Frame is the wire shape of a single NDJSON event: a flat JSON object.
// The stream sink stamps streamId/seq/type on top of whatever a frame
// producer passes here.
type Frame = map[string]any

// Sink is the minimal surface a Session needs from a stream sink. Defined
// here (rather than imported from the stream package) so that bubble has
// no dependency on stream; *stream.Sink satisfies this interface
// structurally.
type Sink interface {
	Emit(frame Frame)
}

// Bubble is a bound, mutable message fragment inside one Session. Once
// done is true, no further content/config mutation produces a frame.
type Bubble struct {
	id        string
	role      string
	kind      string
	content   string
	config    Config
	createdAt string
	done      bool

	session        *Session
	sessionVersion uint64
}

func (b *Bubble) ID() string      { return b.id }
func (b *Bubble) Role() string    { return b.role }
func (b *Bubble) Type() string    { return b.kind }
func (b *Bubble) Content() string { return b.content }
func (b *Bubble) IsDone() bool    { return b.done }

// stale reports whether the owning session has been cleared since this
// bubble was created (spec.md §9's "references already held by the
// handler become stale" clause). A stale bubble silently ignores mutation
// attempts.
func (b *Bubble) stale() bool {
	return b.session != nil && b.session.isStale(b.sessionVersion)
}

// Set replaces content wholesale, emitting a "set" frame if a sink is
// attached and the bubble is not done.
func (b *Bubble) Set(text string) {
	if b.done || b.stale() {
		return
	}
	b.mutate(func() (Frame, bool) {
		b.content = text
		return Frame{"type": "set", "bubbleId": b.id, "content": b.content}, true
	})
}

// Stream appends to content, emitting a "delta" frame if a sink is
// attached and the bubble is not done.
func (b *Bubble) Stream(text string) {
	if b.done || b.stale() {
		return
	}
	b.mutate(func() (Frame, bool) {
		b.content += text
		return Frame{"type": "delta", "bubbleId": b.id, "content": text}, true
	})
}

// Config applies a further config patch to the bubble, merging via the
// two-level color rule and emitting the effective patch.
func (b *Bubble) Config(opts ...Option) error {
	if b.done || b.stale() {
		return nil
	}
	patch, err := buildPatch(opts)
	if err != nil {
		return err
	}
	b.mutate(func() (Frame, bool) {
		if patch.Role != nil {
			b.role = *patch.Role
		}
		if patch.Type != nil {
			b.kind = *patch.Type
		}
		b.config = applyPatch(b.config, patch.Config)
		if patch.Empty() {
			return nil, false
		}
		return Frame{"type": "config", "bubbleId": b.id, "patch": patch.WireMap()}, true
	})
	return nil
}

// Done marks the bubble finalized and emits a "done" frame exactly once.
func (b *Bubble) Done() {
	if b.done || b.stale() {
		return
	}
	b.mutate(func() (Frame, bool) {
		b.done = true
		return Frame{"type": "done", "bubbleId": b.id}, true
	})
}

// mutate applies fn's mutation and, if fn reports a frame, emits it. When
// the bubble belongs to a session, this happens under Session.mutateBubble
// so it can't race the controller's FinalizePending/Clear/DetachStream
// touching the same b.done/session fields from another goroutine (the
// abandoned-handler scenario stream.Controller.Run's cancellation path
// produces). A session-less bubble (built by FromRecord and never bound to
// a session) has no such concurrent writer, so it applies fn directly.
func (b *Bubble) mutate(fn func() (Frame, bool)) {
	if b.session == nil {
		fn()
		return
	}
	b.session.mutateBubble(b, fn)
}

// markDone is used by Session.FinalizePending to auto-finalize bubbles the
// handler left open, without re-running Done's stale/done guard twice.
func (b *Bubble) markDone() bool {
	if b.done {
		return false
	}
	b.done = true
	return true
}

// Record snapshots the bubble as a plain, JSON-serializable record.
func (b *Bubble) Record() Record {
	createdAt := b.createdAt
	return Record{
		ID:        b.id,
		Role:      b.role,
		Content:   b.content,
		Type:      b.kind,
		Config:    b.config,
		CreatedAt: &createdAt,
	}
}

// ToOpenAIMessage converts this bubble to an OpenAI-style chat message.
func (b *Bubble) ToOpenAIMessage() map[string]string {
	return map[string]string{"role": b.role, "content": b.content}
}
