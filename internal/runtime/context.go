// Package runtime implements the active-context binding (C6) and the
// handler registry (C7). The ambient binding is expressed the idiomatic
// Go way: as a value carried on context.Context, passed explicitly into
// every handler invocation, rather than as goroutine-local storage (which
// Go has no public mechanism for). This satisfies the "isolated between
// concurrent requests, cleared automatically on return" requirement
// without any process-global state.
package runtime

import (
	"context"

	"bubblestream/internal/apierror"
	"bubblestream/internal/bubble"
)

type ctxKey struct{}

// ActiveContext is the per-invocation binding visible to handler code:
// the session it may mutate, the sink (if any) mutations should emit to,
// and the session store (needed for clear_conversation(id) with an
// explicit, possibly different, conversation id).
type ActiveContext struct {
	Session *bubble.Session
	Sink    bubble.Sink // nil for the no-sink history path
	Store   *bubble.SessionStore
}

// WithActiveContext binds ac for the dynamic extent of ctx — every
// function that receives the returned context (including further
// goroutines spawned with it) can look it up via the package-level
// facade functions below.
func WithActiveContext(ctx context.Context, ac *ActiveContext) context.Context {
	return context.WithValue(ctx, ctxKey{}, ac)
}

func activeFrom(ctx context.Context) (*ActiveContext, bool) {
	ac, ok := ctx.Value(ctxKey{}).(*ActiveContext)
	return ac, ok
}

func requireActive(ctx context.Context) (*ActiveContext, error) {
	ac, ok := activeFrom(ctx)
	if !ok {
		return nil, apierror.ErrNoActiveContext
	}
	return ac, nil
}

func requireSink(ctx context.Context) (*ActiveContext, error) {
	ac, err := requireActive(ctx)
	if err != nil {
		return nil, err
	}
	if ac.Sink == nil {
		return nil, apierror.ErrNoActiveContext
	}
	return ac, nil
}

// Bubble builds a detached Template — pure, no context required, mirroring
// spec.md §6.3's bubble(...) constructor.
func Bubble(id string, opts ...bubble.Option) (*bubble.Template, error) {
	return bubble.New(id, opts...)
}

// Send binds tmpl into the active context's session. Requires an active
// context; succeeds without a sink (marking the bubble done immediately),
// to support the no-stream history path.
func Send(ctx context.Context, tmpl *bubble.Template) (*bubble.Bubble, error) {
	ac, err := requireActive(ctx)
	if err != nil {
		return nil, err
	}
	return tmpl.Send(ac.Session)
}

// AccessBubble looks up a previously bound bubble by id. Requires an
// active context and an attached sink, per spec.md §4.5.
func AccessBubble(ctx context.Context, id string) (*bubble.Bubble, error) {
	ac, err := requireSink(ctx)
	if err != nil {
		return nil, err
	}
	return ac.Session.Get(id)
}

// ClearConversation clears the active session when conversationID is
// empty, or the named conversation's session via the store otherwise.
func ClearConversation(ctx context.Context, conversationID string) error {
	ac, err := requireActive(ctx)
	if err != nil {
		return err
	}
	if conversationID == "" {
		ac.Session.Clear()
		return nil
	}
	if ac.Store != nil {
		ac.Store.Clear(conversationID)
	}
	return nil
}

// LoadHistory bulk-seeds the active session's bubbles from plain records,
// ported from the original's load(context) (spec SPEC_FULL.md §4.3).
func LoadHistory(ctx context.Context, records []bubble.Record) error {
	ac, err := requireActive(ctx)
	if err != nil {
		return err
	}
	ac.Session.LoadHistory(records)
	return nil
}
