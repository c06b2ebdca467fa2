package stream

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"bubblestream/internal/apierror"
	"bubblestream/internal/bubble"
	"bubblestream/internal/bubbleid"
	"bubblestream/internal/runtime"
)

// Config holds the controller's timing and buffering parameters, sourced
// from internal/config.
type Config struct {
	Heartbeat           time.Duration
	IdleTimeout         time.Duration
	FirstEventTimeout   time.Duration
	StreamQueueCapacity int
}

// Controller drives one streaming request end to end (C8): allocate
// stream id, emit lifecycle events, run the handler under an active
// context, enforce timeouts, honor cancellation, finalize, and close.
type Controller struct {
	cfg      Config
	logger   *slog.Logger
	registry *CancelRegistry
}

func NewController(cfg Config, logger *slog.Logger, registry *CancelRegistry) *Controller {
	return &Controller{cfg: cfg, logger: logger, registry: registry}
}

func (c *Controller) Registry() *CancelRegistry { return c.registry }

// RunRequest bundles the inputs to Run.
type RunRequest struct {
	ConversationID string // empty means "mint a new one"
	UserID         string
	Message        string
	Handlers       *runtime.HandlerRegistry
	Store          *bubble.SessionStore
	Writer         Writer
	Flusher        Flusher
	// OnAttached is invoked exactly once, synchronously, right after the
	// sink successfully attaches to the session and before any frame is
	// written — giving the HTTP adapter its one chance to flip the
	// response to 200 + streaming headers.
	OnAttached func(conversationID, streamID string)
}

// Run executes one streaming request. If the session already has a sink
// attached, it returns apierror.ErrStreamAlreadyAttached immediately,
// without calling OnAttached or writing anything, so the adapter can
// respond 409. Otherwise Run always returns nil: every other failure mode
// is expressed as a terminal frame written to the stream, never a Go
// error.
func (c *Controller) Run(ctx context.Context, req RunRequest) error {
	minted := req.ConversationID == ""
	conversationID := req.ConversationID
	if minted {
		conversationID = bubbleid.NewConversationID()
	}

	session := req.Store.GetOrCreate(conversationID)
	streamID := bubbleid.New()
	sink := NewSink(streamID, req.Writer, req.Flusher, c.cfg.StreamQueueCapacity)

	if err := session.AttachStream(sink); err != nil {
		sink.Close("attach_failed")
		return err
	}
	if req.OnAttached != nil {
		req.OnAttached(conversationID, streamID)
	}

	handlerCtx, cancel := context.WithCancelCause(ctx)
	c.registry.register(streamID, cancel)
	defer c.registry.unregister(streamID)

	active := &runtime.ActiveContext{Session: session, Sink: sink, Store: req.Store}
	handlerCtx = runtime.WithActiveContext(handlerCtx, active)

	activityCh := make(chan struct{}, 1)
	sink.OnActivity(func() {
		select {
		case activityCh <- struct{}{}:
		default:
		}
	})

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		c.runHeartbeat(handlerCtx, sink)
	}()
	go func() {
		defer wg.Done()
		c.runTimeoutSupervisor(handlerCtx, cancel, activityCh)
	}()

	sink.Emit(bubble.Frame{"type": "started", "conversationId": conversationID})
	if minted {
		sink.Emit(bubble.Frame{"type": "meta", "conversationId": conversationID})
	}

	handlerErrCh := make(chan error, 1)
	go func() {
		handlerErrCh <- c.runHandlers(handlerCtx, req, sink, conversationID, minted)
	}()

	var term terminal
	select {
	case err := <-handlerErrCh:
		if err != nil {
			term = terminal{kind: "error", reason: "handler_error", message: err.Error()}
		} else {
			term = terminal{kind: "done", reason: "normal"}
		}
		cancel(nil)
	case <-handlerCtx.Done():
		term = classifyCause(context.Cause(handlerCtx))
	}

	wg.Wait()

	session.FinalizePending(c.logger)
	sink.Emit(term.frame())

	session.DetachStream()
	sink.Close(term.reason)

	return nil
}

// Cancel signals the named stream for out-of-band cancellation, used by
// the /api/streams/{id}/cancel endpoint.
func (c *Controller) Cancel(streamID string) bool {
	return c.registry.Cancel(streamID)
}

type terminal struct {
	kind    string // "done" | "interrupted" | "error"
	reason  string
	message string
}

func (t terminal) frame() bubble.Frame {
	f := bubble.Frame{"type": t.kind, "reason": t.reason}
	if t.message != "" {
		f["message"] = t.message
	}
	return f
}

func classifyCause(cause error) terminal {
	switch {
	case errors.Is(cause, ErrClientCancel):
		return terminal{kind: "interrupted", reason: "client_cancel"}
	case errors.Is(cause, ErrDisconnect):
		return terminal{kind: "interrupted", reason: "disconnect"}
	case errors.Is(cause, ErrIdleTimeout):
		return terminal{kind: "interrupted", reason: "idle_timeout"}
	case errors.Is(cause, ErrFirstEventTimeout):
		return terminal{kind: "interrupted", reason: "first_event_timeout"}
	default:
		return terminal{kind: "interrupted", reason: "disconnect"}
	}
}

func (c *Controller) runHeartbeat(ctx context.Context, sink *Sink) {
	ticker := time.NewTicker(c.cfg.Heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sink.EmitHeartbeat()
		}
	}
}

// runTimeoutSupervisor implements the adaptive single-timer scheme: before
// the first activity pulse, wait up to FirstEventTimeout; after the first
// pulse, every subsequent wait resets to IdleTimeout. Mirrors the
// original's single asyncio.wait_for loop with a switching timeout value.
func (c *Controller) runTimeoutSupervisor(ctx context.Context, cancel context.CancelCauseFunc, activity <-chan struct{}) {
	timeout := c.cfg.FirstEventTimeout
	firstEventTimeout := true
	for {
		select {
		case <-ctx.Done():
			return
		case <-activity:
			timeout = c.cfg.IdleTimeout
			firstEventTimeout = false
		case <-time.After(timeout):
			if firstEventTimeout {
				cancel(ErrFirstEventTimeout)
			} else {
				cancel(ErrIdleTimeout)
			}
			return
		}
	}
}

func (c *Controller) runHandlers(ctx context.Context, req RunRequest, sink *Sink, conversationID string, minted bool) error {
	hasMessage := strings.TrimSpace(req.Message) != ""
	if hasMessage {
		sink.Emit(bubble.Frame{"type": "progress", "stage": "processing"})
	}

	if minted {
		if h, ok := req.Handlers.NewChat(); ok {
			if err := h(ctx, runtime.NewChatContext{ConversationID: conversationID, UserID: req.UserID}); err != nil {
				return err
			}
		}
	}

	if !hasMessage {
		return nil
	}

	if h, ok := req.Handlers.Message(); ok {
		if err := h(ctx, runtime.MessageContext{ConversationID: conversationID, UserID: req.UserID, Message: req.Message}); err != nil {
			return err
		}
	}
	return nil
}

// RunHistory invokes the history handler (if any) inside an active
// context with no sink attached, falling back to exporting the session
// when the handler is unset or returns nothing (spec.md §4.8/§6.1).
func RunHistory(ctx context.Context, handlers *runtime.HandlerRegistry, store *bubble.SessionStore, conversationID, userID string) ([]bubble.Record, error) {
	session := store.GetOrCreate(conversationID)
	active := &runtime.ActiveContext{Session: session, Sink: nil, Store: store}
	ctx = runtime.WithActiveContext(ctx, active)

	if h, ok := handlers.History(); ok {
		records, err := h(ctx, runtime.HistoryContext{ConversationID: conversationID, UserID: userID})
		if err != nil {
			return nil, apierror.NewHandlerError(err)
		}
		if records != nil {
			return records, nil
		}
	}
	return session.ExportMessages(), nil
}
