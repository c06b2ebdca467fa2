package runtime

import (
	"context"
	"testing"

	"bubblestream/internal/bubble"
)

func TestHandlerRegistry_UnsetHandlers_ReportAbsent(t *testing.T) {
	r := NewHandlerRegistry()
	if _, ok := r.NewChat(); ok {
		t.Fatal("expected no onNewChat handler registered")
	}
	if _, ok := r.Message(); ok {
		t.Fatal("expected no onMessage handler registered")
	}
	if _, ok := r.History(); ok {
		t.Fatal("expected no onHistory handler registered")
	}
}

func TestHandlerRegistry_LastRegistrationWins(t *testing.T) {
	r := NewHandlerRegistry()
	first := false
	second := false
	r.OnMessage(func(ctx context.Context, mc MessageContext) error { first = true; return nil })
	r.OnMessage(func(ctx context.Context, mc MessageContext) error { second = true; return nil })

	h, ok := r.Message()
	if !ok {
		t.Fatal("expected a registered onMessage handler")
	}
	if err := h(context.Background(), MessageContext{}); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if first || !second {
		t.Fatal("expected the most recently registered handler to win")
	}
}

func TestNewChatFunc_AdaptsPositionalSignature(t *testing.T) {
	var gotConv, gotUser string
	h := NewChatFunc(func(ctx context.Context, conversationID, userID string) error {
		gotConv, gotUser = conversationID, userID
		return nil
	})
	if err := h(context.Background(), NewChatContext{ConversationID: "c1", UserID: "u1"}); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if gotConv != "c1" || gotUser != "u1" {
		t.Fatalf("got (%q, %q), want (c1, u1)", gotConv, gotUser)
	}
}

func TestHistoryFunc_AdaptsPositionalSignature(t *testing.T) {
	want := []bubble.Record{{ID: "b1", Role: "user"}}
	h := HistoryFunc(func(ctx context.Context, conversationID, userID string) ([]bubble.Record, error) {
		return want, nil
	})
	got, err := h(context.Background(), HistoryContext{ConversationID: "c1", UserID: "u1"})
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if len(got) != 1 || got[0].ID != "b1" {
		t.Fatalf("got = %v, want %v", got, want)
	}
}

func TestHandlerRegistry_ConcurrentRegisterAndRead_DoesNotRace(t *testing.T) {
	r := NewHandlerRegistry()
	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			r.OnMessage(func(ctx context.Context, mc MessageContext) error { return nil })
		}
		close(done)
	}()
	for i := 0; i < 100; i++ {
		r.Message()
	}
	<-done
	if _, ok := r.Message(); !ok {
		t.Fatal("expected a handler to be registered after the loop")
	}
}
