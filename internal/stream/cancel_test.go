package stream

import (
	"context"
	"errors"
	"testing"
)

func TestCancelRegistry_Cancel_UnknownStreamReturnsFalse(t *testing.T) {
	r := NewCancelRegistry()
	if r.Cancel("missing") {
		t.Fatal("Cancel should report false for an unknown stream id")
	}
}

func TestCancelRegistry_Cancel_SignalsRegisteredCause(t *testing.T) {
	r := NewCancelRegistry()
	ctx, cancel := context.WithCancelCause(context.Background())
	r.register("s1", cancel)

	if !r.Cancel("s1") {
		t.Fatal("Cancel should report true for a registered stream id")
	}

	<-ctx.Done()
	if !errors.Is(context.Cause(ctx), ErrClientCancel) {
		t.Fatalf("cause = %v, want ErrClientCancel", context.Cause(ctx))
	}
}

func TestCancelRegistry_Unregister_MakesIDUnknownAgain(t *testing.T) {
	r := NewCancelRegistry()
	_, cancel := context.WithCancelCause(context.Background())
	r.register("s1", cancel)
	r.unregister("s1")

	if r.Cancel("s1") {
		t.Fatal("Cancel should report false once a stream id has been unregistered")
	}
}
