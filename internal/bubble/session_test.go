package bubble

import (
	"sync"
	"testing"
)

// lockedRecordingSink is recordingSink plus its own mutex, so a concurrent
// writer and a concurrent reader of its frames don't themselves race each
// other and mask the race under test.
type lockedRecordingSink struct {
	mu     sync.Mutex
	frames []Frame
}

func (s *lockedRecordingSink) Emit(f Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = append(s.frames, f)
}

func TestSession_AttachStream_RejectsSecondSink(t *testing.T) {
	session := newSession("conv-1")
	if err := session.AttachStream(&recordingSink{}); err != nil {
		t.Fatalf("first AttachStream should succeed, got %v", err)
	}
	if err := session.AttachStream(&recordingSink{}); err == nil {
		t.Fatal("second AttachStream should fail while one sink is attached")
	}
	session.DetachStream()
	if err := session.AttachStream(&recordingSink{}); err != nil {
		t.Fatalf("AttachStream should succeed again after DetachStream, got %v", err)
	}
}

func TestSession_FinalizePending_EmitsDoneForOpenBubbles(t *testing.T) {
	sink := &recordingSink{}
	session := newTestSession(sink)

	tmpl1, _ := New("b1")
	b1, _ := tmpl1.Send(session)
	tmpl2, _ := New("b2")
	b2, _ := tmpl2.Send(session)
	b2.Done()

	sink.frames = nil
	finalized := session.FinalizePending(nil)

	if len(finalized) != 1 || finalized[0] != b1.ID() {
		t.Fatalf("expected only b1 finalized, got %v", finalized)
	}
	if !b1.IsDone() {
		t.Fatal("b1 should be marked done")
	}
	if len(sink.frames) != 1 || sink.frames[0]["bubbleId"] != b1.ID() {
		t.Fatalf("expected one done frame for b1, got %v", sink.frames)
	}
}

func TestSession_Clear_BumpsVersionAndDropsBubbles(t *testing.T) {
	session := newSession("conv-1")
	tmpl, _ := New("b1")
	b, _ := tmpl.Send(session)

	session.Clear()

	if _, err := session.Get(b.ID()); err == nil {
		t.Fatal("Get should fail for a bubble cleared from the session")
	}
	if !b.stale() {
		t.Fatal("a bubble created before Clear should be stale afterward")
	}
}

func TestSession_ExportMessages_PreservesOrder(t *testing.T) {
	session := newSession("conv-1")
	tmpl1, _ := New("b1")
	tmpl1.SetContent("first")
	bubble1, _ := tmpl1.Send(session)
	tmpl2, _ := New("b2")
	tmpl2.SetContent("second")
	bubble2, _ := tmpl2.Send(session)

	records := session.ExportMessages()
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].ID != bubble1.ID() || records[1].ID != bubble2.ID() {
		t.Fatalf("expected order [%s,%s], got [%s,%s]", bubble1.ID(), bubble2.ID(), records[0].ID, records[1].ID)
	}
}

func TestSessionStore_GetOrCreate_ReturnsSameSessionByID(t *testing.T) {
	store := NewSessionStore()
	a := store.GetOrCreate("conv-1")
	b := store.GetOrCreate("conv-1")
	if a != b {
		t.Fatal("GetOrCreate should return the same *Session for the same conversation id")
	}
	other := store.GetOrCreate("conv-2")
	if a == other {
		t.Fatal("GetOrCreate should return distinct sessions for distinct conversation ids")
	}
}

// TestBubble_AbandonedHandler_RacesDetachAndClear models the scenario an
// abandoned handler goroutine creates: the controller has already moved on
// (DetachStream, then a fresh Clear for a new turn) while the handler
// goroutine it gave up on keeps calling Set/Stream/Done against its bubble.
// Under `go test -race`, this must pass without the race detector firing on
// session.sink/session.version.
func TestBubble_AbandonedHandler_RacesDetachAndClear(t *testing.T) {
	sink := &lockedRecordingSink{}
	session := newTestSession(sink)
	tmpl, _ := New("b1")
	b, _ := tmpl.Send(session)

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			b.Stream("x")
			b.Set("y")
		}
		b.Done()
	}()

	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			session.DetachStream()
			session.Clear()
		}
	}()

	wg.Wait()
}

func TestLoadHistory_MarksEverythingDoneAndEmitsNothing(t *testing.T) {
	sink := &recordingSink{}
	session := newTestSession(sink)
	createdAt := "2026-01-01T00:00:00.000Z"
	session.LoadHistory([]Record{
		{ID: "h1", Role: "user", Content: "hi", Type: "text", CreatedAt: &createdAt},
	})

	if len(sink.frames) != 0 {
		t.Fatalf("LoadHistory must not emit frames, got %v", sink.frames)
	}
	b, err := session.Get("h1")
	if err != nil {
		t.Fatalf("Get(h1) error: %v", err)
	}
	if !b.IsDone() {
		t.Fatal("loaded bubbles must be marked done")
	}
}
