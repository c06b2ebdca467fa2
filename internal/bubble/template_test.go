package bubble

import "testing"

func TestTemplate_Send_WithoutSink_MarksDoneImmediately(t *testing.T) {
	session := newSession("conv-1") // no sink attached
	tmpl, _ := New("b1")
	b, err := tmpl.Send(session)
	if err != nil {
		t.Fatalf("Send error: %v", err)
	}
	if !b.IsDone() {
		t.Fatal("a bubble sent with no attached sink should be done immediately")
	}
}

func TestTemplate_Send_EmitsPrefilledContentAfterConfig(t *testing.T) {
	sink := &recordingSink{}
	session := newTestSession(sink)

	tmpl, _ := New("b1")
	tmpl.SetContent("prefilled")
	b, err := tmpl.Send(session)
	if err != nil {
		t.Fatalf("Send error: %v", err)
	}

	if len(sink.frames) != 2 {
		t.Fatalf("expected config then set frames, got %v", sink.frames)
	}
	if sink.frames[0]["type"] != "config" || sink.frames[1]["type"] != "set" {
		t.Fatalf("expected [config,set], got [%v,%v]", sink.frames[0]["type"], sink.frames[1]["type"])
	}
	if b.Content() != "prefilled" {
		t.Fatalf("content = %q, want %q", b.Content(), "prefilled")
	}
}

func TestTemplate_Send_ReusableAcrossMultipleBubbles(t *testing.T) {
	session := newSession("conv-1")
	tmpl, _ := New("", WithRole("assistant"))

	first, err := tmpl.Send(session)
	if err != nil {
		t.Fatalf("first Send error: %v", err)
	}
	second, err := tmpl.Send(session)
	if err != nil {
		t.Fatalf("second Send error: %v", err)
	}
	if first.ID() == second.ID() {
		t.Fatal("sending a reused auto-id template twice should mint distinct bubble ids")
	}
}

func TestRecordRoundTrip_DefaultsRoleAndType(t *testing.T) {
	rec := Record{ID: "b1", Content: "hi"}
	b := FromRecord(rec)
	if b.Role() != "assistant" {
		t.Errorf("default role = %q, want %q", b.Role(), "assistant")
	}
	if b.Type() != "text" {
		t.Errorf("default type = %q, want %q", b.Type(), "text")
	}
	if !b.IsDone() {
		t.Error("a bubble reconstructed from a record should be done")
	}

	out := b.Record()
	if out.ID != "b1" || out.Content != "hi" || out.Role != "assistant" || out.Type != "text" {
		t.Fatalf("round trip mismatch: %+v", out)
	}
}

func TestToOpenAIMessage_DefaultsOnEmptyRecord(t *testing.T) {
	msg := ToOpenAIMessage(Record{Content: "hello"})
	if msg["role"] != "assistant" {
		t.Errorf("role = %q, want %q", msg["role"], "assistant")
	}
	if msg["content"] != "hello" {
		t.Errorf("content = %q, want %q", msg["content"], "hello")
	}
}
