package id

import "testing"

func TestNew_HasPrefix(t *testing.T) {
	tid := NewTaskID()
	if tid.IsNil() {
		t.Fatal("new ID should not be nil")
	}
	if tid.Prefix() != PrefixTask {
		t.Fatalf("expected prefix %q, got %q", PrefixTask, tid.Prefix())
	}
}

func TestParse_RoundTrip(t *testing.T) {
	orig := NewDeadLetterID()
	parsed, err := Parse(orig.String())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if parsed.String() != orig.String() {
		t.Fatalf("round trip mismatch: %q != %q", parsed.String(), orig.String())
	}
}

func TestParseWithPrefix_Mismatch(t *testing.T) {
	tid := NewTaskID()
	if _, err := ParseDeadLetterID(tid.String()); err == nil {
		t.Fatal("expected prefix mismatch error")
	}
}

func TestParse_Empty(t *testing.T) {
	if _, err := Parse(""); err == nil {
		t.Fatal("expected error for empty string")
	}
}

func TestNil_String(t *testing.T) {
	if Nil.String() != "" {
		t.Fatalf("nil ID should stringify to empty, got %q", Nil.String())
	}
	if !Nil.IsNil() {
		t.Fatal("Nil.IsNil() should be true")
	}
}

func TestMarshalText_RoundTrip(t *testing.T) {
	orig := NewWorkerID()
	data, err := orig.MarshalText()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var back ID
	if err := back.UnmarshalText(data); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back.String() != orig.String() {
		t.Fatalf("round trip mismatch: %q != %q", back.String(), orig.String())
	}
}
