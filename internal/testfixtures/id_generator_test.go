package testfixtures

import "testing"

func TestIDGeneratorProducesSequentialIDs(t *testing.T) {
	gen := NewIDGenerator("meeting")

	first := gen.Next()
	second := gen.Next()

	if first != "meeting-1" || second != "meeting-2" {
		t.Fatalf("unexpected identifiers: %q, %q", first, second)
	}
	if gen.Issued() != 2 {
		t.Fatalf("expected 2 issued, got %d", gen.Issued())
	}
}

func TestIDGeneratorReset(t *testing.T) {
	gen := NewIDGenerator("")
	_ = gen.Next()

	gen.Reset("tok")
	if next := gen.Next(); next != "tok-1" {
		t.Fatalf("expected tok-1 after reset, got %q", next)
	}

	gen.Reset("")
	if next := gen.Next(); next != "tok-1" {
		t.Fatalf("expected prefix to be kept, got %q", next)
	}
}

func TestIDGeneratorTokenFunc(t *testing.T) {
	gen := NewIDGenerator("token")
	next := gen.TokenFunc()

	token, err := next()
	if err != nil || token != "token-1" {
		t.Fatalf("unexpected token %q, err %v", token, err)
	}
}
