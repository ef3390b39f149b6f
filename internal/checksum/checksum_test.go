package checksum

import "testing"

func TestSum(t *testing.T) {
	// Well-known digest of the empty input.
	if got := Sum(nil); got != "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855" {
		t.Errorf("Sum(nil) = %s", got)
	}

	a := Sum([]byte("hello"))
	b := Sum([]byte("hello"))
	c := Sum([]byte("hello "))
	if a != b {
		t.Error("same input produced different digests")
	}
	if a == c {
		t.Error("different inputs produced the same digest")
	}
	if len(a) != 64 {
		t.Errorf("digest length = %d, want 64 hex chars", len(a))
	}
}
