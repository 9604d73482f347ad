package ratelimit

import "testing"

func TestAllowConsumesCapacity(t *testing.T) {
	l := New()
	for i := 0; i < 3; i++ {
		if !l.Allow("k", 3, 0) {
			t.Fatalf("allow %d refused within capacity", i)
		}
	}
	if l.Allow("k", 3, 0) {
		t.Fatalf("allow succeeded past capacity")
	}
}

func TestKeysAreIndependent(t *testing.T) {
	l := New()
	if !l.Allow("a", 1, 0) {
		t.Fatalf("first token refused")
	}
	if l.Allow("a", 1, 0) {
		t.Fatalf("key a past capacity")
	}
	if !l.Allow("b", 1, 0) {
		t.Fatalf("key b should have its own bucket")
	}
}

func TestResetRefills(t *testing.T) {
	l := New()
	if !l.Allow("k", 1, 0) {
		t.Fatalf("first token refused")
	}
	if l.Allow("k", 1, 0) {
		t.Fatalf("past capacity")
	}
	l.Reset("k")
	if !l.Allow("k", 1, 0) {
		t.Fatalf("reset did not refill the bucket")
	}
}
