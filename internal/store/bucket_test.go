package store

import "testing"

func TestBucketInsertKeepsAscendingOrder(t *testing.T) {
	b := newBucket(NewValue([]byte("a")), Stamp(1))
	b.insert(NewValue([]byte("b")), Stamp(5), false)
	b.insert(NewValue([]byte("c")), Stamp(3), false)

	if len(b.entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(b.entries))
	}
	for i := 1; i < len(b.entries); i++ {
		if b.entries[i-1].stamp >= b.entries[i].stamp {
			t.Fatalf("entries not strictly ascending: %v", b.entries)
		}
	}
}

func TestBucketAutopurgeDropsOlder(t *testing.T) {
	b := newBucket(NewValue([]byte("a")), Stamp(1))
	b.insert(NewValue([]byte("b")), Stamp(2), true)
	b.insert(NewValue([]byte("c")), Stamp(3), true)

	if got := b.len(); got != 1 {
		t.Fatalf("autopurge bucket len = %d, want 1", got)
	}
	if !b.entries[0].value.Equal(NewValue([]byte("c"))) {
		t.Fatalf("autopurge bucket kept %+v, want c", b.entries[0].value)
	}
}

func TestBucketReadMissBeforeFirstWrite(t *testing.T) {
	b := newBucket(NewValue([]byte("a")), Stamp(5))
	_, hit := b.read(Stamp(1))
	if hit {
		t.Fatalf("expected miss reading before first write")
	}
	if b.readStamp != Stamp(5) {
		t.Fatalf("read_stamp should stay at max observed, got %v", b.readStamp)
	}
}

func TestBucketReadBumpsReadStampWithoutRegressing(t *testing.T) {
	b := newBucket(NewValue([]byte("a")), Stamp(1))

	b.read(Stamp(10))
	if b.readStamp != Stamp(10) {
		t.Fatalf("read_stamp after hit = %v, want 10", b.readStamp)
	}

	b.read(Stamp(2))
	if b.readStamp != Stamp(10) {
		t.Fatalf("read_stamp should not regress, got %v", b.readStamp)
	}
}
