package queue

import (
	"testing"

	mapset "github.com/deckarep/golang-set"

	"github.com/fastestssbc/meta"
)

func entry(t uint64, initiator uint32, origin Origin) *PendingRequest {
	return &PendingRequest{
		Key:             meta.RequestKey{Time: meta.LamportTime(t), Initiator: meta.NodeId(initiator)},
		Origin:          origin,
		RepliesReceived: mapset.NewSet(),
	}
}

func TestInsertRejectsDuplicateKey(t *testing.T) {
	q := New()
	if ok := q.Insert(entry(1, 1, OriginSelf)); !ok {
		t.Fatal("first insert should succeed")
	}
	if ok := q.Insert(entry(1, 1, OriginPeer)); ok {
		t.Fatal("duplicate key insert should be rejected (invariant 1)")
	}
	if q.Len() != 1 {
		t.Fatalf("expected 1 entry, got %d", q.Len())
	}
}

func TestPeekMinOrdersByTimeThenInitiator(t *testing.T) {
	q := New()
	q.Insert(entry(5, 7, OriginPeer))
	q.Insert(entry(1, 3, OriginPeer))
	q.Insert(entry(1, 1, OriginSelf))

	min := q.PeekMin()
	if min == nil || min.Key.Time != 1 || min.Key.Initiator != 1 {
		t.Fatalf("expected min key (1,1), got %v", min)
	}
}

func TestRemoveIsNoOpOnAbsentKey(t *testing.T) {
	q := New()
	q.Remove(meta.RequestKey{Time: 9, Initiator: 9}) // must not panic
	if q.Len() != 0 {
		t.Fatalf("expected empty queue, got %d", q.Len())
	}
}

func TestSnapshotIsOrderedCopy(t *testing.T) {
	q := New()
	q.Insert(entry(2, 1, OriginPeer))
	q.Insert(entry(1, 1, OriginSelf))

	snap := q.Snapshot()
	if len(snap) != 2 || !(snap[0].Key.Time == 1 && snap[1].Key.Time == 2) {
		t.Fatalf("snapshot not ordered: %+v", snap)
	}

	// Mutating the queue afterwards must not affect the snapshot already taken.
	q.Remove(meta.RequestKey{Time: 1, Initiator: 1})
	if len(snap) != 2 {
		t.Fatalf("snapshot mutated by later queue changes")
	}
}
