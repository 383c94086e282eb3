// Package queue implements the request queue (C3): a priority structure
// of PendingRequest entries ordered by meta.RequestKey, used by the
// mutex coordinator to decide when a self-initiated request may enter
// the critical section.
package queue

import (
	"sort"
	"sync"

	mapset "github.com/deckarep/golang-set"

	"github.com/fastestssbc/meta"
)

// Origin distinguishes a node's own pending request from one relayed on
// behalf of a peer.
type Origin int

const (
	OriginSelf Origin = iota
	OriginPeer
)

func (o Origin) String() string {
	switch o {
	case OriginSelf:
		return "self"
	case OriginPeer:
		return "peer"
	default:
		return "unknown"
	}
}

// PendingRequest is one entry in the queue. RepliesReceived is only
// meaningful for OriginSelf entries; it is a set<NodeId> so that a
// duplicate REPLY (transport retry) collapses for free instead of
// double-counting.
type PendingRequest struct {
	Key             meta.RequestKey
	Origin          Origin
	RepliesReceived mapset.Set
	Dst             meta.NodeId
	Amount          uint64
}

// Queue is a priority structure keyed by RequestKey. It is safe for
// concurrent use, though in practice only the coordinator actor touches
// it except for Snapshot, which the operator surface calls from its own
// goroutine and which must never block the actor (§4.3).
type Queue struct {
	mu      sync.RWMutex
	entries map[meta.RequestKey]*PendingRequest
}

// New returns an empty request queue.
func New() *Queue {
	return &Queue{entries: make(map[meta.RequestKey]*PendingRequest)}
}

// Insert adds entry to the queue. Rejects duplicates (invariant 1): a
// second Insert with the same Key is a no-op and reports ok=false so
// callers can treat it as the idempotent "duplicate_request" case (§7)
// rather than an error.
func (q *Queue) Insert(entry *PendingRequest) (ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, exists := q.entries[entry.Key]; exists {
		return false
	}
	q.entries[entry.Key] = entry
	return true
}

// Get returns the entry for key, if present.
func (q *Queue) Get(key meta.RequestKey) (*PendingRequest, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	e, ok := q.entries[key]
	return e, ok
}

// Remove deletes key from the queue. No-op if absent, tolerating a
// duplicate RELEASE.
func (q *Queue) Remove(key meta.RequestKey) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.entries, key)
}

// PeekMin returns the entry with the smallest key, or nil if the queue
// is empty.
func (q *Queue) PeekMin() *PendingRequest {
	q.mu.RLock()
	defer q.mu.RUnlock()
	var min *PendingRequest
	for _, e := range q.entries {
		if min == nil || e.Key.Less(min.Key) {
			min = e
		}
	}
	return min
}

// Len reports the number of pending entries.
func (q *Queue) Len() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.entries)
}

// Snapshot returns entries ordered by key, for the operator surface.
// It copies under the read lock and never blocks on the actor's next
// mutation.
func (q *Queue) Snapshot() []PendingRequest {
	q.mu.RLock()
	out := make([]PendingRequest, 0, len(q.entries))
	for _, e := range q.entries {
		out = append(out, *e)
	}
	q.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Key.Less(out[j].Key) })
	return out
}
