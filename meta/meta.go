// Package meta holds the data types shared across the coordination core
// and its transport/registry collaborators: node identities, logical
// clock values, transactions and blocks, and the wire envelopes peers
// exchange. Block hashing lives in the chain package; meta only carries
// the shapes.
package meta

import (
	"fmt"
)

// NodeId is a small positive integer assigned once at registration and
// stable for the node's lifetime.
type NodeId uint32

// LamportTime is a non-negative logical clock value, monotonically
// non-decreasing within a node.
type LamportTime uint64

// RequestKey totally orders pending mutual-exclusion requests:
// lexicographically by (Time, Initiator). Unique across the system
// because a node never reuses a (time, self) pair.
type RequestKey struct {
	Time      LamportTime
	Initiator NodeId
}

// Less reports whether k sorts strictly before other.
func (k RequestKey) Less(other RequestKey) bool {
	if k.Time != other.Time {
		return k.Time < other.Time
	}
	return k.Initiator < other.Initiator
}

func (k RequestKey) String() string {
	return fmt.Sprintf("(%d,%d)", k.Time, k.Initiator)
}

// Outcome is the result a RELEASE message carries for a transfer.
type Outcome string

const (
	Committed Outcome = "committed"
	Aborted   Outcome = "aborted"
)

// Transaction is a value transfer ordered by (Ts, Initiator).
type Transaction struct {
	Src       NodeId
	Dst       NodeId
	Amount    uint64
	Ts        LamportTime
	Initiator NodeId
}

// Key returns the RequestKey this transaction was ordered under.
func (t Transaction) Key() RequestKey {
	return RequestKey{Time: t.Ts, Initiator: t.Initiator}
}

// EmptyTransaction is the genesis block's sentinel payload.
var EmptyTransaction = Transaction{}

// Block is one entry of a node's hash-chained ledger.
type Block struct {
	Index       uint64
	Transaction Transaction
	PrevHash    [32]byte
	Hash        [32]byte
}

// RegisterResponse is the registry's reply to a node's bootstrap
// registration call.
type RegisterResponse struct {
	NodeId         NodeId
	InitialBalance uint64
	Peers          []PeerInfo
}

// PeerInfo pairs a peer's id with its reachable east-west endpoint.
type PeerInfo struct {
	Id       NodeId
	Endpoint string
}

// RequestEnvelope wraps a REQUEST message (sender id + send timestamp are
// carried by every peer RPC kind per spec; msg_id is a transport-level
// idempotency/retry correlation id with no protocol meaning). Sign and
// PubKey carry the sender's signature over the envelope with both
// fields cleared, the way the teacher's *Msg types self-certify a
// payload (net/http.go's BlockMsg/VoteMsg).
type RequestEnvelope struct {
	MsgId  string
	Sender NodeId
	SendTs LamportTime
	Key    RequestKey
	Dst    NodeId
	Amount uint64
	Sign   []byte
	PubKey []byte
}

// ReplyEnvelope wraps a REPLY message.
type ReplyEnvelope struct {
	MsgId     string
	Sender    NodeId
	SendTs    LamportTime
	InReplyTo RequestKey
	Sign      []byte
	PubKey    []byte
}

// ReleaseEnvelope wraps a RELEASE message.
type ReleaseEnvelope struct {
	MsgId       string
	Sender      NodeId
	SendTs      LamportTime
	Key         RequestKey
	Outcome     Outcome
	Transaction Transaction
	Sign        []byte
	PubKey      []byte
}
