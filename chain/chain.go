// Package chain implements the ledger (C5): an append-only,
// hash-chained sequence of blocks. A block may only be appended while
// the caller holds the critical section for the transaction's
// initiator (enforced by package coordinator, not by this package).
package chain

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/cloudflare/cfssl/log"

	"github.com/fastestssbc/meta"
)

// ErrDivergence describes a ledger_divergence (§7) at a given block
// index. Verify does not return it; Verify reports a break as an index.
type ErrDivergence struct {
	Index uint64
}

func (e *ErrDivergence) Error() string {
	return fmt.Sprintf("ledger divergence at block %d: prev_hash mismatch", e.Index)
}

// Ledger is a node's local hash-chained transaction log.
type Ledger struct {
	mu     sync.RWMutex
	blocks []meta.Block
}

// New returns a ledger containing only the genesis block: index 0, the
// empty transaction sentinel, and an all-zero PrevHash.
func New() *Ledger {
	l := &Ledger{}
	genesis := meta.Block{Index: 0, Transaction: meta.EmptyTransaction}
	genesis.Hash = blockHash(genesis)
	l.blocks = append(l.blocks, genesis)
	log.Info("ledger initialized with genesis block")
	return l
}

// canonicalTransaction encodes a transaction as the concatenation of
// fixed-width big-endian Src, Dst, Amount, Ts, Initiator. This is the
// one surface requiring bit-exact agreement across implementations
// (§4.5); it must never go through a general-purpose codec.
func canonicalTransaction(tx meta.Transaction) []byte {
	buf := make([]byte, 0, 4+4+8+8+4)
	var tmp4 [4]byte
	var tmp8 [8]byte

	binary.BigEndian.PutUint32(tmp4[:], uint32(tx.Src))
	buf = append(buf, tmp4[:]...)
	binary.BigEndian.PutUint32(tmp4[:], uint32(tx.Dst))
	buf = append(buf, tmp4[:]...)
	binary.BigEndian.PutUint64(tmp8[:], tx.Amount)
	buf = append(buf, tmp8[:]...)
	binary.BigEndian.PutUint64(tmp8[:], uint64(tx.Ts))
	buf = append(buf, tmp8[:]...)
	binary.BigEndian.PutUint32(tmp4[:], uint32(tx.Initiator))
	buf = append(buf, tmp4[:]...)

	return buf
}

// blockHash computes H(index ‖ transaction_canonical ‖ prev_hash).
func blockHash(b meta.Block) [32]byte {
	var idx8 [8]byte
	binary.BigEndian.PutUint64(idx8[:], b.Index)

	h := sha256.New()
	h.Write(idx8[:])
	h.Write(canonicalTransaction(b.Transaction))
	h.Write(b.PrevHash[:])

	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// Append produces the next block from tx and adds it to the ledger,
// returning the completed block. Callers must already hold the
// critical section for tx.Initiator.
func (l *Ledger) Append(tx meta.Transaction) meta.Block {
	l.mu.Lock()
	defer l.mu.Unlock()

	prev := l.blocks[len(l.blocks)-1]
	b := meta.Block{
		Index:       prev.Index + 1,
		Transaction: tx,
		PrevHash:    prev.Hash,
	}
	b.Hash = blockHash(b)
	l.blocks = append(l.blocks, b)

	log.Infof("ledger appended block %d: src=%d dst=%d amount=%d ts=%d",
		b.Index, tx.Src, tx.Dst, tx.Amount, tx.Ts)
	return b
}

// Head returns the most recently appended block.
func (l *Ledger) Head() meta.Block {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.blocks[len(l.blocks)-1]
}

// Length returns the number of blocks, including genesis.
func (l *Ledger) Length() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.blocks)
}

// Range returns a copy of blocks [lo, hi).
func (l *Ledger) Range(lo, hi int) []meta.Block {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if lo < 0 {
		lo = 0
	}
	if hi > len(l.blocks) {
		hi = len(l.blocks)
	}
	if lo >= hi {
		return nil
	}
	out := make([]meta.Block, hi-lo)
	copy(out, l.blocks[lo:hi])
	return out
}

// Verify recomputes every block's hash and chain linkage, returning the
// index of the first break found, or -1 if the ledger is intact.
func (l *Ledger) Verify() (breakIndex int) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	for i, b := range l.blocks {
		if blockHash(b) != b.Hash {
			return i
		}
		if i > 0 && b.PrevHash != l.blocks[i-1].Hash {
			return i
		}
	}
	return -1
}
