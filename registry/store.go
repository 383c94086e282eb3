// Package registry implements the account-balance registry (R1, §4.6):
// the external collaborator the spec treats as out of core scope (§1)
// but which the core's critical section calls synchronously on every
// transfer. Store is the server-side implementation, backed by
// goleveldb so a registry restart does not silently reset balances
// (the coordination core itself stays in-memory only, per §1).
package registry

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/syndtr/goleveldb/leveldb"
	lvutil "github.com/syndtr/goleveldb/leveldb/util"

	"github.com/fastestssbc/commonconst"
	"github.com/fastestssbc/coordinator"
	"github.com/fastestssbc/meta"
)

const defaultInitialBalance = commonconst.DefaultInitialBalance

// Store owns NodeId assignment and account balances.
type Store struct {
	db *leveldb.DB

	mu    sync.Mutex
	locks map[meta.NodeId]*sync.Mutex
}

// Open opens (or creates) a goleveldb instance at path.
func Open(path string) (*Store, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("registry: open leveldb at %s: %w", path, err)
	}
	return &Store{db: db, locks: make(map[meta.NodeId]*sync.Mutex)}, nil
}

// Close releases the underlying leveldb handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) lockFor(id meta.NodeId) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[id]
	if !ok {
		l = &sync.Mutex{}
		s.locks[id] = l
	}
	return l
}

func balanceKey(id meta.NodeId) []byte  { return []byte(fmt.Sprintf("balance:%d", id)) }
func endpointKey(id meta.NodeId) []byte { return []byte(fmt.Sprintf("endpoint:%d", id)) }
func endpointPrefix() []byte            { return []byte("endpoint:") }

const nextIDKey = "next_id"

func encodeUint64(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

func decodeUint64(b []byte) uint64 {
	return binary.BigEndian.Uint64(b)
}

// Register assigns the next NodeId, seeds its balance, records its
// endpoint, and returns the full peer set (excluding the new node).
func (s *Store) Register(endpoint string) (meta.NodeId, uint64, []meta.PeerInfo, error) {
	s.mu.Lock()
	id, err := s.nextIDLocked()
	s.mu.Unlock()
	if err != nil {
		return 0, 0, nil, err
	}

	peers, err := s.peersExcept(id)
	if err != nil {
		return 0, 0, nil, err
	}

	if err := s.db.Put(balanceKey(id), encodeUint64(defaultInitialBalance), nil); err != nil {
		return 0, 0, nil, err
	}
	if err := s.db.Put(endpointKey(id), []byte(endpoint), nil); err != nil {
		return 0, 0, nil, err
	}

	return id, defaultInitialBalance, peers, nil
}

func (s *Store) nextIDLocked() (meta.NodeId, error) {
	raw, err := s.db.Get([]byte(nextIDKey), nil)
	var next uint64 = 1
	if err == nil {
		next = decodeUint64(raw) + 1
	} else if err != leveldb.ErrNotFound {
		return 0, err
	}
	if err := s.db.Put([]byte(nextIDKey), encodeUint64(next), nil); err != nil {
		return 0, err
	}
	return meta.NodeId(next), nil
}

func (s *Store) peersExcept(self meta.NodeId) ([]meta.PeerInfo, error) {
	iter := s.db.NewIterator(lvutil.BytesPrefix(endpointPrefix()), nil)
	defer iter.Release()

	var out []meta.PeerInfo
	for iter.Next() {
		var id uint32
		if _, err := fmt.Sscanf(string(iter.Key()), "endpoint:%d", &id); err != nil {
			continue
		}
		if meta.NodeId(id) == self {
			continue
		}
		out = append(out, meta.PeerInfo{Id: meta.NodeId(id), Endpoint: string(iter.Value())})
	}
	return out, iter.Error()
}

// Debit atomically subtracts amount from node's balance, or returns
// coordinator.ErrInsufficientFunds.
func (s *Store) Debit(node meta.NodeId, amount uint64) error {
	l := s.lockFor(node)
	l.Lock()
	defer l.Unlock()

	bal, err := s.balanceLocked(node)
	if err != nil {
		return err
	}
	if bal < amount {
		return coordinator.ErrInsufficientFunds
	}
	return s.db.Put(balanceKey(node), encodeUint64(bal-amount), nil)
}

// Credit atomically adds amount to node's balance.
func (s *Store) Credit(node meta.NodeId, amount uint64) error {
	l := s.lockFor(node)
	l.Lock()
	defer l.Unlock()

	bal, err := s.balanceLocked(node)
	if err != nil {
		return err
	}
	return s.db.Put(balanceKey(node), encodeUint64(bal+amount), nil)
}

// Balance returns node's current balance.
func (s *Store) Balance(node meta.NodeId) (uint64, error) {
	return s.balanceLocked(node)
}

func (s *Store) balanceLocked(node meta.NodeId) (uint64, error) {
	raw, err := s.db.Get(balanceKey(node), nil)
	if err == leveldb.ErrNotFound {
		return 0, fmt.Errorf("registry: unknown node %d", node)
	}
	if err != nil {
		return 0, err
	}
	return decodeUint64(raw), nil
}

// Unregister drops a node's endpoint so it no longer appears in other
// nodes' future registrations (a later join sees a smaller peer set).
// Balances are kept — the ledger history referencing this node must
// still make sense after it's gone.
func (s *Store) Unregister(node meta.NodeId) error {
	return s.db.Delete(endpointKey(node), nil)
}
