package registry

import (
	"testing"

	"github.com/fastestssbc/coordinator"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRegisterAssignsIncreasingIdsAndSeedsBalance(t *testing.T) {
	s := newTestStore(t)

	id1, bal1, peers1, err := s.Register("127.0.0.1:7001")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if bal1 != defaultInitialBalance {
		t.Fatalf("initial balance = %d, want %d", bal1, defaultInitialBalance)
	}
	if len(peers1) != 0 {
		t.Fatalf("first node should see no peers, got %v", peers1)
	}

	id2, _, peers2, err := s.Register("127.0.0.1:7002")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if id2 <= id1 {
		t.Fatalf("second registration must receive a larger id: id1=%d id2=%d", id1, id2)
	}
	if len(peers2) != 1 || peers2[0].Id != id1 {
		t.Fatalf("second node should see exactly the first as a peer, got %v", peers2)
	}
}

func TestDebitInsufficientFunds(t *testing.T) {
	s := newTestStore(t)
	id, _, _, _ := s.Register("127.0.0.1:7001")

	if err := s.Debit(id, 1000); err != coordinator.ErrInsufficientFunds {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
}

func TestDebitCreditRoundTrip(t *testing.T) {
	s := newTestStore(t)
	id, bal, _, _ := s.Register("127.0.0.1:7001")

	if err := s.Debit(id, 40); err != nil {
		t.Fatalf("debit: %v", err)
	}
	got, err := s.Balance(id)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if got != bal-40 {
		t.Fatalf("balance after debit = %d, want %d", got, bal-40)
	}

	if err := s.Credit(id, 15); err != nil {
		t.Fatalf("credit: %v", err)
	}
	got, _ = s.Balance(id)
	if got != bal-40+15 {
		t.Fatalf("balance after credit = %d, want %d", got, bal-40+15)
	}
}

func TestUnregisterRemovesFromFuturePeerLists(t *testing.T) {
	s := newTestStore(t)
	id1, _, _, _ := s.Register("127.0.0.1:7001")
	if err := s.Unregister(id1); err != nil {
		t.Fatalf("unregister: %v", err)
	}

	_, _, peers, _ := s.Register("127.0.0.1:7002")
	if len(peers) != 0 {
		t.Fatalf("unregistered node must not appear in future peer lists, got %v", peers)
	}
}
