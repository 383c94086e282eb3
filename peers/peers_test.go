package peers

import (
	"errors"
	"testing"

	"github.com/fastestssbc/meta"
)

func TestNewExcludesSelf(t *testing.T) {
	d := New(1, []meta.PeerInfo{
		{Id: 1, Endpoint: "http://self"},
		{Id: 2, Endpoint: "http://peer2"},
		{Id: 3, Endpoint: "http://peer3"},
	})

	if d.Count() != 2 {
		t.Fatalf("expected 2 peers excluding self, got %d", d.Count())
	}
	for _, id := range d.Peers() {
		if id == 1 {
			t.Fatal("self must not appear in Peers()")
		}
	}
}

func TestAddressReturnsKnownEndpoint(t *testing.T) {
	d := New(1, []meta.PeerInfo{{Id: 2, Endpoint: "http://peer2"}})
	addr, err := d.Address(2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if addr != "http://peer2" {
		t.Fatalf("address = %q, want http://peer2", addr)
	}
}

func TestAddressUnknownPeer(t *testing.T) {
	d := New(1, nil)
	_, err := d.Address(99)
	if !errors.Is(err, ErrUnknownPeer) {
		t.Fatalf("expected ErrUnknownPeer, got %v", err)
	}
}
