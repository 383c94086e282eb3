// Package peers implements the peer directory (C2): an immutable
// mapping from NodeId to reachable endpoint, fixed after bootstrap.
package peers

import (
	"fmt"

	"github.com/fastestssbc/meta"
)

// ErrUnknownPeer is returned by Address when id has no registered
// endpoint; per §4.2, any coordinator operation that would need to
// contact such a peer must fail with unreachable_peer.
var ErrUnknownPeer = fmt.Errorf("peers: unknown peer")

// Directory is an immutable-after-bootstrap set of peers, excluding
// self.
type Directory struct {
	self      meta.NodeId
	endpoints map[meta.NodeId]string
}

// New builds a directory from the peers returned by registration.
// self is excluded even if accidentally present in infos.
func New(self meta.NodeId, infos []meta.PeerInfo) *Directory {
	d := &Directory{self: self, endpoints: make(map[meta.NodeId]string, len(infos))}
	for _, p := range infos {
		if p.Id == self {
			continue
		}
		d.endpoints[p.Id] = p.Endpoint
	}
	return d
}

// Peers returns every known peer id, excluding self.
func (d *Directory) Peers() []meta.NodeId {
	out := make([]meta.NodeId, 0, len(d.endpoints))
	for id := range d.endpoints {
		out = append(out, id)
	}
	return out
}

// Address returns the reachable endpoint for id.
func (d *Directory) Address(id meta.NodeId) (string, error) {
	addr, ok := d.endpoints[id]
	if !ok {
		return "", fmt.Errorf("%w: %d", ErrUnknownPeer, id)
	}
	return addr, nil
}

// Count returns the number of known peers (excluding self).
func (d *Directory) Count() int {
	return len(d.endpoints)
}
