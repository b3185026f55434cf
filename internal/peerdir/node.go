// Package peerdir implements the peer directory: a flat,
// XOR-distance-ordered table of storage peers, addressed by a
// routing-key hash of the peer-id rather than the Kademlia
// routing-table structure this package began life as. The distance
// primitives below are kept verbatim from that origin — XOR distance
// over a 256-bit keyspace is the same primitive either way — but the
// bucketed routing table itself is gone; see directory.go.
package peerdir

import (
	"fmt"
	"time"

	"github.com/hivechunk/core/pkg/digest"
)

// NodeID is a peer's position in the 256-bit XOR keyspace: the
// SHA-256 hash of the peer-id (or of a lookup target), the same hash
// the system uses everywhere else.
type NodeID [32]byte

// NewNodeID derives the keyspace position of a peer-id or other
// lookup target.
func NewNodeID(peerID string) NodeID {
	return NodeID(digest.SHA256Bytes([]byte(peerID)))
}

// Distance computes the XOR distance between two positions in the
// keyspace. Smaller is closer.
func (n NodeID) Distance(other NodeID) NodeID {
	var result NodeID
	for i := 0; i < 32; i++ {
		result[i] = n[i] ^ other[i]
	}
	return result
}

// String returns the hex representation of the NodeID.
func (n NodeID) String() string {
	return fmt.Sprintf("%x", n[:])
}

// Bytes returns the NodeID as a byte slice.
func (n NodeID) Bytes() []byte {
	return n[:]
}

// IsZero reports whether the NodeID is all zeros.
func (n NodeID) IsZero() bool {
	for _, b := range n {
		if b != 0 {
			return false
		}
	}
	return true
}

// Less orders NodeIDs as 256-bit unsigned integers, used to compare
// distances when ranking candidates by nearness.
func (n NodeID) Less(other NodeID) bool {
	for i := 0; i < 32; i++ {
		if n[i] < other[i] {
			return true
		}
		if n[i] > other[i] {
			return false
		}
	}
	return false
}

// PeerState is the peer's position in the Absent -> Live -> Evicted
// -> Absent state machine.
type PeerState int

const (
	Absent PeerState = iota
	Live
	Evicted
)

func (s PeerState) String() string {
	switch s {
	case Live:
		return "live"
	case Evicted:
		return "evicted"
	default:
		return "absent"
	}
}

// Peer is one entry of the directory: a registered storage peer and
// everything needed to route to it and judge its liveness.
type Peer struct {
	ID       NodeID
	PeerID   string
	Endpoint string
	LastSeen time.Time
	State    PeerState
}

// IsValid reports whether a Peer has the minimum data needed to be
// routable: a non-empty peer-id and endpoint.
func (p *Peer) IsValid() bool {
	return p.PeerID != "" && p.Endpoint != "" && !p.ID.IsZero()
}

// touch marks the peer as freshly seen and live.
func (p *Peer) touch(now time.Time) {
	p.LastSeen = now
	p.State = Live
}

// isStale reports whether the peer has not been seen within timeout.
func (p *Peer) isStale(now time.Time, timeout time.Duration) bool {
	return now.Sub(p.LastSeen) > timeout
}

// Copy returns a deep copy of the Peer.
func (p *Peer) Copy() *Peer {
	return &Peer{
		ID:       p.ID,
		PeerID:   p.PeerID,
		Endpoint: p.Endpoint,
		LastSeen: p.LastSeen,
		State:    p.State,
	}
}
