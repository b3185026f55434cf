// Package replication places an encrypted chunk on k candidate peers,
// assesses whether a chunk currently meets the replication factor,
// and repairs shortfall by placing the chunk on additional peers.
// Ported from ReplicationManager.replicate_chunk / check_replication /
// repair_replication, restructured around a StorageClient interface
// so the candidate-ordering and retry policy can be exercised without
// a real network. Candidates are tried one at a time.
package replication

import (
	"context"

	"github.com/hivechunk/core/pkg/coreerr"
)

// Candidate is one peer eligible to hold a replica: enough to place
// a chunk and to report it to a directory, without coupling this
// package to peerdir's concrete Peer type.
type Candidate struct {
	PeerID   string
	Endpoint string
}

// StorageClient is the network-facing side of replication: storing a
// chunk on a peer, and asking a directory which peers currently hold
// a digest. Concrete implementations talk HTTP to storage peers and
// the tracker; tests can supply an in-memory fake.
type StorageClient interface {
	// StoreChunk uploads blob (already encrypted) to the peer at
	// endpoint under digest. A transport-level failure against one
	// peer must never abort placement against the rest of the
	// candidate list (see coreerr.TransportError's retry policy).
	StoreChunk(ctx context.Context, peer Candidate, digest string, blob []byte) error

	// ActivePeers returns every peer the tracker currently considers
	// Live, in no particular order. Manager uses this only as the
	// fallback pool when LookupNearest under-returns.
	ActivePeers(ctx context.Context) ([]Candidate, error)

	// LookupNearest returns up to k Live peers ordered by ascending
	// XOR distance to digest, nearest first. A result shorter than k
	// (including empty) is not an error; it means fewer than k peers
	// are currently Live, or the directory has nothing better to
	// offer, and the caller falls back to ActivePeers to fill out the
	// candidate list.
	LookupNearest(ctx context.Context, digest string, k int) ([]Candidate, error)

	// Locate returns every peer currently known to hold digest.
	Locate(ctx context.Context, digest string) ([]Candidate, error)

	// Announce records that peer now holds digest.
	Announce(ctx context.Context, peer Candidate, digest string) error
}

// Manager places, assesses, and repairs chunk replicas.
type Manager struct {
	client StorageClient
	k      int
}

// NewManager builds a Manager targeting a replication factor of k.
func NewManager(client StorageClient, k int) *Manager {
	return &Manager{client: client, k: k}
}

// candidateOrder returns the peers to try placing or repairing digest
// against: XOR-nearest first, falling back to every other active peer
// (in whatever order the tracker returns them) when the nearest
// lookup returns fewer than k candidates. Repairs and initial
// placements share this ordering rule.
func (m *Manager) candidateOrder(ctx context.Context, digest string) ([]Candidate, error) {
	nearest, nearestErr := m.client.LookupNearest(ctx, digest, m.k)
	if nearestErr == nil && len(nearest) >= m.k {
		return nearest, nil
	}

	all, err := m.client.ActivePeers(ctx)
	if err != nil {
		if len(nearest) > 0 {
			return nearest, nil
		}
		return nil, err
	}

	seen := make(map[string]bool, len(nearest))
	ordered := make([]Candidate, 0, len(all))
	for _, p := range nearest {
		seen[p.PeerID] = true
		ordered = append(ordered, p)
	}
	for _, p := range all {
		if seen[p.PeerID] {
			continue
		}
		ordered = append(ordered, p)
	}
	return ordered, nil
}

// Place stores blob under digest on up to k active peers, trying
// additional candidates if a given peer fails, and returns the peers
// it actually succeeded against. At-least-one-success is sufficient
// for Place to return without error; zero successes is NoReplicas.
// A peer is never retried within the same call once it has failed.
func (m *Manager) Place(ctx context.Context, digest string, blob []byte) ([]Candidate, error) {
	candidates, err := m.candidateOrder(ctx, digest)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, coreerr.New(coreerr.NoReplicas, "no active peers available").WithDigest(digest)
	}

	var placed []Candidate
	tried := 0

	for _, peer := range candidates {
		if len(placed) >= m.k {
			break
		}
		tried++

		if err := m.client.StoreChunk(ctx, peer, digest, blob); err != nil {
			continue
		}
		if err := m.client.Announce(ctx, peer, digest); err != nil {
			continue
		}
		placed = append(placed, peer)
	}

	if len(placed) == 0 {
		return nil, coreerr.New(coreerr.NoReplicas, "failed to place chunk on any candidate peer").WithDigest(digest)
	}

	return placed, nil
}

// Assess reports how many Live peers currently hold digest, and
// whether that count meets the configured replication factor.
func (m *Manager) Assess(ctx context.Context, digest string) (count int, meetsK bool, err error) {
	holders, err := m.client.Locate(ctx, digest)
	if err != nil {
		return 0, false, err
	}
	return len(holders), len(holders) >= m.k, nil
}

// Repair brings a chunk back up to the replication factor by placing
// blob on additional peers that do not already hold a copy. It
// returns only the newly added peers; a chunk that already meets k
// is a no-op returning an empty slice.
func (m *Manager) Repair(ctx context.Context, digest string, blob []byte) ([]Candidate, error) {
	holders, err := m.client.Locate(ctx, digest)
	if err != nil {
		return nil, err
	}

	needed := m.k - len(holders)
	if needed <= 0 {
		return nil, nil
	}

	have := make(map[string]bool, len(holders))
	for _, h := range holders {
		have[h.PeerID] = true
	}

	all, err := m.candidateOrder(ctx, digest)
	if err != nil {
		return nil, err
	}

	var added []Candidate
	for _, peer := range all {
		if len(added) >= needed {
			break
		}
		if have[peer.PeerID] {
			continue
		}
		if err := m.client.StoreChunk(ctx, peer, digest, blob); err != nil {
			continue
		}
		if err := m.client.Announce(ctx, peer, digest); err != nil {
			continue
		}
		added = append(added, peer)
	}

	return added, nil
}
