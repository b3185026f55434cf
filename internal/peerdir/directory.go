package peerdir

import (
	"sync"
	"time"

	"github.com/hivechunk/core/pkg/coreerr"
)

// Directory is the flat, XOR-distance-ordered peer table: a
// storage peer's register/heartbeat/announce calls mutate it, and a
// gateway's lookup_nearest/locate calls read it, all against the same
// in-memory structure. It keeps the lifecycle shape of the DHT this
// package replaced (background sweep loop, cancel/done channels) but
// trades the Kademlia bucket structure for a plain map plus
// sort-on-read nearest queries (see nearestTo in routing_table.go).
type Directory struct {
	mu           sync.RWMutex
	peers        map[string]*Peer // keyed by PeerID
	chunkHolders map[string]map[string]bool // digest -> set of PeerID
	staleTimeout time.Duration

	done   chan struct{}
	cancel chan struct{}
}

// New creates a Directory that considers a peer stale (Evicted) once
// staleTimeout has elapsed since its last register/heartbeat.
func New(staleTimeout time.Duration) *Directory {
	return &Directory{
		peers:        make(map[string]*Peer),
		chunkHolders: make(map[string]map[string]bool),
		staleTimeout: staleTimeout,
	}
}

// Register adds or refreshes a peer entry, transitioning it to Live.
// A peer-id that already exists in Evicted state re-enters Live with
// an empty chunk set: whatever it was known to hold before eviction
// is dropped, since an evicted peer's chunks are presumed lost and
// the peer must re-announce them fresh.
func (d *Directory) Register(peerID, endpoint string) (*Peer, error) {
	if peerID == "" || endpoint == "" {
		return nil, coreerr.New(coreerr.InvalidInput, "peer-id and endpoint are required")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	now := time.Now()
	p, exists := d.peers[peerID]
	if !exists {
		p = &Peer{ID: NewNodeID(peerID), PeerID: peerID}
		d.peers[peerID] = p
	} else if p.State == Evicted {
		d.clearHoldings(peerID)
	}
	p.Endpoint = endpoint
	p.touch(now)

	return p.Copy(), nil
}

// clearHoldings removes peerID from every chunk_index entry, dropping
// any digest entry whose peer-set becomes empty as a result. Callers
// must hold d.mu.
func (d *Directory) clearHoldings(peerID string) {
	for dig, holders := range d.chunkHolders {
		if !holders[peerID] {
			continue
		}
		delete(holders, peerID)
		if len(holders) == 0 {
			delete(d.chunkHolders, dig)
		}
	}
}

// Heartbeat refreshes an already-registered peer's liveness without
// requiring the endpoint again. A heartbeat from an unknown peer-id
// fails with UnknownPeer: heartbeats refresh state, they do not
// create it. Skipping a single heartbeat must never corrupt state —
// this call only ever touches the one peer named.
func (d *Directory) Heartbeat(peerID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	p, exists := d.peers[peerID]
	if !exists {
		return coreerr.New(coreerr.UnknownPeer, "heartbeat from unregistered peer").WithPeer(peerID)
	}
	p.touch(time.Now())
	return nil
}

// Announce records that peerID holds digest. The peer must already
// be registered.
func (d *Directory) Announce(peerID, digest string) error {
	if digest == "" {
		return coreerr.New(coreerr.InvalidInput, "digest is required")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.peers[peerID]; !exists {
		return coreerr.New(coreerr.UnknownPeer, "announce from unregistered peer").WithPeer(peerID)
	}

	holders, ok := d.chunkHolders[digest]
	if !ok {
		holders = make(map[string]bool)
		d.chunkHolders[digest] = holders
	}
	holders[peerID] = true

	return nil
}

// ActivePeers returns every peer currently in the Live state.
func (d *Directory) ActivePeers() []*Peer {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var live []*Peer
	for _, p := range d.peers {
		if p.State == Live {
			live = append(live, p.Copy())
		}
	}
	return live
}

// LookupNearest returns up to k Live peers ordered by XOR distance to
// target, nearest first.
func (d *Directory) LookupNearest(target NodeID, k int) []*Peer {
	d.mu.RLock()
	live := make([]*Peer, 0, len(d.peers))
	for _, p := range d.peers {
		if p.State == Live {
			live = append(live, p)
		}
	}
	d.mu.RUnlock()

	nearest := nearestTo(live, target, k)
	out := make([]*Peer, len(nearest))
	for i, p := range nearest {
		out[i] = p.Copy()
	}
	return out
}

// Locate returns every Live peer known to hold digest.
func (d *Directory) Locate(digest string) []*Peer {
	d.mu.RLock()
	defer d.mu.RUnlock()

	holders, ok := d.chunkHolders[digest]
	if !ok {
		return nil
	}

	var out []*Peer
	for peerID := range holders {
		if p, exists := d.peers[peerID]; exists && p.State == Live {
			out = append(out, p.Copy())
		}
	}
	return out
}

// Get returns the peer registered under peerID, or nil.
func (d *Directory) Get(peerID string) *Peer {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if p, exists := d.peers[peerID]; exists {
		return p.Copy()
	}
	return nil
}

// Sweep transitions every peer that has exceeded staleTimeout since
// its last register/heartbeat from Live to Evicted, and returns the
// peer-ids it evicted. It never removes an Evicted peer's entry
// outright — a peer that re-registers after eviction simply returns
// to Live (Absent -> Live -> Evicted -> Absent is driven by Register
// re-adding the entry, not by this call deleting it).
func (d *Directory) Sweep() []string {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := time.Now()
	var evicted []string
	for peerID, p := range d.peers {
		if p.State == Live && p.isStale(now, d.staleTimeout) {
			p.State = Evicted
			evicted = append(evicted, peerID)
		}
	}
	return evicted
}

// Size returns the number of peer entries currently tracked,
// regardless of state.
func (d *Directory) Size() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.peers)
}

// ChunkCount returns the number of distinct digests with at least one
// known holder.
func (d *Directory) ChunkCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.chunkHolders)
}

// StartSweepLoop runs Sweep on a fixed interval until Stop is called.
// Sweep failures are impossible by construction, so this loop only
// ever logs what it evicted.
func (d *Directory) StartSweepLoop(interval time.Duration, onEvict func([]string)) {
	d.mu.Lock()
	if d.cancel != nil {
		d.mu.Unlock()
		return // already running
	}
	d.cancel = make(chan struct{})
	d.done = make(chan struct{})
	cancel := d.cancel
	done := d.done
	d.mu.Unlock()

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-cancel:
				return
			case <-ticker.C:
				evicted := d.Sweep()
				if len(evicted) > 0 && onEvict != nil {
					onEvict(evicted)
				}
			}
		}
	}()
}

// Stop halts a running sweep loop started by StartSweepLoop.
func (d *Directory) Stop() {
	d.mu.Lock()
	cancel := d.cancel
	done := d.done
	d.cancel = nil
	d.mu.Unlock()

	if cancel == nil {
		return
	}
	close(cancel)
	select {
	case <-done:
	case <-time.After(5 * time.Second):
	}
}
