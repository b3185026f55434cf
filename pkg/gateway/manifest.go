// Package gateway implements the gateway orchestrator: the
// upload/download pipeline that ties chunking, encryption, placement,
// and publication together, and the HTTP surface peers and clients
// use to drive it.
package gateway

import (
	"sync"
	"time"

	"github.com/hivechunk/core/pkg/coreerr"
	"github.com/hivechunk/core/pkg/digest"
)

// Manifest describes one uploaded file: its chunk digests in upload
// order, the Merkle root over them, and enough bookkeeping to
// reconstruct and validate it later. ContentType and CreatedAt are
// the one addition this carries beyond the minimal chunk-digest list
// the original manifest held.
type Manifest struct {
	FileID       string    `json:"file_id"`
	Filename     string    `json:"filename"`
	ContentType  string    `json:"content_type,omitempty"`
	Size         uint64    `json:"size"`
	ChunkSize    uint32    `json:"chunk_size"`
	ChunkDigests []string  `json:"chunk_digests"`
	MerkleRoot   string    `json:"merkle_root"`
	CreatedAt    time.Time `json:"created_at"`
}

// digestOf returns the content digest of a manifest's own encoding,
// used as its key in the ManifestStore and as the "manifest" field
// published to the registry.
func digestOf(m Manifest) (string, error) {
	blob, err := encodeManifest(m)
	if err != nil {
		return "", err
	}
	return digest.SHA256(blob), nil
}

// ManifestStore persists Manifests keyed by their own content digest.
// The in-memory implementation below is sufficient for a single
// gateway process; it is exercised through the same interface a
// disk-backed implementation would use.
type ManifestStore interface {
	Save(m Manifest) (string, error)
	Load(manifestDigest string) (Manifest, error)
}

// MemoryManifestStore is an in-process ManifestStore.
type MemoryManifestStore struct {
	mu    sync.RWMutex
	byDig map[string]Manifest
}

// NewMemoryManifestStore returns an empty MemoryManifestStore.
func NewMemoryManifestStore() *MemoryManifestStore {
	return &MemoryManifestStore{byDig: make(map[string]Manifest)}
}

// Save stores m and returns its content digest.
func (s *MemoryManifestStore) Save(m Manifest) (string, error) {
	dig, err := digestOf(m)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.byDig[dig] = m
	return dig, nil
}

// Load returns the manifest stored under manifestDigest.
func (s *MemoryManifestStore) Load(manifestDigest string) (Manifest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, exists := s.byDig[manifestDigest]
	if !exists {
		return Manifest{}, coreerr.New(coreerr.NotFound, "manifest not found").WithDigest(manifestDigest)
	}
	return m, nil
}
