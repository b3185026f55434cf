// Package registry implements the metadata registry abstraction: the
// durable record of which file-ids map to which manifest, standing in
// for the system's original on-chain publication step. Two Go-native
// backends are provided: MemoryRegistry for tests and single-process
// deployments, and LedgerRegistry, a file-backed append-only CBOR
// ledger used as the local stand-in for the out-of-scope smart-contract
// variant (see DESIGN.md).
package registry

import (
	"sync"

	"github.com/hivechunk/core/pkg/coreerr"
)

// Entry is one published record: a file-id bound to its manifest
// digest and the Merkle root computed over its chunk digests.
type Entry struct {
	FileID     string `cbor:"file_id" json:"file_id"`
	Manifest   string `cbor:"manifest" json:"manifest"`
	MerkleRoot string `cbor:"merkle_root" json:"merkle_root"`
}

// Registry is the abstract metadata registry contract every backend
// implements: publish a new entry, fetch one by file-id, count how
// many are published, and enumerate by insertion index.
type Registry interface {
	Publish(entry Entry) error
	Get(fileID string) (Entry, error)
	Count() (int, error)
	IDByIndex(index int) (string, error)
}

// MemoryRegistry is an in-process Registry backed by a map plus an
// insertion-ordered index, used by tests and ephemeral deployments.
type MemoryRegistry struct {
	mu      sync.RWMutex
	entries map[string]Entry
	order   []string
}

// NewMemoryRegistry returns an empty MemoryRegistry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{entries: make(map[string]Entry)}
}

// Publish records entry. Publishing the same file-id twice fails
// with InvalidInput: publication is meant to be a one-time, terminal
// step per upload.
func (r *MemoryRegistry) Publish(entry Entry) error {
	if entry.FileID == "" {
		return coreerr.New(coreerr.InvalidInput, "file-id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[entry.FileID]; exists {
		return coreerr.New(coreerr.InvalidInput, "file-id already published").WithDigest(entry.FileID)
	}

	r.entries[entry.FileID] = entry
	r.order = append(r.order, entry.FileID)
	return nil
}

// Get returns the entry published under fileID.
func (r *MemoryRegistry) Get(fileID string) (Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, exists := r.entries[fileID]
	if !exists {
		return Entry{}, coreerr.New(coreerr.NotFound, "file not found").WithDigest(fileID)
	}
	return entry, nil
}

// Count returns the number of entries published.
func (r *MemoryRegistry) Count() (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order), nil
}

// IDByIndex returns the file-id published at position index, in
// publication order.
func (r *MemoryRegistry) IDByIndex(index int) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if index < 0 || index >= len(r.order) {
		return "", coreerr.New(coreerr.InvalidInput, "index out of range")
	}
	return r.order[index], nil
}
