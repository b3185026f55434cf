package peerdir

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Seed is one entry of a tracker's seed-peer list: peers pre-loaded
// into the directory at startup so a freshly started tracker is
// useful before any real peer has registered.
type Seed struct {
	PeerID   string `json:"peer_id"`
	Endpoint string `json:"endpoint"`
	Name     string `json:"name,omitempty"`
}

// SeedStore persists a tracker's seed-peer list to a JSON file, with
// load/add/remove/save operations used to populate a Directory at
// startup.
type SeedStore struct {
	mu    sync.RWMutex
	path  string
	seeds []*Seed
}

// NewSeedStore loads the seed list at path, if it exists, and
// returns a SeedStore ready to apply it to a Directory.
func NewSeedStore(path string) (*SeedStore, error) {
	s := &SeedStore{path: path}
	if err := s.load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load seed file: %w", err)
		}
	}
	return s, nil
}

func (s *SeedStore) load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return err
	}
	var seeds []*Seed
	if err := json.Unmarshal(data, &seeds); err != nil {
		return fmt.Errorf("failed to parse seed file: %w", err)
	}
	s.seeds = seeds
	return nil
}

func (s *SeedStore) save() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("failed to create seed directory: %w", err)
	}
	data, err := json.MarshalIndent(s.seeds, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal seed nodes: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write seed file: %w", err)
	}
	return nil
}

// Add inserts or updates a seed entry and persists the list.
func (s *SeedStore) Add(seed *Seed) error {
	if seed.PeerID == "" || seed.Endpoint == "" {
		return fmt.Errorf("seed peer-id and endpoint are required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i, existing := range s.seeds {
		if existing.PeerID == seed.PeerID {
			s.seeds[i] = seed
			return s.save()
		}
	}
	s.seeds = append(s.seeds, seed)
	return s.save()
}

// Remove deletes a seed entry by peer-id and persists the list.
func (s *SeedStore) Remove(peerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, seed := range s.seeds {
		if seed.PeerID == peerID {
			s.seeds = append(s.seeds[:i], s.seeds[i+1:]...)
			return s.save()
		}
	}
	return fmt.Errorf("seed not found: %s", peerID)
}

// All returns a copy of every seed entry.
func (s *SeedStore) All() []*Seed {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Seed, len(s.seeds))
	for i, seed := range s.seeds {
		out[i] = &Seed{PeerID: seed.PeerID, Endpoint: seed.Endpoint, Name: seed.Name}
	}
	return out
}

// Apply registers every seed in the store against dir. It is meant
// to be called once at tracker startup, before any real peer has had
// a chance to register.
func (s *SeedStore) Apply(dir *Directory) error {
	for _, seed := range s.All() {
		if _, err := dir.Register(seed.PeerID, seed.Endpoint); err != nil {
			return fmt.Errorf("failed to register seed %s: %w", seed.PeerID, err)
		}
	}
	return nil
}
