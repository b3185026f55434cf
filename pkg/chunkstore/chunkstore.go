// Package chunkstore implements content-addressed persistence for
// encrypted chunk blobs on a storage peer's local disk. Digests fan
// out across a two-level hex-prefix directory layout (ab/cd/abcd...)
// so no single directory accumulates millions of entries.
package chunkstore

import (
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/hivechunk/core/pkg/coreerr"
	"github.com/hivechunk/core/pkg/digest"
)

// Store is a content-addressed on-disk blob store keyed by digest.
type Store struct {
	root  string
	mu    sync.RWMutex
	count int64 // maintained incrementally; stats() never walks the tree
}

// Open creates (if needed) and returns a Store rooted at dir.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, coreerr.Wrap(coreerr.InvalidInput, "failed to create store root", err)
	}

	s := &Store{root: dir}
	n, err := s.walkCount()
	if err != nil {
		return nil, err
	}
	s.count = n
	return s, nil
}

func (s *Store) walkCount() (int64, error) {
	var n int64
	err := filepath.Walk(s.root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && digest.Valid(filepath.Base(path)) {
			n++
		}
		return nil
	})
	if err != nil {
		return 0, coreerr.Wrap(coreerr.InvalidInput, "failed to scan store root", err)
	}
	return n, nil
}

func (s *Store) pathFor(dig string) (string, error) {
	if !digest.Valid(dig) {
		return "", coreerr.New(coreerr.InvalidInput, "malformed digest")
	}
	return filepath.Join(s.root, dig[:2], dig[2:4], dig), nil
}

// Put writes blob under its content digest. The caller supplies the
// already-computed digest so the store never has to re-hash data it
// did not originate (callers are expected to have verified dig already
// equals digest.SHA256(blob) before calling Put).
func (s *Store) Put(dig string, blob []byte) error {
	path, err := s.pathFor(dig)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := os.Stat(path); err == nil {
		return nil // already present, idempotent
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return coreerr.Wrap(coreerr.InvalidInput, "failed to create digest shard directories", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, blob, 0o600); err != nil {
		return coreerr.Wrap(coreerr.InvalidInput, "failed to write chunk blob", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return coreerr.Wrap(coreerr.InvalidInput, "failed to finalize chunk blob", err)
	}

	atomic.AddInt64(&s.count, 1)
	return nil
}

// Get reads the blob stored under dig. Absence is reported as
// NotFound, never as a bare filesystem error.
func (s *Store) Get(dig string) ([]byte, error) {
	path, err := s.pathFor(dig)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	blob, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, coreerr.New(coreerr.NotFound, "chunk not found").WithDigest(dig)
	}
	if err != nil {
		return nil, coreerr.Wrap(coreerr.InvalidInput, "failed to read chunk blob", err).WithDigest(dig)
	}
	return blob, nil
}

// Has reports whether dig is present in the store.
func (s *Store) Has(dig string) bool {
	path, err := s.pathFor(dig)
	if err != nil {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, err = os.Stat(path)
	return err == nil
}

// Delete removes the blob stored under dig. Deleting an absent
// digest is not an error.
func (s *Store) Delete(dig string) error {
	path, err := s.pathFor(dig)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return coreerr.Wrap(coreerr.InvalidInput, "failed to delete chunk blob", err).WithDigest(dig)
	}
	atomic.AddInt64(&s.count, -1)
	return nil
}

// List returns every digest currently held by the store. It is used
// by administrative and audit paths only, not the hot read/write path.
func (s *Store) List() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var digests []string
	err := filepath.Walk(s.root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			base := filepath.Base(path)
			if digest.Valid(base) {
				digests = append(digests, base)
			}
		}
		return nil
	})
	if err != nil {
		return nil, coreerr.Wrap(coreerr.InvalidInput, "failed to list store contents", err)
	}
	return digests, nil
}

// Stats reports the number of chunks currently held. Backed by an
// atomic counter maintained by Put/Delete, not a directory walk.
func (s *Store) Stats() Stats {
	return Stats{ChunkCount: atomic.LoadInt64(&s.count)}
}

// Stats summarizes the current state of a Store.
type Stats struct {
	ChunkCount int64
}
