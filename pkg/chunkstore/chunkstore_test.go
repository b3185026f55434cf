package chunkstore

import (
	"os"
	"testing"

	"github.com/hivechunk/core/pkg/coreerr"
	"github.com/hivechunk/core/pkg/digest"
)

func tempStore(t *testing.T) *Store {
	t.Helper()
	dir, err := os.MkdirTemp("", "chunkstore-test-*")
	if err != nil {
		t.Fatalf("MkdirTemp failed: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })

	s, err := Open(dir)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	return s
}

func TestPutGetRoundTrip(t *testing.T) {
	s := tempStore(t)
	blob := []byte("encrypted chunk payload")
	dig := digest.SHA256(blob)

	if err := s.Put(dig, blob); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, err := s.Get(dig)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(got) != string(blob) {
		t.Fatalf("Get returned %q, want %q", got, blob)
	}
}

func TestGetMissingReturnsNotFound(t *testing.T) {
	s := tempStore(t)
	_, err := s.Get(digest.SHA256([]byte("absent")))
	if coreerr.KindOf(err) != coreerr.NotFound {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestPutIsIdempotent(t *testing.T) {
	s := tempStore(t)
	blob := []byte("idempotent payload")
	dig := digest.SHA256(blob)

	if err := s.Put(dig, blob); err != nil {
		t.Fatalf("first Put failed: %v", err)
	}
	if err := s.Put(dig, blob); err != nil {
		t.Fatalf("second Put failed: %v", err)
	}
	if s.Stats().ChunkCount != 1 {
		t.Fatalf("ChunkCount = %d, want 1", s.Stats().ChunkCount)
	}
}

func TestDeleteThenGetNotFound(t *testing.T) {
	s := tempStore(t)
	blob := []byte("to be deleted")
	dig := digest.SHA256(blob)

	if err := s.Put(dig, blob); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := s.Delete(dig); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := s.Get(dig); coreerr.KindOf(err) != coreerr.NotFound {
		t.Fatalf("expected NotFound after delete, got %v", err)
	}
}

func TestDeleteAbsentIsNotError(t *testing.T) {
	s := tempStore(t)
	if err := s.Delete(digest.SHA256([]byte("never stored"))); err != nil {
		t.Fatalf("Delete of absent digest should not error, got %v", err)
	}
}

func TestStatsTracksCount(t *testing.T) {
	s := tempStore(t)
	for i := 0; i < 5; i++ {
		blob := []byte{byte(i)}
		if err := s.Put(digest.SHA256(blob), blob); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
	}
	if got := s.Stats().ChunkCount; got != 5 {
		t.Fatalf("ChunkCount = %d, want 5", got)
	}
}

func TestListReturnsAllDigests(t *testing.T) {
	s := tempStore(t)
	want := map[string]bool{}
	for i := 0; i < 4; i++ {
		blob := []byte{byte(i), byte(i + 1)}
		dig := digest.SHA256(blob)
		want[dig] = true
		if err := s.Put(dig, blob); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
	}

	got, err := s.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("List returned %d digests, want %d", len(got), len(want))
	}
	for _, d := range got {
		if !want[d] {
			t.Errorf("List returned unexpected digest %s", d)
		}
	}
}

func TestPutRejectsMalformedDigest(t *testing.T) {
	s := tempStore(t)
	if err := s.Put("not-a-digest", []byte("x")); coreerr.KindOf(err) != coreerr.InvalidInput {
		t.Fatalf("expected InvalidInput, got %v", err)
	}
}

func TestHas(t *testing.T) {
	s := tempStore(t)
	blob := []byte("present")
	dig := digest.SHA256(blob)

	if s.Has(dig) {
		t.Fatalf("Has reported present before Put")
	}
	if err := s.Put(dig, blob); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if !s.Has(dig) {
		t.Fatalf("Has reported absent after Put")
	}
}

func TestOpenReopensExistingStore(t *testing.T) {
	dir, err := os.MkdirTemp("", "chunkstore-reopen-*")
	if err != nil {
		t.Fatalf("MkdirTemp failed: %v", err)
	}
	defer os.RemoveAll(dir)

	s1, err := Open(dir)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	blob := []byte("persisted across reopen")
	dig := digest.SHA256(blob)
	if err := s1.Put(dig, blob); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	s2, err := Open(dir)
	if err != nil {
		t.Fatalf("reopen Open failed: %v", err)
	}
	if s2.Stats().ChunkCount != 1 {
		t.Fatalf("reopened ChunkCount = %d, want 1", s2.Stats().ChunkCount)
	}
	if !s2.Has(dig) {
		t.Fatalf("reopened store missing previously stored digest")
	}
}
