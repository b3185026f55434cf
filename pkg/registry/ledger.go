package registry

import (
	"bufio"
	"io"
	"os"
	"sync"

	"github.com/hivechunk/core/pkg/codec/cborcanon"
	"github.com/hivechunk/core/pkg/coreerr"
)

// LedgerRegistry is a file-backed append-only ledger of published
// entries, each record a length-prefixed canonical CBOR blob. It is
// the local stand-in for the smart-contract-backed registry the
// system's original design describes, which is out of scope here
// (see DESIGN.md): this backend gives append-only publish semantics
// without a chain. Records carry no hash chain or checksum, so an
// edit to the file is not detected on replay.
type LedgerRegistry struct {
	mu      sync.Mutex
	path    string
	entries map[string]Entry
	order   []string
}

// OpenLedger opens (creating if needed) the ledger file at path and
// replays it into memory.
func OpenLedger(path string) (*LedgerRegistry, error) {
	l := &LedgerRegistry{
		path:    path,
		entries: make(map[string]Entry),
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDONLY, 0o600)
	if err != nil {
		return nil, coreerr.Wrap(coreerr.InvalidInput, "failed to open ledger file", err)
	}
	defer f.Close()

	if err := l.replay(f); err != nil {
		return nil, err
	}

	return l, nil
}

func (l *LedgerRegistry) replay(f *os.File) error {
	r := bufio.NewReader(f)
	for {
		var length uint32
		if err := readUint32(r, &length); err != nil {
			if err == io.EOF {
				return nil
			}
			return coreerr.Wrap(coreerr.InvalidInput, "ledger file is corrupt", err)
		}

		buf := make([]byte, length)
		if _, err := io.ReadFull(r, buf); err != nil {
			return coreerr.Wrap(coreerr.InvalidInput, "ledger file truncated mid-record", err)
		}

		var entry Entry
		if err := cborcanon.Unmarshal(buf, &entry); err != nil {
			return coreerr.Wrap(coreerr.InvalidInput, "ledger record is not valid CBOR", err)
		}

		l.entries[entry.FileID] = entry
		l.order = append(l.order, entry.FileID)
	}
}

func readUint32(r *bufio.Reader, out *uint32) error {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return err
	}
	*out = uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
	return nil
}

func writeUint32(w io.Writer, v uint32) error {
	b := [4]byte{byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)}
	_, err := w.Write(b[:])
	return err
}

// Publish appends entry to the ledger file and records it in memory.
// Publishing the same file-id twice fails with InvalidInput.
func (l *LedgerRegistry) Publish(entry Entry) error {
	if entry.FileID == "" {
		return coreerr.New(coreerr.InvalidInput, "file-id is required")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.entries[entry.FileID]; exists {
		return coreerr.New(coreerr.InvalidInput, "file-id already published").WithDigest(entry.FileID)
	}

	blob, err := cborcanon.Marshal(entry)
	if err != nil {
		return coreerr.Wrap(coreerr.InvalidInput, "failed to encode ledger entry", err)
	}

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return coreerr.Wrap(coreerr.InvalidInput, "failed to open ledger for append", err)
	}
	defer f.Close()

	if err := writeUint32(f, uint32(len(blob))); err != nil {
		return coreerr.Wrap(coreerr.InvalidInput, "failed to append ledger record length", err)
	}
	if _, err := f.Write(blob); err != nil {
		return coreerr.Wrap(coreerr.InvalidInput, "failed to append ledger record", err)
	}

	l.entries[entry.FileID] = entry
	l.order = append(l.order, entry.FileID)
	return nil
}

// Get returns the entry published under fileID.
func (l *LedgerRegistry) Get(fileID string) (Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, exists := l.entries[fileID]
	if !exists {
		return Entry{}, coreerr.New(coreerr.NotFound, "file not found").WithDigest(fileID)
	}
	return entry, nil
}

// Count returns the number of entries published.
func (l *LedgerRegistry) Count() (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.order), nil
}

// IDByIndex returns the file-id published at position index, in
// publication order.
func (l *LedgerRegistry) IDByIndex(index int) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if index < 0 || index >= len(l.order) {
		return "", coreerr.New(coreerr.InvalidInput, "index out of range")
	}
	return l.order[index], nil
}
