// Package chunker slices a byte stream into fixed-size frames and
// reassembles them: every chunk but possibly the last is exactly
// size S, and index 0..n-1 is authoritative order end-to-end.
package chunker

import (
	"io"

	"github.com/hivechunk/core/pkg/coreerr"
)

// Chunk is a contiguous slice of plaintext, indexed in upload order.
type Chunk struct {
	Index int
	Data  []byte
}

// Split slices data into an ordered sequence of Chunks of at most
// size S bytes each. Every chunk but possibly the last has size
// exactly S; the last chunk has size in [1, S]. Empty input fails
// with InvalidInput, as does a non-positive S.
func Split(data []byte, size uint32) ([]Chunk, error) {
	if size == 0 {
		return nil, coreerr.New(coreerr.InvalidInput, "chunk size must be positive")
	}
	if len(data) == 0 {
		return nil, coreerr.New(coreerr.InvalidInput, "cannot split empty input")
	}

	n := (len(data) + int(size) - 1) / int(size)
	chunks := make([]Chunk, 0, n)

	for i, offset := 0, 0; offset < len(data); i, offset = i+1, offset+int(size) {
		end := offset + int(size)
		if end > len(data) {
			end = len(data)
		}
		buf := make([]byte, end-offset)
		copy(buf, data[offset:end])
		chunks = append(chunks, Chunk{Index: i, Data: buf})
	}

	return chunks, nil
}

// SplitReader is the streaming counterpart of Split, used by the
// gateway to avoid buffering an entire multipart upload before
// chunking it.
func SplitReader(r io.Reader, size uint32) ([]Chunk, error) {
	if size == 0 {
		return nil, coreerr.New(coreerr.InvalidInput, "chunk size must be positive")
	}

	var chunks []Chunk
	buf := make([]byte, size)
	index := 0

	for {
		n, err := io.ReadFull(r, buf)
		if n > 0 {
			data := make([]byte, n)
			copy(data, buf[:n])
			chunks = append(chunks, Chunk{Index: index, Data: data})
			index++
		}
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			break
		}
		if err != nil {
			return nil, coreerr.Wrap(coreerr.InvalidInput, "failed reading input stream", err)
		}
	}

	if len(chunks) == 0 {
		return nil, coreerr.New(coreerr.InvalidInput, "cannot split empty input")
	}

	return chunks, nil
}

// Reassemble concatenates an ordered sequence of Chunks back into
// the original byte stream. The caller is responsible for having
// sorted the chunks by Index; Reassemble verifies the sequence is
// contiguous starting at 0 and fails with InvalidInput otherwise.
func Reassemble(chunks []Chunk) ([]byte, error) {
	if len(chunks) == 0 {
		return nil, coreerr.New(coreerr.InvalidInput, "cannot reassemble zero chunks")
	}

	total := 0
	for i, c := range chunks {
		if c.Index != i {
			return nil, coreerr.New(coreerr.InvalidInput, "chunk sequence is not contiguous from 0")
		}
		total += len(c.Data)
	}

	out := make([]byte, 0, total)
	for _, c := range chunks {
		out = append(out, c.Data...)
	}
	return out, nil
}
