package chunker

import (
	"bytes"
	"testing"

	"github.com/hivechunk/core/pkg/coreerr"
)

func TestSplitExactMultiple(t *testing.T) {
	data := bytes.Repeat([]byte{0xAB}, 30)
	chunks, err := Split(data, 10)
	if err != nil {
		t.Fatalf("Split failed: %v", err)
	}
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if c.Index != i {
			t.Errorf("chunk %d has index %d", i, c.Index)
		}
		if len(c.Data) != 10 {
			t.Errorf("chunk %d has size %d, want 10", i, len(c.Data))
		}
	}
}

func TestSplitRemainder(t *testing.T) {
	data := bytes.Repeat([]byte{0x01}, 25)
	chunks, err := Split(data, 10)
	if err != nil {
		t.Fatalf("Split failed: %v", err)
	}
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	if len(chunks[2].Data) != 5 {
		t.Errorf("last chunk size = %d, want 5", len(chunks[2].Data))
	}
}

func TestSplitEmptyInput(t *testing.T) {
	_, err := Split(nil, 10)
	if coreerr.KindOf(err) != coreerr.InvalidInput {
		t.Fatalf("expected InvalidInput, got %v", err)
	}
}

func TestSplitZeroSize(t *testing.T) {
	_, err := Split([]byte{1, 2, 3}, 0)
	if coreerr.KindOf(err) != coreerr.InvalidInput {
		t.Fatalf("expected InvalidInput, got %v", err)
	}
}

func TestSplitReassembleRoundTrip(t *testing.T) {
	data := bytes.Repeat([]byte{0x42}, 1<<20)
	data = append(data, []byte("tail")...)

	chunks, err := Split(data, 64*1024)
	if err != nil {
		t.Fatalf("Split failed: %v", err)
	}

	out, err := Reassemble(chunks)
	if err != nil {
		t.Fatalf("Reassemble failed: %v", err)
	}
	if !bytes.Equal(data, out) {
		t.Fatalf("round trip mismatch: got %d bytes, want %d", len(out), len(data))
	}
}

func TestSplitReaderMatchesSplit(t *testing.T) {
	data := bytes.Repeat([]byte{0x07}, 12345)

	want, err := Split(data, 4096)
	if err != nil {
		t.Fatalf("Split failed: %v", err)
	}
	got, err := SplitReader(bytes.NewReader(data), 4096)
	if err != nil {
		t.Fatalf("SplitReader failed: %v", err)
	}

	if len(got) != len(want) {
		t.Fatalf("chunk count mismatch: got %d, want %d", len(got), len(want))
	}
	for i := range want {
		if !bytes.Equal(got[i].Data, want[i].Data) {
			t.Errorf("chunk %d data mismatch", i)
		}
	}
}

func TestReassembleRejectsGap(t *testing.T) {
	chunks := []Chunk{{Index: 0, Data: []byte("a")}, {Index: 2, Data: []byte("b")}}
	_, err := Reassemble(chunks)
	if coreerr.KindOf(err) != coreerr.InvalidInput {
		t.Fatalf("expected InvalidInput, got %v", err)
	}
}

func TestReassembleRejectsEmpty(t *testing.T) {
	_, err := Reassemble(nil)
	if coreerr.KindOf(err) != coreerr.InvalidInput {
		t.Fatalf("expected InvalidInput, got %v", err)
	}
}
