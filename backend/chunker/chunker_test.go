package chunker

import "testing"

func TestChunkerExactMultiple(t *testing.T) {
	ckr := NewChunker(4096, 1024)
	if ckr.Count() != 4 {
		t.Errorf("wrong number of chunks: %d", ckr.Count())
	}
}

// A file one byte over five chunks needs a sixth chunk for the remainder.
func TestChunkerRemainderGetsOwnChunk(t *testing.T) {
	var chunkSize uint64 = 1 << 20
	ckr := NewChunker(5*chunkSize+1, chunkSize)
	if ckr.Count() != 6 {
		t.Fatalf("expected 6 chunks, got %d", ckr.Count())
	}

	var produced []Chunk
	for {
		chunk, ok := ckr.Next()
		if !ok {
			break
		}
		produced = append(produced, chunk)
	}
	if len(produced) != 6 {
		t.Fatalf("expected 6 chunks, got %d", len(produced))
	}

	var next uint64
	for i, chunk := range produced {
		if chunk.Offset != next {
			t.Errorf("chunk %d starts at %d, want %d", i, chunk.Offset, next)
		}
		next = chunk.Offset + chunk.Length
		if chunk.Last != (i == len(produced)-1) {
			t.Errorf("chunk %d has Last=%t", i, chunk.Last)
		}
	}
	if next != 5*chunkSize+1 {
		t.Errorf("chunks cover %d bytes, want %d", next, 5*chunkSize+1)
	}
	if produced[5].Length != 1 {
		t.Errorf("final chunk length %d, want 1", produced[5].Length)
	}
}

func TestChunkerZeroSizeYieldsNothing(t *testing.T) {
	ckr := NewChunker(0, 1024)
	if ckr.Count() != 0 {
		t.Errorf("zero-size file planned %d chunks", ckr.Count())
	}
	if _, ok := ckr.Next(); ok {
		t.Error("zero-size file produced a chunk")
	}
}

func TestChunkerZeroChunkSizePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic for zero chunk size")
		}
	}()
	NewChunker(10, 0)
}
