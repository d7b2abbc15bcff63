package main

import (
	"bytes"
	"testing"
)

func TestChunkInputSmallStaysWhole(t *testing.T) {
	data := bytes.Repeat([]byte("a"), 1499)
	chunks, paced := ChunkInput(data)

	if paced {
		t.Error("payload under threshold should not be paced")
	}
	if len(chunks) != 1 || len(chunks[0]) != 1499 {
		t.Errorf("got %d chunks, want 1 whole chunk", len(chunks))
	}
}

func TestChunkInputLargeIsSplit(t *testing.T) {
	data := make([]byte, 2000)
	for i := range data {
		data[i] = byte('a' + i%26)
	}

	chunks, paced := ChunkInput(data)
	if !paced {
		t.Error("payload over threshold should be paced")
	}

	// 2000 bytes → three 512-byte chunks plus a 464-byte tail.
	if len(chunks) != 4 {
		t.Fatalf("got %d chunks, want 4", len(chunks))
	}
	for i := 0; i < 3; i++ {
		if len(chunks[i]) != 512 {
			t.Errorf("chunk %d size = %d, want 512", i, len(chunks[i]))
		}
	}
	if len(chunks[3]) != 464 {
		t.Errorf("tail size = %d, want 464", len(chunks[3]))
	}

	// Reassembly must be byte-exact and ordered.
	var joined []byte
	for _, c := range chunks {
		joined = append(joined, c...)
	}
	if !bytes.Equal(joined, data) {
		t.Error("chunks do not reassemble to the original payload")
	}
}

func TestChunkInputAtThreshold(t *testing.T) {
	data := bytes.Repeat([]byte("b"), inputChunkThreshold)
	chunks, paced := ChunkInput(data)

	if !paced {
		t.Error("payload at threshold must be chunked")
	}
	if len(chunks) != 3 {
		t.Errorf("got %d chunks, want 3", len(chunks))
	}
}
