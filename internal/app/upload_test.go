package app

import (
	"bytes"
	"encoding/base64"
	"testing"
)

// splitEncoded chops the base64 encoding of content into n chunks.
func splitEncoded(content []byte, n int) []string {
	encoded := base64.StdEncoding.EncodeToString(content)
	chunks := make([]string, n)
	size := (len(encoded) + n - 1) / n
	for i := 0; i < n; i++ {
		start := i * size
		end := min(start+size, len(encoded))
		if start > len(encoded) {
			start = len(encoded)
		}
		chunks[i] = encoded[start:end]
	}
	return chunks
}

func chunkPayload(device string, chunks []string, index int) uploadChunkPayload {
	return uploadChunkPayload{
		DeviceID:    device,
		Chunk:       chunks[index],
		Filename:    "worksheet.pdf",
		SubjectName: "Physics",
		ChunkIndex:  index,
		TotalChunks: len(chunks),
	}
}

func TestReassemblyInAnyOrder(t *testing.T) {
	content := []byte("the quick brown fox jumps over the lazy dog")
	chunks := splitEncoded(content, 4)

	orders := [][]int{
		{0, 1, 2, 3},
		{3, 2, 1, 0},
		{2, 0, 3, 1},
		{1, 3, 0, 2},
	}
	for _, order := range orders {
		ra := NewReassembler()
		var file uploadedFilePayload
		var done bool
		for i, idx := range order {
			file, done = ra.Add("conn-1", chunkPayload("dev-1", chunks, idx))
			if i < len(order)-1 && done {
				t.Fatalf("order %v: completed after %d chunks", order, i+1)
			}
		}
		if !done {
			t.Fatalf("order %v: never completed", order)
		}
		if !bytes.Equal(file.File, content) {
			t.Fatalf("order %v: reassembled %q, want %q", order, file.File, content)
		}
		if file.Filename != "worksheet.pdf" || file.SubjectName != "Physics" {
			t.Fatalf("order %v: metadata = %q/%q", order, file.Filename, file.SubjectName)
		}
		if ra.Pending() != 0 {
			t.Fatalf("order %v: session not deleted after completion", order)
		}
	}
}

func TestDuplicateChunkDoesNotDoubleCount(t *testing.T) {
	content := []byte("duplicate chunk data")
	chunks := splitEncoded(content, 3)
	ra := NewReassembler()

	if _, done := ra.Add("c", chunkPayload("dev-1", chunks, 0)); done {
		t.Fatal("completed after first chunk")
	}
	// Same index again: overwrite, no progress.
	if _, done := ra.Add("c", chunkPayload("dev-1", chunks, 0)); done {
		t.Fatal("duplicate chunk counted toward completion")
	}
	if _, done := ra.Add("c", chunkPayload("dev-1", chunks, 1)); done {
		t.Fatal("completed with one slot still empty")
	}
	file, done := ra.Add("c", chunkPayload("dev-1", chunks, 2))
	if !done {
		t.Fatal("never completed")
	}
	if !bytes.Equal(file.File, content) {
		t.Fatalf("reassembled %q, want %q", file.File, content)
	}
}

func TestIncompleteUploadNeverEmits(t *testing.T) {
	chunks := splitEncoded([]byte("partial upload"), 5)
	ra := NewReassembler()
	for _, idx := range []int{0, 1, 3, 4} {
		if _, done := ra.Add("c", chunkPayload("dev-1", chunks, idx)); done {
			t.Fatal("completed with a missing index")
		}
	}
	if ra.Pending() != 1 {
		t.Fatalf("Pending = %d, want 1", ra.Pending())
	}
}

func TestTotalMismatchDropsChunk(t *testing.T) {
	chunks := splitEncoded([]byte("first total wins"), 2)
	ra := NewReassembler()
	ra.Add("c", chunkPayload("dev-1", chunks, 0))

	// A different declared total mid-session is dropped outright.
	bad := chunkPayload("dev-1", chunks, 1)
	bad.TotalChunks = 7
	if _, done := ra.Add("c", bad); done {
		t.Fatal("mismatched total completed the session")
	}

	// The original declaration still completes.
	file, done := ra.Add("c", chunkPayload("dev-1", chunks, 1))
	if !done {
		t.Fatal("session did not survive a mismatched chunk")
	}
	if !bytes.Equal(file.File, []byte("first total wins")) {
		t.Fatalf("reassembled %q", file.File)
	}
}

func TestInvalidChunkBoundsDropped(t *testing.T) {
	chunks := splitEncoded([]byte("bounds"), 2)
	ra := NewReassembler()

	bad := chunkPayload("dev-1", chunks, 0)
	bad.TotalChunks = 0
	if _, done := ra.Add("c", bad); done || ra.Pending() != 0 {
		t.Fatal("non-positive total created a session")
	}

	ra.Add("c", chunkPayload("dev-1", chunks, 0))
	outOfRange := chunkPayload("dev-1", chunks, 1)
	outOfRange.ChunkIndex = 2
	if _, done := ra.Add("c", outOfRange); done {
		t.Fatal("out-of-range index accepted")
	}
	negative := chunkPayload("dev-1", chunks, 1)
	negative.ChunkIndex = -1
	if _, done := ra.Add("c", negative); done {
		t.Fatal("negative index accepted")
	}
}

func TestMetadataFromFirstChunkWins(t *testing.T) {
	chunks := splitEncoded([]byte("metadata"), 2)
	ra := NewReassembler()
	ra.Add("c", chunkPayload("dev-1", chunks, 0))

	last := chunkPayload("dev-1", chunks, 1)
	last.Filename = ""
	last.SubjectName = ""
	file, done := ra.Add("c", last)
	if !done {
		t.Fatal("never completed")
	}
	if file.Filename != "worksheet.pdf" || file.SubjectName != "Physics" {
		t.Fatalf("metadata = %q/%q, want first chunk's declaration", file.Filename, file.SubjectName)
	}
}

func TestInvalidBase64DiscardsUpload(t *testing.T) {
	ra := NewReassembler()
	p := uploadChunkPayload{
		DeviceID:    "dev-1",
		Chunk:       "!!! not base64 !!!",
		Filename:    "broken.bin",
		ChunkIndex:  0,
		TotalChunks: 1,
	}
	if _, done := ra.Add("c", p); done {
		t.Fatal("invalid base64 produced a completion")
	}
	if ra.Pending() != 0 {
		t.Fatal("discarded session still pending")
	}
}

func TestEvictOwnerDropsSessions(t *testing.T) {
	chunks := splitEncoded([]byte("abandoned"), 3)
	ra := NewReassembler()
	ra.Add("conn-1", chunkPayload("dev-1", chunks, 0))
	ra.Add("conn-2", chunkPayload("dev-2", chunks, 0))

	ra.EvictOwner("conn-1")

	if ra.Pending() != 1 {
		t.Fatalf("Pending = %d, want 1", ra.Pending())
	}
	// dev-2's session (other owner) must be untouched.
	ra.Add("conn-2", chunkPayload("dev-2", chunks, 1))
	if _, done := ra.Add("conn-2", chunkPayload("dev-2", chunks, 2)); !done {
		t.Fatal("surviving session failed to complete")
	}
}

func TestSessionReusableAfterCompletion(t *testing.T) {
	first := splitEncoded([]byte("first file"), 2)
	second := splitEncoded([]byte("second file"), 3)
	ra := NewReassembler()

	ra.Add("c", chunkPayload("dev-1", first, 0))
	if _, done := ra.Add("c", chunkPayload("dev-1", first, 1)); !done {
		t.Fatal("first upload never completed")
	}

	// A fresh session for the same device id, with a different total.
	ra.Add("c", chunkPayload("dev-1", second, 0))
	ra.Add("c", chunkPayload("dev-1", second, 1))
	file, done := ra.Add("c", chunkPayload("dev-1", second, 2))
	if !done {
		t.Fatal("second upload never completed")
	}
	if !bytes.Equal(file.File, []byte("second file")) {
		t.Fatalf("reassembled %q", file.File)
	}
}
