// Package reorder implements the receive-side reassembly buffer: it
// accepts out-of-order DATA chunks, drops duplicates, and drains chunks to
// an io.Writer in sequence order, tracking the cumulative-ACK point the
// sender needs.
package reorder

import (
	"io"

	"srft/internal/config"
)

// Buffer reassembles a byte stream out of chunks that may arrive
// out-of-order or duplicated. It is not safe for concurrent use; the
// caller (internal/conn) serializes access per connection.
type Buffer struct {
	expectedSeq uint32
	pending     map[uint32][]byte
	finSeq      *uint32

	chunksTotal     int
	chunksDuplicate int
	chunksWritten   int
}

// New returns an empty Buffer expecting seq 0 first.
func New() *Buffer {
	return &Buffer{pending: make(map[uint32][]byte)}
}

// Store records a chunk's payload if it is neither a duplicate of an
// already-drained chunk nor already buffered, and notes fin when the
// frame carried FlagFIN. Chunks whose payload exceeds config.MaxPayload or
// whose seq exceeds config.MaxChunks are rejected without being counted as
// duplicates. It reports whether the chunk was newly accepted.
func (b *Buffer) Store(seq uint32, payload []byte, fin bool) bool {
	b.chunksTotal++

	if len(payload) > config.MaxPayload {
		return false
	}
	if seq > config.MaxChunks {
		return false
	}
	if seq < b.expectedSeq {
		b.chunksDuplicate++
		return false
	}
	if _, exists := b.pending[seq]; exists {
		b.chunksDuplicate++
		return false
	}

	if fin {
		s := seq
		b.finSeq = &s
	}

	cp := make([]byte, len(payload))
	copy(cp, payload)
	b.pending[seq] = cp
	return true
}

// Drain writes every contiguous chunk starting at the current expected
// sequence number to w, advancing ExpectedSeq past each one written.
func (b *Buffer) Drain(w io.Writer) error {
	for {
		chunk, ok := b.pending[b.expectedSeq]
		if !ok {
			return nil
		}
		if _, err := w.Write(chunk); err != nil {
			return err
		}
		delete(b.pending, b.expectedSeq)
		b.expectedSeq++
		b.chunksWritten++
	}
}

// ExpectedSeq is the next sequence number not yet drained; this is the
// cumulative ACK value the receiver reports back to the sender.
func (b *Buffer) ExpectedSeq() uint32 { return b.expectedSeq }

// Complete reports whether every chunk through the FIN chunk has been
// drained, i.e. the transfer's data phase is finished.
func (b *Buffer) Complete() bool {
	return b.finSeq != nil && b.expectedSeq == *b.finSeq+1
}

// Stats returns the chunk-level counters accumulated so far: total chunks
// seen, duplicates dropped, and chunks written to the output stream.
func (b *Buffer) Stats() (total, duplicate, written int) {
	return b.chunksTotal, b.chunksDuplicate, b.chunksWritten
}
