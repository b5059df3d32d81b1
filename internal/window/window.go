// Package window implements the send side of the sliding window: chunking
// a file into sequence-numbered payloads, tracking which ones are
// in-flight, and scheduling retransmits by deadline.
package window

import (
	"container/heap"
	"time"

	"srft/internal/config"
)

// Chunk is one sequence-numbered unit of a file transfer.
type Chunk struct {
	Seq     uint32
	Payload []byte
	Fin     bool // true on the final chunk of the file
}

// Split divides data into chunkSize-sized chunks, numbered from 0, with Fin
// set on the last one. An empty file still yields a single, empty Fin
// chunk so the receiver has a FIN sequence to converge on. chunkSize is
// clamped to config.MaxPayload.
func Split(data []byte, chunkSize int) []Chunk {
	if chunkSize <= 0 || chunkSize > config.MaxPayload {
		chunkSize = config.MaxPayload
	}
	if len(data) == 0 {
		return []Chunk{{Seq: 0, Payload: nil, Fin: true}}
	}
	var chunks []Chunk
	var seq uint32
	for off := 0; off < len(data); off += chunkSize {
		end := off + chunkSize
		if end > len(data) {
			end = len(data)
		}
		chunks = append(chunks, Chunk{Seq: seq, Payload: data[off:end], Fin: end == len(data)})
		seq++
	}
	return chunks
}

// record tracks one in-flight (unacked) chunk's retransmit deadline.
type record struct {
	seq      uint32
	deadline time.Time
	retries  int
	index    int // heap index, maintained by container/heap
}

type deadlineHeap []*record

func (h deadlineHeap) Len() int            { return len(h) }
func (h deadlineHeap) Less(i, j int) bool  { return h[i].deadline.Before(h[j].deadline) }
func (h deadlineHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i]; h[i].index = i; h[j].index = j }
func (h *deadlineHeap) Push(x interface{}) {
	r := x.(*record)
	r.index = len(*h)
	*h = append(*h, r)
}
func (h *deadlineHeap) Pop() interface{} {
	old := *h
	n := len(old)
	r := old[n-1]
	old[n-1] = nil
	r.index = -1
	*h = old[:n-1]
	return r
}

// Sender tracks a sliding window of in-flight chunks and schedules
// retransmits via a deadline-ordered heap, with logical deletion on ACK:
// an acked record is removed from the side map, and its stale heap entry
// is skipped when popped rather than removed from the heap directly.
type Sender struct {
	chunks []Chunk
	size   int
	rto    time.Duration

	base    int // index into chunks of the oldest unacked chunk
	nextIdx int // index of the next chunk not yet sent

	inFlight map[uint32]*record
	heap     deadlineHeap
}

// NewSender builds a Sender over chunks with the given window size and
// retransmit timeout.
func NewSender(chunks []Chunk, windowSize int, rto time.Duration) *Sender {
	return &Sender{
		chunks:   chunks,
		size:     windowSize,
		rto:      rto,
		inFlight: make(map[uint32]*record),
	}
}

// Done reports whether every chunk has been sent and acked.
func (s *Sender) Done() bool {
	return s.base >= len(s.chunks)
}

// ReadyToSend returns chunks that fit in the current window and have not
// yet been sent, marking each as in-flight with a fresh deadline.
func (s *Sender) ReadyToSend(now time.Time) []Chunk {
	var out []Chunk
	for s.nextIdx < len(s.chunks) && s.nextIdx < s.base+s.size {
		c := s.chunks[s.nextIdx]
		s.markInFlight(c.Seq, now)
		out = append(out, c)
		s.nextIdx++
	}
	return out
}

func (s *Sender) markInFlight(seq uint32, now time.Time) {
	r := &record{seq: seq, deadline: now.Add(s.rto)}
	s.inFlight[seq] = r
	heap.Push(&s.heap, r)
}

// Ack advances the window past every chunk up to (but not including)
// cumulativeAck, the receiver's next-expected sequence number. Acked
// records are removed from inFlight; their heap entries are skipped
// lazily when they surface in Expired.
func (s *Sender) Ack(cumulativeAck uint32) {
	for s.base < len(s.chunks) && s.chunks[s.base].Seq < cumulativeAck {
		delete(s.inFlight, s.chunks[s.base].Seq)
		s.base++
	}
}

// Expired pops every chunk whose retransmit deadline has passed as of now,
// re-arming it with a fresh deadline and incrementing its retry count.
// Once a chunk has exhausted MaxRetries, Expired returns (nil, true)
// without re-arming it; the caller should abort the transfer.
func (s *Sender) Expired(now time.Time) (chunks []Chunk, exhausted bool) {
	for s.heap.Len() > 0 && !s.heap[0].deadline.After(now) {
		r := heap.Pop(&s.heap).(*record)
		cur, ok := s.inFlight[r.seq]
		if !ok || cur != r {
			continue // stale entry: already acked or superseded
		}
		if cur.retries >= config.MaxRetries {
			delete(s.inFlight, r.seq)
			return nil, true
		}
		cur.retries++
		cur.deadline = now.Add(s.rto)
		heap.Push(&s.heap, cur)
		chunks = append(chunks, s.chunkBySeq(r.seq))
	}
	return chunks, false
}

func (s *Sender) chunkBySeq(seq uint32) Chunk {
	// Chunks are numbered contiguously from 0, so the seq is also its index.
	return s.chunks[seq]
}

// RetransmitCount returns how many retransmits have been issued for seq,
// or 0 if seq is not (or no longer) in flight.
func (s *Sender) RetransmitCount(seq uint32) int {
	if r, ok := s.inFlight[seq]; ok {
		return r.retries
	}
	return 0
}
