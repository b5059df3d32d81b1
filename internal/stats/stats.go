// Package stats tracks transfer-level counters (packets, bytes,
// retransmits, acks) for both roles and derives the throughput and
// retransmit-rate figures printed in the final report.
package stats

import (
	"sync"
	"sync/atomic"
	"time"
)

// Stats is a thread-safe counter set. The client keeps one per transfer;
// the server passes one Stats to every connection it serves. All methods
// are safe for concurrent use.
type Stats struct {
	packetsSent          uint64
	packetsReceived      uint64
	packetsRetransmitted uint64
	acksSent             uint64
	acksReceived         uint64
	bytesSent            uint64
	bytesReceived        uint64

	mu        sync.Mutex
	startTime time.Time
	endTime   time.Time
}

// New returns a zeroed Stats ready to record a transfer.
func New() *Stats {
	return &Stats{}
}

// RecordSend records one outgoing packet of packetSize bytes (header +
// payload).
func (s *Stats) RecordSend(packetSize int) {
	atomic.AddUint64(&s.packetsSent, 1)
	atomic.AddUint64(&s.bytesSent, uint64(packetSize))
}

// RecordReceive records one incoming packet of packetSize bytes.
func (s *Stats) RecordReceive(packetSize int) {
	atomic.AddUint64(&s.packetsReceived, 1)
	atomic.AddUint64(&s.bytesReceived, uint64(packetSize))
}

// RecordRetransmit records a chunk resent due to a missing ACK.
func (s *Stats) RecordRetransmit() {
	atomic.AddUint64(&s.packetsRetransmitted, 1)
}

// RecordAckSent records an ACK frame sent.
func (s *Stats) RecordAckSent() {
	atomic.AddUint64(&s.acksSent, 1)
}

// RecordAckReceived records an ACK frame received.
func (s *Stats) RecordAckReceived() {
	atomic.AddUint64(&s.acksReceived, 1)
}

// StartTransfer marks the beginning of the transfer for duration tracking.
func (s *Stats) StartTransfer() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.startTime = time.Now()
}

// EndTransfer marks the end of the transfer.
func (s *Stats) EndTransfer() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.endTime = time.Now()
}

// Report is the immutable snapshot returned by Stats.Report.
type Report struct {
	PacketsSent          uint64
	PacketsReceived      uint64
	PacketsRetransmitted uint64
	AcksSent             uint64
	AcksReceived         uint64
	BytesSent            uint64
	BytesReceived        uint64
	DurationSeconds      float64
	ThroughputMbps       float64
	RetransmitRatePct    float64
}

// Report computes a full snapshot, deriving duration, throughput, and
// retransmit rate from the raw counters.
func (s *Stats) Report() Report {
	s.mu.Lock()
	start, end := s.startTime, s.endTime
	s.mu.Unlock()

	var duration float64
	if !start.IsZero() && !end.IsZero() {
		duration = end.Sub(start).Seconds()
	}

	sent := atomic.LoadUint64(&s.packetsSent)
	received := atomic.LoadUint64(&s.bytesReceived)
	retransmitted := atomic.LoadUint64(&s.packetsRetransmitted)

	var throughput float64
	if duration > 0 {
		throughput = float64(received*8) / (duration * 1_000_000)
	}

	var retransmitRate float64
	if sent > 0 {
		retransmitRate = (float64(retransmitted) / float64(sent)) * 100
	}

	return Report{
		PacketsSent:          sent,
		PacketsReceived:      atomic.LoadUint64(&s.packetsReceived),
		PacketsRetransmitted: retransmitted,
		AcksSent:             atomic.LoadUint64(&s.acksSent),
		AcksReceived:         atomic.LoadUint64(&s.acksReceived),
		BytesSent:            atomic.LoadUint64(&s.bytesSent),
		BytesReceived:        received,
		DurationSeconds:      duration,
		ThroughputMbps:       throughput,
		RetransmitRatePct:    retransmitRate,
	}
}
