package conn

import (
	"fmt"
	"io"
	"math/rand/v2"
	"time"

	"github.com/sirupsen/logrus"

	"srft/internal/config"
	"srft/internal/protocol"
	"srft/internal/reorder"
	"srft/internal/stats"
	"srft/internal/transport"
)

// ClientConfig parameterizes one client-driven transfer.
type ClientConfig struct {
	Server   transport.Endpoint
	Filename string
	// ConnID is the connection identifier to present in the handshake. If
	// zero, a random value in [1, 65535] is chosen, matching the source's
	// client, which mints one per invocation.
	ConnID uint16
}

// Client drives the receiving half of one transfer: handshake, reorder,
// cumulative ACK, and the terminal FIN|ACK burst. A Client is single-use;
// construct a fresh one per transfer.
type Client struct {
	Sock  transport.Socket
	Stats *stats.Stats
	Log   *logrus.Entry
}

// Result reports receive-side chunk accounting once a transfer reaches a
// terminal state, successful or not.
type Result struct {
	ConnID          uint16
	ChunksTotal     int
	ChunksDuplicate int
	ChunksWritten   int
	FramesInvalid   int
}

func chooseConnID(id uint16) uint16 {
	if id != 0 {
		return id
	}
	return uint16(rand.IntN(65535) + 1)
}

// Handshake sends SYN up to config.HandshakeRetries times, each capped at
// config.HandshakeCeiling, and returns the negotiated conn_id once a
// matching SYN|ACK arrives. It returns ErrHandshakeFailed once every
// attempt is exhausted.
func (c *Client) Handshake(cfg ClientConfig) (uint16, error) {
	connID := chooseConnID(cfg.ConnID)
	syn, err := protocol.Encode(0, 0, protocol.FlagSYN, []byte(cfg.Filename), connID)
	if err != nil {
		return 0, fmt.Errorf("conn: encode SYN: %w", err)
	}

	for attempt := 1; attempt <= config.HandshakeRetries; attempt++ {
		if err := c.Sock.Send(syn, cfg.Server); err != nil {
			return 0, fmt.Errorf("conn: send SYN: %w", err)
		}
		c.Stats.RecordSend(len(syn))
		c.Log.WithField("attempt", attempt).Debug("sent SYN")

		deadline := time.Now().Add(config.HandshakeCeiling)
		for {
			remaining := time.Until(deadline)
			if remaining <= 0 {
				break
			}
			frame, _, ok := c.Sock.Recv(remaining)
			if !ok {
				break
			}
			c.Stats.RecordReceive(len(frame))

			h, _, err := protocol.Decode(frame)
			if err != nil {
				c.Log.WithField("error", err).Debug("dropped corrupt frame during handshake")
				continue
			}
			if h.ConnID != connID {
				continue // foreign frame
			}
			if h.Flags == protocol.FlagSYN|protocol.FlagACK {
				c.Log.WithField("conn_id", connID).Info("handshake complete")
				return connID, nil
			}
		}
		c.Log.WithField("attempt", attempt).Warn("handshake attempt timed out, retrying")
	}
	return 0, ErrHandshakeFailed
}

// Run executes the data-transfer and teardown phases after a successful
// Handshake, writing the reassembled byte stream to w in index order. It
// returns once the receiver reaches TERMINATED (nil error) or FAILED
// (ErrInactive, or an error from w).
func (c *Client) Run(connID uint16, server transport.Endpoint, w io.Writer) (Result, error) {
	buf := reorder.New()
	consecutiveTimeouts := 0
	invalid := 0

	for {
		frame, _, ok := c.Sock.Recv(config.InactivityInterval)
		if !ok {
			consecutiveTimeouts++
			c.Log.WithField("timeouts", consecutiveTimeouts).Debug("receive timeout")
			if consecutiveTimeouts >= config.InactivityTimeouts {
				return result(connID, buf, invalid), ErrInactive
			}
			continue
		}
		consecutiveTimeouts = 0
		c.Stats.RecordReceive(len(frame))

		h, payload, err := protocol.Decode(frame)
		if err != nil {
			invalid++
			c.Log.WithField("error", err).Debug("dropped corrupt frame")
			continue
		}
		if h.ConnID != connID {
			c.Log.Debug("dropped foreign frame")
			continue
		}
		if h.Flags&protocol.FlagDATA == 0 {
			continue // a retransmitted SYN|ACK or similar; not part of the data phase
		}

		fin := h.Flags&protocol.FlagFIN != 0
		buf.Store(h.Seq, payload, fin)
		if err := buf.Drain(w); err != nil {
			return result(connID, buf, invalid), fmt.Errorf("conn: write output: %w", err)
		}

		ack, err := protocol.Encode(0, buf.ExpectedSeq(), protocol.FlagACK, nil, connID)
		if err != nil {
			return result(connID, buf, invalid), err
		}
		if err := c.Sock.Send(ack, server); err != nil {
			return result(connID, buf, invalid), fmt.Errorf("conn: send ACK: %w", err)
		}
		c.Stats.RecordAckSent()
		c.Stats.RecordSend(len(ack))

		if buf.Complete() {
			c.sendFinAckBurst(connID, server, buf.ExpectedSeq())
			return result(connID, buf, invalid), nil
		}
	}
}

// sendFinAckBurst sends FIN|ACK three times at 100ms intervals, tolerating
// loss of the final acknowledgement per the termination-detection policy.
func (c *Client) sendFinAckBurst(connID uint16, server transport.Endpoint, ack uint32) {
	finAck, err := protocol.Encode(0, ack, protocol.FlagFIN|protocol.FlagACK, nil, connID)
	if err != nil {
		c.Log.WithField("error", err).Error("failed to encode FIN|ACK")
		return
	}
	for i := 0; i < config.FinAckRepeat; i++ {
		if err := c.Sock.Send(finAck, server); err != nil {
			c.Log.WithField("error", err).Warn("failed to send FIN|ACK")
		} else {
			c.Stats.RecordSend(len(finAck))
		}
		if i < config.FinAckRepeat-1 {
			time.Sleep(config.FinAckInterval)
		}
	}
	c.Log.WithField("conn_id", connID).Info("transfer complete")
}

func result(connID uint16, b *reorder.Buffer, invalid int) Result {
	total, dup, written := b.Stats()
	return Result{
		ConnID:          connID,
		ChunksTotal:     total,
		ChunksDuplicate: dup,
		ChunksWritten:   written,
		FramesInvalid:   invalid,
	}
}
