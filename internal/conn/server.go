package conn

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"srft/internal/config"
	"srft/internal/protocol"
	"srft/internal/stats"
	"srft/internal/transport"
	"srft/internal/window"
)

// ServerConn drives the sending half of one transfer: it replies to the
// accepted SYN, streams chunks through the sliding window of
// internal/window, services ACKs and retransmit deadlines from one
// cooperative loop, and waits for the terminal FIN|ACK.
type ServerConn struct {
	Sock   transport.Socket
	Stats  *stats.Stats
	Log    *logrus.Entry
	ConnID uint16
	Peer   transport.Endpoint
	Window int
	RTO    time.Duration
}

// Serve replies SYN|ACK, chunks data into chunkSize-sized pieces, streams
// them through the sliding window, and returns once the transfer reaches
// TERMINATED (nil) or FAILED (ErrRetriesExhausted).
func (s *ServerConn) Serve(data []byte, chunkSize int) error {
	synAck, err := protocol.Encode(0, 0, protocol.FlagSYN|protocol.FlagACK, nil, s.ConnID)
	if err != nil {
		return fmt.Errorf("conn: encode SYN|ACK: %w", err)
	}
	if err := s.Sock.Send(synAck, s.Peer); err != nil {
		return fmt.Errorf("conn: send SYN|ACK: %w", err)
	}
	s.Stats.RecordSend(len(synAck))

	chunks := window.Split(data, chunkSize)
	sender := window.NewSender(chunks, s.Window, s.RTO)

	s.Stats.StartTransfer()
	defer s.Stats.EndTransfer()

	for !sender.Done() {
		now := time.Now()
		for _, c := range sender.ReadyToSend(now) {
			if err := s.sendChunk(c); err != nil {
				return err
			}
		}
		if sender.Done() {
			break
		}

		if frame, _, ok := s.Sock.Recv(s.RTO / 2); ok {
			s.handleInbound(frame, sender)
		}

		expired, exhausted := sender.Expired(time.Now())
		if exhausted {
			s.Log.Error("chunk exceeded max retransmit attempts, failing transfer")
			return ErrRetriesExhausted
		}
		for _, c := range expired {
			if err := s.sendChunk(c); err != nil {
				return err
			}
			s.Stats.RecordRetransmit()
		}
	}

	return s.waitForFinAck()
}

func (s *ServerConn) sendChunk(c window.Chunk) error {
	flags := protocol.FlagDATA
	if c.Fin {
		flags |= protocol.FlagFIN
	}
	frame, err := protocol.Encode(c.Seq, 0, flags, c.Payload, s.ConnID)
	if err != nil {
		return fmt.Errorf("conn: encode chunk %d: %w", c.Seq, err)
	}
	if err := s.Sock.Send(frame, s.Peer); err != nil {
		return fmt.Errorf("conn: send chunk %d: %w", c.Seq, err)
	}
	s.Stats.RecordSend(len(frame))
	return nil
}

func (s *ServerConn) handleInbound(frame []byte, sender *window.Sender) {
	h, _, err := protocol.Decode(frame)
	if err != nil {
		s.Log.WithField("error", err).Debug("dropped corrupt frame")
		return
	}
	if h.ConnID != s.ConnID {
		s.Log.Debug("dropped foreign frame")
		return
	}
	s.Stats.RecordReceive(len(frame))

	switch h.Flags {
	case protocol.FlagACK:
		s.Stats.RecordAckReceived()
		sender.Ack(h.Ack) // clamped via max inside Ack: a lower ack is a no-op
	case protocol.FlagSYN:
		// The client never saw our SYN|ACK; resend it so a lost reply
		// doesn't force the client through its full retry ceiling.
		synAck, err := protocol.Encode(0, 0, protocol.FlagSYN|protocol.FlagACK, nil, s.ConnID)
		if err == nil {
			if sendErr := s.Sock.Send(synAck, s.Peer); sendErr == nil {
				s.Stats.RecordSend(len(synAck))
			}
		}
	}
}

// waitForFinAck waits up to config.FinWait for the client's FIN|ACK. The
// server is permitted to treat a single FIN|ACK as terminal and to give up
// waiting once FIN_WAIT elapses, since every data chunk has already been
// acknowledged by this point.
func (s *ServerConn) waitForFinAck() error {
	deadline := time.Now().Add(config.FinWait)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			break
		}
		frame, _, ok := s.Sock.Recv(remaining)
		if !ok {
			break
		}
		h, _, err := protocol.Decode(frame)
		if err != nil || h.ConnID != s.ConnID {
			continue
		}
		if h.Flags == protocol.FlagFIN|protocol.FlagACK {
			s.Log.Info("received FIN|ACK, transfer complete")
			return nil
		}
	}
	s.Log.Warn("no FIN|ACK observed before FIN_WAIT elapsed, terminating anyway")
	return nil
}

// Server wires a Dispatcher to a file root: every accepted SYN is resolved
// against Root by filename, chunked, and streamed by a fresh ServerConn
// running in its own goroutine, per the one-transfer-per-conn_id model.
type Server struct {
	Sock       transport.Socket
	Root       string
	ChunkSize  int
	WindowSize int
	RTO        time.Duration
	Stats      *stats.Stats
	Log        *logrus.Logger
}

// Serve runs the dispatcher loop until ctx is cancelled. It returns once
// every in-flight connection's onSYN callback has been dispatched; it does
// not wait for in-flight transfers to finish.
func (s *Server) Serve(ctx context.Context) {
	d := NewDispatcher(s.Sock, s.Log.WithField("component", "dispatcher"))
	d.Serve(ctx, func(connID uint16, filename string, src transport.Endpoint, route transport.Socket) {
		go s.handleConnection(d, connID, filename, src, route)
	})
}

func (s *Server) handleConnection(d *Dispatcher, connID uint16, filename string, src transport.Endpoint, route transport.Socket) {
	defer d.Remove(connID)
	log := s.Log.WithFields(logrus.Fields{"conn_id": connID, "peer": src.String(), "filename": filename})

	path := filepath.Join(s.Root, filepath.Base(filename))
	data, err := os.ReadFile(path)
	if err != nil {
		log.WithField("error", err).Error("file not found, dropping request")
		return
	}

	sc := &ServerConn{
		Sock:   route,
		Stats:  s.Stats,
		Log:    log,
		ConnID: connID,
		Peer:   src,
		Window: s.WindowSize,
		RTO:    s.RTO,
	}
	log.WithField("size", len(data)).Info("starting transfer")
	if err := sc.Serve(data, s.ChunkSize); err != nil {
		log.WithField("error", err).Error("transfer failed")
		return
	}
	log.Info("transfer complete")
}
