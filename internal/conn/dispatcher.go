package conn

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"srft/internal/config"
	"srft/internal/protocol"
	"srft/internal/transport"
)

// inbound is one demultiplexed datagram waiting for its connection's
// handler goroutine to consume it.
type inbound struct {
	frame []byte
	src   transport.Endpoint
}

// Dispatcher fans a single bound socket out across many concurrent
// transfers, keyed by conn_id, since every client's SYN and subsequent
// frames arrive on the one socket the server listens on. The system
// assumes one active transfer per connection identifier; concurrent
// transfers use distinct identifiers and never share state, which this
// type enforces by routing.
type Dispatcher struct {
	sock transport.Socket
	log  *logrus.Entry

	mu     sync.Mutex
	routes map[uint16]chan inbound
}

// NewDispatcher wraps sock, which must already be bound to the server's
// listening endpoint.
func NewDispatcher(sock transport.Socket, log *logrus.Entry) *Dispatcher {
	return &Dispatcher{sock: sock, log: log, routes: make(map[uint16]chan inbound)}
}

// OnSYN is invoked for the first SYN seen for a not-yet-routed conn_id.
// The implementation is responsible for replying SYN|ACK and running the
// rest of that connection's lifecycle against route, typically in its own
// goroutine so Serve's loop is never blocked by one transfer.
type OnSYN func(connID uint16, filename string, src transport.Endpoint, route transport.Socket)

// Serve reads frames from the bound socket until ctx is cancelled, routing
// each to its connection's inbox by conn_id, or handing a never-seen
// conn_id's SYN to onSYN to start a new connection.
func (d *Dispatcher) Serve(ctx context.Context, onSYN OnSYN) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		frame, src, ok := d.sock.Recv(config.InactivityInterval)
		if !ok {
			continue
		}
		h, payload, err := protocol.Decode(frame)
		if err != nil {
			d.log.WithField("error", err).Debug("dropped corrupt frame")
			continue
		}

		d.mu.Lock()
		route, exists := d.routes[h.ConnID]
		d.mu.Unlock()

		if exists {
			select {
			case route <- inbound{frame: frame, src: src}:
			default:
				// Inbox full: the production socket would have the kernel
				// drop the datagram too, so discarding here matches
				// behavior instead of blocking the dispatcher loop.
			}
			continue
		}

		if h.Flags != protocol.FlagSYN {
			d.log.WithField("conn_id", h.ConnID).Debug("dropped frame for unknown connection")
			continue
		}

		ch := make(chan inbound, 64)
		d.mu.Lock()
		d.routes[h.ConnID] = ch
		d.mu.Unlock()
		onSYN(h.ConnID, string(payload), src, &routeSocket{dispatcher: d, inbox: ch})
	}
}

// Remove drops connID's route once its handler goroutine terminates, so a
// later SYN with the same conn_id starts a fresh connection instead of
// being mistaken for a retransmit of the old one.
func (d *Dispatcher) Remove(connID uint16) {
	d.mu.Lock()
	delete(d.routes, connID)
	d.mu.Unlock()
}

// routeSocket is the transport.Socket a per-connection handler is given:
// Send goes straight to the shared listening socket; Recv reads from this
// connection's demultiplexed inbox instead of the socket directly.
type routeSocket struct {
	dispatcher *Dispatcher
	inbox      chan inbound
}

func (r *routeSocket) Send(frame []byte, dst transport.Endpoint) error {
	return r.dispatcher.sock.Send(frame, dst)
}

func (r *routeSocket) Recv(timeout time.Duration) ([]byte, transport.Endpoint, bool) {
	select {
	case in := <-r.inbox:
		return in.frame, in.src, true
	case <-time.After(timeout):
		return nil, transport.Endpoint{}, false
	}
}

func (r *routeSocket) Close() error { return nil }
