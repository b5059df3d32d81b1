package transport

import (
	"net"
	"sync"
	"time"
)

// mockNetwork is a shared, in-memory switch that delivers frames between
// mockSockets bound to the same instance, keyed by Endpoint. It lets tests
// exercise the full send/receive engine without CAP_NET_RAW.
type mockNetwork struct {
	mu    sync.Mutex
	boxes map[string]chan mockDatagram
	drop  func(frame []byte) bool
}

type mockDatagram struct {
	frame []byte
	src   Endpoint
}

// NewMockNetwork creates an empty loopback network. drop, if non-nil, is
// consulted on every Send and lets tests simulate packet loss.
func NewMockNetwork(drop func(frame []byte) bool) *mockNetwork {
	return &mockNetwork{boxes: make(map[string]chan mockDatagram), drop: drop}
}

// Socket returns a Socket bound to ep on this network, creating its inbox
// if this is the first call for ep.
func (n *mockNetwork) Socket(ep Endpoint) Socket {
	n.mu.Lock()
	defer n.mu.Unlock()
	key := ep.String()
	if _, ok := n.boxes[key]; !ok {
		n.boxes[key] = make(chan mockDatagram, 256)
	}
	return &mockSocket{net: n, local: ep}
}

// mockSocket is a Socket implementation over mockNetwork's channels.
type mockSocket struct {
	net   *mockNetwork
	local Endpoint
}

// Send implements Socket.
func (s *mockSocket) Send(frame []byte, dst Endpoint) error {
	if s.net.drop != nil && s.net.drop(frame) {
		return nil
	}
	cp := make([]byte, len(frame))
	copy(cp, frame)

	s.net.mu.Lock()
	box, ok := s.net.boxes[dst.String()]
	if !ok {
		box = make(chan mockDatagram, 256)
		s.net.boxes[dst.String()] = box
	}
	s.net.mu.Unlock()

	select {
	case box <- mockDatagram{frame: cp, src: s.local}:
	default:
		// Inbox full: the production socket would have the kernel drop the
		// datagram too, so silently discarding it here matches behavior.
	}
	return nil
}

// Recv implements Socket.
func (s *mockSocket) Recv(timeout time.Duration) ([]byte, Endpoint, bool) {
	s.net.mu.Lock()
	box, ok := s.net.boxes[s.local.String()]
	if !ok {
		box = make(chan mockDatagram, 256)
		s.net.boxes[s.local.String()] = box
	}
	s.net.mu.Unlock()

	select {
	case dg := <-box:
		return dg.frame, dg.src, true
	case <-time.After(timeout):
		return nil, Endpoint{}, false
	}
}

// Close implements Socket. The mock network itself is not torn down, since
// other sockets may still reference it.
func (s *mockSocket) Close() error { return nil }

// Loopback builds an Endpoint on 127.0.0.1 with the given port, a shorthand
// used throughout tests.
func Loopback(port uint16) Endpoint {
	return Endpoint{IP: net.IPv4(127, 0, 0, 1), Port: port}
}
