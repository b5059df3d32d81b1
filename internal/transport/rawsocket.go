package transport

import (
	"encoding/binary"
	"fmt"
	"net"
	"time"

	"golang.org/x/sys/unix"

	"srft/internal/checksum"
	"srft/internal/config"
)

const (
	ipHeaderSize  = 20
	udpHeaderSize = 8
	ipv4Version   = 4
	ipv4IHL       = 5
	ttl           = 64
	ipIdentifier  = 54321
	protoUDP      = 17
)

// RawSocket is a Socket backed by a pair of IPv4 raw sockets: one with
// IP_HDRINCL for sending fully-built packets, one bound to localIP that
// receives IPPROTO_UDP traffic, which Recv filters to localPort. Requires
// CAP_NET_RAW.
type RawSocket struct {
	sendFD    int
	recvFD    int
	localIP   net.IP
	localPort uint16
}

// NewRawSocket opens the send/receive socket pair, binding the receive
// socket to localIP (nil or net.IPv4zero binds all interfaces). Raw
// sockets have no port; localPort is the UDP source port of sent frames
// and the destination port Recv accepts.
func NewRawSocket(localIP net.IP, localPort uint16) (*RawSocket, error) {
	sendFD, err := unix.Socket(unix.AF_INET, unix.SOCK_RAW, unix.IPPROTO_RAW)
	if err != nil {
		return nil, fmt.Errorf("transport: create send socket: %w (requires CAP_NET_RAW)", err)
	}
	if err := unix.SetsockoptInt(sendFD, unix.IPPROTO_IP, unix.IP_HDRINCL, 1); err != nil {
		unix.Close(sendFD)
		return nil, fmt.Errorf("transport: set IP_HDRINCL: %w", err)
	}
	_ = unix.SetsockoptInt(sendFD, unix.SOL_SOCKET, unix.SO_SNDBUF, config.DefaultWriteBuffer)

	recvFD, err := unix.Socket(unix.AF_INET, unix.SOCK_RAW, unix.IPPROTO_UDP)
	if err != nil {
		unix.Close(sendFD)
		return nil, fmt.Errorf("transport: create recv socket: %w (requires CAP_NET_RAW)", err)
	}
	_ = unix.SetsockoptInt(recvFD, unix.SOL_SOCKET, unix.SO_RCVBUF, config.DefaultReadBuffer)

	addr := unix.SockaddrInet4{Port: 0}
	if localIP != nil && !localIP.IsUnspecified() {
		copy(addr.Addr[:], localIP.To4())
	}
	if err := unix.Bind(recvFD, &addr); err != nil {
		unix.Close(sendFD)
		unix.Close(recvFD)
		return nil, fmt.Errorf("transport: bind recv socket: %w", err)
	}

	return &RawSocket{sendFD: sendFD, recvFD: recvFD, localIP: localIP, localPort: localPort}, nil
}

// Send implements Socket.
func (r *RawSocket) Send(frame []byte, dst Endpoint) error {
	udpHeader := buildUDPHeader(r.localPort, dst.Port, len(frame))
	udpSegment := append(udpHeader, frame...)
	ipHeader := buildIPHeader(r.localIP, dst.IP, len(udpSegment))
	packet := append(ipHeader, udpSegment...)

	sa := unix.SockaddrInet4{Port: 0}
	copy(sa.Addr[:], dst.IP.To4())
	return unix.Sendto(r.sendFD, packet, 0, &sa)
}

// Recv implements Socket. It filters incoming datagrams to those addressed
// to localPort, since an IPPROTO_UDP raw socket sees every UDP datagram
// delivered to the host.
func (r *RawSocket) Recv(timeout time.Duration) ([]byte, Endpoint, bool) {
	tv := unix.NsecToTimeval(timeout.Nanoseconds())
	_ = unix.SetsockoptTimeval(r.recvFD, unix.SOL_SOCKET, unix.SO_RCVTIMEO, &tv)

	buf := make([]byte, ipHeaderSize+udpHeaderSize+config.MaxPayload+64)
	n, from, err := unix.Recvfrom(r.recvFD, buf, 0)
	if err != nil || n < ipHeaderSize {
		return nil, Endpoint{}, false
	}
	raw := buf[:n]

	ihl := int(raw[0]&0x0F) * 4
	if n < ihl+udpHeaderSize {
		return nil, Endpoint{}, false
	}
	udpHeader := raw[ihl : ihl+udpHeaderSize]
	srcPort := binary.BigEndian.Uint16(udpHeader[0:2])
	dstPort := binary.BigEndian.Uint16(udpHeader[2:4])
	if dstPort != r.localPort {
		return nil, Endpoint{}, false
	}

	frame := raw[ihl+udpHeaderSize:]
	framed := make([]byte, len(frame))
	copy(framed, frame)

	var srcIP net.IP
	if sa4, ok := from.(*unix.SockaddrInet4); ok {
		srcIP = net.IPv4(sa4.Addr[0], sa4.Addr[1], sa4.Addr[2], sa4.Addr[3])
	}
	return framed, Endpoint{IP: srcIP, Port: srcPort}, true
}

// Close implements Socket.
func (r *RawSocket) Close() error {
	err1 := unix.Close(r.sendFD)
	err2 := unix.Close(r.recvFD)
	if err1 != nil {
		return err1
	}
	return err2
}

// buildIPHeader constructs a 20-byte IPv4 header with the checksum filled
// in, per RFC 791 / original_source's common/rawsocket.py.
func buildIPHeader(src, dst net.IP, payloadLen int) []byte {
	h := make([]byte, ipHeaderSize)
	h[0] = (ipv4Version << 4) | ipv4IHL
	h[1] = 0 // type of service
	binary.BigEndian.PutUint16(h[2:4], uint16(ipHeaderSize+payloadLen))
	binary.BigEndian.PutUint16(h[4:6], ipIdentifier)
	binary.BigEndian.PutUint16(h[6:8], 0) // flags=0 (may fragment), offset=0
	h[8] = ttl
	h[9] = protoUDP
	h[10], h[11] = 0, 0 // checksum placeholder

	var srcBytes, dstBytes [4]byte
	if src != nil && !src.IsUnspecified() {
		copy(srcBytes[:], src.To4())
	}
	copy(dstBytes[:], dst.To4())
	copy(h[12:16], srcBytes[:])
	copy(h[16:20], dstBytes[:])

	sum := checksum.Compute(h)
	binary.BigEndian.PutUint16(h[10:12], sum)
	return h
}

// buildUDPHeader constructs an 8-byte UDP header. The checksum is left at
// zero, which is legal for UDP over IPv4.
func buildUDPHeader(srcPort, dstPort uint16, payloadLen int) []byte {
	h := make([]byte, udpHeaderSize)
	binary.BigEndian.PutUint16(h[0:2], srcPort)
	binary.BigEndian.PutUint16(h[2:4], dstPort)
	binary.BigEndian.PutUint16(h[4:6], uint16(udpHeaderSize+payloadLen))
	binary.BigEndian.PutUint16(h[6:8], 0)
	return h
}
