// Package protocol defines the wire format of the reliable-transfer
// application header and the pure encode/decode logic around it.
//
// - Application: this package defines the 15-byte DATA/ACK/SYN/FIN header
//   and the checksum that protects it. The connection lifecycle and the
//   send/receive engines build and consume these frames.
// - Transport: raw IPv4 + UDP, built by internal/transport. This package
//   has no knowledge of sockets; Encode/Decode operate on byte slices only.
package protocol

import (
	"encoding/binary"
	"errors"

	"srft/internal/checksum"
)

// Flag bits, combinable per the legal combinations below.
const (
	FlagSYN  uint8 = 0x01
	FlagACK  uint8 = 0x02
	FlagFIN  uint8 = 0x04
	FlagDATA uint8 = 0x08
)

// MaxPayload bounds a single chunk's payload length.
const MaxPayload = 1400

// HeaderSize is the exact wire size of the application header, in bytes.
const HeaderSize = 4 + 4 + 2 + 2 + 1 + 2

// Header is the 15-byte wire header, network byte order:
//
//	offset  size  field
//	0       4     seq
//	4       4     ack
//	8       2     checksum
//	10      2     payload_length
//	12      1     flags
//	13      2     conn_id
type Header struct {
	Seq           uint32
	Ack           uint32
	Checksum      uint16
	PayloadLength uint16
	Flags         uint8
	ConnID        uint16
}

var (
	ErrShortFrame      = errors.New("protocol: frame shorter than header")
	ErrLengthMismatch  = errors.New("protocol: payload_length does not match trailing bytes")
	ErrBadChecksum     = errors.New("protocol: checksum mismatch")
	ErrBadFlags        = errors.New("protocol: illegal flag combination")
	ErrPayloadTooLarge = errors.New("protocol: payload exceeds MaxPayload")
)

// legalFlagCombos enumerates every flag combination this protocol accepts,
// per spec: SYN, SYN|ACK, DATA, FIN|DATA, ACK, FIN|ACK. Anything else is
// rejected at decode and never reaches a dispatcher.
var legalFlagCombos = map[uint8]bool{
	FlagSYN:            true,
	FlagSYN | FlagACK:  true,
	FlagDATA:           true,
	FlagFIN | FlagDATA: true,
	FlagACK:            true,
	FlagFIN | FlagACK:  true,
}

// IsLegalFlags reports whether flags is one of the legal combinations.
func IsLegalFlags(flags uint8) bool {
	return legalFlagCombos[flags]
}

// Encode packs seq, ack, flags, conn_id, and payload into a wire frame.
// The checksum field is computed over the header (with the checksum field
// zeroed) concatenated with the payload, per RFC 1071.
func Encode(seq, ack uint32, flags uint8, payload []byte, connID uint16) ([]byte, error) {
	if len(payload) > MaxPayload {
		return nil, ErrPayloadTooLarge
	}
	frame := make([]byte, HeaderSize+len(payload))
	putHeader(frame, Header{
		Seq:           seq,
		Ack:           ack,
		PayloadLength: uint16(len(payload)),
		Flags:         flags,
		ConnID:        connID,
	})
	copy(frame[HeaderSize:], payload)

	sum := checksum.Compute(frame)
	binary.BigEndian.PutUint16(frame[8:10], sum)
	return frame, nil
}

// Decode parses and validates a wire frame, rejecting it on any of:
// short length, payload_length/trailing-byte mismatch, checksum mismatch,
// or an illegal flag combination. Returns the header and a payload slice
// aliasing frame.
func Decode(frame []byte) (Header, []byte, error) {
	if len(frame) < HeaderSize {
		return Header{}, nil, ErrShortFrame
	}
	h := parseHeader(frame)
	payload := frame[HeaderSize:]
	if int(h.PayloadLength) != len(payload) {
		return Header{}, nil, ErrLengthMismatch
	}

	verifyBuf := make([]byte, len(frame))
	copy(verifyBuf, frame)
	verifyBuf[8], verifyBuf[9] = 0, 0
	if !checksum.Verify(verifyBuf, h.Checksum) {
		return Header{}, nil, ErrBadChecksum
	}

	if !IsLegalFlags(h.Flags) {
		return Header{}, nil, ErrBadFlags
	}
	return h, payload, nil
}

func putHeader(buf []byte, h Header) {
	binary.BigEndian.PutUint32(buf[0:4], h.Seq)
	binary.BigEndian.PutUint32(buf[4:8], h.Ack)
	binary.BigEndian.PutUint16(buf[8:10], h.Checksum)
	binary.BigEndian.PutUint16(buf[10:12], h.PayloadLength)
	buf[12] = h.Flags
	binary.BigEndian.PutUint16(buf[13:15], h.ConnID)
}

func parseHeader(buf []byte) Header {
	return Header{
		Seq:           binary.BigEndian.Uint32(buf[0:4]),
		Ack:           binary.BigEndian.Uint32(buf[4:8]),
		Checksum:      binary.BigEndian.Uint16(buf[8:10]),
		PayloadLength: binary.BigEndian.Uint16(buf[10:12]),
		Flags:         buf[12],
		ConnID:        binary.BigEndian.Uint16(buf[13:15]),
	}
}
