// Package conn drives the three-phase connection lifecycle described in
// the protocol: the request/accept handshake, the bulk data transfer, and
// the terminal acknowledgement. It wires the pure codec
// (internal/protocol), the receive-side reorder buffer (internal/reorder),
// the send-side sliding window (internal/window), and a transport.Socket
// together into the single receive/send loop each endpoint runs.
package conn

import "errors"

var (
	// ErrHandshakeFailed is returned when no SYN|ACK arrives after every
	// handshake retry is exhausted.
	ErrHandshakeFailed = errors.New("conn: handshake failed after all SYN retries")

	// ErrInactive is returned by the client's receive loop after ten
	// consecutive receive timeouts with no data.
	ErrInactive = errors.New("conn: receiver timed out waiting for data")

	// ErrRetriesExhausted is returned by the server's send loop when a
	// chunk's retransmit count reaches config.MaxRetries.
	ErrRetriesExhausted = errors.New("conn: chunk exceeded max retransmit attempts")
)
