// Package core holds the connection registry and room fan-out primitives.
// It is meaning-blind: a room key may be a device id, a subject id, or a
// lab id — the registry only ever sees sets of connections.
package core

import "errors"

// Frame is a raw outbound message payload.
type Frame []byte

// ConnID identifies one live connection for its lifetime.
type ConnID string

var (
	ErrBackpressure = errors.New("backpressure")
	ErrClosed       = errors.New("connection closed")
	ErrUnknownConn  = errors.New("unknown connection")
)

// Conn abstracts a message transport endpoint.
// Owned by the adapter; the adapter must Close() it.
type Conn interface {
	// TrySend queues a frame without blocking. Returns ErrBackpressure
	// when the outbound queue is full and ErrClosed after Close.
	TrySend(Frame) error
	Close()
}

// PublishResult reports delivery stats/backpressure to the relay.
type PublishResult struct {
	SentTo  int
	Dropped []ConnID
}
