// Package peer is the rendezvous service: an id-to-connection broker
// that relays peer-connection signaling between exactly two registered
// peers. No rooms, no fan-out — it only carries the handshake, never the
// resulting direct traffic.
package peer

import "encoding/json"

type MessageType string

const (
	TypeOpen      MessageType = "open"
	TypeOffer     MessageType = "offer"
	TypeAnswer    MessageType = "answer"
	TypeCandidate MessageType = "candidate"
	TypeLeave     MessageType = "leave"
	TypeHeartbeat MessageType = "heartbeat"
	TypeError     MessageType = "error"
)

// Error strings surfaced to the requesting peer only.
const (
	ErrPeerNotFound = "peer-not-found"
	ErrIDTaken      = "id-taken"
	ErrBadPayload   = "bad-payload"
)

type Message struct {
	Type    MessageType     `json:"type"`
	Src     string          `json:"src,omitempty"`
	Dst     string          `json:"dst,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Error   string          `json:"error,omitempty"`
}
