package peer

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"labrelay/internal/adapters/ws"
	"labrelay/internal/config"
	"labrelay/internal/core"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Service relays signaling messages between two registered peers. A peer
// failure or a bad payload is reported to the sender only; nothing ever
// escalates past the offending connection.
type Service struct {
	Cfg   *config.Config
	peers *Registry
}

func NewService(cfg *config.Config) *Service {
	return &Service{Cfg: cfg, peers: NewRegistry()}
}

// HandleWS upgrades a rendezvous client. The peer announces its id via
// the query string; an empty id is assigned a UUID. A taken id is
// rejected with an error message and the connection closes.
func (s *Service) HandleWS(ctx context.Context, c *gin.Context) {
	id := c.Query("id")
	if id == "" {
		id = uuid.NewString()
	}
	if len(id) > maxPeerIDLen {
		id = id[:maxPeerIDLen]
	}

	sock, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "peer.service").Msg("ws upgrade")
		return
	}

	conn := ws.NewConn(sock, s.Cfg.SendBuffer)
	if err := s.peers.Register(id, conn); err != nil {
		log.Warn().Str("module", "peer.service").Str("peer", id).Msg("rejecting duplicate peer id")
		if b, err := json.Marshal(Message{Type: TypeError, Error: ErrIDTaken}); err == nil {
			_ = sock.WriteMessage(websocket.TextMessage, b)
		}
		_ = sock.Close()
		return
	}

	s.reply(conn, Message{Type: TypeOpen, Src: id})

	connID := core.ConnID(id)
	ctx, cancel := context.WithCancel(ctx)

	go conn.WritePump(ctx, s.Cfg, connID)
	go func() {
		defer cancel()
		conn.ReadPump(ctx, s.Cfg, connID, func(data []byte) {
			s.HandleMessage(id, conn, data)
		})
		s.peers.Unregister(id, conn)
	}()
}

// HandleMessage dispatches one signaling frame from a registered peer.
func (s *Service) HandleMessage(id string, from core.Conn, data []byte) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Warn().Err(err).Str("module", "peer.service").Str("peer", id).Msg("dropping frame: bad json")
		return
	}

	switch msg.Type {
	case TypeHeartbeat:
		s.reply(from, Message{Type: TypeHeartbeat})
	case TypeOffer, TypeAnswer:
		var sd webrtc.SessionDescription
		if err := json.Unmarshal(msg.Payload, &sd); err != nil || sd.SDP == "" {
			s.reply(from, Message{Type: TypeError, Error: ErrBadPayload, Dst: msg.Dst})
			return
		}
		s.forward(id, from, msg)
	case TypeCandidate:
		var ci webrtc.ICECandidateInit
		if err := json.Unmarshal(msg.Payload, &ci); err != nil {
			s.reply(from, Message{Type: TypeError, Error: ErrBadPayload, Dst: msg.Dst})
			return
		}
		s.forward(id, from, msg)
	case TypeLeave:
		s.forward(id, from, msg)
	default:
		log.Warn().Str("module", "peer.service").Str("peer", id).Str("type", string(msg.Type)).Msg("unknown signal")
	}
}

// forward relays the message to its destination peer with src filled in.
// An unknown destination is answered with peer-not-found to the sender
// only.
func (s *Service) forward(src string, from core.Conn, msg Message) {
	dst, ok := s.peers.Lookup(msg.Dst)
	if !ok {
		log.Debug().Str("module", "peer.service").Str("src", src).Str("dst", msg.Dst).Msg("peer not found")
		s.reply(from, Message{Type: TypeError, Error: ErrPeerNotFound, Dst: msg.Dst})
		return
	}
	msg.Src = src
	b, err := json.Marshal(msg)
	if err != nil {
		log.Error().Err(err).Str("module", "peer.service").Msg("marshal forward")
		return
	}
	if err := dst.TrySend(core.Frame(b)); err != nil {
		log.Debug().Err(err).Str("module", "peer.service").Str("dst", msg.Dst).Msg("forward failed")
	}
}

func (s *Service) reply(to core.Conn, msg Message) {
	b, err := json.Marshal(msg)
	if err != nil {
		log.Error().Err(err).Str("module", "peer.service").Msg("marshal reply")
		return
	}
	_ = to.TrySend(core.Frame(b))
}

// PeersHandler serves peer id discovery when enabled in configuration.
func (s *Service) PeersHandler(c *gin.Context) {
	if !s.Cfg.PeerDiscovery {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "discovery disabled"})
		return
	}
	c.JSON(http.StatusOK, s.peers.IDs())
}
