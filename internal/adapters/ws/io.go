package ws

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"labrelay/internal/config"
	"labrelay/internal/core"
)

// WritePump drains the outbound queue onto the socket and keeps the
// connection alive with periodic pings. Runs until the context ends, the
// queue closes, or a write fails.
func (c *Conn) WritePump(ctx context.Context, cfg *config.Config, id core.ConnID) {
	ticker := time.NewTicker(cfg.PingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-c.send:
			if !ok {
				_ = c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			_ = c.ws.SetWriteDeadline(time.Now().Add(cfg.WriteWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Debug().Err(err).Str("module", "adapters.ws").Str("conn", string(id)).Msg("write error")
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(cfg.WriteWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ReadPump reads frames off the socket and hands them to onFrame until
// the connection drops or the context ends. Closes the connection on
// return.
func (c *Conn) ReadPump(ctx context.Context, cfg *config.Config, id core.ConnID, onFrame func([]byte)) {
	defer func() {
		log.Info().Str("module", "adapters.ws").Str("conn", string(id)).Msg("read pump closing")
		c.Close()
	}()

	c.ws.SetReadLimit(cfg.ReadLimit)
	_ = c.ws.SetReadDeadline(time.Now().Add(cfg.PongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(cfg.PongWait))
	})

	for {
		select {
		case <-ctx.Done():
			return
		default:
			_, data, err := c.ws.ReadMessage()
			if err != nil {
				log.Debug().Err(err).Str("module", "adapters.ws").Str("conn", string(id)).Msg("read error")
				return
			}
			onFrame(data)
		}
	}
}
