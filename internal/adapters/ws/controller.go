package ws

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"labrelay/internal/app"
	"labrelay/internal/config"
	"labrelay/internal/core"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Controller upgrades relay clients and wires their lifecycle into the
// event relay.
type Controller struct {
	Relay *app.Relay
	Cfg   *config.Config
}

func NewController(relay *app.Relay, cfg *config.Config) *Controller {
	return &Controller{Relay: relay, Cfg: cfg}
}

func (ctl *Controller) HandleWS(ctx context.Context, c *gin.Context) {
	id := core.ConnID(uuid.NewString())
	log.Info().Str("module", "adapters.ws").Str("conn", string(id)).Str("client_token", c.GetString("client_token")).Msg("new relay connection")

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.ws").Msg("ws upgrade")
		return
	}

	conn := NewConn(ws, ctl.Cfg.SendBuffer)
	ctx, cancel := context.WithCancel(ctx)

	ctl.Relay.HandleConnect(id, conn)

	go conn.WritePump(ctx, ctl.Cfg, id)
	go func() {
		defer cancel()
		conn.ReadPump(ctx, ctl.Cfg, id, func(data []byte) {
			ctl.Relay.HandleFrame(id, data)
		})
		ctl.Relay.HandleDisconnect(id)
	}()
}
