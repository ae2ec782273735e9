package http

import (
	"context"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"labrelay/internal/adapters/peer"
	"labrelay/internal/adapters/ws"
	"labrelay/internal/app"
	"labrelay/internal/config"
)

// ClientTokenMiddleware tags every relay client with a stable cookie
// token for log correlation across reconnects.
func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie("ct")
		if token == "" {
			token = uuid.NewString()
			c.SetCookie("ct", token, 3600*24*7, "/", "", false, true)
		}
		c.Set("client_token", token)
		c.Next()
	}
}

// SetupRelayRouter builds the room-relay server: the websocket endpoint
// and the metrics snapshot.
func SetupRelayRouter(ctx context.Context, cfg *config.Config, ctl *ws.Controller, metrics *app.Metrics) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	r.Use(sessions.Sessions("LabRelaySessions", store))
	r.Use(ClientTokenMiddleware())

	r.GET("/ws", func(c *gin.Context) {
		ctl.HandleWS(ctx, c)
	})
	r.GET("/metrics", func(c *gin.Context) {
		c.JSON(200, metrics.Snapshot())
	})

	log.Info().Str("module", "adapters.http").Msg("relay router setup")
	return r
}

// SetupPeerRouter builds the rendezvous server under its configured base
// path.
func SetupPeerRouter(ctx context.Context, cfg *config.Config, svc *peer.Service) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())

	base := r.Group(cfg.PeerPath)
	base.GET("/ws", func(c *gin.Context) {
		svc.HandleWS(ctx, c)
	})
	base.GET("/peers", svc.PeersHandler)

	log.Info().Str("module", "adapters.http").Str("path", cfg.PeerPath).Msg("peer router setup")
	return r
}
