package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	router "labrelay/internal/adapters/http"
	"labrelay/internal/adapters/peer"
	"labrelay/internal/adapters/ws"
	"labrelay/internal/app"
	"labrelay/internal/config"
	"labrelay/internal/core"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	registry := core.NewRegistry()
	metrics := app.NewMetrics()
	relay := app.NewRelay(registry, core.KickSlowPolicy{}, metrics)
	ctl := ws.NewController(relay, cfg)
	rendezvous := peer.NewService(cfg)

	relaySrv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: router.SetupRelayRouter(ctx, cfg, ctl, metrics),
	}
	peerSrv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.PeerPort),
		Handler: router.SetupPeerRouter(ctx, cfg, rendezvous),
	}

	serve := func(name string, srv *http.Server) {
		log.Info().Str("addr", srv.Addr).Str("server", name).Bool("tls", cfg.TLSCert != "").Msg("server started")
		var err error
		if cfg.TLSCert != "" && cfg.TLSKey != "" {
			err = srv.ListenAndServeTLS(cfg.TLSCert, cfg.TLSKey)
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Str("server", name).Msg("server error")
		}
	}

	go serve("relay", relaySrv)
	go serve("peer", peerSrv)

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := relaySrv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("relay server forced to shutdown")
	}
	if err := peerSrv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("peer server forced to shutdown")
	}
	log.Info().Msg("Server exited gracefully")
}
