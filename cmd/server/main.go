package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jaevor/go-nanoid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/dkeye/meetrelay/internal/adapters/auth"
	router "github.com/dkeye/meetrelay/internal/adapters/http"
	"github.com/dkeye/meetrelay/internal/adapters/presence"
	"github.com/dkeye/meetrelay/internal/adapters/rtc"
	wssignal "github.com/dkeye/meetrelay/internal/adapters/signal"
	"github.com/dkeye/meetrelay/internal/app"
	"github.com/dkeye/meetrelay/internal/app/orch"
	"github.com/dkeye/meetrelay/internal/config"
	"github.com/dkeye/meetrelay/internal/core"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	if err := run(ctx); err != nil {
		log.Fatal().Err(err).Msg("server failed")
	}
	log.Info().Msg("Server exited gracefully")
}

func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}

	iceServers, err := rtc.ICEServers(cfg.ICEServers)
	if err != nil {
		return fmt.Errorf("ice servers: %w", err)
	}
	messageID, err := nanoid.Standard(21)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)

	var sink core.PresenceSink = presence.Noop{}
	if cfg.Redis.Addr != "" {
		rdb := presence.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		defer rdb.Close()
		mirror := presence.NewMirror(rdb, cfg.Redis.PresenceTTL, 0)
		sink = mirror
		g.Go(func() error { return mirror.Run(ctx) })
	}

	reg := app.NewRegistry()
	rooms := app.NewRoomStore(cfg.HistoryLimit)
	engine := &orch.Orchestrator{
		Registry: reg,
		Rooms:    rooms,
		Presence: sink,
		Inspect:  rtc.ClassifySignal,
		NewID:    messageID,
	}
	hub := orch.NewHub(engine, app.PolicyByName(cfg.Backpressure), cfg.HubBuffer)
	g.Go(func() error { return hub.Run(ctx) })

	gate := auth.NewGate(auth.Config{
		Secret:         cfg.Auth.Secret,
		Issuer:         cfg.Auth.Issuer,
		Audience:       cfg.Auth.Audience,
		AllowAnonymous: cfg.Auth.AllowAnonymous,
	})
	ctl := wssignal.NewSignalWSController(hub, gate,
		wssignal.NewRateLimiter(cfg.RateLimit.Events, cfg.RateLimit.Interval),
		wssignal.Options{
			ReadLimit:  cfg.ReadLimit,
			PingPeriod: cfg.PingPeriod,
			PongWait:   cfg.PongWait(),
			WriteWait:  cfg.WriteWait,
			SendBuffer: cfg.SendBuffer,
		})

	r := router.SetupRouter(ctx, cfg, router.Deps{
		Signal:     ctl,
		Registry:   reg,
		Rooms:      rooms,
		ICEServers: iceServers,
	})
	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	g.Go(func() error {
		log.Info().Str("addr", addr).Msg("meetrelay server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Info().Msg("Shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Server forced to shutdown")
		}
		return nil
	})

	return g.Wait()
}
