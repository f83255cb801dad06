package http

import (
	"context"
	"crypto/rand"
	"net/http"

	"github.com/dkeye/meetrelay/internal/adapters/signal"
	"github.com/dkeye/meetrelay/internal/app"
	"github.com/dkeye/meetrelay/internal/config"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

const (
	sessionName = "MeetRelaySession"
	guestKey    = "guest_id"
)

type Deps struct {
	Signal     *signal.SignalWSController
	Registry   *app.Registry
	Rooms      *app.RoomStore
	ICEServers []webrtc.ICEServer
}

// GuestIDMiddleware gives every browser a stable id kept in the session cookie.
func GuestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		s := sessions.Default(c)
		id, _ := s.Get(guestKey).(string)
		if id == "" {
			id = uuid.NewString()
			s.Set(guestKey, id)
			if err := s.Save(); err != nil {
				log.Error().Err(err).Str("module", "adapters.http").Msg("save session")
			}
		}
		c.Set(signal.GuestIDKey, id)
		c.Next()
	}
}

func sessionKey(secret string) []byte {
	if secret != "" {
		return []byte(secret)
	}
	key := make([]byte, 32)
	_, _ = rand.Read(key)
	log.Warn().Str("module", "adapters.http").Msg("no session secret configured, guest ids will not survive a restart")
	return key
}

func SetupRouter(ctx context.Context, cfg *config.Config, deps Deps) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore(sessionKey(cfg.Secret))
	store.Options(sessions.Options{Path: "/", MaxAge: 3600 * 24 * 7, HttpOnly: true, SameSite: http.SameSiteLaxMode})
	r.Use(sessions.Sessions(sessionName, store))
	r.Use(GuestIDMiddleware())

	r.Static("/static", cfg.StaticPath)
	r.GET("/", func(c *gin.Context) {
		c.File(cfg.StaticPath + "/index.html")
	})
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":      "ok",
			"connections": deps.Registry.Count(),
			"rooms":       deps.Rooms.Len(),
		})
	})

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Msg("router setup")

	api := r.Group("/api")

	api.GET("/ws/signal", func(c *gin.Context) {
		log.Debug().Str("module", "adapters.http").Str("guest", c.GetString(signal.GuestIDKey)).Msg("ws signal endpoint hit")
		deps.Signal.HandleSignal(ctx, c)
	})

	api.GET("/rooms", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"rooms": deps.Rooms.List()})
	})

	api.GET("/ice-servers", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"iceServers": deps.ICEServers})
	})

	return r
}
