package signal

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/dkeye/meetrelay/internal/app/orch"
	"github.com/dkeye/meetrelay/internal/core"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// GuestIDKey is the gin context key holding the browser's stable guest id.
const GuestIDKey = "guest_id"

// Submitter queues events for the relay engine.
type Submitter interface {
	Submit(ctx context.Context, ev orch.Event) error
}

type Options struct {
	ReadLimit  int64
	PingPeriod time.Duration
	PongWait   time.Duration
	WriteWait  time.Duration
	SendBuffer int
}

type SignalWSController struct {
	Hub     Submitter
	Gate    core.AuthGate
	Limiter *RateLimiter
	Opts    Options
}

func NewSignalWSController(hub Submitter, gate core.AuthGate, limiter *RateLimiter, opts Options) *SignalWSController {
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = 64
	}
	if opts.PingPeriod <= 0 {
		opts.PingPeriod = 54 * time.Second
	}
	if opts.PongWait <= opts.PingPeriod {
		opts.PongWait = opts.PingPeriod * 10 / 9
	}
	if opts.WriteWait <= 0 {
		opts.WriteWait = 10 * time.Second
	}
	return &SignalWSController{Hub: hub, Gate: gate, Limiter: limiter, Opts: opts}
}

type WsSignalConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func (c *WsSignalConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return core.ErrConnectionClosed
	}
	select {
	case c.send <- f:
	default:
		return core.ErrBackpressure
	}
	return nil
}

func (c *WsSignalConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// credentialFrom looks for a bearer token in the "token" cookie, the "token" query
// parameter and the Authorization header, in that order.
func credentialFrom(c *gin.Context) core.Credential {
	cred := core.Credential{GuestID: c.GetString(GuestIDKey)}
	if tok, err := c.Cookie("token"); err == nil && tok != "" {
		cred.Token = tok
		return cred
	}
	if tok := c.Query("token"); tok != "" {
		cred.Token = tok
		return cred
	}
	if h := c.GetHeader("Authorization"); strings.HasPrefix(h, "Bearer ") {
		cred.Token = strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	return cred
}

// HandleSignal admits one client: it verifies the credential, upgrades the request and
// registers the connection with the relay.
func (ctl *SignalWSController) HandleSignal(ctx context.Context, c *gin.Context) {
	cred := credentialFrom(c)
	user, err := ctl.Gate.Verify(c.Request.Context(), cred)
	if err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("remote", c.ClientIP()).Msg("connection rejected")
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}

	sid := core.SessionID(uuid.NewString())
	conn := &WsSignalConn{
		conn: ws,
		send: make(chan core.Frame, ctl.Opts.SendBuffer),
	}
	log.Info().Str("module", "signal").Str("sid", string(sid)).Str("user", string(user.ID)).Msg("new WS connection")

	// the pumps must be running before the connect event can deliver its greeting
	go ctl.writePump(ctx, sid, conn)

	err = ctl.Hub.Submit(ctx, orch.Event{
		From:  sid,
		Type:  orch.EvConnect,
		User:  user,
		Guest: cred.Token == "",
		Conn:  conn,
	})
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("connect not accepted")
		conn.Close()
		return
	}
	go ctl.readPump(ctx, sid, conn)
}
