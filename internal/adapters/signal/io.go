package signal

import (
	"context"
	"encoding/json"
	"time"

	"github.com/dkeye/meetrelay/internal/app/orch"
	"github.com/dkeye/meetrelay/internal/core"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

func (ctl *SignalWSController) writePump(ctx context.Context, sid core.SessionID, c *WsSignalConn) {
	ticker := time.NewTicker(ctl.Opts.PingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("writePump ctx done")
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutdown"),
				time.Now().Add(ctl.Opts.WriteWait))
			return
		case data, ok := <-c.send:
			if !ok {
				log.Debug().Str("module", "signal").Str("sid", string(sid)).Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(ctl.Opts.WriteWait)); err != nil {
				log.Error().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("writePump write error")
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(ctl.Opts.WriteWait)); err != nil {
				log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("ping failed")
				return
			}
		}
	}
}

func (ctl *SignalWSController) readPump(ctx context.Context, sid core.SessionID, c *WsSignalConn) {
	defer func() {
		log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("readPump closing")
		c.Close()
		if ctl.Limiter != nil {
			ctl.Limiter.Forget(sid)
		}
		if err := ctl.Hub.Submit(ctx, orch.Event{From: sid, Type: orch.EvDisconnect}); err != nil {
			log.Debug().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("disconnect not delivered")
		}
	}()

	if ctl.Opts.ReadLimit > 0 {
		c.conn.SetReadLimit(ctl.Opts.ReadLimit)
	}
	_ = c.conn.SetReadDeadline(time.Now().Add(ctl.Opts.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(ctl.Opts.PongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("readPump read error")
			}
			return
		}
		// any inbound frame proves liveness
		_ = c.conn.SetReadDeadline(time.Now().Add(ctl.Opts.PongWait))
		if !ctl.handleFrame(ctx, sid, c, data) {
			return
		}
	}
}

// handleFrame answers transport-level events itself and queues the rest for the relay.
// It returns false once the relay stops accepting events.
func (ctl *SignalWSController) handleFrame(ctx context.Context, sid core.SessionID, c *WsSignalConn, data []byte) bool {
	if ctl.Limiter != nil && !ctl.Limiter.Allow(sid) {
		log.Debug().Str("module", "signal").Str("sid", string(sid)).Msg("rate limited, event dropped")
		return true
	}

	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("bad json")
		return true
	}
	switch env.Type {
	case "":
		log.Warn().Str("module", "signal").Str("sid", string(sid)).Msg("event without type")
		return true
	case EvHeartbeat:
		ctl.handleHeartbeat(sid, c)
		return true
	case orch.EvConnect, orch.EvDisconnect:
		// lifecycle events only come from the transport itself
		log.Warn().Str("module", "signal").Str("sid", string(sid)).Str("type", env.Type).Msg("client sent lifecycle event, dropped")
		return true
	}

	if err := ctl.Hub.Submit(ctx, orch.Event{From: sid, Type: env.Type, Raw: data}); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("relay unavailable")
		return false
	}
	return true
}

func (ctl *SignalWSController) sendJSON(sid core.SessionID, c *WsSignalConn, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("sendJSON marshal")
		return
	}
	if err := c.TrySend(b); err != nil {
		log.Debug().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("sendJSON dropped")
	}
}
