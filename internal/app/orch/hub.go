package orch

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/dkeye/meetrelay/internal/app"
	"github.com/dkeye/meetrelay/internal/core"
	"github.com/rs/zerolog/log"
)

var ErrHubStopped = errors.New("hub stopped")

// Hub is the single writer for all relay state. Every event, from every connection,
// runs to completion here before the next one starts, so fan-outs within a room keep
// the order in which events were accepted.
type Hub struct {
	Orch   *Orchestrator
	Policy app.Policy

	events  chan Event
	stopped chan struct{}
}

func NewHub(o *Orchestrator, policy app.Policy, buffer int) *Hub {
	if buffer < 0 {
		buffer = 0
	}
	return &Hub{
		Orch:    o,
		Policy:  policy,
		events:  make(chan Event, buffer),
		stopped: make(chan struct{}),
	}
}

// Submit hands ev to the hub, blocking until it is queued.
func (h *Hub) Submit(ctx context.Context, ev Event) error {
	select {
	case <-h.stopped:
		return ErrHubStopped
	default:
	}
	select {
	case h.events <- ev:
		return nil
	case <-h.stopped:
		return ErrHubStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run processes events until ctx is done.
func (h *Hub) Run(ctx context.Context) error {
	defer close(h.stopped)
	log.Info().Str("module", "orch").Msg("hub started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "orch").Msg("hub stopped")
			return nil
		case ev := <-h.events:
			h.handle(ev)
		}
	}
}

func (h *Hub) handle(ev Event) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("module", "orch").Str("sid", string(ev.From)).Str("type", ev.Type).Interface("panic", r).Msg("event handler panicked")
		}
	}()
	h.Deliver(h.Orch.Dispatch(ev))
}

// Deliver encodes each message once and fans it out. Targets that vanished or whose
// queue is full never stop the loop.
func (h *Hub) Deliver(out []Outbound) {
	for _, m := range out {
		frame, err := json.Marshal(m.Msg)
		if err != nil {
			log.Error().Err(err).Str("module", "orch").Msg("marshal outbound")
			continue
		}
		sent, lost := 0, 0
		for _, sid := range m.To {
			conn, ok := h.Orch.Registry.Conn(sid)
			if !ok {
				lost++
				continue
			}
			err := conn.TrySend(frame)
			if err == nil {
				sent++
				continue
			}
			lost++
			if !errors.Is(err, core.ErrBackpressure) || h.Policy == nil {
				continue
			}
			switch h.Policy.OnBackPressure(m.Room, sid) {
			case app.KickMember:
				log.Warn().Str("module", "orch").Str("sid", string(sid)).Str("room", string(m.Room)).Msg("slow consumer kicked")
				conn.Close()
			case app.DropFrame, app.NoAction:
			}
		}
		log.Debug().Str("module", "orch").Str("room", string(m.Room)).Int("sent_to", sent).Int("dropped", lost).Msg("broadcast result")
	}
}
