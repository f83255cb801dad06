package orch

import (
	"github.com/dkeye/meetrelay/internal/core"
	"github.com/dkeye/meetrelay/internal/domain"
	"github.com/rs/zerolog/log"
)

// handleSignal relays an opaque WebRTC payload to exactly one connection, tagged with the
// sender's id. The client-supplied "from" is never trusted.
func (o *Orchestrator) handleSignal(ev Event) []Outbound {
	var p signalPayload
	if !decode(ev, &p) {
		return nil
	}
	if p.To == "" || len(p.Signal) == 0 {
		return dropped(ev, "missing to or signal")
	}
	if _, ok := o.Registry.Lookup(ev.From); !ok {
		return dropped(ev, "unknown sender")
	}
	to := core.SessionID(p.To)
	if _, ok := o.Registry.Lookup(to); !ok {
		return dropped(ev, "unknown target")
	}
	if o.Inspect != nil {
		kind, ok := o.Inspect(p.Signal)
		if !ok {
			return dropped(ev, "malformed signal")
		}
		log.Debug().Str("module", "orch").Str("sid", string(ev.From)).Str("to", p.To).Str("kind", kind).Msg("relay signal")
	}
	return []Outbound{{
		To:  []core.SessionID{to},
		Msg: Signal{Type: OutSignal, From: string(ev.From), Signal: p.Signal},
	}}
}

func (o *Orchestrator) handleMicStatus(ev Event) []Outbound {
	var p micPayload
	if !decode(ev, &p) {
		return nil
	}
	if p.IsMuted == nil {
		return dropped(ev, "missing isMuted")
	}
	return o.statusChange(ev, p.RoomID, domain.FlagsPatch{MicMuted: p.IsMuted}, UserMicStatus{
		Type:     OutUserMicStatus,
		SocketID: string(ev.From),
		IsMuted:  *p.IsMuted,
	})
}

func (o *Orchestrator) handleVideoStatus(ev Event) []Outbound {
	var p videoPayload
	if !decode(ev, &p) {
		return nil
	}
	if p.IsVideoOff == nil {
		return dropped(ev, "missing isVideoOff")
	}
	return o.statusChange(ev, p.RoomID, domain.FlagsPatch{VideoOff: p.IsVideoOff}, UserVideoStatus{
		Type:       OutUserVideoStatus,
		SocketID:   string(ev.From),
		IsVideoOff: *p.IsVideoOff,
	})
}

func (o *Orchestrator) handleScreenShare(ev Event) []Outbound {
	var p screenSharePayload
	if !decode(ev, &p) {
		return nil
	}
	if p.IsSharing == nil {
		return dropped(ev, "missing isSharing")
	}
	return o.statusChange(ev, p.RoomID, domain.FlagsPatch{IsScreenSharing: p.IsSharing}, UserScreenShare{
		Type:      OutUserScreenShare,
		SocketID:  string(ev.From),
		IsSharing: *p.IsSharing,
	})
}

// statusChange records the flag and tells everyone in the room except the sender.
func (o *Orchestrator) statusChange(ev Event, rawRoom string, patch domain.FlagsPatch, msg any) []Outbound {
	room, ok := o.memberRoom(ev, rawRoom)
	if !ok {
		return dropped(ev, "not a member")
	}
	if _, ok := o.Registry.UpdateFlags(ev.From, patch); !ok {
		return dropped(ev, "no registry entry")
	}
	return []Outbound{{
		To:   o.others(room, ev.From),
		Room: room,
		Msg:  msg,
	}}
}
