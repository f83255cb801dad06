// Package orch is the relay engine: it validates inbound events, mutates the room store
// and connection registry, and computes the fan-out for every event.
package orch

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/dkeye/meetrelay/internal/app"
	"github.com/dkeye/meetrelay/internal/core"
	"github.com/dkeye/meetrelay/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// SignalInspector classifies an opaque signaling payload. ok=false marks it malformed.
type SignalInspector func(json.RawMessage) (kind string, ok bool)

// Orchestrator holds no state of its own; Registry and Rooms own everything.
type Orchestrator struct {
	Registry *app.Registry
	Rooms    *app.RoomStore
	Presence core.PresenceSink
	Inspect  SignalInspector
	NewID    func() string
	Now      func() time.Time
}

type handlerFunc func(o *Orchestrator, ev Event) []Outbound

var handlers = map[string]handlerFunc{
	EvConnect:           (*Orchestrator).handleConnect,
	EvDisconnect:        (*Orchestrator).handleDisconnect,
	EvJoin:              (*Orchestrator).handleJoin,
	EvJoinRoom:          (*Orchestrator).handleJoin,
	EvLeave:             (*Orchestrator).handleLeave,
	EvLeaveRoom:         (*Orchestrator).handleLeave,
	EvSignal:            (*Orchestrator).handleSignal,
	EvSendMessage:       (*Orchestrator).handleSendMessage,
	EvMicStatus:         (*Orchestrator).handleMicStatus,
	EvVideoStatus:       (*Orchestrator).handleVideoStatus,
	EvScreenShareStatus: (*Orchestrator).handleScreenShare,
	EvTyping:            (*Orchestrator).handleTyping,
	EvUpdateRoomData:    (*Orchestrator).handleRoomData,
	EvUpdateRoomSetting: (*Orchestrator).handleRoomSettings,
	EvEndMeeting:        (*Orchestrator).handleEndMeeting,
}

// Dispatch runs the handler for ev and returns the messages to deliver.
// Unknown and malformed events produce nothing.
func (o *Orchestrator) Dispatch(ev Event) []Outbound {
	if ev.Type == "" && len(ev.Raw) > 0 {
		var env envelope
		if err := json.Unmarshal(ev.Raw, &env); err != nil {
			log.Warn().Err(err).Str("module", "orch").Str("sid", string(ev.From)).Msg("bad json")
			return nil
		}
		ev.Type = env.Type
	}
	h, ok := handlers[ev.Type]
	if !ok {
		log.Warn().Str("module", "orch").Str("sid", string(ev.From)).Str("type", ev.Type).Msg("unknown event")
		return nil
	}
	out := h(o, ev)
	kept := out[:0]
	for _, m := range out {
		if len(m.To) > 0 {
			kept = append(kept, m)
		}
	}
	return kept
}

// decode unmarshals the event body into v and logs malformed input.
func decode(ev Event, v any) bool {
	if err := json.Unmarshal(ev.Raw, v); err != nil {
		log.Warn().Err(err).Str("module", "orch").Str("sid", string(ev.From)).Str("type", ev.Type).Msg("bad payload")
		return false
	}
	return true
}

func dropped(ev Event, reason string) []Outbound {
	log.Debug().Str("module", "orch").Str("sid", string(ev.From)).Str("type", ev.Type).Str("reason", reason).Msg("event dropped")
	return nil
}

// roomIDOf accepts a room id verbatim. Blank or padded ids are rejected, never normalized.
func roomIDOf(raw string) (domain.RoomID, bool) {
	if raw == "" || len(raw) > domain.MaxRoomIDLen || strings.TrimSpace(raw) != raw {
		return "", false
	}
	return domain.RoomID(raw), true
}

// memberRoom validates that ev.From is a member of the room named in the payload.
func (o *Orchestrator) memberRoom(ev Event, raw string) (domain.RoomID, bool) {
	room, ok := roomIDOf(raw)
	if !ok {
		return "", false
	}
	if !o.Rooms.IsMember(room, ev.From) {
		return "", false
	}
	return room, true
}

// others lists every member of room except sid.
func (o *Orchestrator) others(room domain.RoomID, sid core.SessionID) []core.SessionID {
	all := o.Rooms.MemberIDs(room)
	out := make([]core.SessionID, 0, len(all))
	for _, id := range all {
		if id != sid {
			out = append(out, id)
		}
	}
	return out
}

func (o *Orchestrator) viewOf(m domain.Member) MemberView {
	snap, _ := o.Registry.Lookup(core.SessionID(m.SocketID))
	return newMemberView(m, snap.Flags)
}

func (o *Orchestrator) publish(room domain.RoomID, user domain.UserID, joined bool) {
	if o.Presence == nil {
		return
	}
	o.Presence.Publish(core.PresenceUpdate{Room: room, User: user, Joined: joined})
}

// publishLeft reports user gone from room unless another of their connections is still in it.
func (o *Orchestrator) publishLeft(room domain.RoomID, user domain.UserID) {
	members, _ := o.Rooms.Members(room)
	for _, m := range members {
		if m.User.ID == user {
			return
		}
	}
	o.publish(room, user, false)
}

func (o *Orchestrator) newID() string {
	if o.NewID != nil {
		return o.NewID()
	}
	return uuid.NewString()
}

func (o *Orchestrator) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now().UTC()
}
