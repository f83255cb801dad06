package orch

import (
	"strings"

	"github.com/dkeye/meetrelay/internal/domain"
	"github.com/rs/zerolog/log"
)

// handleSendMessage stores the message and echoes it to every member, sender included.
// The sender reference is always the verified identity, never the client's claim.
func (o *Orchestrator) handleSendMessage(ev Event) []Outbound {
	var p messagePayload
	if !decode(ev, &p) {
		return nil
	}
	if p.Message == nil {
		return dropped(ev, "missing message")
	}
	room, ok := o.memberRoom(ev, p.RoomID)
	if !ok {
		return dropped(ev, "not a member")
	}
	text := p.Message.Text
	if strings.TrimSpace(text) == "" || len(text) > domain.MaxMessageTextLen {
		return dropped(ev, "bad text")
	}
	snap, ok := o.Registry.Lookup(ev.From)
	if !ok {
		return dropped(ev, "unknown connection")
	}

	msg := domain.ChatMessage{
		ID:        p.Message.ID,
		Sender:    domain.SenderOf(snap.User),
		Text:      text,
		Timestamp: p.Message.Timestamp,
	}
	if msg.ID == "" {
		msg.ID = o.newID()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = o.now()
	}

	appended, err := o.Rooms.AppendMessage(room, msg)
	if err != nil {
		log.Warn().Err(err).Str("module", "orch").Str("room", string(room)).Msg("append message")
		return nil
	}
	if !appended {
		return dropped(ev, "duplicate message id")
	}
	return []Outbound{{
		To:   o.Rooms.MemberIDs(room),
		Room: room,
		Msg:  NewMessage{Type: OutNewMessage, RoomID: room, Message: msg},
	}}
}

func (o *Orchestrator) handleTyping(ev Event) []Outbound {
	var p typingPayload
	if !decode(ev, &p) {
		return nil
	}
	room, ok := o.memberRoom(ev, p.RoomID)
	if !ok {
		return dropped(ev, "not a member")
	}
	snap, ok := o.Registry.Lookup(ev.From)
	if !ok {
		return dropped(ev, "unknown connection")
	}
	return []Outbound{{
		To:   o.others(room, ev.From),
		Room: room,
		Msg: UserTyping{
			Type:     OutUserTyping,
			SocketID: string(ev.From),
			UserID:   snap.User.ID,
			UserName: snap.User.Username,
			IsTyping: p.IsTyping,
		},
	}}
}

func (o *Orchestrator) handleRoomData(ev Event) []Outbound {
	var p roomDataPayload
	if !decode(ev, &p) {
		return nil
	}
	room, ok := roomIDOf(p.RoomID)
	if !ok || p.Data == nil {
		return dropped(ev, "missing roomId or data")
	}
	data, err := o.Rooms.MergeData(room, p.Data)
	if err != nil {
		return dropped(ev, err.Error())
	}
	return []Outbound{{
		To:   o.Rooms.MemberIDs(room),
		Room: room,
		Msg:  RoomDataUpdated{Type: OutRoomDataUpdated, RoomID: room, Data: data},
	}}
}

func (o *Orchestrator) handleRoomSettings(ev Event) []Outbound {
	var p roomSettingsPayload
	if !decode(ev, &p) {
		return nil
	}
	room, ok := roomIDOf(p.RoomID)
	if !ok || p.Settings == nil {
		return dropped(ev, "missing roomId or settings")
	}
	settings, err := o.Rooms.MergeSettings(room, p.Settings)
	if err != nil {
		return dropped(ev, err.Error())
	}
	return []Outbound{{
		To:   o.Rooms.MemberIDs(room),
		Room: room,
		Msg:  RoomSettingsUpdated{Type: OutRoomSettingsUpdated, RoomID: room, Settings: settings},
	}}
}

