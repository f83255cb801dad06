package orch

import (
	"github.com/dkeye/meetrelay/internal/core"
	"github.com/dkeye/meetrelay/internal/domain"
	"github.com/rs/zerolog/log"
)

func (o *Orchestrator) handleConnect(ev Event) []Outbound {
	if ev.User == nil || ev.Conn == nil {
		return dropped(ev, "connect without identity")
	}
	if err := o.Registry.Register(ev.From, *ev.User, ev.Conn, ev.Guest); err != nil {
		log.Error().Err(err).Str("module", "orch").Str("sid", string(ev.From)).Msg("register")
		return nil
	}
	return []Outbound{{
		To:  []core.SessionID{ev.From},
		Msg: Connected{Type: OutConnected, SocketID: string(ev.From), User: *ev.User},
	}}
}

func (o *Orchestrator) handleJoin(ev Event) []Outbound {
	var p joinPayload
	if !decode(ev, &p) {
		return nil
	}
	room, ok := roomIDOf(p.RoomID)
	if !ok {
		return dropped(ev, "missing roomId")
	}
	snap, ok := o.Registry.Lookup(ev.From)
	if !ok {
		return dropped(ev, "unknown connection")
	}

	user := snap.User
	if snap.Guest && (p.UserName != "" || p.UserPicture != "") {
		u, err := o.Registry.UpdateProfile(ev.From, p.UserName, p.UserPicture)
		if err != nil {
			log.Warn().Err(err).Str("module", "orch").Str("sid", string(ev.From)).Msg("guest profile rejected")
		}
		user = u
	}

	var out []Outbound
	if snap.Room != "" && snap.Room != room {
		log.Info().Str("module", "orch").Str("sid", string(ev.From)).Str("from_room", string(snap.Room)).Msg("re-join, leaving old room")
		out = append(out, o.leaveRoom(ev.From, snap.Room)...)
	}

	me := domain.NewMember(string(ev.From), user)
	res := o.Rooms.Join(room, ev.From, me)
	o.Registry.SetRoom(ev.From, room)
	if !res.AlreadyMember {
		o.publish(room, user.ID, true)
	}
	log.Info().Str("module", "orch").Str("sid", string(ev.From)).Str("room", string(room)).Bool("new_room", res.IsNewRoom).Msg("joined")

	users := make([]MemberView, 0, len(res.ExistingMembers))
	recipients := make([]core.SessionID, 0, len(res.ExistingMembers))
	for _, m := range res.ExistingMembers {
		users = append(users, o.viewOf(m))
		recipients = append(recipients, core.SessionID(m.SocketID))
	}

	self := []core.SessionID{ev.From}
	out = append(out,
		Outbound{To: self, Room: room, Msg: RoomUsers{Type: OutRoomUsers, RoomID: room, Users: users}},
		Outbound{To: self, Room: room, Msg: ChatHistory{Type: OutChatHistory, RoomID: room, Messages: res.History}},
	)
	if len(recipients) > 0 {
		out = append(out, Outbound{
			To:   recipients,
			Room: room,
			Msg:  UserConnected{Type: OutUserConnected, MemberView: o.viewOf(me)},
		})
	}
	return out
}

func (o *Orchestrator) handleLeave(ev Event) []Outbound {
	var p roomPayload
	if !decode(ev, &p) {
		return nil
	}
	room, ok := o.memberRoom(ev, p.RoomID)
	if !ok {
		return dropped(ev, "not a member")
	}
	return o.leaveRoom(ev.From, room)
}

func (o *Orchestrator) handleDisconnect(ev Event) []Outbound {
	snap, known := o.Registry.Lookup(ev.From)
	room, ok := o.Registry.Unregister(ev.From)
	if !ok {
		return nil
	}
	res := o.Rooms.Leave(room, ev.From)
	if !res.WasMember {
		return nil
	}
	if known {
		o.publishLeft(room, snap.User.ID)
	}
	return o.memberLeft(room, ev.From)
}

// leaveRoom removes sid from room in both stores and tells the remaining members.
func (o *Orchestrator) leaveRoom(sid core.SessionID, room domain.RoomID) []Outbound {
	snap, _ := o.Registry.Lookup(sid)
	res := o.Rooms.Leave(room, sid)
	o.Registry.ClearRoom(sid)
	if !res.WasMember {
		return nil
	}
	o.publishLeft(room, snap.User.ID)
	log.Info().Str("module", "orch").Str("sid", string(sid)).Str("room", string(room)).Bool("room_closed", res.WasLastMember).Msg("left")
	return o.memberLeft(room, sid)
}

func (o *Orchestrator) memberLeft(room domain.RoomID, sid core.SessionID) []Outbound {
	remaining := o.Rooms.MemberIDs(room)
	if len(remaining) == 0 {
		return nil
	}
	return []Outbound{{
		To:   remaining,
		Room: room,
		Msg:  UserDisconnected{Type: OutUserDisconnected, SocketID: string(sid)},
	}}
}

// handleEndMeeting broadcasts to every member and the initiator. Authorization is left to callers.
func (o *Orchestrator) handleEndMeeting(ev Event) []Outbound {
	var p roomPayload
	if !decode(ev, &p) {
		return nil
	}
	room, ok := roomIDOf(p.RoomID)
	if !ok {
		return dropped(ev, "missing roomId")
	}
	snap, ok := o.Registry.Lookup(ev.From)
	if !ok {
		return dropped(ev, "unknown connection")
	}

	recipients := o.Rooms.MemberIDs(room)
	if !o.Rooms.IsMember(room, ev.From) {
		recipients = append(recipients, ev.From)
	}
	log.Info().Str("module", "orch").Str("sid", string(ev.From)).Str("room", string(room)).Int("recipients", len(recipients)).Msg("meeting ended")
	return []Outbound{{
		To:   recipients,
		Room: room,
		Msg: MeetingEnded{
			Type:   OutMeetingEnded,
			RoomID: room,
			EndedBy: Initiator{
				SocketID: string(ev.From),
				UserID:   snap.User.ID,
				UserName: snap.User.Username,
			},
		},
	}}
}
