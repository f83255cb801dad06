package orch

import (
	"github.com/dkeye/meetrelay/internal/core"
	"github.com/dkeye/meetrelay/internal/domain"
)

// Inbound event types. Connect and disconnect come from the transport itself.
const (
	EvConnect           = "connect"
	EvDisconnect        = "disconnect"
	EvJoin              = "join"
	EvJoinRoom          = "join-room"
	EvLeave             = "leave"
	EvLeaveRoom         = "leave-room"
	EvSignal            = "signal"
	EvSendMessage       = "send-message"
	EvMicStatus         = "mic-status"
	EvVideoStatus       = "video-status"
	EvScreenShareStatus = "screen-share-status"
	EvTyping            = "typing"
	EvUpdateRoomData    = "update-room-data"
	EvUpdateRoomSetting = "update-room-settings"
	EvEndMeeting        = "end-meeting"
)

// Outbound event types.
const (
	OutConnected           = "connected"
	OutRoomUsers           = "room-users"
	OutChatHistory         = "chat-history"
	OutUserConnected       = "user-connected"
	OutUserDisconnected    = "user-disconnected"
	OutNewMessage          = "new-message"
	OutSignal              = "signal"
	OutUserScreenShare     = "user-screen-share"
	OutUserMicStatus       = "user-mic-status"
	OutUserVideoStatus     = "user-video-status"
	OutUserTyping          = "user-typing"
	OutRoomDataUpdated     = "room-data-updated"
	OutRoomSettingsUpdated = "room-settings-updated"
	OutMeetingEnded        = "meeting-ended"
)

// Event is one inbound occurrence on one connection. Raw holds the whole wire frame
// for client events; User, Guest and Conn are only set on EvConnect.
type Event struct {
	From  core.SessionID
	Type  string
	Raw   []byte
	User  *domain.User
	Guest bool
	Conn  core.SignalConnection
}

// Outbound is one message and the connections it fans out to.
type Outbound struct {
	To   []core.SessionID
	Room domain.RoomID
	Msg  any
}
