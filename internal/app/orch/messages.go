package orch

import (
	"encoding/json"
	"time"

	"github.com/dkeye/meetrelay/internal/domain"
)

// Inbound payloads. Every event is a flat JSON object carrying its "type".

type envelope struct {
	Type string `json:"type"`
}

type joinPayload struct {
	RoomID      string `json:"roomId"`
	UserName    string `json:"userName,omitempty"`
	UserPicture string `json:"userPicture,omitempty"`
}

type roomPayload struct {
	RoomID string `json:"roomId"`
}

type signalPayload struct {
	To     string          `json:"to"`
	Signal json.RawMessage `json:"signal"`
}

type messagePayload struct {
	RoomID  string `json:"roomId"`
	Message *struct {
		ID        string    `json:"id"`
		Text      string    `json:"text"`
		Timestamp time.Time `json:"timestamp"`
	} `json:"message"`
}

type micPayload struct {
	RoomID  string `json:"roomId"`
	IsMuted *bool  `json:"isMuted"`
}

type videoPayload struct {
	RoomID     string `json:"roomId"`
	IsVideoOff *bool  `json:"isVideoOff"`
}

type screenSharePayload struct {
	RoomID    string `json:"roomId"`
	IsSharing *bool  `json:"isSharing"`
}

type typingPayload struct {
	RoomID   string `json:"roomId"`
	IsTyping bool   `json:"isTyping"`
}

type roomDataPayload struct {
	RoomID string          `json:"roomId"`
	Data   domain.Settings `json:"data"`
}

type roomSettingsPayload struct {
	RoomID   string          `json:"roomId"`
	Settings domain.Settings `json:"settings"`
}

// Outbound messages.

// MemberView is how a member is presented to other clients.
type MemberView struct {
	SocketID        string        `json:"socketId"`
	UserID          domain.UserID `json:"userId"`
	UserName        string        `json:"userName"`
	UserPicture     string        `json:"userPicture,omitempty"`
	IsMuted         bool          `json:"isMuted"`
	IsVideoOff      bool          `json:"isVideoOff"`
	IsScreenSharing bool          `json:"isScreenSharing"`
}

func newMemberView(m domain.Member, f domain.Flags) MemberView {
	return MemberView{
		SocketID:        m.SocketID,
		UserID:          m.User.ID,
		UserName:        m.User.Username,
		UserPicture:     m.User.Picture,
		IsMuted:         f.MicMuted,
		IsVideoOff:      f.VideoOff,
		IsScreenSharing: f.IsScreenSharing,
	}
}

type Connected struct {
	Type     string      `json:"type"`
	SocketID string      `json:"socketId"`
	User     domain.User `json:"user"`
}

type RoomUsers struct {
	Type   string        `json:"type"`
	RoomID domain.RoomID `json:"roomId"`
	Users  []MemberView  `json:"users"`
}

type ChatHistory struct {
	Type     string               `json:"type"`
	RoomID   domain.RoomID        `json:"roomId"`
	Messages []domain.ChatMessage `json:"messages"`
}

type UserConnected struct {
	Type string `json:"type"`
	MemberView
}

type UserDisconnected struct {
	Type     string `json:"type"`
	SocketID string `json:"socketId"`
}

type NewMessage struct {
	Type    string             `json:"type"`
	RoomID  domain.RoomID      `json:"roomId"`
	Message domain.ChatMessage `json:"message"`
}

type Signal struct {
	Type   string          `json:"type"`
	From   string          `json:"from"`
	Signal json.RawMessage `json:"signal"`
}

type UserMicStatus struct {
	Type     string `json:"type"`
	SocketID string `json:"socketId"`
	IsMuted  bool   `json:"isMuted"`
}

type UserVideoStatus struct {
	Type       string `json:"type"`
	SocketID   string `json:"socketId"`
	IsVideoOff bool   `json:"isVideoOff"`
}

type UserScreenShare struct {
	Type      string `json:"type"`
	SocketID  string `json:"socketId"`
	IsSharing bool   `json:"isSharing"`
}

type UserTyping struct {
	Type     string        `json:"type"`
	SocketID string        `json:"socketId"`
	UserID   domain.UserID `json:"userId"`
	UserName string        `json:"userName"`
	IsTyping bool          `json:"isTyping"`
}

type RoomDataUpdated struct {
	Type   string          `json:"type"`
	RoomID domain.RoomID   `json:"roomId"`
	Data   domain.Settings `json:"data"`
}

type RoomSettingsUpdated struct {
	Type     string          `json:"type"`
	RoomID   domain.RoomID   `json:"roomId"`
	Settings domain.Settings `json:"settings"`
}

type Initiator struct {
	SocketID string        `json:"socketId"`
	UserID   domain.UserID `json:"userId"`
	UserName string        `json:"userName"`
}

type MeetingEnded struct {
	Type    string        `json:"type"`
	RoomID  domain.RoomID `json:"roomId"`
	EndedBy Initiator     `json:"endedBy"`
}
