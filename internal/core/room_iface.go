package core

import (
	"github.com/dkeye/meetrelay/internal/domain"
)

// RoomInfo is a read-only view for APIs.
type RoomInfo struct {
	ID           domain.RoomID `json:"roomId"`
	MemberCount  int           `json:"memberCount"`
	MessageCount int           `json:"messageCount"`
}

// PresenceUpdate is emitted whenever a user enters or leaves a room.
type PresenceUpdate struct {
	Room   domain.RoomID
	User   domain.UserID
	Joined bool
}

// PresenceSink receives membership changes. Implementations must not block.
type PresenceSink interface {
	Publish(PresenceUpdate)
}
