package app

import (
	"github.com/dkeye/meetrelay/internal/core"
	"github.com/dkeye/meetrelay/internal/domain"
)

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	DropFrame
	KickMember
)

// Policy decides what happens to a connection whose outbound queue is full.
type Policy interface {
	OnBackPressure(room domain.RoomID, sid core.SessionID) BackpressureAction
}

// SimplePolicy disconnects slow consumers; their disconnect is then fanned out as a normal leave.
type SimplePolicy struct{}

func (SimplePolicy) OnBackPressure(domain.RoomID, core.SessionID) BackpressureAction {
	return KickMember
}

// DropPolicy only loses the frame and keeps the connection.
type DropPolicy struct{}

func (DropPolicy) OnBackPressure(domain.RoomID, core.SessionID) BackpressureAction {
	return DropFrame
}

// PolicyByName maps a config value to a policy. Unknown names fall back to SimplePolicy.
func PolicyByName(name string) Policy {
	switch name {
	case "drop":
		return DropPolicy{}
	default:
		return SimplePolicy{}
	}
}
