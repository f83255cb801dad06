package core

import (
	"context"
	"errors"

	"github.com/dkeye/meetrelay/internal/domain"
)

// Frame is a raw encoded event as it travels on the wire.
type Frame []byte

// SessionID identifies one live transport session. Assigned at connect, never reused while open.
type SessionID string

// SignalConnection abstracts for a system messaging transport
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	// TrySend enqueues without blocking; an error means the frame was not queued.
	TrySend(Frame) error
	Close()
}

// Credential is whatever the client presented when connecting (usually a bearer token)
// plus a stable fallback id for anonymous admission.
type Credential struct {
	Token   string
	GuestID string
}

// AuthGate verifies a credential before a connection is admitted.
type AuthGate interface {
	Verify(ctx context.Context, cred Credential) (*domain.User, error)
}

var (
	// ErrBackpressure means the connection's outbound queue is full.
	ErrBackpressure = errors.New("backpressure")
	// ErrConnectionClosed means the connection is gone; the frame is silently lost.
	ErrConnectionClosed = errors.New("connection closed")
)
