package app

import (
	"errors"
	"sync"

	"github.com/dkeye/meetrelay/internal/core"
	"github.com/dkeye/meetrelay/internal/domain"
	"github.com/rs/zerolog/log"
)

var (
	ErrAlreadyRegistered = errors.New("connection already registered")
	ErrUnknownConnection = errors.New("unknown connection")
)

type sessionEntry struct {
	User  domain.User
	Room  domain.RoomID
	Flags domain.Flags
	Conn  core.SignalConnection
	Guest bool
}

// ConnSnapshot is a copy of one registry entry, safe to read without the lock.
type ConnSnapshot struct {
	SID   core.SessionID
	User  domain.User
	Room  domain.RoomID
	Flags domain.Flags
	Guest bool
}

// Registry tracks one entry per live connection. It exclusively owns per-connection flags.
type Registry struct {
	mu       sync.RWMutex
	sessions map[core.SessionID]*sessionEntry
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[core.SessionID]*sessionEntry),
	}
}

// Register binds a freshly connected session to its verified identity and transport endpoint.
func (r *Registry) Register(sid core.SessionID, user domain.User, conn core.SignalConnection, guest bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[sid]; ok {
		return ErrAlreadyRegistered
	}
	r.sessions[sid] = &sessionEntry{User: user, Conn: conn, Guest: guest}
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Str("user", string(user.ID)).Msg("registered")
	return nil
}

func (r *Registry) Lookup(sid core.SessionID) (ConnSnapshot, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.sessions[sid]
	if !ok {
		return ConnSnapshot{}, false
	}
	return ConnSnapshot{SID: sid, User: e.User, Room: e.Room, Flags: e.Flags, Guest: e.Guest}, true
}

func (r *Registry) Conn(sid core.SessionID) (core.SignalConnection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.sessions[sid]
	if !ok {
		return nil, false
	}
	return e.Conn, true
}

func (r *Registry) RoomOf(sid core.SessionID) (domain.RoomID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.sessions[sid]
	if !ok || e.Room == "" {
		return "", false
	}
	return e.Room, true
}

// SetRoom records room membership. Flags start clean in every new room.
func (r *Registry) SetRoom(sid core.SessionID, room domain.RoomID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[sid]
	if !ok {
		return false
	}
	if e.Room != room {
		e.Flags = domain.Flags{}
	}
	e.Room = room
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Str("room", string(room)).Msg("updated room")
	return true
}

func (r *Registry) ClearRoom(sid core.SessionID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.sessions[sid]; ok {
		e.Room = ""
		e.Flags = domain.Flags{}
	}
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("removed room association")
}

// UpdateFlags merges patch into the connection's flags. It is a silent no-op for unknown
// connections and for connections that are not in a room.
func (r *Registry) UpdateFlags(sid core.SessionID, patch domain.FlagsPatch) (domain.Flags, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[sid]
	if !ok || e.Room == "" {
		return domain.Flags{}, false
	}
	e.Flags.Apply(patch)
	return e.Flags, true
}

// UpdateProfile renames a guest. Verified identities are never overwritten.
func (r *Registry) UpdateProfile(sid core.SessionID, name, picture string) (domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[sid]
	if !ok {
		return domain.User{}, ErrUnknownConnection
	}
	if !e.Guest {
		return e.User, nil
	}
	if name != "" {
		if err := e.User.SetUsername(name); err != nil {
			return e.User, err
		}
	}
	if picture != "" {
		e.User.SetPicture(picture)
	}
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Str("username", e.User.Username).Msg("updated guest profile")
	return e.User, nil
}

// Unregister removes the connection and reports the room it was in, if any.
func (r *Registry) Unregister(sid core.SessionID) (domain.RoomID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[sid]
	if !ok {
		return "", false
	}
	delete(r.sessions, sid)
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("unregistered")
	return e.Room, e.Room != ""
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
