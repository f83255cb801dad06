package app

import (
	"testing"

	"github.com/dkeye/meetrelay/internal/core"
	"github.com/dkeye/meetrelay/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopConn struct{}

func (nopConn) TrySend(core.Frame) error { return nil }
func (nopConn) Close()                   {}

func boolPtr(v bool) *bool { return &v }

func TestRegistry_RegisterTwiceFails(t *testing.T) {
	r := NewRegistry()
	u := domain.User{ID: "u1", Username: "alice"}

	require.NoError(t, r.Register("s1", u, nopConn{}, false))
	assert.ErrorIs(t, r.Register("s1", u, nopConn{}, false), ErrAlreadyRegistered)
	assert.Equal(t, 1, r.Count())
}

func TestRegistry_UpdateFlagsRequiresRoom(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("s1", domain.User{ID: "u1", Username: "alice"}, nopConn{}, false))

	_, ok := r.UpdateFlags("s1", domain.FlagsPatch{MicMuted: boolPtr(true)})
	assert.False(t, ok, "not in a room yet")

	_, ok = r.UpdateFlags("missing", domain.FlagsPatch{MicMuted: boolPtr(true)})
	assert.False(t, ok, "unknown connection")

	require.True(t, r.SetRoom("s1", "R1"))
	flags, ok := r.UpdateFlags("s1", domain.FlagsPatch{MicMuted: boolPtr(true)})
	require.True(t, ok)
	assert.Equal(t, domain.Flags{MicMuted: true}, flags)

	flags, ok = r.UpdateFlags("s1", domain.FlagsPatch{VideoOff: boolPtr(true)})
	require.True(t, ok)
	assert.Equal(t, domain.Flags{MicMuted: true, VideoOff: true}, flags)
}

func TestRegistry_FlagsResetOnRoomChange(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("s1", domain.User{ID: "u1", Username: "alice"}, nopConn{}, false))
	r.SetRoom("s1", "R1")
	r.UpdateFlags("s1", domain.FlagsPatch{MicMuted: boolPtr(true)})

	r.SetRoom("s1", "R1")
	snap, _ := r.Lookup("s1")
	assert.True(t, snap.Flags.MicMuted, "same room keeps flags")

	r.SetRoom("s1", "R2")
	snap, _ = r.Lookup("s1")
	assert.False(t, snap.Flags.MicMuted)
}

func TestRegistry_UnregisterReturnsRoom(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("s1", domain.User{ID: "u1", Username: "alice"}, nopConn{}, false))
	require.NoError(t, r.Register("s2", domain.User{ID: "u2", Username: "bob"}, nopConn{}, false))
	r.SetRoom("s1", "R1")

	room, ok := r.Unregister("s1")
	assert.True(t, ok)
	assert.Equal(t, domain.RoomID("R1"), room)

	_, ok = r.Unregister("s2")
	assert.False(t, ok, "s2 was never in a room")

	_, ok = r.Lookup("s1")
	assert.False(t, ok)
	_, ok = r.Unregister("s1")
	assert.False(t, ok, "second unregister is a no-op")
}

func TestRegistry_UpdateProfileOnlyForGuests(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("guest", domain.User{ID: "g1", Username: "guest"}, nopConn{}, true))
	require.NoError(t, r.Register("verified", domain.User{ID: "u1", Username: "alice"}, nopConn{}, false))

	u, err := r.UpdateProfile("guest", "Guesty", "g.png")
	require.NoError(t, err)
	assert.Equal(t, "Guesty", u.Username)
	assert.Equal(t, "g.png", u.Picture)

	u, err = r.UpdateProfile("verified", "Mallory", "")
	require.NoError(t, err)
	assert.Equal(t, "alice", u.Username)

	_, err = r.UpdateProfile("nobody", "x", "")
	assert.ErrorIs(t, err, ErrUnknownConnection)
}
