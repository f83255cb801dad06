package app

import (
	"fmt"
	"testing"

	"github.com/dkeye/meetrelay/internal/core"
	"github.com/dkeye/meetrelay/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func member(sid string) domain.Member {
	return domain.NewMember(sid, domain.User{ID: domain.UserID("u-" + sid), Username: sid})
}

func TestRoomStore_JoinBootstrap(t *testing.T) {
	s := NewRoomStore(0)

	res := s.Join("R2", "A", member("A"))
	assert.True(t, res.IsNewRoom)
	assert.Empty(t, res.ExistingMembers)
	assert.NotNil(t, res.History)
	assert.Empty(t, res.History)

	res = s.Join("R2", "B", member("B"))
	assert.False(t, res.IsNewRoom)
	require.Len(t, res.ExistingMembers, 1)
	assert.Equal(t, "A", res.ExistingMembers[0].SocketID)

	res = s.Join("R2", "C", member("C"))
	require.Len(t, res.ExistingMembers, 2)
	assert.Equal(t, "A", res.ExistingMembers[0].SocketID)
	assert.Equal(t, "B", res.ExistingMembers[1].SocketID)
}

func TestRoomStore_DuplicateJoinOverwrites(t *testing.T) {
	s := NewRoomStore(0)
	s.Join("R1", "A", member("A"))
	s.Join("R1", "B", member("B"))

	renamed := domain.NewMember("A", domain.User{ID: "u-A", Username: "A2"})
	res := s.Join("R1", "A", renamed)
	assert.True(t, res.AlreadyMember)

	members, ok := s.Members("R1")
	require.True(t, ok)
	require.Len(t, members, 2)
	assert.Equal(t, "A2", members[0].User.Username, "keeps join position")
}

func TestRoomStore_GetOrCreateIsObservable(t *testing.T) {
	s := NewRoomStore(0)
	assert.True(t, s.GetOrCreate("R1"))
	assert.False(t, s.GetOrCreate("R1"))
	assert.True(t, s.Exists("R1"))
}

func TestRoomStore_AppendMessageFIFO(t *testing.T) {
	s := NewRoomStore(100)
	s.Join("R1", "A", member("A"))

	var want []string
	for i := range 101 {
		id := fmt.Sprintf("m%03d", i)
		appended, err := s.AppendMessage("R1", domain.ChatMessage{ID: id, Text: id})
		require.NoError(t, err)
		require.True(t, appended)
		want = append(want, id)
	}

	history, ok := s.History("R1")
	require.True(t, ok)
	require.Len(t, history, 100)

	got := make([]string, 0, len(history))
	for _, m := range history {
		got = append(got, m.ID)
	}
	assert.Equal(t, want[1:], got)
}

func TestRoomStore_AppendMessageDedup(t *testing.T) {
	s := NewRoomStore(2)
	s.Join("R1", "A", member("A"))

	ok, err := s.AppendMessage("R1", domain.ChatMessage{ID: "x"})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.AppendMessage("R1", domain.ChatMessage{ID: "x"})
	require.NoError(t, err)
	assert.False(t, ok)

	s.AppendMessage("R1", domain.ChatMessage{ID: "y"})
	s.AppendMessage("R1", domain.ChatMessage{ID: "z"})

	// x was evicted, so its id is free again
	ok, err = s.AppendMessage("R1", domain.ChatMessage{ID: "x"})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRoomStore_AppendMessageUnknownRoom(t *testing.T) {
	s := NewRoomStore(0)
	_, err := s.AppendMessage("nope", domain.ChatMessage{ID: "x"})
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestRoomStore_MergeSettings(t *testing.T) {
	s := NewRoomStore(0)
	_, err := s.MergeSettings("R1", domain.Settings{"theme": "dark"})
	assert.ErrorIs(t, err, ErrRoomNotFound)

	s.Join("R1", "A", member("A"))
	got, err := s.MergeSettings("R1", domain.Settings{"theme": "dark"})
	require.NoError(t, err)
	assert.Equal(t, domain.Settings{"theme": "dark"}, got)

	got, err = s.MergeSettings("R1", domain.Settings{"lang": "en"})
	require.NoError(t, err)
	assert.Equal(t, domain.Settings{"theme": "dark", "lang": "en"}, got)

	got["theme"] = "mutated"
	stored, _ := s.Settings("R1")
	assert.Equal(t, "dark", stored["theme"], "returned map is a copy")

	data, err := s.MergeData("R1", domain.Settings{"topic": "standup"})
	require.NoError(t, err)
	assert.Equal(t, domain.Settings{"topic": "standup"}, data)
}

func TestRoomStore_LeaveDeletesEmptyRoom(t *testing.T) {
	s := NewRoomStore(0)
	s.Join("R1", "A", member("A"))
	s.Join("R1", "B", member("B"))
	s.AppendMessage("R1", domain.ChatMessage{ID: "m1"})

	res := s.Leave("R1", "A")
	assert.Equal(t, LeaveResult{WasMember: true, RemainingCount: 1}, res)
	assert.True(t, s.Exists("R1"))

	res = s.Leave("R1", "B")
	assert.True(t, res.WasLastMember)
	assert.False(t, s.Exists("R1"))
	assert.Equal(t, 0, s.Len())

	// a fresh room with the same id starts empty
	jr := s.Join("R1", "C", member("C"))
	assert.True(t, jr.IsNewRoom)
	assert.Empty(t, jr.History)
}

func TestRoomStore_LeaveIsIdempotent(t *testing.T) {
	s := NewRoomStore(0)
	s.Join("R1", "A", member("A"))
	s.Join("R1", "B", member("B"))

	first := s.Leave("R1", "A")
	second := s.Leave("R1", "A")
	assert.True(t, first.WasMember)
	assert.False(t, second.WasMember)
	assert.Equal(t, 1, second.RemainingCount)

	assert.Equal(t, LeaveResult{}, s.Leave("missing", "A"))

	ids := s.MemberIDs("R1")
	assert.Equal(t, []core.SessionID{"B"}, ids)
}

func TestRoomStore_List(t *testing.T) {
	s := NewRoomStore(0)
	s.Join("b", "A", member("A"))
	s.Join("a", "B", member("B"))
	s.Join("a", "C", member("C"))
	s.AppendMessage("a", domain.ChatMessage{ID: "m"})

	assert.Equal(t, []core.RoomInfo{
		{ID: "a", MemberCount: 2, MessageCount: 1},
		{ID: "b", MemberCount: 1},
	}, s.List())
}

func TestPolicyByName(t *testing.T) {
	assert.Equal(t, DropFrame, PolicyByName("drop").OnBackPressure("R", "s"))
	assert.Equal(t, KickMember, PolicyByName("kick").OnBackPressure("R", "s"))
	assert.Equal(t, KickMember, PolicyByName("").OnBackPressure("R", "s"))
}
