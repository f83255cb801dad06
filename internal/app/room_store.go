package app

import (
	"cmp"
	"errors"
	"slices"
	"sync"

	"github.com/dkeye/meetrelay/internal/core"
	"github.com/dkeye/meetrelay/internal/domain"
	"github.com/rs/zerolog/log"
)

var ErrRoomNotFound = errors.New("room not found")

type memberEntry struct {
	member domain.Member
	seq    uint64
}

type roomState struct {
	id       domain.RoomID
	members  map[core.SessionID]memberEntry
	history  []domain.ChatMessage
	seen     map[string]struct{}
	settings domain.Settings
	data     domain.Settings
}

// JoinResult is what a joining connection needs to bootstrap its local state.
type JoinResult struct {
	IsNewRoom       bool
	AlreadyMember   bool
	ExistingMembers []domain.Member
	History         []domain.ChatMessage
}

type LeaveResult struct {
	WasMember      bool
	WasLastMember  bool
	RemainingCount int
}

// RoomStore maps a room id to its members, bounded chat history and settings.
// Rooms exist only while they have members.
type RoomStore struct {
	mu           sync.RWMutex
	rooms        map[domain.RoomID]*roomState
	historyLimit int
	seq          uint64
}

func NewRoomStore(historyLimit int) *RoomStore {
	if historyLimit <= 0 {
		historyLimit = domain.DefaultHistoryLimit
	}
	return &RoomStore{
		rooms:        make(map[domain.RoomID]*roomState),
		historyLimit: historyLimit,
	}
}

func newRoomState(id domain.RoomID) *roomState {
	return &roomState{
		id:       id,
		members:  make(map[core.SessionID]memberEntry),
		seen:     make(map[string]struct{}),
		settings: domain.Settings{},
		data:     domain.Settings{},
	}
}

// GetOrCreate makes sure the room exists and reports whether this call created it.
func (s *RoomStore) GetOrCreate(id domain.RoomID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, created := s.getOrCreateLocked(id)
	return created
}

func (s *RoomStore) getOrCreateLocked(id domain.RoomID) (*roomState, bool) {
	if r, ok := s.rooms[id]; ok {
		return r, false
	}
	r := newRoomState(id)
	s.rooms[id] = r
	log.Info().Str("module", "app.rooms").Str("room", string(id)).Msg("room created")
	return r, true
}

// Join adds sid to the room, creating the room on first reference. A repeated join
// by the same sid overwrites its member entry and keeps its position.
func (s *RoomStore) Join(id domain.RoomID, sid core.SessionID, m domain.Member) JoinResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, created := s.getOrCreateLocked(id)

	res := JoinResult{
		IsNewRoom:       created,
		ExistingMembers: r.snapshotMembers(sid),
		History:         slices.Clone(r.history),
	}
	if res.History == nil {
		res.History = []domain.ChatMessage{}
	}

	if prev, ok := r.members[sid]; ok {
		res.AlreadyMember = true
		r.members[sid] = memberEntry{member: m, seq: prev.seq}
	} else {
		s.seq++
		r.members[sid] = memberEntry{member: m, seq: s.seq}
	}
	log.Info().Str("module", "app.rooms").Str("room", string(id)).Str("sid", string(sid)).Int("members", len(r.members)).Msg("member added")
	return res
}

// snapshotMembers returns members in join order, skipping except.
func (r *roomState) snapshotMembers(except core.SessionID) []domain.Member {
	entries := make([]memberEntry, 0, len(r.members))
	for sid, e := range r.members {
		if sid == except {
			continue
		}
		entries = append(entries, e)
	}
	slices.SortFunc(entries, func(a, b memberEntry) int { return cmp.Compare(a.seq, b.seq) })
	out := make([]domain.Member, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.member)
	}
	return out
}

// AppendMessage stores msg at the tail of the history, evicting from the head so the
// buffer never exceeds the limit. A message whose id is already stored is dropped.
func (s *RoomStore) AppendMessage(id domain.RoomID, msg domain.ChatMessage) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[id]
	if !ok {
		return false, ErrRoomNotFound
	}
	if _, dup := r.seen[msg.ID]; dup {
		return false, nil
	}
	r.history = append(r.history, msg)
	r.seen[msg.ID] = struct{}{}
	if over := len(r.history) - s.historyLimit; over > 0 {
		for _, old := range r.history[:over] {
			delete(r.seen, old.ID)
		}
		r.history = slices.Clone(r.history[over:])
	}
	return true, nil
}

// MergeSettings shallow-merges patch and returns a copy of the full result.
func (s *RoomStore) MergeSettings(id domain.RoomID, patch domain.Settings) (domain.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[id]
	if !ok {
		return nil, ErrRoomNotFound
	}
	return r.settings.Merge(patch).Clone(), nil
}

// MergeData is MergeSettings for the free-form room data bag.
func (s *RoomStore) MergeData(id domain.RoomID, patch domain.Settings) (domain.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[id]
	if !ok {
		return nil, ErrRoomNotFound
	}
	return r.data.Merge(patch).Clone(), nil
}

// Leave removes sid from the room and deletes the room once it is empty.
// Unknown rooms and non-members are a safe no-op.
func (s *RoomStore) Leave(id domain.RoomID, sid core.SessionID) LeaveResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[id]
	if !ok {
		return LeaveResult{}
	}
	if _, ok := r.members[sid]; !ok {
		return LeaveResult{RemainingCount: len(r.members)}
	}
	delete(r.members, sid)
	log.Info().Str("module", "app.rooms").Str("room", string(id)).Str("sid", string(sid)).Msg("member removed")

	res := LeaveResult{WasMember: true, RemainingCount: len(r.members)}
	if len(r.members) == 0 {
		delete(s.rooms, id)
		res.WasLastMember = true
		log.Info().Str("module", "app.rooms").Str("room", string(id)).Msg("room deleted")
	}
	return res
}

func (s *RoomStore) Exists(id domain.RoomID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.rooms[id]
	return ok
}

func (s *RoomStore) IsMember(id domain.RoomID, sid core.SessionID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rooms[id]
	if !ok {
		return false
	}
	_, ok = r.members[sid]
	return ok
}

// Members returns the room's members in join order.
func (s *RoomStore) Members(id domain.RoomID) ([]domain.Member, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rooms[id]
	if !ok {
		return nil, false
	}
	return r.snapshotMembers(""), true
}

// MemberIDs is Members reduced to session ids.
func (s *RoomStore) MemberIDs(id domain.RoomID) []core.SessionID {
	members, _ := s.Members(id)
	out := make([]core.SessionID, 0, len(members))
	for _, m := range members {
		out = append(out, core.SessionID(m.SocketID))
	}
	return out
}

func (s *RoomStore) History(id domain.RoomID) ([]domain.ChatMessage, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rooms[id]
	if !ok {
		return nil, false
	}
	return slices.Clone(r.history), true
}

func (s *RoomStore) Settings(id domain.RoomID) (domain.Settings, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rooms[id]
	if !ok {
		return nil, false
	}
	return r.settings.Clone(), true
}

func (s *RoomStore) List() []core.RoomInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.RoomInfo, 0, len(s.rooms))
	for id, r := range s.rooms {
		out = append(out, core.RoomInfo{ID: id, MemberCount: len(r.members), MessageCount: len(r.history)})
	}
	slices.SortFunc(out, func(a, b core.RoomInfo) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

func (s *RoomStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rooms)
}
