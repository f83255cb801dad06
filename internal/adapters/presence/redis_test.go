package presence

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dkeye/meetrelay/internal/core"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStore records commands in memory.
type memStore struct {
	mu    sync.Mutex
	sets  map[string]map[string]struct{}
	keys  map[string]string
	ttls  map[string]time.Duration
	calls map[string]int
	block chan struct{}
}

func newMemStore() *memStore {
	return &memStore{
		sets:  map[string]map[string]struct{}{},
		keys:  map[string]string{},
		ttls:  map[string]time.Duration{},
		calls: map[string]int{},
	}
}

func (s *memStore) wait() {
	if s.block != nil {
		<-s.block
	}
}

func (s *memStore) SAdd(ctx context.Context, key string, members ...interface{}) *redis.IntCmd {
	s.wait()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sets[key] == nil {
		s.sets[key] = map[string]struct{}{}
	}
	for _, m := range members {
		s.sets[key][m.(string)] = struct{}{}
	}
	return redis.NewIntResult(int64(len(members)), nil)
}

func (s *memStore) SRem(ctx context.Context, key string, members ...interface{}) *redis.IntCmd {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range members {
		delete(s.sets[key], m.(string))
	}
	return redis.NewIntResult(int64(len(members)), nil)
}

func (s *memStore) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[key] = value.(string)
	s.ttls[key] = expiration
	s.calls[key]++
	return redis.NewStatusResult("OK", nil)
}

func (s *memStore) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		delete(s.keys, k)
	}
	return redis.NewIntResult(int64(len(keys)), nil)
}

func (s *memStore) members(key string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []string{}
	for m := range s.sets[key] {
		out = append(out, m)
	}
	return out
}

func (s *memStore) value(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.keys[key]
	return v, ok
}

func TestMirror_AppliesUpdates(t *testing.T) {
	store := newMemStore()
	m := NewMirror(store, time.Minute, 8)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = m.Run(ctx) }()

	m.Publish(core.PresenceUpdate{Room: "R1", User: "u1", Joined: true})
	m.Publish(core.PresenceUpdate{Room: "R1", User: "u2", Joined: true})
	m.Publish(core.PresenceUpdate{Room: "R1", User: "u1", Joined: false})

	require.Eventually(t, func() bool {
		_, u1 := store.value("presence:user:u1")
		return len(store.members("presence:room:R1")) == 1 && !u1
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, []string{"u2"}, store.members("presence:room:R1"))
	room, ok := store.value("presence:user:u2")
	assert.True(t, ok)
	assert.Equal(t, "R1", room)
	store.mu.Lock()
	assert.Equal(t, time.Minute, store.ttls["presence:user:u2"])
	store.mu.Unlock()
}

func TestMirror_PublishNeverBlocks(t *testing.T) {
	store := newMemStore()
	store.block = make(chan struct{})
	defer close(store.block)

	m := NewMirror(store, time.Minute, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = m.Run(ctx) }()

	done := make(chan struct{})
	go func() {
		for range 100 {
			m.Publish(core.PresenceUpdate{Room: "R1", User: "u1", Joined: true})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a stalled store")
	}
}

func TestMirror_RunStopsOnCancel(t *testing.T) {
	m := NewMirror(newMemStore(), time.Minute, 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, m.Run(ctx))
}

func (s *memStore) setCalls(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[key]
}

func TestMirror_RefreshesTTLWhileInRoom(t *testing.T) {
	store := newMemStore()
	m := NewMirror(store, 40*time.Millisecond, 8)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = m.Run(ctx) }()

	m.Publish(core.PresenceUpdate{Room: "R1", User: "u1", Joined: true})
	require.Eventually(t, func() bool {
		return store.setCalls("presence:user:u1") >= 3
	}, time.Second, 5*time.Millisecond)

	m.Publish(core.PresenceUpdate{Room: "R1", User: "u1", Joined: false})
	require.Eventually(t, func() bool {
		_, ok := store.value("presence:user:u1")
		return !ok
	}, time.Second, 5*time.Millisecond)

	settled := store.setCalls("presence:user:u1")
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, settled, store.setCalls("presence:user:u1"), "no refresh after leaving")
}

func TestMirror_UserKeySurvivesWhileInAnotherRoom(t *testing.T) {
	store := newMemStore()
	m := NewMirror(store, time.Minute, 8)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = m.Run(ctx) }()

	m.Publish(core.PresenceUpdate{Room: "R1", User: "u1", Joined: true})
	m.Publish(core.PresenceUpdate{Room: "R2", User: "u1", Joined: true})
	m.Publish(core.PresenceUpdate{Room: "R1", User: "u1", Joined: false})

	require.Eventually(t, func() bool {
		return len(store.members("presence:room:R1")) == 0 && store.setCalls("presence:user:u1") >= 3
	}, time.Second, 5*time.Millisecond)

	room, ok := store.value("presence:user:u1")
	assert.True(t, ok)
	assert.Equal(t, "R2", room)
	assert.Equal(t, []string{"u1"}, store.members("presence:room:R2"))
}
