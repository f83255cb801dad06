package presence

import (
	"context"
	"time"

	"github.com/dkeye/meetrelay/internal/core"
	"github.com/dkeye/meetrelay/internal/domain"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// keys:
//
//	presence:room:{roomId} = set of userIds
//	presence:user:{userId} = roomId (EX ttl, refreshed while the user is in a room)
const (
	roomKeyPrefix = "presence:room:"
	userKeyPrefix = "presence:user:"
)

// Store is the subset of redis commands the mirror needs.
type Store interface {
	SAdd(ctx context.Context, key string, members ...interface{}) *redis.IntCmd
	SRem(ctx context.Context, key string, members ...interface{}) *redis.IntCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// Mirror copies room membership into redis for other services to read.
// Publish never blocks; updates are dropped when the queue is full.
// Users still in a room get their TTL key re-armed every ttl/2.
type Mirror struct {
	rdb     Store
	ttl     time.Duration
	refresh time.Duration
	updates chan core.PresenceUpdate

	// rooms is owned by Run.
	rooms map[domain.UserID]map[domain.RoomID]struct{}
}

var _ core.PresenceSink = (*Mirror)(nil)

func NewMirror(rdb Store, ttl time.Duration, buffer int) *Mirror {
	if buffer <= 0 {
		buffer = 256
	}
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &Mirror{
		rdb:     rdb,
		ttl:     ttl,
		refresh: ttl / 2,
		updates: make(chan core.PresenceUpdate, buffer),
		rooms:   make(map[domain.UserID]map[domain.RoomID]struct{}),
	}
}

func NewClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
}

func (m *Mirror) Publish(u core.PresenceUpdate) {
	select {
	case m.updates <- u:
	default:
		log.Warn().Str("module", "presence").Str("room", string(u.Room)).Msg("presence queue full, update dropped")
	}
}

// Run applies queued updates until ctx is done.
func (m *Mirror) Run(ctx context.Context) error {
	log.Info().Str("module", "presence").Msg("presence mirror started")
	ticker := time.NewTicker(m.refresh)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.heartbeat(ctx)
		case <-ctx.Done():
			log.Info().Str("module", "presence").Msg("presence mirror stopped")
			return nil
		case u := <-m.updates:
			if err := m.apply(ctx, u); err != nil {
				log.Error().Err(err).Str("module", "presence").Str("room", string(u.Room)).Str("user", string(u.User)).Msg("presence write")
			}
		}
	}
}

func (m *Mirror) apply(ctx context.Context, u core.PresenceUpdate) error {
	roomKey := roomKeyPrefix + string(u.Room)
	if u.Joined {
		if err := m.rdb.SAdd(ctx, roomKey, string(u.User)).Err(); err != nil {
			return err
		}
		if m.rooms[u.User] == nil {
			m.rooms[u.User] = make(map[domain.RoomID]struct{})
		}
		m.rooms[u.User][u.Room] = struct{}{}
		return m.touch(ctx, u.User, u.Room)
	}

	if err := m.rdb.SRem(ctx, roomKey, string(u.User)).Err(); err != nil {
		return err
	}
	delete(m.rooms[u.User], u.Room)
	if room, ok := anyRoom(m.rooms[u.User]); ok {
		return m.touch(ctx, u.User, room)
	}
	delete(m.rooms, u.User)
	return m.rdb.Del(ctx, userKeyPrefix+string(u.User)).Err()
}

func (m *Mirror) touch(ctx context.Context, user domain.UserID, room domain.RoomID) error {
	return m.rdb.Set(ctx, userKeyPrefix+string(user), string(room), m.ttl).Err()
}

// heartbeat keeps the TTL key of every tracked user alive.
func (m *Mirror) heartbeat(ctx context.Context) {
	for user, rooms := range m.rooms {
		room, ok := anyRoom(rooms)
		if !ok {
			continue
		}
		if err := m.touch(ctx, user, room); err != nil {
			log.Error().Err(err).Str("module", "presence").Str("user", string(user)).Msg("presence refresh")
		}
	}
}

func anyRoom(rooms map[domain.RoomID]struct{}) (domain.RoomID, bool) {
	for room := range rooms {
		return room, true
	}
	return "", false
}

// Noop discards updates when no redis is configured.
type Noop struct{}

func (Noop) Publish(core.PresenceUpdate) {}
