package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisMetaStore keeps each user's feed state in three keys: a read set,
// a deleted set and a first-seen hash (id -> RFC3339Nano).
type RedisMetaStore struct {
	rdb *redis.Client
}

func NewRedisMetaStore(rdb *redis.Client) *RedisMetaStore { return &RedisMetaStore{rdb: rdb} }

func readKey(uid string) string      { return fmt.Sprintf("lib:notif:%s:read", uid) }
func deletedKey(uid string) string   { return fmt.Sprintf("lib:notif:%s:deleted", uid) }
func firstSeenKey(uid string) string { return fmt.Sprintf("lib:notif:%s:first_seen", uid) }

func (s *RedisMetaStore) Load(ctx context.Context, userID string) (Meta, error) {
	pipe := s.rdb.Pipeline()
	readCmd := pipe.SMembers(ctx, readKey(userID))
	delCmd := pipe.SMembers(ctx, deletedKey(userID))
	seenCmd := pipe.HGetAll(ctx, firstSeenKey(userID))
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return Meta{}, err
	}

	m := newMeta()
	for _, id := range readCmd.Val() {
		m.ReadIDs[id] = struct{}{}
	}
	for _, id := range delCmd.Val() {
		m.DeletedIDs[id] = struct{}{}
	}
	for id, raw := range seenCmd.Val() {
		at, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return Meta{}, fmt.Errorf("first seen of %s: %w", id, err)
		}
		m.FirstSeen[id] = at
	}
	return m, nil
}

func (s *RedisMetaStore) BackfillFirstSeen(ctx context.Context, userID string, ids []string, at time.Time) (map[string]time.Time, error) {
	if len(ids) == 0 {
		return map[string]time.Time{}, nil
	}
	key := firstSeenKey(userID)
	stamp := at.UTC().Format(time.RFC3339Nano)

	// HSETNX keeps whatever a concurrent scan stored first
	pipe := s.rdb.TxPipeline()
	for _, id := range ids {
		pipe.HSetNX(ctx, key, id, stamp)
	}
	got := pipe.HMGet(ctx, key, ids...)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, err
	}

	out := make(map[string]time.Time, len(ids))
	for i, v := range got.Val() {
		raw, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("first seen of %s missing after backfill", ids[i])
		}
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return nil, fmt.Errorf("first seen of %s: %w", ids[i], err)
		}
		out[ids[i]] = t
	}
	return out, nil
}

func (s *RedisMetaStore) MarkRead(ctx context.Context, userID, id string) error {
	return s.rdb.SAdd(ctx, readKey(userID), id).Err()
}

func (s *RedisMetaStore) MarkUnread(ctx context.Context, userID, id string) error {
	return s.rdb.SRem(ctx, readKey(userID), id).Err()
}

func (s *RedisMetaStore) Delete(ctx context.Context, userID, id string) error {
	return s.rdb.SAdd(ctx, deletedKey(userID), id).Err()
}
