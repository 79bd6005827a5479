package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/zenotheomni/fifth-dimension-3d-world-sub001/internal/models"
)

const historyTTL = 7 * 24 * time.Hour

// RedisHistory is a HistoryStore backed by Redis: a sorted set of message ids
// per room scored by timestamp, with the message bodies in plain keys so
// moderation can rewrite them in place.
type RedisHistory struct {
	client *redis.Client
	cap    int
}

// NewRedisHistory connects to Redis and returns a history store bounded to
// historyCap messages per room.
func NewRedisHistory(ctx context.Context, redisURL string, historyCap int) (*RedisHistory, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	if historyCap <= 0 {
		historyCap = 500
	}
	return &RedisHistory{client: client, cap: historyCap}, nil
}

// Close closes the Redis connection.
func (s *RedisHistory) Close() error {
	return s.client.Close()
}

// Ping checks the Redis connection.
func (s *RedisHistory) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Client exposes the underlying client for the rate limiter.
func (s *RedisHistory) Client() *redis.Client {
	return s.client
}

func roomIndexKey(roomID string) string {
	return fmt.Sprintf("room:%s:messages", roomID)
}

func messageKey(roomID, messageID string) string {
	return fmt.Sprintf("room:%s:msg:%s", roomID, messageID)
}

func (s *RedisHistory) Append(ctx context.Context, msg *models.ChatMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	idx := roomIndexKey(msg.RoomID)

	pipe := s.client.Pipeline()
	pipe.ZAdd(ctx, idx, redis.Z{Score: float64(msg.Timestamp), Member: msg.ID})
	pipe.Set(ctx, messageKey(msg.RoomID, msg.ID), string(data), historyTTL)
	pipe.Expire(ctx, idx, historyTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return err
	}

	// Trim oldest entries beyond capacity; best-effort cleanup of bodies.
	evicted, err := s.client.ZRange(ctx, idx, 0, int64(-s.cap-1)).Result()
	if err == nil && len(evicted) > 0 {
		keys := make([]string, len(evicted))
		for i, id := range evicted {
			keys[i] = messageKey(msg.RoomID, id)
		}
		pipe := s.client.Pipeline()
		pipe.ZRemRangeByRank(ctx, idx, 0, int64(len(evicted)-1))
		pipe.Del(ctx, keys...)
		_, _ = pipe.Exec(ctx)
	}

	return nil
}

func (s *RedisHistory) Recent(ctx context.Context, roomID string, limit int, includeDeleted bool) ([]models.ChatMessage, error) {
	// Newest first, bounded by the ring capacity; filtering happens below.
	ids, err := s.client.ZRevRange(ctx, roomIndexKey(roomID), 0, int64(s.cap-1)).Result()
	if err != nil {
		return nil, err
	}

	out := make([]models.ChatMessage, 0, limit)
	for _, id := range ids {
		if len(out) >= limit {
			break
		}
		msg, err := s.Get(ctx, roomID, id)
		if err != nil || msg == nil {
			continue // body expired
		}
		if msg.Deleted && !includeDeleted {
			continue
		}
		out = append(out, *msg)
	}

	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func (s *RedisHistory) Get(ctx context.Context, roomID, messageID string) (*models.ChatMessage, error) {
	data, err := s.client.Get(ctx, messageKey(roomID, messageID)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var msg models.ChatMessage
	if err := json.Unmarshal([]byte(data), &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (s *RedisHistory) MarkDeleted(ctx context.Context, roomID, messageID, moderatorID, reason string, at time.Time) error {
	msg, err := s.Get(ctx, roomID, messageID)
	if err != nil {
		return err
	}
	if msg == nil {
		return fmt.Errorf("%w: message %q", models.ErrNotFound, messageID)
	}

	msg.Deleted = true
	msg.DeletedBy = moderatorID
	msg.DeleteReason = reason
	msg.DeletedAtUnix = at.UnixMilli()

	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, messageKey(roomID, messageID), string(data), redis.KeepTTL).Err()
}
