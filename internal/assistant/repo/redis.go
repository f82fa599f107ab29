package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/campusconnect-poc/server/internal/assistant/model"
	errx "github.com/campusconnect-poc/server/internal/core/error"
	logx "github.com/campusconnect-poc/server/pkg/logger"
	"github.com/redis/go-redis/v9"
)

// RedisTurnRepository stores each thread's turns as a Redis list of JSON
// documents. The key embeds both user and thread id, so isolation between
// threads falls out of key construction.
type RedisTurnRepository struct {
	rdb redis.Cmdable
	ttl time.Duration
}

func NewRedisTurnRepository(rdb redis.Cmdable, ttl time.Duration) *RedisTurnRepository {
	return &RedisTurnRepository{rdb: rdb, ttl: ttl}
}

func (r *RedisTurnRepository) threadKey(userID, threadID string) string {
	return fmt.Sprintf("thread:%s:%s:turns", userID, threadID)
}

func (r *RedisTurnRepository) Append(ctx context.Context, turn model.ConversationTurn) error {
	b, err := json.Marshal(turn)
	if err != nil {
		logx.Error().Err(err).Str("thread_id", turn.ThreadID).Msg("failed to marshal turn")
		return fmt.Errorf("marshal turn: %w", err)
	}
	key := r.threadKey(turn.UserID, turn.ThreadID)

	// append turn
	if err := r.rdb.RPush(ctx, key, b).Err(); err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to push turn to redis")
		return errx.WrapRedis(err)
	}
	// extend TTL on touch
	if r.ttl > 0 {
		if ok, err := r.rdb.Expire(ctx, key, r.ttl).Result(); err != nil {
			logx.Error().Err(err).Str("key", key).Msg("failed to set expire")
			return errx.WrapRedis(err)
		} else if !ok {
			logx.Warn().Str("key", key).Dur("ttl", r.ttl).Msg("failed to set TTL on thread key")
		}
	}
	return nil
}

func (r *RedisTurnRepository) Recent(ctx context.Context, userID, threadID string, n int) ([]model.ConversationTurn, error) {
	key := r.threadKey(userID, threadID)
	if n <= 0 {
		return []model.ConversationTurn{}, nil
	}

	// LRANGE with a negative start yields the list tail in insertion order,
	// which is already oldest-first for an append-only log.
	rows, err := r.rdb.LRange(ctx, key, int64(-n), -1).Result()
	if err != nil {
		if err == redis.Nil {
			return []model.ConversationTurn{}, nil
		}
		logx.Error().Err(err).Str("key", key).Msg("failed to load turns from redis")
		return nil, errx.WrapRedis(err)
	}

	turns := make([]model.ConversationTurn, 0, len(rows))
	for i, s := range rows {
		var t model.ConversationTurn
		if err := json.Unmarshal([]byte(s), &t); err != nil {
			logx.Error().Err(err).Str("thread_id", threadID).Int("index", i).Msg("failed to unmarshal turn")
			return nil, fmt.Errorf("unmarshal turn at index %d: %w", i, err)
		}
		turns = append(turns, t)
	}
	return turns, nil
}

func (r *RedisTurnRepository) Count(ctx context.Context, userID, threadID string) (int, error) {
	key := r.threadKey(userID, threadID)
	n, err := r.rdb.LLen(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return 0, nil
		}
		logx.Error().Err(err).Str("key", key).Msg("failed to get turn count from redis")
		return 0, errx.WrapRedis(err)
	}
	return int(n), nil
}

func (r *RedisTurnRepository) ClearHistory(ctx context.Context, userID, threadID string) error {
	key := r.threadKey(userID, threadID)
	if err := r.rdb.Del(ctx, key).Err(); err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to delete thread history from redis")
		return errx.WrapRedis(err)
	}
	return nil
}

var _ model.TurnRepository = (*RedisTurnRepository)(nil)
