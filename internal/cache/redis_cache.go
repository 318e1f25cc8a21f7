package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/yoockh/auxilium/internal/models"
)

const conversationListPrefix = "auxilium:conversations:"

type RedisCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisCache(rdb *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &RedisCache{rdb: rdb, ttl: ttl}
}

func listKey(userID string) string    { return conversationListPrefix + userID }
func versionKey(userID string) string { return conversationListPrefix + userID + ":version" }

func (c *RedisCache) GetList(ctx context.Context, userID string) ([]models.ConversationSummary, int64, bool, error) {
	key := listKey(userID)
	var (
		listCmd *redis.StringCmd
		verCmd  *redis.StringCmd
	)
	_, err := c.rdb.Pipelined(ctx, func(p redis.Pipeliner) error {
		listCmd = p.Get(ctx, key)
		verCmd = p.Get(ctx, versionKey(userID))
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, 0, false, err
	}

	version, err := verCmd.Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, 0, false, err
	}

	b, err := listCmd.Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, version, false, nil
	}
	if err != nil {
		return nil, 0, false, err
	}

	var list []models.ConversationSummary
	if err := json.Unmarshal(b, &list); err != nil {
		// corrupt: drop it and report a miss
		_ = c.rdb.Del(ctx, key).Err()
		return nil, version, false, nil
	}
	if list == nil {
		list = []models.ConversationSummary{}
	}
	return list, version, true, nil
}

// SetList writes list only if the user's version still equals version. A lost
// race is not an error: the next List reloads from the database.
func (c *RedisCache) SetList(ctx context.Context, userID string, version int64, list []models.ConversationSummary) error {
	if list == nil {
		list = []models.ConversationSummary{}
	}
	b, err := json.Marshal(list)
	if err != nil {
		return err
	}

	vkey := versionKey(userID)
	err = c.rdb.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, vkey).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if cur != version {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, listKey(userID), b, c.ttl)
			return nil
		})
		return err
	}, vkey)
	if errors.Is(err, redis.TxFailedErr) {
		return nil
	}
	return err
}

func (c *RedisCache) Invalidate(ctx context.Context, userID string) error {
	_, err := c.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Incr(ctx, versionKey(userID))
		p.Del(ctx, listKey(userID))
		return nil
	})
	return err
}
