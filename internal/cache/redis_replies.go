package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisReplyIDs stores hotline reply ids in redis: a per-channel sequence
// plus forward and reverse mappings with a shared TTL, so ids age out with
// the conversations they belong to.
type RedisReplyIDs struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisReplyIDs(rdb *redis.Client, ttl time.Duration) *RedisReplyIDs {
	return &RedisReplyIDs{rdb: rdb, ttl: ttl}
}

func (c *RedisReplyIDs) ReplyID(ctx context.Context, channelPhoneNumber, memberPhoneNumber string) (int64, error) {
	memberKey := fmt.Sprintf("hotline:%s:member:%s", channelPhoneNumber, memberPhoneNumber)

	if raw, err := c.rdb.Get(ctx, memberKey).Result(); err == nil {
		id, convErr := strconv.ParseInt(raw, 10, 64)
		if convErr != nil {
			return 0, fmt.Errorf("corrupt reply id %q: %w", raw, convErr)
		}
		_ = c.rdb.Expire(ctx, memberKey, c.ttl).Err()
		return id, nil
	} else if err != redis.Nil {
		return 0, err
	}

	id, err := c.rdb.Incr(ctx, fmt.Sprintf("hotline:%s:seq", channelPhoneNumber)).Result()
	if err != nil {
		return 0, err
	}

	idKey := fmt.Sprintf("hotline:%s:id:%d", channelPhoneNumber, id)
	if err := c.rdb.Set(ctx, memberKey, id, c.ttl).Err(); err != nil {
		return 0, err
	}
	if err := c.rdb.Set(ctx, idKey, memberPhoneNumber, c.ttl).Err(); err != nil {
		return 0, err
	}
	return id, nil
}

func (c *RedisReplyIDs) MemberFor(ctx context.Context, channelPhoneNumber string, replyID int64) (string, error) {
	member, err := c.rdb.Get(ctx, fmt.Sprintf("hotline:%s:id:%d", channelPhoneNumber, replyID)).Result()
	if err == redis.Nil {
		return "", ErrNoSuchReplyID
	}
	if err != nil {
		return "", err
	}
	return member, nil
}
