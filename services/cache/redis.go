// Package cachesvc implements user.TokenCache on Redis.
package cachesvc

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	goredis "github.com/redis/go-redis/v9"

	"github.com/aaronlou/innergrow.ai/core"
	"github.com/aaronlou/innergrow.ai/core/user"
)

const tokenKeyPrefix = "auth:token:"

type redisTokenCache struct {
	rdb goredis.UniversalClient
	ttl time.Duration
}

var _ user.TokenCache = (*redisTokenCache)(nil)

// NewRedisClient connects to the configured server and pings it.
func NewRedisClient(ctx context.Context, conf core.RedisConfig) (*goredis.Client, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        conf.Address,
		Password:    conf.Password,
		DB:          conf.DB,
		DialTimeout: 5 * time.Second,
	})
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, errors.Wrap(err, "pinging redis")
	}
	return rdb, nil
}

func NewTokenCache(rdb goredis.UniversalClient, ttl time.Duration) user.TokenCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &redisTokenCache{rdb: rdb, ttl: ttl}
}

func (c *redisTokenCache) Get(ctx context.Context, key string) (user.AuthToken, bool, error) {
	raw, err := c.rdb.Get(ctx, tokenKeyPrefix+key).Bytes()
	if err == goredis.Nil {
		return user.AuthToken{}, false, nil
	}
	if err != nil {
		return user.AuthToken{}, false, errors.Wrap(err, "getting cached token")
	}
	var tok user.AuthToken
	if err = json.Unmarshal(raw, &tok); err != nil {
		return user.AuthToken{}, false, errors.Wrap(err, "decoding cached token")
	}
	return tok, true, nil
}

func (c *redisTokenCache) Set(ctx context.Context, tok user.AuthToken) error {
	raw, err := json.Marshal(tok)
	if err != nil {
		return errors.Wrap(err, "encoding token")
	}
	return errors.Wrap(c.rdb.Set(ctx, tokenKeyPrefix+tok.Key, raw, c.ttl).Err(), "caching token")
}

func (c *redisTokenCache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	rkeys := make([]string, 0, len(keys))
	for _, k := range keys {
		rkeys = append(rkeys, tokenKeyPrefix+k)
	}
	return errors.Wrap(c.rdb.Del(ctx, rkeys...).Err(), "evicting tokens")
}
