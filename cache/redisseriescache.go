// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) Lothar May

package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"financebuddy/config"
	"financebuddy/stockval"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

type redisSeriesCache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// NewRedisSeriesCache shares series between processes, entries expire after ttl.
func NewRedisSeriesCache(url string, ttl time.Duration) (SeriesCache, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid redis url: %v", stockval.ErrConfiguration, err)
	}
	return NewRedisSeriesCacheWithClient(redis.NewClient(opt), ttl), nil
}

func NewRedisSeriesCacheWithClient(client *redis.Client, ttl time.Duration) SeriesCache {
	return &redisSeriesCache{
		client: client,
		ttl:    ttl,
		prefix: config.AppName + ":",
	}
}

func (c *redisSeriesCache) Load(ctx context.Context, key string) (stockval.ClosePriceSeries, bool) {
	raw, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Debugf("redis get %s failed: %v", key, err)
		}
		return nil, false
	}
	s, err := decodeSeries(raw)
	if err != nil {
		log.Debugf("redis entry %s contains invalid data", key)
		c.client.Del(ctx, c.prefix+key)
		return nil, false
	}
	return s, true
}

func (c *redisSeriesCache) Store(ctx context.Context, key string, s stockval.ClosePriceSeries) {
	raw, err := encodeSeries(s)
	if err != nil {
		log.Debugf("error encoding series %s: %v", key, err)
		return
	}
	if err = c.client.Set(ctx, c.prefix+key, raw, c.ttl).Err(); err != nil {
		log.Debugf("redis set %s failed: %v", key, err)
	}
}
