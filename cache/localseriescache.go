// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) Lothar May

package cache

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"financebuddy/config"
	"financebuddy/stockval"

	"github.com/lotodore/localcache"
	log "github.com/sirupsen/logrus"
)

type localSeriesCache struct {
	data      *localcache.Cache
	maxAge    time.Duration
	writeLock sync.Mutex
}

// NewLocalSeriesCache stores series as files in the user cache directory.
func NewLocalSeriesCache(name string, maxAge time.Duration) (SeriesCache, error) {
	data, err := localcache.New(filepath.Join(config.AppName, name))
	if err != nil {
		return nil, fmt.Errorf("error initializing series cache: %w", err)
	}
	return &localSeriesCache{
		data:   data,
		maxAge: maxAge,
	}, nil
}

func (c *localSeriesCache) Load(ctx context.Context, key string) (stockval.ClosePriceSeries, bool) {
	err := c.data.PurgeKey(key, c.maxAge)
	if err != nil {
		log.Debugf("error purging cache %s, series may be outdated", key)
	}
	raw, err := c.data.ReadFile(key)
	if err != nil {
		return nil, false
	}
	s, err := decodeSeries(raw)
	if err != nil {
		log.Debugf("series cache %s contains invalid data", key)
		if err = c.data.Remove(key); err != nil {
			log.Debugf("error deleting cache %s: %v", key, err)
		}
		return nil, false
	}
	return s, true
}

func (c *localSeriesCache) Store(ctx context.Context, key string, s stockval.ClosePriceSeries) {
	raw, err := encodeSeries(s)
	if err != nil {
		log.Debugf("error encoding series %s: %v", key, err)
		return
	}
	c.writeLock.Lock()
	defer c.writeLock.Unlock()
	if err = c.data.WriteFile(key, raw); err != nil {
		log.Debugf("error writing cache %s: %v", key, err)
	}
}
