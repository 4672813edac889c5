// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) Lothar May

package initapp

import (
	"fmt"
	"os"
	"strings"
	"time"

	"financebuddy/brokers/openfigi"
	"financebuddy/cache"
	"financebuddy/config"
	"financebuddy/marketdata"
	"financebuddy/stockapi"
	"financebuddy/valuation"

	log "github.com/sirupsen/logrus"
)

const (
	CacheBackendLocal = "local"
	CacheBackendRedis = "redis"
	CacheBackendNone  = "none"
)

// InitApp reads configuration and environment once at process start and builds the valuation service.
type InitApp struct {
	config   config.Config
	envFiles []string
	getenv   func(string) string
}

func NewInitApp(c config.Config, envFiles ...string) *InitApp {
	return &InitApp{
		config:   c,
		envFiles: envFiles,
		getenv:   os.Getenv,
	}
}

func (a *InitApp) Config() config.Config {
	return a.config
}

// Initialize loads .env files and overlays the environment. Credentials never reach the configuration file.
func (a *InitApp) Initialize() error {
	err := config.LoadEnvironmentFiles(a.envFiles...)
	if err != nil {
		return err
	}
	c, err := config.WithEnvironment(a.config, a.getenv)
	if err != nil {
		return err
	}
	a.config = c
	appConfig, err := c.Copy(false)
	if err != nil {
		return err
	}
	ConfigureLogging(appConfig.LogLevel)
	return nil
}

func ConfigureLogging(level string) {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	l, err := log.ParseLevel(level)
	if err != nil {
		log.SetLevel(log.InfoLevel)
		return
	}
	log.SetLevel(l)
}

// NewSeriesCache returns nil if caching is disabled or the backend is unusable.
func NewSeriesCache(c config.CacheConfig) cache.SeriesCache {
	ttl := time.Duration(c.SeriesTtlMinutes) * time.Minute
	switch strings.ToLower(c.Backend) {
	case CacheBackendNone:
		return nil
	case CacheBackendRedis:
		seriesCache, err := cache.NewRedisSeriesCache(c.RedisUrl, ttl)
		if err != nil {
			log.Warnf("series cache disabled: %v", err)
			return nil
		}
		return seriesCache
	case "", CacheBackendLocal:
		seriesCache, err := cache.NewLocalSeriesCache("series", ttl)
		if err != nil {
			log.Warnf("series cache disabled: %v", err)
			return nil
		}
		return seriesCache
	default:
		log.Warnf("unknown cache backend %q, series cache disabled", c.Backend)
		return nil
	}
}

func (a *InitApp) newResolver() stockapi.SymbolResolver {
	if !openfigi.IsValidConfig(a.config) {
		return nil
	}
	resolver, err := openfigi.NewResolver(a.config)
	if err != nil {
		log.Infof("ISIN resolution disabled: %v", err)
		return nil
	}
	return resolver
}

func (a *InitApp) NewSource() (*marketdata.CombinedSource, error) {
	appConfig, err := a.config.Copy(false)
	if err != nil {
		return nil, err
	}
	source, err := marketdata.NewSource(a.config, NewSeriesCache(appConfig.Cache), a.newResolver())
	if err != nil {
		return nil, err
	}
	log.Debugf("market data providers: %v", source.ProviderIds())
	return source, nil
}

func (a *InitApp) NewService() (*valuation.Service, error) {
	source, err := a.NewSource()
	if err != nil {
		return nil, fmt.Errorf("market data: %w", err)
	}
	appConfig, err := a.config.Copy(false)
	if err != nil {
		return nil, err
	}
	return valuation.NewService(source, appConfig.Pricing), nil
}
