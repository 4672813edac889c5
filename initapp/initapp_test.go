// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) Lothar May

package initapp

import (
	"os"
	"path/filepath"
	"testing"

	"financebuddy/config"
	"financebuddy/stockval"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestApp(t *testing.T, env map[string]string) *InitApp {
	c := config.NewTestConfig()
	appConfig, _ := c.Lock()
	appConfig.Cache.Backend = CacheBackendNone
	_ = c.Unlock(appConfig, true)

	a := NewInitApp(c, filepath.Join(t.TempDir(), ".env"))
	a.getenv = func(name string) string { return env[name] }
	return a
}

func TestInitializeAppliesEnvironment(t *testing.T) {
	a := newTestApp(t, map[string]string{
		"FINNHUB_API_KEY": "fh",
		"RISK_FREE_RATE":  "0.05",
		"LOG_LEVEL":       "debug",
	})
	require.NoError(t, a.Initialize())
	defer log.SetLevel(log.InfoLevel)
	assert.Equal(t, log.DebugLevel, log.GetLevel())

	appConfig, err := a.Config().Copy(false)
	require.NoError(t, err)
	assert.Equal(t, "fh", appConfig.BrokerConfig["finnhub"].ApiKey)
	assert.Equal(t, 0.05, appConfig.Pricing.GetRiskFreeRate())

	source, err := a.NewSource()
	require.NoError(t, err)
	assert.Equal(t, []stockval.BrokerId{"finnhub", "yahoo"}, source.ProviderIds())

	service, err := a.NewService()
	require.NoError(t, err)
	assert.NotNil(t, service)
}

func TestInitializeInvalidRate(t *testing.T) {
	a := newTestApp(t, map[string]string{"RISK_FREE_RATE": "five"})
	assert.ErrorIs(t, a.Initialize(), stockval.ErrConfiguration)
}

func TestInitializeLoadsEnvFile(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("FINANCEBUDDY_TEST_VALUE=from-file\n"), 0600))
	t.Cleanup(func() { _ = os.Unsetenv("FINANCEBUDDY_TEST_VALUE") })

	a := NewInitApp(config.NewTestConfig(), envFile)
	require.NoError(t, a.Initialize())
	assert.Equal(t, "from-file", os.Getenv("FINANCEBUDDY_TEST_VALUE"))
}

func TestNoProviders(t *testing.T) {
	a := newTestApp(t, nil)
	appConfig, _ := a.config.Lock()
	yahoo := appConfig.BrokerConfig["yahoo"]
	yahoo.Disabled = true
	appConfig.BrokerConfig["yahoo"] = yahoo
	_ = a.config.Unlock(appConfig, true)
	require.NoError(t, a.Initialize())

	_, err := a.NewService()
	assert.ErrorIs(t, err, stockval.ErrConfiguration)
}

func TestNewSeriesCache(t *testing.T) {
	assert.Nil(t, NewSeriesCache(config.CacheConfig{Backend: CacheBackendNone}))
	assert.Nil(t, NewSeriesCache(config.CacheConfig{Backend: CacheBackendRedis, RedisUrl: "not a url"}))
	assert.Nil(t, NewSeriesCache(config.CacheConfig{Backend: "memcached"}))
	assert.NotNil(t, NewSeriesCache(config.CacheConfig{Backend: CacheBackendRedis, RedisUrl: "redis://localhost:6379/0", SeriesTtlMinutes: 5}))
}

func TestConfigureLogging(t *testing.T) {
	defer log.SetLevel(log.InfoLevel)
	ConfigureLogging("warn")
	assert.Equal(t, log.WarnLevel, log.GetLevel())
	ConfigureLogging("chatty")
	assert.Equal(t, log.InfoLevel, log.GetLevel())
}
