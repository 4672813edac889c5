// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) Lothar May

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"financebuddy/stockval"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

const DefaultEnvFile = ".env"

// Environment variables holding vendor credentials.
var brokerKeyEnv = map[stockval.BrokerId][]string{
	"alpaca":       {"APCA_API_KEY_ID", "APCA_API_KEY"},
	"polygon":      {"POLYGON_API_KEY"},
	"finnhub":      {"FINNHUB_API_KEY"},
	"alphavantage": {"ALPHAVANTAGE_KEY"},
	"twelvedata":   {"TWELVEDATA_KEY"},
	"openfigi":     {"OPENFIGI_API_KEY"},
}

var brokerSecretEnv = map[stockval.BrokerId][]string{
	"alpaca": {"APCA_API_SECRET_KEY", "APCA_API_SECRET"},
}

var brokerUrlEnv = map[stockval.BrokerId]string{
	"alpaca": "APCA_API_BASE_URL",
}

// LoadEnvironmentFiles loads .env files into the process environment.
// Missing files are fine, variables which are already set are not overwritten.
func LoadEnvironmentFiles(files ...string) error {
	if len(files) == 0 {
		files = []string{DefaultEnvFile}
	}
	for _, f := range files {
		err := godotenv.Load(f)
		if errors.Is(err, fs.ErrNotExist) {
			log.Debugf("environment file %s does not exist", f)
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return nil
}

// ApplyEnvironment overlays credentials and settings from the environment.
func (a *AppConfig) ApplyEnvironment(getenv func(string) string) error {
	if getenv == nil {
		getenv = os.Getenv
	}
	for id, names := range brokerKeyEnv {
		if v := firstEnv(getenv, names); v != "" {
			c := a.BrokerConfig[id]
			c.ApiKey = v
			a.BrokerConfig[id] = c
		}
	}
	for id, names := range brokerSecretEnv {
		if v := firstEnv(getenv, names); v != "" {
			c := a.BrokerConfig[id]
			c.ApiSecret = v
			a.BrokerConfig[id] = c
		}
	}
	for id, name := range brokerUrlEnv {
		if v := strings.TrimRight(getenv(name), "/"); v != "" {
			c := a.BrokerConfig[id]
			c.DataUrl = v
			a.BrokerConfig[id] = c
		}
	}
	if v := getenv("APCA_DATA_FEED"); v != "" {
		c := a.BrokerConfig["alpaca"]
		c.Feed = v
		a.BrokerConfig["alpaca"] = c
	}
	if v := getenv("RISK_FREE_RATE"); v != "" {
		r, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return fmt.Errorf("%w: invalid RISK_FREE_RATE %q", stockval.ErrConfiguration, v)
		}
		a.Pricing.SetRiskFreeRate(r)
	}
	if v := getenv("REDIS_URL"); v != "" {
		a.Cache.RedisUrl = v
		a.Cache.Backend = "redis"
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		a.LogLevel = v
	}
	return nil
}

func firstEnv(getenv func(string) string, names []string) string {
	for _, n := range names {
		if v := strings.TrimSpace(getenv(n)); v != "" {
			return v
		}
	}
	return ""
}
