// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) Lothar May

package config

import (
	"financebuddy/stockval"

	"github.com/barkimedes/go-deepcopy"
)

type AppConfig struct {
	LogLevel     string `yaml:",omitempty"`
	BrokerConfig map[stockval.BrokerId]BrokerConfig
	// Fallback order of the market data providers, first entry is asked first.
	ProviderOrder []stockval.BrokerId `yaml:",omitempty"`
	Pricing       PricingConfig
	Cache         CacheConfig
}

type BrokerConfig struct {
	DataUrl      string `yaml:",omitempty"`
	ApiKey       string `yaml:",omitempty"`
	ApiSecret    string `yaml:",omitempty"`
	UseApiSecret bool   `yaml:",omitempty"`
	OptionalKey  bool   `yaml:",omitempty"`
	Disabled     bool   `yaml:",omitempty"`
	// Vendor specific data feed, e.g. "iex" or "sip" for alpaca.
	Feed           string `yaml:",omitempty"`
	CryptoLocation string `yaml:",omitempty"`
	// Client side limit, 0 means the limit is taken from response headers.
	RateLimitPerSecond int `yaml:",omitempty"`
	// Some vendors do not always reply, so use a timeout.
	DataTimeoutSeconds int `yaml:",omitempty"`
}

type VolatilityConfig struct {
	LookbackDays      int
	AnnualizationDays int
	Floor             float64
	Cap               float64
	MinReturns        int
	Fallback          float64
}

type ImpliedVolConfig struct {
	InitialGuess float64
	Tolerance    float64
	LowerBound   float64
	UpperBound   float64
}

type PricingConfig struct {
	// Annualized continuously compounded rate, overridden by RISK_FREE_RATE.
	// Nil means unset, zero is a valid rate.
	RiskFreeRate *float64 `yaml:",omitempty"`
	// Used if no provider knows the dividend yield.
	DefaultDividendYield float64 `yaml:",omitempty"`
	EquityVolatility     VolatilityConfig
	CryptoVolatility     VolatilityConfig
	ImpliedVol           ImpliedVolConfig
	BawMaxIterations     int
	BawTolerance         float64
	// simple, act365f or trading252
	DayCount string `yaml:",omitempty"`
}

type CacheConfig struct {
	// local, redis or none
	Backend          string `yaml:",omitempty"`
	RedisUrl         string `yaml:",omitempty"`
	SeriesTtlMinutes int    `yaml:",omitempty"`
}

const DefaultRiskFreeRate = 0.045

var defaultBrokerConfig = NewBrokerConfigMap()
var defaultPricingConfig = NewPricingConfig()

func NewAppConfig() AppConfig {
	return AppConfig{
		LogLevel:      "info",
		BrokerConfig:  NewBrokerConfigMap(),
		ProviderOrder: NewProviderOrder(),
		Pricing:       NewPricingConfig(),
		Cache:         NewCacheConfig(),
	}
}

// Priority of the market data providers, yahoo needs no credentials and is last resort.
func NewProviderOrder() []stockval.BrokerId {
	return []stockval.BrokerId{"alpaca", "polygon", "finnhub", "alphavantage", "twelvedata", "yahoo"}
}

func NewBrokerConfigMap() map[stockval.BrokerId]BrokerConfig {
	return map[stockval.BrokerId]BrokerConfig{
		"alpaca": {
			DataUrl:            "https://data.alpaca.markets",
			UseApiSecret:       true,
			Feed:               "iex",
			CryptoLocation:     "us",
			DataTimeoutSeconds: 10,
		},
		"polygon": {
			DataUrl:            "https://api.polygon.io",
			DataTimeoutSeconds: 10,
		},
		"finnhub": {
			DataUrl:            "https://finnhub.io/api/v1",
			RateLimitPerSecond: 30,
			DataTimeoutSeconds: 10,
		},
		"alphavantage": {
			DataUrl:            "https://www.alphavantage.co",
			DataTimeoutSeconds: 10,
		},
		"twelvedata": {
			DataUrl:            "https://api.twelvedata.com",
			DataTimeoutSeconds: 10,
		},
		"yahoo": {
			DataUrl:            "https://query1.finance.yahoo.com",
			OptionalKey:        true,
			DataTimeoutSeconds: 10,
		},
		"openfigi": {
			DataUrl:            "https://api.openfigi.com/v3",
			OptionalKey:        true,
			DataTimeoutSeconds: 10,
		},
	}
}

func NewPricingConfig() PricingConfig {
	rate := DefaultRiskFreeRate
	return PricingConfig{
		RiskFreeRate: &rate,
		EquityVolatility: VolatilityConfig{
			LookbackDays:      252,
			AnnualizationDays: 252,
			Floor:             0.01,
			Cap:               5.0,
			MinReturns:        10,
			Fallback:          0.20,
		},
		CryptoVolatility: VolatilityConfig{
			LookbackDays:      90,
			AnnualizationDays: 365,
			Floor:             0.10,
			Cap:               3.0,
			MinReturns:        10,
			Fallback:          0.50,
		},
		ImpliedVol: ImpliedVolConfig{
			InitialGuess: 0.20,
			Tolerance:    1e-6,
			LowerBound:   1e-6,
			UpperBound:   4.0,
		},
		BawMaxIterations: 100,
		BawTolerance:     1e-6,
		DayCount:         "simple",
	}
}

func NewCacheConfig() CacheConfig {
	return CacheConfig{
		Backend:          "local",
		SeriesTtlMinutes: 60,
	}
}

func (a *AppConfig) deepCopy() AppConfig {
	c, err := deepcopy.Anything(a)
	if err != nil {
		panic(err)
	}
	return *c.(*AppConfig)
}

func (a *AppConfig) Sanitize() {
	if a.BrokerConfig == nil {
		a.BrokerConfig = make(map[stockval.BrokerId]BrokerConfig)
	}
	// Brokers which were added after the configuration file was written.
	for key, def := range defaultBrokerConfig {
		if _, exists := a.BrokerConfig[key]; !exists {
			a.BrokerConfig[key] = def
		}
	}
	if len(a.ProviderOrder) == 0 {
		a.ProviderOrder = NewProviderOrder()
	}
	a.Pricing.sanitize()
	if a.Cache.Backend == "" {
		a.Cache.Backend = "local"
	}
	if a.Cache.SeriesTtlMinutes <= 0 {
		a.Cache.SeriesTtlMinutes = 60
	}
	a.RestoreDefaults()
}

func (p *PricingConfig) sanitize() {
	if p.RiskFreeRate == nil {
		p.SetRiskFreeRate(DefaultRiskFreeRate)
	}
	p.EquityVolatility.sanitize(defaultPricingConfig.EquityVolatility)
	p.CryptoVolatility.sanitize(defaultPricingConfig.CryptoVolatility)
	if p.ImpliedVol.InitialGuess <= 0 {
		p.ImpliedVol.InitialGuess = defaultPricingConfig.ImpliedVol.InitialGuess
	}
	if p.ImpliedVol.Tolerance <= 0 {
		p.ImpliedVol.Tolerance = defaultPricingConfig.ImpliedVol.Tolerance
	}
	if p.ImpliedVol.LowerBound <= 0 {
		p.ImpliedVol.LowerBound = defaultPricingConfig.ImpliedVol.LowerBound
	}
	if p.ImpliedVol.UpperBound <= p.ImpliedVol.LowerBound {
		p.ImpliedVol.UpperBound = defaultPricingConfig.ImpliedVol.UpperBound
	}
	if p.BawMaxIterations <= 0 {
		p.BawMaxIterations = defaultPricingConfig.BawMaxIterations
	}
	if p.BawTolerance <= 0 {
		p.BawTolerance = defaultPricingConfig.BawTolerance
	}
	if p.DayCount == "" {
		p.DayCount = defaultPricingConfig.DayCount
	}
}

func (p *PricingConfig) SetRiskFreeRate(r float64) {
	p.RiskFreeRate = &r
}

// GetRiskFreeRate returns the configured rate, or the default if none is set.
func (p PricingConfig) GetRiskFreeRate() float64 {
	if p.RiskFreeRate == nil {
		return DefaultRiskFreeRate
	}
	return *p.RiskFreeRate
}

func (v *VolatilityConfig) sanitize(def VolatilityConfig) {
	if v.LookbackDays <= 0 {
		v.LookbackDays = def.LookbackDays
	}
	if v.AnnualizationDays <= 0 {
		v.AnnualizationDays = def.AnnualizationDays
	}
	if v.Floor <= 0 {
		v.Floor = def.Floor
	}
	if v.Cap < v.Floor {
		v.Cap = def.Cap
	}
	if v.MinReturns <= 0 {
		v.MinReturns = def.MinReturns
	}
	if v.Fallback <= 0 {
		v.Fallback = def.Fallback
	}
}

// We do not want to store certain default values in the configuration file,
// in order to avoid having to patch them.
func (a *AppConfig) RemoveDefaults() {
	for key, c := range a.BrokerConfig {
		def := defaultBrokerConfig[key]
		if c.DataUrl == def.DataUrl {
			c.DataUrl = ""
		}
		if c.Feed == def.Feed {
			c.Feed = ""
		}
		if c.CryptoLocation == def.CryptoLocation {
			c.CryptoLocation = ""
		}
		a.BrokerConfig[key] = c
	}
}

// Restore certain default values which are not stored in the configuration file.
func (a *AppConfig) RestoreDefaults() {
	for key, c := range a.BrokerConfig {
		def := defaultBrokerConfig[key]
		if len(c.DataUrl) == 0 {
			c.DataUrl = def.DataUrl
		}
		if len(c.Feed) == 0 {
			c.Feed = def.Feed
		}
		if len(c.CryptoLocation) == 0 {
			c.CryptoLocation = def.CryptoLocation
		}
		if c.DataTimeoutSeconds <= 0 {
			c.DataTimeoutSeconds = max(def.DataTimeoutSeconds, 10)
		}
		if c.RateLimitPerSecond == 0 {
			c.RateLimitPerSecond = def.RateLimitPerSecond
		}
		// Vendor properties, not user settings.
		c.UseApiSecret = c.UseApiSecret || def.UseApiSecret
		c.OptionalKey = c.OptionalKey || def.OptionalKey
		a.BrokerConfig[key] = c
	}
}
