// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) Lothar May

package marketdata

import (
	"financebuddy/brokers/alpaca"
	"financebuddy/brokers/alphavantage"
	"financebuddy/brokers/finnhub"
	"financebuddy/brokers/polygon"
	"financebuddy/brokers/twelvedata"
	"financebuddy/brokers/yahoo"
	"financebuddy/cache"
	"financebuddy/config"
	"financebuddy/stockapi"
	"financebuddy/stockval"

	log "github.com/sirupsen/logrus"
)

type ProviderFactory func(c config.Config) (stockapi.QuoteProvider, error)

var providerFactories = map[stockval.BrokerId]ProviderFactory{
	alpaca.GetBrokerId():       alpaca.NewProvider,
	polygon.GetBrokerId():      polygon.NewProvider,
	finnhub.GetBrokerId():      finnhub.NewProvider,
	alphavantage.GetBrokerId(): alphavantage.NewProvider,
	twelvedata.GetBrokerId():   twelvedata.NewProvider,
	yahoo.GetBrokerId():        yahoo.NewProvider,
}

// BuildProviders constructs the providers in configured priority order.
// Providers which cannot be constructed, e.g. because of missing credentials, are skipped.
// Daily close series are cached if seriesCache is not nil.
func BuildProviders(c config.Config, seriesCache cache.SeriesCache) ([]stockapi.QuoteProvider, error) {
	appConfig, err := c.Copy(false)
	if err != nil {
		return nil, err
	}
	var providers []stockapi.QuoteProvider
	for _, id := range appConfig.ProviderOrder {
		factory, ok := providerFactories[id]
		if !ok {
			log.Warnf("unknown market data provider %q in configuration", id)
			continue
		}
		p, err := factory(c)
		if err != nil {
			log.Infof("skipping market data provider %s: %v", id, err)
			continue
		}
		if seriesCache != nil {
			p = NewCachedProvider(p, seriesCache)
		}
		providers = append(providers, p)
	}
	return providers, nil
}

// NewSource builds the configured providers and combines them.
func NewSource(c config.Config, seriesCache cache.SeriesCache, resolver stockapi.SymbolResolver) (*CombinedSource, error) {
	providers, err := BuildProviders(c, seriesCache)
	if err != nil {
		return nil, err
	}
	source, err := NewCombinedSource(providers...)
	if err != nil {
		return nil, err
	}
	if resolver != nil {
		source = source.WithResolver(resolver)
	}
	return source, nil
}
