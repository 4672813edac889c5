// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) Lothar May

package openfigi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"financebuddy/config"
	"financebuddy/stockapi"
	"financebuddy/stockval"
	"financebuddy/webclient"

	log "github.com/sirupsen/logrus"
	"github.com/zhangyunhao116/skipmap"
)

// openFigiResolver maps ISINs to exchange tickers, market data vendors only know tickers.
type openFigiResolver struct {
	mappingRateLimiter *webclient.RateLimiter
	apiClient          *http.Client
	isinTickerCache    *skipmap.StringMap[string]
	config             config.BrokerConfig
}

type mappingFilters struct {
	ExchangeCode string `json:"exchCode,omitempty"`
	MarketSector string `json:"marketSecDes,omitempty"`
	SecurityType string `json:"securityType,omitempty"`
}

type mappingRequest struct {
	IdType  string `json:"idType"`
	IdValue string `json:"idValue"`
	mappingFilters
}

type FigiData struct {
	Figi          string `json:"figi"`
	Name          string `json:"name"`
	Ticker        string `json:"ticker"`
	ExchangeCode  string `json:"exchCode"`
	CompositeFigi string `json:"compositeFIGI"`
	SecurityType  string `json:"securityType"`
	MarketSector  string `json:"marketSector"`
}

type mappingResult struct {
	Data    []FigiData `json:"data"`
	Error   string     `json:"error,omitempty"`
	Warning string     `json:"warning,omitempty"`
}

type mappingResponse []mappingResult

func GetBrokerId() stockval.BrokerId {
	return "openfigi"
}

func newResolver() *openFigiResolver {
	return &openFigiResolver{
		mappingRateLimiter: webclient.NewRateLimiter(),
		apiClient:          &http.Client{},
		isinTickerCache:    skipmap.NewString[string](),
	}
}

// NewResolver works without api key, which only reduces the rate limit.
func NewResolver(c config.Config) (stockapi.SymbolResolver, error) {
	if !IsValidConfig(c) {
		return nil, fmt.Errorf("%w: openfigi is disabled", stockval.ErrConfiguration)
	}
	r := newResolver()
	if err := r.ReadConfig(c); err != nil {
		return nil, err
	}
	return r, nil
}

func (rq *openFigiResolver) RemainingApiLimit() int {
	return rq.mappingRateLimiter.Remaining()
}

func (rq *openFigiResolver) ReadConfig(c config.Config) error {
	appConfig, err := c.Copy(false)
	if err != nil {
		return err
	}
	rq.config = appConfig.BrokerConfig[GetBrokerId()]
	rq.apiClient.Timeout = time.Second * time.Duration(rq.config.DataTimeoutSeconds)
	return nil
}

// ResolveSymbol returns the ticker for an ISIN. Other identifiers are returned as normalized symbol.
func (rq *openFigiResolver) ResolveSymbol(ctx context.Context, id string) (string, error) {
	sym := stockval.NormalizeSymbol(id)
	if !stockval.IsinRegex.MatchString(sym) {
		return sym, nil
	}
	if ticker, ok := rq.isinTickerCache.Load(sym); ok {
		return ticker, nil
	}
	figiData, err := rq.executeMappingQuery(ctx, mappingRequest{
		IdType:  "ID_ISIN",
		IdValue: sym,
		mappingFilters: mappingFilters{
			ExchangeCode: stockval.DefaultEquityExchange,
			MarketSector: "Equity",
		},
	})
	if err != nil {
		return "", err
	}
	for _, d := range figiData {
		if d.Ticker != "" {
			log.Debugf("openfigi: resolved %s to %s (%s)", sym, d.Ticker, d.Name)
			rq.isinTickerCache.Store(sym, d.Ticker)
			return d.Ticker, nil
		}
	}
	return "", fmt.Errorf("%w: openFIGI has no ticker for %s", stockval.ErrNoData, sym)
}

func (rq *openFigiResolver) executeMappingQuery(ctx context.Context, mappingReq mappingRequest) ([]FigiData, error) {
	mappingJson, err := json.Marshal([1]mappingRequest{mappingReq})
	if err != nil {
		return nil, err
	}
	var responseData mappingResponse
	err = webclient.FetchJson(ctx, rq.apiClient, rq.mappingRateLimiter, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, rq.config.DataUrl+"/mapping", bytes.NewReader(mappingJson))
		if err != nil {
			return nil, err
		}
		if token := rq.config.ApiKey; token != "" {
			req.Header.Add("X-OPENFIGI-APIKEY", token)
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	}, &responseData)
	if err != nil {
		return nil, err
	}
	if len(responseData) != 1 {
		return nil, errors.New("openFIGI invalid or missing mapping response")
	}
	if responseData[0].Error != "" {
		return nil, fmt.Errorf("%w: openFIGI error: %s", stockval.ErrNoData, responseData[0].Error)
	}
	if responseData[0].Warning != "" {
		return nil, fmt.Errorf("%w: openFIGI warning: %s", stockval.ErrNoData, responseData[0].Warning)
	}
	return responseData[0].Data, nil
}

func IsValidConfig(c config.Config) bool {
	appConfig, err := c.Copy(false)
	if err != nil {
		return false
	}
	openFigiConfig := appConfig.BrokerConfig[GetBrokerId()]
	return !openFigiConfig.Disabled && len(openFigiConfig.DataUrl) > 0
}
