// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) Lothar May

package valuation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"financebuddy/baw"
	"financebuddy/calendar"
	"financebuddy/config"
	"financebuddy/greeks"
	"financebuddy/impliedvol"
	"financebuddy/inputs"
	"financebuddy/stockval"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const batchConcurrency = 4

// MarketSource is implemented by marketdata.CombinedSource.
type MarketSource interface {
	inputs.SpotSource
	inputs.CloseSource
	inputs.DividendSource
	inputs.CryptoSpotSource
	inputs.CryptoCloseSource
}

type Service struct {
	source   MarketSource
	pricing  config.PricingConfig
	solver   inputs.ImpliedVolSolver
	calendar calendar.BankCalendar
	american baw.Solver
	now      func() time.Time
}

func NewService(source MarketSource, pricing config.PricingConfig) *Service {
	return &Service{
		source:   source,
		pricing:  pricing,
		solver:   impliedvol.NewBrentSolver(),
		calendar: calendar.NewUSBankCalendar(),
		american: baw.NewSolver(pricing.BawMaxIterations, pricing.BawTolerance),
		now:      time.Now,
	}
}

func newRequestLogger(operation string, symbol string) *log.Entry {
	return log.WithFields(log.Fields{
		"request_id": uuid.New().String(),
		"operation":  operation,
		"symbol":     symbol,
	})
}

func (s *Service) PriceAndGreeks(ctx context.Context, req Request) (EuropeanResponse, error) {
	logger := newRequestLogger("price", req.Symbol)
	in, err := s.buildInputs(ctx, req)
	if err != nil {
		logger.Debugf("failed to build inputs: %v", err)
		return EuropeanResponse{}, err
	}
	res, err := greeks.Compute(in.S, in.K, in.R, in.Q, in.Sigma, in.T, in.Side)
	if err != nil {
		logger.Debugf("closed form failed: %v", err)
		return EuropeanResponse{}, err
	}
	logger.Debugf("S=%v K=%v r=%v q=%v sigma=%v T=%v fair value %v", in.S, in.K, in.R, in.Q, in.Sigma, in.T, res.FairValue)
	return EuropeanResponse{Inputs: in, PriceAndGreeks: res}, nil
}

func (s *Service) AmericanPrice(ctx context.Context, req Request) (AmericanResponse, error) {
	logger := newRequestLogger("american", req.Symbol)
	in, err := s.buildInputs(ctx, req)
	if err != nil {
		logger.Debugf("failed to build inputs: %v", err)
		return AmericanResponse{}, err
	}
	res, err := s.american.Compute(in.S, in.K, in.R, in.Q, in.Sigma, in.T, in.Side)
	if err != nil {
		logger.Debugf("american solver failed: %v", err)
		return AmericanResponse{}, err
	}
	if !res.Converged {
		logger.Warnf("exercise boundary did not converge after %d iterations", res.Iterations)
	}
	logger.Debugf("american %v european %v critical %v", res.AmericanPrice, res.EuropeanPrice, res.CriticalPrice)
	return AmericanResponse{Inputs: in, AmericanResult: res}, nil
}

// BatchSpot resolves spot prices concurrently. Failures are reported per symbol,
// an error is only returned if every symbol failed.
func (s *Service) BatchSpot(ctx context.Context, symbols []string) (map[string]SpotResult, error) {
	var unique []string
	seen := make(map[string]bool)
	for _, raw := range symbols {
		sym := stockval.NormalizeSymbol(raw)
		if sym == "" || seen[sym] {
			continue
		}
		seen[sym] = true
		unique = append(unique, sym)
	}

	prices := make([]float64, len(unique))
	errs := make([]error, len(unique))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(batchConcurrency)
	for i, sym := range unique {
		i, sym := i, sym
		g.Go(func() error {
			prices[i], errs[i] = s.source.GetSpot(gctx, sym)
			return nil
		})
	}
	_ = g.Wait()

	results := make(map[string]SpotResult, len(unique))
	var lastErr error
	for i, sym := range unique {
		if errs[i] != nil {
			lastErr = errs[i]
			msg := errs[i].Error()
			results[sym] = SpotResult{Error: &msg}
			continue
		}
		price := prices[i]
		results[sym] = SpotResult{Price: &price}
	}
	for _, r := range results {
		if r.Price != nil {
			return results, nil
		}
	}
	if lastErr != nil {
		return results, fmt.Errorf("no spot price for any of %d symbols: %w", len(unique), lastErr)
	}
	return results, nil
}

func (s *Service) buildInputs(ctx context.Context, req Request) (PricingInputs, error) {
	a, symbol, err := s.newAssembler(req)
	if err != nil {
		return PricingInputs{}, err
	}
	return a.Build(ctx, BuildParams{
		Symbol:            symbol,
		Side:              req.Side,
		Strike:            req.Strike,
		Expiry:            req.Expiry,
		AsOf:              req.AsOf,
		MarketOptionPrice: req.MarketOptionPrice,
	})
}

// newAssembler selects the calculators for a request and returns the normalized symbol.
func (s *Service) newAssembler(req Request) (Assembler, string, error) {
	if s.source == nil {
		return Assembler{}, "", fmt.Errorf("%w: no market data source", stockval.ErrConfiguration)
	}
	a := Assembler{
		Rate: inputs.NewRiskFreeRateCalculator(s.pricing.GetRiskFreeRate()),
		now:  s.now,
	}

	var symbol string
	var history inputs.VolatilityInput
	switch req.AssetClass {
	case stockval.AssetClassCrypto:
		pair, err := stockval.NormalizeCryptoPair(req.Symbol)
		if err != nil {
			return Assembler{}, "", err
		}
		symbol = pair
		a.Spot = inputs.NewCryptoSpotCalculator(s.source)
		a.Dividend = inputs.NewConstantDividendYieldCalculator(0)
		history = inputs.NewCryptoVolatilityCalculator(s.source, s.pricing.CryptoVolatility)
	default:
		symbol = stockval.NormalizeSymbol(req.Symbol)
		if symbol == "" {
			return Assembler{}, "", fmt.Errorf("%w: symbol is required", stockval.ErrDomain)
		}
		a.Spot = inputs.NewSpotCalculator(s.source)
		a.Dividend = inputs.NewFundamentalsDividendYieldCalculator(s.source, s.pricing.DefaultDividendYield)
		history = inputs.NewHistoricalVolatilityCalculator(s.source, s.pricing.EquityVolatility)
	}

	mode, err := ParseVolMode(string(req.VolMode))
	if err != nil {
		return Assembler{}, "", err
	}
	switch {
	case req.ConstantVol != nil:
		c, err := inputs.NewConstantVolatilityCalculator(*req.ConstantVol)
		if err != nil {
			return Assembler{}, "", err
		}
		a.Volatility = c
	case mode == VolImplied:
		a.Implied = inputs.NewImpliedVolatilityCalculator(s.solver, s.pricing.ImpliedVol)
	case mode == VolConstant:
		return Assembler{}, "", fmt.Errorf("%w: constant vol mode requires a volatility", stockval.ErrConfiguration)
	default:
		a.Volatility = history
	}

	dayCount := req.DayCount
	if strings.TrimSpace(dayCount) == "" {
		dayCount = s.pricing.DayCount
	}
	counter, err := calendar.ParseDayCounter(dayCount, s.calendar)
	if err != nil {
		return Assembler{}, "", err
	}
	a.YearFraction = inputs.NewYearFractionCalculator(counter)
	return a, symbol, nil
}

