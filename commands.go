// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) Lothar May

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"time"

	"financebuddy/stockval"
	"financebuddy/valuation"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

const requestTimeout = 60 * time.Second

type serviceFactory func() (*valuation.Service, error)

func newRootCommand(newService serviceFactory) *cobra.Command {
	root := &cobra.Command{
		Use:          "financebuddy",
		Short:        "Value equity and crypto options with Black-Scholes and Barone-Adesi-Whaley",
		SilenceUsage: true,
	}
	root.PersistentFlags().Bool("json", false, "print JSON instead of a table")
	root.AddCommand(
		newPriceCommand(newService),
		newAmericanCommand(newService),
		newSpotCommand(newService),
	)
	return root
}

func addRequestFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("symbol", "", "ticker, ISIN or crypto pair")
	f.String("side", "CALL", "CALL or PUT")
	f.Float64("strike", 0, "strike price")
	f.String("expiry", "", "expiry date, YYYY-MM-DD")
	f.String("as-of", "", "valuation date, YYYY-MM-DD (default today)")
	f.String("vol-mode", "HIST", "HIST, IV or CONST")
	f.Float64("constant-vol", 0, "constant volatility, overrides vol-mode")
	f.Float64("market-price", 0, "quoted option price for implied volatility")
	f.String("asset-class", "equity", "equity or crypto")
	f.String("day-count", "", "simple, act365f or trading252")
	_ = cmd.MarkFlagRequired("symbol")
	_ = cmd.MarkFlagRequired("strike")
	_ = cmd.MarkFlagRequired("expiry")
}

func requestFromFlags(cmd *cobra.Command) (valuation.Request, error) {
	f := cmd.Flags()
	var req valuation.Request
	var err error
	if req.Symbol, err = f.GetString("symbol"); err != nil {
		return req, err
	}
	if req.Side, err = f.GetString("side"); err != nil {
		return req, err
	}
	if req.Strike, err = f.GetFloat64("strike"); err != nil {
		return req, err
	}
	expiry, err := f.GetString("expiry")
	if err != nil {
		return req, err
	}
	if req.Expiry, err = valuation.ParseDate(expiry); err != nil {
		return req, err
	}
	asOf, err := f.GetString("as-of")
	if err != nil {
		return req, err
	}
	if asOf != "" {
		if req.AsOf, err = valuation.ParseDate(asOf); err != nil {
			return req, err
		}
	}
	volMode, err := f.GetString("vol-mode")
	if err != nil {
		return req, err
	}
	if req.VolMode, err = valuation.ParseVolMode(volMode); err != nil {
		return req, err
	}
	if f.Changed("constant-vol") {
		v, err := f.GetFloat64("constant-vol")
		if err != nil {
			return req, err
		}
		req.ConstantVol = &v
	}
	if f.Changed("market-price") {
		v, err := f.GetFloat64("market-price")
		if err != nil {
			return req, err
		}
		req.MarketOptionPrice = &v
	}
	assetClass, err := f.GetString("asset-class")
	if err != nil {
		return req, err
	}
	if req.AssetClass, err = stockval.ParseAssetClass(assetClass); err != nil {
		return req, err
	}
	req.DayCount, err = f.GetString("day-count")
	return req, err
}

func newPriceCommand(newService serviceFactory) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "price",
		Short: "European fair value and greeks",
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := requestFromFlags(cmd)
			if err != nil {
				return err
			}
			service, err := newService()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
			defer cancel()
			res, err := service.PriceAndGreeks(ctx, req)
			if err != nil {
				return err
			}
			if asJson(cmd) {
				return writeJson(cmd.OutOrStdout(), res)
			}
			renderEuropean(cmd.OutOrStdout(), res)
			return nil
		},
	}
	addRequestFlags(cmd)
	return cmd
}

func newAmericanCommand(newService serviceFactory) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "american",
		Short: "American option value with early exercise premium",
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := requestFromFlags(cmd)
			if err != nil {
				return err
			}
			service, err := newService()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
			defer cancel()
			res, err := service.AmericanPrice(ctx, req)
			if err != nil {
				return err
			}
			if asJson(cmd) {
				return writeJson(cmd.OutOrStdout(), res)
			}
			renderAmerican(cmd.OutOrStdout(), res)
			return nil
		},
	}
	addRequestFlags(cmd)
	return cmd
}

func newSpotCommand(newService serviceFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "spot SYMBOL...",
		Short: "Spot prices of several symbols",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			service, err := newService()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
			defer cancel()
			res, err := service.BatchSpot(ctx, args)
			if asJson(cmd) {
				if jsonErr := writeJson(cmd.OutOrStdout(), res); jsonErr != nil {
					return jsonErr
				}
			} else {
				renderSpots(cmd.OutOrStdout(), res)
			}
			return err
		},
	}
}

func asJson(cmd *cobra.Command) bool {
	v, err := cmd.Flags().GetBool("json")
	return err == nil && v
}

func writeJson(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func formatFloat(v float64) string {
	if math.IsInf(v, 1) {
		return "inf"
	}
	return strconv.FormatFloat(v, 'f', 6, 64)
}

func renderInputs(table *tablewriter.Table, in valuation.PricingInputs) {
	table.Append([]string{"symbol", in.Symbol})
	table.Append([]string{"side", in.Side.String()})
	table.Append([]string{"as of", in.AsOf.Format(time.DateOnly)})
	table.Append([]string{"expiry", in.Expiry.Format(time.DateOnly)})
	table.Append([]string{"S", formatFloat(in.S)})
	table.Append([]string{"K", formatFloat(in.K)})
	table.Append([]string{"r", formatFloat(in.R)})
	table.Append([]string{"q", formatFloat(in.Q)})
	table.Append([]string{"sigma", formatFloat(in.Sigma)})
	table.Append([]string{"T", formatFloat(in.T)})
	table.Append([]string{"d1", formatFloat(in.D1)})
	table.Append([]string{"d2", formatFloat(in.D2)})
}

func newTable(w io.Writer) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Name", "Value"})
	table.SetAlignment(tablewriter.ALIGN_RIGHT)
	return table
}

func renderEuropean(w io.Writer, res valuation.EuropeanResponse) {
	table := newTable(w)
	renderInputs(table, res.Inputs)
	g := res.PriceAndGreeks
	table.Append([]string{"fair value", formatFloat(g.FairValue)})
	table.Append([]string{"delta", formatFloat(g.Delta)})
	table.Append([]string{"gamma", formatFloat(g.Gamma)})
	table.Append([]string{"theta", formatFloat(g.Theta)})
	table.Append([]string{"vega", formatFloat(g.Vega)})
	table.Append([]string{"rho", formatFloat(g.Rho)})
	table.Render()
}

func renderAmerican(w io.Writer, res valuation.AmericanResponse) {
	table := newTable(w)
	renderInputs(table, res.Inputs)
	a := res.AmericanResult
	table.Append([]string{"american price", formatFloat(a.AmericanPrice)})
	table.Append([]string{"european price", formatFloat(a.EuropeanPrice)})
	table.Append([]string{"early exercise premium", formatFloat(a.EarlyExercisePremium)})
	table.Append([]string{"critical price", formatFloat(a.CriticalPrice)})
	table.Append([]string{"converged", fmt.Sprintf("%t (%d iterations)", a.Converged, a.Iterations)})
	table.Render()
}

func renderSpots(w io.Writer, res map[string]valuation.SpotResult) {
	symbols := make([]string, 0, len(res))
	for sym := range res {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Symbol", "Price", "Error"})
	for _, sym := range symbols {
		r := res[sym]
		price, msg := "", ""
		if r.Price != nil {
			price = formatFloat(*r.Price)
		}
		if r.Error != nil {
			msg = *r.Error
		}
		table.Append([]string{sym, price, msg})
	}
	table.Render()
}
