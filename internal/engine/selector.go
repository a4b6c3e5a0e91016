// selector.go implements market selection: polling the Gamma API for
// candidate markets on the configured underlying symbols and choosing the
// one the Accumulator should trade next, the way scanner.go used to rank
// wide-spread markets for the quoting strategy — but filtering on
// time-to-expiration instead of a spread/volume/liquidity score, since
// this engine trades one paired market at a time rather than allocating
// across many.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"

	"gabagool-mm/internal/domain"
)

// gammaMarket is the JSON shape returned by Polymarket's Gamma API.
type gammaMarket struct {
	ID                    string `json:"id"`
	Question              string `json:"question"`
	ConditionID           string `json:"conditionId"`
	Slug                  string `json:"slug"`
	Active                bool   `json:"active"`
	Closed                bool   `json:"closed"`
	AcceptingOrders       bool   `json:"acceptingOrders"`
	EnableOrderBook       bool   `json:"enableOrderBook"`
	EndDate               string `json:"endDate"`
	ClobTokenIds          string `json:"clobTokenIds"`
	NegRisk               bool   `json:"negRisk"`
	OrderPriceMinTickSize string `json:"orderPriceMinTickSize"`
	OrderMinSize          string `json:"orderMinSize"`
}

// SelectorConfig tunes the market-selection poll.
type SelectorConfig struct {
	GammaBaseURL      string
	Symbols           []string // e.g. ["BTC", "ETH"], tried in order
	PreferredWindowMin time.Duration
	PreferredWindowMax time.Duration
}

// DefaultSelectorConfig mirrors the source project's "BTC/ETH 15-minute
// markets expiring in 10-15 minutes" preference.
func DefaultSelectorConfig(gammaBaseURL string) SelectorConfig {
	return SelectorConfig{
		GammaBaseURL:       gammaBaseURL,
		Symbols:            []string{"BTC", "ETH"},
		PreferredWindowMin: 10 * time.Minute,
		PreferredWindowMax: 15 * time.Minute,
	}
}

// MarketSelector polls the Gamma API to find the next market to trade.
type MarketSelector struct {
	http *resty.Client
	cfg  SelectorConfig
}

// NewMarketSelector builds a selector pointed at the Gamma API.
func NewMarketSelector(cfg SelectorConfig) *MarketSelector {
	client := resty.New().
		SetBaseURL(cfg.GammaBaseURL).
		SetTimeout(15 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(time.Second)
	return &MarketSelector{http: client, cfg: cfg}
}

// Select chooses the next market to trade: for each configured symbol in
// order, fetch candidate markets and prefer one expiring within the
// preferred window, else fall back to the earliest-expiring candidate.
// Returns ok=false if no symbol yields a usable market.
func (s *MarketSelector) Select(ctx context.Context) (domain.Market, bool, error) {
	for _, symbol := range s.cfg.Symbols {
		candidates, err := s.fetchCandidates(ctx, symbol)
		if err != nil {
			return domain.Market{}, false, fmt.Errorf("fetch candidates for %s: %w", symbol, err)
		}
		if len(candidates) == 0 {
			continue
		}

		sort.Slice(candidates, func(i, j int) bool {
			return candidates[i].Expiration.Before(candidates[j].Expiration)
		})

		now := time.Now()
		for _, m := range candidates {
			ttl := m.TimeToExpiration(now)
			if ttl >= s.cfg.PreferredWindowMin && ttl <= s.cfg.PreferredWindowMax {
				return m, true, nil
			}
		}
		return candidates[0], true, nil
	}
	return domain.Market{}, false, nil
}

func (s *MarketSelector) fetchCandidates(ctx context.Context, symbol string) ([]domain.Market, error) {
	var page []gammaMarket
	resp, err := s.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"limit":          "100",
			"active":         "true",
			"closed":         "false",
			"tag":            symbol,
			"series_slug":    strings.ToLower(symbol) + "-15-minute",
		}).
		SetResult(&page).
		Get("/markets")
	if err != nil {
		return nil, fmt.Errorf("fetch gamma markets: %w", err)
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("fetch gamma markets: status %d", resp.StatusCode())
	}

	now := time.Now()
	out := make([]domain.Market, 0, len(page))
	for _, gm := range page {
		if !gm.Active || gm.Closed || !gm.AcceptingOrders || !gm.EnableOrderBook {
			continue
		}
		if gm.ClobTokenIds == "" {
			continue
		}
		var tokenIDs []string
		if err := json.Unmarshal([]byte(gm.ClobTokenIds), &tokenIDs); err != nil || len(tokenIDs) < 2 {
			continue
		}
		endDate, err := time.Parse(time.RFC3339, gm.EndDate)
		if err != nil || !endDate.After(now) {
			continue
		}

		out = append(out, domain.Market{
			ID:          gm.ID,
			ConditionID: gm.ConditionID,
			YesTokenID:  tokenIDs[0],
			NoTokenID:   tokenIDs[1],
			Question:    gm.Question,
			Expiration:  endDate,
			MinTickSize: parseDecimalOrDefault(gm.OrderPriceMinTickSize, decimal.NewFromFloat(0.01)),
			MinSize:     parseDecimalOrDefault(gm.OrderMinSize, decimal.NewFromInt(5)),
			NegRisk:     gm.NegRisk,
			Active:      gm.Active,
			Closed:      gm.Closed,
		})
	}
	return out, nil
}

func parseDecimalOrDefault(s string, fallback decimal.Decimal) decimal.Decimal {
	if s == "" {
		return fallback
	}
	v, err := decimal.NewFromString(s)
	if err != nil {
		return fallback
	}
	return v
}
