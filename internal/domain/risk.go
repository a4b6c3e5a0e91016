package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// RiskLevel classifies the Risk Engine's overall read on the current
// position, ordered least to most severe.
type RiskLevel string

const (
	RiskLow      RiskLevel = "LOW"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskHigh     RiskLevel = "HIGH"
	RiskCritical RiskLevel = "CRITICAL"
)

// RiskMetrics is the snapshot the Risk Engine persists to the State Store
// every cycle, per §4.5 step 7.
type RiskMetrics struct {
	CurrentDelta      decimal.Decimal `json:"current_delta"`
	MaxDelta          decimal.Decimal `json:"max_delta"`
	PairCost          decimal.Decimal `json:"pair_cost"`
	LockedProfit      decimal.Decimal `json:"locked_profit"`
	UnrealizedPnL     decimal.Decimal `json:"unrealized_pnl"`
	TimeToSettlement  time.Duration   `json:"time_to_settlement"`
	LiquidityDepthYes decimal.Decimal `json:"liquidity_depth_yes"`
	LiquidityDepthNo  decimal.Decimal `json:"liquidity_depth_no"`
	FlowToxicity      float64         `json:"flow_toxicity"`
	RiskLevel         RiskLevel       `json:"risk_level"`
}

// ToMap flattens the metrics into the string-scalar map shape the State
// Store's metrics hash persists.
func (m RiskMetrics) ToMap() map[string]string {
	return map[string]string{
		"current_delta":       m.CurrentDelta.String(),
		"max_delta":           m.MaxDelta.String(),
		"pair_cost":           m.PairCost.String(),
		"locked_profit":       m.LockedProfit.String(),
		"unrealized_pnl":      m.UnrealizedPnL.String(),
		"time_to_settlement":  m.TimeToSettlement.String(),
		"liquidity_depth_yes": m.LiquidityDepthYes.String(),
		"liquidity_depth_no":  m.LiquidityDepthNo.String(),
		"flow_toxicity":       decimal.NewFromFloat(m.FlowToxicity).StringFixed(4),
		"risk_level":          string(m.RiskLevel),
	}
}
