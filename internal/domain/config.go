package domain

import "github.com/shopspring/decimal"

// TradingParams holds the enumerated options of §3: the core algorithm's
// tunables, independent of transport/venue configuration.
type TradingParams struct {
	MaxUnhedgedDelta        decimal.Decimal
	ProfitMargin            decimal.Decimal
	SettlementBufferSeconds int
	MinLiquidityMultiplier  decimal.Decimal
	MaxPositionSize         decimal.Decimal
	BailoutStopLossPercent  decimal.Decimal
	TradeSize               decimal.Decimal
	ScanIntervalMs          int
}

// DefaultTradingParams returns the defaults named in §3.
func DefaultTradingParams() TradingParams {
	return TradingParams{
		MaxUnhedgedDelta:        decimal.NewFromInt(50),
		ProfitMargin:            decimal.NewFromFloat(0.02),
		SettlementBufferSeconds: 120,
		MinLiquidityMultiplier:  decimal.NewFromFloat(3.0),
		MaxPositionSize:         decimal.NewFromInt(1000),
		BailoutStopLossPercent:  decimal.NewFromFloat(2.0),
		TradeSize:               decimal.NewFromInt(10),
		ScanIntervalMs:          100,
	}
}

// TargetPairCost returns 1 - ProfitMargin, the maximum pair cost the
// Accumulator will accept.
func (p TradingParams) TargetPairCost() decimal.Decimal {
	return decimal.NewFromInt(1).Sub(p.ProfitMargin)
}
