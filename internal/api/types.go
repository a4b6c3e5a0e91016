package api

import "gabagool-mm/internal/config"

// ConfigSummary exposes the operational trading parameters a dashboard
// would want to display alongside live status, without leaking wallet
// credentials or venue URLs.
type ConfigSummary struct {
	MaxUnhedgedDelta        string `json:"max_unhedged_delta"`
	ProfitMargin            string `json:"profit_margin"`
	SettlementBufferSeconds int    `json:"settlement_buffer_seconds"`
	MinLiquidityMultiplier  string `json:"min_liquidity_multiplier"`
	MaxPositionSize         string `json:"max_position_size"`
	BailoutStopLossPercent  string `json:"bailout_stop_loss_percent"`
	TradeSize               string `json:"trade_size"`
	DryRun                  bool   `json:"dry_run"`
}

// NewConfigSummary builds a dashboard-safe summary of the trading config.
func NewConfigSummary(cfg config.Config) ConfigSummary {
	return ConfigSummary{
		MaxUnhedgedDelta:        cfg.Trading.MaxUnhedgedDelta,
		ProfitMargin:            cfg.Trading.ProfitMargin,
		SettlementBufferSeconds: cfg.Trading.SettlementBufferSeconds,
		MinLiquidityMultiplier:  cfg.Trading.MinLiquidityMultiplier,
		MaxPositionSize:         cfg.Trading.MaxPositionSize,
		BailoutStopLossPercent:  cfg.Trading.BailoutStopLossPercent,
		TradeSize:               cfg.Trading.TradeSize,
		DryRun:                  cfg.DryRun,
	}
}
