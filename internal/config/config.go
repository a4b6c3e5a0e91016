// Package config defines all configuration for the trading engine.
// Config is loaded from a YAML file (default: configs/config.yaml) with
// sensitive fields overridable via GABAGOOL_* environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/shopspring/decimal"

	"gabagool-mm/internal/domain"
)

// Config is the top-level configuration. Maps directly to the YAML file structure.
type Config struct {
	DryRun   bool           `mapstructure:"dry_run"`
	Wallet   WalletConfig   `mapstructure:"wallet"`
	API      APIConfig      `mapstructure:"api"`
	Trading  TradingConfig  `mapstructure:"trading"`
	Selector SelectorYAML   `mapstructure:"selector"`
	Store    StoreConfig    `mapstructure:"store"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Dashboard DashboardConfig `mapstructure:"dashboard"`
}

// WalletConfig holds the Ethereum wallet used for signing orders.
// PrivateKey signs L1 (EIP-712) auth and derives L2 API keys.
// FunderAddress is the on-chain address that funds orders (may differ from signer if using a proxy).
type WalletConfig struct {
	PrivateKey    string `mapstructure:"private_key"`
	SignatureType int    `mapstructure:"signature_type"`
	FunderAddress string `mapstructure:"funder_address"`
	ChainID       int    `mapstructure:"chain_id"`
}

// APIConfig holds Polymarket API endpoints and optional pre-derived L2 credentials.
// If ApiKey/Secret/Passphrase are empty, the engine derives them via L1 auth on startup.
type APIConfig struct {
	CLOBBaseURL  string `mapstructure:"clob_base_url"`
	GammaBaseURL string `mapstructure:"gamma_base_url"`
	WSMarketURL  string `mapstructure:"ws_market_url"`
	WSUserURL    string `mapstructure:"ws_user_url"`
	ApiKey       string `mapstructure:"api_key"`
	Secret       string `mapstructure:"secret"`
	Passphrase   string `mapstructure:"passphrase"`
}

// TradingConfig is the YAML-decodable mirror of domain.TradingParams. Kept
// as a distinct struct (rather than embedding domain.TradingParams
// directly) because the decimal fields are expressed as plain strings in
// YAML/env and parsed explicitly in ToParams.
type TradingConfig struct {
	MaxUnhedgedDelta        string `mapstructure:"max_unhedged_delta"`
	ProfitMargin            string `mapstructure:"profit_margin"`
	SettlementBufferSeconds int    `mapstructure:"settlement_buffer_seconds"`
	MinLiquidityMultiplier  string `mapstructure:"min_liquidity_multiplier"`
	MaxPositionSize         string `mapstructure:"max_position_size"`
	BailoutStopLossPercent  string `mapstructure:"bailout_stop_loss_percent"`
	TradeSize               string `mapstructure:"trade_size"`
	ScanIntervalMs          int    `mapstructure:"scan_interval_ms"`
}

// ToParams parses the string-encoded decimal fields into domain.TradingParams,
// falling back to the defaults named in §3 for anything left blank.
func (t TradingConfig) ToParams() (domain.TradingParams, error) {
	p := domain.DefaultTradingParams()

	fields := []struct {
		raw string
		dst *decimal.Decimal
	}{
		{t.MaxUnhedgedDelta, &p.MaxUnhedgedDelta},
		{t.ProfitMargin, &p.ProfitMargin},
		{t.MinLiquidityMultiplier, &p.MinLiquidityMultiplier},
		{t.MaxPositionSize, &p.MaxPositionSize},
		{t.BailoutStopLossPercent, &p.BailoutStopLossPercent},
		{t.TradeSize, &p.TradeSize},
	}
	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		v, err := decimal.NewFromString(f.raw)
		if err != nil {
			return domain.TradingParams{}, fmt.Errorf("parse trading parameter %q: %w", f.raw, err)
		}
		*f.dst = v
	}
	if t.SettlementBufferSeconds != 0 {
		p.SettlementBufferSeconds = t.SettlementBufferSeconds
	}
	if t.ScanIntervalMs != 0 {
		p.ScanIntervalMs = t.ScanIntervalMs
	}
	return p, nil
}

// SelectorYAML is the YAML-decodable form of engine.SelectorConfig.
// PollInterval is decoded but has no SelectorConfig counterpart and is not
// read.
type SelectorYAML struct {
	Symbols               []string      `mapstructure:"symbols"`
	PreferredWindowMinSec int           `mapstructure:"preferred_window_min_sec"`
	PreferredWindowMaxSec int           `mapstructure:"preferred_window_max_sec"`
	PollInterval          time.Duration `mapstructure:"poll_interval"`
}

// StoreConfig points the State Store at Redis, falling back to the
// in-process MemoryStore when Addr is empty.
type StoreConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DashboardConfig controls the HTTP + WebSocket control surface.
type DashboardConfig struct {
	Enabled        bool     `mapstructure:"enabled"`
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// Load reads config from a YAML file with env var overrides.
// Sensitive fields use env vars: GABAGOOL_PRIVATE_KEY, GABAGOOL_API_KEY,
// GABAGOOL_API_SECRET, GABAGOOL_PASSPHRASE.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("GABAGOOL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if key := os.Getenv("GABAGOOL_PRIVATE_KEY"); key != "" {
		cfg.Wallet.PrivateKey = key
	}
	if key := os.Getenv("GABAGOOL_API_KEY"); key != "" {
		cfg.API.ApiKey = key
	}
	if secret := os.Getenv("GABAGOOL_API_SECRET"); secret != "" {
		cfg.API.Secret = secret
	}
	if pass := os.Getenv("GABAGOOL_PASSPHRASE"); pass != "" {
		cfg.API.Passphrase = pass
	}
	if v := os.Getenv("GABAGOOL_DRY_RUN"); v == "true" || v == "1" {
		cfg.DryRun = true
	}

	return &cfg, nil
}

// Validate checks all required fields and value ranges. Per §6, invalid or
// missing required credentials fail startup.
func (c *Config) Validate() error {
	if c.Wallet.PrivateKey == "" {
		return fmt.Errorf("wallet.private_key is required (set GABAGOOL_PRIVATE_KEY)")
	}
	if c.Wallet.ChainID == 0 {
		return fmt.Errorf("wallet.chain_id is required (137 for mainnet)")
	}
	switch c.Wallet.SignatureType {
	case 0, 1, 2:
	default:
		return fmt.Errorf("wallet.signature_type must be one of: 0 (EOA), 1 (POLY_PROXY), 2 (GNOSIS_SAFE)")
	}
	if c.Wallet.SignatureType != 0 && c.Wallet.FunderAddress == "" {
		return fmt.Errorf("wallet.funder_address is required when wallet.signature_type is 1 or 2")
	}
	if c.API.CLOBBaseURL == "" {
		return fmt.Errorf("api.clob_base_url is required")
	}
	if c.API.GammaBaseURL == "" {
		return fmt.Errorf("api.gamma_base_url is required")
	}
	if _, err := c.Trading.ToParams(); err != nil {
		return fmt.Errorf("invalid trading config: %w", err)
	}
	return nil
}
