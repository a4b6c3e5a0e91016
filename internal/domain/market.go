package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Market describes the binary event the engine is currently trading.
type Market struct {
	ID          string          `json:"id"`
	ConditionID string          `json:"condition_id"` // venue's CTF condition id, used for cancel-market-orders and the user WS channel
	YesTokenID  string          `json:"yes_token_id"`
	NoTokenID   string          `json:"no_token_id"`
	Question    string          `json:"question"`
	Expiration  time.Time       `json:"expiration"`
	MinTickSize decimal.Decimal `json:"min_tick_size"`
	MinSize     decimal.Decimal `json:"min_size"`
	NegRisk     bool            `json:"neg_risk"`
	Active      bool            `json:"active"`
	Closed      bool            `json:"closed"`
}

// TimeToExpiration returns max(0, expiration-now).
func (m Market) TimeToExpiration(now time.Time) time.Duration {
	d := m.Expiration.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// WithinSettlementBuffer reports whether the market is within bufferSeconds
// of expiring.
func (m Market) WithinSettlementBuffer(now time.Time, bufferSeconds int) bool {
	return m.TimeToExpiration(now) <= time.Duration(bufferSeconds)*time.Second
}
