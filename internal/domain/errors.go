package domain

import "errors"

// Sentinel errors named by §7's error taxonomy, checkable with errors.Is.
var (
	// ErrHalted names the halt-flag-set condition. The core loops do not
	// return it: on a set halt flag they skip the tick.
	ErrHalted = errors.New("trading halted")

	// ErrEmptyBook indicates a required side of the order book had no
	// levels; callers should skip the tick, not treat it as fatal.
	ErrEmptyBook = errors.New("order book side is empty")

	// ErrNoOrderID is returned when the venue accepted a request but did
	// not return an order id; per §4.3 step 2, the caller must abort the
	// tick without committing a position update.
	ErrNoOrderID = errors.New("venue returned no order id")

	// ErrConstraintFailed marks a skip that is not an error condition in
	// the error-log sense (§7: "constraint violation ... not an error")
	// but is still useful to distinguish from I/O failure in logs/metrics.
	ErrConstraintFailed = errors.New("opportunity failed constraints")

	// ErrConflictExhausted is returned by the State Store's atomic update
	// primitive when the bounded retry budget for an optimistic-concurrency
	// conflict is exhausted (§9: "the retry path must bound recursion").
	ErrConflictExhausted = errors.New("position update conflict retries exhausted")

	// ErrNoMaxPrice is returned by the Equalizer when 0.99-opposite_avg is
	// non-positive and rebalancing cannot proceed without breaching the
	// pair-cost ceiling (§4.4 step 5).
	ErrNoMaxPrice = errors.New("cannot rebalance without violating pair-cost ceiling")
)
