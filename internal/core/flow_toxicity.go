package core

import (
	"math"
	"sync"
	"time"

	"gabagool-mm/internal/domain"
)

// flowToxicityWindow is how far back the tracker looks for fills.
const flowToxicityWindow = 60 * time.Second

// flowToxicityThreshold is the score above which flow is considered adverse.
// Diagnostic only — never read by the constraint checks in accumulator.go
// or equalizer.go.
const flowToxicityThreshold = 0.6

// flowTracker computes a rolling directional-imbalance/fill-velocity score
// from recent trades. It never gates a trade; the Risk Engine only surfaces
// its score as a metric.
type flowTracker struct {
	mu    sync.Mutex
	fills []domain.Trade
}

func newFlowTracker() *flowTracker {
	return &flowTracker{fills: make([]domain.Trade, 0, 64)}
}

// record adds a trade to the rolling window, evicting anything older than
// flowToxicityWindow.
func (f *flowTracker) record(trade domain.Trade) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fills = append(f.fills, trade)
	f.evictStaleLocked()
}

func (f *flowTracker) evictStaleLocked() {
	cutoff := time.Now().Add(-flowToxicityWindow)
	kept := f.fills[:0]
	for _, t := range f.fills {
		if t.Timestamp.After(cutoff) {
			kept = append(kept, t)
		}
	}
	f.fills = kept
}

// score returns the current toxicity score in [0, 1]: 60% weight on
// directional imbalance (the fraction of fills on the dominant side), 40%
// on fill velocity normalized against a 3-fills-per-minute baseline.
func (f *flowTracker) score() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.evictStaleLocked()

	if len(f.fills) == 0 {
		return 0
	}

	var yesCount, noCount int
	for _, t := range f.fills {
		if t.Side == domain.YES {
			yesCount++
		} else {
			noCount++
		}
	}
	total := float64(len(f.fills))
	dominant := math.Max(float64(yesCount), float64(noCount))
	directionalImbalance := dominant / total

	if len(f.fills) < 2 {
		return directionalImbalance * 0.6
	}

	velocity := total / flowToxicityWindow.Minutes()
	velocityFactor := math.Min(velocity/3.0, 1.0)

	return 0.6*directionalImbalance + 0.4*velocityFactor
}
