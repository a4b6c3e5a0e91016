// orchestrator.go wires the Accumulator, Equalizer, and Risk Engine, plus
// the venue's own feed-subscription loop when it has one, against a
// single selected market, supervises their goroutines (restarting any that
// exit), and exposes the control-surface operations
// (status, metrics, panic-close, halt/resume) the source project's
// TradingService methods provide.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gabagool-mm/internal/core"
	"gabagool-mm/internal/domain"
	"gabagool-mm/internal/store"
	"gabagool-mm/internal/venue"
)

// supervisionInterval is how often the Orchestrator checks that its three
// task goroutines are still running and restarts any that have exited.
const supervisionInterval = 5 * time.Second

// fillWatchInterval is how often the Orchestrator polls the State Store's
// trade log for new fills to forward into the Risk Engine's flow-toxicity
// tracker. Trades flow through the store rather than a direct channel
// because the store is the only object the Accumulator, Equalizer, and
// Risk Engine all already share.
const fillWatchInterval = time.Second

// eventBufferSize bounds the Orchestrator's event channel; a slow or
// absent dashboard consumer never blocks a trading loop.
const eventBufferSize = 256

// Event is a dashboard-facing notification of something the orchestrator
// did. At most one of Trade/Market/Reason is populated, per Type ("resume"
// carries none).
type Event struct {
	Type      string        `json:"type"` // "fill", "halt", "resume", "panic_close", "market_selected"
	Timestamp time.Time     `json:"timestamp"`
	Trade     *domain.Trade `json:"trade,omitempty"`
	Market    *domain.Market `json:"market,omitempty"`
	Reason    string        `json:"reason,omitempty"`
}

// taskName identifies one of the three supervised loops, for logging and
// for the status snapshot.
type taskName string

const (
	taskAccumulator taskName = "accumulator"
	taskEqualizer   taskName = "equalizer"
	taskRiskEngine  taskName = "risk_engine"
	taskVenueFeed   taskName = "venue_feed"
)

// feedRunner is implemented by venue.Venue adapters that need a background
// goroutine to keep their local state (order book, open orders) current
// from a WebSocket feed — the CLOB adapter's Run method. Test fakes
// typically satisfy venue.Venue without this, and are simply run with no
// fourth task.
type feedRunner interface {
	Run(ctx context.Context, market domain.Market) error
}

// Status is a point-in-time snapshot of the orchestrator's state, the Go
// equivalent of TradingService.get_status().
type Status struct {
	Running    bool            `json:"running"`
	Halted     bool            `json:"halted"`
	Market     domain.Market   `json:"market"`
	HasMarket  bool            `json:"has_market"`
	RiskLevel  domain.RiskLevel `json:"risk_level"`
	TaskHealth map[string]bool `json:"task_health"`
}

// Orchestrator owns the lifecycle of the three trading loops for one
// market at a time: selecting a market, running Accumulator/Equalizer/Risk
// Engine against it, restarting any that fail, and reselecting when the
// active market approaches settlement.
type Orchestrator struct {
	venue    venue.Venue
	store    store.Store
	selector *MarketSelector
	params   domain.TradingParams
	logger   *slog.Logger

	accumulator *core.Accumulator
	equalizer   *core.Equalizer
	riskEngine  *core.RiskEngine

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.RWMutex
	market    domain.Market
	hasMarket bool
	running   bool
	health    map[taskName]bool

	events chan Event
}

// New builds an Orchestrator wired against the given venue and store.
func New(v venue.Venue, st store.Store, selector *MarketSelector, params domain.TradingParams, logger *slog.Logger) *Orchestrator {
	logger = logger.With("component", "orchestrator")
	return &Orchestrator{
		venue:       v,
		store:       st,
		selector:    selector,
		params:      params,
		logger:      logger,
		accumulator: core.NewAccumulator(v, st, params, logger),
		equalizer:   core.NewEqualizer(v, st, params, logger),
		riskEngine:  core.NewRiskEngine(v, st, params, logger),
		health:      make(map[taskName]bool),
		events:      make(chan Event, eventBufferSize),
	}
}

// Events returns the channel of dashboard notifications. Never closed
// during normal operation; callers should select on their own context for
// shutdown.
func (o *Orchestrator) Events() <-chan Event {
	return o.events
}

func (o *Orchestrator) emit(evt Event) {
	evt.Timestamp = time.Now()
	select {
	case o.events <- evt:
	default:
		o.logger.Warn("event channel full, dropping event", "type", evt.Type)
	}
}

// Start selects an initial market and launches the supervision loop. It
// returns once a market has been selected, or an error if none could be
// found.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.ctx, o.cancel = context.WithCancel(ctx)

	market, ok, err := o.selector.Select(o.ctx)
	if err != nil {
		return fmt.Errorf("select initial market: %w", err)
	}
	if !ok {
		return fmt.Errorf("no tradeable market found")
	}
	if err := o.store.SaveMarket(o.ctx, market); err != nil {
		return fmt.Errorf("save market: %w", err)
	}

	o.mu.Lock()
	o.market = market
	o.hasMarket = true
	o.running = true
	o.mu.Unlock()

	o.logger.Info("market selected", "market", market.ID, "question", market.Question)

	o.wg.Add(2)
	go func() {
		defer o.wg.Done()
		o.superviseLoop()
	}()
	go func() {
		defer o.wg.Done()
		o.watchFills()
	}()

	return nil
}

// Stop cancels every supervised goroutine and waits for them to exit. As a
// safety net it does not liquidate the position — that is PanicClose's
// job, invoked explicitly, never implicitly on shutdown.
func (o *Orchestrator) Stop() {
	o.logger.Info("stopping orchestrator")
	if o.cancel != nil {
		o.cancel()
	}
	o.wg.Wait()
	o.mu.Lock()
	o.running = false
	o.mu.Unlock()
	o.logger.Info("orchestrator stopped")
}

// superviseLoop runs the three trading tasks and restarts any that exit,
// the way the source project's _monitor_tasks/_restart_task pair does, but
// with no backoff: a crashed loop is expected to be transient (a bad venue
// response, a context timeout) and is simply relaunched.
func (o *Orchestrator) superviseLoop() {
	tasks := map[taskName]func(context.Context, domain.Market) error{
		taskAccumulator: o.accumulator.Run,
		taskEqualizer:   o.equalizer.Run,
		taskRiskEngine:  o.riskEngine.Run,
	}
	if feed, ok := o.venue.(feedRunner); ok {
		tasks[taskVenueFeed] = feed.Run
	}

	running := make(map[taskName]chan struct{})
	for name, fn := range tasks {
		running[name] = o.launchTask(name, fn)
	}

	ticker := time.NewTicker(supervisionInterval)
	defer ticker.Stop()

	for {
		select {
		case <-o.ctx.Done():
			return
		case <-ticker.C:
		}

		o.reselectIfNeeded()

		for name, done := range running {
			select {
			case <-done:
				o.logger.Warn("task exited, restarting", "task", name)
				running[name] = o.launchTask(name, tasks[name])
			default:
			}
		}
	}
}

// launchTask runs fn against the current market in a goroutine, marking
// health in the status map and closing the returned channel when fn
// returns (whether from error or context cancellation).
func (o *Orchestrator) launchTask(name taskName, fn func(context.Context, domain.Market) error) chan struct{} {
	o.setHealth(name, true)
	done := make(chan struct{})
	go func() {
		defer close(done)
		market := o.currentMarket()
		if err := fn(o.ctx, market); err != nil && o.ctx.Err() == nil {
			o.logger.Error("task failed", "task", name, "error", err)
		}
		o.setHealth(name, false)
	}()
	return done
}

func (o *Orchestrator) setHealth(name taskName, ok bool) {
	o.mu.Lock()
	o.health[name] = ok
	o.mu.Unlock()
}

func (o *Orchestrator) currentMarket() domain.Market {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.market
}

// reselectIfNeeded runs market selection again once the active market
// enters its settlement buffer, mirroring _select_market's re-invocation
// from the source project's monitor loop. The new market only takes effect
// for tasks relaunched after this point. Accumulator.Run and the venue
// feed's Run notice the settlement buffer themselves, return, and are
// relaunched against the new market; Equalizer.Run and RiskEngine.Run do
// not check the buffer and keep running against the market they were
// launched with.
func (o *Orchestrator) reselectIfNeeded() {
	market := o.currentMarket()
	if !market.WithinSettlementBuffer(time.Now(), o.params.SettlementBufferSeconds) {
		return
	}

	next, ok, err := o.selector.Select(o.ctx)
	if err != nil {
		o.logger.Error("reselect market", "error", err)
		return
	}
	if !ok || next.ID == market.ID {
		return
	}
	if err := o.store.SaveMarket(o.ctx, next); err != nil {
		o.logger.Error("save reselected market", "error", err)
		return
	}

	o.mu.Lock()
	o.market = next
	o.mu.Unlock()
	o.logger.Info("market reselected", "market", next.ID, "question", next.Question)
	o.emit(Event{Type: "market_selected", Market: &next})
}

// watchFills polls the trade log for fills produced since the last poll
// and forwards them to the Risk Engine's flow-toxicity tracker.
func (o *Orchestrator) watchFills() {
	ticker := time.NewTicker(fillWatchInterval)
	defer ticker.Stop()

	var lastCount int64
	for {
		select {
		case <-o.ctx.Done():
			return
		case <-ticker.C:
		}

		count, err := o.store.GetTradeCount(o.ctx)
		if err != nil || count <= lastCount {
			continue
		}
		fresh := count - lastCount
		lastCount = count

		trades, err := o.store.GetRecentTrades(o.ctx, int(fresh))
		if err != nil {
			continue
		}
		for i := len(trades) - 1; i >= 0; i-- {
			trade := trades[i]
			o.riskEngine.RecordFill(trade)
			o.emit(Event{Type: "fill", Trade: &trade})
		}
	}
}

// Status reports the orchestrator's current state, equivalent to the
// source project's get_status().
func (o *Orchestrator) Status(ctx context.Context) (Status, error) {
	o.mu.RLock()
	market, hasMarket, running := o.market, o.hasMarket, o.running
	health := make(map[string]bool, len(o.health))
	for k, v := range o.health {
		health[string(k)] = v
	}
	o.mu.RUnlock()

	halted, err := o.store.IsHalted(ctx)
	if err != nil {
		return Status{}, err
	}

	return Status{
		Running:    running,
		Halted:     halted,
		Market:     market,
		HasMarket:  hasMarket,
		RiskLevel:  o.riskEngine.LastRiskLevel(),
		TaskHealth: health,
	}, nil
}

// Metrics returns the most recently persisted risk metrics snapshot.
func (o *Orchestrator) Metrics(ctx context.Context) (map[string]string, error) {
	return o.store.GetMetrics(ctx)
}

// RecentTrades returns up to limit of the most recent trades.
func (o *Orchestrator) RecentTrades(ctx context.Context, limit int) ([]domain.Trade, error) {
	return o.store.GetRecentTrades(ctx, limit)
}

// OrderBookSnapshot fetches a fresh order book for the active market.
func (o *Orchestrator) OrderBookSnapshot(ctx context.Context) (domain.OrderBook, error) {
	return o.venue.GetMarketOrderBook(ctx, o.currentMarket())
}

// PanicClose immediately liquidates the position and halts trading,
// equivalent to the source project's panic_close().
func (o *Orchestrator) PanicClose(ctx context.Context) {
	o.emit(Event{Type: "panic_close", Reason: "manual panic close requested"})
	o.riskEngine.PanicClose(ctx, o.currentMarket())
}

// Halt sets the halt flag without liquidating, equivalent to
// halt_trading(). The Accumulator and Equalizer stop opening new positions
// on their next tick; existing inventory is left alone.
func (o *Orchestrator) Halt(ctx context.Context) error {
	if err := o.store.SetHaltFlag(ctx, true); err != nil {
		return err
	}
	o.emit(Event{Type: "halt", Reason: "manual halt requested"})
	return nil
}

// Resume clears the halt flag, equivalent to resume_trading().
func (o *Orchestrator) Resume(ctx context.Context) error {
	if err := o.store.SetHaltFlag(ctx, false); err != nil {
		return err
	}
	o.emit(Event{Type: "resume"})
	return nil
}
