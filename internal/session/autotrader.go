package session

import (
	"context"
	"sync"
	"time"

	"github.com/moznion/go-optional"
	"go.uber.org/zap"

	"github.com/ericfunman/boursicotor-sub000/internal/logger"
	"github.com/ericfunman/boursicotor-sub000/internal/marketdata"
	"github.com/ericfunman/boursicotor-sub000/internal/order"
	"github.com/ericfunman/boursicotor-sub000/internal/types"
	"github.com/ericfunman/boursicotor-sub000/pkg/errors"
)

// StrategyResolver maps a strategy id to its signal function.
type StrategyResolver interface {
	Resolve(id string) (types.SignalFunc, bool)
}

// AutoTrader starts and stops live session workers: one goroutine per
// session. Sessions share nothing with each other; the persisted row is the
// only state visible outside the worker.
type AutoTrader struct {
	store    *Store
	orders   *order.Manager
	prices   marketdata.PriceProvider
	registry RefRegistry
	resolver StrategyResolver
	logger   *logger.Logger

	// now is swappable for tests.
	now func() time.Time

	mu      sync.Mutex
	workers map[string]*worker
}

type worker struct {
	sess     *Session
	signalFn types.SignalFunc
	buffer   *PriceBuffer
	stopCh   chan struct{}
	doneCh   chan struct{}

	// entryPrice tracks the last BUY fill reference for stop-loss and
	// take-profit checks while a position is open.
	entryPrice float64
}

// NewAutoTrader creates the session supervisor.
func NewAutoTrader(
	store *Store,
	orders *order.Manager,
	prices marketdata.PriceProvider,
	registry RefRegistry,
	resolver StrategyResolver,
	log *logger.Logger,
) *AutoTrader {
	return &AutoTrader{
		store:    store,
		orders:   orders,
		prices:   prices,
		registry: registry,
		resolver: resolver,
		logger:   log,
		now:      time.Now,
		workers:  map[string]*worker{},
	}
}

// Start loads the session and spawns its worker. It fails fast, without ever
// marking the session RUNNING, when the session does not exist, when its
// ticker or strategy reference dangles, or when the session is already
// running.
func (a *AutoTrader) Start(sessionID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.workers[sessionID]; ok {
		return errors.Newf(errors.ErrCodeInvalidTransition, "session %s is already running", sessionID)
	}

	found, err := a.store.Get(sessionID)
	if err != nil {
		return err
	}

	if found.IsNone() {
		return errors.Newf(errors.ErrCodeSessionNotFound, "session %s not found", sessionID)
	}

	sess := found.Unwrap()

	if err := sess.Config.Validate(); err != nil {
		return err
	}

	if err := ValidateRefs(a.registry, sess); err != nil {
		return err
	}

	signalFn, ok := a.resolver.Resolve(sess.Strategy)
	if !ok {
		return errors.Newf(errors.ErrCodeStrategyNotFound,
			"session %s references unresolvable strategy %s", sessionID, sess.Strategy)
	}

	sess.Status = StatusRunning
	sess.StartedAt = optional.Some(a.now())
	sess.StoppedAt = optional.None[time.Time]()
	sess.ErrorMessage = ""

	if err := a.store.Update(sess); err != nil {
		return err
	}

	w := &worker{
		sess:     sess,
		signalFn: signalFn,
		buffer:   NewPriceBuffer(sess.Config.BufferSize),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	a.workers[sessionID] = w

	go a.run(w)

	a.logger.Info("session started",
		zap.String("session_id", sessionID),
		zap.String("ticker", sess.Ticker),
		zap.String("strategy", sess.Strategy),
	)

	return nil
}

// Stop flips the worker's stop flag and joins it with a bounded timeout. The
// worker observes the flag at the top of every iteration and during the
// sleep, so control returns within one polling interval.
func (a *AutoTrader) Stop(sessionID string) error {
	a.mu.Lock()
	w, ok := a.workers[sessionID]
	if ok {
		delete(a.workers, sessionID)
	}
	a.mu.Unlock()

	if !ok {
		return errors.Newf(errors.ErrCodeSessionNotRunning, "session %s is not running", sessionID)
	}

	close(w.stopCh)

	timeout := 2 * w.sess.Config.PollingInterval

	select {
	case <-w.doneCh:
	case <-time.After(timeout):
		return errors.Newf(errors.ErrCodeSessionStopTimeout,
			"session %s worker did not stop within %s", sessionID, timeout)
	}

	w.sess.Status = StatusStopped
	w.sess.StoppedAt = optional.Some(a.now())

	if err := a.store.Update(w.sess); err != nil {
		return err
	}

	a.logger.Info("session stopped", zap.String("session_id", sessionID))

	return nil
}

// IsRunning reports whether a worker is active for the session.
func (a *AutoTrader) IsRunning(sessionID string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	_, ok := a.workers[sessionID]

	return ok
}

// RunningSessions returns the ids of all sessions with an active worker.
func (a *AutoTrader) RunningSessions() []string {
	a.mu.Lock()
	defer a.mu.Unlock()

	ids := make([]string, 0, len(a.workers))
	for id := range a.workers {
		ids = append(ids, id)
	}

	return ids
}

// run is the worker loop. Stop is checked at the top of every iteration and
// again during the sleep, so no iteration outlives the polling interval by
// more than one in-flight pass.
func (a *AutoTrader) run(w *worker) {
	defer close(w.doneCh)

	for {
		select {
		case <-w.stopCh:
			return
		default:
		}

		a.iterate(w)

		select {
		case <-w.stopCh:
			return
		case <-time.After(w.sess.Config.PollingInterval):
		}
	}
}

// iterate runs one polling pass: fetch a bar, evaluate the strategy, enforce
// risk limits, and act on the signal. Every network call is bounded by the
// polling interval so a hung call cannot block the next stop check.
func (a *AutoTrader) iterate(w *worker) {
	sess := w.sess

	ctx, cancel := context.WithTimeout(context.Background(), sess.Config.PollingInterval)
	defer cancel()

	bars, err := a.prices.GetLatestData(ctx, sess.Ticker, 1)
	if err != nil || len(bars) == 0 {
		a.logger.Warn("no market data this iteration",
			zap.String("session_id", sess.ID),
			zap.Error(err),
		)

		return
	}

	bar := bars[len(bars)-1]
	w.buffer.Push(bar)

	now := a.now()
	sess.LastCheckAt = optional.Some(now)

	if !w.buffer.Full() {
		a.persist(sess)

		return
	}

	signal := a.decideSignal(w, bar)
	sess.LastSignal = optional.Some(signal)
	sess.LastSignalAt = optional.Some(now)

	switch signal {
	case types.SignalTypeBuy:
		a.tryBuy(ctx, w, bar, now)
	case types.SignalTypeSell:
		a.trySell(ctx, w)
	case types.SignalTypeHold:
	}

	a.persist(sess)
}

// decideSignal asks the strategy for a signal, then overrides it with a SELL
// when the open position has breached the stop-loss or take-profit threshold.
func (a *AutoTrader) decideSignal(w *worker, bar types.Bar) types.SignalType {
	signal := w.signalFn(w.buffer.Bars())

	sess := w.sess
	if sess.CurrentPosition <= 0 || w.entryPrice <= 0 {
		return signal
	}

	if sess.Config.StopLossPct > 0 && bar.Close <= w.entryPrice*(1-sess.Config.StopLossPct) {
		a.logger.Info("stop loss hit",
			zap.String("session_id", sess.ID),
			zap.Float64("entry", w.entryPrice),
			zap.Float64("close", bar.Close),
		)

		return types.SignalTypeSell
	}

	if sess.Config.TakeProfitPct > 0 && bar.Close >= w.entryPrice*(1+sess.Config.TakeProfitPct) {
		a.logger.Info("take profit hit",
			zap.String("session_id", sess.ID),
			zap.Float64("entry", w.entryPrice),
			zap.Float64("close", bar.Close),
		)

		return types.SignalTypeSell
	}

	return signal
}

// tryBuy enforces the session risk limits and places an entry order. A limit
// violation drops the signal with a log line; it is not a fault.
func (a *AutoTrader) tryBuy(ctx context.Context, w *worker, bar types.Bar, now time.Time) {
	sess := w.sess

	if !sess.Config.WithinTradingHours(now) {
		a.logger.Info("dropping BUY outside trading hours", zap.String("session_id", sess.ID))

		return
	}

	if sess.Config.MaxDailyTrades > 0 && sess.DailyTradesOn(now) >= sess.Config.MaxDailyTrades {
		a.logger.Info("dropping BUY over daily trade limit",
			zap.String("session_id", sess.ID),
			zap.Int("max_daily_trades", sess.Config.MaxDailyTrades),
		)

		return
	}

	quantity := sess.Config.OrderQuantity
	if sess.Config.MaxPositionSize > 0 {
		headroom := sess.Config.MaxPositionSize - sess.CurrentPosition
		if headroom <= 0 {
			a.logger.Info("dropping BUY at position size cap",
				zap.String("session_id", sess.ID),
				zap.Int64("max_position_size", sess.Config.MaxPositionSize),
			)

			return
		}

		if quantity > headroom {
			quantity = headroom
		}
	}

	sess.TotalOrders++

	_, err := a.orders.CreateOrder(ctx, order.CreateParams{
		Ticker:       sess.Ticker,
		Strategy:     sess.Strategy,
		Action:       order.ActionBuy,
		Type:         order.TypeMarket,
		Quantity:     quantity,
		IsPaperTrade: sess.Config.PaperTrading,
	})
	if err != nil {
		sess.FailedOrders++
		a.logger.Warn("entry order failed",
			zap.String("session_id", sess.ID),
			zap.Error(err),
		)

		return
	}

	sess.SuccessfulOrders++
	sess.CurrentPosition += quantity
	sess.RecordDailyTrade(now)
	w.entryPrice = bar.Close
}

// trySell exits the whole position. SELL while flat is a no-op.
func (a *AutoTrader) trySell(ctx context.Context, w *worker) {
	sess := w.sess

	if sess.CurrentPosition <= 0 {
		return
	}

	sess.TotalOrders++

	_, err := a.orders.CreateOrder(ctx, order.CreateParams{
		Ticker:       sess.Ticker,
		Strategy:     sess.Strategy,
		Action:       order.ActionSell,
		Type:         order.TypeMarket,
		Quantity:     sess.CurrentPosition,
		IsPaperTrade: sess.Config.PaperTrading,
	})
	if err != nil {
		sess.FailedOrders++
		a.logger.Warn("exit order failed",
			zap.String("session_id", sess.ID),
			zap.Error(err),
		)

		return
	}

	sess.SuccessfulOrders++
	sess.CurrentPosition = 0
	w.entryPrice = 0
}

func (a *AutoTrader) persist(sess *Session) {
	if err := a.store.Update(sess); err != nil {
		a.logger.Error("failed to persist session",
			zap.String("session_id", sess.ID),
			zap.Error(err),
		)
	}
}
