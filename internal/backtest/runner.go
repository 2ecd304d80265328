package backtest

import (
	"github.com/ericfunman/boursicotor-sub000/internal/logger"
	"github.com/ericfunman/boursicotor-sub000/internal/types"
	"github.com/ericfunman/boursicotor-sub000/pkg/errors"
	"go.uber.org/zap"
)

// Runner drives a fresh ledger through a bar series with a strategy signal
// function and composes the ledger with the metrics calculator. Runners are
// reusable across runs; every Run starts from a clean ledger.
type Runner struct {
	config Config
	log    *logger.Logger

	// OnBarProcessed, when set, is called after each bar with the number of
	// bars processed so far and the total. Used for progress reporting.
	OnBarProcessed func(processed, total int)
}

// NewRunner creates a runner with a validated config.
func NewRunner(config Config, log *logger.Logger) (*Runner, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &Runner{
		config:         config,
		log:            log,
		OnBarProcessed: nil,
	}, nil
}

// Run backtests a signal function over the bar series for one symbol.
//
// For each bar, in chronological order, the signal function sees every bar
// up to and including the current one. BUY opens a single long sized at
// RiskPerTrade of current capital; a BUY while already positioned is a
// no-op. SELL closes every open long on the symbol at the bar's close. One
// equity point is recorded per bar, after the signal is acted on. Any
// position still open after the last bar is force-closed at its close price,
// so len(EquityCurve) == len(bars)+1 and the run never ends with exposure.
//
// Given identical bars and a deterministic signal function the result is
// bit-for-bit reproducible.
func (r *Runner) Run(bars []types.Bar, signalFn types.SignalFunc, symbol string) (types.Result, error) {
	if len(bars) == 0 {
		return types.Result{}, errors.New(errors.ErrCodeBacktestNoData, "no bars to backtest")
	}

	if signalFn == nil {
		return types.Result{}, errors.New(errors.ErrCodeMissingParameter, "signal function is required")
	}

	ledger := NewLedger(r.config, r.log)

	for i := range bars {
		bar := bars[i]
		signal := signalFn(bars[:i+1])

		switch signal {
		case types.SignalTypeBuy:
			if !ledger.HasOpenPosition(symbol) {
				ledger.OpenPositionPercent(bar.Time, symbol, types.DirectionLong, bar.Close, r.config.RiskPerTrade)
			}
		case types.SignalTypeSell:
			if ledger.HasOpenPosition(symbol) {
				ledger.CloseAll(bar.Time, symbol, bar.Close)
			}
		case types.SignalTypeHold:
			// no-op
		}

		ledger.UpdateEquity(bar.Time, map[string]float64{symbol: bar.Close})

		if r.OnBarProcessed != nil {
			r.OnBarProcessed(i+1, len(bars))
		}
	}

	lastBar := bars[len(bars)-1]
	if forced := ledger.CloseAll(lastBar.Time, symbol, lastBar.Close); forced > 0 {
		r.log.Debug("force-closed positions at end of data",
			zap.String("symbol", symbol),
			zap.Int("count", forced),
		)
	}

	return r.buildResult(ledger, symbol), nil
}

// buildResult assembles the immutable result record from the final ledger
// state.
func (r *Runner) buildResult(ledger *Ledger, symbol string) types.Result {
	metrics := ComputeMetrics(
		ledger.ClosedTrades(),
		ledger.EquityCurve(),
		r.config.InitialCapital,
		ledger.Capital(),
	)

	return types.Result{
		Symbol:         symbol,
		InitialCapital: r.config.InitialCapital,
		FinalCapital:   ledger.Capital(),
		TotalReturn:    metrics.TotalReturn,
		TotalTrades:    metrics.TotalTrades,
		WinningTrades:  metrics.WinningTrades,
		LosingTrades:   metrics.LosingTrades,
		WinRate:        metrics.WinRate,
		AvgWin:         metrics.AvgWin,
		AvgLoss:        metrics.AvgLoss,
		ProfitFactor:   metrics.ProfitFactor,
		MaxDrawdown:    metrics.MaxDrawdown,
		SharpeRatio:    metrics.SharpeRatio,
		EquityCurve:    ledger.EquityCurve(),
		Timestamps:     ledger.Timestamps(),
		Trades:         ledger.ClosedTrades(),
	}
}
