package backtest

import (
	"math"

	"github.com/ericfunman/boursicotor-sub000/internal/types"
)

// TradingDaysPerYear is the annualization factor used for the Sharpe ratio.
const TradingDaysPerYear = 252

// Metrics holds the performance statistics derived from one run.
type Metrics struct {
	TotalReturn   float64
	TotalTrades   int
	WinningTrades int
	LosingTrades  int
	WinRate       float64
	AvgWin        float64
	AvgLoss       float64
	ProfitFactor  float64
	MaxDrawdown   float64
	SharpeRatio   float64
}

// ComputeMetrics derives performance statistics from a ledger's closed
// trades and equity curve. It is a pure function of its inputs.
//
// Profit factor convention: gross profit divided by the absolute gross loss.
// When there are profits but no losses it is +Inf; when there are no trades
// at all it is 0, so "no edge" and "never lost" stay distinguishable.
func ComputeMetrics(
	closedTrades []types.SimulatedTrade,
	equityCurve []float64,
	initialCapital float64,
	finalCapital float64,
) Metrics {
	metrics := Metrics{}

	if initialCapital > 0 {
		metrics.TotalReturn = (finalCapital - initialCapital) / initialCapital * 100
	}

	var grossProfit, grossLoss float64

	for _, trade := range closedTrades {
		pnl := trade.RealizedPnL()
		if pnl > 0 {
			metrics.WinningTrades++
			grossProfit += pnl
		} else {
			metrics.LosingTrades++
			grossLoss += pnl
		}
	}

	metrics.TotalTrades = len(closedTrades)

	if metrics.TotalTrades > 0 {
		metrics.WinRate = float64(metrics.WinningTrades) / float64(metrics.TotalTrades) * 100
	}

	if metrics.WinningTrades > 0 {
		metrics.AvgWin = grossProfit / float64(metrics.WinningTrades)
	}

	if metrics.LosingTrades > 0 {
		metrics.AvgLoss = grossLoss / float64(metrics.LosingTrades)
	}

	switch {
	case grossLoss < 0:
		metrics.ProfitFactor = grossProfit / math.Abs(grossLoss)
	case grossProfit > 0:
		metrics.ProfitFactor = math.Inf(1)
	default:
		metrics.ProfitFactor = 0
	}

	metrics.MaxDrawdown = maxDrawdown(equityCurve)
	metrics.SharpeRatio = sharpeRatio(equityCurve)

	return metrics
}

// maxDrawdown returns the worst decline from a running equity peak as a
// negative percentage. 0 only when equity never declines.
func maxDrawdown(equityCurve []float64) float64 {
	if len(equityCurve) == 0 {
		return 0
	}

	peak := equityCurve[0]
	worst := 0.0

	for _, equity := range equityCurve {
		if equity > peak {
			peak = equity
		}

		if peak > 0 {
			drawdown := (equity - peak) / peak * 100
			if drawdown < worst {
				worst = drawdown
			}
		}
	}

	return worst
}

// sharpeRatio computes mean/std of successive equity-curve percentage
// changes, annualized by sqrt(252). Returns 0 with fewer than two equity
// points or zero variance.
func sharpeRatio(equityCurve []float64) float64 {
	if len(equityCurve) < 2 {
		return 0
	}

	returns := make([]float64, 0, len(equityCurve)-1)

	for i := 1; i < len(equityCurve); i++ {
		if equityCurve[i-1] == 0 {
			continue
		}

		returns = append(returns, (equityCurve[i]-equityCurve[i-1])/equityCurve[i-1])
	}

	if len(returns) < 2 {
		return 0
	}

	var sum float64
	for _, r := range returns {
		sum += r
	}

	mean := sum / float64(len(returns))

	var variance float64
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}

	variance /= float64(len(returns))

	if variance == 0 {
		return 0
	}

	return mean / math.Sqrt(variance) * math.Sqrt(TradingDaysPerYear)
}
