package backtest

import (
	"math"
	"testing"
	"time"

	"github.com/moznion/go-optional"
	"github.com/stretchr/testify/suite"

	"github.com/ericfunman/boursicotor-sub000/internal/types"
)

type MetricsTestSuite struct {
	suite.Suite
}

func TestMetricsSuite(t *testing.T) {
	suite.Run(t, new(MetricsTestSuite))
}

func closedTrade(pnl float64) types.SimulatedTrade {
	return types.SimulatedTrade{
		EntryTime:  time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC),
		ExitTime:   optional.Some(time.Date(2024, 1, 2, 16, 0, 0, 0, time.UTC)),
		Symbol:     "AAPL",
		Direction:  types.DirectionLong,
		EntryPrice: 50,
		ExitPrice:  optional.Some(50 + pnl/10),
		Quantity:   10,
		PnL:        optional.Some(pnl),
		PnLPercent: optional.Some(pnl / 500 * 100),
		Status:     types.TradeStatusClosed,
	}
}

func (suite *MetricsTestSuite) TestNoTrades() {
	metrics := ComputeMetrics(nil, []float64{10000}, 10000, 10000)

	suite.Equal(0, metrics.TotalTrades)
	suite.Equal(0.0, metrics.WinRate)
	suite.Equal(0.0, metrics.ProfitFactor)
	suite.Equal(0.0, metrics.TotalReturn)
	suite.Equal(0.0, metrics.MaxDrawdown)
	suite.Equal(0.0, metrics.SharpeRatio)
}

func (suite *MetricsTestSuite) TestWinLossSplit() {
	trades := []types.SimulatedTrade{
		closedTrade(100),
		closedTrade(-40),
		closedTrade(60),
		closedTrade(0), // zero pnl counts as a loss
	}

	metrics := ComputeMetrics(trades, []float64{10000, 10120}, 10000, 10120)

	suite.Equal(4, metrics.TotalTrades)
	suite.Equal(2, metrics.WinningTrades)
	suite.Equal(2, metrics.LosingTrades)
	suite.InDelta(50.0, metrics.WinRate, 1e-9)
	suite.InDelta(80.0, metrics.AvgWin, 1e-9)
	suite.InDelta(-20.0, metrics.AvgLoss, 1e-9)
	suite.InDelta(160.0/40.0, metrics.ProfitFactor, 1e-9)
	suite.InDelta(1.2, metrics.TotalReturn, 1e-9)
}

func (suite *MetricsTestSuite) TestWinRateBounds() {
	allWins := []types.SimulatedTrade{closedTrade(10), closedTrade(20)}
	allLosses := []types.SimulatedTrade{closedTrade(-10), closedTrade(-20)}

	suite.Equal(100.0, ComputeMetrics(allWins, nil, 10000, 10030).WinRate)
	suite.Equal(0.0, ComputeMetrics(allLosses, nil, 10000, 9970).WinRate)
}

func (suite *MetricsTestSuite) TestProfitFactorInfiniteWithoutLosses() {
	trades := []types.SimulatedTrade{closedTrade(10)}

	metrics := ComputeMetrics(trades, nil, 10000, 10010)
	suite.True(math.IsInf(metrics.ProfitFactor, 1))
}

func (suite *MetricsTestSuite) TestMaxDrawdownNeverPositive() {
	tests := []struct {
		name   string
		curve  []float64
		expect float64
	}{
		{name: "monotonic rise", curve: []float64{100, 110, 120}, expect: 0},
		{name: "single dip", curve: []float64{100, 120, 90, 130}, expect: -25},
		{name: "flat", curve: []float64{100, 100, 100}, expect: 0},
		{name: "empty", curve: nil, expect: 0},
	}

	for _, tc := range tests {
		suite.Run(tc.name, func() {
			metrics := ComputeMetrics(nil, tc.curve, 100, 100)
			suite.LessOrEqual(metrics.MaxDrawdown, 0.0)
			suite.InDelta(tc.expect, metrics.MaxDrawdown, 1e-9)
		})
	}
}

func (suite *MetricsTestSuite) TestSharpeEdgeCases() {
	// Fewer than two equity points.
	suite.Equal(0.0, ComputeMetrics(nil, []float64{100}, 100, 100).SharpeRatio)

	// Zero variance: both returns are exactly 1.0.
	suite.Equal(0.0, ComputeMetrics(nil, []float64{100, 200, 400}, 100, 400).SharpeRatio)
}

func (suite *MetricsTestSuite) TestSharpeAnnualized() {
	// Alternating +1%/-1% gives mean near zero but nonzero variance; the
	// value just has to be finite and carry the sqrt(252) factor.
	curve := []float64{100, 101, 99.99, 100.99, 99.98}

	metrics := ComputeMetrics(nil, curve, 100, 99.98)
	suite.False(math.IsNaN(metrics.SharpeRatio))
	suite.False(math.IsInf(metrics.SharpeRatio, 0))
	suite.NotEqual(0.0, metrics.SharpeRatio)
}
