package types

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/moznion/go-optional"
	"github.com/stretchr/testify/suite"
)

type TradeTestSuite struct {
	suite.Suite
}

func TestTradeSuite(t *testing.T) {
	suite.Run(t, new(TradeTestSuite))
}

func (suite *TradeTestSuite) TestNotional() {
	trade := SimulatedTrade{EntryPrice: 50.025, Quantity: 100}
	suite.InDelta(5002.5, trade.Notional(), 1e-9)
}

func (suite *TradeTestSuite) TestMarkValueLong() {
	trade := SimulatedTrade{Direction: DirectionLong, EntryPrice: 50, Quantity: 10}
	suite.InDelta(550.0, trade.MarkValue(55), 1e-9)
}

func (suite *TradeTestSuite) TestMarkValueShortIsLinearAroundEntry() {
	trade := SimulatedTrade{Direction: DirectionShort, EntryPrice: 100, Quantity: 10}

	// At entry the mark equals the entry notional.
	suite.InDelta(1000.0, trade.MarkValue(100), 1e-9)
	// Price drop gains one-for-one.
	suite.InDelta(1100.0, trade.MarkValue(90), 1e-9)
	// Price rise loses one-for-one.
	suite.InDelta(900.0, trade.MarkValue(110), 1e-9)
}

func (suite *TradeTestSuite) TestRealizedPnLZeroWhileOpen() {
	trade := SimulatedTrade{Status: TradeStatusOpen, PnL: optional.None[float64]()}
	suite.Equal(0.0, trade.RealizedPnL())

	trade.PnL = optional.Some(42.5)
	suite.Equal(42.5, trade.RealizedPnL())
}

func (suite *TradeTestSuite) TestWriteResult() {
	result := Result{
		Symbol:         "AAPL",
		InitialCapital: 10000,
		FinalCapital:   10484.25,
		TotalReturn:    4.84,
		TotalTrades:    1,
		WinningTrades:  1,
		WinRate:        100,
		EquityCurve:    []float64{10000, 10484.25},
		Timestamps: []time.Time{
			{},
			time.Date(2024, 1, 2, 16, 0, 0, 0, time.UTC),
		},
	}

	path := filepath.Join(suite.T().TempDir(), "result.yaml")
	suite.Require().NoError(WriteResult(path, result))

	data, err := os.ReadFile(path)
	suite.Require().NoError(err)
	suite.Contains(string(data), "symbol: AAPL")
	suite.Contains(string(data), "final_capital: 10484.25")
}
