package backtest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/ericfunman/boursicotor-sub000/internal/logger"
	"github.com/ericfunman/boursicotor-sub000/internal/types"
	"github.com/ericfunman/boursicotor-sub000/pkg/errors"
)

type RunnerTestSuite struct {
	suite.Suite
	logger *logger.Logger
}

func (suite *RunnerTestSuite) SetupSuite() {
	suite.logger = logger.NewNopLogger()
}

func TestRunnerSuite(t *testing.T) {
	suite.Run(t, new(RunnerTestSuite))
}

func makeBars(closes ...float64) []types.Bar {
	bars := make([]types.Bar, len(closes))
	start := time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)

	for i, close := range closes {
		bars[i] = types.Bar{
			Time:   start.Add(time.Duration(i) * time.Hour),
			Symbol: "AAPL",
			Open:   close,
			High:   close + 1,
			Low:    close - 1,
			Close:  close,
			Volume: 1000,
		}
	}

	return bars
}

// buyThenSell buys on the second bar and sells on the fourth.
func buyThenSell(bars []types.Bar) types.SignalType {
	switch len(bars) {
	case 2:
		return types.SignalTypeBuy
	case 4:
		return types.SignalTypeSell
	default:
		return types.SignalTypeHold
	}
}

func (suite *RunnerTestSuite) newRunner() *Runner {
	runner, err := NewRunner(DefaultConfig(), suite.logger)
	suite.Require().NoError(err)

	return runner
}

func (suite *RunnerTestSuite) TestEquityCurveLength() {
	bars := makeBars(50, 51, 52, 53, 54)

	result, err := suite.newRunner().Run(bars, buyThenSell, "AAPL")
	suite.Require().NoError(err)

	suite.Len(result.EquityCurve, len(bars)+1)
	suite.Len(result.Timestamps, len(bars)+1)
	suite.Equal(DefaultConfig().InitialCapital, result.EquityCurve[0])
}

func (suite *RunnerTestSuite) TestRoundTripProducesOneTrade() {
	bars := makeBars(50, 50, 55, 60, 58)

	result, err := suite.newRunner().Run(bars, buyThenSell, "AAPL")
	suite.Require().NoError(err)

	suite.Equal(1, result.TotalTrades)
	suite.Greater(result.FinalCapital, 0.0)
}

func (suite *RunnerTestSuite) TestForceCloseAtEnd() {
	bars := makeBars(50, 51, 52)
	buyAndHold := func(seen []types.Bar) types.SignalType {
		if len(seen) == 1 {
			return types.SignalTypeBuy
		}

		return types.SignalTypeHold
	}

	result, err := suite.newRunner().Run(bars, buyAndHold, "AAPL")
	suite.Require().NoError(err)

	// The open position was force-closed at the last bar.
	suite.Equal(1, result.TotalTrades)
	suite.Require().NotEmpty(result.Trades)
	suite.Equal(types.TradeStatusClosed, result.Trades[0].Status)
}

func (suite *RunnerTestSuite) TestBuyWhilePositionedIsNoOp() {
	bars := makeBars(50, 51, 52, 53)
	alwaysBuy := func([]types.Bar) types.SignalType { return types.SignalTypeBuy }

	result, err := suite.newRunner().Run(bars, alwaysBuy, "AAPL")
	suite.Require().NoError(err)

	// Only the first BUY opened; the force-close produced the single trade.
	suite.Equal(1, result.TotalTrades)
}

func (suite *RunnerTestSuite) TestSellWhileFlatIsNoOp() {
	bars := makeBars(50, 51, 52)
	alwaysSell := func([]types.Bar) types.SignalType { return types.SignalTypeSell }

	result, err := suite.newRunner().Run(bars, alwaysSell, "AAPL")
	suite.Require().NoError(err)

	suite.Equal(0, result.TotalTrades)
	suite.Equal(DefaultConfig().InitialCapital, result.FinalCapital)
}

func (suite *RunnerTestSuite) TestDeterminism() {
	bars := makeBars(50, 52, 49, 55, 53, 58, 57, 60)
	runner := suite.newRunner()

	first, err := runner.Run(bars, buyThenSell, "AAPL")
	suite.Require().NoError(err)

	second, err := runner.Run(bars, buyThenSell, "AAPL")
	suite.Require().NoError(err)

	// Exact equality on every field, not tolerance-based.
	suite.Equal(first, second)
}

func (suite *RunnerTestSuite) TestEmptyBarsFails() {
	_, err := suite.newRunner().Run(nil, buyThenSell, "AAPL")
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeBacktestNoData))
}

func (suite *RunnerTestSuite) TestNilSignalFails() {
	_, err := suite.newRunner().Run(makeBars(50), nil, "AAPL")
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeMissingParameter))
}

func (suite *RunnerTestSuite) TestInvalidConfigRejected() {
	config := DefaultConfig()
	config.InitialCapital = 0

	_, err := NewRunner(config, suite.logger)
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeBacktestConfigError))
}

func (suite *RunnerTestSuite) TestProgressCallback() {
	bars := makeBars(50, 51, 52)
	runner := suite.newRunner()

	calls := 0
	lastTotal := 0
	runner.OnBarProcessed = func(processed, total int) {
		calls++
		lastTotal = total
	}

	_, err := runner.Run(bars, buyThenSell, "AAPL")
	suite.Require().NoError(err)
	suite.Equal(len(bars), calls)
	suite.Equal(len(bars), lastTotal)
}
