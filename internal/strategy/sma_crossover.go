// Package strategy holds the built-in signal generators. A strategy is just
// a SignalFunc over the bar series seen so far; stateful strategies wrap
// their state in a closure.
package strategy

import (
	"fmt"

	"github.com/ericfunman/boursicotor-sub000/internal/types"
)

// SMACrossover buys when the short moving average crosses above the long one
// and sells when it crosses back below.
type SMACrossover struct {
	shortPeriod int
	longPeriod  int
}

// NewSMACrossover creates the strategy. Non-positive or inverted periods fall
// back to the 5/20 defaults.
func NewSMACrossover(shortPeriod, longPeriod int) *SMACrossover {
	if shortPeriod <= 0 || longPeriod <= 0 || shortPeriod >= longPeriod {
		shortPeriod = 5
		longPeriod = 20
	}

	return &SMACrossover{
		shortPeriod: shortPeriod,
		longPeriod:  longPeriod,
	}
}

// Name returns the strategy name.
func (s *SMACrossover) Name() string {
	return fmt.Sprintf("SMA_Cross_%d_%d", s.shortPeriod, s.longPeriod)
}

// GenerateSignal evaluates the crossover on the bars seen so far. HOLD until
// there is enough history for both averages and their previous values.
func (s *SMACrossover) GenerateSignal(bars []types.Bar) types.SignalType {
	if len(bars) <= s.longPeriod {
		return types.SignalTypeHold
	}

	shortMA := sma(bars, s.shortPeriod)
	longMA := sma(bars, s.longPeriod)

	prev := bars[:len(bars)-1]
	prevShortMA := sma(prev, s.shortPeriod)
	prevLongMA := sma(prev, s.longPeriod)

	if shortMA > longMA && prevShortMA <= prevLongMA {
		return types.SignalTypeBuy
	}

	if shortMA < longMA && prevShortMA >= prevLongMA {
		return types.SignalTypeSell
	}

	return types.SignalTypeHold
}

// Func adapts the strategy to the plain signal-function shape the backtest
// runner and session loop consume.
func (s *SMACrossover) Func() types.SignalFunc {
	return s.GenerateSignal
}

// sma averages the close of the last period bars.
func sma(bars []types.Bar, period int) float64 {
	if len(bars) < period || period <= 0 {
		return 0
	}

	sum := 0.0
	for _, bar := range bars[len(bars)-period:] {
		sum += bar.Close
	}

	return sum / float64(period)
}
