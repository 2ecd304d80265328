package types

import "time"

type SignalType string

const (
	// SignalTypeBuy tells the execution layer to open or add long exposure.
	SignalTypeBuy SignalType = "BUY"
	// SignalTypeSell tells the execution layer to close long exposure.
	SignalTypeSell SignalType = "SELL"
	// SignalTypeHold tells the execution layer to take no action.
	SignalTypeHold SignalType = "HOLD"
)

// SignalFunc produces one signal from the bars seen so far. The slice always
// contains every bar up to and including the current one, in chronological
// order. Implementations must be deterministic for backtests to be
// reproducible.
type SignalFunc func(bars []Bar) SignalType

// Signal records one emitted signal with its context.
type Signal struct {
	// Time is the market time of the bar that produced the signal.
	Time time.Time `yaml:"time" json:"time"`
	// Type is the type of the signal.
	Type SignalType `yaml:"type" json:"type"`
	// Symbol is the symbol the signal applies to.
	Symbol string `yaml:"symbol" json:"symbol"`
	// Reason is a human-readable explanation from the strategy.
	Reason string `yaml:"reason" json:"reason"`
}
