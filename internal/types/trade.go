package types

import (
	"time"

	"github.com/moznion/go-optional"
	"github.com/shopspring/decimal"
)

type Direction string

type TradeStatus string

const (
	DirectionLong  Direction = "LONG"
	DirectionShort Direction = "SHORT"
)

const (
	TradeStatusOpen   TradeStatus = "OPEN"
	TradeStatusClosed TradeStatus = "CLOSED"
)

// SimulatedTrade is one simulated position over its whole lifetime. It is
// created by the ledger on entry and mutated only by the ledger on exit;
// once Status is CLOSED it is never mutated again.
type SimulatedTrade struct {
	EntryTime time.Time                 `yaml:"entry_time" json:"entry_time"`
	ExitTime  optional.Option[time.Time] `yaml:"exit_time" json:"exit_time"`
	Symbol    string                    `yaml:"symbol" json:"symbol"`
	Direction Direction                 `yaml:"direction" json:"direction"`
	// EntryPrice is the effective entry price after slippage.
	EntryPrice float64 `yaml:"entry_price" json:"entry_price"`
	// ExitPrice is the effective exit price after slippage. None until closed.
	ExitPrice optional.Option[float64] `yaml:"exit_price" json:"exit_price"`
	Quantity  int64                    `yaml:"quantity" json:"quantity"`
	// Commission is cumulative over entry and exit.
	Commission float64                  `yaml:"commission" json:"commission"`
	PnL        optional.Option[float64] `yaml:"pnl" json:"pnl"`
	PnLPercent optional.Option[float64] `yaml:"pnl_percent" json:"pnl_percent"`
	Status     TradeStatus              `yaml:"status" json:"status"`
}

// Notional returns the entry notional value of the trade (effective entry
// price times quantity).
func (t *SimulatedTrade) Notional() float64 {
	notional, _ := decimal.NewFromFloat(t.EntryPrice).
		Mul(decimal.NewFromInt(t.Quantity)).
		Float64()

	return notional
}

// MarkValue returns the liquidation value of the trade at the given price.
// Long positions are worth price*qty; short positions carry a linear payoff
// around the entry price, (2*entry-price)*qty.
func (t *SimulatedTrade) MarkValue(price float64) float64 {
	qty := decimal.NewFromInt(t.Quantity)

	if t.Direction == DirectionShort {
		value, _ := decimal.NewFromFloat(2 * t.EntryPrice).
			Sub(decimal.NewFromFloat(price)).
			Mul(qty).
			Float64()

		return value
	}

	value, _ := decimal.NewFromFloat(price).Mul(qty).Float64()

	return value
}

// RealizedPnL returns the net realized profit of the trade, or 0 while it is
// still open.
func (t *SimulatedTrade) RealizedPnL() float64 {
	if t.PnL.IsNone() {
		return 0
	}

	return t.PnL.Unwrap()
}
