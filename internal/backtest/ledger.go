package backtest

import (
	"math"
	"time"

	"github.com/ericfunman/boursicotor-sub000/internal/logger"
	"github.com/ericfunman/boursicotor-sub000/internal/types"
	"github.com/moznion/go-optional"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Ledger simulates capital and open positions for exactly one backtest run.
// It is single-threaded and has no knowledge of strategies or I/O. A fresh
// ledger must be created per run; instances are never shared across runs.
type Ledger struct {
	config     Config
	log        *logger.Logger
	capital    float64
	open       []*types.SimulatedTrade
	closed     []types.SimulatedTrade
	equity     []float64
	timestamps []time.Time
}

// NewLedger creates a ledger seeded with the configured initial capital. The
// equity curve starts with one point holding the initial capital; its
// timestamp is the zero time until the first bar is processed.
func NewLedger(config Config, log *logger.Logger) *Ledger {
	return &Ledger{
		config:     config,
		log:        log,
		capital:    config.InitialCapital,
		open:       []*types.SimulatedTrade{},
		closed:     []types.SimulatedTrade{},
		equity:     []float64{config.InitialCapital},
		timestamps: []time.Time{{}},
	}
}

// OpenPosition opens a position of the given quantity. It returns None
// without touching any state when the quantity is not positive, when the
// notional exceeds the configured position cap, or when the notional exceeds
// the current capital. Slippage is applied against the caller: long entries
// fill above the quoted price, short entries below.
func (l *Ledger) OpenPosition(
	timestamp time.Time,
	symbol string,
	direction types.Direction,
	price float64,
	quantity int64,
) optional.Option[*types.SimulatedTrade] {
	if quantity <= 0 || price <= 0 {
		l.log.Debug("rejecting entry with non-positive quantity or price",
			zap.String("symbol", symbol),
			zap.Int64("quantity", quantity),
			zap.Float64("price", price),
		)

		return optional.None[*types.SimulatedTrade]()
	}

	entryPrice := l.applySlippage(price, direction, true)

	qtyDec := decimal.NewFromInt(quantity)
	notionalDec := decimal.NewFromFloat(entryPrice).Mul(qtyDec)
	notional, _ := notionalDec.Float64()

	if l.config.MaxPositionSize > 0 && notional > l.config.MaxPositionSize {
		l.log.Debug("rejecting entry above position size cap",
			zap.String("symbol", symbol),
			zap.Float64("notional", notional),
			zap.Float64("max_position_size", l.config.MaxPositionSize),
		)

		return optional.None[*types.SimulatedTrade]()
	}

	commission, _ := notionalDec.Mul(decimal.NewFromFloat(l.config.Commission)).Float64()

	if notional > l.capital {
		l.log.Debug("rejecting entry beyond available capital",
			zap.String("symbol", symbol),
			zap.Float64("notional", notional),
			zap.Float64("capital", l.capital),
		)

		return optional.None[*types.SimulatedTrade]()
	}

	trade := &types.SimulatedTrade{
		EntryTime:  timestamp,
		ExitTime:   optional.None[time.Time](),
		Symbol:     symbol,
		Direction:  direction,
		EntryPrice: entryPrice,
		ExitPrice:  optional.None[float64](),
		Quantity:   quantity,
		Commission: commission,
		PnL:        optional.None[float64](),
		PnLPercent: optional.None[float64](),
		Status:     types.TradeStatusOpen,
	}

	l.capital, _ = decimal.NewFromFloat(l.capital).
		Sub(notionalDec).
		Sub(decimal.NewFromFloat(commission)).
		Float64()
	l.open = append(l.open, trade)

	return optional.Some(trade)
}

// OpenPositionPercent opens a position sized as a fraction of the current
// capital: quantity = floor(capital * percent / price).
func (l *Ledger) OpenPositionPercent(
	timestamp time.Time,
	symbol string,
	direction types.Direction,
	price float64,
	percentOfCapital float64,
) optional.Option[*types.SimulatedTrade] {
	if price <= 0 || percentOfCapital <= 0 {
		return optional.None[*types.SimulatedTrade]()
	}

	quantity := int64(math.Floor(l.capital * percentOfCapital / price))

	return l.OpenPosition(timestamp, symbol, direction, price, quantity)
}

// ClosePosition closes an open trade at the given price and returns it, now
// CLOSED. Returns None when the trade is already closed. Slippage is applied
// in the opposite sense of entry and the realized pnl nets out both
// commissions.
func (l *Ledger) ClosePosition(
	timestamp time.Time,
	trade *types.SimulatedTrade,
	price float64,
) optional.Option[*types.SimulatedTrade] {
	if trade == nil || trade.Status == types.TradeStatusClosed {
		return optional.None[*types.SimulatedTrade]()
	}

	exitPrice := l.applySlippage(price, trade.Direction, false)

	qtyDec := decimal.NewFromInt(trade.Quantity)
	entryDec := decimal.NewFromFloat(trade.EntryPrice)
	exitDec := decimal.NewFromFloat(exitPrice)
	exitNotionalDec := exitDec.Mul(qtyDec)

	entryCommissionDec := decimal.NewFromFloat(trade.Commission)
	exitCommissionDec := exitNotionalDec.Mul(decimal.NewFromFloat(l.config.Commission))

	var grossDec decimal.Decimal
	if trade.Direction == types.DirectionLong {
		grossDec = exitDec.Sub(entryDec).Mul(qtyDec)
	} else {
		grossDec = entryDec.Sub(exitDec).Mul(qtyDec)
	}

	pnlDec := grossDec.Sub(entryCommissionDec).Sub(exitCommissionDec)
	pnl, _ := pnlDec.Float64()

	entryNotionalDec := entryDec.Mul(qtyDec)
	pnlPercent, _ := pnlDec.Div(entryNotionalDec).Mul(decimal.NewFromInt(100)).Float64()

	// Proceeds are the liquidation value at the exit price minus the exit
	// commission. For shorts the payoff is linear around the entry price.
	proceedsDec := decimal.NewFromFloat(trade.MarkValue(exitPrice)).Sub(exitCommissionDec)
	l.capital, _ = decimal.NewFromFloat(l.capital).Add(proceedsDec).Float64()

	totalCommission, _ := entryCommissionDec.Add(exitCommissionDec).Float64()

	trade.ExitTime = optional.Some(timestamp)
	trade.ExitPrice = optional.Some(exitPrice)
	trade.Commission = totalCommission
	trade.PnL = optional.Some(pnl)
	trade.PnLPercent = optional.Some(pnlPercent)
	trade.Status = types.TradeStatusClosed

	for i, open := range l.open {
		if open == trade {
			l.open = append(l.open[:i], l.open[i+1:]...)

			break
		}
	}

	l.closed = append(l.closed, *trade)

	return optional.Some(trade)
}

// CloseAll closes every open position on a symbol at the given price. An
// empty symbol closes everything.
func (l *Ledger) CloseAll(timestamp time.Time, symbol string, price float64) int {
	// ClosePosition mutates l.open, so iterate over a snapshot.
	snapshot := make([]*types.SimulatedTrade, len(l.open))
	copy(snapshot, l.open)

	closedCount := 0

	for _, trade := range snapshot {
		if symbol != "" && trade.Symbol != symbol {
			continue
		}

		if l.ClosePosition(timestamp, trade, price).IsSome() {
			closedCount++
		}
	}

	return closedCount
}

// UpdateEquity appends one point to the equity curve: idle capital plus the
// mark-to-market value of all open positions at the given prices. Positions
// whose symbol is missing from the price map are marked at their entry price.
func (l *Ledger) UpdateEquity(timestamp time.Time, currentPrices map[string]float64) {
	equityDec := decimal.NewFromFloat(l.capital)

	for _, trade := range l.open {
		price, ok := currentPrices[trade.Symbol]
		if !ok {
			price = trade.EntryPrice
		}

		equityDec = equityDec.Add(decimal.NewFromFloat(trade.MarkValue(price)))
	}

	equity, _ := equityDec.Float64()
	l.equity = append(l.equity, equity)
	l.timestamps = append(l.timestamps, timestamp)
}

// Capital returns the current idle capital.
func (l *Ledger) Capital() float64 {
	return l.capital
}

// OpenPositions returns the currently open trades in entry order.
func (l *Ledger) OpenPositions() []*types.SimulatedTrade {
	return l.open
}

// HasOpenPosition reports whether any position is open on the symbol.
func (l *Ledger) HasOpenPosition(symbol string) bool {
	for _, trade := range l.open {
		if trade.Symbol == symbol {
			return true
		}
	}

	return false
}

// ClosedTrades returns all closed trades in close order.
func (l *Ledger) ClosedTrades() []types.SimulatedTrade {
	return l.closed
}

// EquityCurve returns the equity snapshots recorded so far.
func (l *Ledger) EquityCurve() []float64 {
	return l.equity
}

// Timestamps returns the timestamps parallel to the equity curve.
func (l *Ledger) Timestamps() []time.Time {
	return l.timestamps
}

// applySlippage returns the effective fill price. Entries fill against the
// trader (long above, short below the quote); exits reverse the sense.
func (l *Ledger) applySlippage(price float64, direction types.Direction, entry bool) float64 {
	slip := decimal.NewFromFloat(price).Mul(decimal.NewFromFloat(l.config.Slippage))
	priceDec := decimal.NewFromFloat(price)

	adverse := direction == types.DirectionLong
	if !entry {
		adverse = !adverse
	}

	var effective decimal.Decimal
	if adverse {
		effective = priceDec.Add(slip)
	} else {
		effective = priceDec.Sub(slip)
	}

	result, _ := effective.Float64()

	return result
}
