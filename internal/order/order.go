// Package order owns the persisted lifecycle of live orders: validation,
// submission to a broker adapter, fill reconciliation, and cancellation.
// The status transition methods on Order are the only mutators of
// state-dependent fields, so a PENDING order can never carry a fill
// timestamp.
package order

import (
	"time"

	"github.com/ericfunman/boursicotor-sub000/pkg/errors"
	"github.com/moznion/go-optional"
	"github.com/shopspring/decimal"
)

type Action string

type Type string

type Status string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
)

const (
	TypeMarket    Type = "MARKET"
	TypeLimit     Type = "LIMIT"
	TypeStop      Type = "STOP"
	TypeStopLimit Type = "STOP_LIMIT"
)

const (
	StatusPending         Status = "PENDING"
	StatusSubmitted       Status = "SUBMITTED"
	StatusPartiallyFilled Status = "PARTIALLY_FILLED"
	StatusFilled          Status = "FILLED"
	StatusCancelled       Status = "CANCELLED"
	StatusRejected        Status = "REJECTED"
	StatusError           Status = "ERROR"
)

// IsTerminal reports whether the status can never transition again.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusFilled, StatusCancelled, StatusRejected, StatusError:
		return true
	case StatusPending, StatusSubmitted, StatusPartiallyFilled:
		return false
	}

	return false
}

// Order is one persisted live order. Created by the Manager, mutated only
// through its transition methods as broker acknowledgements arrive.
type Order struct {
	ID            string
	BrokerOrderID optional.Option[string]
	BrokerPermID  optional.Option[string]
	Ticker        string
	Strategy      optional.Option[string]
	Action        Action
	Type          Type
	Quantity      int64
	LimitPrice    optional.Option[float64]
	StopPrice     optional.Option[float64]

	FilledQuantity    int64
	RemainingQuantity int64
	AvgFillPrice      float64
	Commission        float64

	Status        Status
	StatusMessage string

	CreatedAt   time.Time
	SubmittedAt optional.Option[time.Time]
	FilledAt    optional.Option[time.Time]
	CancelledAt optional.Option[time.Time]

	IsPaperTrade  bool
	ParentOrderID optional.Option[string]
}

// MarkSubmitted transitions PENDING -> SUBMITTED, recording the broker
// identifiers and the submission time.
func (o *Order) MarkSubmitted(ack BrokerAck, at time.Time) error {
	if o.Status != StatusPending {
		return errors.Newf(errors.ErrCodeInvalidTransition, "cannot submit order %s in status %s", o.ID, o.Status)
	}

	o.Status = StatusSubmitted
	o.StatusMessage = ""
	o.BrokerOrderID = optional.Some(ack.BrokerOrderID)
	o.BrokerPermID = optional.Some(ack.BrokerPermID)
	o.SubmittedAt = optional.Some(at)

	return nil
}

// ApplyFill folds one fill into the order: filled/remaining quantities,
// volume-weighted average fill price, cumulative commission. The order
// becomes PARTIALLY_FILLED, or FILLED once the full quantity is reached, at
// which point FilledAt is stamped. FilledQuantity never decreases.
func (o *Order) ApplyFill(fill Fill, at time.Time) error {
	if o.Status != StatusSubmitted && o.Status != StatusPartiallyFilled {
		return errors.Newf(errors.ErrCodeInvalidTransition, "cannot fill order %s in status %s", o.ID, o.Status)
	}

	if fill.Quantity <= 0 {
		return errors.Newf(errors.ErrCodeInvalidQuantity, "fill quantity must be positive, got %d", fill.Quantity)
	}

	if o.FilledQuantity+fill.Quantity > o.Quantity {
		return errors.Newf(errors.ErrCodeInvalidQuantity,
			"fill of %d would exceed order quantity %d (already filled %d)",
			fill.Quantity, o.Quantity, o.FilledQuantity)
	}

	// Volume-weighted average across all fills so far.
	prevNotional := decimal.NewFromFloat(o.AvgFillPrice).Mul(decimal.NewFromInt(o.FilledQuantity))
	fillNotional := decimal.NewFromFloat(fill.Price).Mul(decimal.NewFromInt(fill.Quantity))
	totalQty := o.FilledQuantity + fill.Quantity

	o.AvgFillPrice, _ = prevNotional.Add(fillNotional).
		Div(decimal.NewFromInt(totalQty)).
		Float64()
	o.FilledQuantity = totalQty
	o.RemainingQuantity = o.Quantity - totalQty
	o.Commission, _ = decimal.NewFromFloat(o.Commission).
		Add(decimal.NewFromFloat(fill.Commission)).
		Float64()

	if o.FilledQuantity == o.Quantity {
		o.Status = StatusFilled
		o.FilledAt = optional.Some(at)
	} else {
		o.Status = StatusPartiallyFilled
	}

	return nil
}

// MarkCancelled transitions a cancellable order to CANCELLED and stamps
// CancelledAt. Legal only from PENDING, SUBMITTED or PARTIALLY_FILLED.
func (o *Order) MarkCancelled(at time.Time) error {
	switch o.Status {
	case StatusPending, StatusSubmitted, StatusPartiallyFilled:
	case StatusFilled, StatusCancelled, StatusRejected, StatusError:
		return errors.Newf(errors.ErrCodeInvalidTransition, "cannot cancel order %s in status %s", o.ID, o.Status)
	}

	o.Status = StatusCancelled
	o.CancelledAt = optional.Some(at)

	return nil
}

// MarkRejected records an active broker rejection.
func (o *Order) MarkRejected(message string) error {
	if o.Status.IsTerminal() {
		return errors.Newf(errors.ErrCodeInvalidTransition, "cannot reject order %s in status %s", o.ID, o.Status)
	}

	o.Status = StatusRejected
	o.StatusMessage = message

	return nil
}

// MarkError records an unrecoverable error on the order.
func (o *Order) MarkError(message string) error {
	if o.Status.IsTerminal() {
		return errors.Newf(errors.ErrCodeInvalidTransition, "cannot error order %s in status %s", o.ID, o.Status)
	}

	o.Status = StatusError
	o.StatusMessage = message

	return nil
}
