package order

import (
	"context"
	"fmt"
	"sync"

	"github.com/ericfunman/boursicotor-sub000/pkg/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PriceFunc quotes the current price for a ticker. PaperBroker uses it to
// price simulated fills.
type PriceFunc func(ticker string) (float64, error)

// PaperBroker is an in-process BrokerAdapter that fills every market order
// at the quoted price. It can be disconnected to simulate broker outages:
// while disconnected every call fails with ErrCodeBrokerUnavailable and no
// state changes.
type PaperBroker struct {
	mu           sync.Mutex
	connected    bool
	priceFn      PriceFunc
	commission   float64
	fills        []Fill
	accepted     map[string]*Order
	cancelled    map[string]bool
	nextPermSeed int
}

// NewPaperBroker creates a connected paper broker. commission is the rate
// applied to each fill's notional.
func NewPaperBroker(priceFn PriceFunc, commission float64) *PaperBroker {
	return &PaperBroker{
		connected:  true,
		priceFn:    priceFn,
		commission: commission,
		fills:      []Fill{},
		accepted:   map[string]*Order{},
		cancelled:  map[string]bool{},
	}
}

// Connect marks the broker reachable.
func (b *PaperBroker) Connect() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.connected = true
}

// Disconnect makes every subsequent call fail until Connect.
func (b *PaperBroker) Disconnect() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.connected = false
}

// PlaceOrder accepts the order and queues a full fill at the quoted price.
func (b *PaperBroker) PlaceOrder(ctx context.Context, o *Order) (BrokerAck, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.connected {
		return BrokerAck{}, errors.New(errors.ErrCodeBrokerUnavailable, "paper broker is disconnected")
	}

	price, err := b.priceFn(o.Ticker)
	if err != nil {
		return BrokerAck{}, errors.Wrapf(errors.ErrCodeMarketDataUnavailable, err, "no quote for %s", o.Ticker)
	}

	brokerOrderID := uuid.NewString()
	b.nextPermSeed++

	notional := decimal.NewFromFloat(price).Mul(decimal.NewFromInt(o.Quantity))
	commission, _ := notional.Mul(decimal.NewFromFloat(b.commission)).Float64()

	b.accepted[brokerOrderID] = o
	b.fills = append(b.fills, Fill{
		BrokerOrderID: brokerOrderID,
		Quantity:      o.Quantity,
		Price:         price,
		Commission:    commission,
	})

	return BrokerAck{
		BrokerOrderID: brokerOrderID,
		BrokerPermID:  fmt.Sprintf("paper-%06d", b.nextPermSeed),
	}, nil
}

// CancelOrder discards any not-yet-drained fill for the order.
func (b *PaperBroker) CancelOrder(ctx context.Context, brokerOrderID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.connected {
		return errors.New(errors.ErrCodeBrokerUnavailable, "paper broker is disconnected")
	}

	if _, ok := b.accepted[brokerOrderID]; !ok {
		return errors.Newf(errors.ErrCodeCancelFailed, "unknown broker order id %s", brokerOrderID)
	}

	b.cancelled[brokerOrderID] = true

	remaining := b.fills[:0]
	for _, fill := range b.fills {
		if fill.BrokerOrderID != brokerOrderID {
			remaining = append(remaining, fill)
		}
	}
	b.fills = remaining

	return nil
}

// PendingFills drains the queued fills, skipping cancelled orders.
func (b *PaperBroker) PendingFills(ctx context.Context) ([]Fill, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.connected {
		return nil, errors.New(errors.ErrCodeBrokerUnavailable, "paper broker is disconnected")
	}

	drained := make([]Fill, 0, len(b.fills))
	for _, fill := range b.fills {
		if !b.cancelled[fill.BrokerOrderID] {
			drained = append(drained, fill)
		}
	}

	b.fills = b.fills[:0]

	return drained, nil
}
