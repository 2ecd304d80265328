package order

import "context"

// BrokerAck is a broker's acknowledgement of a submitted order.
type BrokerAck struct {
	BrokerOrderID string
	BrokerPermID  string
}

// Fill is one execution report for a submitted order.
type Fill struct {
	BrokerOrderID string
	Quantity      int64
	Price         float64
	Commission    float64
}

// BrokerAdapter abstracts the upstream broker. Implementations must be safe
// for concurrent use; the Manager calls them from both the request path and
// the reconciliation sweep.
type BrokerAdapter interface {
	// PlaceOrder submits the order and returns the broker identifiers. An
	// error means the order did not reach the broker and stays PENDING.
	PlaceOrder(ctx context.Context, o *Order) (BrokerAck, error)

	// CancelOrder requests cancellation of a previously submitted order.
	CancelOrder(ctx context.Context, brokerOrderID string) error

	// PendingFills drains the execution reports received since the last
	// call.
	PendingFills(ctx context.Context) ([]Fill, error)
}
