package order

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/moznion/go-optional"
	"go.uber.org/zap"

	"github.com/ericfunman/boursicotor-sub000/internal/logger"
	"github.com/ericfunman/boursicotor-sub000/pkg/errors"
)

// StaleSubmittedAge is how long an order may sit SUBMITTED without any fill
// before the reconciliation sweep flags it for operator attention.
const StaleSubmittedAge = 15 * time.Minute

// CreateParams are the caller-supplied fields of a new order.
type CreateParams struct {
	Ticker        string  `validate:"required"`
	Strategy      string  `validate:"-"`
	Action        Action  `validate:"required,oneof=BUY SELL"`
	Type          Type    `validate:"required,oneof=MARKET LIMIT STOP STOP_LIMIT"`
	Quantity      int64   `validate:"required,gt=0"`
	LimitPrice    float64 `validate:"gte=0"`
	StopPrice     float64 `validate:"gte=0"`
	IsPaperTrade  bool    `validate:"-"`
	ParentOrderID string  `validate:"-"`
}

// Manager owns the order lifecycle: it validates and persists new orders,
// submits them to the broker, folds fills back in, and drives cancellations.
// Every status change goes through the store before the method returns.
type Manager struct {
	store    *Store
	broker   BrokerAdapter
	logger   *logger.Logger
	validate *validator.Validate

	// now is swappable for tests.
	now func() time.Time
}

// NewManager creates a manager over the given store and broker adapter.
func NewManager(store *Store, broker BrokerAdapter, log *logger.Logger) *Manager {
	return &Manager{
		store:    store,
		broker:   broker,
		logger:   log,
		validate: validator.New(),
		now:      time.Now,
	}
}

// CreateOrder validates the params, persists the order as PENDING, and then
// attempts broker submission. A broker failure is not an error: the order
// stays PENDING with the failure recorded in its status message, and a later
// CheckPendingSubmissions retries it.
func (m *Manager) CreateOrder(ctx context.Context, params CreateParams) (*Order, error) {
	if err := m.validateParams(params); err != nil {
		return nil, err
	}

	now := m.now()
	o := &Order{
		ID:                uuid.NewString(),
		BrokerOrderID:     optional.None[string](),
		BrokerPermID:      optional.None[string](),
		Ticker:            params.Ticker,
		Strategy:          optionalFromString(params.Strategy),
		Action:            params.Action,
		Type:              params.Type,
		Quantity:          params.Quantity,
		LimitPrice:        optionalFromFloat(params.LimitPrice),
		StopPrice:         optionalFromFloat(params.StopPrice),
		FilledQuantity:    0,
		RemainingQuantity: params.Quantity,
		AvgFillPrice:      0,
		Commission:        0,
		Status:            StatusPending,
		StatusMessage:     "",
		CreatedAt:         now,
		SubmittedAt:       optional.None[time.Time](),
		FilledAt:          optional.None[time.Time](),
		CancelledAt:       optional.None[time.Time](),
		IsPaperTrade:      params.IsPaperTrade,
		ParentOrderID:     optionalFromString(params.ParentOrderID),
	}

	if err := m.store.Insert(o); err != nil {
		return nil, err
	}

	m.submit(ctx, o)

	return o, nil
}

// submit tries to place a PENDING order with the broker and records the
// outcome. Submission failure keeps the order PENDING; an active broker
// rejection moves it to REJECTED.
func (m *Manager) submit(ctx context.Context, o *Order) {
	ack, err := m.broker.PlaceOrder(ctx, o)
	if err != nil {
		if errors.HasCode(err, errors.ErrCodeOrderRejected) {
			if rejectErr := o.MarkRejected(err.Error()); rejectErr == nil {
				m.persist(o)
			}

			return
		}

		o.StatusMessage = err.Error()
		m.persist(o)
		m.logger.Warn("order submission failed, will retry",
			zap.String("order_id", o.ID),
			zap.Error(err),
		)

		return
	}

	if err := o.MarkSubmitted(ack, m.now()); err != nil {
		m.logger.Error("failed to mark order submitted", zap.String("order_id", o.ID), zap.Error(err))

		return
	}

	m.persist(o)
}

// CancelOrder cancels an order. PENDING orders are cancelled locally;
// SUBMITTED and PARTIALLY_FILLED orders are cancelled at the broker first.
// Cancelling a terminal order fails with ErrCodeInvalidTransition.
func (m *Manager) CancelOrder(ctx context.Context, id string) (*Order, error) {
	found, err := m.store.Get(id)
	if err != nil {
		return nil, err
	}

	if found.IsNone() {
		return nil, errors.Newf(errors.ErrCodeOrderNotFound, "order %s not found", id)
	}

	o := found.Unwrap()

	switch o.Status {
	case StatusSubmitted, StatusPartiallyFilled:
		if err := m.broker.CancelOrder(ctx, o.BrokerOrderID.Unwrap()); err != nil {
			return nil, errors.Wrapf(errors.ErrCodeCancelFailed, err, "broker refused to cancel order %s", id)
		}
	case StatusPending:
		// never reached the broker, cancel locally
	case StatusFilled, StatusCancelled, StatusRejected, StatusError:
	}

	if err := o.MarkCancelled(m.now()); err != nil {
		return nil, err
	}

	if err := m.store.Update(o); err != nil {
		return nil, err
	}

	return o, nil
}

// ApplyFill applies one execution report to the order carrying the broker's
// order id and persists the result.
func (m *Manager) ApplyFill(fill Fill) (*Order, error) {
	found, err := m.store.GetByBrokerOrderID(fill.BrokerOrderID)
	if err != nil {
		return nil, err
	}

	if found.IsNone() {
		return nil, errors.Newf(errors.ErrCodeOrderNotFound,
			"no order with broker order id %s", fill.BrokerOrderID)
	}

	o := found.Unwrap()

	if err := o.ApplyFill(fill, m.now()); err != nil {
		return nil, err
	}

	if err := m.store.Update(o); err != nil {
		return nil, err
	}

	return o, nil
}

// ReconcileFills drains the broker's pending execution reports and applies
// each. Reports for unknown orders are logged and skipped. Returns the number
// of fills applied.
func (m *Manager) ReconcileFills(ctx context.Context) (int, error) {
	fills, err := m.broker.PendingFills(ctx)
	if err != nil {
		return 0, err
	}

	applied := 0

	for _, fill := range fills {
		if _, err := m.ApplyFill(fill); err != nil {
			m.logger.Warn("skipping unappliable fill",
				zap.String("broker_order_id", fill.BrokerOrderID),
				zap.Error(err),
			)

			continue
		}

		applied++
	}

	return applied, nil
}

// CheckPendingSubmissions is the periodic reconciliation sweep. It retries
// broker submission for every PENDING order and flags SUBMITTED orders that
// have seen no fill for longer than StaleSubmittedAge. Stale orders are never
// auto-cancelled, only flagged.
func (m *Manager) CheckPendingSubmissions(ctx context.Context) error {
	pending, err := m.store.ListByStatus(StatusPending)
	if err != nil {
		return err
	}

	for _, o := range pending {
		m.submit(ctx, o)
	}

	submitted, err := m.store.ListByStatus(StatusSubmitted)
	if err != nil {
		return err
	}

	now := m.now()

	for _, o := range submitted {
		submittedAt, ok := o.SubmittedAt.Take()
		if ok != nil || now.Sub(submittedAt) < StaleSubmittedAge {
			continue
		}

		o.StatusMessage = "no fill received since submission, needs attention"
		m.persist(o)
		m.logger.Warn("submitted order is stale",
			zap.String("order_id", o.ID),
			zap.Time("submitted_at", submittedAt),
		)
	}

	return nil
}

// Get returns the order with the given id, or None.
func (m *Manager) Get(id string) (optional.Option[*Order], error) {
	return m.store.Get(id)
}

// ListActive returns every order that is not yet terminal, oldest first.
func (m *Manager) ListActive() ([]*Order, error) {
	return m.store.ListByStatus(StatusPending, StatusSubmitted, StatusPartiallyFilled)
}

func (m *Manager) persist(o *Order) {
	if err := m.store.Update(o); err != nil {
		m.logger.Error("failed to persist order", zap.String("order_id", o.ID), zap.Error(err))
	}
}

// validateParams runs the struct tags plus the per-type price requirements
// that tags alone cannot express.
func (m *Manager) validateParams(params CreateParams) error {
	if err := m.validate.Struct(params); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidOrderParams, "invalid order parameters", err)
	}

	switch params.Type {
	case TypeLimit:
		if params.LimitPrice <= 0 {
			return errors.New(errors.ErrCodeInvalidPrice, "limit orders require a positive limit price")
		}
	case TypeStop:
		if params.StopPrice <= 0 {
			return errors.New(errors.ErrCodeInvalidPrice, "stop orders require a positive stop price")
		}
	case TypeStopLimit:
		if params.LimitPrice <= 0 || params.StopPrice <= 0 {
			return errors.New(errors.ErrCodeInvalidPrice, "stop-limit orders require positive limit and stop prices")
		}
	case TypeMarket:
	}

	return nil
}

func optionalFromString(v string) optional.Option[string] {
	if v == "" {
		return optional.None[string]()
	}

	return optional.Some(v)
}

func optionalFromFloat(v float64) optional.Option[float64] {
	if v == 0 {
		return optional.None[float64]()
	}

	return optional.Some(v)
}
