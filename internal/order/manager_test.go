package order

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/ericfunman/boursicotor-sub000/internal/logger"
	"github.com/ericfunman/boursicotor-sub000/pkg/errors"
)

type ManagerTestSuite struct {
	suite.Suite
	logger  *logger.Logger
	store   *Store
	broker  *PaperBroker
	manager *Manager
	ctx     context.Context
}

func (suite *ManagerTestSuite) SetupSuite() {
	suite.logger = logger.NewNopLogger()
	suite.ctx = context.Background()
}

func (suite *ManagerTestSuite) SetupTest() {
	store, err := NewStore(":memory:", suite.logger)
	suite.Require().NoError(err)
	suite.Require().NoError(store.Initialize())

	suite.store = store
	suite.broker = NewPaperBroker(func(ticker string) (float64, error) {
		return 50.0, nil
	}, 0.001)
	suite.manager = NewManager(store, suite.broker, suite.logger)
}

func (suite *ManagerTestSuite) TearDownTest() {
	suite.store.Close()
}

func TestManagerSuite(t *testing.T) {
	suite.Run(t, new(ManagerTestSuite))
}

func buyParams(quantity int64) CreateParams {
	return CreateParams{
		Ticker:       "AAPL",
		Strategy:     "SMA_Cross_5_20",
		Action:       ActionBuy,
		Type:         TypeMarket,
		Quantity:     quantity,
		IsPaperTrade: true,
	}
}

func (suite *ManagerTestSuite) TestCreateOrderSubmits() {
	o, err := suite.manager.CreateOrder(suite.ctx, buyParams(100))
	suite.Require().NoError(err)

	suite.Equal(StatusSubmitted, o.Status)
	suite.True(o.BrokerOrderID.IsSome())
	suite.True(o.SubmittedAt.IsSome())

	stored, err := suite.store.Get(o.ID)
	suite.Require().NoError(err)
	suite.Require().True(stored.IsSome())
	suite.Equal(StatusSubmitted, stored.Unwrap().Status)
}

func (suite *ManagerTestSuite) TestBrokerDownLeavesPending() {
	suite.broker.Disconnect()

	o, err := suite.manager.CreateOrder(suite.ctx, buyParams(100))
	suite.Require().NoError(err)

	// Submission failure is not an error; the order waits for the sweep.
	suite.Equal(StatusPending, o.Status)
	suite.NotEmpty(o.StatusMessage)
	suite.True(o.BrokerOrderID.IsNone())
}

func (suite *ManagerTestSuite) TestSweepRetriesPendingWithoutDuplicates() {
	suite.broker.Disconnect()

	o, err := suite.manager.CreateOrder(suite.ctx, buyParams(100))
	suite.Require().NoError(err)
	suite.Equal(StatusPending, o.Status)

	suite.broker.Connect()
	suite.Require().NoError(suite.manager.CheckPendingSubmissions(suite.ctx))

	stored, err := suite.store.Get(o.ID)
	suite.Require().NoError(err)
	suite.Require().True(stored.IsSome())
	suite.Equal(StatusSubmitted, stored.Unwrap().Status)

	// The retry must reuse the existing row, never create a second one.
	all, err := suite.store.ListByStatus(
		StatusPending, StatusSubmitted, StatusPartiallyFilled,
		StatusFilled, StatusCancelled, StatusRejected, StatusError,
	)
	suite.Require().NoError(err)
	suite.Len(all, 1)
}

func (suite *ManagerTestSuite) TestSweepFlagsStaleSubmissions() {
	o, err := suite.manager.CreateOrder(suite.ctx, buyParams(100))
	suite.Require().NoError(err)
	suite.Equal(StatusSubmitted, o.Status)

	// Jump the clock past the stale threshold.
	suite.manager.now = func() time.Time {
		return time.Now().Add(StaleSubmittedAge + time.Minute)
	}

	suite.Require().NoError(suite.manager.CheckPendingSubmissions(suite.ctx))

	stored, err := suite.store.Get(o.ID)
	suite.Require().NoError(err)
	suite.Require().True(stored.IsSome())

	// Flagged for attention but never auto-cancelled.
	suite.Equal(StatusSubmitted, stored.Unwrap().Status)
	suite.NotEmpty(stored.Unwrap().StatusMessage)
}

func (suite *ManagerTestSuite) TestReconcileFills() {
	o, err := suite.manager.CreateOrder(suite.ctx, buyParams(100))
	suite.Require().NoError(err)

	applied, err := suite.manager.ReconcileFills(suite.ctx)
	suite.Require().NoError(err)
	suite.Equal(1, applied)

	stored, err := suite.store.Get(o.ID)
	suite.Require().NoError(err)
	suite.Require().True(stored.IsSome())

	filled := stored.Unwrap()
	suite.Equal(StatusFilled, filled.Status)
	suite.Equal(int64(100), filled.FilledQuantity)
	suite.InDelta(50.0, filled.AvgFillPrice, 1e-9)
	suite.InDelta(5.0, filled.Commission, 1e-9)
	suite.True(filled.FilledAt.IsSome())
}

func (suite *ManagerTestSuite) TestCancelSubmittedOrder() {
	o, err := suite.manager.CreateOrder(suite.ctx, buyParams(100))
	suite.Require().NoError(err)

	cancelled, err := suite.manager.CancelOrder(suite.ctx, o.ID)
	suite.Require().NoError(err)
	suite.Equal(StatusCancelled, cancelled.Status)
	suite.True(cancelled.CancelledAt.IsSome())

	// The broker dropped the queued fill, so nothing reconciles.
	applied, err := suite.manager.ReconcileFills(suite.ctx)
	suite.Require().NoError(err)
	suite.Equal(0, applied)
}

func (suite *ManagerTestSuite) TestCancelPendingOrderLocally() {
	suite.broker.Disconnect()

	o, err := suite.manager.CreateOrder(suite.ctx, buyParams(100))
	suite.Require().NoError(err)
	suite.Equal(StatusPending, o.Status)

	suite.broker.Connect()

	cancelled, err := suite.manager.CancelOrder(suite.ctx, o.ID)
	suite.Require().NoError(err)
	suite.Equal(StatusCancelled, cancelled.Status)
}

func (suite *ManagerTestSuite) TestCancelFilledOrderFails() {
	o, err := suite.manager.CreateOrder(suite.ctx, buyParams(100))
	suite.Require().NoError(err)

	_, err = suite.manager.ReconcileFills(suite.ctx)
	suite.Require().NoError(err)

	_, err = suite.manager.CancelOrder(suite.ctx, o.ID)
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidTransition))
}

func (suite *ManagerTestSuite) TestCancelUnknownOrderFails() {
	_, err := suite.manager.CancelOrder(suite.ctx, "nope")
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeOrderNotFound))
}

func (suite *ManagerTestSuite) TestValidationRejections() {
	tests := []struct {
		name   string
		params CreateParams
	}{
		{name: "missing ticker", params: CreateParams{
			Action: ActionBuy, Type: TypeMarket, Quantity: 10,
		}},
		{name: "bad action", params: CreateParams{
			Ticker: "AAPL", Action: "SHORT", Type: TypeMarket, Quantity: 10,
		}},
		{name: "bad type", params: CreateParams{
			Ticker: "AAPL", Action: ActionBuy, Type: "ICEBERG", Quantity: 10,
		}},
		{name: "zero quantity", params: CreateParams{
			Ticker: "AAPL", Action: ActionBuy, Type: TypeMarket, Quantity: 0,
		}},
	}

	for _, tc := range tests {
		suite.Run(tc.name, func() {
			_, err := suite.manager.CreateOrder(suite.ctx, tc.params)
			suite.Require().Error(err)

			// Rejected synchronously: nothing was persisted.
			all, listErr := suite.store.ListByStatus(StatusPending, StatusSubmitted)
			suite.Require().NoError(listErr)
			suite.Empty(all)
		})
	}
}

func (suite *ManagerTestSuite) TestPriceRequirementsPerType() {
	base := buyParams(10)

	limit := base
	limit.Type = TypeLimit

	stop := base
	stop.Type = TypeStop

	stopLimit := base
	stopLimit.Type = TypeStopLimit
	stopLimit.LimitPrice = 49

	for _, params := range []CreateParams{limit, stop, stopLimit} {
		_, err := suite.manager.CreateOrder(suite.ctx, params)
		suite.Require().Error(err)
		suite.True(errors.HasCode(err, errors.ErrCodeInvalidPrice))
	}

	limit.LimitPrice = 49.5

	o, err := suite.manager.CreateOrder(suite.ctx, limit)
	suite.Require().NoError(err)
	suite.True(o.LimitPrice.IsSome())
}
