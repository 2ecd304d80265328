package order

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/moznion/go-optional"
	"github.com/stretchr/testify/suite"

	"github.com/ericfunman/boursicotor-sub000/internal/logger"
)

type StoreTestSuite struct {
	suite.Suite
	store *Store
}

func (suite *StoreTestSuite) SetupTest() {
	store, err := NewStore(":memory:", logger.NewNopLogger())
	suite.Require().NoError(err)
	suite.Require().NoError(store.Initialize())
	suite.store = store
}

func (suite *StoreTestSuite) TearDownTest() {
	suite.store.Close()
}

func TestStoreSuite(t *testing.T) {
	suite.Run(t, new(StoreTestSuite))
}

func (suite *StoreTestSuite) TestRoundTripPreservesOptionals() {
	o := newPendingOrder(25)
	o.Strategy = optional.Some("SMA_Cross_5_20")
	o.LimitPrice = optional.Some(49.5)

	suite.Require().NoError(suite.store.Insert(o))

	stored, err := suite.store.Get(o.ID)
	suite.Require().NoError(err)
	suite.Require().True(stored.IsSome())

	got := stored.Unwrap()
	suite.Equal(o.ID, got.ID)
	suite.Equal(optional.Some("SMA_Cross_5_20"), got.Strategy)
	suite.Equal(optional.Some(49.5), got.LimitPrice)
	suite.True(got.StopPrice.IsNone())
	suite.True(got.SubmittedAt.IsNone())
	suite.Equal(StatusPending, got.Status)
}

func (suite *StoreTestSuite) TestGetMissingReturnsNone() {
	stored, err := suite.store.Get("missing")
	suite.Require().NoError(err)
	suite.True(stored.IsNone())
}

func (suite *StoreTestSuite) TestUpdatePersistsTransition() {
	o := newPendingOrder(25)
	suite.Require().NoError(suite.store.Insert(o))

	ack := BrokerAck{BrokerOrderID: "b-9", BrokerPermID: "p-9"}
	suite.Require().NoError(o.MarkSubmitted(ack, time.Now()))
	suite.Require().NoError(suite.store.Update(o))

	byBroker, err := suite.store.GetByBrokerOrderID("b-9")
	suite.Require().NoError(err)
	suite.Require().True(byBroker.IsSome())
	suite.Equal(o.ID, byBroker.Unwrap().ID)
	suite.Equal(StatusSubmitted, byBroker.Unwrap().Status)
}

func (suite *StoreTestSuite) TestListByStatusOrdersByAge() {
	first := newPendingOrder(1)
	first.ID = "o-first"
	first.CreatedAt = time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC)

	second := newPendingOrder(2)
	second.ID = "o-second"
	second.CreatedAt = first.CreatedAt.Add(time.Minute)

	suite.Require().NoError(suite.store.Insert(second))
	suite.Require().NoError(suite.store.Insert(first))

	pending, err := suite.store.ListByStatus(StatusPending)
	suite.Require().NoError(err)
	suite.Require().Len(pending, 2)
	suite.Equal("o-first", pending[0].ID)
	suite.Equal("o-second", pending[1].ID)
}

func (suite *StoreTestSuite) TestDelete() {
	o := newPendingOrder(5)
	suite.Require().NoError(suite.store.Insert(o))
	suite.Require().NoError(suite.store.Delete(o.ID))

	stored, err := suite.store.Get(o.ID)
	suite.Require().NoError(err)
	suite.True(stored.IsNone())
}

func (suite *StoreTestSuite) TestExportParquet() {
	o := newPendingOrder(5)
	suite.Require().NoError(suite.store.Insert(o))

	dir := suite.T().TempDir()
	suite.Require().NoError(suite.store.ExportParquet(dir))

	info, err := os.Stat(filepath.Join(dir, "orders.parquet"))
	suite.Require().NoError(err)
	suite.Greater(info.Size(), int64(0))
}
