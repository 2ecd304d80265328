package order

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Masterminds/squirrel"
	_ "github.com/marcboeker/go-duckdb"
	"github.com/moznion/go-optional"
	"go.uber.org/zap"

	"github.com/ericfunman/boursicotor-sub000/internal/logger"
	"github.com/ericfunman/boursicotor-sub000/pkg/errors"
)

// Store persists orders in DuckDB. The dbPath ":memory:" keeps everything
// in-process, which the tests rely on.
type Store struct {
	db     *sql.DB
	logger *logger.Logger
	sq     squirrel.StatementBuilderType
}

// NewStore opens the database at dbPath.
func NewStore(dbPath string, log *logger.Logger) (*Store, error) {
	db, err := sql.Open("duckdb", dbPath)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreInitFailed, "failed to open order database", err)
	}

	return &Store{
		db:     db,
		logger: log,
		sq:     squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question),
	}, nil
}

// Initialize creates the orders table.
func (s *Store) Initialize() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS orders (
			id TEXT PRIMARY KEY,
			broker_order_id TEXT,
			broker_perm_id TEXT,
			ticker TEXT NOT NULL,
			strategy TEXT,
			action TEXT NOT NULL,
			order_type TEXT NOT NULL,
			quantity BIGINT NOT NULL,
			limit_price DOUBLE,
			stop_price DOUBLE,
			filled_quantity BIGINT NOT NULL,
			remaining_quantity BIGINT NOT NULL,
			avg_fill_price DOUBLE NOT NULL,
			commission DOUBLE NOT NULL,
			status TEXT NOT NULL,
			status_message TEXT,
			created_at TIMESTAMP NOT NULL,
			submitted_at TIMESTAMP,
			filled_at TIMESTAMP,
			cancelled_at TIMESTAMP,
			is_paper_trade BOOLEAN NOT NULL,
			parent_order_id TEXT
		)
	`)
	if err != nil {
		return errors.Wrap(errors.ErrCodeStoreInitFailed, "failed to create orders table", err)
	}

	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

var orderColumns = []string{
	"id", "broker_order_id", "broker_perm_id", "ticker", "strategy",
	"action", "order_type", "quantity", "limit_price", "stop_price",
	"filled_quantity", "remaining_quantity", "avg_fill_price", "commission",
	"status", "status_message", "created_at", "submitted_at", "filled_at",
	"cancelled_at", "is_paper_trade", "parent_order_id",
}

func orderValues(o *Order) []any {
	return []any{
		o.ID,
		nullString(o.BrokerOrderID),
		nullString(o.BrokerPermID),
		o.Ticker,
		nullString(o.Strategy),
		string(o.Action),
		string(o.Type),
		o.Quantity,
		nullFloat(o.LimitPrice),
		nullFloat(o.StopPrice),
		o.FilledQuantity,
		o.RemainingQuantity,
		o.AvgFillPrice,
		o.Commission,
		string(o.Status),
		o.StatusMessage,
		o.CreatedAt,
		nullTime(o.SubmittedAt),
		nullTime(o.FilledAt),
		nullTime(o.CancelledAt),
		o.IsPaperTrade,
		nullString(o.ParentOrderID),
	}
}

// Insert persists a new order.
func (s *Store) Insert(o *Order) error {
	query := s.sq.
		Insert("orders").
		Columns(orderColumns...).
		Values(orderValues(o)...).
		RunWith(s.db)

	if _, err := query.Exec(); err != nil {
		return errors.Wrapf(errors.ErrCodeQueryFailed, err, "failed to insert order %s", o.ID)
	}

	return nil
}

// Update rewrites a persisted order inside a transaction, so a concurrent
// reader never observes a half-written row.
func (s *Store) Update(o *Order) error {
	tx, err := s.db.Begin()
	if err != nil {
		return errors.Wrap(errors.ErrCodeQueryFailed, "failed to begin transaction", err)
	}

	deleteQuery := s.sq.Delete("orders").Where(squirrel.Eq{"id": o.ID}).RunWith(tx)
	if _, err := deleteQuery.Exec(); err != nil {
		tx.Rollback()

		return errors.Wrapf(errors.ErrCodeQueryFailed, err, "failed to update order %s", o.ID)
	}

	insertQuery := s.sq.
		Insert("orders").
		Columns(orderColumns...).
		Values(orderValues(o)...).
		RunWith(tx)

	if _, err := insertQuery.Exec(); err != nil {
		tx.Rollback()

		return errors.Wrapf(errors.ErrCodeQueryFailed, err, "failed to update order %s", o.ID)
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(errors.ErrCodeQueryFailed, "failed to commit order update", err)
	}

	return nil
}

// Get returns the order with the given id, or None.
func (s *Store) Get(id string) (optional.Option[*Order], error) {
	query := s.sq.
		Select(orderColumns...).
		From("orders").
		Where(squirrel.Eq{"id": id}).
		RunWith(s.db)

	o, err := scanOrder(query.QueryRow())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return optional.None[*Order](), nil
		}

		return optional.None[*Order](), errors.Wrapf(errors.ErrCodeQueryFailed, err, "failed to get order %s", id)
	}

	return optional.Some(o), nil
}

// GetByBrokerOrderID returns the order carrying the broker's id, or None.
func (s *Store) GetByBrokerOrderID(brokerOrderID string) (optional.Option[*Order], error) {
	query := s.sq.
		Select(orderColumns...).
		From("orders").
		Where(squirrel.Eq{"broker_order_id": brokerOrderID}).
		RunWith(s.db)

	o, err := scanOrder(query.QueryRow())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return optional.None[*Order](), nil
		}

		return optional.None[*Order](), errors.Wrapf(errors.ErrCodeQueryFailed, err,
			"failed to get order by broker id %s", brokerOrderID)
	}

	return optional.Some(o), nil
}

// ListByStatus returns all orders in any of the given statuses, oldest first.
func (s *Store) ListByStatus(statuses ...Status) ([]*Order, error) {
	values := make([]string, 0, len(statuses))
	for _, status := range statuses {
		values = append(values, string(status))
	}

	query := s.sq.
		Select(orderColumns...).
		From("orders").
		Where(squirrel.Eq{"status": values}).
		OrderBy("created_at ASC").
		RunWith(s.db)

	rows, err := query.Query()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to list orders", err)
	}
	defer rows.Close()

	orders := []*Order{}

	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to scan order row", err)
		}

		orders = append(orders, o)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to iterate order rows", err)
	}

	return orders, nil
}

// Delete removes an order.
func (s *Store) Delete(id string) error {
	query := s.sq.Delete("orders").Where(squirrel.Eq{"id": id}).RunWith(s.db)
	if _, err := query.Exec(); err != nil {
		return errors.Wrapf(errors.ErrCodeQueryFailed, err, "failed to delete order %s", id)
	}

	return nil
}

// ExportParquet writes the full orders table to a Parquet file under path.
func (s *Store) ExportParquet(path string) error {
	if err := os.MkdirAll(path, 0755); err != nil {
		return errors.Wrap(errors.ErrCodeExportFailed, "failed to create directory", err)
	}

	// Squirrel doesn't support COPY, use raw SQL.
	ordersPath := filepath.Join(path, "orders.parquet")

	_, err := s.db.Exec(fmt.Sprintf(`COPY orders TO '%s' (FORMAT PARQUET)`, ordersPath))
	if err != nil {
		return errors.Wrap(errors.ErrCodeExportFailed, "failed to export orders to Parquet", err)
	}

	s.logger.Info("exported orders to Parquet file", zap.String("orders", ordersPath))

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*Order, error) {
	var (
		o             Order
		brokerOrderID sql.NullString
		brokerPermID  sql.NullString
		strategy      sql.NullString
		action        string
		orderType     string
		limitPrice    sql.NullFloat64
		stopPrice     sql.NullFloat64
		status        string
		statusMessage sql.NullString
		submittedAt   sql.NullTime
		filledAt      sql.NullTime
		cancelledAt   sql.NullTime
		parentOrderID sql.NullString
	)

	err := row.Scan(
		&o.ID, &brokerOrderID, &brokerPermID, &o.Ticker, &strategy,
		&action, &orderType, &o.Quantity, &limitPrice, &stopPrice,
		&o.FilledQuantity, &o.RemainingQuantity, &o.AvgFillPrice, &o.Commission,
		&status, &statusMessage, &o.CreatedAt, &submittedAt, &filledAt,
		&cancelledAt, &o.IsPaperTrade, &parentOrderID,
	)
	if err != nil {
		return nil, err
	}

	o.BrokerOrderID = optionalString(brokerOrderID)
	o.BrokerPermID = optionalString(brokerPermID)
	o.Strategy = optionalString(strategy)
	o.Action = Action(action)
	o.Type = Type(orderType)
	o.LimitPrice = optionalFloat(limitPrice)
	o.StopPrice = optionalFloat(stopPrice)
	o.Status = Status(status)
	o.StatusMessage = statusMessage.String
	o.SubmittedAt = optionalTime(submittedAt)
	o.FilledAt = optionalTime(filledAt)
	o.CancelledAt = optionalTime(cancelledAt)
	o.ParentOrderID = optionalString(parentOrderID)

	return &o, nil
}

func nullString(opt optional.Option[string]) sql.NullString {
	if opt.IsNone() {
		return sql.NullString{}
	}

	return sql.NullString{String: opt.Unwrap(), Valid: true}
}

func nullFloat(opt optional.Option[float64]) sql.NullFloat64 {
	if opt.IsNone() {
		return sql.NullFloat64{}
	}

	return sql.NullFloat64{Float64: opt.Unwrap(), Valid: true}
}

func nullTime(opt optional.Option[time.Time]) sql.NullTime {
	if opt.IsNone() {
		return sql.NullTime{}
	}

	return sql.NullTime{Time: opt.Unwrap(), Valid: true}
}

func optionalString(v sql.NullString) optional.Option[string] {
	if !v.Valid {
		return optional.None[string]()
	}

	return optional.Some(v.String)
}

func optionalFloat(v sql.NullFloat64) optional.Option[float64] {
	if !v.Valid {
		return optional.None[float64]()
	}

	return optional.Some(v.Float64)
}

func optionalTime(v sql.NullTime) optional.Option[time.Time] {
	if !v.Valid {
		return optional.None[time.Time]()
	}

	return optional.Some(v.Time)
}
