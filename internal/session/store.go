package session

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
	"github.com/ericfunman/boursicotor-sub000/internal/types"
	"github.com/ericfunman/boursicotor-sub000/pkg/errors"
)

// Store persists sessions in DuckDB. Session rows are the only shared state
// between a running worker and external readers, so every mutation goes
// through Update's single transaction.
type Store struct {
	db     *sql.DB
	logger *logger.Logger
	sq     squirrel.StatementBuilderType
}

// NewStore opens the database at dbPath (":memory:" for tests).
func NewStore(dbPath string, log *logger.Logger) (*Store, error) {
	db, err := sql.Open("duckdb", dbPath)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreInitFailed, "failed to open session database", err)
	}

	return &Store{
		db:     db,
		logger: log,
		sq:     squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question),
	}, nil
}

// Initialize creates the sessions table.
func (s *Store) Initialize() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			ticker TEXT NOT NULL,
			strategy TEXT NOT NULL,
			status TEXT NOT NULL,
			polling_interval_ms BIGINT NOT NULL,
			buffer_size INTEGER NOT NULL,
			order_quantity BIGINT NOT NULL,
			max_position_size BIGINT NOT NULL,
			max_daily_trades INTEGER NOT NULL,
			stop_loss_pct DOUBLE NOT NULL,
			take_profit_pct DOUBLE NOT NULL,
			trading_hours_start INTEGER NOT NULL,
			trading_hours_end INTEGER NOT NULL,
			paper_trading BOOLEAN NOT NULL,
			started_at TIMESTAMP,
			stopped_at TIMESTAMP,
			last_check_at TIMESTAMP,
			total_orders INTEGER NOT NULL,
			successful_orders INTEGER NOT NULL,
			failed_orders INTEGER NOT NULL,
			total_pnl DOUBLE NOT NULL,
			current_position BIGINT NOT NULL,
			last_signal TEXT,
			last_signal_at TIMESTAMP,
			error_message TEXT,
			daily_trades INTEGER NOT NULL,
			daily_trades_date TEXT
		)
	`)
	if err != nil {
		return errors.Wrap(errors.ErrCodeStoreInitFailed, "failed to create sessions table", err)
	}

	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

var sessionColumns = []string{
	"id", "ticker", "strategy", "status",
	"polling_interval_ms", "buffer_size", "order_quantity", "max_position_size",
	"max_daily_trades", "stop_loss_pct", "take_profit_pct",
	"trading_hours_start", "trading_hours_end", "paper_trading",
	"started_at", "stopped_at", "last_check_at",
	"total_orders", "successful_orders", "failed_orders", "total_pnl",
	"current_position", "last_signal", "last_signal_at", "error_message",
	"daily_trades", "daily_trades_date",
}

func sessionValues(sess *Session) []any {
	var lastSignal sql.NullString
	if signal, err := sess.LastSignal.Take(); err == nil {
		lastSignal = sql.NullString{String: string(signal), Valid: true}
	}

	return []any{
		sess.ID, sess.Ticker, sess.Strategy, string(sess.Status),
		sess.Config.PollingInterval.Milliseconds(), sess.Config.BufferSize,
		sess.Config.OrderQuantity, sess.Config.MaxPositionSize, sess.Config.MaxDailyTrades,
		sess.Config.StopLossPct, sess.Config.TakeProfitPct,
		sess.Config.TradingHoursStart, sess.Config.TradingHoursEnd, sess.Config.PaperTrading,
		nullTime(sess.StartedAt), nullTime(sess.StoppedAt), nullTime(sess.LastCheckAt),
		sess.TotalOrders, sess.SuccessfulOrders, sess.FailedOrders, sess.TotalPnL,
		sess.CurrentPosition, lastSignal, nullTime(sess.LastSignalAt), sess.ErrorMessage,
		sess.DailyTrades, sess.DailyTradesDate,
	}
}

// Insert persists a new session.
func (s *Store) Insert(sess *Session) error {
	query := s.sq.
		Insert("sessions").
		Columns(sessionColumns...).
		Values(sessionValues(sess)...).
		RunWith(s.db)

	if _, err := query.Exec(); err != nil {
		return errors.Wrapf(errors.ErrCodeQueryFailed, err, "failed to insert session %s", sess.ID)
	}

	return nil
}

// Update rewrites a session row atomically.
func (s *Store) Update(sess *Session) error {
	tx, err := s.db.Begin()
	if err != nil {
		return errors.Wrap(errors.ErrCodeQueryFailed, "failed to begin transaction", err)
	}

	deleteQuery := s.sq.Delete("sessions").Where(squirrel.Eq{"id": sess.ID}).RunWith(tx)
	if _, err := deleteQuery.Exec(); err != nil {
		tx.Rollback()

		return errors.Wrapf(errors.ErrCodeQueryFailed, err, "failed to update session %s", sess.ID)
	}

	insertQuery := s.sq.
		Insert("sessions").
		Columns(sessionColumns...).
		Values(sessionValues(sess)...).
		RunWith(tx)

	if _, err := insertQuery.Exec(); err != nil {
		tx.Rollback()

		return errors.Wrapf(errors.ErrCodeQueryFailed, err, "failed to update session %s", sess.ID)
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(errors.ErrCodeQueryFailed, "failed to commit session update", err)
	}

	return nil
}

// Get returns the session with the given id, or None.
func (s *Store) Get(id string) (optional.Option[*Session], error) {
	query := s.sq.
		Select(sessionColumns...).
		From("sessions").
		Where(squirrel.Eq{"id": id}).
		RunWith(s.db)

	sess, err := scanSession(query.QueryRow())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return optional.None[*Session](), nil
		}

		return optional.None[*Session](), errors.Wrapf(errors.ErrCodeQueryFailed, err, "failed to get session %s", id)
	}

	return optional.Some(sess), nil
}

// List returns all sessions, oldest id first.
func (s *Store) List() ([]*Session, error) {
	query := s.sq.
		Select(sessionColumns...).
		From("sessions").
		OrderBy("id ASC").
		RunWith(s.db)

	rows, err := query.Query()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to list sessions", err)
	}
	defer rows.Close()

	sessions := []*Session{}

	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to scan session row", err)
		}

		sessions = append(sessions, sess)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to iterate session rows", err)
	}

	return sessions, nil
}

// Delete removes a session row.
func (s *Store) Delete(id string) error {
	query := s.sq.Delete("sessions").Where(squirrel.Eq{"id": id}).RunWith(s.db)
	if _, err := query.Exec(); err != nil {
		return errors.Wrapf(errors.ErrCodeQueryFailed, err, "failed to delete session %s", id)
	}

	return nil
}

// ExportParquet writes the sessions table to a Parquet file under path.
func (s *Store) ExportParquet(path string) error {
	if err := os.MkdirAll(path, 0755); err != nil {
		return errors.Wrap(errors.ErrCodeExportFailed, "failed to create directory", err)
	}

	sessionsPath := filepath.Join(path, "sessions.parquet")

	_, err := s.db.Exec(fmt.Sprintf(`COPY sessions TO '%s' (FORMAT PARQUET)`, sessionsPath))
	if err != nil {
		return errors.Wrap(errors.ErrCodeExportFailed, "failed to export sessions to Parquet", err)
	}

	s.logger.Info("exported sessions to Parquet file", zap.String("sessions", sessionsPath))

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*Session, error) {
	var (
		sess            Session
		status          string
		pollingMs       int64
		startedAt       sql.NullTime
		stoppedAt       sql.NullTime
		lastCheckAt     sql.NullTime
		lastSignal      sql.NullString
		lastSignalAt    sql.NullTime
		errorMessage    sql.NullString
		dailyTradesDate sql.NullString
	)

	err := row.Scan(
		&sess.ID, &sess.Ticker, &sess.Strategy, &status,
		&pollingMs, &sess.Config.BufferSize, &sess.Config.OrderQuantity,
		&sess.Config.MaxPositionSize, &sess.Config.MaxDailyTrades,
		&sess.Config.StopLossPct, &sess.Config.TakeProfitPct,
		&sess.Config.TradingHoursStart, &sess.Config.TradingHoursEnd, &sess.Config.PaperTrading,
		&startedAt, &stoppedAt, &lastCheckAt,
		&sess.TotalOrders, &sess.SuccessfulOrders, &sess.FailedOrders, &sess.TotalPnL,
		&sess.CurrentPosition, &lastSignal, &lastSignalAt, &errorMessage,
		&sess.DailyTrades, &dailyTradesDate,
	)
	if err != nil {
		return nil, err
	}

	sess.Status = Status(status)
	sess.Config.PollingInterval = time.Duration(pollingMs) * time.Millisecond
	sess.StartedAt = optionalTime(startedAt)
	sess.StoppedAt = optionalTime(stoppedAt)
	sess.LastCheckAt = optionalTime(lastCheckAt)
	sess.LastSignalAt = optionalTime(lastSignalAt)
	sess.ErrorMessage = errorMessage.String
	sess.DailyTradesDate = dailyTradesDate.String

	if lastSignal.Valid {
		sess.LastSignal = optional.Some(types.SignalType(lastSignal.String))
	} else {
		sess.LastSignal = optional.None[types.SignalType]()
	}

	return &sess, nil
}

func nullTime(opt optional.Option[time.Time]) sql.NullTime {
	if opt.IsNone() {
		return sql.NullTime{}
	}

	return sql.NullTime{Time: opt.Unwrap(), Valid: true}
}

func optionalTime(v sql.NullTime) optional.Option[time.Time] {
	if !v.Valid {
		return optional.None[time.Time]()
	}

	return optional.Some(v.Time)
}
