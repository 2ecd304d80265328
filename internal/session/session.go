// Package session runs live auto-trading sessions: one worker per session,
// each polling a price feed, asking a strategy for signals, and delegating
// order creation under session-level risk limits.
package session

import (
	"encoding/json"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/invopop/jsonschema"
	"github.com/moznion/go-optional"

	"github.com/ericfunman/boursicotor-sub000/internal/types"
	"github.com/ericfunman/boursicotor-sub000/pkg/errors"
)

type Status string

const (
	StatusRunning Status = "RUNNING"
	StatusStopped Status = "STOPPED"
	StatusPaused  Status = "PAUSED"
	StatusError   Status = "ERROR"
)

// Config is the per-session risk and cadence configuration.
type Config struct {
	// PollingInterval is the worker's sleep between iterations.
	PollingInterval time.Duration `yaml:"polling_interval" json:"polling_interval" validate:"required,gt=0"`
	// BufferSize is the capacity of the in-memory price buffer.
	BufferSize int `yaml:"buffer_size" json:"buffer_size" validate:"required,gt=0"`
	// OrderQuantity is the lot size of each BUY entry, before the position
	// cap is applied.
	OrderQuantity int64 `yaml:"order_quantity" json:"order_quantity" validate:"required,gt=0"`
	// MaxPositionSize caps the position in shares. 0 means no cap.
	MaxPositionSize int64 `yaml:"max_position_size" json:"max_position_size" validate:"gte=0"`
	// MaxDailyTrades caps new entries per calendar day. 0 means no cap.
	MaxDailyTrades int `yaml:"max_daily_trades" json:"max_daily_trades" validate:"gte=0"`
	// StopLossPct and TakeProfitPct are exit thresholds relative to the
	// average entry price, as fractions (0.05 = 5%). 0 disables.
	StopLossPct   float64 `yaml:"stop_loss_pct" json:"stop_loss_pct" validate:"gte=0,lt=1"`
	TakeProfitPct float64 `yaml:"take_profit_pct" json:"take_profit_pct" validate:"gte=0"`
	// TradingHoursStart/End bound when new entries are allowed, as minutes
	// since midnight UTC. Both zero means trading is allowed around the
	// clock.
	TradingHoursStart int `yaml:"trading_hours_start" json:"trading_hours_start" validate:"gte=0,lt=1440"`
	TradingHoursEnd   int `yaml:"trading_hours_end" json:"trading_hours_end" validate:"gte=0,lte=1440"`
	// PaperTrading routes orders through the paper flag instead of real
	// money.
	PaperTrading bool `yaml:"paper_trading" json:"paper_trading"`
}

// DefaultConfig returns a session config with conservative defaults.
func DefaultConfig() Config {
	return Config{
		PollingInterval:   30 * time.Second,
		BufferSize:        50,
		OrderQuantity:     1,
		MaxPositionSize:   0,
		MaxDailyTrades:    0,
		StopLossPct:       0,
		TakeProfitPct:     0,
		TradingHoursStart: 0,
		TradingHoursEnd:   0,
		PaperTrading:      true,
	}
}

// Validate validates the config.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid session config", err)
	}

	return nil
}

// ConfigSchema returns the JSON schema describing Config.
func ConfigSchema() (string, error) {
	r := new(jsonschema.Reflector)
	r.DoNotReference = true
	schema := r.Reflect(&Config{})

	jsonSchemaBytes, err := json.Marshal(schema)
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeInvalidConfiguration, "failed to marshal session config schema", err)
	}

	return string(jsonSchemaBytes), nil
}

// WithinTradingHours reports whether new entries are allowed at t.
func (c Config) WithinTradingHours(t time.Time) bool {
	if c.TradingHoursStart == 0 && c.TradingHoursEnd == 0 {
		return true
	}

	minute := t.UTC().Hour()*60 + t.UTC().Minute()

	if c.TradingHoursStart <= c.TradingHoursEnd {
		return minute >= c.TradingHoursStart && minute < c.TradingHoursEnd
	}

	// Window wraps midnight.
	return minute >= c.TradingHoursStart || minute < c.TradingHoursEnd
}

// Session is one persisted auto-trading session for a (ticker, strategy)
// pair. The worker is the only mutator while the session runs; readers poll
// the store.
type Session struct {
	ID       string
	Ticker   string
	Strategy string
	Status   Status
	Config   Config

	StartedAt   optional.Option[time.Time]
	StoppedAt   optional.Option[time.Time]
	LastCheckAt optional.Option[time.Time]

	TotalOrders      int
	SuccessfulOrders int
	FailedOrders     int
	TotalPnL         float64

	CurrentPosition int64
	LastSignal      optional.Option[types.SignalType]
	LastSignalAt    optional.Option[time.Time]
	ErrorMessage    string

	// DailyTrades counts entries on DailyTradesDate, reset on rollover.
	DailyTrades     int
	DailyTradesDate string
}

// NewSession creates a STOPPED session for the pair.
func NewSession(id, ticker, strategy string, config Config) *Session {
	return &Session{
		ID:              id,
		Ticker:          ticker,
		Strategy:        strategy,
		Status:          StatusStopped,
		Config:          config,
		StartedAt:       optional.None[time.Time](),
		StoppedAt:       optional.None[time.Time](),
		LastCheckAt:     optional.None[time.Time](),
		LastSignal:      optional.None[types.SignalType](),
		LastSignalAt:    optional.None[time.Time](),
		DailyTradesDate: "",
	}
}

// RecordDailyTrade bumps the daily entry counter, resetting it when the
// calendar day has rolled over since the last entry.
func (s *Session) RecordDailyTrade(t time.Time) {
	date := t.UTC().Format("2006-01-02")
	if date != s.DailyTradesDate {
		s.DailyTradesDate = date
		s.DailyTrades = 0
	}

	s.DailyTrades++
}

// DailyTradesOn returns the entry count for the calendar day of t.
func (s *Session) DailyTradesOn(t time.Time) int {
	if t.UTC().Format("2006-01-02") != s.DailyTradesDate {
		return 0
	}

	return s.DailyTrades
}

// RefRegistry answers whether ticker and strategy identities still exist.
// Sessions hold borrowed references; existence is checked at start and by the
// periodic reconciliation sweep, never assumed.
type RefRegistry interface {
	TickerExists(id string) bool
	StrategyExists(id string) bool
}

// ValidateRefs fails with a session error when either reference dangles.
func ValidateRefs(registry RefRegistry, s *Session) error {
	if !registry.TickerExists(s.Ticker) {
		return errors.Newf(errors.ErrCodeTickerNotFound, "session %s references missing ticker %s", s.ID, s.Ticker)
	}

	if !registry.StrategyExists(s.Strategy) {
		return errors.Newf(errors.ErrCodeStrategyNotFound, "session %s references missing strategy %s", s.ID, s.Strategy)
	}

	return nil
}
