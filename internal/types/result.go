package types

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Result is the outcome of one backtest run. It is produced once per run and
// immutable after construction.
type Result struct {
	// Symbol of the instrument that was traded.
	Symbol string `yaml:"symbol" json:"symbol"`
	// InitialCapital is the capital the run started with.
	InitialCapital float64 `yaml:"initial_capital" json:"initial_capital"`
	// FinalCapital is the capital after the last bar, all positions closed.
	FinalCapital float64 `yaml:"final_capital" json:"final_capital"`
	// TotalReturn is (final-initial)/initial expressed as a percentage.
	TotalReturn float64 `yaml:"total_return" json:"total_return"`
	// TotalTrades counts closed trades.
	TotalTrades int `yaml:"total_trades" json:"total_trades"`
	// WinningTrades counts closed trades with positive pnl.
	WinningTrades int `yaml:"winning_trades" json:"winning_trades"`
	// LosingTrades counts closed trades with zero or negative pnl.
	LosingTrades int `yaml:"losing_trades" json:"losing_trades"`
	// WinRate is winning/total expressed as a percentage, 0 with no trades.
	WinRate float64 `yaml:"win_rate" json:"win_rate"`
	// AvgWin is the mean pnl of winning trades.
	AvgWin float64 `yaml:"avg_win" json:"avg_win"`
	// AvgLoss is the mean pnl of losing trades.
	AvgLoss float64 `yaml:"avg_loss" json:"avg_loss"`
	// ProfitFactor is gross profit over absolute gross loss. +Inf when there
	// are profits but no losses, 0 when there are no trades.
	ProfitFactor float64 `yaml:"profit_factor" json:"profit_factor"`
	// MaxDrawdown is the worst peak-to-trough equity decline as a negative
	// percentage. Always <= 0.
	MaxDrawdown float64 `yaml:"max_drawdown" json:"max_drawdown"`
	// SharpeRatio is the annualized mean/std of per-bar equity returns.
	SharpeRatio float64 `yaml:"sharpe_ratio" json:"sharpe_ratio"`
	// EquityCurve holds one capital snapshot per processed bar plus the
	// initial value.
	EquityCurve []float64 `yaml:"equity_curve" json:"equity_curve"`
	// Timestamps is parallel to EquityCurve.
	Timestamps []time.Time `yaml:"timestamps" json:"timestamps"`
	// Trades is the ordered list of closed trades.
	Trades []SimulatedTrade `yaml:"trades" json:"trades"`
}

// WriteResult writes a backtest result to a YAML file.
func WriteResult(path string, result Result) error {
	data, err := yaml.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal backtest result to YAML: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write backtest result to file: %w", err)
	}

	return nil
}
