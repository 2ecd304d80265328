// Package marketdata defines the price feed consumed by live trading
// sessions.
package marketdata

import (
	"context"
	"sync"

	"github.com/ericfunman/boursicotor-sub000/internal/types"
	"github.com/ericfunman/boursicotor-sub000/pkg/errors"
)

// PriceProvider serves recent bars for a symbol. GetLatestData returns up to
// limit bars, oldest first, with the most recent bar last.
type PriceProvider interface {
	GetLatestData(ctx context.Context, symbol string, limit int) ([]types.Bar, error)
}

// SliceProvider replays a fixed bar series one bar per call, which makes
// polling loops deterministic in tests. Once the series is exhausted it keeps
// serving the full window ending at the last bar.
type SliceProvider struct {
	mu     sync.Mutex
	bars   []types.Bar
	cursor int
}

// NewSliceProvider creates a provider over the given series.
func NewSliceProvider(bars []types.Bar) *SliceProvider {
	return &SliceProvider{bars: bars}
}

// GetLatestData returns the window of up to limit bars ending at the current
// cursor, then advances the cursor.
func (p *SliceProvider) GetLatestData(ctx context.Context, symbol string, limit int) ([]types.Bar, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.bars) == 0 {
		return nil, errors.Newf(errors.ErrCodeMarketDataUnavailable, "no data for %s", symbol)
	}

	if p.cursor < len(p.bars) {
		p.cursor++
	}

	start := p.cursor - limit
	if start < 0 {
		start = 0
	}

	window := make([]types.Bar, p.cursor-start)
	copy(window, p.bars[start:p.cursor])

	return window, nil
}

// LatestPrice returns the close of the most recently served bar. Used as the
// quote source for paper fills.
func (p *SliceProvider) LatestPrice(symbol string) (float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cursor == 0 {
		return 0, errors.Newf(errors.ErrCodeMarketDataUnavailable, "no price served yet for %s", symbol)
	}

	return p.bars[p.cursor-1].Close, nil
}
