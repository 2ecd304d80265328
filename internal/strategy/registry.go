package strategy

import (
	"sync"

	"github.com/ericfunman/boursicotor-sub000/internal/types"
)

// Registry is an in-memory catalog of ticker and strategy identities. Live
// sessions borrow references into it; existence is checked at session start
// and by the reconciliation sweep.
type Registry struct {
	mu         sync.RWMutex
	tickers    map[string]bool
	strategies map[string]types.SignalFunc
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		tickers:    map[string]bool{},
		strategies: map[string]types.SignalFunc{},
	}
}

// RegisterTicker adds a ticker identity.
func (r *Registry) RegisterTicker(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tickers[id] = true
}

// RegisterStrategy adds a strategy under the given id.
func (r *Registry) RegisterStrategy(id string, fn types.SignalFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.strategies[id] = fn
}

// RemoveTicker deletes a ticker identity.
func (r *Registry) RemoveTicker(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tickers, id)
}

// RemoveStrategy deletes a strategy identity.
func (r *Registry) RemoveStrategy(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.strategies, id)
}

// TickerExists reports whether the ticker identity exists.
func (r *Registry) TickerExists(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.tickers[id]
}

// StrategyExists reports whether the strategy identity exists.
func (r *Registry) StrategyExists(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.strategies[id]

	return ok
}

// Resolve returns the signal function registered under id.
func (r *Registry) Resolve(id string) (types.SignalFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	fn, ok := r.strategies[id]

	return fn, ok
}
