package session

import (
	"go.uber.org/zap"

	"github.com/ericfunman/boursicotor-sub000/internal/logger"
)

// Reconciler is the background sweep that removes sessions whose ticker or
// strategy reference no longer exists. The live loop never performs this
// check itself; orphans are caught here, stopped if running, and deleted
// rather than left dangling.
type Reconciler struct {
	store    *Store
	registry RefRegistry
	trader   *AutoTrader
	logger   *logger.Logger
}

// NewReconciler creates a sweep over the given store and registry. trader
// may be nil when no workers can be running (e.g. an offline cleanup tool).
func NewReconciler(store *Store, registry RefRegistry, trader *AutoTrader, log *logger.Logger) *Reconciler {
	return &Reconciler{
		store:    store,
		registry: registry,
		trader:   trader,
		logger:   log,
	}
}

// Sweep scans every persisted session and removes the orphaned ones,
// stopping their workers first. Returns the number of sessions removed.
func (r *Reconciler) Sweep() (int, error) {
	sessions, err := r.store.List()
	if err != nil {
		return 0, err
	}

	removed := 0

	for _, sess := range sessions {
		if err := ValidateRefs(r.registry, sess); err == nil {
			continue
		}

		if r.trader != nil && r.trader.IsRunning(sess.ID) {
			if err := r.trader.Stop(sess.ID); err != nil {
				r.logger.Warn("failed to stop orphaned session before removal",
					zap.String("session_id", sess.ID),
					zap.Error(err),
				)
			}
		}

		if err := r.store.Delete(sess.ID); err != nil {
			r.logger.Error("failed to delete orphaned session",
				zap.String("session_id", sess.ID),
				zap.Error(err),
			)

			continue
		}

		r.logger.Info("removed orphaned session",
			zap.String("session_id", sess.ID),
			zap.String("ticker", sess.Ticker),
			zap.String("strategy", sess.Strategy),
		)

		removed++
	}

	return removed, nil
}
