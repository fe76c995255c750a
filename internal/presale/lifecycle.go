package presale

import (
	"context"
	"fmt"

	"presale-ledger/internal/domain"
	"presale-ledger/internal/storage"
)

// Advance computes the status implied by now. It never moves a status
// backwards and reports whether anything changed.
func Advance(now uint64, cfg *domain.Config, st domain.SaleState) (domain.SaleState, bool) {
	switch {
	case st.Status == domain.StatusPending && now >= cfg.StartTime:
		st.Status = domain.StatusActive
		// The first call may already be past the end.
		next, _ := Advance(now, cfg, st)
		return next, true
	case st.Status == domain.StatusActive && now >= cfg.EndTime:
		if st.TotalRaised.GreaterThanOrEqual(cfg.SoftCap) {
			st.Status = domain.StatusSucceeded
		} else {
			st.Status = domain.StatusFailed
		}
		return st, true
	}
	return st, false
}

// AdvanceLifecycle loads the sale, advances it to now and saves the new
// status when it changed.
func AdvanceLifecycle(ctx context.Context, tx storage.Tx, now uint64) (*domain.Config, *domain.SaleState, error) {
	cfg, err := loadConfig(ctx, tx)
	if err != nil {
		return nil, nil, err
	}
	st, err := loadState(ctx, tx)
	if err != nil {
		return nil, nil, err
	}

	next, changed := Advance(now, cfg, *st)
	if changed {
		if err := tx.SaveState(ctx, &next); err != nil {
			return nil, nil, fmt.Errorf("save state: %w", err)
		}
	}
	return cfg, &next, nil
}
