package presale

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/mod/semver"

	"presale-ledger/internal/domain"
	"presale-ledger/internal/storage"
)

// MigrateMsg is the upgrade request. It carries no parameters yet.
type MigrateMsg struct{}

// Migrate moves stored state to ContractVersion. Only strictly older
// versions of the same contract may be migrated; no data changes today.
func Migrate(ctx context.Context, tx storage.Tx, _ MigrateMsg) (*Response, error) {
	stored, err := tx.GetVersion(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrNotInstantiated
	}
	if err != nil {
		return nil, fmt.Errorf("load version: %w", err)
	}
	if stored.Contract != ContractName {
		return nil, fmt.Errorf("%w: %s", ErrWrongContract, stored.Contract)
	}
	if err := checkOlder(stored.Version, ContractVersion); err != nil {
		return nil, err
	}

	if err := tx.SaveVersion(ctx, &domain.ContractVersion{Contract: ContractName, Version: ContractVersion}); err != nil {
		return nil, fmt.Errorf("save version: %w", err)
	}
	return newResponse("migrate").
		attr("from_version", stored.Version).
		attr("new_version", ContractVersion), nil
}

// checkOlder fails unless stored < current.
func checkOlder(stored, current string) error {
	if !semver.IsValid(stored) {
		return fmt.Errorf("%w: %q", ErrInvalidVersion, stored)
	}
	if semver.Compare(stored, current) >= 0 {
		return fmt.Errorf("%w: stored %s, code %s", ErrCannotMigrate, stored, current)
	}
	return nil
}
