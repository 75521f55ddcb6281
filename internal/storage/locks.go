package db

import (
	"context"
	"fmt"
)

// TryAdvisoryLock takes a transaction-scoped advisory lock. The lock is held
// until the transaction commits or rolls back, so it always lives on the
// same connection as the work it guards.
func (t *Tx) TryAdvisoryLock(ctx context.Context, lockID int64) (bool, error) {
	var acquired bool

	if err := t.tx.QueryRow(ctx, "SELECT pg_try_advisory_xact_lock($1)", lockID).Scan(&acquired); err != nil {
		return false, fmt.Errorf("try acquire advisory lock: %w", err)
	}

	return acquired, nil
}
