package compat

import (
	"context"
	"errors"
	"fmt"
)

// storeVersion reads the write counter. It changes whenever any process
// commits a link or delete against the database.
func storeVersion(ctx context.Context, db DBTX) (int64, error) {
	var v int64
	if err := db.QueryRowContext(ctx, `SELECT version FROM compat_state WHERE id = 1`).Scan(&v); err != nil {
		return 0, fmt.Errorf("reading store version: %w", err)
	}
	return v, nil
}

// bumpVersion increments the write counter inside tx.
func bumpVersion(ctx context.Context, tx DBTX) error {
	res, err := tx.ExecContext(ctx, `UPDATE compat_state SET version = version + 1 WHERE id = 1`)
	if err != nil {
		return fmt.Errorf("bumping store version: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return errors.New("bumping store version: compat_state row missing")
	}
	return nil
}
