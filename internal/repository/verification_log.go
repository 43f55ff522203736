package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/eventpass/backend/internal/domain"

	"github.com/jmoiron/sqlx"
)

type verificationLogRepository struct {
	db *sqlx.DB
}

func newVerificationLogRepository(db *sqlx.DB) *verificationLogRepository {
	return &verificationLogRepository{
		db: db,
	}
}

func (r *verificationLogRepository) Insert(ctx context.Context, entry *domain.VerificationLogEntry) error {
	const op = "repository.verificationLog.Insert"

	const query = `
	INSERT INTO verification_log (id, event_id, email, action)
	VALUES (uuid_to_bin(:id), uuid_to_bin(:event_id), :email, :action);
	`

	res, err := r.db.NamedExecContext(ctx, query, entry)
	if err != nil {
		return fmt.Errorf("%s: insert log entry failed: %w", op, err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: get rows affected failed: %w", op, err)
	}

	if rows != 1 {
		return fmt.Errorf("%s: expected 1 row affected, got %d", op, rows)
	}

	return nil
}

// DeleteOlderThan prunes audit rows past the retention horizon. Called by
// the janitor on its schedule.
func (r *verificationLogRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	const op = "repository.verificationLog.DeleteOlderThan"

	const query = `DELETE FROM verification_log WHERE created_at < ?;`

	res, err := r.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("%s: delete log entries failed: %w", op, err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: get rows affected failed: %w", op, err)
	}

	return rows, nil
}
