package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/eventpass/backend/internal/domain"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type qualifierRepository struct {
	db *sqlx.DB
}

func newQualifierRepository(db *sqlx.DB) *qualifierRepository {
	return &qualifierRepository{
		db: db,
	}
}

// GetByEventAndEmail resolves the qualification check: present means
// eligible. Emails in the qualifier table are stored normalized.
func (r *qualifierRepository) GetByEventAndEmail(ctx context.Context, eventID uuid.UUID, email string) (*domain.Qualifier, error) {
	const op = "repository.qualifier.GetByEventAndEmail"

	const query = `
	SELECT id, event_id, email, distributor_id, first_name, last_name, phone, created_at
	FROM event_qualifier
	WHERE event_id = uuid_to_bin(?) AND email = ?;
	`

	var qualifier domain.Qualifier
	if err := r.db.GetContext(ctx, &qualifier, query, eventID, email); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("%s: select qualifier failed: %w", op, err)
	}

	return &qualifier, nil
}
