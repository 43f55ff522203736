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

type eventRepository struct {
	db *sqlx.DB
}

func newEventRepository(db *sqlx.DB) *eventRepository {
	return &eventRepository{
		db: db,
	}
}

func (r *eventRepository) GetOneByID(ctx context.Context, id uuid.UUID) (*domain.Event, error) {
	const query = `
	SELECT id, slug, name, registration_mode, requires_verification, requires_qualification, max_tickets, field_templates, created_at, updated_at, deleted_at
	FROM event
	WHERE id = uuid_to_bin(?) AND deleted_at IS NULL;
	`
	var event domain.Event
	if err := r.db.GetContext(ctx, &event, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("select event by id failed: %w", err)
	}

	return &event, nil
}

func (r *eventRepository) GetBySlug(ctx context.Context, slug string) (*domain.Event, error) {
	const query = `
	SELECT id, slug, name, registration_mode, requires_verification, requires_qualification, max_tickets, field_templates, created_at, updated_at, deleted_at
	FROM event
	WHERE slug = ? AND deleted_at IS NULL;
	`
	var event domain.Event
	if err := r.db.GetContext(ctx, &event, query, slug); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("select event by slug failed: %w", err)
	}

	return &event, nil
}
