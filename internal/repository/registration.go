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

type registrationRepository struct {
	db *sqlx.DB
}

func newRegistrationRepository(db *sqlx.DB) *registrationRepository {
	return &registrationRepository{
		db: db,
	}
}

const registrationColumns = `id, event_id, email, first_name, last_name, phone, distributor_id, verified_by_registry, form_data, attendee_count, created_at, updated_at, deleted_at`

func (r *registrationRepository) GetOneByID(ctx context.Context, id uuid.UUID) (*domain.Registration, error) {
	const op = "repository.registration.GetOneByID"

	query := `
	SELECT ` + registrationColumns + `
	FROM registration
	WHERE id = uuid_to_bin(?) AND deleted_at IS NULL;
	`

	var registration domain.Registration
	if err := r.db.GetContext(ctx, &registration, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("%s: select registration failed: %w", op, err)
	}

	return &registration, nil
}

func (r *registrationRepository) GetByEventAndEmail(ctx context.Context, eventID uuid.UUID, email string) (*domain.Registration, error) {
	const op = "repository.registration.GetByEventAndEmail"

	query := `
	SELECT ` + registrationColumns + `
	FROM registration
	WHERE event_id = uuid_to_bin(?) AND email = ? AND deleted_at IS NULL;
	`

	var registration domain.Registration
	if err := r.db.GetContext(ctx, &registration, query, eventID, email); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("%s: select registration failed: %w", op, err)
	}

	return &registration, nil
}

// Upsert leans on the (event_id, email) unique key: a second submission for
// the same identity updates the existing row instead of duplicating it. The
// row is re-read afterwards because the surviving id is the original one,
// not the id generated for the insert attempt.
func (r *registrationRepository) Upsert(ctx context.Context, registration *domain.Registration) (*domain.Registration, error) {
	const op = "repository.registration.Upsert"

	const query = `
	INSERT INTO registration
	(id, event_id, email, first_name, last_name, phone, distributor_id, verified_by_registry, form_data, attendee_count)
	VALUES (uuid_to_bin(:id), uuid_to_bin(:event_id), :email, :first_name, :last_name, :phone, :distributor_id, :verified_by_registry, :form_data, :attendee_count)
	ON DUPLICATE KEY UPDATE
	first_name = VALUES(first_name),
	last_name = VALUES(last_name),
	phone = VALUES(phone),
	distributor_id = VALUES(distributor_id),
	verified_by_registry = VALUES(verified_by_registry),
	form_data = VALUES(form_data),
	attendee_count = VALUES(attendee_count),
	deleted_at = NULL;
	`

	if _, err := r.db.NamedExecContext(ctx, query, registration); err != nil {
		return nil, fmt.Errorf("%s: upsert registration failed: %w", op, err)
	}

	stored, err := r.GetByEventAndEmail(ctx, registration.EventID, registration.Email)
	if err != nil {
		return nil, fmt.Errorf("%s: reread registration failed: %w", op, err)
	}

	return stored, nil
}

func (r *registrationRepository) UpdateByID(ctx context.Context, registration *domain.Registration) error {
	const op = "repository.registration.UpdateByID"

	const query = `
	UPDATE registration
	SET first_name = :first_name,
	    last_name = :last_name,
	    phone = :phone,
	    distributor_id = :distributor_id,
	    form_data = :form_data,
	    attendee_count = :attendee_count
	WHERE id = uuid_to_bin(:id) AND deleted_at IS NULL;
	`

	result, err := r.db.NamedExecContext(ctx, query, registration)
	if err != nil {
		return fmt.Errorf("%s: update registration failed: %w", op, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: rows affected failed: %w", op, err)
	}
	if rows == 0 {
		return domain.ErrNoRowsAffected
	}

	return nil
}

// ReplaceAttendees swaps the extra ticket holders of a registration in one
// transaction, so a resubmission never leaves a partial list.
func (r *registrationRepository) ReplaceAttendees(ctx context.Context, registrationID uuid.UUID, attendees []domain.Attendee) error {
	const op = "repository.registration.ReplaceAttendees"

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: begin tx failed: %w", op, err)
	}
	defer tx.Rollback() //nolint:errcheck

	const deleteQuery = `DELETE FROM registration_attendee WHERE registration_id = uuid_to_bin(?);`
	if _, err := tx.ExecContext(ctx, deleteQuery, registrationID); err != nil {
		return fmt.Errorf("%s: delete attendees failed: %w", op, err)
	}

	if len(attendees) > 0 {
		const insertQuery = `
		INSERT INTO registration_attendee (id, registration_id, first_name, last_name, email, phone)
		VALUES (uuid_to_bin(:id), uuid_to_bin(:registration_id), :first_name, :last_name, :email, :phone);
		`
		if _, err := tx.NamedExecContext(ctx, insertQuery, attendees); err != nil {
			return fmt.Errorf("%s: insert attendees failed: %w", op, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: commit failed: %w", op, err)
	}

	return nil
}

func (r *registrationRepository) GetAttendees(ctx context.Context, registrationID uuid.UUID) ([]domain.Attendee, error) {
	const op = "repository.registration.GetAttendees"

	const query = `
	SELECT id, registration_id, first_name, last_name, email, phone, created_at
	FROM registration_attendee
	WHERE registration_id = uuid_to_bin(?)
	ORDER BY id;
	`

	var attendees []domain.Attendee
	if err := r.db.SelectContext(ctx, &attendees, query, registrationID); err != nil {
		return nil, fmt.Errorf("%s: select attendees failed: %w", op, err)
	}

	return attendees, nil
}
