package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eventpass/backend/internal/domain"
)

func setupMockQualifierDB(t *testing.T) (sqlmock.Sqlmock, *qualifierRepository) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return mock, newQualifierRepository(sqlx.NewDb(db, "sqlmock"))
}

var qualifierColumns = []string{
	"id", "event_id", "email", "distributor_id", "first_name", "last_name", "phone", "created_at",
}

func TestQualifierGetByEventAndEmail(t *testing.T) {
	mock, repo := setupMockQualifierDB(t)

	id := uuid.New()
	eventID := uuid.New()

	rows := sqlmock.NewRows(qualifierColumns).AddRow(
		id.String(), eventID.String(), "dana@corp.com", "D100", "Dana", "Reeve", "+15550001", time.Now(),
	)

	mock.ExpectQuery(`FROM event_qualifier`).
		WithArgs(eventID, "dana@corp.com").
		WillReturnRows(rows)

	qualifier, err := repo.GetByEventAndEmail(context.Background(), eventID, "dana@corp.com")

	require.NoError(t, err)
	assert.Equal(t, id, qualifier.ID)
	assert.Equal(t, "D100", qualifier.DistributorID)
	assert.Equal(t, "Dana", qualifier.FirstName)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestQualifierGetByEventAndEmailNotFound(t *testing.T) {
	mock, repo := setupMockQualifierDB(t)

	eventID := uuid.New()
	mock.ExpectQuery(`FROM event_qualifier`).
		WithArgs(eventID, "stranger@corp.com").
		WillReturnRows(sqlmock.NewRows(qualifierColumns))

	qualifier, err := repo.GetByEventAndEmail(context.Background(), eventID, "stranger@corp.com")

	require.ErrorIs(t, err, domain.ErrNotFound)
	assert.Nil(t, qualifier)

	require.NoError(t, mock.ExpectationsWereMet())
}
