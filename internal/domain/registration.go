package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// FormData holds the dynamic per-event form values as a JSON column.
type FormData map[string]string

// Value реализует интерфейс driver.Valuer для сохранения в БД
func (d FormData) Value() (driver.Value, error) {
	if d == nil {
		return nil, nil
	}
	return json.Marshal(d)
}

// Scan реализует интерфейс sql.Scanner для чтения из БД
func (d *FormData) Scan(value interface{}) error {
	if value == nil {
		*d = nil
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("unsupported type for FormData: %T", value)
	}

	return json.Unmarshal(bytes, d)
}

// Registration is the primary attendee record for an (event, email) pair.
// The unique key on (event_id, email) is what makes create an idempotent upsert.
type Registration struct {
	ID      uuid.UUID `db:"id" json:"id"`
	EventID uuid.UUID `db:"event_id" json:"event_id"`

	Email              string `db:"email" json:"email"`
	FirstName          string `db:"first_name" json:"first_name"`
	LastName           string `db:"last_name" json:"last_name"`
	Phone              string `db:"phone" json:"phone"`
	DistributorID      string `db:"distributor_id" json:"distributor_id"`
	VerifiedByRegistry bool   `db:"verified_by_registry" json:"verified_by_registry"`

	FormData      FormData `db:"form_data" json:"form_data"`
	AttendeeCount int      `db:"attendee_count" json:"attendee_count"`

	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt time.Time  `db:"updated_at" json:"updated_at"`
	DeletedAt *time.Time `db:"deleted_at" json:"deleted_at,omitempty"`
}

// Attendee is an extra ticket holder submitted alongside the primary
// registration in open_anonymous mode.
type Attendee struct {
	ID             uuid.UUID `db:"id" json:"id"`
	RegistrationID uuid.UUID `db:"registration_id" json:"registration_id"`
	FirstName      string    `db:"first_name" json:"first_name"`
	LastName       string    `db:"last_name" json:"last_name"`
	Email          string    `db:"email" json:"email"`
	Phone          string    `db:"phone" json:"phone"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}
