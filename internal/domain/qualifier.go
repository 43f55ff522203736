package domain

import (
	"time"

	"github.com/google/uuid"
)

// Qualifier is one entry of an event's eligibility roster. Only events in
// qualified_verified mode carry qualifiers.
type Qualifier struct {
	ID            uuid.UUID `db:"id" json:"id"`
	EventID       uuid.UUID `db:"event_id" json:"event_id"`
	Email         string    `db:"email" json:"email"`
	DistributorID string    `db:"distributor_id" json:"distributor_id"`
	FirstName     string    `db:"first_name" json:"first_name"`
	LastName      string    `db:"last_name" json:"last_name"`
	Phone         string    `db:"phone" json:"phone"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}
