package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/eventpass/backend/pkg/regflow"

	"github.com/google/uuid"
)

// FieldTemplateList is the ordered per-event field template set stored as a JSON column.
type FieldTemplateList []regflow.FieldTemplate

// Value реализует интерфейс driver.Valuer для сохранения в БД
func (f FieldTemplateList) Value() (driver.Value, error) {
	if f == nil {
		return nil, nil
	}
	return json.Marshal(f)
}

// Scan реализует интерфейс sql.Scanner для чтения из БД
func (f *FieldTemplateList) Scan(value interface{}) error {
	if value == nil {
		*f = nil
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("unsupported type for FieldTemplateList: %T", value)
	}

	return json.Unmarshal(bytes, f)
}

type Event struct {
	ID   uuid.UUID `db:"id" json:"id"`
	Slug string    `db:"slug" json:"slug"`
	Name string    `db:"name" json:"name"`

	// RegistrationMode is the explicit mode enum. Legacy events leave it empty
	// and carry only the two booleans below; regflow.ResolveMode consolidates.
	RegistrationMode      string            `db:"registration_mode" json:"registration_mode"`
	RequiresVerification  bool              `db:"requires_verification" json:"requires_verification"`
	RequiresQualification bool              `db:"requires_qualification" json:"requires_qualification"`
	MaxTickets            int               `db:"max_tickets" json:"max_tickets"`
	FieldTemplates        FieldTemplateList `db:"field_templates" json:"field_templates"`

	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt time.Time  `db:"updated_at" json:"updated_at"`
	DeletedAt *time.Time `db:"deleted_at" json:"deleted_at,omitempty"`
}

// Config maps the event row onto the registration-flow configuration shape.
func (e *Event) Config() regflow.EventConfig {
	return regflow.EventConfig{
		EventID:               e.ID.String(),
		Name:                  e.Name,
		Mode:                  regflow.Mode(e.RegistrationMode),
		RequiresVerification:  e.RequiresVerification,
		RequiresQualification: e.RequiresQualification,
		MaxTickets:            e.MaxTickets,
		Fields:                e.FieldTemplates,
	}
}
