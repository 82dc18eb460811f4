package patient

import (
	"time"

	"github.com/google/uuid"
)

// Patient is the registry record for one person under the practice's care.
// PatientCode is the human-facing identifier assigned by the database on
// registration; it never changes afterwards.
type Patient struct {
	ID                  uuid.UUID  `db:"id" json:"id"`
	PatientCode         string     `db:"patient_code" json:"patient_code"`
	Name                string     `db:"name" json:"name"`
	Age                 int        `db:"age" json:"age"`
	Gender              string     `db:"gender" json:"gender"`
	Phone               *string    `db:"phone" json:"phone,omitempty"`
	Address             *string    `db:"address" json:"address,omitempty"`
	ConditionDiagnosis  *string    `db:"condition_diagnosis" json:"condition_diagnosis,omitempty"`
	Notes               *string    `db:"notes" json:"notes,omitempty"`
	ProfilePictureURL   *string    `db:"profile_picture_url" json:"profile_picture_url,omitempty"`
	DateOfRegistration  time.Time  `db:"date_of_registration" json:"date_of_registration"`
	NextAppointmentDate *time.Time `db:"next_appointment_date" json:"next_appointment_date,omitempty"`
	ArchivedAt          *time.Time `db:"archived_at" json:"archived_at,omitempty"`
	CreatedAt           time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time  `db:"updated_at" json:"updated_at"`
}

// Archived reports whether the patient is hidden from default listings.
func (p *Patient) Archived() bool {
	return p.ArchivedAt != nil
}

// UpdateInput carries a partial patient update. Nil fields are left
// unchanged; an optional field supplied as an empty string is cleared.
type UpdateInput struct {
	Name               *string    `json:"name"`
	Age                *int       `json:"age"`
	Gender             *string    `json:"gender"`
	Phone              *string    `json:"phone"`
	Address            *string    `json:"address"`
	ConditionDiagnosis *string    `json:"condition_diagnosis"`
	Notes              *string    `json:"notes"`
	ProfilePictureURL  *string    `json:"profile_picture_url"`
	DateOfRegistration *time.Time `json:"date_of_registration"`
}

// ListFilter narrows List results. Search matches name and patient code
// case-insensitively and phone verbatim.
type ListFilter struct {
	Search          string
	IncludeArchived bool
}
