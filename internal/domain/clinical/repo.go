package clinical

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type AppointmentRepository interface {
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Appointment, int, error)
	// ListOnDate and ListUpcoming return rows ordered by date then time,
	// entries without a time last.
	ListOnDate(ctx context.Context, date time.Time) ([]*Appointment, error)
	ListUpcoming(ctx context.Context, after time.Time) ([]*Appointment, error)
	// TransitionStatus performs a compare-and-swap on the status column and
	// reports whether a row was updated.
	TransitionStatus(ctx context.Context, id uuid.UUID, from, to string) (bool, error)
	// NextScheduledDate returns the earliest scheduled appointment date for
	// the patient on or after the given day, or nil when there is none.
	NextScheduledDate(ctx context.Context, patientID uuid.UUID, onOrAfter time.Time) (*time.Time, error)
	// NextForPatient returns the patient's earliest scheduled appointment on
	// or after the given day, or nil when there is none.
	NextForPatient(ctx context.Context, patientID uuid.UUID, onOrAfter time.Time) (*Appointment, error)
	SetReminderSent(ctx context.Context, id uuid.UUID, sent bool) error
	DeleteByPatient(ctx context.Context, patientID uuid.UUID) error
	Count(ctx context.Context) (int, error)
}

type MedicationRepository interface {
	Create(ctx context.Context, m *Medication) error
	GetByID(ctx context.Context, id uuid.UUID) (*Medication, error)
	// GetByIDs returns the found records; missing ids are simply absent.
	GetByIDs(ctx context.Context, ids []uuid.UUID) ([]*Medication, error)
	Update(ctx context.Context, m *Medication) error
	ListByPatient(ctx context.Context, patientID uuid.UUID, activeOnly bool) ([]*Medication, error)
	DeleteByPatient(ctx context.Context, patientID uuid.UUID) error
	Count(ctx context.Context) (int, error)
}

type AllergyRepository interface {
	Create(ctx context.Context, a *Allergy) error
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Allergy, error)
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteByPatient(ctx context.Context, patientID uuid.UUID) error
}

type VisitNoteRepository interface {
	Create(ctx context.Context, v *VisitNote) error
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*VisitNote, error)
	DeleteByPatient(ctx context.Context, patientID uuid.UUID) error
	Count(ctx context.Context) (int, error)
}

// PatientDirectory is the slice of the patient registry this package needs:
// existence checks before attaching records, and maintenance of the
// denormalized next-appointment pointer.
type PatientDirectory interface {
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
	SetNextAppointmentDate(ctx context.Context, id uuid.UUID, date *time.Time) error
}
