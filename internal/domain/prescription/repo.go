package prescription

import (
	"context"

	"github.com/google/uuid"

	"github.com/clinicdesk/clinicdesk/internal/domain/clinical"
)

type PrescriptionRepository interface {
	Create(ctx context.Context, p *Prescription) error
	GetByID(ctx context.Context, id uuid.UUID) (*Prescription, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Prescription, error)
	DeleteByPatient(ctx context.Context, patientID uuid.UUID) error
	Count(ctx context.Context) (int, error)
}

// MedicationSource resolves medication records for compose-time validation
// and for re-resolved rendering. The clinical medication repository
// satisfies it.
type MedicationSource interface {
	GetByIDs(ctx context.Context, ids []uuid.UUID) ([]*clinical.Medication, error)
}

// TxRunner executes fn inside a single transaction so the prescription
// header and its snapshot items commit together.
type TxRunner interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// PatientDirectory is the slice of the patient registry this package needs.
type PatientDirectory interface {
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
	NameOf(ctx context.Context, id uuid.UUID) (string, error)
}
