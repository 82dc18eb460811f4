package patientfile

import (
	"context"

	"github.com/google/uuid"
)

type FileRepository interface {
	Create(ctx context.Context, f *PatientFile) error
	GetByID(ctx context.Context, id uuid.UUID) (*PatientFile, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*PatientFile, error)
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteByPatient(ctx context.Context, patientID uuid.UUID) error
}

// PatientDirectory is the slice of the patient registry this package needs.
type PatientDirectory interface {
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
}
