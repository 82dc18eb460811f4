package patient

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type PatientRepository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	GetByCode(ctx context.Context, code string) (*Patient, error)
	Update(ctx context.Context, p *Patient) error
	List(ctx context.Context, filter ListFilter, limit, offset int) ([]*Patient, int, error)
	// ListAll returns the full collection ordered by created_at ascending.
	// Used by the reporting aggregator, which needs one consistent snapshot.
	ListAll(ctx context.Context) ([]*Patient, error)
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
	NameOf(ctx context.Context, id uuid.UUID) (string, error)
	SetNextAppointmentDate(ctx context.Context, id uuid.UUID, date *time.Time) error
	SetArchived(ctx context.Context, id uuid.UUID, at *time.Time) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// ChildRecordDeleter removes every record of one collection belonging to a
// patient. The cascade delete runs each deleter inside a shared transaction
// carried in ctx; deleting zero rows is not an error.
type ChildRecordDeleter interface {
	DeleteByPatient(ctx context.Context, patientID uuid.UUID) error
}

// TxRunner executes fn inside a single transaction. Repositories reached
// through the ctx passed to fn operate on that transaction.
type TxRunner interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}
