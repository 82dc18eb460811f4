package patient

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinicdesk/clinicdesk/pkg/apperror"
)

// Service implements the patient registry and the cascade deletion
// coordinator. Child deleters are supplied at wiring time, ordered
// child-first; the patient row itself is always removed last.
type Service struct {
	patients PatientRepository
	tx       TxRunner
	children []ChildRecordDeleter
	log      zerolog.Logger
}

func NewService(patients PatientRepository, tx TxRunner, log zerolog.Logger, children ...ChildRecordDeleter) *Service {
	return &Service{
		patients: patients,
		tx:       tx,
		children: children,
		log:      log,
	}
}

func validate(p *Patient) error {
	if p.Name == "" {
		return apperror.Validationf("name is required")
	}
	if p.Age < 0 {
		return apperror.Validationf("age must not be negative")
	}
	if p.Gender == "" {
		return apperror.Validationf("gender is required")
	}
	return nil
}

func (s *Service) Register(ctx context.Context, p *Patient) error {
	if err := validate(p); err != nil {
		return err
	}
	if p.DateOfRegistration.IsZero() {
		p.DateOfRegistration = time.Now().UTC().Truncate(24 * time.Hour)
	}
	if err := s.patients.Create(ctx, p); err != nil {
		return err
	}
	s.log.Info().Str("patient_id", p.ID.String()).Str("patient_code", p.PatientCode).Msg("patient registered")
	return nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return s.patients.GetByID(ctx, id)
}

func (s *Service) GetByCode(ctx context.Context, code string) (*Patient, error) {
	return s.patients.GetByCode(ctx, code)
}

// Update applies a partial update to an existing patient: only the fields
// supplied in the input replace stored values. The patient code and archive
// state are not touched here.
func (s *Service) Update(ctx context.Context, id uuid.UUID, in *UpdateInput) (*Patient, error) {
	existing, err := s.patients.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.Name != nil {
		if *in.Name == "" {
			return nil, apperror.Validationf("name is required")
		}
		existing.Name = *in.Name
	}
	if in.Age != nil {
		if *in.Age < 0 {
			return nil, apperror.Validationf("age must not be negative")
		}
		existing.Age = *in.Age
	}
	if in.Gender != nil {
		if *in.Gender == "" {
			return nil, apperror.Validationf("gender is required")
		}
		existing.Gender = *in.Gender
	}
	applyOptional(&existing.Phone, in.Phone)
	applyOptional(&existing.Address, in.Address)
	applyOptional(&existing.ConditionDiagnosis, in.ConditionDiagnosis)
	applyOptional(&existing.Notes, in.Notes)
	applyOptional(&existing.ProfilePictureURL, in.ProfilePictureURL)
	if in.DateOfRegistration != nil && !in.DateOfRegistration.IsZero() {
		existing.DateOfRegistration = *in.DateOfRegistration
	}

	if err := s.patients.Update(ctx, existing); err != nil {
		return nil, err
	}
	return existing, nil
}

// applyOptional copies a supplied optional field onto the record. Nil input
// leaves the field alone; an empty string clears it.
func applyOptional(dst **string, v *string) {
	if v == nil {
		return
	}
	if *v == "" {
		*dst = nil
		return
	}
	*dst = v
}

func (s *Service) List(ctx context.Context, filter ListFilter, limit, offset int) ([]*Patient, int, error) {
	return s.patients.List(ctx, filter, limit, offset)
}

func (s *Service) Archive(ctx context.Context, id uuid.UUID) error {
	now := time.Now().UTC()
	if err := s.patients.SetArchived(ctx, id, &now); err != nil {
		return err
	}
	s.log.Info().Str("patient_id", id.String()).Msg("patient archived")
	return nil
}

func (s *Service) Unarchive(ctx context.Context, id uuid.UUID) error {
	return s.patients.SetArchived(ctx, id, nil)
}

// Delete removes the patient and every dependent clinical record in one
// transaction. The existence check runs first so an unknown id fails with
// NotFoundError before anything is touched. A retry after a mid-flight
// failure is safe: the transaction either committed fully or not at all.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	exists, err := s.patients.Exists(ctx, id)
	if err != nil {
		return err
	}
	if !exists {
		return apperror.NotFound("patient", id.String())
	}

	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		for _, child := range s.children {
			if err := child.DeleteByPatient(ctx, id); err != nil {
				return err
			}
		}
		return s.patients.Delete(ctx, id)
	})
	if err != nil {
		s.log.Error().Err(err).Str("patient_id", id.String()).Msg("cascade delete failed")
		return err
	}
	s.log.Info().Str("patient_id", id.String()).Msg("patient and dependent records deleted")
	return nil
}
