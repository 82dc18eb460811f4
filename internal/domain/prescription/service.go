package prescription

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinicdesk/clinicdesk/internal/domain/clinical"
	"github.com/clinicdesk/clinicdesk/pkg/apperror"
)

type Service struct {
	prescriptions PrescriptionRepository
	medications   MedicationSource
	interactions  InteractionRepository
	patients      PatientDirectory
	tx            TxRunner
	clinicName    string
	clinicAddress string
	log           zerolog.Logger
}

func NewService(
	prescriptions PrescriptionRepository,
	medications MedicationSource,
	interactions InteractionRepository,
	patients PatientDirectory,
	tx TxRunner,
	clinicName, clinicAddress string,
	log zerolog.Logger,
) *Service {
	return &Service{
		prescriptions: prescriptions,
		medications:   medications,
		interactions:  interactions,
		patients:      patients,
		tx:            tx,
		clinicName:    clinicName,
		clinicAddress: clinicAddress,
		log:           log,
	}
}

// Compose validates the request against the medications' current state and
// persists an immutable snapshot. Re-invoking with identical input creates a
// second prescription; that is expected.
func (s *Service) Compose(ctx context.Context, p *Prescription) error {
	if p.PatientID == uuid.Nil {
		return apperror.Validationf("patient_id is required")
	}
	exists, err := s.patients.Exists(ctx, p.PatientID)
	if err != nil {
		return err
	}
	if !exists {
		return apperror.NotFound("patient", p.PatientID.String())
	}
	if p.DoctorName == "" {
		return apperror.Validationf("doctor_name is required")
	}
	if len(p.MedicationIDs) == 0 {
		return apperror.Validationf("at least one medication is required")
	}

	meds, err := s.medications.GetByIDs(ctx, p.MedicationIDs)
	if err != nil {
		return err
	}
	byID := make(map[uuid.UUID]*clinical.Medication, len(meds))
	for _, m := range meds {
		byID[m.ID] = m
	}

	p.Items = make([]Item, 0, len(p.MedicationIDs))
	for _, id := range p.MedicationIDs {
		m, ok := byID[id]
		if !ok {
			return apperror.Validationf("medication %s does not exist", id)
		}
		if m.PatientID != p.PatientID {
			return apperror.Validationf("medication %s does not belong to patient %s", id, p.PatientID)
		}
		if m.Status != clinical.MedActive {
			return apperror.Validationf("medication %s is not active", id)
		}
		p.Items = append(p.Items, Item{
			MedicationID: m.ID,
			DrugName:     m.DrugName,
			Dosage:       m.Dosage,
			Frequency:    m.Frequency,
			Duration:     m.Duration,
			Instructions: m.Instructions,
		})
	}

	if p.PrescriptionDate.IsZero() {
		p.PrescriptionDate = time.Now().UTC().Truncate(24 * time.Hour)
	}
	if p.ClinicName == nil && s.clinicName != "" {
		name := s.clinicName
		p.ClinicName = &name
	}
	if p.ClinicAddress == nil && s.clinicAddress != "" {
		addr := s.clinicAddress
		p.ClinicAddress = &addr
	}

	// The header row and its snapshot items must commit together; a partial
	// snapshot would render a document missing medications.
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		return s.prescriptions.Create(ctx, p)
	})
	if err != nil {
		return err
	}
	s.log.Info().
		Str("prescription_id", p.ID.String()).
		Str("patient_id", p.PatientID.String()).
		Int("medications", len(p.Items)).
		Msg("prescription composed")
	return nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Prescription, error) {
	return s.prescriptions.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, patientID uuid.UUID) ([]*Prescription, error) {
	return s.prescriptions.ListByPatient(ctx, patientID)
}

// Render produces the document from the stored snapshot.
func (s *Service) Render(ctx context.Context, id uuid.UUID) (*Document, error) {
	p, err := s.prescriptions.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	name, err := s.patients.NameOf(ctx, p.PatientID)
	if err != nil {
		return nil, err
	}
	return BuildDocument(p, name), nil
}

// RenderResolved re-reads the referenced medications and renders their
// current state, silently dropping ids that have since been deleted.
func (s *Service) RenderResolved(ctx context.Context, id uuid.UUID) (*Document, error) {
	p, err := s.prescriptions.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	name, err := s.patients.NameOf(ctx, p.PatientID)
	if err != nil {
		return nil, err
	}
	meds, err := s.medications.GetByIDs(ctx, p.MedicationIDs)
	if err != nil {
		return nil, err
	}
	return BuildResolvedDocument(p, name, meds), nil
}
