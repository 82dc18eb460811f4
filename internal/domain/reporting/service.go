package reporting

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/clinicdesk/clinicdesk/internal/domain/patient"
)

// PatientSource supplies the full patient collection in created_at order.
type PatientSource interface {
	ListAll(ctx context.Context) ([]*patient.Patient, error)
}

// Counter reports the size of one child collection.
type Counter interface {
	Count(ctx context.Context) (int, error)
}

type Service struct {
	patients     PatientSource
	appointments Counter
	medications  Counter
	visits       Counter
	log          zerolog.Logger
}

func NewService(patients PatientSource, appointments, medications, visits Counter, log zerolog.Logger) *Service {
	return &Service{
		patients:     patients,
		appointments: appointments,
		medications:  medications,
		visits:       visits,
		log:          log,
	}
}

// Overview reads the patient collection once and aggregates from that single
// snapshot. The child counts are independent reads; cross-collection
// consistency is not required.
func (s *Service) Overview(ctx context.Context) (*Overview, error) {
	patients, err := s.patients.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	var totals Totals
	if totals.Appointments, err = s.appointments.Count(ctx); err != nil {
		return nil, err
	}
	if totals.Medications, err = s.medications.Count(ctx); err != nil {
		return nil, err
	}
	if totals.Visits, err = s.visits.Count(ctx); err != nil {
		return nil, err
	}
	return Aggregate(patients, totals), nil
}
