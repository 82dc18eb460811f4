package clinical

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinicdesk/clinicdesk/pkg/apperror"
)

type Service struct {
	appointments AppointmentRepository
	medications  MedicationRepository
	allergies    AllergyRepository
	visitNotes   VisitNoteRepository
	patients     PatientDirectory
	log          zerolog.Logger
}

func NewService(
	appts AppointmentRepository,
	meds MedicationRepository,
	allergies AllergyRepository,
	notes VisitNoteRepository,
	patients PatientDirectory,
	log zerolog.Logger,
) *Service {
	return &Service{
		appointments: appts,
		medications:  meds,
		allergies:    allergies,
		visitNotes:   notes,
		patients:     patients,
		log:          log,
	}
}

func today() time.Time {
	return time.Now().UTC().Truncate(24 * time.Hour)
}

func (s *Service) requirePatient(ctx context.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return apperror.Validationf("patient_id is required")
	}
	exists, err := s.patients.Exists(ctx, id)
	if err != nil {
		return err
	}
	if !exists {
		return apperror.NotFound("patient", id.String())
	}
	return nil
}

// -- Appointments --

// Schedule creates an appointment in the scheduled state and writes the
// patient's next-appointment pointer to the new date unconditionally, even
// when an earlier scheduled appointment exists. The pointer is corrected on
// every later transition.
func (s *Service) Schedule(ctx context.Context, a *Appointment) error {
	if err := s.requirePatient(ctx, a.PatientID); err != nil {
		return err
	}
	if a.Date.IsZero() {
		return apperror.Validationf("appointment_date is required")
	}
	if a.Time != nil {
		if _, err := time.Parse("15:04", *a.Time); err != nil {
			return apperror.Validationf("appointment_time must be HH:MM, got %q", *a.Time)
		}
	}
	if a.Status != "" && a.Status != ApptScheduled {
		return apperror.Validationf("appointments are always created as scheduled")
	}
	a.Status = ApptScheduled
	a.ReminderSent = false

	if err := s.appointments.Create(ctx, a); err != nil {
		return err
	}
	date := a.Date
	if err := s.patients.SetNextAppointmentDate(ctx, a.PatientID, &date); err != nil {
		s.log.Error().Err(err).Str("patient_id", a.PatientID.String()).
			Msg("appointment created but next appointment pointer not updated")
		return apperror.Persistence("appointment.sync_next_visit", err)
	}
	return nil
}

func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.appointments.GetByID(ctx, id)
}

func (s *Service) Complete(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.transition(ctx, id, ApptCompleted)
}

func (s *Service) Cancel(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.transition(ctx, id, ApptCancelled)
}

// MarkNoShow records that the patient did not attend. It is an explicit
// operator action; appointments never expire into this state on their own.
func (s *Service) MarkNoShow(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.transition(ctx, id, ApptNoShow)
}

// transition moves a scheduled appointment to a terminal state with a
// compare-and-swap, then recomputes the owning patient's next-appointment
// pointer from the remaining scheduled appointments.
func (s *Service) transition(ctx context.Context, id uuid.UUID, to string) (*Appointment, error) {
	if !terminalApptStatuses[to] {
		return nil, apperror.Validationf("unknown appointment status: %s", to)
	}

	swapped, err := s.appointments.TransitionStatus(ctx, id, ApptScheduled, to)
	if err != nil {
		return nil, err
	}
	appt, err := s.appointments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !swapped {
		// The row exists but was not in the scheduled state: a concurrent
		// caller or an earlier transition got there first.
		return nil, &apperror.InvalidStateTransitionError{
			Resource: "appointment", From: appt.Status, To: to,
		}
	}

	// The status change has committed at this point, so a pointer sync
	// failure is reported as its own persistence error rather than hidden.
	next, err := s.appointments.NextScheduledDate(ctx, appt.PatientID, today())
	if err != nil {
		s.log.Error().Err(err).Str("patient_id", appt.PatientID.String()).
			Msg("appointment transitioned but next appointment date not recomputed")
		return nil, apperror.Persistence("appointment.sync_next_visit", err)
	}
	if err := s.patients.SetNextAppointmentDate(ctx, appt.PatientID, next); err != nil {
		s.log.Error().Err(err).Str("patient_id", appt.PatientID.String()).
			Msg("appointment transitioned but next appointment pointer not updated")
		return nil, apperror.Persistence("appointment.sync_next_visit", err)
	}
	return appt, nil
}

func (s *Service) AppointmentsOn(ctx context.Context, date time.Time) ([]*Appointment, error) {
	return s.appointments.ListOnDate(ctx, date)
}

func (s *Service) TodaysAppointments(ctx context.Context) ([]*Appointment, error) {
	return s.appointments.ListOnDate(ctx, today())
}

func (s *Service) UpcomingAppointments(ctx context.Context) ([]*Appointment, error) {
	return s.appointments.ListUpcoming(ctx, today())
}

func (s *Service) ListAppointments(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
	return s.appointments.ListByPatient(ctx, patientID, limit, offset)
}

func (s *Service) SetReminderSent(ctx context.Context, id uuid.UUID) error {
	return s.appointments.SetReminderSent(ctx, id, true)
}

// -- Medications --

func (s *Service) AddMedication(ctx context.Context, m *Medication) error {
	if err := s.requirePatient(ctx, m.PatientID); err != nil {
		return err
	}
	if m.DrugName == "" {
		return apperror.Validationf("drug_name is required")
	}
	if m.Dosage == "" {
		return apperror.Validationf("dosage is required")
	}
	if m.Frequency == "" {
		return apperror.Validationf("frequency is required")
	}
	if !validFrequencies[m.Frequency] {
		return apperror.Validationf("invalid frequency: %s", m.Frequency)
	}
	if m.Duration == "" {
		return apperror.Validationf("duration is required")
	}
	if m.Status == "" {
		m.Status = MedActive
	}
	if !validMedStatuses[m.Status] {
		return apperror.Validationf("invalid status: %s", m.Status)
	}
	if m.StartDate.IsZero() {
		m.StartDate = today()
	}
	return s.medications.Create(ctx, m)
}

func (s *Service) GetMedication(ctx context.Context, id uuid.UUID) (*Medication, error) {
	return s.medications.GetByID(ctx, id)
}

func (s *Service) UpdateMedication(ctx context.Context, id uuid.UUID, m *Medication) (*Medication, error) {
	existing, err := s.medications.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if m.Frequency != "" && !validFrequencies[m.Frequency] {
		return nil, apperror.Validationf("invalid frequency: %s", m.Frequency)
	}
	if m.Status != "" && !validMedStatuses[m.Status] {
		return nil, apperror.Validationf("invalid status: %s", m.Status)
	}

	if m.DrugName != "" {
		existing.DrugName = m.DrugName
	}
	if m.Dosage != "" {
		existing.Dosage = m.Dosage
	}
	if m.Frequency != "" {
		existing.Frequency = m.Frequency
	}
	if m.Duration != "" {
		existing.Duration = m.Duration
	}
	if !m.StartDate.IsZero() {
		existing.StartDate = m.StartDate
	}
	existing.EndDate = m.EndDate
	existing.Instructions = m.Instructions
	existing.PrescribedBy = m.PrescribedBy
	existing.Notes = m.Notes
	if m.Status != "" {
		existing.Status = m.Status
	}

	if err := s.medications.Update(ctx, existing); err != nil {
		return nil, err
	}
	return existing, nil
}

// UpdateMedicationStatus moves a course out of (or back into) the active
// state. An explicit action: nothing expires a medication automatically.
func (s *Service) UpdateMedicationStatus(ctx context.Context, id uuid.UUID, status string) (*Medication, error) {
	if !validMedStatuses[status] {
		return nil, apperror.Validationf("invalid status: %s", status)
	}
	existing, err := s.medications.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	existing.Status = status
	if err := s.medications.Update(ctx, existing); err != nil {
		return nil, err
	}
	return existing, nil
}

func (s *Service) ListMedications(ctx context.Context, patientID uuid.UUID, activeOnly bool) ([]*Medication, error) {
	return s.medications.ListByPatient(ctx, patientID, activeOnly)
}

// -- Allergies --

func (s *Service) AddAllergy(ctx context.Context, a *Allergy) error {
	if err := s.requirePatient(ctx, a.PatientID); err != nil {
		return err
	}
	if a.Allergen == "" {
		return apperror.Validationf("allergen is required")
	}
	if a.Severity == "" {
		a.Severity = "mild"
	}
	if !validSeverities[a.Severity] {
		return apperror.Validationf("invalid severity: %s", a.Severity)
	}
	return s.allergies.Create(ctx, a)
}

func (s *Service) ListAllergies(ctx context.Context, patientID uuid.UUID) ([]*Allergy, error) {
	return s.allergies.ListByPatient(ctx, patientID)
}

func (s *Service) RemoveAllergy(ctx context.Context, id uuid.UUID) error {
	return s.allergies.Delete(ctx, id)
}

// -- Visit notes --

func (s *Service) AddVisitNote(ctx context.Context, v *VisitNote) error {
	if err := s.requirePatient(ctx, v.PatientID); err != nil {
		return err
	}
	if v.Notes == "" {
		return apperror.Validationf("notes is required")
	}
	if v.VisitDate.IsZero() {
		v.VisitDate = today()
	}
	return s.visitNotes.Create(ctx, v)
}

func (s *Service) ListVisitNotes(ctx context.Context, patientID uuid.UUID) ([]*VisitNote, error) {
	return s.visitNotes.ListByPatient(ctx, patientID)
}

// -- Summary --

// Summary assembles the current clinical view: active medications, known
// allergies and the next scheduled appointment.
func (s *Service) Summary(ctx context.Context, patientID uuid.UUID) (*PatientSummary, error) {
	if err := s.requirePatient(ctx, patientID); err != nil {
		return nil, err
	}
	meds, err := s.medications.ListByPatient(ctx, patientID, true)
	if err != nil {
		return nil, err
	}
	allergies, err := s.allergies.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}
	next, err := s.appointments.NextForPatient(ctx, patientID, today())
	if err != nil {
		return nil, err
	}
	return &PatientSummary{
		ActiveMedications: meds,
		Allergies:         allergies,
		NextAppointment:   next,
	}, nil
}
