package clinical

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinicdesk/clinicdesk/pkg/apperror"
)

type mockApptRepo struct {
	appts map[uuid.UUID]*Appointment
}

func newMockApptRepo() *mockApptRepo {
	return &mockApptRepo{appts: make(map[uuid.UUID]*Appointment)}
}

func (m *mockApptRepo) Create(_ context.Context, a *Appointment) error {
	a.ID = uuid.New()
	a.CreatedAt = time.Now()
	a.UpdatedAt = a.CreatedAt
	cp := *a
	m.appts[a.ID] = &cp
	return nil
}

func (m *mockApptRepo) GetByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	a, ok := m.appts[id]
	if !ok {
		return nil, apperror.NotFound("appointment", id.String())
	}
	cp := *a
	return &cp, nil
}

func (m *mockApptRepo) ListByPatient(_ context.Context, patientID uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
	var out []*Appointment
	for _, a := range m.appts {
		if a.PatientID == patientID {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	total := len(out)
	if offset > len(out) {
		offset = len(out)
	}
	out = out[offset:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, total, nil
}

func (m *mockApptRepo) ListOnDate(_ context.Context, date time.Time) ([]*Appointment, error) {
	var out []*Appointment
	for _, a := range m.appts {
		if a.Date.Equal(date) {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockApptRepo) ListUpcoming(_ context.Context, after time.Time) ([]*Appointment, error) {
	var out []*Appointment
	for _, a := range m.appts {
		if a.Status == ApptScheduled && a.Date.After(after) {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (m *mockApptRepo) TransitionStatus(_ context.Context, id uuid.UUID, from, to string) (bool, error) {
	a, ok := m.appts[id]
	if !ok {
		return false, nil
	}
	if a.Status != from {
		return false, nil
	}
	a.Status = to
	a.UpdatedAt = time.Now()
	return true, nil
}

func (m *mockApptRepo) NextScheduledDate(_ context.Context, patientID uuid.UUID, onOrAfter time.Time) (*time.Time, error) {
	var next *time.Time
	for _, a := range m.appts {
		if a.PatientID != patientID || a.Status != ApptScheduled || a.Date.Before(onOrAfter) {
			continue
		}
		if next == nil || a.Date.Before(*next) {
			d := a.Date
			next = &d
		}
	}
	return next, nil
}

func (m *mockApptRepo) NextForPatient(_ context.Context, patientID uuid.UUID, onOrAfter time.Time) (*Appointment, error) {
	var next *Appointment
	for _, a := range m.appts {
		if a.PatientID != patientID || a.Status != ApptScheduled || a.Date.Before(onOrAfter) {
			continue
		}
		if next == nil || a.Date.Before(next.Date) {
			next = a
		}
	}
	return next, nil
}

func (m *mockApptRepo) SetReminderSent(_ context.Context, id uuid.UUID, sent bool) error {
	a, ok := m.appts[id]
	if !ok {
		return apperror.NotFound("appointment", id.String())
	}
	a.ReminderSent = sent
	return nil
}

func (m *mockApptRepo) DeleteByPatient(_ context.Context, patientID uuid.UUID) error {
	for id, a := range m.appts {
		if a.PatientID == patientID {
			delete(m.appts, id)
		}
	}
	return nil
}

func (m *mockApptRepo) Count(_ context.Context) (int, error) {
	return len(m.appts), nil
}

type mockMedRepo struct {
	meds map[uuid.UUID]*Medication
}

func newMockMedRepo() *mockMedRepo {
	return &mockMedRepo{meds: make(map[uuid.UUID]*Medication)}
}

func (m *mockMedRepo) Create(_ context.Context, med *Medication) error {
	med.ID = uuid.New()
	med.CreatedAt = time.Now()
	med.UpdatedAt = med.CreatedAt
	cp := *med
	m.meds[med.ID] = &cp
	return nil
}

func (m *mockMedRepo) GetByID(_ context.Context, id uuid.UUID) (*Medication, error) {
	med, ok := m.meds[id]
	if !ok {
		return nil, apperror.NotFound("medication", id.String())
	}
	cp := *med
	return &cp, nil
}

func (m *mockMedRepo) GetByIDs(_ context.Context, ids []uuid.UUID) ([]*Medication, error) {
	var out []*Medication
	for _, id := range ids {
		if med, ok := m.meds[id]; ok {
			cp := *med
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockMedRepo) Update(_ context.Context, med *Medication) error {
	if _, ok := m.meds[med.ID]; !ok {
		return apperror.NotFound("medication", med.ID.String())
	}
	cp := *med
	m.meds[med.ID] = &cp
	return nil
}

func (m *mockMedRepo) ListByPatient(_ context.Context, patientID uuid.UUID, activeOnly bool) ([]*Medication, error) {
	var out []*Medication
	for _, med := range m.meds {
		if med.PatientID != patientID {
			continue
		}
		if activeOnly && med.Status != MedActive {
			continue
		}
		cp := *med
		out = append(out, &cp)
	}
	return out, nil
}

func (m *mockMedRepo) DeleteByPatient(_ context.Context, patientID uuid.UUID) error {
	for id, med := range m.meds {
		if med.PatientID == patientID {
			delete(m.meds, id)
		}
	}
	return nil
}

func (m *mockMedRepo) Count(_ context.Context) (int, error) {
	return len(m.meds), nil
}

type mockAllergyRepo struct {
	allergies map[uuid.UUID]*Allergy
}

func newMockAllergyRepo() *mockAllergyRepo {
	return &mockAllergyRepo{allergies: make(map[uuid.UUID]*Allergy)}
}

func (m *mockAllergyRepo) Create(_ context.Context, a *Allergy) error {
	a.ID = uuid.New()
	a.CreatedAt = time.Now()
	cp := *a
	m.allergies[a.ID] = &cp
	return nil
}

func (m *mockAllergyRepo) ListByPatient(_ context.Context, patientID uuid.UUID) ([]*Allergy, error) {
	var out []*Allergy
	for _, a := range m.allergies {
		if a.PatientID == patientID {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockAllergyRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := m.allergies[id]; !ok {
		return apperror.NotFound("allergy", id.String())
	}
	delete(m.allergies, id)
	return nil
}

func (m *mockAllergyRepo) DeleteByPatient(_ context.Context, patientID uuid.UUID) error {
	for id, a := range m.allergies {
		if a.PatientID == patientID {
			delete(m.allergies, id)
		}
	}
	return nil
}

type mockNoteRepo struct {
	notes map[uuid.UUID]*VisitNote
}

func newMockNoteRepo() *mockNoteRepo {
	return &mockNoteRepo{notes: make(map[uuid.UUID]*VisitNote)}
}

func (m *mockNoteRepo) Create(_ context.Context, v *VisitNote) error {
	v.ID = uuid.New()
	v.CreatedAt = time.Now()
	cp := *v
	m.notes[v.ID] = &cp
	return nil
}

func (m *mockNoteRepo) ListByPatient(_ context.Context, patientID uuid.UUID) ([]*VisitNote, error) {
	var out []*VisitNote
	for _, v := range m.notes {
		if v.PatientID == patientID {
			cp := *v
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockNoteRepo) DeleteByPatient(_ context.Context, patientID uuid.UUID) error {
	for id, v := range m.notes {
		if v.PatientID == patientID {
			delete(m.notes, id)
		}
	}
	return nil
}

func (m *mockNoteRepo) Count(_ context.Context) (int, error) {
	return len(m.notes), nil
}

type mockDirectory struct {
	patients   map[uuid.UUID]bool
	nextDate   map[uuid.UUID]*time.Time
	setDateErr error
}

func newMockDirectory(ids ...uuid.UUID) *mockDirectory {
	d := &mockDirectory{
		patients: make(map[uuid.UUID]bool),
		nextDate: make(map[uuid.UUID]*time.Time),
	}
	for _, id := range ids {
		d.patients[id] = true
	}
	return d
}

func (d *mockDirectory) Exists(_ context.Context, id uuid.UUID) (bool, error) {
	return d.patients[id], nil
}

func (d *mockDirectory) SetNextAppointmentDate(_ context.Context, id uuid.UUID, date *time.Time) error {
	if d.setDateErr != nil {
		return d.setDateErr
	}
	if !d.patients[id] {
		return apperror.NotFound("patient", id.String())
	}
	d.nextDate[id] = date
	return nil
}

type testEnv struct {
	svc       *Service
	appts     *mockApptRepo
	meds      *mockMedRepo
	allergies *mockAllergyRepo
	notes     *mockNoteRepo
	dir       *mockDirectory
}

func newTestEnv(patientIDs ...uuid.UUID) *testEnv {
	env := &testEnv{
		appts:     newMockApptRepo(),
		meds:      newMockMedRepo(),
		allergies: newMockAllergyRepo(),
		notes:     newMockNoteRepo(),
		dir:       newMockDirectory(patientIDs...),
	}
	env.svc = NewService(env.appts, env.meds, env.allergies, env.notes, env.dir, zerolog.Nop())
	return env
}

func dateIn(days int) time.Time {
	return time.Now().UTC().Truncate(24 * time.Hour).AddDate(0, 0, days)
}

func TestSchedule_SetsNextAppointmentDate(t *testing.T) {
	patientID := uuid.New()
	env := newTestEnv(patientID)

	a := &Appointment{PatientID: patientID, Date: dateIn(7)}
	if err := env.svc.Schedule(context.Background(), a); err != nil {
		t.Fatalf("Schedule() error = %v", err)
	}
	if a.Status != ApptScheduled {
		t.Errorf("status = %q, want %q", a.Status, ApptScheduled)
	}
	got := env.dir.nextDate[patientID]
	if got == nil || !got.Equal(dateIn(7)) {
		t.Errorf("next appointment date = %v, want %v", got, dateIn(7))
	}
}

func TestSchedule_LastWriteWins(t *testing.T) {
	patientID := uuid.New()
	env := newTestEnv(patientID)

	first := &Appointment{PatientID: patientID, Date: dateIn(3)}
	if err := env.svc.Schedule(context.Background(), first); err != nil {
		t.Fatalf("Schedule() error = %v", err)
	}
	later := &Appointment{PatientID: patientID, Date: dateIn(30)}
	if err := env.svc.Schedule(context.Background(), later); err != nil {
		t.Fatalf("Schedule() error = %v", err)
	}

	// The pointer tracks the most recent write, not the nearest date.
	got := env.dir.nextDate[patientID]
	if got == nil || !got.Equal(dateIn(30)) {
		t.Errorf("next appointment date = %v, want %v", got, dateIn(30))
	}
}

func TestSchedule_Validation(t *testing.T) {
	patientID := uuid.New()
	env := newTestEnv(patientID)
	badTime := "25:99"

	tests := []struct {
		name string
		appt *Appointment
	}{
		{"missing patient", &Appointment{Date: dateIn(1)}},
		{"missing date", &Appointment{PatientID: patientID}},
		{"bad time", &Appointment{PatientID: patientID, Date: dateIn(1), Time: &badTime}},
		{"pre-set terminal status", &Appointment{PatientID: patientID, Date: dateIn(1), Status: ApptCompleted}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := env.svc.Schedule(context.Background(), tt.appt)
			if !apperror.IsValidation(err) {
				t.Errorf("Schedule() error = %v, want ValidationError", err)
			}
		})
	}
}

func TestSchedule_UnknownPatient(t *testing.T) {
	env := newTestEnv()
	err := env.svc.Schedule(context.Background(), &Appointment{PatientID: uuid.New(), Date: dateIn(1)})
	if !apperror.IsNotFound(err) {
		t.Fatalf("Schedule() error = %v, want NotFoundError", err)
	}
}

func TestTransitions_TerminalStatesAreFinal(t *testing.T) {
	patientID := uuid.New()

	tests := []struct {
		name string
		move func(s *Service, ctx context.Context, id uuid.UUID) (*Appointment, error)
		want string
	}{
		{"complete", (*Service).Complete, ApptCompleted},
		{"cancel", (*Service).Cancel, ApptCancelled},
		{"no-show", (*Service).MarkNoShow, ApptNoShow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(patientID)
			a := &Appointment{PatientID: patientID, Date: dateIn(1)}
			if err := env.svc.Schedule(context.Background(), a); err != nil {
				t.Fatalf("Schedule() error = %v", err)
			}

			got, err := tt.move(env.svc, context.Background(), a.ID)
			if err != nil {
				t.Fatalf("transition error = %v", err)
			}
			if got.Status != tt.want {
				t.Errorf("status = %q, want %q", got.Status, tt.want)
			}

			// A second transition from any terminal state must be rejected.
			_, err = env.svc.Complete(context.Background(), a.ID)
			if !apperror.IsInvalidTransition(err) {
				t.Errorf("second transition error = %v, want InvalidStateTransitionError", err)
			}
		})
	}
}

func TestTransition_UnknownAppointment(t *testing.T) {
	env := newTestEnv()
	_, err := env.svc.Complete(context.Background(), uuid.New())
	if !apperror.IsNotFound(err) {
		t.Fatalf("Complete() error = %v, want NotFoundError", err)
	}
}

func TestTransition_RecomputesNextAppointmentDate(t *testing.T) {
	patientID := uuid.New()
	env := newTestEnv(patientID)

	near := &Appointment{PatientID: patientID, Date: dateIn(2)}
	far := &Appointment{PatientID: patientID, Date: dateIn(10)}
	for _, a := range []*Appointment{far, near} {
		if err := env.svc.Schedule(context.Background(), a); err != nil {
			t.Fatalf("Schedule() error = %v", err)
		}
	}

	if _, err := env.svc.Complete(context.Background(), near.ID); err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	got := env.dir.nextDate[patientID]
	if got == nil || !got.Equal(dateIn(10)) {
		t.Errorf("next appointment date = %v, want %v", got, dateIn(10))
	}

	if _, err := env.svc.Cancel(context.Background(), far.ID); err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}
	if got := env.dir.nextDate[patientID]; got != nil {
		t.Errorf("next appointment date = %v, want nil after last appointment resolved", got)
	}
}

func TestNextAppointmentSyncFailureIsSurfaced(t *testing.T) {
	patientID := uuid.New()
	env := newTestEnv(patientID)

	a := &Appointment{PatientID: patientID, Date: dateIn(3)}
	if err := env.svc.Schedule(context.Background(), a); err != nil {
		t.Fatalf("Schedule() error = %v", err)
	}

	env.dir.setDateErr = apperror.Persistence("patient.set_next_appointment", context.DeadlineExceeded)

	_, err := env.svc.Complete(context.Background(), a.ID)
	if !apperror.IsPersistence(err) {
		t.Fatalf("Complete() error = %v, want PersistenceError", err)
	}
	// The transition itself committed before the sync failed.
	got, gerr := env.svc.GetAppointment(context.Background(), a.ID)
	if gerr != nil {
		t.Fatalf("GetAppointment() error = %v", gerr)
	}
	if got.Status != ApptCompleted {
		t.Errorf("status = %q, want %q", got.Status, ApptCompleted)
	}

	b := &Appointment{PatientID: patientID, Date: dateIn(5)}
	if err := env.svc.Schedule(context.Background(), b); !apperror.IsPersistence(err) {
		t.Errorf("Schedule() error = %v, want PersistenceError", err)
	}
}

func TestSetReminderSent(t *testing.T) {
	patientID := uuid.New()
	env := newTestEnv(patientID)

	a := &Appointment{PatientID: patientID, Date: dateIn(1)}
	if err := env.svc.Schedule(context.Background(), a); err != nil {
		t.Fatalf("Schedule() error = %v", err)
	}
	if err := env.svc.SetReminderSent(context.Background(), a.ID); err != nil {
		t.Fatalf("SetReminderSent() error = %v", err)
	}
	got, _ := env.appts.GetByID(context.Background(), a.ID)
	if !got.ReminderSent {
		t.Error("reminder_sent not persisted")
	}
}

func TestAddMedication_DefaultsAndValidation(t *testing.T) {
	patientID := uuid.New()
	env := newTestEnv(patientID)

	m := &Medication{
		PatientID: patientID,
		DrugName:  "Amoxicillin",
		Dosage:    "500mg",
		Frequency: FreqThreeTimesDaily,
		Duration:  "7 days",
	}
	if err := env.svc.AddMedication(context.Background(), m); err != nil {
		t.Fatalf("AddMedication() error = %v", err)
	}
	if m.Status != MedActive {
		t.Errorf("status = %q, want %q", m.Status, MedActive)
	}
	if m.StartDate.IsZero() {
		t.Error("start date not defaulted")
	}

	tests := []struct {
		name string
		med  *Medication
	}{
		{"missing drug", &Medication{PatientID: patientID, Dosage: "1", Frequency: FreqOnceDaily, Duration: "1 day"}},
		{"missing dosage", &Medication{PatientID: patientID, DrugName: "X", Frequency: FreqOnceDaily, Duration: "1 day"}},
		{"bad frequency", &Medication{PatientID: patientID, DrugName: "X", Dosage: "1", Frequency: "hourly", Duration: "1 day"}},
		{"missing duration", &Medication{PatientID: patientID, DrugName: "X", Dosage: "1", Frequency: FreqOnceDaily}},
		{"bad status", &Medication{PatientID: patientID, DrugName: "X", Dosage: "1", Frequency: FreqOnceDaily, Duration: "1 day", Status: "paused"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := env.svc.AddMedication(context.Background(), tt.med); !apperror.IsValidation(err) {
				t.Errorf("AddMedication() error = %v, want ValidationError", err)
			}
		})
	}
}

func TestUpdateMedicationStatus(t *testing.T) {
	patientID := uuid.New()
	env := newTestEnv(patientID)

	m := &Medication{PatientID: patientID, DrugName: "Metformin", Dosage: "850mg", Frequency: FreqTwiceDaily, Duration: "ongoing"}
	if err := env.svc.AddMedication(context.Background(), m); err != nil {
		t.Fatalf("AddMedication() error = %v", err)
	}

	got, err := env.svc.UpdateMedicationStatus(context.Background(), m.ID, MedDiscontinued)
	if err != nil {
		t.Fatalf("UpdateMedicationStatus() error = %v", err)
	}
	if got.Status != MedDiscontinued {
		t.Errorf("status = %q, want %q", got.Status, MedDiscontinued)
	}

	if _, err := env.svc.UpdateMedicationStatus(context.Background(), m.ID, "bogus"); !apperror.IsValidation(err) {
		t.Errorf("error = %v, want ValidationError", err)
	}

	active, err := env.svc.ListMedications(context.Background(), patientID, true)
	if err != nil {
		t.Fatalf("ListMedications() error = %v", err)
	}
	if len(active) != 0 {
		t.Errorf("active medications = %d, want 0 after discontinuation", len(active))
	}
}

func TestAddAllergy(t *testing.T) {
	patientID := uuid.New()
	env := newTestEnv(patientID)

	a := &Allergy{PatientID: patientID, Allergen: "Penicillin", Severity: "severe"}
	if err := env.svc.AddAllergy(context.Background(), a); err != nil {
		t.Fatalf("AddAllergy() error = %v", err)
	}

	if err := env.svc.AddAllergy(context.Background(), &Allergy{PatientID: patientID}); !apperror.IsValidation(err) {
		t.Errorf("missing allergen: error = %v, want ValidationError", err)
	}
	if err := env.svc.AddAllergy(context.Background(), &Allergy{PatientID: patientID, Allergen: "Latex", Severity: "fatal"}); !apperror.IsValidation(err) {
		t.Errorf("bad severity: error = %v, want ValidationError", err)
	}

	defaulted := &Allergy{PatientID: patientID, Allergen: "Dust"}
	if err := env.svc.AddAllergy(context.Background(), defaulted); err != nil {
		t.Fatalf("AddAllergy() error = %v", err)
	}
	if defaulted.Severity != "mild" {
		t.Errorf("severity = %q, want mild default", defaulted.Severity)
	}
}

func TestAddVisitNote(t *testing.T) {
	patientID := uuid.New()
	env := newTestEnv(patientID)

	v := &VisitNote{PatientID: patientID, Notes: "Follow-up in two weeks."}
	if err := env.svc.AddVisitNote(context.Background(), v); err != nil {
		t.Fatalf("AddVisitNote() error = %v", err)
	}
	if v.VisitDate.IsZero() {
		t.Error("visit date not defaulted")
	}

	if err := env.svc.AddVisitNote(context.Background(), &VisitNote{PatientID: patientID}); !apperror.IsValidation(err) {
		t.Errorf("empty notes: error = %v, want ValidationError", err)
	}
}

func TestSummary(t *testing.T) {
	patientID := uuid.New()
	other := uuid.New()
	env := newTestEnv(patientID, other)
	ctx := context.Background()

	if err := env.svc.AddMedication(ctx, &Medication{PatientID: patientID, DrugName: "Lisinopril", Dosage: "10mg", Frequency: FreqOnceDaily, Duration: "ongoing"}); err != nil {
		t.Fatalf("AddMedication() error = %v", err)
	}
	discontinued := &Medication{PatientID: patientID, DrugName: "Old", Dosage: "5mg", Frequency: FreqOnceDaily, Duration: "done"}
	if err := env.svc.AddMedication(ctx, discontinued); err != nil {
		t.Fatalf("AddMedication() error = %v", err)
	}
	if _, err := env.svc.UpdateMedicationStatus(ctx, discontinued.ID, MedDiscontinued); err != nil {
		t.Fatalf("UpdateMedicationStatus() error = %v", err)
	}
	if err := env.svc.AddAllergy(ctx, &Allergy{PatientID: patientID, Allergen: "Penicillin", Severity: "moderate"}); err != nil {
		t.Fatalf("AddAllergy() error = %v", err)
	}
	mine := &Appointment{PatientID: patientID, Date: dateIn(5)}
	theirs := &Appointment{PatientID: other, Date: dateIn(2)}
	for _, a := range []*Appointment{mine, theirs} {
		if err := env.svc.Schedule(ctx, a); err != nil {
			t.Fatalf("Schedule() error = %v", err)
		}
	}

	got, err := env.svc.Summary(ctx, patientID)
	if err != nil {
		t.Fatalf("Summary() error = %v", err)
	}
	if len(got.ActiveMedications) != 1 {
		t.Errorf("active medications = %d, want 1", len(got.ActiveMedications))
	}
	if len(got.Allergies) != 1 {
		t.Errorf("allergies = %d, want 1", len(got.Allergies))
	}
	if got.NextAppointment == nil || got.NextAppointment.ID != mine.ID {
		t.Errorf("next appointment = %+v, want appointment %s", got.NextAppointment, mine.ID)
	}

	if _, err := env.svc.Complete(ctx, mine.ID); err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	got, err = env.svc.Summary(ctx, patientID)
	if err != nil {
		t.Fatalf("Summary() error = %v", err)
	}
	if got.NextAppointment != nil {
		t.Errorf("next appointment = %+v, want nil after completion", got.NextAppointment)
	}

	if _, err := env.svc.Summary(ctx, uuid.New()); !apperror.IsNotFound(err) {
		t.Errorf("unknown patient: error = %v, want NotFoundError", err)
	}
}
