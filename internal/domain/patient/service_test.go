package patient

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinicdesk/clinicdesk/pkg/apperror"
)

// -- Mock repositories --

type mockPatientRepo struct {
	patients map[uuid.UUID]*Patient
	nextCode int
}

func newMockPatientRepo() *mockPatientRepo {
	return &mockPatientRepo{patients: make(map[uuid.UUID]*Patient)}
}

func (m *mockPatientRepo) Create(_ context.Context, p *Patient) error {
	p.ID = uuid.New()
	m.nextCode++
	p.PatientCode = fmt.Sprintf("PT-%06d", m.nextCode)
	p.CreatedAt = time.Now()
	p.UpdatedAt = time.Now()
	m.patients[p.ID] = p
	return nil
}

func (m *mockPatientRepo) GetByID(_ context.Context, id uuid.UUID) (*Patient, error) {
	p, ok := m.patients[id]
	if !ok {
		return nil, apperror.NotFound("patient", id.String())
	}
	return p, nil
}

func (m *mockPatientRepo) GetByCode(_ context.Context, code string) (*Patient, error) {
	for _, p := range m.patients {
		if p.PatientCode == code {
			return p, nil
		}
	}
	return nil, apperror.NotFound("patient", code)
}

func (m *mockPatientRepo) Update(_ context.Context, p *Patient) error {
	if _, ok := m.patients[p.ID]; !ok {
		return apperror.NotFound("patient", p.ID.String())
	}
	p.UpdatedAt = time.Now()
	m.patients[p.ID] = p
	return nil
}

func (m *mockPatientRepo) List(_ context.Context, filter ListFilter, limit, offset int) ([]*Patient, int, error) {
	var result []*Patient
	for _, p := range m.patients {
		if !filter.IncludeArchived && p.Archived() {
			continue
		}
		if filter.Search != "" {
			s := strings.ToLower(filter.Search)
			phone := ""
			if p.Phone != nil {
				phone = *p.Phone
			}
			if !strings.Contains(strings.ToLower(p.Name), s) &&
				!strings.Contains(strings.ToLower(p.PatientCode), s) &&
				!strings.Contains(phone, filter.Search) {
				continue
			}
		}
		result = append(result, p)
	}
	total := len(result)
	if offset >= len(result) {
		return nil, total, nil
	}
	end := offset + limit
	if end > len(result) {
		end = len(result)
	}
	return result[offset:end], total, nil
}

func (m *mockPatientRepo) ListAll(_ context.Context) ([]*Patient, error) {
	var result []*Patient
	for _, p := range m.patients {
		result = append(result, p)
	}
	return result, nil
}

func (m *mockPatientRepo) Exists(_ context.Context, id uuid.UUID) (bool, error) {
	_, ok := m.patients[id]
	return ok, nil
}

func (m *mockPatientRepo) NameOf(_ context.Context, id uuid.UUID) (string, error) {
	p, ok := m.patients[id]
	if !ok {
		return "", apperror.NotFound("patient", id.String())
	}
	return p.Name, nil
}

func (m *mockPatientRepo) SetNextAppointmentDate(_ context.Context, id uuid.UUID, date *time.Time) error {
	p, ok := m.patients[id]
	if !ok {
		return apperror.NotFound("patient", id.String())
	}
	p.NextAppointmentDate = date
	return nil
}

func (m *mockPatientRepo) SetArchived(_ context.Context, id uuid.UUID, at *time.Time) error {
	p, ok := m.patients[id]
	if !ok {
		return apperror.NotFound("patient", id.String())
	}
	p.ArchivedAt = at
	return nil
}

func (m *mockPatientRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(m.patients, id)
	return nil
}

type passthroughTx struct{}

func (passthroughTx) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type recordingDeleter struct {
	name    string
	calls   *[]string
	failErr error
}

func (d *recordingDeleter) DeleteByPatient(_ context.Context, _ uuid.UUID) error {
	*d.calls = append(*d.calls, d.name)
	return d.failErr
}

func newTestService(repo *mockPatientRepo, children ...ChildRecordDeleter) *Service {
	return NewService(repo, passthroughTx{}, zerolog.Nop(), children...)
}

func strPtr(s string) *string { return &s }
func intPtr(n int) *int       { return &n }

// -- Tests --

func TestRegister(t *testing.T) {
	repo := newMockPatientRepo()
	svc := newTestService(repo)

	p := &Patient{Name: "Asha Rao", Age: 42, Gender: "female"}
	if err := svc.Register(context.Background(), p); err != nil {
		t.Fatalf("Register() error: %v", err)
	}
	if p.PatientCode == "" {
		t.Error("expected assigned patient code")
	}
	if p.DateOfRegistration.IsZero() {
		t.Error("expected default registration date")
	}

	q := &Patient{Name: "Dev Mehta", Age: 30, Gender: "male"}
	if err := svc.Register(context.Background(), q); err != nil {
		t.Fatalf("Register() error: %v", err)
	}
	if q.PatientCode == p.PatientCode {
		t.Errorf("patient codes must be unique, both got %s", p.PatientCode)
	}
}

func TestRegister_Validation(t *testing.T) {
	svc := newTestService(newMockPatientRepo())

	tests := []struct {
		name string
		p    *Patient
	}{
		{"missing name", &Patient{Age: 30, Gender: "male"}},
		{"negative age", &Patient{Name: "X", Age: -1, Gender: "male"}},
		{"missing gender", &Patient{Name: "X", Age: 30}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.Register(context.Background(), tt.p)
			if !apperror.IsValidation(err) {
				t.Errorf("expected ValidationError, got %v", err)
			}
		})
	}
}

func TestUpdate_PreservesPatientCode(t *testing.T) {
	repo := newMockPatientRepo()
	svc := newTestService(repo)

	p := &Patient{Name: "Asha Rao", Age: 42, Gender: "female"}
	if err := svc.Register(context.Background(), p); err != nil {
		t.Fatalf("Register() error: %v", err)
	}
	code := p.PatientCode

	updated, err := svc.Update(context.Background(), p.ID, &UpdateInput{
		Name: strPtr("Asha Rao-Kulkarni"), Age: intPtr(43),
	})
	if err != nil {
		t.Fatalf("Update() error: %v", err)
	}
	if updated.PatientCode != code {
		t.Errorf("patient code changed from %s to %s", code, updated.PatientCode)
	}
	if updated.Name != "Asha Rao-Kulkarni" || updated.Age != 43 {
		t.Errorf("fields not updated: %+v", updated)
	}
}

func TestUpdate_PartialKeepsUnsuppliedFields(t *testing.T) {
	repo := newMockPatientRepo()
	svc := newTestService(repo)

	p := &Patient{
		Name: "Ben Okafor", Age: 58, Gender: "male",
		Phone: strPtr("555-0101"), Address: strPtr("3 Mill Lane"),
		Notes: strPtr("prefers morning visits"),
	}
	if err := svc.Register(context.Background(), p); err != nil {
		t.Fatalf("Register() error: %v", err)
	}

	updated, err := svc.Update(context.Background(), p.ID, &UpdateInput{Name: strPtr("Ben A. Okafor")})
	if err != nil {
		t.Fatalf("Update() error: %v", err)
	}
	if updated.Name != "Ben A. Okafor" {
		t.Errorf("name not updated: %q", updated.Name)
	}
	if updated.Phone == nil || *updated.Phone != "555-0101" {
		t.Errorf("phone was cleared by an update that did not supply it: %v", updated.Phone)
	}
	if updated.Address == nil || *updated.Address != "3 Mill Lane" {
		t.Errorf("address was cleared by an update that did not supply it: %v", updated.Address)
	}
	if updated.Age != 58 || updated.Gender != "male" {
		t.Errorf("unsupplied scalar fields changed: age=%d gender=%q", updated.Age, updated.Gender)
	}

	// Supplying an empty string clears an optional field.
	updated, err = svc.Update(context.Background(), p.ID, &UpdateInput{Notes: strPtr("")})
	if err != nil {
		t.Fatalf("Update() error: %v", err)
	}
	if updated.Notes != nil {
		t.Errorf("empty-string update did not clear notes: %v", updated.Notes)
	}
	if updated.Phone == nil {
		t.Errorf("phone lost while clearing notes")
	}
}

func TestUpdate_SuppliedFieldValidation(t *testing.T) {
	repo := newMockPatientRepo()
	svc := newTestService(repo)

	p := &Patient{Name: "Mira Chen", Age: 30, Gender: "female"}
	if err := svc.Register(context.Background(), p); err != nil {
		t.Fatalf("Register() error: %v", err)
	}

	tests := []struct {
		name string
		in   *UpdateInput
	}{
		{"empty name", &UpdateInput{Name: strPtr("")}},
		{"negative age", &UpdateInput{Age: intPtr(-1)}},
		{"empty gender", &UpdateInput{Gender: strPtr("")}},
	}
	for _, tt := range tests {
		if _, err := svc.Update(context.Background(), p.ID, tt.in); !apperror.IsValidation(err) {
			t.Errorf("%s: expected ValidationError, got %v", tt.name, err)
		}
	}
}

func TestUpdate_NotFound(t *testing.T) {
	svc := newTestService(newMockPatientRepo())
	_, err := svc.Update(context.Background(), uuid.New(), &UpdateInput{Name: strPtr("X")})
	if !apperror.IsNotFound(err) {
		t.Errorf("expected NotFoundError, got %v", err)
	}
}

func TestList_SearchAndArchiveFilter(t *testing.T) {
	repo := newMockPatientRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	a := &Patient{Name: "Asha Rao", Age: 42, Gender: "female"}
	b := &Patient{Name: "Dev Mehta", Age: 30, Gender: "male"}
	for _, p := range []*Patient{a, b} {
		if err := svc.Register(ctx, p); err != nil {
			t.Fatalf("Register() error: %v", err)
		}
	}

	items, total, err := svc.List(ctx, ListFilter{Search: "asha"}, 20, 0)
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if total != 1 || len(items) != 1 || items[0].ID != a.ID {
		t.Errorf("case-insensitive name search failed: total=%d", total)
	}

	items, total, err = svc.List(ctx, ListFilter{Search: b.PatientCode}, 20, 0)
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if total != 1 || items[0].ID != b.ID {
		t.Errorf("patient code search failed: total=%d", total)
	}

	if err := svc.Archive(ctx, a.ID); err != nil {
		t.Fatalf("Archive() error: %v", err)
	}
	_, total, _ = svc.List(ctx, ListFilter{}, 20, 0)
	if total != 1 {
		t.Errorf("archived patient should be hidden, total=%d", total)
	}
	_, total, _ = svc.List(ctx, ListFilter{IncludeArchived: true}, 20, 0)
	if total != 2 {
		t.Errorf("include_archived should show both, total=%d", total)
	}

	if err := svc.Unarchive(ctx, a.ID); err != nil {
		t.Fatalf("Unarchive() error: %v", err)
	}
	_, total, _ = svc.List(ctx, ListFilter{}, 20, 0)
	if total != 2 {
		t.Errorf("unarchive should restore visibility, total=%d", total)
	}
}

func TestDelete_CascadesChildFirst(t *testing.T) {
	repo := newMockPatientRepo()
	var calls []string
	children := []ChildRecordDeleter{
		&recordingDeleter{name: "appointments", calls: &calls},
		&recordingDeleter{name: "medications", calls: &calls},
		&recordingDeleter{name: "allergies", calls: &calls},
		&recordingDeleter{name: "prescriptions", calls: &calls},
		&recordingDeleter{name: "visit_notes", calls: &calls},
		&recordingDeleter{name: "files", calls: &calls},
	}
	svc := newTestService(repo, children...)
	ctx := context.Background()

	p := &Patient{Name: "Asha Rao", Age: 42, Gender: "female"}
	if err := svc.Register(ctx, p); err != nil {
		t.Fatalf("Register() error: %v", err)
	}

	if err := svc.Delete(ctx, p.ID); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}

	want := []string{"appointments", "medications", "allergies", "prescriptions", "visit_notes", "files"}
	if len(calls) != len(want) {
		t.Fatalf("expected %d child deletions, got %d", len(want), len(calls))
	}
	for i, name := range want {
		if calls[i] != name {
			t.Errorf("deletion order[%d] = %s, want %s", i, calls[i], name)
		}
	}
	if _, err := svc.Get(ctx, p.ID); !apperror.IsNotFound(err) {
		t.Errorf("patient should be gone, got %v", err)
	}

	// Retrying the delete reports NotFound, nothing else.
	if err := svc.Delete(ctx, p.ID); !apperror.IsNotFound(err) {
		t.Errorf("repeat delete: expected NotFoundError, got %v", err)
	}
}

func TestDelete_UnknownPatient(t *testing.T) {
	var calls []string
	svc := newTestService(newMockPatientRepo(), &recordingDeleter{name: "appointments", calls: &calls})

	err := svc.Delete(context.Background(), uuid.New())
	if !apperror.IsNotFound(err) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
	if len(calls) != 0 {
		t.Error("child deleters must not run for an unknown patient")
	}
}

func TestDelete_ChildFailureAborts(t *testing.T) {
	repo := newMockPatientRepo()
	var calls []string
	boom := apperror.Persistence("medications.delete_by_patient", fmt.Errorf("disk full"))
	svc := newTestService(repo,
		&recordingDeleter{name: "appointments", calls: &calls},
		&recordingDeleter{name: "medications", calls: &calls, failErr: boom},
		&recordingDeleter{name: "allergies", calls: &calls},
	)
	ctx := context.Background()

	p := &Patient{Name: "Asha Rao", Age: 42, Gender: "female"}
	if err := svc.Register(ctx, p); err != nil {
		t.Fatalf("Register() error: %v", err)
	}

	if err := svc.Delete(ctx, p.ID); err == nil {
		t.Fatal("expected cascade failure to surface")
	}
	if len(calls) != 2 {
		t.Errorf("expected cascade to stop at the failing collection, got %v", calls)
	}
}
