package patientfile

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinicdesk/clinicdesk/internal/platform/blobstore"
	"github.com/clinicdesk/clinicdesk/pkg/apperror"
)

type mockFileRepo struct {
	files map[uuid.UUID]*PatientFile
}

func newMockFileRepo() *mockFileRepo {
	return &mockFileRepo{files: make(map[uuid.UUID]*PatientFile)}
}

func (m *mockFileRepo) Create(_ context.Context, f *PatientFile) error {
	f.ID = uuid.New()
	f.UploadedAt = time.Now()
	cp := *f
	m.files[f.ID] = &cp
	return nil
}

func (m *mockFileRepo) GetByID(_ context.Context, id uuid.UUID) (*PatientFile, error) {
	f, ok := m.files[id]
	if !ok {
		return nil, apperror.NotFound("file", id.String())
	}
	cp := *f
	return &cp, nil
}

func (m *mockFileRepo) ListByPatient(_ context.Context, patientID uuid.UUID) ([]*PatientFile, error) {
	var out []*PatientFile
	for _, f := range m.files {
		if f.PatientID == patientID {
			cp := *f
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockFileRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := m.files[id]; !ok {
		return apperror.NotFound("file", id.String())
	}
	delete(m.files, id)
	return nil
}

func (m *mockFileRepo) DeleteByPatient(_ context.Context, patientID uuid.UUID) error {
	for id, f := range m.files {
		if f.PatientID == patientID {
			delete(m.files, id)
		}
	}
	return nil
}

type mockDirectory struct {
	patients map[uuid.UUID]bool
}

func (d *mockDirectory) Exists(_ context.Context, id uuid.UUID) (bool, error) {
	return d.patients[id], nil
}

type testEnv struct {
	svc   *Service
	repo  *mockFileRepo
	blobs *blobstore.InMemoryBlobStore
}

func newTestEnv(maxBytes int64, patientIDs ...uuid.UUID) *testEnv {
	dir := &mockDirectory{patients: make(map[uuid.UUID]bool)}
	for _, id := range patientIDs {
		dir.patients[id] = true
	}
	env := &testEnv{
		repo:  newMockFileRepo(),
		blobs: blobstore.NewInMemoryBlobStore(),
	}
	env.svc = NewService(env.repo, env.blobs, dir, maxBytes, zerolog.Nop())
	return env
}

func TestUpload_RoundTrip(t *testing.T) {
	patientID := uuid.New()
	env := newTestEnv(1<<20, patientID)
	ctx := context.Background()

	f, err := env.svc.Upload(ctx, patientID, "scan.pdf", "application/pdf", strings.NewReader("%PDF-1.4 test"))
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if f.FileSize != int64(len("%PDF-1.4 test")) {
		t.Errorf("size = %d, want %d", f.FileSize, len("%PDF-1.4 test"))
	}

	got, rc, err := env.svc.Download(ctx, f.ID)
	if err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	defer rc.Close()
	if got.FileName != "scan.pdf" {
		t.Errorf("file name = %q, want scan.pdf", got.FileName)
	}
	data, _ := io.ReadAll(rc)
	if string(data) != "%PDF-1.4 test" {
		t.Errorf("content = %q", data)
	}
}

func TestUpload_Validation(t *testing.T) {
	patientID := uuid.New()
	env := newTestEnv(1<<20, patientID)
	ctx := context.Background()

	if _, err := env.svc.Upload(ctx, uuid.New(), "a.pdf", "application/pdf", strings.NewReader("x")); !apperror.IsNotFound(err) {
		t.Errorf("unknown patient: error = %v, want NotFoundError", err)
	}
	if _, err := env.svc.Upload(ctx, patientID, "", "application/pdf", strings.NewReader("x")); !apperror.IsValidation(err) {
		t.Errorf("missing name: error = %v, want ValidationError", err)
	}
	if _, err := env.svc.Upload(ctx, patientID, "a.exe", "application/x-msdownload", strings.NewReader("x")); !apperror.IsValidation(err) {
		t.Errorf("bad content type: error = %v, want ValidationError", err)
	}
}

func TestUpload_SizeLimit(t *testing.T) {
	patientID := uuid.New()
	env := newTestEnv(8, patientID)

	_, err := env.svc.Upload(context.Background(), patientID, "big.txt", "text/plain", strings.NewReader("123456789"))
	if !apperror.IsValidation(err) {
		t.Fatalf("oversized upload: error = %v, want ValidationError", err)
	}
	if len(env.repo.files) != 0 {
		t.Error("oversized upload left a metadata row")
	}
}

func TestDelete_RemovesBlob(t *testing.T) {
	patientID := uuid.New()
	env := newTestEnv(1<<20, patientID)
	ctx := context.Background()

	f, err := env.svc.Upload(ctx, patientID, "note.txt", "text/plain", strings.NewReader("hello"))
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if err := env.svc.Delete(ctx, f.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := env.blobs.GetMetadata(ctx, f.FilePath); err == nil {
		t.Error("blob still present after delete")
	}
	if err := env.svc.Delete(ctx, f.ID); !apperror.IsNotFound(err) {
		t.Errorf("second delete: error = %v, want NotFoundError", err)
	}
}

func TestDeleteByPatient_ClearsEverything(t *testing.T) {
	patientID := uuid.New()
	env := newTestEnv(1<<20, patientID)
	ctx := context.Background()

	var blobIDs []string
	for _, name := range []string{"a.txt", "b.txt"} {
		f, err := env.svc.Upload(ctx, patientID, name, "text/plain", strings.NewReader("x"))
		if err != nil {
			t.Fatalf("Upload() error = %v", err)
		}
		blobIDs = append(blobIDs, f.FilePath)
	}

	if err := env.svc.DeleteByPatient(ctx, patientID); err != nil {
		t.Fatalf("DeleteByPatient() error = %v", err)
	}
	files, _ := env.svc.List(ctx, patientID)
	if len(files) != 0 {
		t.Errorf("files = %d, want 0", len(files))
	}
	for _, id := range blobIDs {
		if _, err := env.blobs.GetMetadata(ctx, id); err == nil {
			t.Errorf("blob %s still present", id)
		}
	}

	// Re-running on an already empty patient is a no-op, not an error.
	if err := env.svc.DeleteByPatient(ctx, patientID); err != nil {
		t.Errorf("repeat DeleteByPatient() error = %v", err)
	}
}
