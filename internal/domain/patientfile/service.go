package patientfile

import (
	"context"
	"io"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinicdesk/clinicdesk/internal/platform/blobstore"
	"github.com/clinicdesk/clinicdesk/pkg/apperror"
)

type Service struct {
	files    FileRepository
	blobs    blobstore.BlobStore
	patients PatientDirectory
	maxBytes int64
	log      zerolog.Logger
}

func NewService(files FileRepository, blobs blobstore.BlobStore, patients PatientDirectory, maxBytes int64, log zerolog.Logger) *Service {
	return &Service{
		files:    files,
		blobs:    blobs,
		patients: patients,
		maxBytes: maxBytes,
		log:      log,
	}
}

// Upload streams the content into blob storage and records the metadata row.
// The blob id becomes the file's opaque storage handle.
func (s *Service) Upload(ctx context.Context, patientID uuid.UUID, fileName, contentType string, content io.Reader) (*PatientFile, error) {
	if patientID == uuid.Nil {
		return nil, apperror.Validationf("patient_id is required")
	}
	exists, err := s.patients.Exists(ctx, patientID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, apperror.NotFound("patient", patientID.String())
	}

	meta := blobstore.BlobMetadata{FileName: fileName, ContentType: contentType}
	if err := blobstore.ValidateUpload(meta); err != nil {
		return nil, apperror.Validationf("%s", err.Error())
	}

	stored, err := s.blobs.Upload(ctx, meta, io.LimitReader(content, s.maxBytes+1))
	if err != nil {
		return nil, apperror.Persistence("file.upload_blob", err)
	}
	if stored.Size > s.maxBytes {
		if err := s.blobs.Delete(ctx, stored.ID); err != nil {
			s.log.Warn().Err(err).Str("blob_id", stored.ID).Msg("failed to discard oversized blob")
		}
		return nil, apperror.Validationf("file exceeds the %d byte upload limit", s.maxBytes)
	}

	f := &PatientFile{
		PatientID: patientID,
		FileName:  fileName,
		FilePath:  stored.ID,
		FileType:  contentType,
		FileSize:  stored.Size,
	}
	if err := s.files.Create(ctx, f); err != nil {
		if derr := s.blobs.Delete(ctx, stored.ID); derr != nil {
			s.log.Warn().Err(derr).Str("blob_id", stored.ID).Msg("failed to discard orphaned blob")
		}
		return nil, err
	}
	s.log.Info().
		Str("file_id", f.ID.String()).
		Str("patient_id", patientID.String()).
		Int64("size", f.FileSize).
		Msg("file uploaded")
	return f, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*PatientFile, error) {
	return s.files.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, patientID uuid.UUID) ([]*PatientFile, error) {
	return s.files.ListByPatient(ctx, patientID)
}

// Download returns the metadata row and a reader over the stored bytes. The
// caller closes the reader.
func (s *Service) Download(ctx context.Context, id uuid.UUID) (*PatientFile, io.ReadCloser, error) {
	f, err := s.files.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	rc, _, err := s.blobs.Download(ctx, f.FilePath)
	if err != nil {
		return nil, nil, apperror.Persistence("file.download_blob", err)
	}
	return f, rc, nil
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	f, err := s.files.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.files.Delete(ctx, id); err != nil {
		return err
	}
	if err := s.blobs.Delete(ctx, f.FilePath); err != nil {
		s.log.Warn().Err(err).Str("blob_id", f.FilePath).Msg("failed to delete blob")
	}
	return nil
}

// DeleteByPatient removes the metadata rows inside the caller's transaction,
// then clears the blobs best-effort. A leaked blob is unreferenced storage,
// not an integrity problem, so blob failures only log.
func (s *Service) DeleteByPatient(ctx context.Context, patientID uuid.UUID) error {
	files, err := s.files.ListByPatient(ctx, patientID)
	if err != nil {
		return err
	}
	if err := s.files.DeleteByPatient(ctx, patientID); err != nil {
		return err
	}
	for _, f := range files {
		if err := s.blobs.Delete(ctx, f.FilePath); err != nil {
			s.log.Warn().Err(err).Str("blob_id", f.FilePath).Msg("failed to delete blob")
		}
	}
	return nil
}
