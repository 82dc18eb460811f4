// Package patientfile manages document metadata attached to a patient. The
// bytes themselves live in blob storage; this package only ever sees the
// opaque storage handle.
package patientfile

import (
	"time"

	"github.com/google/uuid"
)

type PatientFile struct {
	ID         uuid.UUID `db:"id" json:"id"`
	PatientID  uuid.UUID `db:"patient_id" json:"patient_id"`
	FileName   string    `db:"file_name" json:"file_name"`
	FilePath   string    `db:"file_path" json:"file_path"`
	FileType   string    `db:"file_type" json:"file_type"`
	FileSize   int64     `db:"file_size" json:"file_size"`
	UploadedAt time.Time `db:"uploaded_at" json:"uploaded_at"`
}
