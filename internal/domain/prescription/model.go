// Package prescription composes immutable prescription records from a
// patient's active medications and renders them to a portable document.
package prescription

import (
	"time"

	"github.com/google/uuid"
)

// Prescription is an immutable snapshot taken at compose time. The referenced
// medication ids are historical: editing or discontinuing a medication later
// never changes an existing prescription.
type Prescription struct {
	ID                     uuid.UUID   `db:"id" json:"id"`
	PatientID              uuid.UUID   `db:"patient_id" json:"patient_id"`
	PrescriptionDate       time.Time   `db:"prescription_date" json:"prescription_date"`
	DoctorName             string      `db:"doctor_name" json:"doctor_name"`
	DoctorLicense          *string     `db:"doctor_license" json:"doctor_license,omitempty"`
	ClinicName             *string     `db:"clinic_name" json:"clinic_name,omitempty"`
	ClinicAddress          *string     `db:"clinic_address" json:"clinic_address,omitempty"`
	MedicationIDs          []uuid.UUID `db:"medication_ids" json:"medication_ids"`
	Items                  []Item      `json:"items"`
	AdditionalInstructions *string     `db:"additional_instructions" json:"additional_instructions,omitempty"`
	CreatedAt              time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt              time.Time   `db:"updated_at" json:"updated_at"`
}

// Item is the denormalized copy of one medication's fields captured at
// compose time, in the order the medication ids were supplied.
type Item struct {
	MedicationID uuid.UUID `db:"medication_id" json:"medication_id"`
	DrugName     string    `db:"drug_name" json:"drug_name"`
	Dosage       string    `db:"dosage" json:"dosage"`
	Frequency    string    `db:"frequency" json:"frequency"`
	Duration     string    `db:"duration" json:"duration"`
	Instructions *string   `db:"instructions" json:"instructions,omitempty"`
}
