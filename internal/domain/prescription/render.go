package prescription

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/clinicdesk/clinicdesk/internal/domain/clinical"
)

// Document is the in-memory rendering of one prescription. External formats
// (plain text here, PDF elsewhere) are derived from it.
type Document struct {
	PatientName            string    `json:"patient_name"`
	Date                   time.Time `json:"date"`
	DoctorName             string    `json:"doctor_name"`
	DoctorLicense          *string   `json:"doctor_license,omitempty"`
	ClinicName             *string   `json:"clinic_name,omitempty"`
	ClinicAddress          *string   `json:"clinic_address,omitempty"`
	Items                  []Item    `json:"items"`
	AdditionalInstructions *string   `json:"additional_instructions,omitempty"`
}

// BuildDocument renders from the snapshot captured at compose time. Later
// medication edits never show up here.
func BuildDocument(p *Prescription, patientName string) *Document {
	return &Document{
		PatientName:            patientName,
		Date:                   p.PrescriptionDate,
		DoctorName:             p.DoctorName,
		DoctorLicense:          p.DoctorLicense,
		ClinicName:             p.ClinicName,
		ClinicAddress:          p.ClinicAddress,
		Items:                  p.Items,
		AdditionalInstructions: p.AdditionalInstructions,
	}
}

// BuildResolvedDocument renders from the live medication records instead of
// the snapshot, preserving the order the ids were supplied at compose time.
// Ids that no longer resolve are skipped, not errors.
func BuildResolvedDocument(p *Prescription, patientName string, meds []*clinical.Medication) *Document {
	byID := make(map[uuid.UUID]*clinical.Medication, len(meds))
	for _, m := range meds {
		byID[m.ID] = m
	}
	items := make([]Item, 0, len(p.MedicationIDs))
	for _, id := range p.MedicationIDs {
		m, ok := byID[id]
		if !ok {
			continue
		}
		items = append(items, Item{
			MedicationID: m.ID,
			DrugName:     m.DrugName,
			Dosage:       m.Dosage,
			Frequency:    m.Frequency,
			Duration:     m.Duration,
			Instructions: m.Instructions,
		})
	}
	doc := BuildDocument(p, patientName)
	doc.Items = items
	return doc
}

// Text lays the document out as plain text. Absent optional fields are
// omitted entirely rather than printed blank.
func (d *Document) Text() string {
	var b strings.Builder
	b.WriteString("PRESCRIPTION\n\n")
	fmt.Fprintf(&b, "Patient: %s\n", d.PatientName)
	fmt.Fprintf(&b, "Date: %s\n", d.Date.Format("2006-01-02"))
	fmt.Fprintf(&b, "Doctor: %s\n", d.DoctorName)
	if d.DoctorLicense != nil {
		fmt.Fprintf(&b, "License: %s\n", *d.DoctorLicense)
	}
	if d.ClinicName != nil {
		fmt.Fprintf(&b, "Clinic: %s\n", *d.ClinicName)
	}
	if d.ClinicAddress != nil {
		fmt.Fprintf(&b, "Address: %s\n", *d.ClinicAddress)
	}

	b.WriteString("\nMEDICATIONS:\n")
	for _, item := range d.Items {
		fmt.Fprintf(&b, "\n• %s - %s\n", item.DrugName, item.Dosage)
		fmt.Fprintf(&b, "  %s, %s\n", item.Frequency, item.Duration)
		if item.Instructions != nil {
			fmt.Fprintf(&b, "  Instructions: %s\n", *item.Instructions)
		}
	}

	if d.AdditionalInstructions != nil {
		fmt.Fprintf(&b, "\nAdditional Instructions:\n%s\n", *d.AdditionalInstructions)
	}

	b.WriteString("\nDoctor's Signature: _________________\n")
	return b.String()
}
