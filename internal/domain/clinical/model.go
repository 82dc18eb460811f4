package clinical

import (
	"time"

	"github.com/google/uuid"
)

// Appointment statuses. Scheduled is the only non-terminal state; every
// transition out of it is final.
const (
	ApptScheduled = "scheduled"
	ApptCompleted = "completed"
	ApptCancelled = "cancelled"
	ApptNoShow    = "no-show"
)

var terminalApptStatuses = map[string]bool{
	ApptCompleted: true, ApptCancelled: true, ApptNoShow: true,
}

// Appointment is a scheduled encounter. Time is optional ("15:04"); entries
// without a time sort after timed ones on the same day.
type Appointment struct {
	ID           uuid.UUID `db:"id" json:"id"`
	PatientID    uuid.UUID `db:"patient_id" json:"patient_id"`
	Date         time.Time `db:"appointment_date" json:"appointment_date"`
	Time         *string   `db:"appointment_time" json:"appointment_time,omitempty"`
	Purpose      *string   `db:"purpose" json:"purpose,omitempty"`
	Notes        *string   `db:"notes" json:"notes,omitempty"`
	Status       string    `db:"status" json:"status"`
	ReminderSent bool      `db:"reminder_sent" json:"reminder_sent"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// Medication statuses.
const (
	MedActive       = "active"
	MedCompleted    = "completed"
	MedDiscontinued = "discontinued"
)

var validMedStatuses = map[string]bool{
	MedActive: true, MedCompleted: true, MedDiscontinued: true,
}

// Dosing cadence tokens accepted on a medication.
const (
	FreqOnceDaily       = "once_daily"
	FreqTwiceDaily      = "twice_daily"
	FreqThreeTimesDaily = "three_times_daily"
	FreqFourTimesDaily  = "four_times_daily"
	FreqAsNeeded        = "as_needed"
	FreqWeekly          = "weekly"
	FreqMonthly         = "monthly"
)

var validFrequencies = map[string]bool{
	FreqOnceDaily:       true,
	FreqTwiceDaily:      true,
	FreqThreeTimesDaily: true,
	FreqFourTimesDaily:  true,
	FreqAsNeeded:        true,
	FreqWeekly:          true,
	FreqMonthly:         true,
}

// Medication is one prescribed course for a patient.
type Medication struct {
	ID           uuid.UUID  `db:"id" json:"id"`
	PatientID    uuid.UUID  `db:"patient_id" json:"patient_id"`
	DrugName     string     `db:"drug_name" json:"drug_name"`
	Dosage       string     `db:"dosage" json:"dosage"`
	Frequency    string     `db:"frequency" json:"frequency"`
	Duration     string     `db:"duration" json:"duration"`
	StartDate    time.Time  `db:"start_date" json:"start_date"`
	EndDate      *time.Time `db:"end_date" json:"end_date,omitempty"`
	Instructions *string    `db:"instructions" json:"instructions,omitempty"`
	PrescribedBy *string    `db:"prescribed_by" json:"prescribed_by,omitempty"`
	Notes        *string    `db:"notes" json:"notes,omitempty"`
	Status       string     `db:"status" json:"status"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// Allergy severities.
var validSeverities = map[string]bool{
	"mild": true, "moderate": true, "severe": true,
}

type Allergy struct {
	ID        uuid.UUID `db:"id" json:"id"`
	PatientID uuid.UUID `db:"patient_id" json:"patient_id"`
	Allergen  string    `db:"allergen" json:"allergen"`
	Reaction  *string   `db:"reaction" json:"reaction,omitempty"`
	Severity  string    `db:"severity" json:"severity"`
	Notes     *string   `db:"notes" json:"notes,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// VisitNote is an append-only narrative record of one visit.
type VisitNote struct {
	ID        uuid.UUID `db:"id" json:"id"`
	PatientID uuid.UUID `db:"patient_id" json:"patient_id"`
	VisitDate time.Time `db:"visit_date" json:"visit_date"`
	Notes     string    `db:"notes" json:"notes"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// PatientSummary is the current clinical view of one patient.
type PatientSummary struct {
	ActiveMedications []*Medication `json:"active_medications"`
	Allergies         []*Allergy    `json:"allergies"`
	NextAppointment   *Appointment  `json:"next_appointment,omitempty"`
}
