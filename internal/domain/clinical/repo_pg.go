package clinical

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinicdesk/clinicdesk/internal/platform/db"
	"github.com/clinicdesk/clinicdesk/pkg/apperror"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

func wrapErr(op, resource, id string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return apperror.NotFound(resource, id)
	}
	return apperror.Persistence(op, err)
}

// =========== Appointment Repository ===========

type appointmentRepoPG struct{ pool *pgxpool.Pool }

func NewAppointmentRepoPG(pool *pgxpool.Pool) AppointmentRepository {
	return &appointmentRepoPG{pool: pool}
}

func (r *appointmentRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const apptCols = `id, patient_id, appointment_date, appointment_time, purpose, notes,
	status, reminder_sent, created_at, updated_at`

func scanAppt(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(&a.ID, &a.PatientID, &a.Date, &a.Time, &a.Purpose, &a.Notes,
		&a.Status, &a.ReminderSent, &a.CreatedAt, &a.UpdatedAt)
	return &a, err
}

func (r *appointmentRepoPG) Create(ctx context.Context, a *Appointment) error {
	a.ID = uuid.New()
	row := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO appointments (id, patient_id, appointment_date, appointment_time,
			purpose, notes, status, reminder_sent)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING created_at, updated_at`,
		a.ID, a.PatientID, a.Date, a.Time, a.Purpose, a.Notes, a.Status, a.ReminderSent)
	if err := row.Scan(&a.CreatedAt, &a.UpdatedAt); err != nil {
		return wrapErr("appointment.create", "appointment", a.ID.String(), err)
	}
	return nil
}

func (r *appointmentRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	a, err := scanAppt(r.conn(ctx).QueryRow(ctx,
		`SELECT `+apptCols+` FROM appointments WHERE id = $1`, id))
	if err != nil {
		return nil, wrapErr("appointment.get", "appointment", id.String(), err)
	}
	return a, nil
}

func (r *appointmentRepoPG) collect(rows pgx.Rows, err error, op string) ([]*Appointment, error) {
	if err != nil {
		return nil, wrapErr(op, "appointment", "", err)
	}
	defer rows.Close()
	var items []*Appointment
	for rows.Next() {
		a, err := scanAppt(rows)
		if err != nil {
			return nil, wrapErr(op, "appointment", "", err)
		}
		items = append(items, a)
	}
	return items, nil
}

func (r *appointmentRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM appointments WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, wrapErr("appointment.list_by_patient", "appointment", "", err)
	}
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+apptCols+` FROM appointments WHERE patient_id = $1
		ORDER BY appointment_date DESC, appointment_time DESC NULLS LAST
		LIMIT $2 OFFSET $3`, patientID, limit, offset)
	items, err := r.collect(rows, err, "appointment.list_by_patient")
	return items, total, err
}

func (r *appointmentRepoPG) ListOnDate(ctx context.Context, date time.Time) ([]*Appointment, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+apptCols+` FROM appointments WHERE appointment_date = $1
		ORDER BY appointment_date ASC, appointment_time ASC NULLS LAST`, date)
	return r.collect(rows, err, "appointment.list_on_date")
}

func (r *appointmentRepoPG) ListUpcoming(ctx context.Context, after time.Time) ([]*Appointment, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+apptCols+` FROM appointments
		WHERE appointment_date > $1 AND status = 'scheduled'
		ORDER BY appointment_date ASC, appointment_time ASC NULLS LAST`, after)
	return r.collect(rows, err, "appointment.list_upcoming")
}

func (r *appointmentRepoPG) TransitionStatus(ctx context.Context, id uuid.UUID, from, to string) (bool, error) {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE appointments SET status=$3, updated_at=NOW()
		WHERE id = $1 AND status = $2`, id, from, to)
	if err != nil {
		return false, wrapErr("appointment.transition", "appointment", id.String(), err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *appointmentRepoPG) NextScheduledDate(ctx context.Context, patientID uuid.UUID, onOrAfter time.Time) (*time.Time, error) {
	var next *time.Time
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT MIN(appointment_date) FROM appointments
		WHERE patient_id = $1 AND status = 'scheduled' AND appointment_date >= $2`,
		patientID, onOrAfter).Scan(&next)
	if err != nil {
		return nil, wrapErr("appointment.next_scheduled", "appointment", "", err)
	}
	return next, nil
}

func (r *appointmentRepoPG) NextForPatient(ctx context.Context, patientID uuid.UUID, onOrAfter time.Time) (*Appointment, error) {
	row := r.conn(ctx).QueryRow(ctx, `
		SELECT `+apptCols+` FROM appointments
		WHERE patient_id = $1 AND status = 'scheduled' AND appointment_date >= $2
		ORDER BY appointment_date ASC, appointment_time ASC NULLS LAST
		LIMIT 1`, patientID, onOrAfter)
	a, err := scanAppt(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapErr("appointment.next_for_patient", "appointment", "", err)
	}
	return a, nil
}

func (r *appointmentRepoPG) SetReminderSent(ctx context.Context, id uuid.UUID, sent bool) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE appointments SET reminder_sent=$2, updated_at=NOW() WHERE id = $1`, id, sent)
	if err != nil {
		return wrapErr("appointment.set_reminder", "appointment", id.String(), err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFound("appointment", id.String())
	}
	return nil
}

func (r *appointmentRepoPG) DeleteByPatient(ctx context.Context, patientID uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM appointments WHERE patient_id = $1`, patientID)
	return wrapErr("appointment.delete_by_patient", "appointment", "", err)
}

func (r *appointmentRepoPG) Count(ctx context.Context) (int, error) {
	var n int
	err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM appointments`).Scan(&n)
	return n, wrapErr("appointment.count", "appointment", "", err)
}

// =========== Medication Repository ===========

type medicationRepoPG struct{ pool *pgxpool.Pool }

func NewMedicationRepoPG(pool *pgxpool.Pool) MedicationRepository {
	return &medicationRepoPG{pool: pool}
}

func (r *medicationRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const medCols = `id, patient_id, drug_name, dosage, frequency, duration,
	start_date, end_date, instructions, prescribed_by, notes, status,
	created_at, updated_at`

func scanMed(row pgx.Row) (*Medication, error) {
	var m Medication
	err := row.Scan(&m.ID, &m.PatientID, &m.DrugName, &m.Dosage, &m.Frequency, &m.Duration,
		&m.StartDate, &m.EndDate, &m.Instructions, &m.PrescribedBy, &m.Notes, &m.Status,
		&m.CreatedAt, &m.UpdatedAt)
	return &m, err
}

func (r *medicationRepoPG) Create(ctx context.Context, m *Medication) error {
	m.ID = uuid.New()
	row := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO medications (id, patient_id, drug_name, dosage, frequency, duration,
			start_date, end_date, instructions, prescribed_by, notes, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		RETURNING created_at, updated_at`,
		m.ID, m.PatientID, m.DrugName, m.Dosage, m.Frequency, m.Duration,
		m.StartDate, m.EndDate, m.Instructions, m.PrescribedBy, m.Notes, m.Status)
	if err := row.Scan(&m.CreatedAt, &m.UpdatedAt); err != nil {
		return wrapErr("medication.create", "medication", m.ID.String(), err)
	}
	return nil
}

func (r *medicationRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Medication, error) {
	m, err := scanMed(r.conn(ctx).QueryRow(ctx,
		`SELECT `+medCols+` FROM medications WHERE id = $1`, id))
	if err != nil {
		return nil, wrapErr("medication.get", "medication", id.String(), err)
	}
	return m, nil
}

func (r *medicationRepoPG) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]*Medication, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+medCols+` FROM medications WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, wrapErr("medication.get_by_ids", "medication", "", err)
	}
	defer rows.Close()
	var items []*Medication
	for rows.Next() {
		m, err := scanMed(rows)
		if err != nil {
			return nil, wrapErr("medication.get_by_ids", "medication", "", err)
		}
		items = append(items, m)
	}
	return items, nil
}

func (r *medicationRepoPG) Update(ctx context.Context, m *Medication) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE medications SET drug_name=$2, dosage=$3, frequency=$4, duration=$5,
			start_date=$6, end_date=$7, instructions=$8, prescribed_by=$9,
			notes=$10, status=$11, updated_at=NOW()
		WHERE id = $1`,
		m.ID, m.DrugName, m.Dosage, m.Frequency, m.Duration,
		m.StartDate, m.EndDate, m.Instructions, m.PrescribedBy, m.Notes, m.Status)
	if err != nil {
		return wrapErr("medication.update", "medication", m.ID.String(), err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFound("medication", m.ID.String())
	}
	return nil
}

func (r *medicationRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, activeOnly bool) ([]*Medication, error) {
	query := `SELECT ` + medCols + ` FROM medications WHERE patient_id = $1`
	if activeOnly {
		query += ` AND status = 'active'`
	}
	query += ` ORDER BY created_at DESC`
	rows, err := r.conn(ctx).Query(ctx, query, patientID)
	if err != nil {
		return nil, wrapErr("medication.list_by_patient", "medication", "", err)
	}
	defer rows.Close()
	var items []*Medication
	for rows.Next() {
		m, err := scanMed(rows)
		if err != nil {
			return nil, wrapErr("medication.list_by_patient", "medication", "", err)
		}
		items = append(items, m)
	}
	return items, nil
}

func (r *medicationRepoPG) DeleteByPatient(ctx context.Context, patientID uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM medications WHERE patient_id = $1`, patientID)
	return wrapErr("medication.delete_by_patient", "medication", "", err)
}

func (r *medicationRepoPG) Count(ctx context.Context) (int, error) {
	var n int
	err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM medications`).Scan(&n)
	return n, wrapErr("medication.count", "medication", "", err)
}

// =========== Allergy Repository ===========

type allergyRepoPG struct{ pool *pgxpool.Pool }

func NewAllergyRepoPG(pool *pgxpool.Pool) AllergyRepository {
	return &allergyRepoPG{pool: pool}
}

func (r *allergyRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const allergyCols = `id, patient_id, allergen, reaction, severity, notes, created_at, updated_at`

func (r *allergyRepoPG) Create(ctx context.Context, a *Allergy) error {
	a.ID = uuid.New()
	row := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO patient_allergies (id, patient_id, allergen, reaction, severity, notes)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING created_at, updated_at`,
		a.ID, a.PatientID, a.Allergen, a.Reaction, a.Severity, a.Notes)
	if err := row.Scan(&a.CreatedAt, &a.UpdatedAt); err != nil {
		return wrapErr("allergy.create", "allergy", a.ID.String(), err)
	}
	return nil
}

func (r *allergyRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Allergy, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+allergyCols+` FROM patient_allergies
		WHERE patient_id = $1 ORDER BY created_at DESC`, patientID)
	if err != nil {
		return nil, wrapErr("allergy.list_by_patient", "allergy", "", err)
	}
	defer rows.Close()
	var items []*Allergy
	for rows.Next() {
		var a Allergy
		if err := rows.Scan(&a.ID, &a.PatientID, &a.Allergen, &a.Reaction, &a.Severity,
			&a.Notes, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, wrapErr("allergy.list_by_patient", "allergy", "", err)
		}
		items = append(items, &a)
	}
	return items, nil
}

func (r *allergyRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM patient_allergies WHERE id = $1`, id)
	if err != nil {
		return wrapErr("allergy.delete", "allergy", id.String(), err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFound("allergy", id.String())
	}
	return nil
}

func (r *allergyRepoPG) DeleteByPatient(ctx context.Context, patientID uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM patient_allergies WHERE patient_id = $1`, patientID)
	return wrapErr("allergy.delete_by_patient", "allergy", "", err)
}

// =========== VisitNote Repository ===========

type visitNoteRepoPG struct{ pool *pgxpool.Pool }

func NewVisitNoteRepoPG(pool *pgxpool.Pool) VisitNoteRepository {
	return &visitNoteRepoPG{pool: pool}
}

func (r *visitNoteRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

func (r *visitNoteRepoPG) Create(ctx context.Context, v *VisitNote) error {
	v.ID = uuid.New()
	row := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO visit_notes (id, patient_id, visit_date, notes)
		VALUES ($1,$2,$3,$4)
		RETURNING created_at`,
		v.ID, v.PatientID, v.VisitDate, v.Notes)
	if err := row.Scan(&v.CreatedAt); err != nil {
		return wrapErr("visit_note.create", "visit note", v.ID.String(), err)
	}
	return nil
}

func (r *visitNoteRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*VisitNote, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, patient_id, visit_date, notes, created_at FROM visit_notes
		WHERE patient_id = $1 ORDER BY created_at DESC`, patientID)
	if err != nil {
		return nil, wrapErr("visit_note.list_by_patient", "visit note", "", err)
	}
	defer rows.Close()
	var items []*VisitNote
	for rows.Next() {
		var v VisitNote
		if err := rows.Scan(&v.ID, &v.PatientID, &v.VisitDate, &v.Notes, &v.CreatedAt); err != nil {
			return nil, wrapErr("visit_note.list_by_patient", "visit note", "", err)
		}
		items = append(items, &v)
	}
	return items, nil
}

func (r *visitNoteRepoPG) DeleteByPatient(ctx context.Context, patientID uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM visit_notes WHERE patient_id = $1`, patientID)
	return wrapErr("visit_note.delete_by_patient", "visit note", "", err)
}

func (r *visitNoteRepoPG) Count(ctx context.Context) (int, error) {
	var n int
	err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM visit_notes`).Scan(&n)
	return n, wrapErr("visit_note.count", "visit note", "", err)
}
