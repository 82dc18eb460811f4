package patient

import (
	"context"
	"errors"
	"fmt"
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

type patientRepoPG struct{ pool *pgxpool.Pool }

func NewPatientRepoPG(pool *pgxpool.Pool) PatientRepository {
	return &patientRepoPG{pool: pool}
}

func (r *patientRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const patientCols = `id, patient_code, name, age, gender, phone, address,
	condition_diagnosis, notes, profile_picture_url, date_of_registration,
	next_appointment_date, archived_at, created_at, updated_at`

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.PatientCode, &p.Name, &p.Age, &p.Gender, &p.Phone, &p.Address,
		&p.ConditionDiagnosis, &p.Notes, &p.ProfilePictureURL, &p.DateOfRegistration,
		&p.NextAppointmentDate, &p.ArchivedAt, &p.CreatedAt, &p.UpdatedAt)
	return &p, err
}

// wrapErr maps driver errors onto the domain error taxonomy.
func wrapErr(op, resource, id string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return apperror.NotFound(resource, id)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return apperror.Conflictf("%s violates a uniqueness constraint", resource)
	}
	return apperror.Persistence(op, err)
}

func (r *patientRepoPG) Create(ctx context.Context, p *Patient) error {
	p.ID = uuid.New()
	// patient_code comes from the patient_code_seq default so concurrent
	// registrations never collide.
	row := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO patients (id, name, age, gender, phone, address,
			condition_diagnosis, notes, profile_picture_url, date_of_registration)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING patient_code, created_at, updated_at`,
		p.ID, p.Name, p.Age, p.Gender, p.Phone, p.Address,
		p.ConditionDiagnosis, p.Notes, p.ProfilePictureURL, p.DateOfRegistration)
	if err := row.Scan(&p.PatientCode, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return wrapErr("patient.create", "patient", p.ID.String(), err)
	}
	return nil
}

func (r *patientRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	p, err := scanPatient(r.conn(ctx).QueryRow(ctx,
		`SELECT `+patientCols+` FROM patients WHERE id = $1`, id))
	if err != nil {
		return nil, wrapErr("patient.get", "patient", id.String(), err)
	}
	return p, nil
}

func (r *patientRepoPG) GetByCode(ctx context.Context, code string) (*Patient, error) {
	p, err := scanPatient(r.conn(ctx).QueryRow(ctx,
		`SELECT `+patientCols+` FROM patients WHERE patient_code = $1`, code))
	if err != nil {
		return nil, wrapErr("patient.get_by_code", "patient", code, err)
	}
	return p, nil
}

func (r *patientRepoPG) Update(ctx context.Context, p *Patient) error {
	// patient_code is immutable and deliberately absent from the SET list.
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE patients SET name=$2, age=$3, gender=$4, phone=$5, address=$6,
			condition_diagnosis=$7, notes=$8, profile_picture_url=$9,
			date_of_registration=$10, updated_at=NOW()
		WHERE id = $1`,
		p.ID, p.Name, p.Age, p.Gender, p.Phone, p.Address,
		p.ConditionDiagnosis, p.Notes, p.ProfilePictureURL, p.DateOfRegistration)
	if err != nil {
		return wrapErr("patient.update", "patient", p.ID.String(), err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFound("patient", p.ID.String())
	}
	return nil
}

func (r *patientRepoPG) List(ctx context.Context, filter ListFilter, limit, offset int) ([]*Patient, int, error) {
	where := "WHERE 1=1"
	args := []interface{}{}
	if !filter.IncludeArchived {
		where += " AND archived_at IS NULL"
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		n := len(args)
		where += fmt.Sprintf(" AND (name ILIKE $%d OR patient_code ILIKE $%d OR phone LIKE $%d)", n, n, n)
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM patients `+where, args...).Scan(&total); err != nil {
		return nil, 0, wrapErr("patient.list", "patient", "", err)
	}

	args = append(args, limit, offset)
	rows, err := r.conn(ctx).Query(ctx, fmt.Sprintf(
		`SELECT %s FROM patients %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		patientCols, where, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, wrapErr("patient.list", "patient", "", err)
	}
	defer rows.Close()

	var items []*Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, 0, wrapErr("patient.list", "patient", "", err)
		}
		items = append(items, p)
	}
	return items, total, nil
}

func (r *patientRepoPG) ListAll(ctx context.Context) ([]*Patient, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+patientCols+` FROM patients ORDER BY created_at ASC`)
	if err != nil {
		return nil, wrapErr("patient.list_all", "patient", "", err)
	}
	defer rows.Close()

	var items []*Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, wrapErr("patient.list_all", "patient", "", err)
		}
		items = append(items, p)
	}
	return items, nil
}

func (r *patientRepoPG) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM patients WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, wrapErr("patient.exists", "patient", id.String(), err)
	}
	return exists, nil
}

func (r *patientRepoPG) NameOf(ctx context.Context, id uuid.UUID) (string, error) {
	var name string
	err := r.conn(ctx).QueryRow(ctx, `SELECT name FROM patients WHERE id = $1`, id).Scan(&name)
	if err != nil {
		return "", wrapErr("patient.name_of", "patient", id.String(), err)
	}
	return name, nil
}

func (r *patientRepoPG) SetNextAppointmentDate(ctx context.Context, id uuid.UUID, date *time.Time) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE patients SET next_appointment_date=$2, updated_at=NOW() WHERE id = $1`, id, date)
	if err != nil {
		return wrapErr("patient.set_next_appointment", "patient", id.String(), err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFound("patient", id.String())
	}
	return nil
}

func (r *patientRepoPG) SetArchived(ctx context.Context, id uuid.UUID, at *time.Time) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE patients SET archived_at=$2, updated_at=NOW() WHERE id = $1`, id, at)
	if err != nil {
		return wrapErr("patient.set_archived", "patient", id.String(), err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFound("patient", id.String())
	}
	return nil
}

func (r *patientRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM patients WHERE id = $1`, id)
	return wrapErr("patient.delete", "patient", id.String(), err)
}
