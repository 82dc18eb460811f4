package prescription

import (
	"context"
	"errors"

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

type prescriptionRepoPG struct{ pool *pgxpool.Pool }

func NewPrescriptionRepoPG(pool *pgxpool.Pool) PrescriptionRepository {
	return &prescriptionRepoPG{pool: pool}
}

func (r *prescriptionRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

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

const prescriptionCols = `id, patient_id, prescription_date, doctor_name, doctor_license,
	clinic_name, clinic_address, medication_ids, additional_instructions, created_at, updated_at`

func scanPrescription(row pgx.Row) (*Prescription, error) {
	var p Prescription
	err := row.Scan(&p.ID, &p.PatientID, &p.PrescriptionDate, &p.DoctorName, &p.DoctorLicense,
		&p.ClinicName, &p.ClinicAddress, &p.MedicationIDs, &p.AdditionalInstructions,
		&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *prescriptionRepoPG) Create(ctx context.Context, p *Prescription) error {
	q := r.conn(ctx)
	p.ID = uuid.New()

	err := q.QueryRow(ctx, `
		INSERT INTO prescriptions (id, patient_id, prescription_date, doctor_name, doctor_license,
			clinic_name, clinic_address, medication_ids, additional_instructions)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at`,
		p.ID, p.PatientID, p.PrescriptionDate, p.DoctorName, p.DoctorLicense,
		p.ClinicName, p.ClinicAddress, p.MedicationIDs, p.AdditionalInstructions,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return apperror.Persistence("prescription.create", err)
	}

	for i, item := range p.Items {
		_, err := q.Exec(ctx, `
			INSERT INTO prescription_items (prescription_id, position, medication_id,
				drug_name, dosage, frequency, duration, instructions)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			p.ID, i, item.MedicationID, item.DrugName, item.Dosage,
			item.Frequency, item.Duration, item.Instructions)
		if err != nil {
			return apperror.Persistence("prescription.create_item", err)
		}
	}
	return nil
}

func (r *prescriptionRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Prescription, error) {
	row := r.conn(ctx).QueryRow(ctx,
		`SELECT `+prescriptionCols+` FROM prescriptions WHERE id = $1`, id)
	p, err := scanPrescription(row)
	if err != nil {
		return nil, wrapErr("prescription.get", "prescription", id.String(), err)
	}
	items, err := r.loadItems(ctx, []uuid.UUID{id})
	if err != nil {
		return nil, err
	}
	p.Items = items[id]
	return p, nil
}

func (r *prescriptionRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Prescription, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+prescriptionCols+` FROM prescriptions WHERE patient_id = $1 ORDER BY created_at DESC`,
		patientID)
	if err != nil {
		return nil, apperror.Persistence("prescription.list", err)
	}
	defer rows.Close()

	var out []*Prescription
	var ids []uuid.UUID
	for rows.Next() {
		p, err := scanPrescription(rows)
		if err != nil {
			return nil, apperror.Persistence("prescription.list", err)
		}
		out = append(out, p)
		ids = append(ids, p.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, apperror.Persistence("prescription.list", err)
	}
	if len(ids) == 0 {
		return out, nil
	}

	items, err := r.loadItems(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, p := range out {
		p.Items = items[p.ID]
	}
	return out, nil
}

func (r *prescriptionRepoPG) loadItems(ctx context.Context, prescriptionIDs []uuid.UUID) (map[uuid.UUID][]Item, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT prescription_id, medication_id, drug_name, dosage, frequency, duration, instructions
		FROM prescription_items
		WHERE prescription_id = ANY($1)
		ORDER BY prescription_id, position`,
		prescriptionIDs)
	if err != nil {
		return nil, apperror.Persistence("prescription.load_items", err)
	}
	defer rows.Close()

	out := make(map[uuid.UUID][]Item, len(prescriptionIDs))
	for rows.Next() {
		var pid uuid.UUID
		var item Item
		if err := rows.Scan(&pid, &item.MedicationID, &item.DrugName, &item.Dosage,
			&item.Frequency, &item.Duration, &item.Instructions); err != nil {
			return nil, apperror.Persistence("prescription.load_items", err)
		}
		out[pid] = append(out[pid], item)
	}
	if err := rows.Err(); err != nil {
		return nil, apperror.Persistence("prescription.load_items", err)
	}
	return out, nil
}

func (r *prescriptionRepoPG) DeleteByPatient(ctx context.Context, patientID uuid.UUID) error {
	q := r.conn(ctx)
	_, err := q.Exec(ctx, `
		DELETE FROM prescription_items
		WHERE prescription_id IN (SELECT id FROM prescriptions WHERE patient_id = $1)`,
		patientID)
	if err != nil {
		return apperror.Persistence("prescription.delete_items_by_patient", err)
	}
	if _, err := q.Exec(ctx, `DELETE FROM prescriptions WHERE patient_id = $1`, patientID); err != nil {
		return apperror.Persistence("prescription.delete_by_patient", err)
	}
	return nil
}

func (r *prescriptionRepoPG) Count(ctx context.Context) (int, error) {
	var n int
	err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM prescriptions`).Scan(&n)
	if err != nil {
		return 0, apperror.Persistence("prescription.count", err)
	}
	return n, nil
}
