package patientfile

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

type fileRepoPG struct{ pool *pgxpool.Pool }

func NewFileRepoPG(pool *pgxpool.Pool) FileRepository {
	return &fileRepoPG{pool: pool}
}

func (r *fileRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

func wrapErr(op, id string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return apperror.NotFound("file", id)
	}
	return apperror.Persistence(op, err)
}

const fileCols = `id, patient_id, file_name, file_path, file_type, file_size, uploaded_at`

func scanFile(row pgx.Row) (*PatientFile, error) {
	var f PatientFile
	err := row.Scan(&f.ID, &f.PatientID, &f.FileName, &f.FilePath, &f.FileType, &f.FileSize, &f.UploadedAt)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func (r *fileRepoPG) Create(ctx context.Context, f *PatientFile) error {
	f.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO patient_files (id, patient_id, file_name, file_path, file_type, file_size)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING uploaded_at`,
		f.ID, f.PatientID, f.FileName, f.FilePath, f.FileType, f.FileSize,
	).Scan(&f.UploadedAt)
	if err != nil {
		return apperror.Persistence("file.create", err)
	}
	return nil
}

func (r *fileRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*PatientFile, error) {
	row := r.conn(ctx).QueryRow(ctx,
		`SELECT `+fileCols+` FROM patient_files WHERE id = $1`, id)
	f, err := scanFile(row)
	if err != nil {
		return nil, wrapErr("file.get", id.String(), err)
	}
	return f, nil
}

func (r *fileRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*PatientFile, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+fileCols+` FROM patient_files WHERE patient_id = $1 ORDER BY uploaded_at DESC`,
		patientID)
	if err != nil {
		return nil, apperror.Persistence("file.list", err)
	}
	defer rows.Close()

	var out []*PatientFile
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, apperror.Persistence("file.list", err)
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, apperror.Persistence("file.list", err)
	}
	return out, nil
}

func (r *fileRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM patient_files WHERE id = $1`, id)
	if err != nil {
		return apperror.Persistence("file.delete", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFound("file", id.String())
	}
	return nil
}

func (r *fileRepoPG) DeleteByPatient(ctx context.Context, patientID uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM patient_files WHERE patient_id = $1`, patientID)
	if err != nil {
		return apperror.Persistence("file.delete_by_patient", err)
	}
	return nil
}
