package prescription

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinicdesk/clinicdesk/pkg/apperror"
)

// DrugInteraction is reference data for prescriber review. Compose does not
// consult it; callers query it explicitly when building a prescription.
type DrugInteraction struct {
	ID          uuid.UUID `db:"id" json:"id"`
	DrugA       string    `db:"drug_a" json:"drug_a"`
	DrugB       string    `db:"drug_b" json:"drug_b"`
	Severity    string    `db:"severity" json:"severity"`
	Description string    `db:"description" json:"description"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

var validInteractionSeverities = map[string]bool{
	"minor": true, "moderate": true, "major": true,
}

type InteractionRepository interface {
	Create(ctx context.Context, i *DrugInteraction) error
	ListForDrug(ctx context.Context, drugName string) ([]*DrugInteraction, error)
	ListAll(ctx context.Context) ([]*DrugInteraction, error)
}

type interactionRepoPG struct{ pool *pgxpool.Pool }

func NewInteractionRepoPG(pool *pgxpool.Pool) InteractionRepository {
	return &interactionRepoPG{pool: pool}
}

const interactionCols = `id, drug_a, drug_b, severity, description, created_at`

func (r *interactionRepoPG) Create(ctx context.Context, i *DrugInteraction) error {
	i.ID = uuid.New()
	err := r.pool.QueryRow(ctx, `
		INSERT INTO drug_interactions (id, drug_a, drug_b, severity, description)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at`,
		i.ID, i.DrugA, i.DrugB, i.Severity, i.Description,
	).Scan(&i.CreatedAt)
	if err != nil {
		return wrapErr("interaction.create", "interaction", i.ID.String(), err)
	}
	return nil
}

func (r *interactionRepoPG) ListForDrug(ctx context.Context, drugName string) ([]*DrugInteraction, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+interactionCols+` FROM drug_interactions
		WHERE LOWER(drug_a) = LOWER($1) OR LOWER(drug_b) = LOWER($1)
		ORDER BY severity, drug_a, drug_b`,
		drugName)
	if err != nil {
		return nil, apperror.Persistence("interaction.list_for_drug", err)
	}
	defer rows.Close()
	return scanInteractions(rows)
}

func (r *interactionRepoPG) ListAll(ctx context.Context) ([]*DrugInteraction, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+interactionCols+` FROM drug_interactions ORDER BY drug_a, drug_b`)
	if err != nil {
		return nil, apperror.Persistence("interaction.list", err)
	}
	defer rows.Close()
	return scanInteractions(rows)
}

func scanInteractions(rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}) ([]*DrugInteraction, error) {
	var out []*DrugInteraction
	for rows.Next() {
		var i DrugInteraction
		if err := rows.Scan(&i.ID, &i.DrugA, &i.DrugB, &i.Severity, &i.Description, &i.CreatedAt); err != nil {
			return nil, apperror.Persistence("interaction.scan", err)
		}
		out = append(out, &i)
	}
	if err := rows.Err(); err != nil {
		return nil, apperror.Persistence("interaction.scan", err)
	}
	return out, nil
}

// AddInteraction stores one reference pair. Pairs are unique; re-adding the
// same pair fails with a conflict.
func (s *Service) AddInteraction(ctx context.Context, i *DrugInteraction) error {
	i.DrugA = strings.TrimSpace(i.DrugA)
	i.DrugB = strings.TrimSpace(i.DrugB)
	if i.DrugA == "" || i.DrugB == "" {
		return apperror.Validationf("both drug names are required")
	}
	if !validInteractionSeverities[i.Severity] {
		return apperror.Validationf("invalid severity: %s", i.Severity)
	}
	if i.Description == "" {
		return apperror.Validationf("description is required")
	}
	return s.interactions.Create(ctx, i)
}

func (s *Service) ListInteractions(ctx context.Context, drugName string) ([]*DrugInteraction, error) {
	if drugName == "" {
		return s.interactions.ListAll(ctx)
	}
	return s.interactions.ListForDrug(ctx, drugName)
}
