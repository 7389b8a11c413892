package assessment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dustguard/dustguard/internal/risk"
	"github.com/dustguard/dustguard/internal/symptom"
)

// PostgresRepository is a PostgreSQL implementation of Repository.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL assessment repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

const selectAssessmentSQL = `
	SELECT
		id, user_id, to_char(assess_date, 'YYYY-MM-DD'),
		scale, value, raw, category,
		breakdown, detail, clamped, reading,
		symptoms_logged, alert,
		created_at, updated_at
	FROM risk_assessments
`

// Get retrieves the assessment of a user for a date.
func (r *PostgresRepository) Get(ctx context.Context, userID, date string) (*Assessment, error) {
	day, err := symptom.ParseDate(date)
	if err != nil {
		return nil, err
	}
	return r.one(ctx, selectAssessmentSQL+` WHERE user_id = $1 AND assess_date = $2`, userID, day)
}

// Previous retrieves the most recent assessment before date.
func (r *PostgresRepository) Previous(ctx context.Context, userID, date string) (*Assessment, error) {
	day, err := symptom.ParseDate(date)
	if err != nil {
		return nil, err
	}
	return r.one(ctx,
		selectAssessmentSQL+` WHERE user_id = $1 AND assess_date < $2 ORDER BY assess_date DESC LIMIT 1`,
		userID, day,
	)
}

// List retrieves assessments in [from, to], oldest first.
func (r *PostgresRepository) List(ctx context.Context, userID, from, to string) ([]*Assessment, error) {
	fromDay, err := symptom.ParseDate(from)
	if err != nil {
		return nil, err
	}
	toDay, err := symptom.ParseDate(to)
	if err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx,
		selectAssessmentSQL+` WHERE user_id = $1 AND assess_date BETWEEN $2 AND $3 ORDER BY assess_date`,
		userID, fromDay, toDay,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Assessment
	for rows.Next() {
		a, err := scanAssessment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Upsert stores the assessment, replacing the one for the same date.
func (r *PostgresRepository) Upsert(ctx context.Context, a *Assessment) error {
	day, err := symptom.ParseDate(a.Date)
	if err != nil {
		return err
	}

	breakdown, err := json.Marshal(a.Breakdown)
	if err != nil {
		return fmt.Errorf("encode breakdown: %w", err)
	}
	detail, err := json.Marshal(a.Detail)
	if err != nil {
		return fmt.Errorf("encode detail: %w", err)
	}
	reading, err := json.Marshal(a.Reading)
	if err != nil {
		return fmt.Errorf("encode reading: %w", err)
	}
	var outcome []byte
	if a.Alert != nil {
		if outcome, err = json.Marshal(a.Alert); err != nil {
			return fmt.Errorf("encode alert: %w", err)
		}
	}

	query := `
		INSERT INTO risk_assessments (
			id, user_id, assess_date,
			scale, value, raw, category,
			breakdown, detail, clamped, reading,
			symptoms_logged, alert,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (user_id, assess_date) DO UPDATE SET
			scale = EXCLUDED.scale,
			value = EXCLUDED.value,
			raw = EXCLUDED.raw,
			category = EXCLUDED.category,
			breakdown = EXCLUDED.breakdown,
			detail = EXCLUDED.detail,
			clamped = EXCLUDED.clamped,
			reading = EXCLUDED.reading,
			symptoms_logged = EXCLUDED.symptoms_logged,
			alert = EXCLUDED.alert,
			updated_at = EXCLUDED.updated_at
		RETURNING id, created_at
	`

	clamped := a.Clamped
	if clamped == nil {
		clamped = []string{}
	}

	return r.pool.QueryRow(ctx, query,
		a.ID,
		a.UserID,
		day,
		string(a.Scale),
		a.Value,
		a.Raw,
		string(a.Category),
		breakdown,
		detail,
		clamped,
		reading,
		a.SymptomsLogged,
		outcome,
		a.CreatedAt,
		a.UpdatedAt,
	).Scan(&a.ID, &a.CreatedAt)
}

// DeleteByUser removes every assessment of a user.
func (r *PostgresRepository) DeleteByUser(ctx context.Context, userID string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM risk_assessments WHERE user_id = $1`, userID)
	return err
}

func (r *PostgresRepository) one(ctx context.Context, query string, args ...any) (*Assessment, error) {
	a, err := scanAssessment(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAssessmentNotFound
		}
		return nil, err
	}
	return a, nil
}

func scanAssessment(row pgx.Row) (*Assessment, error) {
	var (
		a                                   Assessment
		scale, category                     string
		breakdown, detail, reading, outcome []byte
	)

	err := row.Scan(
		&a.ID,
		&a.UserID,
		&a.Date,
		&scale,
		&a.Value,
		&a.Raw,
		&category,
		&breakdown,
		&detail,
		&a.Clamped,
		&reading,
		&a.SymptomsLogged,
		&outcome,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	a.Scale = risk.ScaleName(scale)
	a.Category = risk.Category(category)

	if err := json.Unmarshal(breakdown, &a.Breakdown); err != nil {
		return nil, fmt.Errorf("decode breakdown: %w", err)
	}
	if len(detail) > 0 {
		if err := json.Unmarshal(detail, &a.Detail); err != nil {
			return nil, fmt.Errorf("decode detail: %w", err)
		}
	}
	if err := json.Unmarshal(reading, &a.Reading); err != nil {
		return nil, fmt.Errorf("decode reading: %w", err)
	}
	if len(outcome) > 0 {
		a.Alert = &AlertOutcome{}
		if err := json.Unmarshal(outcome, a.Alert); err != nil {
			return nil, fmt.Errorf("decode alert: %w", err)
		}
	}

	return &a, nil
}

// Ensure PostgresRepository implements Repository interface.
var _ Repository = (*PostgresRepository)(nil)
