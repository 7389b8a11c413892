package symptom

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository is a PostgreSQL implementation of Repository.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL symptom repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

const selectEntrySQL = `
	SELECT
		id, user_id, to_char(log_date, 'YYYY-MM-DD'),
		symptoms, outdoor_minutes, notes,
		created_at, updated_at
	FROM symptom_logs
`

// Get retrieves the entry for a user and date.
func (r *PostgresRepository) Get(ctx context.Context, userID, date string) (*Entry, error) {
	day, err := ParseDate(date)
	if err != nil {
		return nil, err
	}

	e, err := scanEntry(r.pool.QueryRow(ctx, selectEntrySQL+` WHERE user_id = $1 AND log_date = $2`, userID, day))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrEntryNotFound
		}
		return nil, err
	}
	return e, nil
}

// List retrieves entries in [from, to], oldest first.
func (r *PostgresRepository) List(ctx context.Context, userID, from, to string) ([]*Entry, error) {
	fromDay, err := ParseDate(from)
	if err != nil {
		return nil, err
	}
	toDay, err := ParseDate(to)
	if err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx,
		selectEntrySQL+` WHERE user_id = $1 AND log_date BETWEEN $2 AND $3 ORDER BY log_date`,
		userID, fromDay, toDay,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Upsert stores the entry, replacing the one for the same date.
func (r *PostgresRepository) Upsert(ctx context.Context, entry *Entry) (bool, error) {
	day, err := ParseDate(entry.Date)
	if err != nil {
		return false, err
	}
	symptoms, err := json.Marshal(entry.Symptoms)
	if err != nil {
		return false, fmt.Errorf("encode symptoms: %w", err)
	}

	query := `
		INSERT INTO symptom_logs (id, user_id, log_date, symptoms, outdoor_minutes, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (user_id, log_date) DO UPDATE SET
			symptoms = EXCLUDED.symptoms,
			outdoor_minutes = EXCLUDED.outdoor_minutes,
			notes = EXCLUDED.notes,
			updated_at = EXCLUDED.updated_at
		RETURNING id, created_at, (xmax = 0)
	`

	var inserted bool
	err = r.pool.QueryRow(ctx, query,
		entry.ID,
		entry.UserID,
		day,
		symptoms,
		entry.OutdoorMinutes,
		entry.Notes,
		entry.CreatedAt,
		entry.UpdatedAt,
	).Scan(&entry.ID, &entry.CreatedAt, &inserted)
	if err != nil {
		return false, err
	}
	return inserted, nil
}

// Delete removes the entry for a user and date.
func (r *PostgresRepository) Delete(ctx context.Context, userID, date string) error {
	day, err := ParseDate(date)
	if err != nil {
		return err
	}

	tag, err := r.pool.Exec(ctx, `DELETE FROM symptom_logs WHERE user_id = $1 AND log_date = $2`, userID, day)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrEntryNotFound
	}
	return nil
}

// DeleteByUser removes every entry of a user.
func (r *PostgresRepository) DeleteByUser(ctx context.Context, userID string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM symptom_logs WHERE user_id = $1`, userID)
	return err
}

func scanEntry(row pgx.Row) (*Entry, error) {
	var (
		e        Entry
		symptoms []byte
	)
	err := row.Scan(
		&e.ID,
		&e.UserID,
		&e.Date,
		&symptoms,
		&e.OutdoorMinutes,
		&e.Notes,
		&e.CreatedAt,
		&e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(symptoms) > 0 {
		if err := json.Unmarshal(symptoms, &e.Symptoms); err != nil {
			return nil, fmt.Errorf("decode symptoms: %w", err)
		}
	}
	return &e, nil
}

// Ensure PostgresRepository implements Repository interface.
var _ Repository = (*PostgresRepository)(nil)
