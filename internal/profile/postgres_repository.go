package profile

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dustguard/dustguard/internal/risk"
)

// PostgresRepository is a PostgreSQL implementation of Repository.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL profile repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

const selectProfileSQL = `
	SELECT
		user_id, age, conditions, sensitivity, activity,
		wearing_mask, has_air_purifier, outdoor_minutes, scale,
		lat, lon, locale,
		created_at, updated_at
	FROM health_profiles
`

// Get retrieves the profile of a user.
func (r *PostgresRepository) Get(ctx context.Context, userID string) (*Profile, error) {
	p, err := scanProfile(r.pool.QueryRow(ctx, selectProfileSQL+` WHERE user_id = $1`, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProfileNotFound
		}
		return nil, err
	}
	return p, nil
}

// Upsert creates or replaces the profile of a user.
func (r *PostgresRepository) Upsert(ctx context.Context, p *Profile) error {
	query := `
		INSERT INTO health_profiles (
			user_id, age, conditions, sensitivity, activity,
			wearing_mask, has_air_purifier, outdoor_minutes, scale,
			lat, lon, locale,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (user_id) DO UPDATE SET
			age = EXCLUDED.age,
			conditions = EXCLUDED.conditions,
			sensitivity = EXCLUDED.sensitivity,
			activity = EXCLUDED.activity,
			wearing_mask = EXCLUDED.wearing_mask,
			has_air_purifier = EXCLUDED.has_air_purifier,
			outdoor_minutes = EXCLUDED.outdoor_minutes,
			scale = EXCLUDED.scale,
			lat = EXCLUDED.lat,
			lon = EXCLUDED.lon,
			locale = EXCLUDED.locale,
			updated_at = EXCLUDED.updated_at
	`

	conditions := make([]string, len(p.Conditions))
	for i, c := range p.Conditions {
		conditions[i] = string(c)
	}

	var lat, lon *float64
	if p.Location != nil {
		lat, lon = &p.Location.Lat, &p.Location.Lon
	}

	_, err := r.pool.Exec(ctx, query,
		p.UserID,
		p.Age,
		conditions,
		string(p.Sensitivity),
		string(p.Activity),
		p.WearingMask,
		p.HasAirPurifier,
		p.OutdoorMinutes,
		string(p.Scale),
		lat,
		lon,
		p.Locale,
		p.CreatedAt,
		p.UpdatedAt,
	)
	return err
}

// Delete removes the profile of a user.
func (r *PostgresRepository) Delete(ctx context.Context, userID string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM health_profiles WHERE user_id = $1`, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrProfileNotFound
	}
	return nil
}

// ListWithLocation returns every profile with a location.
func (r *PostgresRepository) ListWithLocation(ctx context.Context) ([]*Profile, error) {
	rows, err := r.pool.Query(ctx, selectProfileSQL+` WHERE lat IS NOT NULL AND lon IS NOT NULL ORDER BY user_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var profiles []*Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

func scanProfile(row pgx.Row) (*Profile, error) {
	var (
		p           Profile
		conditions  []string
		sensitivity string
		activity    string
		scale       string
		lat, lon    *float64
	)

	err := row.Scan(
		&p.UserID,
		&p.Age,
		&conditions,
		&sensitivity,
		&activity,
		&p.WearingMask,
		&p.HasAirPurifier,
		&p.OutdoorMinutes,
		&scale,
		&lat,
		&lon,
		&p.Locale,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	p.Conditions = make([]risk.Condition, len(conditions))
	for i, c := range conditions {
		p.Conditions[i] = risk.Condition(c)
	}
	p.Sensitivity = risk.Sensitivity(sensitivity)
	p.Activity = risk.Activity(activity)
	p.Scale = risk.ScaleName(scale)
	if lat != nil && lon != nil {
		p.Location = &Location{Lat: *lat, Lon: *lon}
	}
	p.Stored = true

	return &p, nil
}

// Ensure PostgresRepository implements Repository interface.
var _ Repository = (*PostgresRepository)(nil)
