package profile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/dustguard/dustguard/internal/airquality"
	"github.com/dustguard/dustguard/internal/api/models"
	"github.com/dustguard/dustguard/internal/risk"
)

// Validation constants.
const (
	MaxAge            = 130
	MaxOutdoorMinutes = 24 * 60
	MaxLocaleLength   = 35
)

// ValidationError represents validation errors.
type ValidationError struct {
	Errors []models.FieldError
}

func (e *ValidationError) Error() string {
	return "validation failed"
}

// ScaleChecker reports whether a scale name is configured.
type ScaleChecker interface {
	HasScale(name risk.ScaleName) bool
}

// Input is a full profile update.
type Input struct {
	Age            int
	Conditions     []risk.Condition
	Sensitivity    risk.Sensitivity
	Activity       risk.Activity
	WearingMask    bool
	HasAirPurifier bool
	OutdoorMinutes float64
	Scale          risk.ScaleName
	Location       *Location
	Locale         string
}

// Service provides profile operations.
type Service struct {
	repo   Repository
	scales ScaleChecker
	logger zerolog.Logger
}

// NewService creates a new profile service. scales validates the preferred
// scale; nil falls back to the built-in engine.
func NewService(repo Repository, scales ScaleChecker, logger zerolog.Logger) *Service {
	if scales == nil {
		scales = risk.Default()
	}
	return &Service{repo: repo, scales: scales, logger: logger}
}

// Get returns the user's profile, or the default profile if none was saved.
func (s *Service) Get(ctx context.Context, userID string) (*Profile, error) {
	p, err := s.repo.Get(ctx, userID)
	if errors.Is(err, ErrProfileNotFound) {
		return DefaultProfile(userID), nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Upsert validates input and saves it as the user's profile.
func (s *Service) Upsert(ctx context.Context, userID string, input *Input) (*Profile, error) {
	if fieldErrors := s.validate(input); len(fieldErrors) > 0 {
		return nil, &ValidationError{Errors: fieldErrors}
	}

	now := time.Now()
	p := &Profile{
		UserID:         userID,
		Age:            input.Age,
		Conditions:     dedupeConditions(input.Conditions),
		Sensitivity:    input.Sensitivity,
		Activity:       input.Activity,
		WearingMask:    input.WearingMask,
		HasAirPurifier: input.HasAirPurifier,
		OutdoorMinutes: input.OutdoorMinutes,
		Scale:          input.Scale,
		Location:       input.Location,
		Locale:         input.Locale,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if p.Locale == "" {
		p.Locale = DefaultLocale
	}

	if err := s.repo.Upsert(ctx, p); err != nil {
		return nil, fmt.Errorf("store profile: %w", err)
	}

	s.logger.Info().
		Str("user_id", userID).
		Int("conditions", len(p.Conditions)).
		Bool("has_location", p.Location != nil).
		Msg("health profile saved")

	return s.repo.Get(ctx, userID)
}

// Delete removes the user's profile.
func (s *Service) Delete(ctx context.Context, userID string) error {
	if err := s.repo.Delete(ctx, userID); err != nil {
		return err
	}
	s.logger.Info().Str("user_id", userID).Msg("health profile deleted")
	return nil
}

// DeleteAll removes the user's profile if there is one.
func (s *Service) DeleteAll(ctx context.Context, userID string) error {
	if err := s.Delete(ctx, userID); err != nil && !errors.Is(err, ErrProfileNotFound) {
		return err
	}
	return nil
}

// ListWithLocation returns the profiles the daily assessment runs over.
func (s *Service) ListWithLocation(ctx context.Context) ([]*Profile, error) {
	return s.repo.ListWithLocation(ctx)
}

func (s *Service) validate(input *Input) []models.FieldError {
	if input == nil {
		return []models.FieldError{{Field: "profile", Message: "is required", Code: "required"}}
	}

	var errs []models.FieldError

	if input.Age < 0 || input.Age > MaxAge {
		errs = append(errs, models.FieldError{Field: "age", Message: fmt.Sprintf("must be between 0 and %d", MaxAge), Code: "out_of_range"})
	}

	for i, c := range input.Conditions {
		if !c.Valid() {
			errs = append(errs, models.FieldError{Field: fmt.Sprintf("conditions[%d]", i), Message: fmt.Sprintf("unknown condition %q", c), Code: "invalid_enum"})
		}
	}

	if !input.Sensitivity.Valid() {
		errs = append(errs, models.FieldError{Field: "sensitivity", Message: "must be one of low, moderate, high", Code: "invalid_enum"})
	}
	if !input.Activity.Valid() {
		errs = append(errs, models.FieldError{Field: "activity", Message: "must be one of sedentary, active", Code: "invalid_enum"})
	}

	if input.OutdoorMinutes < 0 || input.OutdoorMinutes > MaxOutdoorMinutes {
		errs = append(errs, models.FieldError{Field: "outdoorMinutes", Message: fmt.Sprintf("must be between 0 and %d", MaxOutdoorMinutes), Code: "out_of_range"})
	}

	if input.Scale != "" && !s.scales.HasScale(input.Scale) {
		errs = append(errs, models.FieldError{Field: "scale", Message: fmt.Sprintf("unknown scale %q", input.Scale), Code: "invalid_enum"})
	}

	if loc := input.Location; loc != nil {
		if err := airquality.ValidateCoordinates(loc.Lat, loc.Lon); err != nil {
			errs = append(errs, models.FieldError{Field: "location", Message: "latitude must be within ±90 and longitude within ±180", Code: "out_of_range"})
		}
	}

	if len(input.Locale) > MaxLocaleLength {
		errs = append(errs, models.FieldError{Field: "locale", Message: fmt.Sprintf("must be at most %d characters", MaxLocaleLength), Code: "too_long"})
	}

	return errs
}

func dedupeConditions(in []risk.Condition) []risk.Condition {
	seen := make(map[risk.Condition]bool, len(in))
	out := make([]risk.Condition, 0, len(in))
	for _, c := range in {
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	return out
}
