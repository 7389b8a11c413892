package symptom

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dustguard/dustguard/internal/api/models"
	"github.com/dustguard/dustguard/internal/risk"
)

// Validation constants.
const (
	MaxNotesLength     = 1000
	MaxOutdoorMinutes  = 24 * 60
	maxFutureSkewHours = 14
)

// ValidationError represents validation errors.
type ValidationError struct {
	Errors []models.FieldError
}

func (e *ValidationError) Error() string {
	return "validation failed"
}

// LogInput is a checklist submission.
type LogInput struct {
	Symptoms       []risk.SymptomReport
	OutdoorMinutes *float64
	Notes          string
}

// Service provides symptom log operations.
type Service struct {
	repo   Repository
	logger zerolog.Logger
	now    func() time.Time
}

// NewService creates a new symptom service.
func NewService(repo Repository, logger zerolog.Logger) *Service {
	return &Service{repo: repo, logger: logger, now: time.Now}
}

// Log records the checklist for date, replacing an earlier one for the same
// date.
func (s *Service) Log(ctx context.Context, userID, date string, input *LogInput) (*Entry, error) {
	if fieldErrors := s.validate(date, input); len(fieldErrors) > 0 {
		return nil, &ValidationError{Errors: fieldErrors}
	}

	now := s.now()
	entry := &Entry{
		ID:             "sym_" + uuid.New().String(),
		UserID:         userID,
		Date:           date,
		Symptoms:       normalize(input.Symptoms),
		OutdoorMinutes: input.OutdoorMinutes,
		Notes:          input.Notes,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	created, err := s.repo.Upsert(ctx, entry)
	if err != nil {
		return nil, fmt.Errorf("store symptom entry: %w", err)
	}

	s.logger.Debug().
		Str("user_id", userID).
		Str("date", date).
		Bool("created", created).
		Bool("any_present", entry.AnyPresent()).
		Msg("symptoms logged")

	return s.repo.Get(ctx, userID, date)
}

// Get returns the entry for date.
func (s *Service) Get(ctx context.Context, userID, date string) (*Entry, error) {
	if _, err := ParseDate(date); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, userID, date)
}

// Find returns the entry for date, or nil if none was logged.
func (s *Service) Find(ctx context.Context, userID, date string) (*Entry, error) {
	e, err := s.Get(ctx, userID, date)
	if errors.Is(err, ErrEntryNotFound) {
		return nil, nil
	}
	return e, err
}

// List returns entries with from <= date <= to, oldest first.
func (s *Service) List(ctx context.Context, userID, from, to string) ([]*Entry, error) {
	if err := ValidateRange(from, to); err != nil {
		return nil, err
	}
	return s.repo.List(ctx, userID, from, to)
}

// Delete removes the entry for date.
func (s *Service) Delete(ctx context.Context, userID, date string) error {
	if _, err := ParseDate(date); err != nil {
		return err
	}
	return s.repo.Delete(ctx, userID, date)
}

// DeleteAll removes every entry of a user.
func (s *Service) DeleteAll(ctx context.Context, userID string) error {
	return s.repo.DeleteByUser(ctx, userID)
}

// ValidateRange checks that from and to are dates, ordered, and no more than
// MaxRangeDays apart.
func ValidateRange(from, to string) error {
	f, err := ParseDate(from)
	if err != nil {
		return err
	}
	t, err := ParseDate(to)
	if err != nil {
		return err
	}
	if t.Before(f) {
		return fmt.Errorf("%w: from %s is after to %s", ErrInvalidRange, from, to)
	}
	if t.Sub(f) > MaxRangeDays*24*time.Hour {
		return fmt.Errorf("%w: more than %d days", ErrInvalidRange, MaxRangeDays)
	}
	return nil
}

func (s *Service) validate(date string, input *LogInput) []models.FieldError {
	var errs []models.FieldError

	if day, err := ParseDate(date); err != nil {
		errs = append(errs, models.FieldError{Field: "date", Message: "must be a YYYY-MM-DD date", Code: "invalid_format"})
	} else if day.After(s.now().Add(maxFutureSkewHours * time.Hour)) {
		errs = append(errs, models.FieldError{Field: "date", Message: "must not be in the future", Code: "out_of_range"})
	}

	if input == nil {
		return append(errs, models.FieldError{Field: "symptoms", Message: "is required", Code: "required"})
	}

	for i, r := range input.Symptoms {
		field := fmt.Sprintf("symptoms[%d]", i)
		if !r.Symptom.Valid() {
			errs = append(errs, models.FieldError{Field: field + ".symptom", Message: fmt.Sprintf("unknown symptom %q", r.Symptom), Code: "invalid_enum"})
		}
		if r.Severity < 0 || r.Severity > risk.MaxSeverity {
			errs = append(errs, models.FieldError{Field: field + ".severity", Message: fmt.Sprintf("must be between 0 and %d", risk.MaxSeverity), Code: "out_of_range"})
		}
	}

	if m := input.OutdoorMinutes; m != nil && (*m < 0 || *m > MaxOutdoorMinutes) {
		errs = append(errs, models.FieldError{Field: "outdoorMinutes", Message: fmt.Sprintf("must be between 0 and %d", MaxOutdoorMinutes), Code: "out_of_range"})
	}

	if len(input.Notes) > MaxNotesLength {
		errs = append(errs, models.FieldError{Field: "notes", Message: fmt.Sprintf("must be at most %d characters", MaxNotesLength), Code: "too_long"})
	}

	return errs
}

// normalize keeps one report per symptom. A present answer wins over an
// absent one; among equals the highest severity is kept.
func normalize(reports []risk.SymptomReport) []risk.SymptomReport {
	index := make(map[risk.Symptom]int, len(reports))
	out := make([]risk.SymptomReport, 0, len(reports))
	for _, r := range reports {
		i, ok := index[r.Symptom]
		if !ok {
			index[r.Symptom] = len(out)
			out = append(out, r)
			continue
		}
		cur := &out[i]
		switch {
		case r.Present && !cur.Present:
			*cur = r
		case r.Present == cur.Present && r.Severity > cur.Severity:
			cur.Severity = r.Severity
		}
	}
	return out
}
