package device

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dustguard/dustguard/internal/alert"
	"github.com/dustguard/dustguard/internal/api/models"
)

// MaxSubscriptionsPerUser caps how many browsers a user can register.
const MaxSubscriptionsPerUser = 10

// ValidationError represents validation errors.
type ValidationError struct {
	Errors []models.FieldError
}

func (e *ValidationError) Error() string {
	return "validation failed"
}

// RegisterInput is the PushSubscription JSON the browser hands the PWA.
type RegisterInput struct {
	Endpoint  string
	P256dh    string
	Auth      string
	UserAgent *string
}

// Service provides subscription operations.
type Service struct {
	repo   Repository
	logger zerolog.Logger
}

// NewService creates a new subscription service.
func NewService(repo Repository, logger zerolog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// List retrieves all subscriptions of a user.
func (s *Service) List(ctx context.Context, userID string) ([]*Subscription, error) {
	return s.repo.ListByUser(ctx, userID)
}

// Targets returns the user's subscriptions in the form alerts carry.
func (s *Service) Targets(ctx context.Context, userID string) ([]alert.Subscription, error) {
	subs, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	targets := make([]alert.Subscription, 0, len(subs))
	for _, sub := range subs {
		targets = append(targets, sub.Target())
	}
	return targets, nil
}

// Register registers or refreshes a subscription.
// Returns the subscription and whether it was newly created.
func (s *Service) Register(ctx context.Context, userID string, input *RegisterInput) (*Subscription, bool, error) {
	if fieldErrors := validate(input); len(fieldErrors) > 0 {
		return nil, false, &ValidationError{Errors: fieldErrors}
	}

	existing, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, false, err
	}
	if len(existing) >= MaxSubscriptionsPerUser && !hasEndpoint(existing, input.Endpoint) {
		return nil, false, &ValidationError{Errors: []models.FieldError{{
			Field:   "endpoint",
			Message: fmt.Sprintf("at most %d subscriptions per user", MaxSubscriptionsPerUser),
			Code:    "limit_exceeded",
		}}}
	}

	now := time.Now()
	sub := &Subscription{
		ID:        "sub_" + uuid.New().String(),
		UserID:    userID,
		Endpoint:  input.Endpoint,
		P256dh:    input.P256dh,
		Auth:      input.Auth,
		UserAgent: input.UserAgent,
		CreatedAt: now,
		UpdatedAt: now,
	}

	created, err := s.repo.Upsert(ctx, sub)
	if err != nil {
		return nil, false, err
	}

	s.logger.Info().
		Str("user_id", userID).
		Str("subscription_id", sub.ID).
		Str("push_host", sub.EndpointHost()).
		Bool("created", created).
		Msg("push subscription registered")

	return sub, created, nil
}

// Unregister removes a subscription.
func (s *Service) Unregister(ctx context.Context, userID, id string) error {
	if err := s.repo.Delete(ctx, userID, id); err != nil {
		return err
	}
	s.logger.Info().Str("user_id", userID).Str("subscription_id", id).Msg("push subscription removed")
	return nil
}

// DeleteAll removes every subscription of a user.
func (s *Service) DeleteAll(ctx context.Context, userID string) error {
	return s.repo.DeleteByUser(ctx, userID)
}

func validate(input *RegisterInput) []models.FieldError {
	if input == nil {
		return []models.FieldError{{Field: "subscription", Message: "is required", Code: "required"}}
	}

	var errs []models.FieldError

	u, err := url.Parse(input.Endpoint)
	if err != nil || u.Scheme != "https" || u.Host == "" {
		errs = append(errs, models.FieldError{Field: "endpoint", Message: "must be an https URL", Code: "invalid_format"})
	}
	if !isBase64URL(input.P256dh) {
		errs = append(errs, models.FieldError{Field: "keys.p256dh", Message: "must be base64url encoded", Code: "invalid_format"})
	}
	if !isBase64URL(input.Auth) {
		errs = append(errs, models.FieldError{Field: "keys.auth", Message: "must be base64url encoded", Code: "invalid_format"})
	}

	return errs
}

func isBase64URL(s string) bool {
	if s == "" {
		return false
	}
	_, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(s, "="))
	return err == nil
}

func hasEndpoint(subs []*Subscription, endpoint string) bool {
	for _, sub := range subs {
		if sub.Endpoint == endpoint {
			return true
		}
	}
	return false
}
