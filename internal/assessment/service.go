package assessment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/dustguard/dustguard/internal/airquality"
	"github.com/dustguard/dustguard/internal/alert"
	"github.com/dustguard/dustguard/internal/profile"
	"github.com/dustguard/dustguard/internal/risk"
	"github.com/dustguard/dustguard/internal/symptom"
	"github.com/dustguard/dustguard/internal/telemetry"
)

const instrumentationName = "github.com/dustguard/dustguard/internal/assessment"

// Reasons recorded when an alert is not sent.
const (
	ReasonAlertsDisabled = "alerts_disabled"
	ReasonAlreadySent    = "already_sent"
	ReasonDeliveryFailed = "delivery_failed"
)

// ProfileSource loads health profiles.
type ProfileSource interface {
	Get(ctx context.Context, userID string) (*profile.Profile, error)
}

// SymptomSource loads the day's symptom entry. A nil entry means none was
// logged.
type SymptomSource interface {
	Find(ctx context.Context, userID, date string) (*symptom.Entry, error)
}

// ReadingSource returns the current air-quality reading for a location.
type ReadingSource interface {
	GetReading(ctx context.Context, lat, lon float64) (*airquality.Reading, error)
}

// TargetSource lists the push subscriptions of a user.
type TargetSource interface {
	Targets(ctx context.Context, userID string) ([]alert.Subscription, error)
}

// FlagSource exposes the runtime switches the service reads.
type FlagSource interface {
	IsAlertsSendingDisabled(ctx context.Context) bool
	DefaultRiskScale(ctx context.Context) string
}

// ServiceConfig holds configuration for the assessment service.
type ServiceConfig struct {
	Repo          Repository
	Profiles      ProfileSource
	Symptoms      SymptomSource
	AirQuality    ReadingSource
	Subscriptions TargetSource
	Flags         FlagSource
	Notifier      alert.Notifier
	Engine        *risk.Engine
	Logger        zerolog.Logger

	// MeterProvider defaults to the global provider.
	MeterProvider metric.MeterProvider

	// Location decides what "today" is. Defaults to UTC.
	Location *time.Location
}

// Service computes and stores assessments.
type Service struct {
	repo          Repository
	profiles      ProfileSource
	symptoms      SymptomSource
	airQuality    ReadingSource
	subscriptions TargetSource
	flags         FlagSource
	notifier      alert.Notifier
	engine        *risk.Engine
	logger        zerolog.Logger
	location      *time.Location
	tracer        trace.Tracer
	now           func() time.Time

	computed metric.Int64Counter
	values   metric.Float64Histogram
	alerts   metric.Int64Counter
}

// NewService creates a new assessment service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Engine == nil {
		cfg.Engine = risk.Default()
	}
	if cfg.Notifier == nil {
		cfg.Notifier = alert.LogNotifier{Logger: cfg.Logger}
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.MeterProvider == nil {
		cfg.MeterProvider = otel.GetMeterProvider()
	}

	meter := cfg.MeterProvider.Meter(instrumentationName)
	computed, err := meter.Int64Counter(
		"assessment.computed",
		metric.WithDescription("Number of stored risk assessments"),
		metric.WithUnit("{assessment}"),
	)
	if err != nil {
		return nil, err
	}
	values, err := meter.Float64Histogram(
		"assessment.risk_value",
		metric.WithDescription("Risk index of stored assessments on the 0-10 scale"),
		metric.WithExplicitBucketBoundaries(1, 2, 3, 4, 5, 6, 7, 8, 9, 10),
	)
	if err != nil {
		return nil, err
	}
	alerts, err := meter.Int64Counter(
		"assessment.alerts",
		metric.WithDescription("Alert decisions by kind and outcome"),
		metric.WithUnit("{alert}"),
	)
	if err != nil {
		return nil, err
	}

	return &Service{
		repo:          cfg.Repo,
		profiles:      cfg.Profiles,
		symptoms:      cfg.Symptoms,
		airQuality:    cfg.AirQuality,
		subscriptions: cfg.Subscriptions,
		flags:         cfg.Flags,
		notifier:      cfg.Notifier,
		engine:        cfg.Engine,
		logger:        cfg.Logger,
		location:      cfg.Location,
		tracer:        telemetry.Tracer(instrumentationName),
		now:           time.Now,
		computed:      computed,
		values:        values,
		alerts:        alerts,
	}, nil
}

// Today returns the current date in the service's location.
func (s *Service) Today() string {
	return s.now().In(s.location).Format(symptom.DateLayout)
}

// Assess computes the user's risk for date (today if empty), stores it and
// sends an alert when warranted.
func (s *Service) Assess(ctx context.Context, userID, date string) (*Assessment, error) {
	if date == "" {
		date = s.Today()
	}
	if _, err := symptom.ParseDate(date); err != nil {
		return nil, err
	}

	ctx, span := s.tracer.Start(ctx, "assessment.Assess", trace.WithAttributes(
		attribute.String("assessment.date", date),
	))
	defer span.End()

	a, err := s.assess(ctx, userID, date)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(
		attribute.String("assessment.category", string(a.Category)),
		attribute.Float64("assessment.value", a.Value),
	)
	return a, nil
}

func (s *Service) assess(ctx context.Context, userID, date string) (*Assessment, error) {
	p, err := s.profiles.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	if p.Location == nil {
		return nil, profile.ErrNoLocation
	}

	reading, err := s.airQuality.GetReading(ctx, p.Location.Lat, p.Location.Lon)
	if err != nil {
		return nil, fmt.Errorf("load reading: %w", err)
	}

	day, err := s.symptoms.Find(ctx, userID, date)
	if err != nil {
		return nil, fmt.Errorf("load symptoms: %w", err)
	}

	scale := s.scaleFor(ctx, p)
	score, err := s.engine.Compute(reading.Environmental(), profile.Factors(p, day), scale)
	if err != nil {
		return nil, fmt.Errorf("compute risk: %w", err)
	}

	previous, err := s.repo.Previous(ctx, userID, date)
	if err != nil && !errors.Is(err, ErrAssessmentNotFound) {
		return nil, fmt.Errorf("load previous assessment: %w", err)
	}
	existing, err := s.repo.Get(ctx, userID, date)
	if err != nil && !errors.Is(err, ErrAssessmentNotFound) {
		return nil, fmt.Errorf("load existing assessment: %w", err)
	}

	now := s.now()
	a := &Assessment{
		ID:             "asm_" + uuid.New().String(),
		UserID:         userID,
		Date:           date,
		Scale:          score.Scale,
		Value:          score.Value,
		Raw:            score.Raw,
		Category:       score.Category,
		Breakdown:      score.Breakdown,
		Detail:         score.Detail,
		Clamped:        score.Clamped,
		Reading:        snapshot(reading),
		SymptomsLogged: day != nil,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	// Store before notifying so a failed write never leaves a sent alert
	// unrecorded. Until this run's outcome is known the row keeps the
	// earlier delivery state.
	if existing != nil {
		a.Alert = existing.Alert
	}
	if err := s.repo.Upsert(ctx, a); err != nil {
		return nil, fmt.Errorf("store assessment: %w", err)
	}

	stored := a.Alert
	a.Alert = s.maybeAlert(ctx, p, a, previous, existing)
	if a.Alert != nil || stored != nil {
		if err := s.repo.Upsert(ctx, a); err != nil {
			// The assessment is stored; a retry would only repeat the alert.
			s.logger.Error().Err(err).
				Str("user_id", userID).
				Str("date", date).
				Msg("failed to record alert outcome")
		}
	}

	attrs := metric.WithAttributes(
		attribute.String("scale", string(a.Scale)),
		attribute.String("category", string(a.Category)),
	)
	s.computed.Add(ctx, 1, attrs)
	s.values.Record(ctx, a.PointValue(), attrs)

	s.logger.Info().
		Str("user_id", userID).
		Str("date", date).
		Str("scale", string(a.Scale)).
		Float64("value", a.Value).
		Str("category", string(a.Category)).
		Strs("clamped", a.Clamped).
		Msg("risk assessed")

	return a, nil
}

// maybeAlert evaluates the alert rules against the previous day and sends
// the notification.
func (s *Service) maybeAlert(ctx context.Context, p *profile.Profile, a, previous, existing *Assessment) *AlertOutcome {
	var prev *float64
	if previous != nil {
		v := previous.PointValue()
		prev = &v
	}

	decision := alert.Evaluate(a.PointValue(), prev)
	if !decision.Send {
		return nil
	}

	outcome := &AlertOutcome{Kind: decision.Kind}
	defer func() {
		s.alerts.Add(ctx, 1, metric.WithAttributes(
			attribute.String("kind", string(outcome.Kind)),
			attribute.Bool("sent", outcome.Sent),
			attribute.String("reason", outcome.Reason),
		))
	}()

	switch {
	case s.flags != nil && s.flags.IsAlertsSendingDisabled(ctx):
		outcome.Reason = ReasonAlertsDisabled
		return outcome
	case alreadyDelivered(existing, decision.Kind):
		outcome.Reason = ReasonAlreadySent
		return outcome
	}

	var targets []alert.Subscription
	if s.subscriptions != nil {
		var err error
		targets, err = s.subscriptions.Targets(ctx, a.UserID)
		if err != nil {
			s.logger.Warn().Err(err).Str("user_id", a.UserID).Msg("failed to load push subscriptions")
		}
	}

	n := alert.Notification{
		UserID:        a.UserID,
		Kind:          decision.Kind,
		Value:         a.Value,
		Scale:         a.Scale,
		Category:      a.Category,
		Date:          a.Date,
		Locale:        p.Locale,
		Subscriptions: targets,
	}
	if previous != nil {
		v := previous.Value
		n.Previous = &v
	}
	n.Localize()

	if err := s.notifier.Notify(ctx, n); err != nil {
		s.logger.Error().Err(err).Str("user_id", a.UserID).Str("kind", string(decision.Kind)).Msg("failed to send alert")
		outcome.Reason = ReasonDeliveryFailed
		return outcome
	}

	outcome.Sent = true
	return outcome
}

// alreadyDelivered reports whether an alert of kind went out earlier for the
// same day. A suppressed re-run records ReasonAlreadySent, which still counts.
func alreadyDelivered(existing *Assessment, kind alert.Kind) bool {
	if existing == nil || existing.Alert == nil || existing.Alert.Kind != kind {
		return false
	}
	return existing.Alert.Sent || existing.Alert.Reason == ReasonAlreadySent
}

func (s *Service) scaleFor(ctx context.Context, p *profile.Profile) risk.ScaleName {
	if p.Scale != "" && s.engine.HasScale(p.Scale) {
		return p.Scale
	}
	if s.flags != nil {
		if name := risk.ScaleName(s.flags.DefaultRiskScale(ctx)); s.engine.HasScale(name) {
			return name
		}
	}
	return risk.ScalePoint
}

// Preview runs a stateless computation. Nothing is stored or sent.
func (s *Service) Preview(reading risk.EnvironmentalReading, factors risk.PersonalFactors, scale risk.ScaleName) (*risk.RiskScore, error) {
	return s.engine.Compute(reading, factors, scale)
}

// Get returns the stored assessment for date.
func (s *Service) Get(ctx context.Context, userID, date string) (*Assessment, error) {
	if _, err := symptom.ParseDate(date); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, userID, date)
}

// History returns stored assessments with from <= date <= to, oldest first.
func (s *Service) History(ctx context.Context, userID, from, to string) ([]*Assessment, error) {
	if err := symptom.ValidateRange(from, to); err != nil {
		return nil, err
	}
	return s.repo.List(ctx, userID, from, to)
}

// DeleteAll removes every assessment of a user.
func (s *Service) DeleteAll(ctx context.Context, userID string) error {
	return s.repo.DeleteByUser(ctx, userID)
}
