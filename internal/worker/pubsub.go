package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"
)

// Job types carried in job messages.
const (
	JobDailyAssessment = "daily_assessment"
	JobAssessUser      = "assess_user"
)

// ErrUnknownJob is returned by Dispatch for an unrecognised job type.
var ErrUnknownJob = errors.New("unknown job type")

// JobMessage is the payload of a job message.
type JobMessage struct {
	JobType string `json:"job_type"`
	Date    string `json:"date,omitempty"`
	UserID  string `json:"user_id,omitempty"`
}

// Dispatcher executes job messages against the assessment job.
type Dispatcher struct {
	job    *AssessmentJob
	logger zerolog.Logger
}

// NewDispatcher creates a dispatcher for job.
func NewDispatcher(job *AssessmentJob, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{job: job, logger: logger}
}

// Dispatch parses and runs one job message.
func (d *Dispatcher) Dispatch(ctx context.Context, data []byte) error {
	var msg JobMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return fmt.Errorf("parse job message: %w", err)
	}

	switch msg.JobType {
	case JobDailyAssessment:
		result, err := d.job.Run(ctx, msg.Date)
		if err != nil {
			return err
		}
		// Consider it successful unless most users failed.
		if result.Failed > result.Successful {
			return fmt.Errorf("too many assessment failures: %d/%d", result.Failed, result.Total)
		}
		return nil

	case JobAssessUser:
		if msg.UserID == "" {
			return fmt.Errorf("%s: user_id is required", JobAssessUser)
		}
		a, err := d.job.AssessUser(ctx, msg.UserID, msg.Date)
		if err != nil {
			return err
		}
		d.logger.Info().
			Str("user_id", msg.UserID).
			Str("date", a.Date).
			Str("category", string(a.Category)).
			Msg("user assessed")
		return nil

	default:
		return fmt.Errorf("%w: %q", ErrUnknownJob, msg.JobType)
	}
}

// PubSubHandler handles Pub/Sub messages for the worker.
type PubSubHandler struct {
	client           *pubsub.Client
	subscriber       *pubsub.Subscriber
	subscriptionName string
	dispatcher       *Dispatcher
	logger           zerolog.Logger
}

// PubSubConfig holds configuration for the Pub/Sub handler.
type PubSubConfig struct {
	ProjectID        string
	SubscriptionName string
	Dispatcher       *Dispatcher
	Logger           zerolog.Logger
}

// NewPubSubHandler creates a new Pub/Sub handler.
func NewPubSubHandler(ctx context.Context, cfg PubSubConfig) (*PubSubHandler, error) {
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	subscriber := client.Subscriber(cfg.SubscriptionName)

	// A daily run can take minutes.
	subscriber.ReceiveSettings.MaxOutstandingMessages = 10
	subscriber.ReceiveSettings.MaxExtension = 30 * time.Minute

	return &PubSubHandler{
		client:           client,
		subscriber:       subscriber,
		subscriptionName: cfg.SubscriptionName,
		dispatcher:       cfg.Dispatcher,
		logger:           cfg.Logger,
	}, nil
}

// Start begins processing Pub/Sub messages.
func (h *PubSubHandler) Start(ctx context.Context) error {
	h.logger.Info().
		Str("subscription", h.subscriptionName).
		Msg("starting pubsub handler")

	return h.subscriber.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		if h.handle(ctx, msg.ID, msg.Data) {
			msg.Ack()
		} else {
			msg.Nack()
		}
	})
}

// Close closes the Pub/Sub client.
func (h *PubSubHandler) Close() error {
	return h.client.Close()
}

// handle runs a message and reports whether it should be acked. Unknown job
// types are acked to prevent redelivery.
func (h *PubSubHandler) handle(ctx context.Context, id string, data []byte) bool {
	startTime := time.Now()
	logger := h.logger.With().Str("message_id", id).Logger()

	err := h.dispatcher.Dispatch(ctx, data)
	switch {
	case errors.Is(err, ErrUnknownJob):
		logger.Warn().Err(err).Msg("unknown job type")
		return true
	case err != nil:
		logger.Error().Err(err).Msg("job failed")
		return false
	}

	logger.Info().Dur("duration", time.Since(startTime)).Msg("job completed successfully")
	return true
}
