package alert

import (
	"context"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"
)

// Notifier delivers a notification.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// LogNotifier writes notifications to the log. Used when no topic is
// configured.
type LogNotifier struct {
	Logger zerolog.Logger
}

func (l LogNotifier) Notify(_ context.Context, n Notification) error {
	l.Logger.Info().
		Str("user_id", n.UserID).
		Str("kind", string(n.Kind)).
		Float64("value", n.Value).
		Str("category", string(n.Category)).
		Int("subscriptions", len(n.Subscriptions)).
		Msg("risk alert")
	return nil
}

// Publisher publishes a payload with attributes.
type Publisher interface {
	Publish(ctx context.Context, data []byte, attrs map[string]string) error
}

// PubSubNotifier publishes notifications as JSON for the push delivery
// service.
type PubSubNotifier struct {
	publisher Publisher
	logger    zerolog.Logger
}

// NewPubSubNotifier creates a notifier over publisher.
func NewPubSubNotifier(publisher Publisher, logger zerolog.Logger) *PubSubNotifier {
	return &PubSubNotifier{publisher: publisher, logger: logger}
}

func (p *PubSubNotifier) Notify(ctx context.Context, n Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}

	attrs := map[string]string{
		"user_id": n.UserID,
		"kind":    string(n.Kind),
	}
	if err := p.publisher.Publish(ctx, data, attrs); err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}

	p.logger.Debug().Str("user_id", n.UserID).Str("kind", string(n.Kind)).Msg("alert published")
	return nil
}

// TopicPublisher adapts a Pub/Sub publisher to Publisher.
type TopicPublisher struct {
	client    *pubsub.Client
	publisher *pubsub.Publisher
}

// NewTopicPublisher connects to Pub/Sub and returns a publisher for topic.
func NewTopicPublisher(ctx context.Context, projectID, topic string) (*TopicPublisher, error) {
	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}
	return &TopicPublisher{client: client, publisher: client.Publisher(topic)}, nil
}

// Publish sends one message and waits for the server acknowledgement.
func (t *TopicPublisher) Publish(ctx context.Context, data []byte, attrs map[string]string) error {
	result := t.publisher.Publish(ctx, &pubsub.Message{Data: data, Attributes: attrs})
	_, err := result.Get(ctx)
	return err
}

// Close flushes pending messages and closes the client.
func (t *TopicPublisher) Close() error {
	t.publisher.Stop()
	return t.client.Close()
}

var (
	_ Notifier  = LogNotifier{}
	_ Notifier  = (*PubSubNotifier)(nil)
	_ Publisher = (*TopicPublisher)(nil)
)
