package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	kafkaGo "github.com/segmentio/kafka-go"
)

// notificationEvent is the wire shape published to the notification topic.
// A downstream consumer owns actual email/SMS delivery.
type notificationEvent struct {
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	Recipient string    `json:"recipient"`
	SentAt    time.Time `json:"sentAt"`
}

// kafkaNotifier publishes notification events to a Kafka topic.
type kafkaNotifier struct {
	writer *kafkaGo.Writer
	logger zerolog.Logger
}

// NewKafkaNotifier creates a Kafka-backed notifier. It verifies broker
// reachability up front so the caller can fall back to the log notifier.
func NewKafkaNotifier(ctx context.Context, brokers []string, topic string, logger zerolog.Logger) (Notifier, error) {
	dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	conn, err := kafkaGo.DialContext(dialCtx, "tcp", brokers[0])
	if err != nil {
		return nil, fmt.Errorf("failed to reach kafka broker: %w", err)
	}
	if err := conn.Close(); err != nil {
		logger.Warn().Err(err).Msg("failed to close kafka probe connection")
	}

	writer := &kafkaGo.Writer{
		Addr:     kafkaGo.TCP(brokers...),
		Topic:    topic,
		Balancer: &kafkaGo.LeastBytes{},
	}

	logger.Info().
		Strs("brokers", brokers).
		Str("topic", topic).
		Msg("kafka notifier initialised")

	return &kafkaNotifier{
		writer: writer,
		logger: logger.With().Str("component", "kafka-notifier").Logger(),
	}, nil
}

// Send publishes the notification event keyed by recipient.
func (n *kafkaNotifier) Send(ctx context.Context, subject, body, recipient string) error {
	payload, err := json.Marshal(notificationEvent{
		Subject:   subject,
		Body:      body,
		Recipient: recipient,
		SentAt:    time.Now(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal notification event: %w", err)
	}

	err = n.writer.WriteMessages(ctx, kafkaGo.Message{
		Key:   []byte(recipient),
		Value: payload,
	})
	if err != nil {
		n.logger.Warn().Err(err).Str("recipient", recipient).Msg("failed to publish notification")
		return fmt.Errorf("failed to publish notification: %w", err)
	}

	return nil
}

// Close flushes and closes the underlying writer.
func (n *kafkaNotifier) Close() error {
	return n.writer.Close()
}
