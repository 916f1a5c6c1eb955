// Package notify delivers best-effort email and SMS notifications.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Sender is the delivery contract of the email/SMS provider.
type Sender interface {
	SendEmail(ctx context.Context, to, subject, body string) error
	SendSMS(ctx context.Context, to, body string) error
}

// Channel names a delivery medium.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

// Message is the job published for the delivery workers.
type Message struct {
	Channel   Channel   `json:"channel"`
	To        string    `json:"to"`
	Subject   string    `json:"subject,omitempty"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSender publishes delivery jobs to a Kafka topic consumed by the provider workers.
type KafkaSender struct {
	writer messageWriter
	now    func() time.Time
}

// NewKafkaWriter builds a writer for the notification topic.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 50 * time.Millisecond,
	}
}

// NewKafkaSender wraps a Kafka writer.
func NewKafkaSender(w messageWriter) *KafkaSender {
	return &KafkaSender{writer: w, now: time.Now}
}

// SendEmail publishes an email job keyed by recipient.
func (s *KafkaSender) SendEmail(ctx context.Context, to, subject, body string) error {
	return s.publish(ctx, Message{Channel: ChannelEmail, To: to, Subject: subject, Body: body})
}

// SendSMS publishes an SMS job keyed by recipient.
func (s *KafkaSender) SendSMS(ctx context.Context, to, body string) error {
	return s.publish(ctx, Message{Channel: ChannelSMS, To: to, Body: body})
}

func (s *KafkaSender) publish(ctx context.Context, m Message) error {
	m.CreatedAt = s.now().UTC()
	payload, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	return s.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(m.To),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "channel", Value: []byte(m.Channel)},
		},
	})
}

// Close closes the underlying writer.
func (s *KafkaSender) Close() error { return s.writer.Close() }

// LogSender writes notifications to the log instead of delivering them. Used in dev and memory mode.
type LogSender struct{ log *zap.Logger }

// NewLogSender constructs a LogSender.
func NewLogSender(log *zap.Logger) *LogSender { return &LogSender{log: log} }

// SendEmail logs the email.
func (s *LogSender) SendEmail(_ context.Context, to, subject, body string) error {
	s.log.Info("email", zap.String("to", to), zap.String("subject", subject), zap.String("body", body))
	return nil
}

// SendSMS logs the SMS.
func (s *LogSender) SendSMS(_ context.Context, to, body string) error {
	s.log.Info("sms", zap.String("to", to), zap.String("body", body))
	return nil
}
