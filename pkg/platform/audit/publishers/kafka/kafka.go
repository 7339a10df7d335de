// Package kafka delivers audit events to a Kafka topic as JSON records keyed
// by property id, so all events for one property land on one partition in
// commit order.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	audit "propreg/pkg/platform/audit"
	pstrings "propreg/pkg/platform/strings"
)

const (
	DefaultTopic           = "propreg.audit"
	defaultDeliveryTimeout = 10 * time.Second
)

type Sink struct {
	client          *kgo.Client
	topic           string
	logger          *slog.Logger
	deliveryTimeout time.Duration
}

type Option func(*Sink)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Sink) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithDeliveryTimeout caps how long a record may wait for an ack, counting
// retries, before Append gives up on it.
func WithDeliveryTimeout(d time.Duration) Option {
	return func(s *Sink) {
		if d > 0 {
			s.deliveryTimeout = d
		}
	}
}

// New connects a producer to brokers. The topic defaults to DefaultTopic.
func New(brokers []string, topic string, opts ...Option) (*Sink, error) {
	brokers = pstrings.DedupeAndTrim(brokers)
	if len(brokers) == 0 {
		return nil, errors.New("kafka: at least one broker is required")
	}
	if topic == "" {
		topic = DefaultTopic
	}
	s := &Sink{
		topic:           topic,
		logger:          slog.New(slog.DiscardHandler),
		deliveryTimeout: defaultDeliveryTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.ClientID("propreg-audit"),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.RecordDeliveryTimeout(s.deliveryTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka: create client: %w", err)
	}
	s.client = client
	return s, nil
}

// EnsureTopic creates the audit topic if it does not exist yet.
func (s *Sink) EnsureTopic(ctx context.Context, partitions int32, replication int16) error {
	adm := kadm.NewClient(s.client)
	resp, err := adm.CreateTopic(ctx, partitions, replication, nil, s.topic)
	if err != nil {
		return fmt.Errorf("kafka: create topic %s: %w", s.topic, err)
	}
	if resp.Err != nil && !errors.Is(resp.Err, kerr.TopicAlreadyExists) {
		return fmt.Errorf("kafka: create topic %s: %w", s.topic, resp.Err)
	}
	return nil
}

// Append produces one record and waits for the broker ack.
func (s *Sink) Append(ctx context.Context, event audit.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("kafka: encode event: %w", err)
	}
	record := &kgo.Record{
		Topic: s.topic,
		Key:   []byte(event.PropertyID.String()),
		Value: payload,
		Headers: []kgo.RecordHeader{
			{Key: "action", Value: []byte(event.Action)},
			{Key: "category", Value: []byte(event.Category)},
		},
	}
	ctx, cancel := context.WithTimeout(ctx, s.deliveryTimeout)
	defer cancel()
	if err := s.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		s.logger.ErrorContext(ctx, "failed to produce audit event",
			"error", err,
			"action", event.Action,
			"property_id", event.PropertyID,
		)
		return fmt.Errorf("kafka: produce: %w", err)
	}
	return nil
}

// Ping checks that at least one broker answers.
func (s *Sink) Ping(ctx context.Context) error {
	return s.client.Ping(ctx)
}

func (s *Sink) Close() {
	s.client.Close()
}
