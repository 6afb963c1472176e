package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/couchcryptid/food-risk-etl/internal/domain"
	"github.com/couchcryptid/food-risk-etl/internal/pipeline"
	"github.com/couchcryptid/storm-data-shared/retry"
	kafkago "github.com/segmentio/kafka-go"
)

const (
	defaultAttempts   = 3
	initialBackoff    = 200 * time.Millisecond
	maxPublishBackoff = 2 * time.Second
)

// messageWriter is the subset of kafkago.Writer the publisher needs.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Publisher produces one message per scored row to a Kafka topic.
// It implements pipeline.ResultSink.
type Publisher struct {
	writer   messageWriter
	logger   *slog.Logger
	attempts int
	backoff  time.Duration
}

// NewPublisher creates a Kafka producer for topic.
func NewPublisher(brokers []string, topic string, logger *slog.Logger) *Publisher {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return newPublisher(w, logger)
}

func newPublisher(w messageWriter, logger *slog.Logger) *Publisher {
	return &Publisher{writer: w, logger: logger, attempts: defaultAttempts, backoff: initialBackoff}
}

// Name identifies the publisher as a result sink.
func (p *Publisher) Name() string { return "kafka" }

// Publish serializes every row of the result and writes them in a single
// WriteMessages call, retrying with backoff until the attempts run out or
// ctx is cancelled.
func (p *Publisher) Publish(ctx context.Context, res *pipeline.Result) error {
	msgs, err := serializeRows(res)
	if err != nil {
		return err
	}
	if len(msgs) == 0 {
		return nil
	}

	backoff := p.backoff
	for attempt := 1; ; attempt++ {
		err = p.writer.WriteMessages(ctx, msgs...)
		if err == nil {
			p.logger.Debug("scores published", "run_id", res.RunID, "messages", len(msgs))
			return nil
		}
		if attempt >= p.attempts {
			return fmt.Errorf("publish run %s after %d attempts: %w", res.RunID, attempt, err)
		}
		p.logger.Warn("publish failed, retrying", "run_id", res.RunID, "attempt", attempt, "backoff", backoff, "error", err)
		if !retry.SleepWithContext(ctx, backoff) {
			return fmt.Errorf("publish run %s: %w", res.RunID, ctx.Err())
		}
		backoff = retry.NextBackoff(backoff, maxPublishBackoff)
	}
}

// Close flushes and closes the underlying writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}

// ScoreMessage is the JSON value of each published message.
type ScoreMessage struct {
	RunID   string     `json:"run_id"`
	Kind    string     `json:"kind"`
	Variant string     `json:"variant"`
	Banding string     `json:"banding"`
	AsOf    string     `json:"as_of"`
	Entity  string     `json:"entity"`
	Score   *float64   `json:"score"`
	Band    string     `json:"band,omitempty"`
	Row     domain.Row `json:"row"`
}

// serializeRows builds one message per row, keyed by the row's county or
// household identifier so that a county's messages land on one partition.
func serializeRows(res *pipeline.Result) ([]kafkago.Message, error) {
	entityCol := res.EntityColumn()
	asOf := res.AsOf.Format(domain.DateLayout)

	msgs := make([]kafkago.Message, 0, res.Table.Len())
	for i, r := range res.Table.Rows {
		m := ScoreMessage{
			RunID:   res.RunID,
			Kind:    string(res.Kind),
			Variant: string(res.Variant),
			Banding: res.Banding.Name,
			AsOf:    asOf,
			Entity:  r[entityCol],
			Band:    r[res.BandColumn],
			Row:     r,
		}
		if s := r[res.ScoreColumn]; s != "" {
			if v, err := strconv.ParseFloat(s, 64); err == nil {
				m.Score = &v
			}
		}
		data, err := json.Marshal(m)
		if err != nil {
			return nil, fmt.Errorf("serialize score row %d: %w", i, err)
		}

		key := m.Entity
		if key == "" {
			key = res.RunID + ":" + strconv.Itoa(i)
		}
		msgs = append(msgs, kafkago.Message{
			Key:   []byte(key),
			Value: data,
			Headers: []kafkago.Header{
				{Key: "variant", Value: []byte(res.Variant)},
				{Key: "run_id", Value: []byte(res.RunID)},
			},
		})
	}
	return msgs, nil
}
