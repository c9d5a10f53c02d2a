// Package kafka streams scraped articles through a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"

	"github.com/kailas-cloud/newsdex/internal/domain"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Sink publishes each article as a JSON message keyed by URL.
type Sink struct {
	writer messageWriter
	topic  string
}

// NewSink creates a producer for topic. Messages with the same URL land on the same partition.
func NewSink(brokers []string, topic string) *Sink {
	return &Sink{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			MaxAttempts:  3,
		},
		topic: topic,
	}
}

// Save publishes records in one write and returns the topic location.
func (s *Sink) Save(ctx context.Context, records []domain.ArticleRecord) (string, error) {
	msgs := make([]kafka.Message, 0, len(records))
	for _, rec := range records {
		value, err := json.Marshal(rec)
		if err != nil {
			return "", fmt.Errorf("encode %s: %w", rec.URL, err)
		}
		msgs = append(msgs, kafka.Message{Key: []byte(rec.URL), Value: value})
	}
	if len(msgs) > 0 {
		if err := s.writer.WriteMessages(ctx, msgs...); err != nil {
			return "", fmt.Errorf("publish to %s: %w", s.topic, err)
		}
	}
	return "kafka://" + s.topic, nil
}

// Close flushes pending messages.
func (s *Sink) Close() error {
	return s.writer.Close()
}

// decodeArticle parses a message value produced by Sink.
func decodeArticle(value []byte) (domain.ArticleRecord, error) {
	var rec domain.ArticleRecord
	if err := json.Unmarshal(value, &rec); err != nil {
		return domain.ArticleRecord{}, fmt.Errorf("%w: decode article: %w", domain.ErrParse, err)
	}
	if err := rec.Validate(); err != nil {
		return domain.ArticleRecord{}, fmt.Errorf("%w: %w", domain.ErrParse, err)
	}
	return rec, nil
}
