package kafka

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/kailas-cloud/newsdex/internal/domain"
	"github.com/kailas-cloud/newsdex/internal/metrics"
	"github.com/kailas-cloud/newsdex/internal/retry"
	"github.com/kailas-cloud/newsdex/internal/usecase/indexing"
)

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Indexer stores consumed articles.
type Indexer interface {
	Store(ctx context.Context, records []domain.ArticleRecord) (indexing.Report, error)
}

// ConsumerConfig holds consumer group settings.
type ConsumerConfig struct {
	Brokers  []string
	Topic    string
	GroupID  string
	DLQTopic string
}

// Consumer indexes articles from the stream. Messages that cannot be indexed go to the DLQ topic;
// offsets are committed manually once a message is stored or dead-lettered.
type Consumer struct {
	reader  messageReader
	dlq     messageWriter
	indexer Indexer
	policy  retry.Policy
	logger  *zap.Logger
	now     func() time.Time
	sleep   func(ctx context.Context, d time.Duration) error
}

// NewConsumer creates a consumer group member.
func NewConsumer(cfg ConsumerConfig, indexer Indexer, policy retry.Policy, logger *zap.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		Topic:          cfg.Topic,
		GroupID:        cfg.GroupID,
		MinBytes:       1e3,
		MaxBytes:       10e6,
		CommitInterval: 0,
	})
	dlq := &kafka.Writer{
		Addr:        kafka.TCP(cfg.Brokers...),
		Topic:       cfg.DLQTopic,
		MaxAttempts: 3,
	}
	return newConsumer(reader, dlq, indexer, policy, logger)
}

func newConsumer(r messageReader, dlq messageWriter, indexer Indexer, policy retry.Policy, logger *zap.Logger) *Consumer {
	return &Consumer{
		reader:  r,
		dlq:     dlq,
		indexer: indexer,
		policy:  policy,
		logger:  logger,
		now:     time.Now,
		sleep:   sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Run consumes until ctx is canceled or indexing fails fatally.
// A fatal failure leaves the message uncommitted so it is redelivered after restart.
// Consecutive fetch failures are spaced by the policy's backoff.
func (c *Consumer) Run(ctx context.Context) error {
	backoff := c.policy.Backoff()
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info("Consumer stopped")
				return nil
			}
			if errors.Is(err, context.Canceled) {
				return nil
			}
			delay, _ := backoff.Next()
			c.logger.Error("Fetch message failed", zap.Error(err), zap.Duration("backoff", delay))
			if c.sleep(ctx, delay) != nil {
				c.logger.Info("Consumer stopped")
				return nil
			}
			continue
		}
		backoff = c.policy.Backoff()

		if err := c.handle(ctx, msg); err != nil {
			if ctx.Err() != nil {
				c.logger.Info("Consumer stopped", zap.Int64("uncommitted_offset", msg.Offset))
				return nil
			}
			return err
		}
	}
}

func (c *Consumer) handle(ctx context.Context, msg kafka.Message) error {
	log := c.logger.With(zap.Int("partition", msg.Partition), zap.Int64("offset", msg.Offset))

	err := c.process(ctx, msg)
	switch {
	case err == nil:
		metrics.ConsumerMessagesTotal.WithLabelValues("stored").Inc()
	case domain.IsFatal(err):
		return fmt.Errorf("index message at offset %d: %w", msg.Offset, err)
	default:
		log.Warn("Process message failed, sending to DLQ", zap.Error(err))
		if dlqErr := c.deadLetter(ctx, msg, err); dlqErr != nil {
			return fmt.Errorf("dead-letter offset %d: %w", msg.Offset, dlqErr)
		}
		metrics.ConsumerMessagesTotal.WithLabelValues("dlq").Inc()
	}

	if err := c.reader.CommitMessages(ctx, msg); err != nil {
		log.Error("Commit message failed", zap.Error(err))
	}
	return nil
}

func (c *Consumer) process(ctx context.Context, msg kafka.Message) error {
	rec, err := decodeArticle(msg.Value)
	if err != nil {
		return err
	}
	report, err := c.indexer.Store(ctx, []domain.ArticleRecord{rec})
	if err != nil {
		return fmt.Errorf("store %s: %w", rec.URL, err)
	}
	c.logger.Debug("Indexed article", zap.String("url", rec.URL), zap.Int("stored", report.Stored))
	return nil
}

func (c *Consumer) deadLetter(ctx context.Context, msg kafka.Message, cause error) error {
	headers := make([]kafka.Header, 0, len(msg.Headers)+4)
	headers = append(headers, msg.Headers...)
	headers = append(headers,
		kafka.Header{Key: "original_partition", Value: []byte(strconv.Itoa(msg.Partition))},
		kafka.Header{Key: "original_offset", Value: []byte(strconv.FormatInt(msg.Offset, 10))},
		kafka.Header{Key: "error", Value: []byte(cause.Error())},
		kafka.Header{Key: "timestamp", Value: []byte(c.now().UTC().Format(time.RFC3339))},
	)
	dlqMsg := kafka.Message{Key: msg.Key, Value: msg.Value, Headers: headers}

	return c.policy.Do(ctx, "kafka.dlq", func(ctx context.Context) error {
		return c.dlq.WriteMessages(ctx, dlqMsg)
	})
}

// Close stops the reader and flushes the DLQ writer.
func (c *Consumer) Close() error {
	return errors.Join(c.reader.Close(), c.dlq.Close())
}
