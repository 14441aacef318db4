package kafka

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

// maxHandlerRetries bounds handler attempts per message. A message that still
// fails afterwards is committed anyway so one poison pill cannot stall the
// partition.
const maxHandlerRetries = 3

// Handler processes one decoded event.
type Handler func(ctx context.Context, event *Event) error

// ConsumerConfig holds Kafka consumer configuration.
type ConsumerConfig struct {
	Brokers  []string
	GroupID  string
	Topic    string
	MinBytes int
	MaxBytes int

	// EnableDLQ parks messages that exhaust their retries on a dead-letter
	// topic instead of dropping them.
	EnableDLQ bool
}

// Consumer runs a group reader over one topic, feeding each message through
// the handler with retries, metrics, and optional dead-lettering.
type Consumer struct {
	reader    *kafka.Reader
	dlq       *DLQProducer
	logger    *slog.Logger
	handler   Handler
	closeOnce sync.Once
}

// NewConsumer creates a consumer for the topic and group in cfg.
func NewConsumer(cfg ConsumerConfig, handler Handler, logger *slog.Logger) *Consumer {
	c := &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  cfg.Brokers,
			GroupID:  cfg.GroupID,
			Topic:    cfg.Topic,
			MinBytes: cfg.MinBytes,
			MaxBytes: cfg.MaxBytes,
		}),
		logger:  logger,
		handler: handler,
	}
	if cfg.EnableDLQ {
		c.dlq = NewDLQProducer(cfg.Brokers, logger)
	}
	return c
}

// Start fetches and processes messages until ctx is canceled, then closes the
// reader.
func (c *Consumer) Start(ctx context.Context) error {
	topic := c.reader.Config().Topic
	group := c.reader.Config().GroupID

	c.logger.Info("consumer started",
		slog.String("topic", topic),
		slog.String("group", group),
	)

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info("consumer stopping", slog.String("topic", topic))
				return c.Close()
			}
			c.logger.Error("failed to fetch message", slog.String("error", err.Error()))
			continue
		}

		ConsumerMessagesReceived.WithLabelValues(topic, group).Inc()
		c.process(ctx, msg, topic, group)

		if ctx.Err() != nil {
			return c.Close()
		}
	}
}

// process decodes, handles, and commits one message. Undecodable messages are
// committed and skipped; handler failures go through the retry loop and, when
// exhausted, to the DLQ. The commit always happens so the group offset moves.
func (c *Consumer) process(ctx context.Context, msg kafka.Message, topic, group string) {
	event, err := UnmarshalEvent(msg.Value)
	if err != nil {
		c.logger.Error("failed to unmarshal event",
			slog.String("error", err.Error()),
			slog.String("topic", msg.Topic),
		)
		c.commit(ctx, msg, "bad message")
		return
	}

	// Continue the producer's trace, if the message carries one.
	msgCtx := ExtractTraceContext(ctx, msg.Headers)

	lastErr := c.handleWithRetry(msgCtx, event, msg, topic, group)
	if lastErr != nil {
		// Shutdown interrupted the retries: leave the message uncommitted so
		// the group redelivers it instead of dead-lettering a half-tried one.
		if ctx.Err() != nil {
			return
		}
		ConsumerMessagesFailed.WithLabelValues(topic, group).Inc()
		c.logger.Error("handler failed after all retries",
			slog.String("event_type", event.EventType),
			slog.String("aggregate_id", event.AggregateID),
			slog.String("error", lastErr.Error()),
			slog.String("topic", msg.Topic),
			slog.Int("partition", msg.Partition),
			slog.Int64("offset", msg.Offset),
			slog.Int("retries", maxHandlerRetries),
			slog.Bool("dlq", c.dlq != nil),
		)

		if c.dlq != nil {
			if dlqErr := c.dlq.Publish(ctx, msg, lastErr, group); dlqErr != nil {
				c.logger.Error("failed to publish to DLQ", slog.String("error", dlqErr.Error()))
			} else {
				ConsumerDLQPublished.WithLabelValues(topic, group).Inc()
			}
		}

		c.commit(ctx, msg, "poison message")
		return
	}

	ConsumerMessagesProcessed.WithLabelValues(topic, group).Inc()
	c.commit(ctx, msg, "message")
}

// handleWithRetry runs the handler up to maxHandlerRetries times with linear
// backoff (attempt x 100ms) between attempts. Returns nil on the first
// success, the last error otherwise. Cancellation cuts the backoff short.
func (c *Consumer) handleWithRetry(ctx context.Context, event *Event, msg kafka.Message, topic, group string) error {
	var lastErr error
	for attempt := 1; attempt <= maxHandlerRetries; attempt++ {
		start := time.Now()
		err := c.handler(ctx, event)
		ConsumerProcessingDuration.WithLabelValues(topic, group).Observe(time.Since(start).Seconds())

		if err == nil {
			return nil
		}
		lastErr = err

		c.logger.Warn("handler failed, will retry",
			slog.String("event_type", event.EventType),
			slog.String("aggregate_id", event.AggregateID),
			slog.String("error", err.Error()),
			slog.String("topic", msg.Topic),
			slog.Int("partition", msg.Partition),
			slog.Int64("offset", msg.Offset),
			slog.Int("attempt", attempt),
			slog.Int("max_retries", maxHandlerRetries),
		)

		if attempt < maxHandlerRetries {
			select {
			case <-ctx.Done():
				return lastErr
			case <-time.After(time.Duration(attempt) * 100 * time.Millisecond):
			}
		}
	}
	return lastErr
}

func (c *Consumer) commit(ctx context.Context, msg kafka.Message, what string) {
	if err := c.reader.CommitMessages(ctx, msg); err != nil {
		c.logger.Error("failed to commit "+what, slog.String("error", err.Error()))
	}
}

// Close closes the reader and the DLQ producer. Safe to call more than once.
func (c *Consumer) Close() error {
	var err error
	c.closeOnce.Do(func() {
		err = c.reader.Close()
		if c.dlq != nil {
			if dlqErr := c.dlq.Close(); dlqErr != nil && err == nil {
				err = dlqErr
			}
		}
	})
	return err
}
