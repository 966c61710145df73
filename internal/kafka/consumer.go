package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"github.com/trogers1052/nse-market-service/internal/models"
)

// CacheInvalidator drops cached reads after data changed elsewhere
type CacheInvalidator interface {
	Invalidate(ctx context.Context) error
}

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
	Config() kafka.ReaderConfig
}

// Consumer listens for price and stock events published by other processes,
// such as a standalone scraper, and invalidates this process's read cache
type Consumer struct {
	reader messageReader
	cache  CacheInvalidator
	logger logrus.FieldLogger
}

// NewConsumer creates a new Kafka consumer for price events
func NewConsumer(brokers []string, topic, groupID string, cache CacheInvalidator, logger logrus.FieldLogger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       1,
		MaxBytes:       10e6, // 10MB
		MaxWait:        1 * time.Second,
		StartOffset:    kafka.LastOffset,
		CommitInterval: time.Second,
	})

	return &Consumer{
		reader: reader,
		cache:  cache,
		logger: logger,
	}
}

// Start begins consuming messages until ctx is cancelled
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.WithField("topic", c.reader.Config().Topic).Info("starting kafka consumer")

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("kafka consumer shutting down")
			return c.reader.Close()
		default:
			msg, err := c.reader.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return c.reader.Close()
				}
				c.logger.WithError(err).Warn("error reading message")
				continue
			}

			if err := c.processMessage(ctx, msg); err != nil {
				c.logger.WithError(err).WithField("offset", msg.Offset).Warn("error processing message")
			}
		}
	}
}

// processMessage handles a single Kafka message
func (c *Consumer) processMessage(ctx context.Context, msg kafka.Message) error {
	var envelope struct {
		EventType string `json:"event_type"`
	}
	if err := json.Unmarshal(msg.Value, &envelope); err != nil {
		return fmt.Errorf("failed to unmarshal event: %w", err)
	}

	switch envelope.EventType {
	case models.EventPricesUpdated, models.EventStockUpdated:
	default:
		c.logger.WithField("event_type", envelope.EventType).Debug("ignoring event")
		return nil
	}

	if err := c.cache.Invalidate(ctx); err != nil {
		return fmt.Errorf("failed to invalidate cache: %w", err)
	}

	c.logger.WithFields(logrus.Fields{
		"event_type": envelope.EventType,
		"key":        string(msg.Key),
		"partition":  msg.Partition,
		"offset":     msg.Offset,
	}).Info("cache invalidated by event")
	return nil
}
