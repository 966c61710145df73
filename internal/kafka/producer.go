package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/trogers1052/nse-market-service/internal/models"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer handles publishing events to Kafka
type Producer struct {
	writer messageWriter
	topic  string
}

// NewProducer creates a new Kafka producer
func NewProducer(brokers []string, topic string) *Producer {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.LeastBytes{},
		BatchTimeout:           10 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}

	return &Producer{
		writer: writer,
		topic:  topic,
	}
}

// PricesUpdated publishes a committed batch, keyed by its source
func (p *Producer) PricesUpdated(ctx context.Context, event models.PriceEvent) error {
	if event.EventType == "" {
		event.EventType = models.EventPricesUpdated
	}
	return p.publish(ctx, event.Source, event)
}

// StockUpdated publishes a stock profile change
func (p *Producer) StockUpdated(ctx context.Context, stock *models.StockReference) error {
	event := models.StockEvent{
		EventType: models.EventStockUpdated,
		Symbol:    stock.Symbol,
		Stock:     stock,
		Timestamp: time.Now(),
	}
	return p.publish(ctx, stock.Symbol, event)
}

func (p *Producer) publish(ctx context.Context, key string, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: data,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write message to kafka: %w", err)
	}

	return nil
}

// Close closes the Kafka producer
func (p *Producer) Close() error {
	return p.writer.Close()
}
