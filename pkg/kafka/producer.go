// Package kafka publishes reconciliation lifecycle events
package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/segmentio/kafka-go"

	"github.com/samuelblakek/invoice-automation/pkg/metrics"
	"github.com/samuelblakek/invoice-automation/pkg/tracing"
)

// Producer handles Kafka event emission
type Producer struct {
	writer *kafka.Writer
	logger ectologger.Logger
	topic  string
}

// ProducerConfig holds Kafka producer configuration
type ProducerConfig struct {
	Brokers      []string
	Topic        string
	BatchSize    int
	BatchTimeout time.Duration
	RequiredAcks int
	Compression  string
}

// NewProducer creates a new Kafka producer
func NewProducer(cfg ProducerConfig, logger ectologger.Logger) *Producer {
	compression := kafka.Snappy
	switch cfg.Compression {
	case "gzip":
		compression = kafka.Gzip
	case "lz4":
		compression = kafka.Lz4
	case "zstd":
		compression = kafka.Zstd
	case "none":
		compression = 0
	}

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               &kafka.LeastBytes{},
		BatchSize:              cfg.BatchSize,
		BatchTimeout:           cfg.BatchTimeout,
		RequiredAcks:           kafka.RequiredAcks(cfg.RequiredAcks),
		Compression:            compression,
		AllowAutoTopicCreation: true,
	}

	return &Producer{
		writer: writer,
		logger: logger,
		topic:  cfg.Topic,
	}
}

// Close closes the producer
func (p *Producer) Close() error {
	return p.writer.Close()
}

// InvoiceEvent is one reconciliation lifecycle event. The invoice
// number keys the message so events for one invoice stay ordered.
type InvoiceEvent struct {
	EventType     string          `json:"event_type"` // invoice.reconciled, settlement.applied
	ResultID      string          `json:"result_id"`
	InvoiceNumber string          `json:"invoice_number"`
	Supplier      string          `json:"supplier"`
	Disposition   string          `json:"disposition"`
	Data          json.RawMessage `json:"data,omitempty"`
	Timestamp     time.Time       `json:"timestamp"`
}

// PublishInvoiceEvent publishes an invoice event to Kafka
func (p *Producer) PublishInvoiceEvent(ctx context.Context, event *InvoiceEvent) error {
	ctx, span := tracing.StartSpan(ctx, "kafka.Producer.PublishInvoiceEvent")
	defer span.End()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Topic: p.topic,
		Key:   []byte(event.InvoiceNumber),
		Value: data,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
			{Key: "disposition", Value: []byte(event.Disposition)},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		metrics.RecordKafkaPublish(p.topic, "error")
		p.logger.WithContext(ctx).WithError(err).Error("Failed to publish invoice event")
		return err
	}
	metrics.RecordKafkaPublish(p.topic, "success")

	p.logger.WithContext(ctx).WithFields(map[string]any{
		"event_type": event.EventType,
		"invoice_no": event.InvoiceNumber,
	}).Debug("Published invoice event")

	return nil
}
