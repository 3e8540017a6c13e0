// Package producer publishes alert lifecycle audit records to the sos.alerts
// Kafka topic for the platform's downstream reporting pipeline. Every trigger
// attempt stays visible in the audit trail, including retried ones.
package producer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"sos-gateway/internal/events"
)

const (
	// writeTimeout is the maximum time to wait for a Kafka write operation.
	writeTimeout = 10 * time.Second
)

// Producer wraps a Kafka writer and publishes alert audit events.
type Producer struct {
	writer *kafka.Writer
	topic  string
}

// NewProducer creates a Kafka producer for the given brokers and topic,
// configured for at-least-once delivery with synchronous writes.
func NewProducer(brokers string, topic string) (*Producer, error) {
	if brokers == "" {
		return nil, fmt.Errorf("brokers cannot be empty")
	}
	if topic == "" {
		return nil, fmt.Errorf("topic cannot be empty")
	}

	brokerList := strings.Split(brokers, ",")
	for i := range brokerList {
		brokerList[i] = strings.TrimSpace(brokerList[i])
	}

	slog.Info("Initializing Kafka audit producer",
		"brokers", brokerList,
		"topic", topic,
	)

	// Best effort; failures are logged and the topic may need manual creation.
	createTopicIfNotExists(brokerList[0], topic)

	// Key by alert id so one alert's lifecycle lands on one partition in order.
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokerList...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		WriteTimeout: writeTimeout,
		RequiredAcks: kafka.RequireOne,
		Async:        false,
	}

	return &Producer{
		writer: writer,
		topic:  topic,
	}, nil
}

// Publish serializes an audit record to JSON and publishes it, keyed by alert id.
func (p *Producer) Publish(ctx context.Context, audit *events.AlertAudit) error {
	payload, err := json.Marshal(audit)
	if err != nil {
		return fmt.Errorf("failed to marshal alert audit event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(audit.AlertID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "schema_version", Value: []byte(fmt.Sprintf("%d", audit.SchemaVersion))},
			{Key: "action", Value: []byte(audit.Action)},
		},
		Time: audit.Timestamp,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write audit event to Kafka: %w", err)
	}

	slog.Info("Published alert audit event",
		"alert_id", audit.AlertID,
		"action", audit.Action,
		"hazard_kind", audit.HazardKind,
	)
	return nil
}

// Close gracefully closes the Kafka writer.
func (p *Producer) Close() error {
	slog.Info("Closing Kafka audit producer", "topic", p.topic)
	if err := p.writer.Close(); err != nil {
		slog.Error("Error closing Kafka producer", "error", err)
		return err
	}
	return nil
}

// createTopicIfNotExists attempts to create the topic if it doesn't exist.
// Best-effort: failures are logged but don't prevent producer creation.
func createTopicIfNotExists(broker, topic string) {
	conn, err := kafka.Dial("tcp", broker)
	if err != nil {
		slog.Warn("Could not connect to Kafka to check/create topic",
			"broker", broker,
			"topic", topic,
			"error", err,
		)
		return
	}
	defer conn.Close()

	partitions, err := conn.ReadPartitions(topic)
	if err == nil && len(partitions) > 0 {
		slog.Info("Topic already exists", "topic", topic, "partitions", len(partitions))
		return
	}

	topicConfig := kafka.TopicConfig{
		Topic:             topic,
		NumPartitions:     3,
		ReplicationFactor: 1,
	}
	if err := conn.CreateTopics(topicConfig); err != nil {
		slog.Warn("Could not create topic (may need to be created manually)",
			"topic", topic,
			"error", err,
		)
		return
	}
	slog.Info("Created topic", "topic", topic, "partitions", 3)
}
