package app

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/tturner/cipadapter/internal/logging"
)

// connectionAuditRecord is the JSON record appended to the audit topic on
// each connection lifecycle transition.
type connectionAuditRecord struct {
	Event          string `json:"event"`
	ConsumingPoint int32  `json:"consuming_point"`
	ProducingPoint int32  `json:"producing_point"`
	Timestamp      string `json:"timestamp"`
}

// kafkaBridge appends connection lifecycle events to a Kafka topic as an
// audit log (grounded on the teacher pack's warlogix kafka.Producer,
// trimmed to a single writer with fire-and-forget semantics — a dropped
// audit record does not affect the connection it describes).
type kafkaBridge struct {
	writer *kafka.Writer
	logger *logging.Logger
}

func newKafkaBridge(brokers []string, topic string, logger *logging.Logger) *kafkaBridge {
	return &kafkaBridge{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.LeastBytes{},
			BatchTimeout:           10 * time.Millisecond,
			AllowAutoTopicCreation: true,
		},
		logger: logger,
	}
}

func (b *kafkaBridge) publishEvent(event string, consumingPoint, producingPoint int32) {
	record := connectionAuditRecord{
		Event:          event,
		ConsumingPoint: consumingPoint,
		ProducingPoint: producingPoint,
		Timestamp:      time.Now().UTC().Format(time.RFC3339),
	}
	payload, err := json.Marshal(record)
	if err != nil {
		b.logger.Error("kafka: marshal audit record: %v", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := b.writer.WriteMessages(ctx, kafka.Message{Value: payload}); err != nil {
		b.logger.Error("kafka: write audit record: %v", err)
	}
}

func (b *kafkaBridge) close() {
	if b.writer != nil {
		_ = b.writer.Close()
	}
}
