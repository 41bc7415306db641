package audit

import (
	"context"
	"encoding/json"
	"fmt"
)

// RecordProducer is the slice of a Kafka producer the sink needs.
type RecordProducer interface {
	Produce(ctx context.Context, topic string, key, value []byte) error
}

// KafkaSink publishes events as JSON keyed by event id.
type KafkaSink struct {
	producer RecordProducer
	topic    string
}

func NewKafkaSink(producer RecordProducer, topic string) *KafkaSink {
	return &KafkaSink{producer: producer, topic: topic}
}

func (s *KafkaSink) Append(ctx context.Context, event Event) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode audit event: %w", err)
	}
	return s.producer.Produce(ctx, s.topic, []byte(event.ID.String()), value)
}
