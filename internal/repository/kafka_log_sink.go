package repository

import (
	"context"

	pkgkafka "SignalScan/pkg/kafka"
	applogger "SignalScan/pkg/logger"
)

// KafkaLogSink forwards aggregated error-log batches to a Kafka topic.
type KafkaLogSink struct {
	producer *pkgkafka.Producer
}

// NewKafkaLogSink creates a log sink backed by the given producer.
func NewKafkaLogSink(producer *pkgkafka.Producer) *KafkaLogSink {
	return &KafkaLogSink{producer: producer}
}

// PublishMessage sends one batch. Batches carry no key, ordering
// across log entries does not matter.
func (s *KafkaLogSink) PublishMessage(ctx context.Context, topic string, payload interface{}) error {
	return s.producer.Publish(ctx, topic, nil, payload)
}

var _ applogger.Publisher = (*KafkaLogSink)(nil)
