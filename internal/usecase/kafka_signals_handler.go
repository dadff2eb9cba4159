package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"SignalScan/internal/domain/models"
	domrepo "SignalScan/internal/domain/repository"
	pkgkafka "SignalScan/pkg/kafka"
)

// KafkaSignalsHandler consumes published signals and writes them to storage.
type KafkaSignalsHandler struct {
	topic   string
	store   domrepo.SignalStore
	metrics domrepo.Metrics
}

func NewKafkaSignalsHandler(topic string, store domrepo.SignalStore, metrics domrepo.Metrics) *KafkaSignalsHandler {
	return &KafkaSignalsHandler{topic: topic, store: store, metrics: metrics}
}

func (h *KafkaSignalsHandler) Topic() string { return h.topic }

// Handle decodes one signal message and stores it. Errors bubble up so
// the consumer's retry and DLQ policy applies.
func (h *KafkaSignalsHandler) Handle(ctx context.Context, b []byte) error {
	var s models.TradeSignal
	if err := json.Unmarshal(b, &s); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return err
	}
	if s.Symbol == "" || s.GeneratedAt.IsZero() {
		h.metrics.RecordError("consumer_invalid")
		return fmt.Errorf("signal missing symbol or timestamp")
	}
	// E2E latency from generation to sink (approx)
	h.metrics.RecordLatency("sink_e2e_seconds", time.Since(s.GeneratedAt).Seconds())

	start := time.Now()
	err := h.store.Store(ctx, &s)
	h.metrics.RecordLatency("ch_insert_seconds", time.Since(start).Seconds())
	if err != nil {
		h.metrics.RecordError("consumer_store")
		return err
	}
	h.metrics.RecordPublished("clickhouse", s.Symbol)
	return nil
}

var _ pkgkafka.MessageHandler = (*KafkaSignalsHandler)(nil)
