package usecase

import (
	"context"
	"encoding/json"
	"time"

	"CustodianSync/internal/correlation"
	"CustodianSync/internal/domain/models"
	domrepo "CustodianSync/internal/domain/repository"
	pkgkafka "CustodianSync/pkg/kafka"
)

// KafkaMetricsHandler consumes sample messages from the metrics topic
// and feeds the correlation service's profile buffers.
type KafkaMetricsHandler struct {
	topic   string
	corr    *correlation.Service
	metrics domrepo.Metrics
}

func NewKafkaMetricsHandler(topic string, corr *correlation.Service, metrics domrepo.Metrics) *KafkaMetricsHandler {
	return &KafkaMetricsHandler{topic: topic, corr: corr, metrics: metrics}
}

func (h *KafkaMetricsHandler) Topic() string { return h.topic }

func (h *KafkaMetricsHandler) Handle(ctx context.Context, b []byte) error {
	var s models.MetricSample
	if err := json.Unmarshal(b, &s); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return err
	}
	if s.ProfileID == "" || s.Metric == "" {
		h.metrics.RecordError("consumer_invalid_sample")
		return nil
	}

	// E2E latency from sample time to now (approx)
	if !s.Timestamp.IsZero() {
		h.metrics.RecordLatency("ingest_e2e_seconds", time.Since(s.Timestamp).Seconds())
	}

	h.corr.Ingest(s)
	return nil
}

var _ pkgkafka.MessageHandler = (*KafkaMetricsHandler)(nil)
