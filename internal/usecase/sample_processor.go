package usecase

import (
	"context"
	"fmt"
	"time"

	"CustodianSync/internal/domain/models"
	drepo "CustodianSync/internal/domain/repository"
)

// SampleProcessor routes metric samples onto the bus for downstream
// correlation consumers.
type SampleProcessor struct {
	pub     drepo.EventPublisher
	topic   string
	metrics drepo.Metrics
}

// NewSampleProcessor creates a new SampleProcessor instance.
func NewSampleProcessor(pub drepo.EventPublisher, topic string, metrics drepo.Metrics) *SampleProcessor {
	return &SampleProcessor{pub: pub, topic: topic, metrics: metrics}
}

// Process publishes a single sample.
func (p *SampleProcessor) Process(ctx context.Context, s *models.MetricSample) error {
	if s == nil {
		return fmt.Errorf("sample is nil")
	}

	start := time.Now()
	if err := p.pub.Publish(ctx, p.topic, s); err != nil {
		p.metrics.RecordError("sample_publish")
		return fmt.Errorf("publish sample: %w", err)
	}
	p.metrics.RecordLatency("sample_publish", time.Since(start).Seconds())
	return nil
}

// Close closes the underlying publisher.
func (p *SampleProcessor) Close() {
	if p.pub != nil {
		_ = p.pub.Close()
	}
}
