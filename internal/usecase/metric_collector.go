package usecase

import (
	"context"

	"CustodianSync/internal/domain/models"
	drepo "CustodianSync/internal/domain/repository"
	mid "CustodianSync/internal/middleware"
)

// MetricCollector reads performance samples from the profiler stream
// and feeds them through the realtime pipeline.
type MetricCollector struct {
	stream  drepo.MetricStream
	proc    *SampleProcessor
	metrics drepo.Metrics
	pipe    *mid.RealtimePipeline
}

// NewMetricCollector creates a new MetricCollector instance.
func NewMetricCollector(stream drepo.MetricStream, proc *SampleProcessor, metrics drepo.Metrics, pipe *mid.RealtimePipeline) *MetricCollector {
	return &MetricCollector{stream: stream, proc: proc, metrics: metrics, pipe: pipe}
}

// IsConnected returns true if the profiler stream is connected.
func (c *MetricCollector) IsConnected() bool {
	return c.stream.IsConnected()
}

func (c *MetricCollector) Start(ctx context.Context) error {
	if err := c.stream.Connect(ctx); err != nil {
		return err
	}
	if err := c.stream.Subscribe(ctx); err != nil {
		return err
	}
	if c.pipe != nil {
		c.pipe.Start(ctx)
	}
	sCh, errCh := c.stream.Read(ctx)
	go c.consume(ctx, sCh, errCh)
	return nil
}

func (c *MetricCollector) consume(ctx context.Context, sCh <-chan *models.MetricSample, errCh <-chan error) {
	for {
		select {
		case <-ctx.Done():
			return
		case err := <-errCh:
			if err != nil {
				c.metrics.RecordError("stream")
				_ = c.stream.Reconnect(ctx)
			}
		case s := <-sCh:
			if s == nil {
				continue
			}
			if c.pipe != nil {
				_ = c.pipe.Process(ctx, s)
			} else {
				_ = c.proc.Process(ctx, s)
			}
		}
	}
}

func (c *MetricCollector) Stop() error { return c.stream.Close() }

// Processor returns the underlying SampleProcessor for lifecycle management.
func (c *MetricCollector) Processor() *SampleProcessor { return c.proc }

// Shutdown stops the pipeline and closes the stream.
func (c *MetricCollector) Shutdown(ctx context.Context) error {
	if c.pipe != nil {
		c.pipe.Stop()
	}
	return c.stream.Close()
}
