package correlation

import (
	"math"
	"testing"

	"CustodianSync/internal/domain/models"
)

func TestBaselineObserveAndGet(t *testing.T) {
	s := NewBaselineStore()

	if s.Get("p1", models.MetricCPUUsage, models.MetricMemoryUsage) != nil {
		t.Fatalf("unobserved pair must be nil")
	}

	s.Observe("p1", models.MetricCPUUsage, models.MetricMemoryUsage, 0.7)
	bl := s.Observe("p1", models.MetricCPUUsage, models.MetricMemoryUsage, 0.8)
	if len(bl.Samples) != 2 {
		t.Fatalf("samples = %d", len(bl.Samples))
	}
	if !almostEqual(bl.Mean, 0.75, 1e-12) {
		t.Fatalf("mean = %v", bl.Mean)
	}
}

func TestBaselineKeyOrderIndependent(t *testing.T) {
	s := NewBaselineStore()
	s.Observe("p1", models.MetricCPUUsage, models.MetricMemoryUsage, 0.5)

	bl := s.Get("p1", models.MetricMemoryUsage, models.MetricCPUUsage)
	if bl == nil || len(bl.Samples) != 1 {
		t.Fatalf("reversed pair lookup failed: %+v", bl)
	}
}

func TestBaselineWindowBounded(t *testing.T) {
	s := NewBaselineStore()
	for i := 0; i < maxBaselineSamples+50; i++ {
		s.Observe("p1", models.MetricCPUUsage, models.MetricMemoryUsage, float64(i))
	}
	bl := s.Get("p1", models.MetricCPUUsage, models.MetricMemoryUsage)
	if len(bl.Samples) != maxBaselineSamples {
		t.Fatalf("samples = %d, want %d", len(bl.Samples), maxBaselineSamples)
	}
	// Oldest observations rotate out first.
	if bl.Samples[0] != 50 {
		t.Fatalf("oldest retained = %v, want 50", bl.Samples[0])
	}
}

func TestBaselineGetReturnsCopy(t *testing.T) {
	s := NewBaselineStore()
	s.Observe("p1", models.MetricCPUUsage, models.MetricMemoryUsage, 0.5)

	bl := s.Get("p1", models.MetricCPUUsage, models.MetricMemoryUsage)
	bl.Samples[0] = 99

	again := s.Get("p1", models.MetricCPUUsage, models.MetricMemoryUsage)
	if again.Samples[0] != 0.5 {
		t.Fatalf("internal state mutated through returned copy")
	}
}

func TestBaselineDeviation(t *testing.T) {
	bl := &Baseline{Mean: 0.7, Stddev: 0.05}
	if dev := bl.Deviation(0.4); !almostEqual(dev, 6, 1e-12) {
		t.Fatalf("deviation = %v, want 6", dev)
	}

	flat := &Baseline{Mean: 0.5, Stddev: 0}
	if dev := flat.Deviation(0.5); dev != 0 {
		t.Fatalf("flat baseline same value dev = %v", dev)
	}
	if dev := flat.Deviation(0.6); !math.IsInf(dev, 1) {
		t.Fatalf("flat baseline drift dev = %v, want +Inf", dev)
	}
}
