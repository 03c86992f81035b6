package models

import "time"

// MetricType identifies a collected performance metric series.
type MetricType string

const (
	MetricCPUUsage     MetricType = "cpu_usage"
	MetricMemoryUsage  MetricType = "memory_usage"
	MetricResponseTime MetricType = "response_time"
	MetricThroughput   MetricType = "throughput"
	MetricErrorRate    MetricType = "error_rate"
	MetricNetworkIO    MetricType = "network_io"
	MetricDBQueryTime  MetricType = "db_query_time"
)

// MetricSample is one observation in a metric series.
type MetricSample struct {
	ProfileID string     `json:"profile_id"`
	Metric    MetricType `json:"metric"`
	Value     float64    `json:"value"`
	Timestamp time.Time  `json:"timestamp"`
}

// PerformanceProfile is the lag-aligned set of metric series for one
// analysis subject.
type PerformanceProfile struct {
	ProfileID string                   `json:"profile_id"`
	Metrics   map[MetricType][]float64 `json:"metrics"`
}

// CorrelationStrength buckets |r| at the 0.2/0.4/0.6/0.8 boundaries.
type CorrelationStrength string

const (
	StrengthVeryWeak   CorrelationStrength = "very_weak"
	StrengthWeak       CorrelationStrength = "weak"
	StrengthModerate   CorrelationStrength = "moderate"
	StrengthStrong     CorrelationStrength = "strong"
	StrengthVeryStrong CorrelationStrength = "very_strong"
)

// CorrelationType classifies the relationship shape.
type CorrelationType string

const (
	CorrelationPositive  CorrelationType = "positive"
	CorrelationNegative  CorrelationType = "negative"
	CorrelationNonLinear CorrelationType = "non_linear"
	CorrelationCyclical  CorrelationType = "cyclical"
	CorrelationLagged    CorrelationType = "lagged"
)

// CausalityDirection is the inferred lead-lag direction.
type CausalityDirection string

const (
	CausalityForward       CausalityDirection = "a_causes_b"
	CausalityReverse       CausalityDirection = "b_causes_a"
	CausalityBidirectional CausalityDirection = "bidirectional"
	CausalityNone          CausalityDirection = "none"
)

// CorrelationAnalysis is immutable once computed; cached per profile
// with a bounded TTL.
type CorrelationAnalysis struct {
	ProfileID      string              `json:"profile_id"`
	MetricA        MetricType          `json:"metric_a"`
	MetricB        MetricType          `json:"metric_b"`
	Coefficient    float64             `json:"coefficient"`
	Strength       CorrelationStrength `json:"strength"`
	Type           CorrelationType     `json:"type"`
	PValue         float64             `json:"p_value"`
	SampleSize     int                 `json:"sample_size"`
	TimeLag        int                 `json:"time_lag"`
	ConfidenceLow  float64             `json:"confidence_low"`
	ConfidenceHigh float64             `json:"confidence_high"`
	Causality      CausalityDirection  `json:"causality"`
	BusinessImpact float64             `json:"business_impact"`
	ComputedAt     time.Time           `json:"computed_at"`
}

// AnomalyType classifies a baseline deviation.
type AnomalyType string

const (
	AnomalyCorrelationBreak    AnomalyType = "CORRELATION_BREAK"
	AnomalyCorrelationReversal AnomalyType = "CORRELATION_REVERSAL"
	AnomalyMissingCorrelation  AnomalyType = "MISSING_CORRELATION"
)

// CorrelationAnomaly flags a correlation that deviates from its baseline
// by more than two standard deviations.
type CorrelationAnomaly struct {
	ProfileID  string      `json:"profile_id"`
	MetricA    MetricType  `json:"metric_a"`
	MetricB    MetricType  `json:"metric_b"`
	Type       AnomalyType `json:"type"`
	Expected   float64     `json:"expected"`
	Actual     float64     `json:"actual"`
	Deviation  float64     `json:"deviation"`
	DetectedAt time.Time   `json:"detected_at"`
}
