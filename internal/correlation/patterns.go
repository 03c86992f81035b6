package correlation

import "CustodianSync/internal/domain/models"

// KnownPattern documents an expected relationship between two metrics,
// with the coefficient range typically observed in healthy systems.
type KnownPattern struct {
	MetricA    models.MetricType
	MetricB    models.MetricType
	RangeLow   float64
	RangeHigh  float64
	Causality  models.CausalityDirection
	Hypothesis string
}

// knownPatterns is the catalog of relationships checked against every
// analyzed profile. Absence of a cataloged correlation is itself an
// anomaly signal.
var knownPatterns = []KnownPattern{
	{
		MetricA:    models.MetricCPUUsage,
		MetricB:    models.MetricMemoryUsage,
		RangeLow:   0.4,
		RangeHigh:  0.9,
		Causality:  models.CausalityBidirectional,
		Hypothesis: "load drives both compute and allocation pressure",
	},
	{
		MetricA:    models.MetricResponseTime,
		MetricB:    models.MetricThroughput,
		RangeLow:   -0.9,
		RangeHigh:  -0.3,
		Causality:  models.CausalityForward,
		Hypothesis: "slower responses shrink request capacity",
	},
	{
		MetricA:    models.MetricErrorRate,
		MetricB:    models.MetricResponseTime,
		RangeLow:   0.3,
		RangeHigh:  0.8,
		Causality:  models.CausalityReverse,
		Hypothesis: "latency pushes clients into timeout errors",
	},
	{
		MetricA:    models.MetricNetworkIO,
		MetricB:    models.MetricResponseTime,
		RangeLow:   0.2,
		RangeHigh:  0.7,
		Causality:  models.CausalityForward,
		Hypothesis: "transfer volume inflates round-trip time",
	},
	{
		MetricA:    models.MetricDBQueryTime,
		MetricB:    models.MetricCPUUsage,
		RangeLow:   0.3,
		RangeHigh:  0.8,
		Causality:  models.CausalityForward,
		Hypothesis: "slow queries keep workers pinned",
	},
}

// PatternFor looks up the catalog entry for a metric pair in either
// order. The result is oriented to the caller's (a, b): a reversed
// match flips the causality direction.
func PatternFor(a, b models.MetricType) (KnownPattern, bool) {
	for _, p := range knownPatterns {
		if p.MetricA == a && p.MetricB == b {
			return p, true
		}
		if p.MetricA == b && p.MetricB == a {
			p.MetricA, p.MetricB = a, b
			p.Causality = flipCausality(p.Causality)
			return p, true
		}
	}
	return KnownPattern{}, false
}

func flipCausality(d models.CausalityDirection) models.CausalityDirection {
	switch d {
	case models.CausalityForward:
		return models.CausalityReverse
	case models.CausalityReverse:
		return models.CausalityForward
	default:
		return d
	}
}

// Patterns returns the full catalog.
func Patterns() []KnownPattern {
	out := make([]KnownPattern, len(knownPatterns))
	copy(out, knownPatterns)
	return out
}
