package correlation

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"CustodianSync/internal/domain/models"
	drepo "CustodianSync/internal/domain/repository"
	"CustodianSync/internal/service/cache"
	xlogger "CustodianSync/pkg/logger"
)

// Options tunes the analysis service.
type Options struct {
	MinSampleSize int
	CacheTTL      time.Duration
	WithLags      bool
	MaxLag        int
}

func (o Options) withDefaults() Options {
	if o.MinSampleSize <= 0 {
		o.MinSampleSize = 10
	}
	if o.CacheTTL <= 0 {
		o.CacheTTL = 24 * time.Hour
	}
	if o.MaxLag <= 0 {
		o.MaxLag = 10
	}
	return o
}

// Service runs pairwise correlation analysis over performance profiles,
// tracks baselines, and flags deviations. Analyses are cached per
// profile; a profile's stages fail independently.
type Service struct {
	opts      Options
	baselines *BaselineStore
	cache     *cache.TTLCache
	store     drepo.FeedStore
	pub       drepo.EventPublisher
	logger    *xlogger.Logger

	mu      sync.Mutex
	buffers map[string]map[models.MetricType][]float64
}

// NewService creates a correlation service.
func NewService(opts Options, store drepo.FeedStore, pub drepo.EventPublisher, logger *xlogger.Logger) *Service {
	return &Service{
		opts:      opts.withDefaults(),
		baselines: NewBaselineStore(),
		cache:     cache.NewTTLCache(),
		store:     store,
		pub:       pub,
		logger:    logger,
		buffers:   make(map[string]map[models.MetricType][]float64),
	}
}

// Ingest buffers one streamed metric sample for its profile. Buffers
// are bounded to the baseline window size.
func (s *Service) Ingest(sample models.MetricSample) {
	s.mu.Lock()
	defer s.mu.Unlock()
	profile, ok := s.buffers[sample.ProfileID]
	if !ok {
		profile = make(map[models.MetricType][]float64)
		s.buffers[sample.ProfileID] = profile
	}
	series := append(profile[sample.Metric], sample.Value)
	if len(series) > maxBaselineSamples {
		series = series[len(series)-maxBaselineSamples:]
	}
	profile[sample.Metric] = series
}

// Profile snapshots the buffered series for a profile id.
func (s *Service) Profile(profileID string) *models.PerformanceProfile {
	s.mu.Lock()
	defer s.mu.Unlock()
	buf, ok := s.buffers[profileID]
	if !ok {
		return nil
	}
	out := &models.PerformanceProfile{
		ProfileID: profileID,
		Metrics:   make(map[models.MetricType][]float64, len(buf)),
	}
	for m, series := range buf {
		out.Metrics[m] = append([]float64(nil), series...)
	}
	return out
}

// PatternMatch is a cataloged relationship confirmed by the observed
// coefficient falling inside its typical range. It carries the
// catalog's causality hypothesis, not the data-driven inference.
type PatternMatch struct {
	ProfileID   string                    `json:"profile_id"`
	MetricA     models.MetricType         `json:"metric_a"`
	MetricB     models.MetricType         `json:"metric_b"`
	Coefficient float64                   `json:"coefficient"`
	RangeLow    float64                   `json:"range_low"`
	RangeHigh   float64                   `json:"range_high"`
	Causality   models.CausalityDirection `json:"causality"`
	Hypothesis  string                    `json:"hypothesis"`
}

// AnalysisResult bundles one profile run.
type AnalysisResult struct {
	ProfileID string                       `json:"profile_id"`
	Analyses  []models.CorrelationAnalysis `json:"analyses"`
	Patterns  []PatternMatch               `json:"patterns"`
	Anomalies []models.CorrelationAnomaly  `json:"anomalies"`
	Cached    bool                         `json:"cached"`
}

// AnalyzeProfile correlates every metric pair with enough samples.
// Short series are skipped, not errors; an empty profile is an error.
func (s *Service) AnalyzeProfile(ctx context.Context, profile *models.PerformanceProfile) (*AnalysisResult, error) {
	if profile == nil || len(profile.Metrics) == 0 {
		return nil, fmt.Errorf("profile has no metric series")
	}

	if v, ok := s.cache.Get("analysis:" + profile.ProfileID); ok {
		if cached, ok := v.(*AnalysisResult); ok {
			out := *cached
			out.Cached = true
			return &out, nil
		}
	}

	metrics := make([]models.MetricType, 0, len(profile.Metrics))
	for m := range profile.Metrics {
		metrics = append(metrics, m)
	}
	sort.Slice(metrics, func(i, j int) bool { return metrics[i] < metrics[j] })

	result := &AnalysisResult{ProfileID: profile.ProfileID}
	now := time.Now().UTC()

	for i := 0; i < len(metrics); i++ {
		for j := i + 1; j < len(metrics); j++ {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			a, b := metrics[i], metrics[j]
			x, y := profile.Metrics[a], profile.Metrics[b]
			n := min(len(x), len(y))
			if n < s.opts.MinSampleSize {
				continue
			}
			x, y = x[:n], y[:n]

			analysis := s.analyzePair(profile.ProfileID, a, b, x, y, n, now)
			result.Analyses = append(result.Analyses, analysis)

			if match := matchPattern(profile.ProfileID, a, b, analysis.Coefficient); match != nil {
				result.Patterns = append(result.Patterns, *match)
			}

			if anomaly := s.detectAnomaly(profile.ProfileID, a, b, analysis.Coefficient, now); anomaly != nil {
				result.Anomalies = append(result.Anomalies, *anomaly)
				if s.pub != nil {
					_ = s.pub.Publish(ctx, models.TopicCorrelationAnomaly, anomaly)
				}
			}
		}
	}

	// Persistence is best effort; the computed result stands either way.
	if s.store != nil && len(result.Analyses) > 0 {
		if err := s.store.StoreAnalyses(ctx, result.Analyses); err != nil {
			s.logger.Warn("store analyses failed",
				xlogger.String("profile_id", profile.ProfileID),
				xlogger.String("error", err.Error()))
		}
	}

	s.cache.Set("analysis:"+profile.ProfileID, result, s.opts.CacheTTL)
	s.logger.Info("profile analyzed",
		xlogger.String("profile_id", profile.ProfileID),
		xlogger.Int("pairs", len(result.Analyses)),
		xlogger.Int("patterns", len(result.Patterns)),
		xlogger.Int("anomalies", len(result.Anomalies)))
	return result, nil
}

// matchPattern checks the catalog for a confirmed relationship on this
// pair.
func matchPattern(profileID string, a, b models.MetricType, r float64) *PatternMatch {
	pattern, ok := PatternFor(a, b)
	if !ok || r < pattern.RangeLow || r > pattern.RangeHigh {
		return nil
	}
	return &PatternMatch{
		ProfileID:   profileID,
		MetricA:     a,
		MetricB:     b,
		Coefficient: r,
		RangeLow:    pattern.RangeLow,
		RangeHigh:   pattern.RangeHigh,
		Causality:   pattern.Causality,
		Hypothesis:  pattern.Hypothesis,
	}
}

func (s *Service) analyzePair(profileID string, a, b models.MetricType, x, y []float64, n int, now time.Time) models.CorrelationAnalysis {
	r := Pearson(x, y)
	lag := 0
	ctype := classify(r)

	if s.opts.WithLags {
		if bestLag, bestR := LaggedCorrelation(x, y, s.opts.MaxLag); bestLag > 0 && math.Abs(bestR) > math.Abs(r)+0.1 {
			r, lag = bestR, bestLag
			ctype = models.CorrelationLagged
		}
	}

	// A flat linear fit can still hide a monotonic relationship.
	if ctype != models.CorrelationLagged && math.Abs(r) < 0.2 {
		if rho := Spearman(x, y); math.Abs(rho)-math.Abs(r) > 0.2 {
			ctype = models.CorrelationNonLinear
		}
	}

	low, high := ConfidenceInterval(r, n)
	analysis := models.CorrelationAnalysis{
		ProfileID:      profileID,
		MetricA:        a,
		MetricB:        b,
		Coefficient:    r,
		Strength:       Strength(r),
		Type:           ctype,
		PValue:         PValue(r, n),
		SampleSize:     n,
		TimeLag:        lag,
		ConfidenceLow:  low,
		ConfidenceHigh: high,
		Causality:      s.causality(x, y),
		ComputedAt:     now,
	}
	analysis.BusinessImpact = businessImpact(analysis)
	return analysis
}

// causality applies a lag-1 lead test in both directions: a clear
// winner is directional, two strong signals are bidirectional.
func (s *Service) causality(x, y []float64) models.CausalityDirection {
	n := len(x)
	if n < 3 {
		return models.CausalityNone
	}
	forward := math.Abs(Pearson(x[:n-1], y[1:]))
	reverse := math.Abs(Pearson(y[:n-1], x[1:]))

	switch {
	case forward > 0.3 && reverse > 0.3 && math.Abs(forward-reverse) <= 0.1:
		return models.CausalityBidirectional
	case forward-reverse > 0.1:
		return models.CausalityForward
	case reverse-forward > 0.1:
		return models.CausalityReverse
	default:
		return models.CausalityNone
	}
}

// detectAnomaly compares the fresh coefficient against the pair's
// baseline and the pattern catalog. The observation always feeds the
// baseline, flagged or not.
func (s *Service) detectAnomaly(profileID string, a, b models.MetricType, r float64, now time.Time) *models.CorrelationAnomaly {
	prior := s.baselines.Get(profileID, a, b)
	s.baselines.Observe(profileID, a, b, r)

	if pattern, ok := PatternFor(a, b); ok {
		expectedStrong := math.Max(math.Abs(pattern.RangeLow), math.Abs(pattern.RangeHigh)) >= 0.3
		if expectedStrong && math.Abs(r) < 0.2 && (prior == nil || len(prior.Samples) < 3) {
			return &models.CorrelationAnomaly{
				ProfileID:  profileID,
				MetricA:    a,
				MetricB:    b,
				Type:       models.AnomalyMissingCorrelation,
				Expected:   (pattern.RangeLow + pattern.RangeHigh) / 2,
				Actual:     r,
				Deviation:  math.Abs(r - (pattern.RangeLow+pattern.RangeHigh)/2),
				DetectedAt: now,
			}
		}
	}

	if prior == nil || len(prior.Samples) < 3 {
		return nil
	}
	dev := prior.Deviation(r)
	if dev <= 2 {
		return nil
	}

	kind := models.AnomalyCorrelationBreak
	switch {
	case prior.Mean*r < 0 && math.Abs(prior.Mean) >= 0.2 && math.Abs(r) >= 0.2:
		kind = models.AnomalyCorrelationReversal
	case math.Abs(prior.Mean) >= 0.3 && math.Abs(r) < 0.2:
		kind = models.AnomalyCorrelationBreak
	}

	return &models.CorrelationAnomaly{
		ProfileID:  profileID,
		MetricA:    a,
		MetricB:    b,
		Type:       kind,
		Expected:   prior.Mean,
		Actual:     r,
		Deviation:  dev,
		DetectedAt: now,
	}
}

func classify(r float64) models.CorrelationType {
	if r < 0 {
		return models.CorrelationNegative
	}
	return models.CorrelationPositive
}

// businessImpact weights strength by significance: a strong but noisy
// correlation ranks below a moderate, well supported one.
func businessImpact(a models.CorrelationAnalysis) float64 {
	confidence := 1 - a.PValue
	if confidence < 0 {
		confidence = 0
	}
	return math.Abs(a.Coefficient) * confidence
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
