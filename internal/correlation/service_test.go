package correlation

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"CustodianSync/internal/domain/models"
	xlogger "CustodianSync/pkg/logger"
)

type recordingStore struct {
	mu       sync.Mutex
	analyses [][]models.CorrelationAnalysis
}

func (r *recordingStore) Init(ctx context.Context) error { return nil }
func (r *recordingStore) StoreFeed(ctx context.Context, feed *models.ProcessedFeed) error {
	return nil
}
func (r *recordingStore) StoreSummary(ctx context.Context, summary *models.ReconciliationSummary) error {
	return nil
}
func (r *recordingStore) GetSummary(ctx context.Context, runID string) (*models.ReconciliationSummary, error) {
	return nil, models.ErrNotFound
}
func (r *recordingStore) StoreAnalyses(ctx context.Context, analyses []models.CorrelationAnalysis) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.analyses = append(r.analyses, analyses)
	return nil
}
func (r *recordingStore) Health(ctx context.Context) error { return nil }
func (r *recordingStore) Close() error                     { return nil }

type recordingPublisher struct {
	mu     sync.Mutex
	topics []string
}

func (p *recordingPublisher) Publish(ctx context.Context, topic string, payload interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func testLogger(t *testing.T) *xlogger.Logger {
	t.Helper()
	l, err := xlogger.New(&xlogger.Config{Level: "error", Format: "console", Output: "stdout"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return l
}

func linearProfile(id string, n int) *models.PerformanceProfile {
	cpu := make([]float64, n)
	mem := make([]float64, n)
	for i := 0; i < n; i++ {
		cpu[i] = float64(i)
		mem[i] = 2*float64(i) + 1
	}
	return &models.PerformanceProfile{
		ProfileID: id,
		Metrics: map[models.MetricType][]float64{
			models.MetricCPUUsage:    cpu,
			models.MetricMemoryUsage: mem,
		},
	}
}

func TestAnalyzeProfileEmpty(t *testing.T) {
	s := NewService(Options{}, nil, nil, testLogger(t))
	if _, err := s.AnalyzeProfile(context.Background(), nil); err == nil {
		t.Fatalf("nil profile accepted")
	}
	if _, err := s.AnalyzeProfile(context.Background(), &models.PerformanceProfile{ProfileID: "p"}); err == nil {
		t.Fatalf("empty profile accepted")
	}
}

func TestAnalyzeProfilePerfectPair(t *testing.T) {
	store := &recordingStore{}
	s := NewService(Options{MinSampleSize: 10}, store, nil, testLogger(t))

	result, err := s.AnalyzeProfile(context.Background(), linearProfile("p1", 20))
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}

	if len(result.Analyses) != 1 {
		t.Fatalf("analyses = %d", len(result.Analyses))
	}
	a := result.Analyses[0]
	if !almostEqual(a.Coefficient, 1, 1e-9) {
		t.Fatalf("coefficient = %v", a.Coefficient)
	}
	if a.Strength != models.StrengthVeryStrong {
		t.Fatalf("strength = %v", a.Strength)
	}
	if a.Type != models.CorrelationPositive {
		t.Fatalf("type = %v", a.Type)
	}
	if a.SampleSize != 20 {
		t.Fatalf("sample size = %d", a.SampleSize)
	}
	if len(store.analyses) != 1 {
		t.Fatalf("persisted batches = %d", len(store.analyses))
	}
}

func TestAnalyzeProfileSkipsShortSeries(t *testing.T) {
	s := NewService(Options{MinSampleSize: 10}, nil, nil, testLogger(t))
	result, err := s.AnalyzeProfile(context.Background(), linearProfile("p1", 5))
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if len(result.Analyses) != 0 {
		t.Fatalf("short series must be skipped, got %d analyses", len(result.Analyses))
	}
}

func TestAnalyzeProfileCaches(t *testing.T) {
	s := NewService(Options{MinSampleSize: 10, CacheTTL: time.Minute}, nil, nil, testLogger(t))

	first, err := s.AnalyzeProfile(context.Background(), linearProfile("p1", 20))
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	if first.Cached {
		t.Fatalf("first run marked cached")
	}

	second, err := s.AnalyzeProfile(context.Background(), linearProfile("p1", 20))
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if !second.Cached {
		t.Fatalf("second run not served from cache")
	}
}

func TestIngestAndProfileSnapshot(t *testing.T) {
	s := NewService(Options{}, nil, nil, testLogger(t))
	now := time.Now()
	for i := 0; i < 5; i++ {
		s.Ingest(models.MetricSample{ProfileID: "p1", Metric: models.MetricCPUUsage, Value: float64(i), Timestamp: now})
	}

	profile := s.Profile("p1")
	if profile == nil {
		t.Fatalf("profile missing")
	}
	if len(profile.Metrics[models.MetricCPUUsage]) != 5 {
		t.Fatalf("series = %v", profile.Metrics[models.MetricCPUUsage])
	}

	// Snapshot must be isolated from the live buffer.
	profile.Metrics[models.MetricCPUUsage][0] = 999
	if s.Profile("p1").Metrics[models.MetricCPUUsage][0] == 999 {
		t.Fatalf("snapshot shares backing array")
	}

	if s.Profile("unknown") != nil {
		t.Fatalf("unknown profile must be nil")
	}
}

func TestIngestBounded(t *testing.T) {
	s := NewService(Options{}, nil, nil, testLogger(t))
	for i := 0; i < maxBaselineSamples+10; i++ {
		s.Ingest(models.MetricSample{ProfileID: "p1", Metric: models.MetricCPUUsage, Value: float64(i)})
	}
	if n := len(s.Profile("p1").Metrics[models.MetricCPUUsage]); n != maxBaselineSamples {
		t.Fatalf("buffer = %d, want %d", n, maxBaselineSamples)
	}
}

func TestDetectAnomalyBaselineShift(t *testing.T) {
	s := NewService(Options{}, nil, nil, testLogger(t))
	now := time.Now().UTC()

	// Stable baseline around 0.7, then a collapse to 0.1.
	for _, r := range []float64{0.68, 0.7, 0.72, 0.69, 0.71} {
		if a := s.detectAnomaly("p1", models.MetricDBQueryTime, models.MetricErrorRate, r, now); a != nil {
			t.Fatalf("stable observation flagged: %+v", a)
		}
	}

	anomaly := s.detectAnomaly("p1", models.MetricDBQueryTime, models.MetricErrorRate, 0.1, now)
	if anomaly == nil {
		t.Fatalf("collapse not flagged")
	}
	if anomaly.Type != models.AnomalyCorrelationBreak {
		t.Fatalf("type = %v", anomaly.Type)
	}
	if anomaly.Deviation <= 2 {
		t.Fatalf("deviation = %v", anomaly.Deviation)
	}
}

func TestDetectAnomalyReversal(t *testing.T) {
	s := NewService(Options{}, nil, nil, testLogger(t))
	now := time.Now().UTC()

	for _, r := range []float64{0.6, 0.62, 0.61, 0.6, 0.63} {
		s.detectAnomaly("p1", models.MetricDBQueryTime, models.MetricThroughput, r, now)
	}

	anomaly := s.detectAnomaly("p1", models.MetricDBQueryTime, models.MetricThroughput, -0.6, now)
	if anomaly == nil {
		t.Fatalf("sign flip not flagged")
	}
	if anomaly.Type != models.AnomalyCorrelationReversal {
		t.Fatalf("type = %v, want reversal", anomaly.Type)
	}
}

func TestDetectAnomalyMissingCorrelation(t *testing.T) {
	s := NewService(Options{}, nil, nil, testLogger(t))
	now := time.Now().UTC()

	// Fresh pair from the pattern catalog observed with no correlation.
	anomaly := s.detectAnomaly("p1", models.MetricCPUUsage, models.MetricMemoryUsage, 0.05, now)
	if anomaly == nil {
		t.Fatalf("missing cataloged correlation not flagged")
	}
	if anomaly.Type != models.AnomalyMissingCorrelation {
		t.Fatalf("type = %v", anomaly.Type)
	}
}

func TestAnalyzeProfileConfirmsCatalogPattern(t *testing.T) {
	s := NewService(Options{MinSampleSize: 10}, nil, nil, testLogger(t))

	// Linear trend with alternating noise lands cpu/memory near r=0.66,
	// inside the cataloged 0.4..0.9 range.
	n := 20
	cpu := make([]float64, n)
	mem := make([]float64, n)
	for i := 0; i < n; i++ {
		cpu[i] = float64(i)
		mem[i] = float64(i)
		if i%2 == 0 {
			mem[i] += 6
		} else {
			mem[i] -= 6
		}
	}
	profile := &models.PerformanceProfile{
		ProfileID: "p1",
		Metrics: map[models.MetricType][]float64{
			models.MetricCPUUsage:    cpu,
			models.MetricMemoryUsage: mem,
		},
	}

	result, err := s.AnalyzeProfile(context.Background(), profile)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}

	if len(result.Patterns) != 1 {
		t.Fatalf("patterns = %d, want 1", len(result.Patterns))
	}
	match := result.Patterns[0]
	if match.MetricA != models.MetricCPUUsage || match.MetricB != models.MetricMemoryUsage {
		t.Fatalf("match pair = %s/%s", match.MetricA, match.MetricB)
	}
	if match.Coefficient < match.RangeLow || match.Coefficient > match.RangeHigh {
		t.Fatalf("coefficient %v outside confirmed range [%v, %v]", match.Coefficient, match.RangeLow, match.RangeHigh)
	}
	if match.Causality != models.CausalityBidirectional {
		t.Fatalf("causality = %v", match.Causality)
	}
	if match.Hypothesis == "" {
		t.Fatalf("match without hypothesis")
	}
	if len(result.Anomalies) != 0 {
		t.Fatalf("in-range observation flagged: %+v", result.Anomalies)
	}
}

func TestAnalyzeProfilePatternOutOfRange(t *testing.T) {
	s := NewService(Options{MinSampleSize: 10}, nil, nil, testLogger(t))

	// A perfect r=1 sits above cpu/memory's typical high end.
	result, err := s.AnalyzeProfile(context.Background(), linearProfile("p1", 20))
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if len(result.Patterns) != 0 {
		t.Fatalf("out-of-range coefficient confirmed a pattern: %+v", result.Patterns)
	}
}

func TestPatternForOrientsToCaller(t *testing.T) {
	direct, ok := PatternFor(models.MetricErrorRate, models.MetricResponseTime)
	if !ok {
		t.Fatalf("cataloged pair not found")
	}
	if direct.Causality != models.CausalityReverse {
		t.Fatalf("direct causality = %v", direct.Causality)
	}

	flipped, ok := PatternFor(models.MetricResponseTime, models.MetricErrorRate)
	if !ok {
		t.Fatalf("reversed lookup failed")
	}
	if flipped.MetricA != models.MetricResponseTime {
		t.Fatalf("reversed match not reoriented: %+v", flipped)
	}
	if flipped.Causality != models.CausalityForward {
		t.Fatalf("reversed causality = %v, want flipped", flipped.Causality)
	}
	if flipped.RangeLow != direct.RangeLow || flipped.RangeHigh != direct.RangeHigh {
		t.Fatalf("range changed on reorientation")
	}
}

func TestAnalyzeProfilePublishesAnomalies(t *testing.T) {
	pub := &recordingPublisher{}
	s := NewService(Options{MinSampleSize: 10}, nil, pub, testLogger(t))

	// cpu/memory is a cataloged pair; uncorrelated series trigger the
	// missing-correlation check on the first run.
	n := 20
	cpu := make([]float64, n)
	mem := make([]float64, n)
	for i := 0; i < n; i++ {
		cpu[i] = float64(i)
		if i%2 == 0 {
			mem[i] = 1
		} else {
			mem[i] = -1
		}
	}
	profile := &models.PerformanceProfile{
		ProfileID: "p1",
		Metrics: map[models.MetricType][]float64{
			models.MetricCPUUsage:    cpu,
			models.MetricMemoryUsage: mem,
		},
	}

	result, err := s.AnalyzeProfile(context.Background(), profile)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if len(result.Anomalies) == 0 {
		t.Fatalf("expected missing-correlation anomaly")
	}
	if len(pub.topics) == 0 || pub.topics[0] != models.TopicCorrelationAnomaly {
		t.Fatalf("topics = %v", pub.topics)
	}
}

func TestCausalityDirectional(t *testing.T) {
	s := NewService(Options{}, nil, nil, testLogger(t))

	n := 40
	x := make([]float64, n)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		x[i] = math.Sin(float64(i) / 2)
	}
	for i := 1; i < n; i++ {
		y[i] = x[i-1]
	}

	if dir := s.causality(x, y); dir != models.CausalityForward {
		t.Fatalf("causality = %v, want %v", dir, models.CausalityForward)
	}
	if dir := s.causality(y, x); dir != models.CausalityReverse {
		t.Fatalf("causality = %v, want %v", dir, models.CausalityReverse)
	}
}
