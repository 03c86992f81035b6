package usecase

import (
	"context"
	"testing"
	"time"

	"CustodianSync/internal/domain/models"
	pkgcache "CustodianSync/pkg/cache"
	xlogger "CustodianSync/pkg/logger"
)

type summaryStore struct {
	gets      int
	summaries map[string]*models.ReconciliationSummary
}

func (s *summaryStore) Init(ctx context.Context) error { return nil }
func (s *summaryStore) StoreFeed(ctx context.Context, feed *models.ProcessedFeed) error {
	return nil
}
func (s *summaryStore) StoreSummary(ctx context.Context, summary *models.ReconciliationSummary) error {
	if s.summaries == nil {
		s.summaries = make(map[string]*models.ReconciliationSummary)
	}
	s.summaries[summary.RunID] = summary
	return nil
}
func (s *summaryStore) GetSummary(ctx context.Context, runID string) (*models.ReconciliationSummary, error) {
	s.gets++
	summary, ok := s.summaries[runID]
	if !ok {
		return nil, models.ErrNotFound
	}
	return summary, nil
}
func (s *summaryStore) StoreAnalyses(ctx context.Context, analyses []models.CorrelationAnalysis) error {
	return nil
}
func (s *summaryStore) Health(ctx context.Context) error { return nil }
func (s *summaryStore) Close() error                     { return nil }

func testLogger(t *testing.T) *xlogger.Logger {
	t.Helper()
	l, err := xlogger.New(&xlogger.Config{Level: "error", Format: "console", Output: "stdout"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return l
}

func TestToFeedRequest(t *testing.T) {
	req := &models.ReconciliationRunRequest{
		ConnectionID: "c1",
		FeedType:     models.FeedPositions,
		PortfolioID:  "p1",
		DateFrom:     "2024-03-01",
		DateTo:       "2024-03-15",
	}

	feedReq, err := toFeedRequest(req)
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if feedReq.DateFrom.Month() != time.March || feedReq.DateFrom.Day() != 1 {
		t.Fatalf("date_from = %v", feedReq.DateFrom)
	}
	if feedReq.FeedType != models.FeedPositions || feedReq.PortfolioID != "p1" {
		t.Fatalf("request = %+v", feedReq)
	}
}

func TestToFeedRequestRejectsBadRanges(t *testing.T) {
	cases := []struct {
		name     string
		from, to string
	}{
		{"inverted range", "2024-03-15", "2024-03-01"},
		{"garbage from", "not-a-date", "2024-03-01"},
		{"garbage to", "2024-03-01", "15/03/2024"},
	}
	for _, c := range cases {
		_, err := toFeedRequest(&models.ReconciliationRunRequest{DateFrom: c.from, DateTo: c.to})
		if err == nil {
			t.Fatalf("%s: accepted", c.name)
		}
	}
}

func TestSummaryReadThroughCache(t *testing.T) {
	store := &summaryStore{}
	_ = store.StoreSummary(context.Background(), &models.ReconciliationSummary{
		RunID:       "run-1",
		AccuracyPct: 99.5,
	})

	svc := NewFeedService(nil, nil, nil, store, nil, testLogger(t), nil).
		WithSummaryCache(pkgcache.NewMemoryCache(), time.Minute)

	first, err := svc.Summary(context.Background(), "run-1")
	if err != nil {
		t.Fatalf("first lookup: %v", err)
	}
	if first.AccuracyPct != 99.5 {
		t.Fatalf("summary = %+v", first)
	}
	if store.gets != 1 {
		t.Fatalf("store gets = %d", store.gets)
	}

	// Second lookup must come from the cache.
	if _, err := svc.Summary(context.Background(), "run-1"); err != nil {
		t.Fatalf("second lookup: %v", err)
	}
	if store.gets != 1 {
		t.Fatalf("store gets after cached lookup = %d", store.gets)
	}
}

func TestSummaryUnknownRun(t *testing.T) {
	svc := NewFeedService(nil, nil, nil, &summaryStore{}, nil, testLogger(t), nil)
	if _, err := svc.Summary(context.Background(), "nope"); err == nil {
		t.Fatalf("unknown run accepted")
	}
}
