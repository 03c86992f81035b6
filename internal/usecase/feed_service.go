package usecase

import (
	"context"
	"fmt"
	"time"

	"CustodianSync/internal/domain/models"
	drepo "CustodianSync/internal/domain/repository"
	"CustodianSync/internal/pipeline"
	"CustodianSync/internal/recon"
	"CustodianSync/internal/registry"
	pkgcache "CustodianSync/pkg/cache"
	xlogger "CustodianSync/pkg/logger"
)

// FeedService orchestrates custodian operations end to end: retrieval,
// validation, persistence, reconciliation, order submission. Every
// operation serializes on its connection.
type FeedService struct {
	registry *registry.Registry
	proc     *pipeline.Processor
	engine   *recon.Engine
	store    drepo.FeedStore
	pub      drepo.EventPublisher
	logger   *xlogger.Logger
	metrics  drepo.Metrics

	summaryCache pkgcache.Service
	summaryTTL   time.Duration
}

// NewFeedService creates the orchestration service.
func NewFeedService(
	reg *registry.Registry,
	proc *pipeline.Processor,
	engine *recon.Engine,
	store drepo.FeedStore,
	pub drepo.EventPublisher,
	logger *xlogger.Logger,
	metrics drepo.Metrics,
) *FeedService {
	return &FeedService{
		registry: reg,
		proc:     proc,
		engine:   engine,
		store:    store,
		pub:      pub,
		logger:   logger,
		metrics:  metrics,
	}
}

// WithSummaryCache enables read-through caching of run summaries.
func (s *FeedService) WithSummaryCache(c pkgcache.Service, ttl time.Duration) *FeedService {
	s.summaryCache = c
	s.summaryTTL = ttl
	return s
}

// RunFeed retrieves one feed, validates it record by record, and
// persists the outcome. Returns both the raw and processed feed so
// callers can reconcile without refetching.
func (s *FeedService) RunFeed(ctx context.Context, connectionID string, req *models.DataFeedRequest) (*models.RawFeed, *models.ProcessedFeed, error) {
	conn, err := s.registry.GetConnection(ctx, connectionID)
	if err != nil {
		return nil, nil, err
	}
	if !conn.IsActive {
		return nil, nil, fmt.Errorf("connection %s is deactivated", connectionID)
	}

	unlock := s.registry.LockConnection(connectionID)
	defer unlock()

	start := time.Now()
	raw, err := s.registry.Adapter(conn).RetrieveData(ctx, conn, req)
	if err != nil {
		if s.metrics != nil {
			s.metrics.RecordError("retrieve")
		}
		return nil, nil, err
	}
	if s.metrics != nil {
		s.metrics.RecordLatency("retrieve", time.Since(start).Seconds())
	}

	processed, err := s.proc.ProcessAndValidate(ctx, raw, conn, req)
	if err != nil {
		return raw, nil, err
	}

	if err := s.store.StoreFeed(ctx, processed); err != nil {
		// The feed already ran against the custodian; losing the audit
		// row is logged, not fatal.
		s.logger.Error("store feed failed",
			xlogger.String("feed_id", processed.ID),
			xlogger.Error(err))
	}

	if s.pub != nil {
		_ = s.pub.Publish(ctx, models.TopicFeedProcessed, models.FeedProcessedEvent{
			FeedID:         processed.ID,
			ConnectionID:   conn.ID,
			FeedType:       processed.FeedType,
			RecordCount:    processed.RecordCount,
			ProcessedCount: processed.ProcessedCount,
			ErrorCount:     processed.ErrorCount,
			Status:         processed.Status,
			CompletedAt:    processed.CompletedAt,
		})
	}
	return raw, processed, nil
}

// RunReconciliation runs feed retrieval and diffs the result against
// portfolio state. The summary is persisted before returning.
func (s *FeedService) RunReconciliation(ctx context.Context, req *models.ReconciliationRunRequest) (*models.ReconciliationSummary, error) {
	feedReq, err := toFeedRequest(req)
	if err != nil {
		return nil, err
	}

	raw, processed, err := s.RunFeed(ctx, req.ConnectionID, feedReq)
	if err != nil {
		return nil, err
	}
	if processed.Status == models.ProcessingFailed {
		return nil, fmt.Errorf("feed %s failed validation, nothing to reconcile", processed.ID)
	}

	conn, err := s.registry.GetConnection(ctx, req.ConnectionID)
	if err != nil {
		return nil, err
	}

	summary, err := s.engine.Reconcile(ctx, conn, feedReq, raw)
	if err != nil {
		return nil, err
	}

	if err := s.store.StoreSummary(ctx, summary); err != nil {
		s.logger.Error("store summary failed",
			xlogger.String("run_id", summary.RunID),
			xlogger.Error(err))
	}
	if s.summaryCache != nil {
		_ = s.summaryCache.Set(ctx, summaryKey(summary.RunID), summary, s.summaryTTL)
	}
	return summary, nil
}

// Summary looks up a persisted reconciliation run, cache first.
func (s *FeedService) Summary(ctx context.Context, runID string) (*models.ReconciliationSummary, error) {
	if s.summaryCache != nil {
		var cached models.ReconciliationSummary
		if err := s.summaryCache.Get(ctx, summaryKey(runID), &cached); err == nil {
			return &cached, nil
		}
	}

	summary, err := s.store.GetSummary(ctx, runID)
	if err != nil {
		return nil, err
	}
	if s.summaryCache != nil {
		_ = s.summaryCache.Set(ctx, summaryKey(runID), summary, s.summaryTTL)
	}
	return summary, nil
}

func summaryKey(runID string) string {
	return pkgcache.GenerateKey("recon:summary", runID)
}

// SubmitOrders forwards a batch to the custodian under the connection
// lock and publishes the aggregate outcome.
func (s *FeedService) SubmitOrders(ctx context.Context, req *models.SubmitOrdersRequest) (*models.OrderSubmissionResult, error) {
	conn, err := s.registry.GetConnection(ctx, req.ConnectionID)
	if err != nil {
		return nil, err
	}
	if !conn.IsActive {
		return nil, fmt.Errorf("connection %s is deactivated", req.ConnectionID)
	}

	unlock := s.registry.LockConnection(req.ConnectionID)
	defer unlock()

	result, err := s.registry.Adapter(conn).SubmitOrders(ctx, conn, &models.OrderBatchRequest{
		PortfolioID: req.PortfolioID,
		Orders:      req.Orders,
	})
	if err != nil {
		return nil, err
	}

	if s.pub != nil {
		_ = s.pub.Publish(ctx, models.TopicOrdersSubmitted, models.OrdersSubmittedEvent{
			ConnectionID:   conn.ID,
			SubmittedCount: result.SubmittedCount,
			RejectedCount:  result.RejectedCount,
			Status:         result.Status,
			SubmittedAt:    result.SubmittedAt,
		})
	}
	return result, nil
}

// RetrieveDocuments lists custodian-hosted documents for a date range.
func (s *FeedService) RetrieveDocuments(ctx context.Context, connectionID string, from, to time.Time) ([]models.Document, error) {
	conn, err := s.registry.GetConnection(ctx, connectionID)
	if err != nil {
		return nil, err
	}

	unlock := s.registry.LockConnection(connectionID)
	defer unlock()

	docs, err := s.registry.Adapter(conn).RetrieveDocuments(ctx, conn, from, to)
	if err != nil {
		return nil, err
	}

	if s.pub != nil {
		_ = s.pub.Publish(ctx, models.TopicDocumentsRetrieved, models.DocumentsRetrievedEvent{
			ConnectionID: conn.ID,
			Count:        len(docs),
			RetrievedAt:  time.Now().UTC(),
		})
	}
	return docs, nil
}

func toFeedRequest(req *models.ReconciliationRunRequest) (*models.DataFeedRequest, error) {
	from, err := time.Parse("2006-01-02", req.DateFrom)
	if err != nil {
		return nil, fmt.Errorf("parse date_from: %w", err)
	}
	to, err := time.Parse("2006-01-02", req.DateTo)
	if err != nil {
		return nil, fmt.Errorf("parse date_to: %w", err)
	}
	if to.Before(from) {
		return nil, fmt.Errorf("date_to precedes date_from")
	}
	return &models.DataFeedRequest{
		FeedType:      req.FeedType,
		AccountNumber: req.AccountNumber,
		DateFrom:      from,
		DateTo:        to,
		PortfolioID:   req.PortfolioID,
	}, nil
}
