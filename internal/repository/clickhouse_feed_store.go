package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"CustodianSync/internal/domain/models"
	domrepo "CustodianSync/internal/domain/repository"
	pkgch "CustodianSync/pkg/clickhouse"
	applogger "CustodianSync/pkg/logger"
)

// schemaStatements create the append-only analytics tables. Nested
// payloads are stored as JSON strings; ClickHouse is the system of
// record for runs, not a query engine over individual discrepancies.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS custsync_feeds (
        id String,
        connection_id String,
        tenant_id String,
        portfolio_id String,
        feed_type LowCardinality(String),
        record_count UInt32,
        processed_count UInt32,
        error_count UInt32,
        status LowCardinality(String),
        source LowCardinality(String),
        checksum String,
        errors String,
        started_at DateTime64(3),
        completed_at DateTime64(3)
    ) ENGINE = MergeTree() ORDER BY (connection_id, started_at)`,
	`CREATE TABLE IF NOT EXISTS custsync_recon_runs (
        run_id String,
        connection_id String,
        portfolio_id String,
        feed_type LowCardinality(String),
        total_records UInt32,
        matched_records UInt32,
        unmatched_records UInt32,
        material_count UInt32,
        reconciled_value Float64,
        discrepancy_amount Float64,
        accuracy_pct Float64,
        payload String,
        completed_at DateTime64(3)
    ) ENGINE = MergeTree() ORDER BY (connection_id, completed_at)`,
	`CREATE TABLE IF NOT EXISTS custsync_correlations (
        profile_id String,
        metric_a LowCardinality(String),
        metric_b LowCardinality(String),
        coefficient Float64,
        strength LowCardinality(String),
        corr_type LowCardinality(String),
        p_value Float64,
        sample_size UInt32,
        time_lag Int32,
        confidence_low Float64,
        confidence_high Float64,
        causality LowCardinality(String),
        business_impact Float64,
        computed_at DateTime64(3)
    ) ENGINE = MergeTree() ORDER BY (profile_id, computed_at)`,
}

// CHFeedStore implements FeedStore backed by ClickHouse.
type CHFeedStore struct {
	db *sql.DB
	l  *applogger.Logger
}

func NewCHFeedStore(ch *pkgch.Client) domrepo.FeedStore {
	return &CHFeedStore{db: ch.DB()}
}

// SetLogger injects a structured logger.
func (s *CHFeedStore) SetLogger(l *applogger.Logger) { s.l = l }

func (s *CHFeedStore) Init(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

func (s *CHFeedStore) StoreFeed(ctx context.Context, feed *models.ProcessedFeed) error {
	start := time.Now()
	errsJSON, err := json.Marshal(feed.Errors)
	if err != nil {
		return fmt.Errorf("marshal feed errors: %w", err)
	}

	const q = `INSERT INTO custsync_feeds
        (id, connection_id, tenant_id, portfolio_id, feed_type, record_count,
         processed_count, error_count, status, source, checksum, errors,
         started_at, completed_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = s.db.ExecContext(ctx, q,
		feed.ID, feed.ConnectionID, feed.TenantID, feed.PortfolioID,
		string(feed.FeedType), uint32(feed.RecordCount),
		uint32(feed.ProcessedCount), uint32(feed.ErrorCount),
		string(feed.Status), feed.Source, feed.Checksum, string(errsJSON),
		feed.StartedAt, feed.CompletedAt,
	)
	if err != nil {
		if s.l != nil {
			s.l.Error("clickhouse store_feed error",
				applogger.String("feed_id", feed.ID),
				applogger.Error(err))
		}
		return fmt.Errorf("store feed: %w", err)
	}
	if s.l != nil {
		s.l.Info("clickhouse store_feed ok",
			applogger.String("feed_id", feed.ID),
			applogger.Duration("duration_ms", time.Since(start)))
	}
	return nil
}

func (s *CHFeedStore) StoreSummary(ctx context.Context, summary *models.ReconciliationSummary) error {
	payload, err := json.Marshal(struct {
		Results []models.ReconciliationResult `json:"results"`
		Alerts  []models.ReconciliationAlert  `json:"alerts"`
	}{summary.Results, summary.Alerts})
	if err != nil {
		return fmt.Errorf("marshal summary payload: %w", err)
	}

	const q = `INSERT INTO custsync_recon_runs
        (run_id, connection_id, portfolio_id, feed_type, total_records,
         matched_records, unmatched_records, material_count, reconciled_value,
         discrepancy_amount, accuracy_pct, payload, completed_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = s.db.ExecContext(ctx, q,
		summary.RunID, summary.ConnectionID, summary.PortfolioID,
		string(summary.FeedType), uint32(summary.TotalRecords),
		uint32(summary.MatchedRecords), uint32(summary.UnmatchedRecords),
		uint32(summary.MaterialCount), summary.ReconciledValue,
		summary.DiscrepancyAmount, summary.AccuracyPct, string(payload),
		summary.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("store summary: %w", err)
	}
	return nil
}

func (s *CHFeedStore) GetSummary(ctx context.Context, runID string) (*models.ReconciliationSummary, error) {
	const q = `SELECT run_id, connection_id, portfolio_id, feed_type,
        total_records, matched_records, unmatched_records, material_count,
        reconciled_value, discrepancy_amount, accuracy_pct, payload, completed_at
        FROM custsync_recon_runs WHERE run_id = ? LIMIT 1`

	var (
		out      models.ReconciliationSummary
		feedType string
		total    uint32
		matched  uint32
		unm      uint32
		material uint32
		payload  string
	)
	err := s.db.QueryRowContext(ctx, q, runID).Scan(
		&out.RunID, &out.ConnectionID, &out.PortfolioID, &feedType,
		&total, &matched, &unm, &material,
		&out.ReconciledValue, &out.DiscrepancyAmount, &out.AccuracyPct,
		&payload, &out.CompletedAt,
	)
	if err == sql.ErrNoRows {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get summary: %w", err)
	}

	out.FeedType = models.FeedType(feedType)
	out.TotalRecords = int(total)
	out.MatchedRecords = int(matched)
	out.UnmatchedRecords = int(unm)
	out.MaterialCount = int(material)

	var detail struct {
		Results []models.ReconciliationResult `json:"results"`
		Alerts  []models.ReconciliationAlert  `json:"alerts"`
	}
	if err := json.Unmarshal([]byte(payload), &detail); err == nil {
		out.Results = detail.Results
		out.Alerts = detail.Alerts
	}
	return &out, nil
}

func (s *CHFeedStore) StoreAnalyses(ctx context.Context, analyses []models.CorrelationAnalysis) error {
	if len(analyses) == 0 {
		return nil
	}

	values := make([]string, 0, len(analyses))
	args := make([]interface{}, 0, len(analyses)*14)
	for _, a := range analyses {
		values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)")
		args = append(args,
			a.ProfileID, string(a.MetricA), string(a.MetricB),
			a.Coefficient, string(a.Strength), string(a.Type),
			a.PValue, uint32(a.SampleSize), int32(a.TimeLag),
			a.ConfidenceLow, a.ConfidenceHigh, string(a.Causality),
			a.BusinessImpact, a.ComputedAt,
		)
	}
	q := fmt.Sprintf(`INSERT INTO custsync_correlations
        (profile_id, metric_a, metric_b, coefficient, strength, corr_type,
         p_value, sample_size, time_lag, confidence_low, confidence_high,
         causality, business_impact, computed_at) VALUES %s`,
		strings.Join(values, ","))
	if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("store analyses: %w", err)
	}
	return nil
}

func (s *CHFeedStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *CHFeedStore) Close() error {
	return nil // Managed by pkg
}
