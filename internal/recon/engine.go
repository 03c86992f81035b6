package recon

import (
	"context"
	"fmt"
	"sort"
	"time"

	"CustodianSync/internal/domain/models"
	drepo "CustodianSync/internal/domain/repository"
	"CustodianSync/internal/pipeline"
	xlogger "CustodianSync/pkg/logger"

	"github.com/google/uuid"
)

// Engine compares custodian-supplied records against internal portfolio
// state. A run always completes with a summary; record-level mismatches
// are results, never errors.
type Engine struct {
	portfolio drepo.PortfolioSource
	tol       Tolerances
	pub       drepo.EventPublisher
	logger    *xlogger.Logger
	metrics   drepo.Metrics
}

// NewEngine creates a reconciliation engine.
func NewEngine(portfolio drepo.PortfolioSource, tol Tolerances, pub drepo.EventPublisher, logger *xlogger.Logger, metrics drepo.Metrics) *Engine {
	return &Engine{portfolio: portfolio, tol: tol, pub: pub, logger: logger, metrics: metrics}
}

// Reconcile diffs a custodian feed against portfolio state and derives
// the summary only after every record has been compared.
func (e *Engine) Reconcile(ctx context.Context, conn *models.CustodianConnection, req *models.DataFeedRequest, feed *models.RawFeed) (*models.ReconciliationSummary, error) {
	var results []models.ReconciliationResult
	var reconciledValue, discrepancyAmount float64
	var err error

	switch feed.FeedType {
	case models.FeedPositions:
		results, reconciledValue, discrepancyAmount, err = e.reconcilePositions(ctx, req.PortfolioID, feed)
	case models.FeedTransactions:
		results, reconciledValue, discrepancyAmount, err = e.reconcileTransactions(ctx, req, feed)
	case models.FeedCashBalances:
		results, reconciledValue, discrepancyAmount, err = e.reconcileCash(ctx, req.PortfolioID, feed)
	default:
		return nil, &models.RetrievalError{FeedType: feed.FeedType, Reason: "reconciliation not supported for feed type"}
	}
	if err != nil {
		return nil, err
	}

	summary := &models.ReconciliationSummary{
		RunID:             uuid.NewString(),
		ConnectionID:      conn.ID,
		PortfolioID:       req.PortfolioID,
		FeedType:          feed.FeedType,
		TotalRecords:      len(results),
		ReconciledValue:   reconciledValue,
		DiscrepancyAmount: discrepancyAmount,
		Results:           results,
		CompletedAt:       time.Now().UTC(),
	}

	for _, res := range results {
		if res.Status == models.Matched {
			summary.MatchedRecords++
			continue
		}
		summary.UnmatchedRecords++
		for _, d := range res.Discrepancies {
			if d.WithinTolerance {
				continue
			}
			summary.MaterialCount++
			summary.Alerts = append(summary.Alerts, models.ReconciliationAlert{
				ID:           uuid.NewString(),
				ConnectionID: conn.ID,
				RecordKey:    res.RecordKey,
				Field:        d.Field,
				Expected:     d.Expected,
				Actual:       d.Actual,
				Severity:     models.AlertHigh,
				RaisedAt:     summary.CompletedAt,
			})
			if e.metrics != nil {
				e.metrics.RecordDiscrepancy(string(conn.CustodianType), d.Field)
			}
		}
	}

	if summary.TotalRecords > 0 {
		summary.AccuracyPct = float64(summary.MatchedRecords) / float64(summary.TotalRecords) * 100
	}
	if e.metrics != nil {
		e.metrics.RecordReconciliation(string(conn.CustodianType), summary.MatchedRecords, summary.UnmatchedRecords)
	}

	if e.pub != nil {
		_ = e.pub.Publish(ctx, models.TopicReconciliationCompleted, models.ReconciliationCompletedEvent{
			RunID:            summary.RunID,
			ConnectionID:     conn.ID,
			TotalRecords:     summary.TotalRecords,
			MatchedRecords:   summary.MatchedRecords,
			UnmatchedRecords: summary.UnmatchedRecords,
			MaterialCount:    summary.MaterialCount,
			AccuracyPct:      summary.AccuracyPct,
			CompletedAt:      summary.CompletedAt,
		})
	}

	e.logger.Info("reconciliation completed",
		xlogger.String("run_id", summary.RunID),
		xlogger.Int("total", summary.TotalRecords),
		xlogger.Int("matched", summary.MatchedRecords),
		xlogger.Int("material", summary.MaterialCount))
	return summary, nil
}

func (e *Engine) reconcilePositions(ctx context.Context, portfolioID string, feed *models.RawFeed) ([]models.ReconciliationResult, float64, float64, error) {
	custodian := pipeline.Positions(feed)
	internal, err := e.portfolio.Positions(ctx, portfolioID)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("portfolio positions: %w", err)
	}

	internalByKey := make(map[string]models.PositionRecord, len(internal))
	for _, p := range internal {
		internalByKey[p.AccountNumber+"|"+p.Symbol] = p
	}

	var results []models.ReconciliationResult
	var reconciled, discrepancy float64
	seen := make(map[string]bool, len(custodian))

	for _, c := range custodian {
		if err := ctx.Err(); err != nil {
			return nil, 0, 0, err
		}
		key := c.AccountNumber + "|" + c.Symbol
		seen[key] = true
		res := models.ReconciliationResult{
			RecordKey:     key,
			AccountNumber: c.AccountNumber,
			Symbol:        c.Symbol,
		}

		p, ok := internalByKey[key]
		if !ok {
			res.Discrepancies = append(res.Discrepancies, models.Discrepancy{
				Field:      "missing_internal",
				Expected:   c.MarketValue,
				Actual:     0,
				Difference: c.MarketValue,
			})
		} else {
			res.Discrepancies = append(res.Discrepancies,
				e.tol.Check("quantity", FieldQuantity, c.Quantity, p.Quantity),
				e.tol.Check("price", FieldPrice, c.Price, p.Price),
				e.tol.Check("market_value", FieldMarketValue, c.MarketValue, p.MarketValue),
			)
			reconciled += c.MarketValue
		}

		res.Status = statusOf(res.Discrepancies)
		if res.Status == models.Unmatched {
			discrepancy += sumOutside(res.Discrepancies)
		}
		results = append(results, res)
	}

	// Positions the custodian never reported are unmatched too.
	orphans := make([]string, 0)
	for key := range internalByKey {
		if !seen[key] {
			orphans = append(orphans, key)
		}
	}
	sort.Strings(orphans)
	for _, key := range orphans {
		p := internalByKey[key]
		results = append(results, models.ReconciliationResult{
			RecordKey:     key,
			AccountNumber: p.AccountNumber,
			Symbol:        p.Symbol,
			Discrepancies: []models.Discrepancy{{
				Field:      "missing_custodian",
				Expected:   0,
				Actual:     p.MarketValue,
				Difference: -p.MarketValue,
			}},
			Status: models.Unmatched,
		})
		discrepancy += p.MarketValue
	}

	return results, reconciled, discrepancy, nil
}

func (e *Engine) reconcileTransactions(ctx context.Context, req *models.DataFeedRequest, feed *models.RawFeed) ([]models.ReconciliationResult, float64, float64, error) {
	custodian := pipeline.Transactions(feed)
	internal, err := e.portfolio.Transactions(ctx, req.PortfolioID, req.DateFrom, req.DateTo)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("portfolio transactions: %w", err)
	}

	internalByID := make(map[string]models.TransactionRecord, len(internal))
	for _, t := range internal {
		internalByID[t.TransactionID] = t
	}

	var results []models.ReconciliationResult
	var reconciled, discrepancy float64

	for _, c := range custodian {
		if err := ctx.Err(); err != nil {
			return nil, 0, 0, err
		}
		res := models.ReconciliationResult{
			RecordKey:     c.TransactionID,
			AccountNumber: c.AccountNumber,
			Symbol:        c.Symbol,
		}

		t, ok := internalByID[c.TransactionID]
		if !ok {
			res.Discrepancies = append(res.Discrepancies, models.Discrepancy{
				Field:      "missing_internal",
				Expected:   c.Quantity * c.Price,
				Actual:     0,
				Difference: c.Quantity * c.Price,
			})
		} else {
			res.Discrepancies = append(res.Discrepancies,
				e.tol.Check("quantity", FieldQuantity, c.Quantity, t.Quantity),
				e.tol.Check("price", FieldPrice, c.Price, t.Price),
			)
			reconciled += c.Quantity * c.Price
		}

		res.Status = statusOf(res.Discrepancies)
		if res.Status == models.Unmatched {
			discrepancy += sumOutside(res.Discrepancies)
		}
		results = append(results, res)
	}

	return results, reconciled, discrepancy, nil
}

func (e *Engine) reconcileCash(ctx context.Context, portfolioID string, feed *models.RawFeed) ([]models.ReconciliationResult, float64, float64, error) {
	custodian := pipeline.CashBalances(feed)
	internal, err := e.portfolio.CashBalances(ctx, portfolioID)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("portfolio cash balances: %w", err)
	}

	internalByKey := make(map[string]models.CashBalanceRecord, len(internal))
	for _, b := range internal {
		internalByKey[b.AccountNumber+"|"+b.Currency] = b
	}

	var results []models.ReconciliationResult
	var reconciled, discrepancy float64

	for _, c := range custodian {
		if err := ctx.Err(); err != nil {
			return nil, 0, 0, err
		}
		key := c.AccountNumber + "|" + c.Currency
		res := models.ReconciliationResult{RecordKey: key, AccountNumber: c.AccountNumber}

		b, ok := internalByKey[key]
		if !ok {
			res.Discrepancies = append(res.Discrepancies, models.Discrepancy{
				Field:      "missing_internal",
				Expected:   c.Balance,
				Actual:     0,
				Difference: c.Balance,
			})
		} else {
			res.Discrepancies = append(res.Discrepancies,
				e.tol.Check("balance", FieldCash, c.Balance, b.Balance))
			reconciled += c.Balance
		}

		res.Status = statusOf(res.Discrepancies)
		if res.Status == models.Unmatched {
			discrepancy += sumOutside(res.Discrepancies)
		}
		results = append(results, res)
	}

	return results, reconciled, discrepancy, nil
}

// statusOf is MATCHED iff every discrepancy is within tolerance.
func statusOf(discrepancies []models.Discrepancy) models.MatchStatus {
	for _, d := range discrepancies {
		if !d.WithinTolerance {
			return models.Unmatched
		}
	}
	return models.Matched
}

func sumOutside(discrepancies []models.Discrepancy) float64 {
	var total float64
	for _, d := range discrepancies {
		if !d.WithinTolerance {
			if d.Difference < 0 {
				total -= d.Difference
			} else {
				total += d.Difference
			}
		}
	}
	return total
}
