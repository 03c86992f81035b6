package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"CustodianSync/internal/domain/models"
	drepo "CustodianSync/internal/domain/repository"
	xlogger "CustodianSync/pkg/logger"

	"github.com/google/uuid"
)

// Processor validates and normalizes raw adapter records into the
// canonical schema. Per-record failures never abort the batch; the feed
// finishes with a status reflecting the actual outcome.
type Processor struct {
	logger  *xlogger.Logger
	metrics drepo.Metrics
}

// NewProcessor creates a feed processor.
func NewProcessor(logger *xlogger.Logger, metrics drepo.Metrics) *Processor {
	return &Processor{logger: logger, metrics: metrics}
}

// ProcessAndValidate walks every raw record independently. A validation
// failure appends a ProcessingError and continues with the next record.
func (p *Processor) ProcessAndValidate(ctx context.Context, raw *models.RawFeed, conn *models.CustodianConnection, req *models.DataFeedRequest) (*models.ProcessedFeed, error) {
	feed := &models.ProcessedFeed{
		ID:           uuid.NewString(),
		ConnectionID: conn.ID,
		TenantID:     conn.TenantID,
		PortfolioID:  req.PortfolioID,
		FeedType:     raw.FeedType,
		RecordCount:  len(raw.Records),
		Status:       models.ProcessingInProgress,
		Source:       raw.Source,
		StartedAt:    time.Now().UTC(),
	}

	h := sha256.New()
	for i, record := range raw.Records {
		// Cancellation between records keeps partial state intact; the
		// feed is finalized with the progress actually made.
		if err := ctx.Err(); err != nil {
			break
		}

		if err := validateRecord(raw.FeedType, record); err != nil {
			feed.ErrorCount++
			pe := models.ProcessingError{
				RecordNumber: i + 1,
				Message:      err.Error(),
				Severity:     models.SeverityError,
				Resolved:     false,
			}
			var rve *models.RecordValidationError
			if asRecordError(err, &rve) {
				pe.Field = rve.Field
			}
			feed.Errors = append(feed.Errors, pe)
			continue
		}

		feed.ProcessedCount++
		if b, err := json.Marshal(record); err == nil {
			h.Write(b)
		}
	}

	feed.Checksum = hex.EncodeToString(h.Sum(nil))
	feed.CompletedAt = time.Now().UTC()
	switch {
	case feed.ProcessedCount+feed.ErrorCount < feed.RecordCount:
		// The loop was cut short; a truncated run is never a clean
		// completion.
		if feed.ProcessedCount > 0 {
			feed.Status = models.ProcessingPartialSuccess
		} else {
			feed.Status = models.ProcessingFailed
		}
	case feed.ErrorCount == 0:
		feed.Status = models.ProcessingCompleted
	case feed.ProcessedCount > 0:
		feed.Status = models.ProcessingPartialSuccess
	default:
		feed.Status = models.ProcessingFailed
	}

	if p.metrics != nil {
		p.metrics.RecordFeedProcessed(string(conn.CustodianType), string(raw.FeedType), string(feed.Status))
	}
	p.logger.Info("feed processed",
		xlogger.String("feed_id", feed.ID),
		xlogger.Int("processed", feed.ProcessedCount),
		xlogger.Int("errors", feed.ErrorCount),
		xlogger.String("status", string(feed.Status)))
	return feed, nil
}

func asRecordError(err error, target **models.RecordValidationError) bool {
	if rve, ok := err.(*models.RecordValidationError); ok {
		*target = rve
		return true
	}
	return false
}

func validateRecord(feedType models.FeedType, record map[string]interface{}) error {
	switch feedType {
	case models.FeedPositions:
		return requireFields(record, "account_number", "symbol", "quantity", "market_value")
	case models.FeedTransactions:
		return requireFields(record, "account_number", "transaction_id", "type")
	case models.FeedCashBalances:
		return requireFields(record, "account_number", "balance")
	case models.FeedSettlements:
		return requireFields(record, "account_number", "transaction_id", "amount")
	case models.FeedCorporateActions:
		return requireFields(record, "symbol", "action_type")
	default:
		return fmt.Errorf("unknown feed type %s", feedType)
	}
}

func requireFields(record map[string]interface{}, fields ...string) error {
	for _, f := range fields {
		v, ok := record[f]
		if !ok || v == nil {
			return &models.RecordValidationError{Field: f, Reason: "missing"}
		}
		if s, isStr := v.(string); isStr && s == "" {
			return &models.RecordValidationError{Field: f, Reason: "empty"}
		}
	}
	return nil
}

// Positions converts validated raw records into canonical positions.
// Records that fail conversion are skipped; validation already counted
// malformed records.
func Positions(raw *models.RawFeed) []models.PositionRecord {
	out := make([]models.PositionRecord, 0, len(raw.Records))
	for _, r := range raw.Records {
		if validateRecord(models.FeedPositions, r) != nil {
			continue
		}
		out = append(out, models.PositionRecord{
			AccountNumber: str(r["account_number"]),
			Symbol:        str(r["symbol"]),
			CUSIP:         str(r["cusip"]),
			Quantity:      num(r["quantity"]),
			Price:         num(r["price"]),
			MarketValue:   num(r["market_value"]),
		})
	}
	return out
}

// Transactions converts validated raw records into canonical transactions.
func Transactions(raw *models.RawFeed) []models.TransactionRecord {
	out := make([]models.TransactionRecord, 0, len(raw.Records))
	for _, r := range raw.Records {
		if validateRecord(models.FeedTransactions, r) != nil {
			continue
		}
		rec := models.TransactionRecord{
			AccountNumber: str(r["account_number"]),
			TransactionID: str(r["transaction_id"]),
			Symbol:        str(r["symbol"]),
			Type:          str(r["type"]),
			Quantity:      num(r["quantity"]),
			Price:         num(r["price"]),
		}
		if t, ok := r["trade_date"].(time.Time); ok {
			rec.TradeDate = t
		}
		out = append(out, rec)
	}
	return out
}

// CashBalances converts validated raw records into canonical balances.
func CashBalances(raw *models.RawFeed) []models.CashBalanceRecord {
	out := make([]models.CashBalanceRecord, 0, len(raw.Records))
	for _, r := range raw.Records {
		if validateRecord(models.FeedCashBalances, r) != nil {
			continue
		}
		out = append(out, models.CashBalanceRecord{
			AccountNumber: str(r["account_number"]),
			Currency:      str(r["currency"]),
			Balance:       num(r["balance"]),
		})
	}
	return out
}

func str(v interface{}) string {
	s, _ := v.(string)
	return s
}

func num(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case json.Number:
		f, _ := n.Float64()
		return f
	default:
		return 0
	}
}
