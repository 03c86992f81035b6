package pipeline

import (
	"context"
	"fmt"
	"testing"

	"CustodianSync/internal/domain/models"
	xlogger "CustodianSync/pkg/logger"
)

func testLogger(t *testing.T) *xlogger.Logger {
	t.Helper()
	l, err := xlogger.New(&xlogger.Config{Level: "error", Format: "console", Output: "stdout"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return l
}

func positionRecord(i int) map[string]interface{} {
	return map[string]interface{}{
		"account_number": fmt.Sprintf("ACC%07d", i),
		"symbol":         "AAPL",
		"quantity":       float64(i),
		"market_value":   float64(i) * 150,
	}
}

func TestProcessAndValidateIsolatesBadRecords(t *testing.T) {
	raw := &models.RawFeed{FeedType: models.FeedPositions, Source: "REST"}
	for i := 1; i <= 10; i++ {
		rec := positionRecord(i)
		if i == 5 {
			delete(rec, "market_value")
		}
		raw.Records = append(raw.Records, rec)
	}

	p := NewProcessor(testLogger(t), nil)
	feed, err := p.ProcessAndValidate(context.Background(), raw,
		&models.CustodianConnection{ID: "c1", TenantID: "t1", CustodianType: models.CustodianSchwab},
		&models.DataFeedRequest{FeedType: models.FeedPositions})
	if err != nil {
		t.Fatalf("process: %v", err)
	}

	if feed.ProcessedCount != 9 {
		t.Fatalf("processed = %d, want 9", feed.ProcessedCount)
	}
	if feed.ErrorCount != 1 {
		t.Fatalf("errors = %d, want 1", feed.ErrorCount)
	}
	if feed.Status != models.ProcessingPartialSuccess {
		t.Fatalf("status = %s", feed.Status)
	}
	if len(feed.Errors) != 1 {
		t.Fatalf("error entries = %d", len(feed.Errors))
	}
	if feed.Errors[0].RecordNumber != 5 {
		t.Fatalf("record number = %d, want 5", feed.Errors[0].RecordNumber)
	}
	if feed.Errors[0].Field != "market_value" {
		t.Fatalf("field = %q", feed.Errors[0].Field)
	}
}

func TestProcessAndValidateAllGood(t *testing.T) {
	raw := &models.RawFeed{FeedType: models.FeedPositions, Source: "SFTP"}
	for i := 1; i <= 3; i++ {
		raw.Records = append(raw.Records, positionRecord(i))
	}

	p := NewProcessor(testLogger(t), nil)
	feed, err := p.ProcessAndValidate(context.Background(), raw,
		&models.CustodianConnection{ID: "c1"}, &models.DataFeedRequest{})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if feed.Status != models.ProcessingCompleted {
		t.Fatalf("status = %s", feed.Status)
	}
	if feed.Checksum == "" {
		t.Fatalf("checksum empty")
	}
}

func TestProcessAndValidateAllBad(t *testing.T) {
	raw := &models.RawFeed{
		FeedType: models.FeedCashBalances,
		Records: []map[string]interface{}{
			{"account_number": "ACC1"},
			{"balance": 10.0},
		},
	}

	p := NewProcessor(testLogger(t), nil)
	feed, err := p.ProcessAndValidate(context.Background(), raw,
		&models.CustodianConnection{ID: "c1"}, &models.DataFeedRequest{})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if feed.Status != models.ProcessingFailed {
		t.Fatalf("status = %s", feed.Status)
	}
	if feed.ProcessedCount != 0 || feed.ErrorCount != 2 {
		t.Fatalf("processed=%d errors=%d", feed.ProcessedCount, feed.ErrorCount)
	}
}

// stopAfterContext reports cancellation once its budget of Err checks
// is spent, simulating a shutdown partway through a batch.
type stopAfterContext struct {
	context.Context
	remaining int
}

func (c *stopAfterContext) Err() error {
	if c.remaining <= 0 {
		return context.Canceled
	}
	c.remaining--
	return nil
}

func TestProcessAndValidateCancelledBeforeStart(t *testing.T) {
	raw := &models.RawFeed{FeedType: models.FeedPositions, Source: "REST"}
	for i := 1; i <= 10; i++ {
		raw.Records = append(raw.Records, positionRecord(i))
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := NewProcessor(testLogger(t), nil)
	feed, err := p.ProcessAndValidate(ctx, raw,
		&models.CustodianConnection{ID: "c1"}, &models.DataFeedRequest{})
	if err != nil {
		t.Fatalf("process: %v", err)
	}

	if feed.ProcessedCount != 0 || feed.ErrorCount != 0 {
		t.Fatalf("processed=%d errors=%d", feed.ProcessedCount, feed.ErrorCount)
	}
	if feed.Status != models.ProcessingFailed {
		t.Fatalf("status = %s, cancelled run reported as %s", feed.Status, feed.Status)
	}
	if feed.RecordCount != 10 {
		t.Fatalf("record count = %d", feed.RecordCount)
	}
}

func TestProcessAndValidateCancelledMidBatch(t *testing.T) {
	raw := &models.RawFeed{FeedType: models.FeedPositions, Source: "REST"}
	for i := 1; i <= 10; i++ {
		raw.Records = append(raw.Records, positionRecord(i))
	}

	ctx := &stopAfterContext{Context: context.Background(), remaining: 4}

	p := NewProcessor(testLogger(t), nil)
	feed, err := p.ProcessAndValidate(ctx, raw,
		&models.CustodianConnection{ID: "c1"}, &models.DataFeedRequest{})
	if err != nil {
		t.Fatalf("process: %v", err)
	}

	if feed.ProcessedCount != 4 {
		t.Fatalf("processed = %d, want 4", feed.ProcessedCount)
	}
	if feed.Status != models.ProcessingPartialSuccess {
		t.Fatalf("status = %s, want partial success for a truncated run", feed.Status)
	}
}

func TestPositionsConversionSkipsInvalid(t *testing.T) {
	raw := &models.RawFeed{
		FeedType: models.FeedPositions,
		Records: []map[string]interface{}{
			positionRecord(1),
			{"symbol": "MSFT"},
		},
	}
	got := Positions(raw)
	if len(got) != 1 {
		t.Fatalf("positions = %d, want 1", len(got))
	}
	if got[0].AccountNumber != "ACC0000001" || got[0].MarketValue != 150 {
		t.Fatalf("position = %+v", got[0])
	}
}

func TestValidateRecordEmptyString(t *testing.T) {
	err := validateRecord(models.FeedTransactions, map[string]interface{}{
		"account_number": "ACC1",
		"transaction_id": "",
		"type":           "BUY",
	})
	if err == nil {
		t.Fatalf("empty transaction_id accepted")
	}
	rve, ok := err.(*models.RecordValidationError)
	if !ok {
		t.Fatalf("error type %T", err)
	}
	if rve.Field != "transaction_id" {
		t.Fatalf("field = %q", rve.Field)
	}
}
