package recon

import (
	"context"
	"sync"
	"testing"
	"time"

	"CustodianSync/internal/domain/models"
	xlogger "CustodianSync/pkg/logger"
)

type fakePortfolio struct {
	positions    []models.PositionRecord
	transactions []models.TransactionRecord
	balances     []models.CashBalanceRecord
}

func (f *fakePortfolio) Positions(ctx context.Context, portfolioID string) ([]models.PositionRecord, error) {
	return f.positions, nil
}

func (f *fakePortfolio) Transactions(ctx context.Context, portfolioID string, from, to time.Time) ([]models.TransactionRecord, error) {
	return f.transactions, nil
}

func (f *fakePortfolio) CashBalances(ctx context.Context, portfolioID string) ([]models.CashBalanceRecord, error) {
	return f.balances, nil
}

type capturePublisher struct {
	mu     sync.Mutex
	topics []string
	events []interface{}
}

func (p *capturePublisher) Publish(ctx context.Context, topic string, payload interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	p.events = append(p.events, payload)
	return nil
}

func (p *capturePublisher) Close() error { return nil }

func testLogger(t *testing.T) *xlogger.Logger {
	t.Helper()
	l, err := xlogger.New(&xlogger.Config{Level: "error", Format: "console", Output: "stdout"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return l
}

func positionsFeed(records ...map[string]interface{}) *models.RawFeed {
	return &models.RawFeed{FeedType: models.FeedPositions, Source: "REST", Records: records}
}

func custodianPosition(account, symbol string, qty, price, mv float64) map[string]interface{} {
	return map[string]interface{}{
		"account_number": account,
		"symbol":         symbol,
		"quantity":       qty,
		"price":          price,
		"market_value":   mv,
	}
}

func TestReconcilePositionsAllMatched(t *testing.T) {
	portfolio := &fakePortfolio{positions: []models.PositionRecord{
		{AccountNumber: "ACC1", Symbol: "AAPL", Quantity: 100, Price: 150, MarketValue: 15000},
	}}
	pub := &capturePublisher{}
	e := NewEngine(portfolio, DefaultTolerances(), pub, testLogger(t), nil)

	summary, err := e.Reconcile(context.Background(),
		&models.CustodianConnection{ID: "c1", CustodianType: models.CustodianSchwab},
		&models.DataFeedRequest{PortfolioID: "p1"},
		positionsFeed(custodianPosition("ACC1", "AAPL", 100, 150, 15000)))
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}

	if summary.TotalRecords != 1 || summary.MatchedRecords != 1 || summary.UnmatchedRecords != 0 {
		t.Fatalf("summary = %+v", summary)
	}
	if summary.AccuracyPct != 100 {
		t.Fatalf("accuracy = %v", summary.AccuracyPct)
	}
	if len(summary.Alerts) != 0 {
		t.Fatalf("alerts = %d", len(summary.Alerts))
	}
	if len(pub.topics) != 1 || pub.topics[0] != models.TopicReconciliationCompleted {
		t.Fatalf("topics = %v", pub.topics)
	}
}

func TestReconcilePositionsWithinToleranceBand(t *testing.T) {
	// 10 bps on 15000 allows a 15.00 market value band.
	portfolio := &fakePortfolio{positions: []models.PositionRecord{
		{AccountNumber: "ACC1", Symbol: "AAPL", Quantity: 100, Price: 150, MarketValue: 15010},
	}}
	e := NewEngine(portfolio, DefaultTolerances(), nil, testLogger(t), nil)

	summary, err := e.Reconcile(context.Background(),
		&models.CustodianConnection{ID: "c1"},
		&models.DataFeedRequest{PortfolioID: "p1"},
		positionsFeed(custodianPosition("ACC1", "AAPL", 100, 150, 15000)))
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if summary.MatchedRecords != 1 {
		t.Fatalf("10 bps drift should match, summary = %+v", summary)
	}
}

func TestReconcilePositionsMaterialDiscrepancy(t *testing.T) {
	portfolio := &fakePortfolio{positions: []models.PositionRecord{
		{AccountNumber: "ACC1", Symbol: "AAPL", Quantity: 100, Price: 150, MarketValue: 15500},
	}}
	e := NewEngine(portfolio, DefaultTolerances(), nil, testLogger(t), nil)

	summary, err := e.Reconcile(context.Background(),
		&models.CustodianConnection{ID: "c1"},
		&models.DataFeedRequest{PortfolioID: "p1"},
		positionsFeed(custodianPosition("ACC1", "AAPL", 100, 150, 15000)))
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}

	if summary.UnmatchedRecords != 1 || summary.MaterialCount != 1 {
		t.Fatalf("summary = %+v", summary)
	}
	if len(summary.Alerts) != 1 {
		t.Fatalf("alerts = %d, want 1", len(summary.Alerts))
	}
	alert := summary.Alerts[0]
	if alert.Field != "market_value" || alert.Severity != models.AlertHigh {
		t.Fatalf("alert = %+v", alert)
	}
	if alert.ID == "" {
		t.Fatalf("alert without id")
	}
}

func TestReconcilePositionsOrphansBothSides(t *testing.T) {
	portfolio := &fakePortfolio{positions: []models.PositionRecord{
		{AccountNumber: "ACC1", Symbol: "AAPL", Quantity: 100, Price: 150, MarketValue: 15000},
		{AccountNumber: "ACC1", Symbol: "VTI", Quantity: 10, Price: 250, MarketValue: 2500},
	}}
	e := NewEngine(portfolio, DefaultTolerances(), nil, testLogger(t), nil)

	summary, err := e.Reconcile(context.Background(),
		&models.CustodianConnection{ID: "c1"},
		&models.DataFeedRequest{PortfolioID: "p1"},
		positionsFeed(
			custodianPosition("ACC1", "AAPL", 100, 150, 15000),
			custodianPosition("ACC1", "MSFT", 5, 410, 2050),
		))
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}

	// AAPL matches; MSFT is custodian-only; VTI is internal-only.
	if summary.TotalRecords != 3 {
		t.Fatalf("total = %d, want 3", summary.TotalRecords)
	}
	if summary.MatchedRecords != 1 || summary.UnmatchedRecords != 2 {
		t.Fatalf("summary = %+v", summary)
	}

	fields := map[string]bool{}
	for _, res := range summary.Results {
		for _, d := range res.Discrepancies {
			fields[d.Field] = true
		}
	}
	if !fields["missing_internal"] || !fields["missing_custodian"] {
		t.Fatalf("discrepancy fields = %v", fields)
	}
}

func TestReconcileDeterministicAcrossRuns(t *testing.T) {
	portfolio := &fakePortfolio{positions: []models.PositionRecord{
		{AccountNumber: "ACC1", Symbol: "AAPL", Quantity: 100, Price: 150, MarketValue: 15000},
		{AccountNumber: "ACC2", Symbol: "MSFT", Quantity: 5, Price: 410, MarketValue: 2050},
	}}
	e := NewEngine(portfolio, DefaultTolerances(), nil, testLogger(t), nil)
	feed := positionsFeed(custodianPosition("ACC1", "AAPL", 100, 150, 15000))

	first, err := e.Reconcile(context.Background(), &models.CustodianConnection{ID: "c1"}, &models.DataFeedRequest{PortfolioID: "p1"}, feed)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	second, err := e.Reconcile(context.Background(), &models.CustodianConnection{ID: "c1"}, &models.DataFeedRequest{PortfolioID: "p1"}, feed)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}

	if first.MatchedRecords != second.MatchedRecords ||
		first.UnmatchedRecords != second.UnmatchedRecords ||
		first.DiscrepancyAmount != second.DiscrepancyAmount {
		t.Fatalf("runs diverged: %+v vs %+v", first, second)
	}
	if first.RunID == second.RunID {
		t.Fatalf("run ids must be unique")
	}
}

func TestReconcileCashAbsoluteBand(t *testing.T) {
	portfolio := &fakePortfolio{balances: []models.CashBalanceRecord{
		{AccountNumber: "ACC1", Currency: "USD", Balance: 1000.005},
		{AccountNumber: "ACC1", Currency: "EUR", Balance: 510},
	}}
	e := NewEngine(portfolio, DefaultTolerances(), nil, testLogger(t), nil)

	feed := &models.RawFeed{
		FeedType: models.FeedCashBalances,
		Records: []map[string]interface{}{
			{"account_number": "ACC1", "currency": "USD", "balance": 1000.0},
			{"account_number": "ACC1", "currency": "EUR", "balance": 500.0},
		},
	}
	summary, err := e.Reconcile(context.Background(),
		&models.CustodianConnection{ID: "c1"},
		&models.DataFeedRequest{PortfolioID: "p1"}, feed)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}

	if summary.MatchedRecords != 1 || summary.UnmatchedRecords != 1 {
		t.Fatalf("summary = %+v", summary)
	}
}

func TestReconcileTransactionsByID(t *testing.T) {
	portfolio := &fakePortfolio{transactions: []models.TransactionRecord{
		{AccountNumber: "ACC1", TransactionID: "T1", Quantity: 10, Price: 100},
	}}
	e := NewEngine(portfolio, DefaultTolerances(), nil, testLogger(t), nil)

	feed := &models.RawFeed{
		FeedType: models.FeedTransactions,
		Records: []map[string]interface{}{
			{"account_number": "ACC1", "transaction_id": "T1", "type": "BUY", "quantity": 10.0, "price": 100.0},
			{"account_number": "ACC1", "transaction_id": "T2", "type": "SELL", "quantity": 5.0, "price": 50.0},
		},
	}
	summary, err := e.Reconcile(context.Background(),
		&models.CustodianConnection{ID: "c1"},
		&models.DataFeedRequest{PortfolioID: "p1"}, feed)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}

	if summary.MatchedRecords != 1 || summary.UnmatchedRecords != 1 {
		t.Fatalf("summary = %+v", summary)
	}
	if summary.DiscrepancyAmount != 250 {
		t.Fatalf("discrepancy = %v, want 250", summary.DiscrepancyAmount)
	}
}

func TestReconcileUnsupportedFeedType(t *testing.T) {
	e := NewEngine(&fakePortfolio{}, DefaultTolerances(), nil, testLogger(t), nil)
	_, err := e.Reconcile(context.Background(),
		&models.CustodianConnection{ID: "c1"},
		&models.DataFeedRequest{},
		&models.RawFeed{FeedType: models.FeedSettlements})
	if err == nil {
		t.Fatalf("expected error for unsupported feed type")
	}
}

func TestToleranceQuantityExact(t *testing.T) {
	tol := DefaultTolerances()
	d := tol.Check("quantity", FieldQuantity, 100, 100.000001)
	if d.WithinTolerance {
		t.Fatalf("exact quantity must reject any drift")
	}

	tol.QuantityExact = false
	d = tol.Check("quantity", FieldQuantity, 100, 100.0000005)
	if !d.WithinTolerance {
		t.Fatalf("sub-epsilon drift should pass when not exact")
	}
}

func TestTolerancePriceBps(t *testing.T) {
	tol := DefaultTolerances() // 5 bps on price
	if d := tol.Check("price", FieldPrice, 200, 200.09); !d.WithinTolerance {
		t.Fatalf("9 cents on 200 is inside 5 bps")
	}
	if d := tol.Check("price", FieldPrice, 200, 200.11); d.WithinTolerance {
		t.Fatalf("11 cents on 200 is outside 5 bps")
	}
}
