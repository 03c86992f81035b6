package models

import "time"

// FeedType is the category of data retrieved from a custodian.
type FeedType string

const (
	FeedPositions        FeedType = "POSITIONS"
	FeedTransactions     FeedType = "TRANSACTIONS"
	FeedCashBalances     FeedType = "CASH_BALANCES"
	FeedCorporateActions FeedType = "CORPORATE_ACTIONS"
	FeedSettlements      FeedType = "SETTLEMENTS"
)

// DataFeedRequest describes a single retrieval call. Transient.
type DataFeedRequest struct {
	FeedType      FeedType  `json:"feed_type"`
	AccountNumber string    `json:"account_number,omitempty"`
	DateFrom      time.Time `json:"date_from"`
	DateTo        time.Time `json:"date_to"`
	PortfolioID   string    `json:"portfolio_id"`
}

// PositionRecord is the canonical position schema.
type PositionRecord struct {
	AccountNumber string  `json:"account_number"`
	Symbol        string  `json:"symbol"`
	CUSIP         string  `json:"cusip,omitempty"`
	Quantity      float64 `json:"quantity"`
	Price         float64 `json:"price"`
	MarketValue   float64 `json:"market_value"`
}

// TransactionRecord is the canonical transaction schema.
type TransactionRecord struct {
	AccountNumber string    `json:"account_number"`
	TransactionID string    `json:"transaction_id"`
	Symbol        string    `json:"symbol"`
	Type          string    `json:"type"`
	Quantity      float64   `json:"quantity"`
	Price         float64   `json:"price"`
	TradeDate     time.Time `json:"trade_date"`
}

// CashBalanceRecord is the canonical cash balance schema.
type CashBalanceRecord struct {
	AccountNumber string  `json:"account_number"`
	Currency      string  `json:"currency"`
	Balance       float64 `json:"balance"`
}

// RawFeed is the adapter output before pipeline normalization.
type RawFeed struct {
	FeedType    FeedType                 `json:"feed_type"`
	Records     []map[string]interface{} `json:"records"`
	RecordCount int                      `json:"record_count"`
	Source      string                   `json:"source"` // REST, SFTP, FTP
	RetrievedAt time.Time                `json:"retrieved_at"`
}

// ProcessingStatus is the final state of a ProcessedFeed.
type ProcessingStatus string

const (
	ProcessingInProgress     ProcessingStatus = "PROCESSING"
	ProcessingCompleted      ProcessingStatus = "COMPLETED"
	ProcessingPartialSuccess ProcessingStatus = "PARTIAL_SUCCESS"
	ProcessingFailed         ProcessingStatus = "FAILED"
)

// ErrorSeverity grades a per-record processing error.
type ErrorSeverity string

const (
	SeverityWarning ErrorSeverity = "WARNING"
	SeverityError   ErrorSeverity = "ERROR"
)

// ProcessingError records one failed record inside a feed.
type ProcessingError struct {
	RecordNumber int           `json:"record_number"`
	Field        string        `json:"field,omitempty"`
	Message      string        `json:"message"`
	Severity     ErrorSeverity `json:"severity"`
	Resolved     bool          `json:"resolved"`
}

// ProcessedFeed is the pipeline-owned ingestion record.
type ProcessedFeed struct {
	ID             string            `json:"id"`
	ConnectionID   string            `json:"connection_id"`
	TenantID       string            `json:"tenant_id"`
	PortfolioID    string            `json:"portfolio_id"`
	FeedType       FeedType          `json:"feed_type"`
	RecordCount    int               `json:"record_count"`
	ProcessedCount int               `json:"processed_count"`
	ErrorCount     int               `json:"error_count"`
	Errors         []ProcessingError `json:"errors,omitempty"`
	Status         ProcessingStatus  `json:"status"`
	Checksum       string            `json:"checksum"`
	Source         string            `json:"source"`
	StartedAt      time.Time         `json:"started_at"`
	CompletedAt    time.Time         `json:"completed_at"`
}
