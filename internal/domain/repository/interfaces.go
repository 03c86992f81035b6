package repository

import (
	"context"
	"time"

	"CustodianSync/internal/domain/models"
)

// EventPublisher is the external pub/sub boundary. Delivery semantics of
// the bus itself are out of scope.
type EventPublisher interface {
	Publish(ctx context.Context, topic string, payload interface{}) error
	Close() error
}

// ConnectionStore is the persistent side of the connection registry.
type ConnectionStore interface {
	Save(ctx context.Context, conn *models.CustodianConnection) error
	Get(ctx context.Context, id string) (*models.CustodianConnection, error)
	List(ctx context.Context, tenantID string) ([]*models.CustodianConnection, error)
	Close() error
}

// FeedStore persists processed feeds, reconciliation summaries and
// correlation analyses (append-only).
type FeedStore interface {
	Init(ctx context.Context) error
	StoreFeed(ctx context.Context, feed *models.ProcessedFeed) error
	StoreSummary(ctx context.Context, summary *models.ReconciliationSummary) error
	GetSummary(ctx context.Context, runID string) (*models.ReconciliationSummary, error)
	StoreAnalyses(ctx context.Context, analyses []models.CorrelationAnalysis) error
	Health(ctx context.Context) error
	Close() error
}

// PortfolioSource supplies the internal side of a reconciliation run.
type PortfolioSource interface {
	Positions(ctx context.Context, portfolioID string) ([]models.PositionRecord, error)
	Transactions(ctx context.Context, portfolioID string, from, to time.Time) ([]models.TransactionRecord, error)
	CashBalances(ctx context.Context, portfolioID string) ([]models.CashBalanceRecord, error)
}

// MetricStream is a live source of performance metric samples.
type MetricStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context) error
	Read(ctx context.Context) (<-chan *models.MetricSample, <-chan error)
	Reconnect(ctx context.Context) error
	Close() error
	IsConnected() bool
}

// EncryptedField is the cipher boundary's wire shape.
type EncryptedField struct {
	CipherText string `json:"cipher_text"`
	IV         string `json:"iv"`
	Tag        string `json:"tag"`
	Salt       string `json:"salt"`
}

// FieldCipher encrypts and decrypts sensitive values through an external
// collaborator. The engine never implements cryptography itself.
type FieldCipher interface {
	EncryptField(ctx context.Context, plaintext string) (*EncryptedField, error)
	DecryptField(ctx context.Context, field *EncryptedField) (string, error)
}

// Metrics records operational measurements.
type Metrics interface {
	RecordFeedProcessed(custodian, feedType, status string)
	RecordReconciliation(custodian string, matched, unmatched int)
	RecordDiscrepancy(custodian, field string)
	RecordRetry(op string)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}
