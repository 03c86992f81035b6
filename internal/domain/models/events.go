package models

import "time"

// Event topics published to the external bus.
const (
	TopicConnectionCreated       = "custodian.connection.created"
	TopicFeedProcessed           = "custodian.feed.processed"
	TopicReconciliationCompleted = "custodian.reconciliation.completed"
	TopicOrdersSubmitted         = "custodian.orders.submitted"
	TopicDocumentsRetrieved      = "custodian.documents.retrieved"
	TopicCorrelationAnomaly      = "custodian.correlation.anomaly"
)

type ConnectionCreatedEvent struct {
	ConnectionID  string        `json:"connection_id"`
	TenantID      string        `json:"tenant_id"`
	CustodianType CustodianType `json:"custodian_type"`
	CreatedAt     time.Time     `json:"created_at"`
}

type FeedProcessedEvent struct {
	FeedID         string           `json:"feed_id"`
	ConnectionID   string           `json:"connection_id"`
	FeedType       FeedType         `json:"feed_type"`
	RecordCount    int              `json:"record_count"`
	ProcessedCount int              `json:"processed_count"`
	ErrorCount     int              `json:"error_count"`
	Status         ProcessingStatus `json:"status"`
	CompletedAt    time.Time        `json:"completed_at"`
}

type ReconciliationCompletedEvent struct {
	RunID            string    `json:"run_id"`
	ConnectionID     string    `json:"connection_id"`
	TotalRecords     int       `json:"total_records"`
	MatchedRecords   int       `json:"matched_records"`
	UnmatchedRecords int       `json:"unmatched_records"`
	MaterialCount    int       `json:"material_count"`
	AccuracyPct      float64   `json:"accuracy_pct"`
	CompletedAt      time.Time `json:"completed_at"`
}

type OrdersSubmittedEvent struct {
	ConnectionID   string           `json:"connection_id"`
	SubmittedCount int              `json:"submitted_count"`
	RejectedCount  int              `json:"rejected_count"`
	Status         SubmissionStatus `json:"status"`
	SubmittedAt    time.Time        `json:"submitted_at"`
}

type DocumentsRetrievedEvent struct {
	ConnectionID string    `json:"connection_id"`
	Count        int       `json:"count"`
	RetrievedAt  time.Time `json:"retrieved_at"`
}
