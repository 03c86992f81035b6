package models

import "time"

// OrderSide is buy or sell.
type OrderSide string

const (
	OrderBuy  OrderSide = "BUY"
	OrderSell OrderSide = "SELL"
)

// Order is one order to submit to a custodian.
type Order struct {
	OrderID       string    `json:"order_id"`
	AccountNumber string    `json:"account_number"`
	Symbol        string    `json:"symbol"`
	Side          OrderSide `json:"side"`
	Quantity      float64   `json:"quantity"`
	LimitPrice    float64   `json:"limit_price,omitempty"`
	OrderType     string    `json:"order_type"` // MARKET, LIMIT
}

// OrderBatchRequest submits a batch of orders for one connection.
type OrderBatchRequest struct {
	PortfolioID string  `json:"portfolio_id"`
	Orders      []Order `json:"orders"`
}

// SubmissionStatus aggregates per-order outcomes.
type SubmissionStatus string

const (
	SubmissionSuccess        SubmissionStatus = "SUCCESS"
	SubmissionPartialSuccess SubmissionStatus = "PARTIAL_SUCCESS"
	SubmissionFailed         SubmissionStatus = "FAILED"
)

// OrderRejection records one failed order inside a batch.
type OrderRejection struct {
	OrderID string `json:"order_id"`
	Reason  string `json:"reason"`
}

// OrderSubmissionResult is the per-batch outcome. One order failing never
// aborts the batch; it is recorded here as a rejection.
type OrderSubmissionResult struct {
	Status         SubmissionStatus `json:"status"`
	SubmittedCount int              `json:"submitted_count"`
	RejectedCount  int              `json:"rejected_count"`
	Rejections     []OrderRejection `json:"rejections,omitempty"`
	SubmittedAt    time.Time        `json:"submitted_at"`
}

// AggregateStatus derives the batch status from per-order outcomes.
func (r *OrderSubmissionResult) AggregateStatus() SubmissionStatus {
	switch {
	case r.SubmittedCount > 0 && r.RejectedCount == 0:
		return SubmissionSuccess
	case r.SubmittedCount > 0:
		return SubmissionPartialSuccess
	default:
		return SubmissionFailed
	}
}

// Document describes a custodian-hosted document.
type Document struct {
	DocumentID  string    `json:"document_id"`
	FileName    string    `json:"file_name"`
	Size        int64     `json:"size"`
	Date        time.Time `json:"date"`
	DownloadURL string    `json:"download_url"`
	Expiry      time.Time `json:"expiry"`
}
