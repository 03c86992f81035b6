package models

import "time"

// MatchStatus classifies one reconciled record.
type MatchStatus string

const (
	Matched   MatchStatus = "MATCHED"
	Unmatched MatchStatus = "UNMATCHED"
)

// Discrepancy is one field-level difference between custodian and
// portfolio state.
type Discrepancy struct {
	Field           string  `json:"field"`
	Expected        float64 `json:"expected"`
	Actual          float64 `json:"actual"`
	Difference      float64 `json:"difference"`
	WithinTolerance bool    `json:"within_tolerance"`
}

// ReconciliationResult holds all discrepancies for one record key.
// Status is MATCHED iff every discrepancy is within tolerance.
type ReconciliationResult struct {
	RecordKey     string        `json:"record_key"`
	AccountNumber string        `json:"account_number"`
	Symbol        string        `json:"symbol,omitempty"`
	Discrepancies []Discrepancy `json:"discrepancies"`
	Status        MatchStatus   `json:"status"`
}

// AlertSeverity grades a reconciliation alert.
type AlertSeverity string

const (
	AlertHigh   AlertSeverity = "HIGH"
	AlertMedium AlertSeverity = "MEDIUM"
)

// ReconciliationAlert is raised for each material discrepancy.
type ReconciliationAlert struct {
	ID           string        `json:"id"`
	ConnectionID string        `json:"connection_id"`
	RecordKey    string        `json:"record_key"`
	Field        string        `json:"field"`
	Expected     float64       `json:"expected"`
	Actual       float64       `json:"actual"`
	Severity     AlertSeverity `json:"severity"`
	RaisedAt     time.Time     `json:"raised_at"`
}

// ReconciliationSummary is derived once per run and never mutated.
type ReconciliationSummary struct {
	RunID             string                 `json:"run_id"`
	ConnectionID      string                 `json:"connection_id"`
	PortfolioID       string                 `json:"portfolio_id"`
	FeedType          FeedType               `json:"feed_type"`
	TotalRecords      int                    `json:"total_records"`
	MatchedRecords    int                    `json:"matched_records"`
	UnmatchedRecords  int                    `json:"unmatched_records"`
	MaterialCount     int                    `json:"material_count"`
	ReconciledValue   float64                `json:"reconciled_value"`
	DiscrepancyAmount float64                `json:"discrepancy_amount"`
	AccuracyPct       float64                `json:"accuracy_pct"`
	Results           []ReconciliationResult `json:"results,omitempty"`
	Alerts            []ReconciliationAlert  `json:"alerts,omitempty"`
	CompletedAt       time.Time              `json:"completed_at"`
}
