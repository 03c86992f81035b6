package models

// Requests for engine HTTP endpoints. Defined in domain for consistency and reuse.

type CreateConnectionRequest struct {
	TenantID       string           `json:"tenant_id" validate:"required"`
	CustodianType  CustodianType    `json:"custodian_type" validate:"required,oneof=SCHWAB FIDELITY PERSHING"`
	CustodianName  string           `json:"custodian_name" validate:"required"`
	CustodianCode  string           `json:"custodian_code" validate:"required"`
	ConnectionType ConnectionType   `json:"connection_type" validate:"required,oneof=REST_API SFTP FTP"`
	Config         ConnectionConfig `json:"connection_config" validate:"required"`
	Features       []string         `json:"supported_features"`
	RateLimits     RateLimits       `json:"rate_limits"`
}

type ReconciliationRunRequest struct {
	ConnectionID  string   `json:"connection_id" validate:"required"`
	PortfolioID   string   `json:"portfolio_id" validate:"required"`
	FeedType      FeedType `json:"feed_type" default:"POSITIONS" validate:"oneof=POSITIONS TRANSACTIONS CASH_BALANCES"`
	AccountNumber string   `json:"account_number"`
	DateFrom      string   `json:"date_from" validate:"required"`
	DateTo        string   `json:"date_to" validate:"required"`
}

type AnalyzeProfileRequest struct {
	ProfileID string               `json:"profile_id" validate:"required"`
	Metrics   map[string][]float64 `json:"metrics" validate:"required,min=2"`
	WithLags  bool                 `json:"with_lags" default:"true"`
}

type SubmitOrdersRequest struct {
	ConnectionID string  `json:"connection_id" validate:"required"`
	PortfolioID  string  `json:"portfolio_id" validate:"required"`
	Orders       []Order `json:"orders" validate:"required,min=1,dive"`
}
