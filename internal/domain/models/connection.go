package models

import "time"

// CustodianType identifies an external custodian institution.
type CustodianType string

const (
	CustodianSchwab   CustodianType = "SCHWAB"
	CustodianFidelity CustodianType = "FIDELITY"
	CustodianPershing CustodianType = "PERSHING"
)

// ConnectionType is the transport used to talk to a custodian.
type ConnectionType string

const (
	ConnectionREST ConnectionType = "REST_API"
	ConnectionSFTP ConnectionType = "SFTP"
	ConnectionFTP  ConnectionType = "FTP"
)

// ConnectionStatus tracks connection health.
type ConnectionStatus string

const (
	StatusConnected    ConnectionStatus = "CONNECTED"
	StatusError        ConnectionStatus = "ERROR"
	StatusDisconnected ConnectionStatus = "DISCONNECTED"
)

// AuthConfig holds custodian credentials. Sensitive fields are encrypted
// at the cipher boundary before the connection is persisted.
type AuthConfig struct {
	ClientID     string `json:"client_id" yaml:"client_id"`
	ClientSecret string `json:"client_secret" yaml:"client_secret"`
	Username     string `json:"username,omitempty" yaml:"username"`
	Password     string `json:"password,omitempty" yaml:"password"`
	TokenURL     string `json:"token_url,omitempty" yaml:"token_url"`
}

// EndpointConfig holds the REST endpoint set for a custodian.
type EndpointConfig struct {
	BaseURL      string `json:"base_url" yaml:"base_url"`
	Positions    string `json:"positions,omitempty" yaml:"positions"`
	Transactions string `json:"transactions,omitempty" yaml:"transactions"`
	CashBalances string `json:"cash_balances,omitempty" yaml:"cash_balances"`
	Orders       string `json:"orders,omitempty" yaml:"orders"`
	Documents    string `json:"documents,omitempty" yaml:"documents"`
}

// FileTransferConfig holds SFTP/FTP parameters.
type FileTransferConfig struct {
	Host       string `json:"host" yaml:"host"`
	Port       int    `json:"port" yaml:"port"`
	Directory  string `json:"directory" yaml:"directory"`
	PrivateKey string `json:"private_key,omitempty" yaml:"private_key"`
}

// ConnectionConfig is the validated, strongly-typed connection configuration.
type ConnectionConfig struct {
	Authentication AuthConfig         `json:"authentication" yaml:"authentication"`
	Endpoints      EndpointConfig     `json:"endpoints" yaml:"endpoints"`
	FileTransfer   FileTransferConfig `json:"file_transfer,omitempty" yaml:"file_transfer"`
	DataMapping    map[string]string  `json:"data_mapping" yaml:"data_mapping"`
}

// RateLimits declares the custodian's request budget.
type RateLimits struct {
	RequestsPerMinute int `json:"requests_per_minute"`
	BurstLimit        int `json:"burst_limit"`
}

// ConnectionErrorEntry is a timestamped entry in the bounded error log.
type ConnectionErrorEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
}

// MaxErrorLogEntries bounds the per-connection error log.
const MaxErrorLogEntries = 50

// CustodianConnection is the registry-owned connection record.
// It is never deleted; deactivation flips IsActive.
type CustodianConnection struct {
	ID                string                 `json:"id"`
	TenantID          string                 `json:"tenant_id"`
	CustodianType     CustodianType          `json:"custodian_type"`
	CustodianName     string                 `json:"custodian_name"`
	CustodianCode     string                 `json:"custodian_code"`
	ConnectionType    ConnectionType         `json:"connection_type"`
	Config            ConnectionConfig       `json:"connection_config"`
	Status            ConnectionStatus       `json:"status"`
	RetryCount        int                    `json:"retry_count"`
	ErrorLog          []ConnectionErrorEntry `json:"error_log,omitempty"`
	SupportedFeatures []string               `json:"supported_features,omitempty"`
	RateLimits        RateLimits             `json:"rate_limits"`
	IsActive          bool                   `json:"is_active"`
	CreatedAt         time.Time              `json:"created_at"`
	UpdatedAt         time.Time              `json:"updated_at"`
}

// AppendError appends to the bounded error log, dropping the oldest entry
// once the cap is reached.
func (c *CustodianConnection) AppendError(at time.Time, msg string) {
	c.ErrorLog = append(c.ErrorLog, ConnectionErrorEntry{Timestamp: at, Message: msg})
	if len(c.ErrorLog) > MaxErrorLogEntries {
		c.ErrorLog = c.ErrorLog[len(c.ErrorLog)-MaxErrorLogEntries:]
	}
}

// ConnectionTestResult is one stage of the connection test battery.
type ConnectionTestResult struct {
	TestType       string `json:"test_type"`
	Success        bool   `json:"success"`
	ResponseTimeMs int64  `json:"response_time_ms"`
	Details        string `json:"details,omitempty"`
	ErrorMessage   string `json:"error_message,omitempty"`
}

// AllPassed reports whether every stage of the battery succeeded.
func AllPassed(results []ConnectionTestResult) bool {
	if len(results) == 0 {
		return false
	}
	for _, r := range results {
		if !r.Success {
			return false
		}
	}
	return true
}
