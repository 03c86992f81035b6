package adapter

import (
	"context"
	"time"

	"CustodianSync/internal/domain/models"
)

// HybridAdapter serves custodians that expose multiple transports
// (Pershing-style). Every operation dispatches on the connection's
// declared type; validation enforces the type-specific required fields.
type HybridAdapter struct {
	rest *RestAdapter
	sftp *SftpAdapter
	ftp  *FtpAdapter
}

// NewHybridAdapter creates a hybrid REST/SFTP/FTP adapter.
func NewHybridAdapter(opts *Options) *HybridAdapter {
	return &HybridAdapter{
		rest: NewRestAdapter(opts),
		sftp: NewSftpAdapter(opts),
		ftp:  NewFtpAdapter(opts),
	}
}

func (a *HybridAdapter) variant(conn *models.CustodianConnection) (CustodianAdapter, error) {
	switch conn.ConnectionType {
	case models.ConnectionREST:
		return a.rest, nil
	case models.ConnectionSFTP:
		return a.sftp, nil
	case models.ConnectionFTP:
		return a.ftp, nil
	default:
		return nil, &models.RetrievalError{ConnectionType: conn.ConnectionType, Reason: "unsupported connection type"}
	}
}

// ValidateConfig branches on the declared connection type.
func (a *HybridAdapter) ValidateConfig(conn *models.CustodianConnection) error {
	v, err := a.variant(conn)
	if err != nil {
		return models.NewConfigurationError("connection_type", "unsupported connection type "+string(conn.ConnectionType))
	}
	return v.ValidateConfig(conn)
}

// TestConnection delegates to the matching transport's battery.
func (a *HybridAdapter) TestConnection(ctx context.Context, conn *models.CustodianConnection) ([]models.ConnectionTestResult, error) {
	v, err := a.variant(conn)
	if err != nil {
		return nil, err
	}
	return v.TestConnection(ctx, conn)
}

// RetrieveData delegates to the matching transport.
func (a *HybridAdapter) RetrieveData(ctx context.Context, conn *models.CustodianConnection, req *models.DataFeedRequest) (*models.RawFeed, error) {
	v, err := a.variant(conn)
	if err != nil {
		return nil, err
	}
	return v.RetrieveData(ctx, conn, req)
}

// SubmitOrders delegates to the matching transport.
func (a *HybridAdapter) SubmitOrders(ctx context.Context, conn *models.CustodianConnection, batch *models.OrderBatchRequest) (*models.OrderSubmissionResult, error) {
	v, err := a.variant(conn)
	if err != nil {
		return nil, err
	}
	return v.SubmitOrders(ctx, conn, batch)
}

// RetrieveDocuments delegates to the matching transport.
func (a *HybridAdapter) RetrieveDocuments(ctx context.Context, conn *models.CustodianConnection, from, to time.Time) ([]models.Document, error) {
	v, err := a.variant(conn)
	if err != nil {
		return nil, err
	}
	return v.RetrieveDocuments(ctx, conn, from, to)
}

// HealthCheck delegates to the matching transport.
func (a *HybridAdapter) HealthCheck(ctx context.Context, conn *models.CustodianConnection) (bool, error) {
	v, err := a.variant(conn)
	if err != nil {
		return false, err
	}
	return v.HealthCheck(ctx, conn)
}
