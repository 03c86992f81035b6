package adapter

import (
	"context"
	"time"

	"CustodianSync/internal/domain/models"
)

// FtpAdapter is the degraded FTP path. Custodians on plain FTP only
// support connectivity checks today; data retrieval returns an empty
// well-formed feed rather than failing.
type FtpAdapter struct {
	opts *Options
}

// NewFtpAdapter creates an FTP custodian adapter.
func NewFtpAdapter(opts *Options) *FtpAdapter {
	return &FtpAdapter{opts: opts.withDefaults()}
}

// ValidateConfig requires host and directory.
func (a *FtpAdapter) ValidateConfig(conn *models.CustodianConnection) error {
	ft := conn.Config.FileTransfer
	if ft.Host == "" {
		return models.NewConfigurationError("file_transfer.host", "required for FTP connections")
	}
	if ft.Directory == "" {
		return models.NewConfigurationError("file_transfer.directory", "required for FTP connections")
	}
	return nil
}

// RetrieveData returns an empty well-formed result.
func (a *FtpAdapter) RetrieveData(ctx context.Context, conn *models.CustodianConnection, req *models.DataFeedRequest) (*models.RawFeed, error) {
	return &models.RawFeed{
		FeedType:    req.FeedType,
		Records:     []map[string]interface{}{},
		RecordCount: 0,
		Source:      "FTP",
		RetrievedAt: time.Now().UTC(),
	}, nil
}

// SubmitOrders is not supported over FTP.
func (a *FtpAdapter) SubmitOrders(ctx context.Context, conn *models.CustodianConnection, batch *models.OrderBatchRequest) (*models.OrderSubmissionResult, error) {
	return nil, &models.RetrievalError{ConnectionType: models.ConnectionFTP, Reason: "order submission not supported over FTP"}
}

// RetrieveDocuments returns an empty list.
func (a *FtpAdapter) RetrieveDocuments(ctx context.Context, conn *models.CustodianConnection, from, to time.Time) ([]models.Document, error) {
	return []models.Document{}, nil
}

// HealthCheck connects, lists the directory, and disconnects.
func (a *FtpAdapter) HealthCheck(ctx context.Context, conn *models.CustodianConnection) (bool, error) {
	client := a.opts.DialFTP(conn.Config.FileTransfer, conn.Config.Authentication, a.opts.SftpTimeout)
	if err := client.Connect(ctx); err != nil {
		return false, err
	}
	defer client.Close()

	if _, err := client.List(ctx, conn.Config.FileTransfer.Directory); err != nil {
		return false, err
	}
	return true, nil
}

// TestConnection verifies connect and directory listing.
func (a *FtpAdapter) TestConnection(ctx context.Context, conn *models.CustodianConnection) ([]models.ConnectionTestResult, error) {
	if err := a.ValidateConfig(conn); err != nil {
		return nil, err
	}

	client := a.opts.DialFTP(conn.Config.FileTransfer, conn.Config.Authentication, a.opts.SftpTimeout)
	results := make([]models.ConnectionTestResult, 0, 2)

	results = append(results, runStage("connect", func() error {
		return client.Connect(ctx)
	}))
	if !results[0].Success {
		return results, nil
	}
	defer client.Close()

	results = append(results, runStage("list_directory", func() error {
		_, err := client.List(ctx, conn.Config.FileTransfer.Directory)
		return err
	}))

	return results, nil
}
