package adapter

import (
	"context"
	"time"

	"CustodianSync/internal/domain/models"
	drepo "CustodianSync/internal/domain/repository"
	"CustodianSync/internal/service/ratelimit"
	"CustodianSync/pkg/filetransfer"
	xlogger "CustodianSync/pkg/logger"
)

// CustodianAdapter is the capability set every custodian variant
// implements. Callers select a variant by custodian type via the factory.
type CustodianAdapter interface {
	ValidateConfig(conn *models.CustodianConnection) error
	TestConnection(ctx context.Context, conn *models.CustodianConnection) ([]models.ConnectionTestResult, error)
	RetrieveData(ctx context.Context, conn *models.CustodianConnection, req *models.DataFeedRequest) (*models.RawFeed, error)
	SubmitOrders(ctx context.Context, conn *models.CustodianConnection, batch *models.OrderBatchRequest) (*models.OrderSubmissionResult, error)
	RetrieveDocuments(ctx context.Context, conn *models.CustodianConnection, from, to time.Time) ([]models.Document, error)
	HealthCheck(ctx context.Context, conn *models.CustodianConnection) (bool, error)
}

// FileTransferDial opens a file-transfer client for a connection's
// configured host. Injected so tests can substitute a fake remote.
type FileTransferDial func(cfg models.FileTransferConfig, auth models.AuthConfig, timeout time.Duration) filetransfer.Client

// Options carries the shared collaborators and tunables for all adapters.
type Options struct {
	Logger  *xlogger.Logger
	Metrics drepo.Metrics
	Tokens  TokenSource
	Limiter *ratelimit.Limiter

	PageSize        int
	PageDelay       time.Duration
	OrderDelay      time.Duration
	MaxFilesPerFeed int
	RestTimeout     time.Duration
	SftpTimeout     time.Duration
	Retry           RetryPolicy

	DialSFTP FileTransferDial
	DialFTP  FileTransferDial
}

func (o *Options) withDefaults() *Options {
	out := *o
	if out.PageSize <= 0 {
		out.PageSize = 1000
	}
	if out.PageDelay <= 0 {
		out.PageDelay = time.Second
	}
	if out.OrderDelay <= 0 {
		out.OrderDelay = 500 * time.Millisecond
	}
	if out.MaxFilesPerFeed <= 0 {
		out.MaxFilesPerFeed = 5
	}
	if out.RestTimeout <= 0 {
		out.RestTimeout = 30 * time.Second
	}
	if out.SftpTimeout <= 0 {
		out.SftpTimeout = 20 * time.Second
	}
	if out.DialSFTP == nil {
		out.DialSFTP = dialSFTP
	}
	if out.DialFTP == nil {
		out.DialFTP = dialFTP
	}
	return &out
}

func dialSFTP(cfg models.FileTransferConfig, auth models.AuthConfig, timeout time.Duration) filetransfer.Client {
	opts := []filetransfer.ClientOption{
		filetransfer.WithAddress(cfg.Host, cfg.Port),
		filetransfer.WithCredentials(auth.Username, auth.Password),
		filetransfer.WithConnectTimeout(timeout),
	}
	if cfg.PrivateKey != "" {
		opts = append(opts, filetransfer.WithPrivateKey([]byte(cfg.PrivateKey)))
	}
	return filetransfer.NewSFTPClient(opts...)
}

func dialFTP(cfg models.FileTransferConfig, auth models.AuthConfig, timeout time.Duration) filetransfer.Client {
	return filetransfer.NewFTPClient(
		filetransfer.WithAddress(cfg.Host, cfg.Port),
		filetransfer.WithCredentials(auth.Username, auth.Password),
		filetransfer.WithConnectTimeout(timeout),
	)
}

// Factory builds adapters per custodian type.
type Factory struct {
	opts *Options
}

// NewFactory creates an adapter factory.
func NewFactory(opts *Options) *Factory {
	return &Factory{opts: opts.withDefaults()}
}

// ForConnection selects the adapter variant for a connection.
// Schwab and Fidelity are REST-only; Pershing is a hybrid that also
// speaks SFTP/FTP.
func (f *Factory) ForConnection(conn *models.CustodianConnection) CustodianAdapter {
	switch conn.CustodianType {
	case models.CustodianPershing:
		return NewHybridAdapter(f.opts)
	default:
		return NewRestAdapter(f.opts)
	}
}
