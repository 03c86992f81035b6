package adapter

import (
	"context"
	"fmt"
	"sort"
	"time"

	"CustodianSync/internal/domain/models"
	xlogger "CustodianSync/pkg/logger"
)

// SftpAdapter retrieves fixed-width feed files from a custodian's SFTP
// drop directory.
type SftpAdapter struct {
	opts *Options
}

// NewSftpAdapter creates an SFTP custodian adapter.
func NewSftpAdapter(opts *Options) *SftpAdapter {
	return &SftpAdapter{opts: opts.withDefaults()}
}

// ValidateConfig requires host and directory before any I/O.
func (a *SftpAdapter) ValidateConfig(conn *models.CustodianConnection) error {
	ft := conn.Config.FileTransfer
	if ft.Host == "" {
		return models.NewConfigurationError("file_transfer.host", "required for SFTP connections")
	}
	if ft.Directory == "" {
		return models.NewConfigurationError("file_transfer.directory", "required for SFTP connections")
	}
	auth := conn.Config.Authentication
	if auth.Username == "" {
		return models.NewConfigurationError("authentication.username", "required for SFTP connections")
	}
	if auth.Password == "" && ft.PrivateKey == "" {
		return models.NewConfigurationError("authentication", "password or private key required for SFTP connections")
	}
	return nil
}

// RetrieveData connects, selects the newest matching feed files, parses
// them as fixed-width records, and disconnects even on error.
func (a *SftpAdapter) RetrieveData(ctx context.Context, conn *models.CustodianConnection, req *models.DataFeedRequest) (*models.RawFeed, error) {
	client := a.opts.DialSFTP(conn.Config.FileTransfer, conn.Config.Authentication, a.opts.SftpTimeout)
	if err := client.Connect(ctx); err != nil {
		return nil, &models.ConnectivityError{Op: "sftp connect", Err: err}
	}
	defer client.Close() // best effort, close errors swallowed

	dir := conn.Config.FileTransfer.Directory
	files, err := client.List(ctx, dir)
	if err != nil {
		return nil, &models.ConnectivityError{Op: "sftp list", Err: err}
	}

	matched := files[:0]
	for _, f := range files {
		if MatchesFeedFile(req.FeedType, f.Name, req.DateFrom, req.DateTo) {
			matched = append(matched, f)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ModTime.After(matched[j].ModTime) })
	if len(matched) > a.opts.MaxFilesPerFeed {
		matched = matched[:a.opts.MaxFilesPerFeed]
	}

	feed := &models.RawFeed{
		FeedType:    req.FeedType,
		Source:      "SFTP",
		RetrievedAt: time.Now().UTC(),
	}

	for _, f := range matched {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		body, err := client.Download(ctx, dir+"/"+f.Name)
		if err != nil {
			return nil, &models.ConnectivityError{Op: "sftp download " + f.Name, Err: err}
		}
		records, dropped := ParseFixedWidthFile(req.FeedType, body)
		if dropped > 0 {
			a.opts.Logger.Warn("dropped unparseable lines",
				xlogger.String("file", f.Name),
				xlogger.Int("dropped", dropped))
		}
		feed.Records = append(feed.Records, records...)
	}

	feed.RecordCount = len(feed.Records)
	return feed, nil
}

// SubmitOrders is not supported over SFTP.
func (a *SftpAdapter) SubmitOrders(ctx context.Context, conn *models.CustodianConnection, batch *models.OrderBatchRequest) (*models.OrderSubmissionResult, error) {
	return nil, &models.RetrievalError{ConnectionType: models.ConnectionSFTP, Reason: "order submission not supported over SFTP"}
}

// RetrieveDocuments lists files in the drop directory as documents.
func (a *SftpAdapter) RetrieveDocuments(ctx context.Context, conn *models.CustodianConnection, from, to time.Time) ([]models.Document, error) {
	client := a.opts.DialSFTP(conn.Config.FileTransfer, conn.Config.Authentication, a.opts.SftpTimeout)
	if err := client.Connect(ctx); err != nil {
		return nil, &models.ConnectivityError{Op: "sftp connect", Err: err}
	}
	defer client.Close()

	files, err := client.List(ctx, conn.Config.FileTransfer.Directory)
	if err != nil {
		return nil, &models.ConnectivityError{Op: "sftp list", Err: err}
	}

	docs := make([]models.Document, 0, len(files))
	for _, f := range files {
		if !from.IsZero() && f.ModTime.Before(from) {
			continue
		}
		if !to.IsZero() && f.ModTime.After(to) {
			continue
		}
		docs = append(docs, models.Document{
			DocumentID: fmt.Sprintf("%s-%d", f.Name, f.ModTime.Unix()),
			FileName:   f.Name,
			Size:       f.Size,
			Date:       f.ModTime,
		})
	}
	return docs, nil
}

// HealthCheck connects, lists the configured directory, and disconnects.
func (a *SftpAdapter) HealthCheck(ctx context.Context, conn *models.CustodianConnection) (bool, error) {
	client := a.opts.DialSFTP(conn.Config.FileTransfer, conn.Config.Authentication, a.opts.SftpTimeout)
	if err := client.Connect(ctx); err != nil {
		return false, err
	}
	defer client.Close()

	if _, err := client.List(ctx, conn.Config.FileTransfer.Directory); err != nil {
		return false, err
	}
	return true, nil
}

// TestConnection verifies connect, directory listing and disconnect.
func (a *SftpAdapter) TestConnection(ctx context.Context, conn *models.CustodianConnection) ([]models.ConnectionTestResult, error) {
	if err := a.ValidateConfig(conn); err != nil {
		return nil, err
	}

	results := make([]models.ConnectionTestResult, 0, 2)

	client := a.opts.DialSFTP(conn.Config.FileTransfer, conn.Config.Authentication, a.opts.SftpTimeout)
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

func runStage(name string, fn func() error) models.ConnectionTestResult {
	start := time.Now()
	err := fn()
	res := models.ConnectionTestResult{
		TestType:       name,
		Success:        err == nil,
		ResponseTimeMs: time.Since(start).Milliseconds(),
	}
	if err != nil {
		res.ErrorMessage = err.Error()
	} else {
		res.Details = "ok"
	}
	return res
}
