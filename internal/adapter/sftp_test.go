package adapter

import (
	"context"
	"testing"
	"time"

	"CustodianSync/internal/domain/models"
	"CustodianSync/pkg/filetransfer"
	xlogger "CustodianSync/pkg/logger"
)

type fakeRemote struct {
	files     []filetransfer.RemoteFile
	bodies    map[string][]byte
	connected bool
	downloads []string
}

func (f *fakeRemote) Connect(ctx context.Context) error { f.connected = true; return nil }

func (f *fakeRemote) List(ctx context.Context, dir string) ([]filetransfer.RemoteFile, error) {
	return f.files, nil
}

func (f *fakeRemote) Download(ctx context.Context, path string) ([]byte, error) {
	f.downloads = append(f.downloads, path)
	return f.bodies[path], nil
}

func (f *fakeRemote) Close() error { f.connected = false; return nil }

func testLogger(t *testing.T) *xlogger.Logger {
	t.Helper()
	l, err := xlogger.New(&xlogger.Config{Level: "error", Format: "console", Output: "stdout"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return l
}

func sftpConn() *models.CustodianConnection {
	return &models.CustodianConnection{
		ID:             "conn-sftp",
		CustodianType:  models.CustodianPershing,
		ConnectionType: models.ConnectionSFTP,
		Config: models.ConnectionConfig{
			Authentication: models.AuthConfig{Username: "feeduser", Password: "secret"},
			FileTransfer:   models.FileTransferConfig{Host: "drop.pershing.test", Port: 22, Directory: "/outbound"},
		},
	}
}

func TestSftpRetrieveDataSelectsNewestMatching(t *testing.T) {
	day := func(d int) time.Time { return time.Date(2024, 3, d, 6, 0, 0, 0, time.UTC) }
	remote := &fakeRemote{
		files: []filetransfer.RemoteFile{
			{Name: "POS_20240301_daily.txt", ModTime: day(1)},
			{Name: "POS_20240302_daily.txt", ModTime: day(2)},
			{Name: "TXN_20240302_daily.txt", ModTime: day(2)},
			{Name: "readme.md", ModTime: day(2)},
		},
		bodies: map[string][]byte{
			"/outbound/POS_20240302_daily.txt": []byte(positionLine("ACC0000001", "AAPL", "037833100", 100, 150, 15000)),
		},
	}

	opts := &Options{
		Logger:          testLogger(t),
		MaxFilesPerFeed: 1,
		DialSFTP: func(cfg models.FileTransferConfig, auth models.AuthConfig, timeout time.Duration) filetransfer.Client {
			return remote
		},
	}
	a := NewSftpAdapter(opts)

	feed, err := a.RetrieveData(context.Background(), sftpConn(), &models.DataFeedRequest{
		FeedType: models.FeedPositions,
		DateFrom: day(1),
		DateTo:   day(2),
	})
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}

	if feed.Source != "SFTP" {
		t.Fatalf("source = %q", feed.Source)
	}
	if feed.RecordCount != 1 {
		t.Fatalf("record count = %d", feed.RecordCount)
	}
	if len(remote.downloads) != 1 || remote.downloads[0] != "/outbound/POS_20240302_daily.txt" {
		t.Fatalf("downloads = %v, want only the newest POS file", remote.downloads)
	}
	if remote.connected {
		t.Fatalf("connection left open")
	}
}

func TestSftpValidateConfig(t *testing.T) {
	a := NewSftpAdapter(&Options{Logger: testLogger(t)})

	conn := sftpConn()
	if err := a.ValidateConfig(conn); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	conn.Config.FileTransfer.Host = ""
	if err := a.ValidateConfig(conn); err == nil {
		t.Fatalf("missing host accepted")
	}

	conn = sftpConn()
	conn.Config.Authentication.Password = ""
	if err := a.ValidateConfig(conn); err == nil {
		t.Fatalf("missing password and key accepted")
	}
	conn.Config.FileTransfer.PrivateKey = "-----BEGIN KEY-----"
	if err := a.ValidateConfig(conn); err != nil {
		t.Fatalf("private key auth rejected: %v", err)
	}
}

func TestSftpSubmitOrdersUnsupported(t *testing.T) {
	a := NewSftpAdapter(&Options{Logger: testLogger(t)})
	if _, err := a.SubmitOrders(context.Background(), sftpConn(), &models.OrderBatchRequest{}); err == nil {
		t.Fatalf("expected unsupported error")
	}
}

func TestSftpRetrieveDocumentsFiltersByDate(t *testing.T) {
	day := func(d int) time.Time { return time.Date(2024, 3, d, 6, 0, 0, 0, time.UTC) }
	remote := &fakeRemote{
		files: []filetransfer.RemoteFile{
			{Name: "stmt_feb.pdf", Size: 10, ModTime: day(1)},
			{Name: "stmt_mar.pdf", Size: 20, ModTime: day(10)},
			{Name: "stmt_apr.pdf", Size: 30, ModTime: day(20)},
		},
	}
	a := NewSftpAdapter(&Options{
		Logger: testLogger(t),
		DialSFTP: func(cfg models.FileTransferConfig, auth models.AuthConfig, timeout time.Duration) filetransfer.Client {
			return remote
		},
	})

	docs, err := a.RetrieveDocuments(context.Background(), sftpConn(), day(5), day(15))
	if err != nil {
		t.Fatalf("documents: %v", err)
	}
	if len(docs) != 1 || docs[0].FileName != "stmt_mar.pdf" {
		t.Fatalf("docs = %+v", docs)
	}
}
