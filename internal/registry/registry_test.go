package registry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"CustodianSync/internal/adapter"
	"CustodianSync/internal/domain/models"
	"CustodianSync/pkg/filetransfer"
	xlogger "CustodianSync/pkg/logger"
)

type memoryStore struct {
	mu    sync.Mutex
	conns map[string]*models.CustodianConnection
	saves int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{conns: make(map[string]*models.CustodianConnection)}
}

func (m *memoryStore) Save(ctx context.Context, conn *models.CustodianConnection) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *conn
	m.conns[conn.ID] = &copied
	m.saves++
	return nil
}

func (m *memoryStore) Get(ctx context.Context, id string) (*models.CustodianConnection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	conn, ok := m.conns[id]
	if !ok {
		return nil, nil
	}
	copied := *conn
	return &copied, nil
}

func (m *memoryStore) List(ctx context.Context, tenantID string) ([]*models.CustodianConnection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.CustodianConnection
	for _, c := range m.conns {
		if c.TenantID == tenantID {
			copied := *c
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (m *memoryStore) Close() error { return nil }

// flakyRemote fails Connect for the configured hosts.
type flakyRemote struct {
	downHost string
	host     string
	listErr  error
}

func (f *flakyRemote) Connect(ctx context.Context) error {
	if f.host == f.downHost {
		return errors.New("connection refused")
	}
	return nil
}

func (f *flakyRemote) List(ctx context.Context, dir string) ([]filetransfer.RemoteFile, error) {
	return nil, f.listErr
}

func (f *flakyRemote) Download(ctx context.Context, path string) ([]byte, error) {
	return nil, nil
}

func (f *flakyRemote) Close() error { return nil }

func testLogger(t *testing.T) *xlogger.Logger {
	t.Helper()
	l, err := xlogger.New(&xlogger.Config{Level: "error", Format: "console", Output: "stdout"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return l
}

func testFactory(t *testing.T, downHost string) *adapter.Factory {
	t.Helper()
	return adapter.NewFactory(&adapter.Options{
		Logger: testLogger(t),
		DialSFTP: func(cfg models.FileTransferConfig, auth models.AuthConfig, timeout time.Duration) filetransfer.Client {
			return &flakyRemote{downHost: downHost, host: cfg.Host}
		},
	})
}

func sftpCreateRequest(host string) *models.CreateConnectionRequest {
	return &models.CreateConnectionRequest{
		TenantID:       "tenant-1",
		CustodianType:  models.CustodianPershing,
		CustodianName:  "Pershing",
		CustodianCode:  "PER",
		ConnectionType: models.ConnectionSFTP,
		Config: models.ConnectionConfig{
			Authentication: models.AuthConfig{Username: "feeduser", Password: "secret"},
			FileTransfer:   models.FileTransferConfig{Host: host, Port: 22, Directory: "/outbound"},
		},
	}
}

func newTestRegistry(t *testing.T, store *memoryStore, downHost string) *Registry {
	t.Helper()
	reg := New(store, testFactory(t, downHost), nil, nil, testLogger(t), nil)
	// Tests never want to wait out the default health budget.
	reg.healthTimeout = time.Second
	return reg
}

func TestCreateConnectionRunsBattery(t *testing.T) {
	store := newMemoryStore()
	reg := newTestRegistry(t, store, "")

	conn, results, err := reg.CreateConnection(context.Background(), sftpCreateRequest("drop.pershing.test"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if conn.Status != models.StatusConnected {
		t.Fatalf("status = %s", conn.Status)
	}
	if !conn.IsActive {
		t.Fatalf("new connection inactive")
	}
	if !models.AllPassed(results) {
		t.Fatalf("battery = %+v", results)
	}
	if store.saves != 1 {
		t.Fatalf("saves = %d", store.saves)
	}
}

func TestCreateConnectionFailedBatteryNotPersisted(t *testing.T) {
	store := newMemoryStore()
	reg := newTestRegistry(t, store, "drop.pershing.test")

	_, results, err := reg.CreateConnection(context.Background(), sftpCreateRequest("drop.pershing.test"))
	if err == nil {
		t.Fatalf("failed battery accepted")
	}
	if len(results) == 0 {
		t.Fatalf("battery results missing on failure")
	}
	if store.saves != 0 {
		t.Fatalf("failed connection persisted")
	}
}

func TestCreateConnectionInvalidConfig(t *testing.T) {
	store := newMemoryStore()
	reg := newTestRegistry(t, store, "")

	req := sftpCreateRequest("drop.pershing.test")
	req.Config.FileTransfer.Directory = ""
	_, _, err := reg.CreateConnection(context.Background(), req)
	if err == nil {
		t.Fatalf("invalid config accepted")
	}
	var cfgErr *models.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("error type %T", err)
	}
}

func TestGetConnectionFallsBackToStore(t *testing.T) {
	store := newMemoryStore()
	reg := newTestRegistry(t, store, "")

	created, _, err := reg.CreateConnection(context.Background(), sftpCreateRequest("drop.pershing.test"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// Fresh registry sharing the store: cache miss, store hit.
	fresh := newTestRegistry(t, store, "")
	got, err := fresh.GetConnection(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ID != created.ID {
		t.Fatalf("got %s", got.ID)
	}

	if _, err := fresh.GetConnection(context.Background(), "missing"); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("missing id err = %v", err)
	}
}

func TestDeactivateKeepsRecord(t *testing.T) {
	store := newMemoryStore()
	reg := newTestRegistry(t, store, "")

	conn, _, err := reg.CreateConnection(context.Background(), sftpCreateRequest("drop.pershing.test"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := reg.Deactivate(context.Background(), conn.ID); err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	stored, _ := store.Get(context.Background(), conn.ID)
	if stored == nil {
		t.Fatalf("deactivation deleted the record")
	}
	if stored.IsActive || stored.Status != models.StatusDisconnected {
		t.Fatalf("stored = %+v", stored)
	}
}

func TestMonitorIsolatesFailures(t *testing.T) {
	store := newMemoryStore()
	reg := newTestRegistry(t, store, "down.pershing.test")

	healthy, _, err := reg.CreateConnection(context.Background(), sftpCreateRequest("drop.pershing.test"))
	if err != nil {
		t.Fatalf("create healthy: %v", err)
	}

	// The failing connection is injected straight into the cache; its
	// battery would never pass.
	sick := &models.CustodianConnection{
		ID:             "sick-1",
		CustodianType:  models.CustodianPershing,
		ConnectionType: models.ConnectionSFTP,
		IsActive:       true,
		Status:         models.StatusConnected,
		Config: models.ConnectionConfig{
			Authentication: models.AuthConfig{Username: "u", Password: "p"},
			FileTransfer:   models.FileTransferConfig{Host: "down.pershing.test", Directory: "/outbound"},
		},
	}
	reg.mu.Lock()
	reg.cache[sick.ID] = sick
	reg.mu.Unlock()

	reg.MonitorConnections(context.Background())

	got, _ := reg.GetConnection(context.Background(), healthy.ID)
	if got.Status != models.StatusConnected || got.RetryCount != 0 {
		t.Fatalf("healthy connection degraded: %+v", got)
	}

	if sick.Status != models.StatusError {
		t.Fatalf("sick status = %s", sick.Status)
	}
	if sick.RetryCount != 1 {
		t.Fatalf("sick retry count = %d", sick.RetryCount)
	}
	if len(sick.ErrorLog) != 1 {
		t.Fatalf("error log = %v", sick.ErrorLog)
	}
}

func TestErrorLogBounded(t *testing.T) {
	conn := &models.CustodianConnection{}
	now := time.Now()
	for i := 0; i < models.MaxErrorLogEntries+20; i++ {
		conn.AppendError(now, "boom")
	}
	if len(conn.ErrorLog) != models.MaxErrorLogEntries {
		t.Fatalf("log length = %d", len(conn.ErrorLog))
	}
}

func TestLockConnectionSerializes(t *testing.T) {
	reg := newTestRegistry(t, newMemoryStore(), "")

	unlock := reg.LockConnection("c1")
	acquired := make(chan struct{})
	go func() {
		u := reg.LockConnection("c1")
		close(acquired)
		u()
	}()

	select {
	case <-acquired:
		t.Fatalf("second lock acquired while first held")
	case <-time.After(50 * time.Millisecond):
	}

	unlock()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatalf("second lock never acquired")
	}
}
