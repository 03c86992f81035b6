package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"CustodianSync/internal/adapter"
	"CustodianSync/internal/domain/models"
	drepo "CustodianSync/internal/domain/repository"
	xlogger "CustodianSync/pkg/logger"

	"github.com/google/uuid"
)

// Registry owns the CustodianConnection lifecycle: creation through a
// staged test battery, cached lookups with persistent fallback, health
// monitoring, and per-connection operation serialization.
type Registry struct {
	store   drepo.ConnectionStore
	factory *adapter.Factory
	cipher  drepo.FieldCipher
	pub     drepo.EventPublisher
	logger  *xlogger.Logger
	metrics drepo.Metrics

	mu    sync.RWMutex
	cache map[string]*models.CustodianConnection

	opMu    sync.Mutex
	opLocks map[string]*sync.Mutex

	healthTimeout time.Duration
}

// New creates a connection registry.
func New(
	store drepo.ConnectionStore,
	factory *adapter.Factory,
	cipher drepo.FieldCipher,
	pub drepo.EventPublisher,
	logger *xlogger.Logger,
	metrics drepo.Metrics,
) *Registry {
	return &Registry{
		store:         store,
		factory:       factory,
		cipher:        cipher,
		pub:           pub,
		logger:        logger,
		metrics:       metrics,
		cache:         make(map[string]*models.CustodianConnection),
		opLocks:       make(map[string]*sync.Mutex),
		healthTimeout: 30 * time.Second,
	}
}

// LockConnection serializes operations per connection id: one in-flight
// adapter call per connection at a time. Returns the unlock func.
func (r *Registry) LockConnection(id string) func() {
	r.opMu.Lock()
	l, ok := r.opLocks[id]
	if !ok {
		l = &sync.Mutex{}
		r.opLocks[id] = l
	}
	r.opMu.Unlock()
	l.Lock()
	return l.Unlock
}

// CreateConnection validates config, runs the connection test battery,
// and persists the connection only when every stage passes.
func (r *Registry) CreateConnection(ctx context.Context, req *models.CreateConnectionRequest) (*models.CustodianConnection, []models.ConnectionTestResult, error) {
	now := time.Now().UTC()
	conn := &models.CustodianConnection{
		ID:                uuid.NewString(),
		TenantID:          req.TenantID,
		CustodianType:     req.CustodianType,
		CustodianName:     req.CustodianName,
		CustodianCode:     req.CustodianCode,
		ConnectionType:    req.ConnectionType,
		Config:            req.Config,
		Status:            models.StatusDisconnected,
		SupportedFeatures: req.Features,
		RateLimits:        req.RateLimits,
		IsActive:          true,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	ad := r.factory.ForConnection(conn)
	if err := ad.ValidateConfig(conn); err != nil {
		return nil, nil, err
	}

	results, err := ad.TestConnection(ctx, conn)
	if err != nil {
		return nil, nil, err
	}
	if !models.AllPassed(results) {
		return nil, results, fmt.Errorf("connection test failed")
	}

	conn.Status = models.StatusConnected
	if err := r.persist(ctx, conn); err != nil {
		return nil, results, err
	}

	r.mu.Lock()
	r.cache[conn.ID] = conn
	r.mu.Unlock()

	if r.pub != nil {
		_ = r.pub.Publish(ctx, models.TopicConnectionCreated, models.ConnectionCreatedEvent{
			ConnectionID:  conn.ID,
			TenantID:      conn.TenantID,
			CustodianType: conn.CustodianType,
			CreatedAt:     conn.CreatedAt,
		})
	}
	r.logger.Info("connection created",
		xlogger.String("connection_id", conn.ID),
		xlogger.String("custodian", string(conn.CustodianType)))
	return conn, results, nil
}

// persist encrypts sensitive credential fields through the cipher
// boundary, then saves a copy. The cached connection keeps plaintext.
func (r *Registry) persist(ctx context.Context, conn *models.CustodianConnection) error {
	stored := *conn
	if r.cipher != nil {
		var err error
		if stored.Config.Authentication.ClientSecret, err = r.sealField(ctx, conn.Config.Authentication.ClientSecret); err != nil {
			return err
		}
		if stored.Config.Authentication.Password, err = r.sealField(ctx, conn.Config.Authentication.Password); err != nil {
			return err
		}
	}
	return r.store.Save(ctx, &stored)
}

func (r *Registry) sealField(ctx context.Context, plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}
	enc, err := r.cipher.EncryptField(ctx, plaintext)
	if err != nil {
		return "", fmt.Errorf("encrypt field: %w", err)
	}
	b, err := json.Marshal(enc)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (r *Registry) openField(ctx context.Context, sealed string) (string, error) {
	if sealed == "" || r.cipher == nil {
		return sealed, nil
	}
	var enc drepo.EncryptedField
	if err := json.Unmarshal([]byte(sealed), &enc); err != nil {
		// Stored before encryption was enabled; treat as plaintext.
		return sealed, nil
	}
	return r.cipher.DecryptField(ctx, &enc)
}

// GetConnection returns from cache, falling back to the store, failing
// with ErrNotFound if the connection exists nowhere.
func (r *Registry) GetConnection(ctx context.Context, id string) (*models.CustodianConnection, error) {
	r.mu.RLock()
	conn, ok := r.cache[id]
	r.mu.RUnlock()
	if ok {
		return conn, nil
	}

	stored, err := r.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, models.ErrNotFound
	}

	if stored.Config.Authentication.ClientSecret, err = r.openField(ctx, stored.Config.Authentication.ClientSecret); err != nil {
		return nil, err
	}
	if stored.Config.Authentication.Password, err = r.openField(ctx, stored.Config.Authentication.Password); err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.cache[id] = stored
	r.mu.Unlock()
	return stored, nil
}

// ListConnections returns a tenant's connections with credentials
// decrypted.
func (r *Registry) ListConnections(ctx context.Context, tenantID string) ([]*models.CustodianConnection, error) {
	stored, err := r.store.List(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	for _, conn := range stored {
		if conn.Config.Authentication.ClientSecret, err = r.openField(ctx, conn.Config.Authentication.ClientSecret); err != nil {
			return nil, err
		}
		if conn.Config.Authentication.Password, err = r.openField(ctx, conn.Config.Authentication.Password); err != nil {
			return nil, err
		}
	}
	return stored, nil
}

// TestConnection reruns the staged test battery for an existing
// connection under its operation lock.
func (r *Registry) TestConnection(ctx context.Context, id string) ([]models.ConnectionTestResult, error) {
	conn, err := r.GetConnection(ctx, id)
	if err != nil {
		return nil, err
	}

	unlock := r.LockConnection(id)
	defer unlock()
	return r.Adapter(conn).TestConnection(ctx, conn)
}

// Deactivate flips the IsActive flag; connections are never deleted.
func (r *Registry) Deactivate(ctx context.Context, id string) error {
	conn, err := r.GetConnection(ctx, id)
	if err != nil {
		return err
	}
	conn.IsActive = false
	conn.Status = models.StatusDisconnected
	conn.UpdatedAt = time.Now().UTC()
	return r.persist(ctx, conn)
}

// Adapter returns the adapter variant for a known connection.
func (r *Registry) Adapter(conn *models.CustodianConnection) adapter.CustodianAdapter {
	return r.factory.ForConnection(conn)
}

// MonitorConnections health-checks every cached connection. Failures
// are isolated per connection; one failing custodian never aborts
// monitoring of the others. Cancellation is honored between starts.
func (r *Registry) MonitorConnections(ctx context.Context) {
	r.mu.RLock()
	conns := make([]*models.CustodianConnection, 0, len(r.cache))
	for _, c := range r.cache {
		if c.IsActive {
			conns = append(conns, c)
		}
	}
	r.mu.RUnlock()

	var wg sync.WaitGroup
	for _, conn := range conns {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		go func(conn *models.CustodianConnection) {
			defer wg.Done()
			r.checkOne(ctx, conn)
		}(conn)
	}
	wg.Wait()
}

func (r *Registry) checkOne(ctx context.Context, conn *models.CustodianConnection) {
	unlock := r.LockConnection(conn.ID)
	defer unlock()

	hctx, cancel := context.WithTimeout(ctx, r.healthTimeout)
	defer cancel()

	healthy, err := r.Adapter(conn).HealthCheck(hctx, conn)
	now := time.Now().UTC()

	r.mu.Lock()
	defer r.mu.Unlock()
	conn.UpdatedAt = now
	if healthy {
		conn.Status = models.StatusConnected
		conn.RetryCount = 0
		return
	}

	conn.Status = models.StatusError
	conn.RetryCount++
	msg := "health check failed"
	if err != nil {
		msg = err.Error()
	}
	conn.AppendError(now, msg)
	if r.metrics != nil {
		r.metrics.RecordError("health_check")
	}
	r.logger.Warn("connection unhealthy",
		xlogger.String("connection_id", conn.ID),
		xlogger.Int("retry_count", conn.RetryCount),
		xlogger.String("error", msg))
}

// RunMonitor loops MonitorConnections at the configured interval until
// the context is cancelled.
func (r *Registry) RunMonitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.MonitorConnections(ctx)
		}
	}
}
