package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"CustodianSync/internal/domain/models"
	domrepo "CustodianSync/internal/domain/repository"
)

const (
	connKeyPrefix   = "custsync:conn:"
	tenantKeyPrefix = "custsync:tenant:"
)

// RedisConnectionStore implements ConnectionStore on Redis. Connections
// are stored as JSON documents with a per-tenant index set; credential
// fields arrive already encrypted.
type RedisConnectionStore struct {
	client *redis.Client
}

// NewRedisConnectionStore creates a Redis-backed connection store.
func NewRedisConnectionStore(client *redis.Client) domrepo.ConnectionStore {
	return &RedisConnectionStore{client: client}
}

func (s *RedisConnectionStore) Save(ctx context.Context, conn *models.CustodianConnection) error {
	b, err := json.Marshal(conn)
	if err != nil {
		return fmt.Errorf("marshal connection: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, connKeyPrefix+conn.ID, b, 0)
	if conn.TenantID != "" {
		pipe.SAdd(ctx, tenantKeyPrefix+conn.TenantID, conn.ID)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save connection: %w", err)
	}
	return nil
}

// Get returns (nil, nil) for an unknown id; the caller decides whether
// that is an error.
func (s *RedisConnectionStore) Get(ctx context.Context, id string) (*models.CustodianConnection, error) {
	b, err := s.client.Get(ctx, connKeyPrefix+id).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get connection: %w", err)
	}

	var conn models.CustodianConnection
	if err := json.Unmarshal(b, &conn); err != nil {
		return nil, fmt.Errorf("unmarshal connection: %w", err)
	}
	return &conn, nil
}

func (s *RedisConnectionStore) List(ctx context.Context, tenantID string) ([]*models.CustodianConnection, error) {
	ids, err := s.client.SMembers(ctx, tenantKeyPrefix+tenantID).Result()
	if err != nil {
		return nil, fmt.Errorf("list tenant connections: %w", err)
	}

	out := make([]*models.CustodianConnection, 0, len(ids))
	for _, id := range ids {
		conn, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if conn != nil {
			out = append(out, conn)
		}
	}
	return out, nil
}

func (s *RedisConnectionStore) Close() error {
	return s.client.Close()
}

// Ping verifies connectivity with a bounded timeout.
func (s *RedisConnectionStore) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.client.Ping(ctx).Err()
}
