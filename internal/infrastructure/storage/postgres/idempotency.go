package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/klauspost/compress/zstd"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/tenant"
)

// IdempotencyStatus represents the state of an idempotent operation.
type IdempotencyStatus string

const (
	IdempotencyStatusPending IdempotencyStatus = "pending"
	IdempotencyStatusSuccess IdempotencyStatus = "success"
	IdempotencyStatusFailed  IdempotencyStatus = "failed"
)

// CompressionAlgo specifies the compression applied to a cached response.
type CompressionAlgo string

const (
	CompressionNone CompressionAlgo = "none"
	CompressionZstd CompressionAlgo = "zstd"
)

// stalePendingAge is how long a pending claim may sit before another request
// is allowed to reclaim it (crashed writer).
const stalePendingAge = time.Minute

// IdempotencyRecord stores the result of an idempotent operation. Keys are
// scoped per tenant: the same key string used by two tenants never collides.
type IdempotencyRecord struct {
	TenantID        string            `db:"tenant_id"`
	Key             string            `db:"idempotency_key"`
	Operation       string            `db:"operation"`
	Status          IdempotencyStatus `db:"status"`
	RequestHash     string            `db:"request_hash"` // SHA256 of request body
	Response        []byte            `db:"response"`     // Cached response (maybe compressed)
	CompressionAlgo CompressionAlgo   `db:"compression_algo"`
	StatusCode      int               `db:"response_status"`
	ContentType     string            `db:"response_content_type"`
	CreatedAt       time.Time         `db:"created_at"`
	UpdatedAt       time.Time         `db:"updated_at"`
	ExpiresAt       time.Time         `db:"expires_at"`
}

// IdempotencyReplay is the cached HTTP response for replay.
type IdempotencyReplay struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// querierSource provides a Querier bound to the current transaction, if any.
// Satisfied by TxManager.
type querierSource interface {
	GetQuerier(ctx context.Context) Querier
}

// IdempotencyStore manages idempotency keys. Large cached responses are
// zstd-compressed before storage and decompressed on replay.
type IdempotencyStore struct {
	txManager         querierSource
	ttl               time.Duration
	encoder           *zstd.Encoder
	decoder           *zstd.Decoder
	compressThreshold int
}

// NewIdempotencyStore creates a new idempotency store.
func NewIdempotencyStore(txManager querierSource, ttl time.Duration) (*IdempotencyStore, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}

	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}

	return &IdempotencyStore{
		txManager:         txManager,
		ttl:               ttl,
		encoder:           encoder,
		decoder:           decoder,
		compressThreshold: 10 * 1024, // 10KB
	}, nil
}

// AcquireKey attempts to claim an idempotency key for the scoped tenant.
// Returns:
//   - (nil, nil) if the key was claimed by this request
//   - (cachedResponse, nil) if the operation already completed (success or failed)
//   - (nil, error) if the key is held by an in-flight request or reused for
//     a different request
func (s *IdempotencyStore) AcquireKey(ctx context.Context, scope tenant.Scope, key, operation, requestHash string) (*IdempotencyReplay, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	expiresAt := now.Add(s.ttl)
	tenantID := scope.TenantID().String()

	// Single atomic claim: exactly one of N concurrent requests gets the
	// inserted row, everyone else falls through to the existing record.
	tag, err := s.txManager.GetQuerier(ctx).Exec(ctx, `
		INSERT INTO sys_idempotency (tenant_id, idempotency_key, operation, status, request_hash, compression_algo, created_at, updated_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7, $8)
		ON CONFLICT (tenant_id, idempotency_key) DO NOTHING
	`, tenantID, key, operation, IdempotencyStatusPending, requestHash, CompressionNone, now, expiresAt)
	if err != nil {
		return nil, fmt.Errorf("acquire idempotency key: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil, nil
	}

	var record IdempotencyRecord
	err = s.txManager.GetQuerier(ctx).QueryRow(ctx, `
		SELECT operation, status, request_hash, response, compression_algo, response_status, response_content_type, updated_at
		FROM sys_idempotency
		WHERE tenant_id = $1 AND idempotency_key = $2
	`, tenantID, key).Scan(
		&record.Operation, &record.Status, &record.RequestHash,
		&record.Response, &record.CompressionAlgo,
		&record.StatusCode, &record.ContentType, &record.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("load idempotency record: %w", err)
	}

	// Key exists: protect against reuse for a different request.
	if record.Operation != operation || record.RequestHash != requestHash {
		return nil, apperror.NewIdempotencyMismatch(key).
			WithDetail("stored_operation", record.Operation).
			WithDetail("request_operation", operation)
	}

	switch record.Status {
	case IdempotencyStatusSuccess, IdempotencyStatusFailed:
		body, err := s.decompress(record.Response, record.CompressionAlgo)
		if err != nil {
			return nil, err
		}
		return &IdempotencyReplay{
			StatusCode:  normalizeReplayStatus(record.StatusCode),
			ContentType: normalizeReplayContentType(record.ContentType),
			Body:        body,
		}, nil

	case IdempotencyStatusPending:
		// A claim older than the stale window belongs to a crashed request.
		// The reclaim is conditioned on the updated_at we read, so of N
		// concurrent retries exactly one wins the row.
		if time.Since(record.UpdatedAt) > stalePendingAge {
			tag, err := s.txManager.GetQuerier(ctx).Exec(ctx, `
				UPDATE sys_idempotency
				SET updated_at = $1, expires_at = GREATEST(expires_at, $2)
				WHERE tenant_id = $3 AND idempotency_key = $4 AND status = $5 AND updated_at = $6
			`, now, expiresAt, tenantID, key, IdempotencyStatusPending, record.UpdatedAt)
			if err != nil {
				return nil, fmt.Errorf("reclaim stale key: %w", err)
			}
			if tag.RowsAffected() == 1 {
				return nil, nil
			}
			// Another retry reclaimed it first.
			return nil, apperror.NewIdempotencyConflict(key)
		}
		// Key is actively being processed.
		return nil, apperror.NewIdempotencyConflict(key)
	}

	return nil, nil
}

// CompleteKey marks an idempotency key as completed with the HTTP response.
func (s *IdempotencyStore) CompleteKey(ctx context.Context, scope tenant.Scope, key string, statusCode int, contentType string, response any) error {
	return s.finishKey(ctx, scope, key, IdempotencyStatusSuccess, statusCode, contentType, response)
}

// FailKey marks an idempotency key as failed with the HTTP response, so a
// retry with the same key replays the failure instead of re-running the
// operation.
func (s *IdempotencyStore) FailKey(ctx context.Context, scope tenant.Scope, key string, statusCode int, contentType string, response any) error {
	return s.finishKey(ctx, scope, key, IdempotencyStatusFailed, statusCode, contentType, response)
}

// ReleaseKey drops a pending claim without recording an outcome. It is used
// for transient failures, where the client should be able to retry the same
// key immediately instead of replaying a cached error.
func (s *IdempotencyStore) ReleaseKey(ctx context.Context, scope tenant.Scope, key string) error {
	if err := scope.Validate(); err != nil {
		return err
	}
	_, err := s.txManager.GetQuerier(ctx).Exec(ctx, `
		DELETE FROM sys_idempotency
		WHERE tenant_id = $1 AND idempotency_key = $2 AND status = $3
	`, scope.TenantID().String(), key, IdempotencyStatusPending)
	if err != nil {
		return fmt.Errorf("release idempotency key: %w", err)
	}
	return nil
}

func (s *IdempotencyStore) finishKey(ctx context.Context, scope tenant.Scope, key string, status IdempotencyStatus, statusCode int, contentType string, response any) error {
	if err := scope.Validate(); err != nil {
		return err
	}

	var responseBytes []byte
	if response != nil {
		b, err := json.Marshal(response)
		if err != nil {
			// Best-effort: fall back to a minimal error body to keep the key consistent.
			b, _ = json.Marshal(map[string]string{"error": err.Error()})
		}
		responseBytes = b
	}

	algo := CompressionNone
	if len(responseBytes) > s.compressThreshold {
		responseBytes = s.encoder.EncodeAll(responseBytes, nil)
		algo = CompressionZstd
	}

	_, err := s.txManager.GetQuerier(ctx).Exec(ctx, `
		UPDATE sys_idempotency
		SET status = $1,
		    response = $2,
		    compression_algo = $3,
		    response_status = $4,
		    response_content_type = $5,
		    updated_at = $6
		WHERE tenant_id = $7 AND idempotency_key = $8
	`, status, responseBytes, algo, statusCode, contentType, time.Now().UTC(), scope.TenantID().String(), key)

	return err
}

func (s *IdempotencyStore) decompress(body []byte, algo CompressionAlgo) ([]byte, error) {
	if algo != CompressionZstd || len(body) == 0 {
		return body, nil
	}
	out, err := s.decoder.DecodeAll(body, nil)
	if err != nil {
		return nil, fmt.Errorf("decompress cached response: %w", err)
	}
	return out, nil
}

func normalizeReplayStatus(status int) int {
	// If older records exist without status, default to 200 for JSON bodies.
	if status == 0 {
		return 200
	}
	return status
}

func normalizeReplayContentType(ct string) string {
	if ct == "" {
		return "application/json"
	}
	return ct
}

// CleanupExpired removes expired idempotency records across all tenants.
// Run from a background janitor, not from the request path.
func (s *IdempotencyStore) CleanupExpired(ctx context.Context) (int64, error) {
	result, err := s.txManager.GetQuerier(ctx).Exec(ctx, `
		DELETE FROM sys_idempotency WHERE expires_at < $1
	`, time.Now().UTC())

	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}
