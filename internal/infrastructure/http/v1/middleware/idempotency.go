package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/tenant"
	"stockledger/internal/infrastructure/metrics"
	"stockledger/internal/infrastructure/storage/postgres"
)

const HeaderIdempotencyKey = "X-Idempotency-Key"
const maxIdempotencyBodyBytes = 1 << 20 // 1 MiB

// Idempotency middleware protects mutating endpoints against duplicate
// submission. A client-supplied X-Idempotency-Key is used when present;
// otherwise a key is derived from the request itself, so an identical retry
// replays the first outcome even without client cooperation.
//
// Runs after TenantScope: keys are tenant-scoped, the same key string from
// two tenants never collides.
func Idempotency(store *postgres.IdempotencyStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Only apply to mutating methods
		if c.Request.Method != http.MethodPost &&
			c.Request.Method != http.MethodPut &&
			c.Request.Method != http.MethodPatch {
			c.Next()
			return
		}

		scope, err := tenant.ScopeFromContext(c.Request.Context())
		if err != nil {
			_ = c.Error(err)
			c.Abort()
			return
		}

		// Hash request body
		limited := io.LimitReader(c.Request.Body, maxIdempotencyBodyBytes+1)
		body, _ := io.ReadAll(limited)
		if len(body) > maxIdempotencyBodyBytes {
			appErr := apperror.NewValidation("request body too large for idempotency")
			appErr.HTTPStatus = http.StatusRequestEntityTooLarge
			_ = c.Error(appErr.WithDetail("max_bytes", maxIdempotencyBodyBytes))
			c.Abort()
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))
		hash := sha256.Sum256(body)
		requestHash := hex.EncodeToString(hash[:])

		// Operation name from route
		operation := c.Request.Method + " " + c.FullPath()

		key := c.GetHeader(HeaderIdempotencyKey)
		if key == "" {
			// An empty body carries no request identity: every call to the
			// route would derive the same key and replay the first outcome.
			// Such requests (e.g. report triggers) are not deduplicated.
			if len(body) == 0 {
				c.Next()
				return
			}
			// Derived key: identical request body on the same route maps
			// to the same key.
			derived := sha256.Sum256([]byte(operation + "\n" + requestHash))
			key = "derived:" + hex.EncodeToString(derived[:])
		}

		// Try to acquire key
		replay, err := store.AcquireKey(c.Request.Context(), scope, key, operation, requestHash)
		if err != nil {
			if appErr, ok := apperror.AsAppError(err); ok {
				_ = c.Error(appErr)
				c.Abort()
				return
			}
			_ = c.Error(apperror.NewInternal(err).WithDetail("component", "idempotency"))
			c.Abort()
			return
		}

		// Return cached response if exists
		if replay != nil {
			metrics.IdempotencyReplays.WithLabelValues(c.FullPath()).Inc()
			c.Data(replay.StatusCode, replay.ContentType, replay.Body)
			c.Abort()
			return
		}

		// Store key for completion
		c.Set("idempotency_key", key)
		c.Set("idempotency_store", store)

		c.Next()
	}
}
