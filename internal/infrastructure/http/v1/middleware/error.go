package middleware

import (
	"github.com/gin-gonic/gin"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/tenant"
	"stockledger/internal/infrastructure/storage/postgres"
	"stockledger/pkg/logger"
)

// ErrorHandler middleware transforms errors into consistent JSON responses.
// Hides internal errors from clients while logging full details.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		// Check for errors
		if len(c.Errors) == 0 {
			return
		}

		// Get last error
		err := c.Errors.Last().Err

		// If response already written by handler, do not override it.
		if c.Writer.Written() {
			return
		}

		// Try to extract AppError
		if appErr, ok := apperror.AsAppError(err); ok {
			// Log internal error if present
			if appErr.Err != nil {
				logger.Error(c.Request.Context(), "request error",
					"code", appErr.Code,
					"cause", appErr.Err,
				)
			}

			body := gin.H{
				"code":    appErr.Code,
				"message": appErr.Message,
				"details": appErr.Details,
			}

			if isTransientCode(appErr.Code) {
				releaseIdempotency(c)
			} else {
				failIdempotency(c, appErr.HTTPStatus, body)
			}
			c.JSON(appErr.HTTPStatus, body)
			return
		}

		// Unknown error - log and return generic message
		logger.Error(c.Request.Context(), "unhandled error",
			"error", err,
		)

		body := gin.H{
			"code":    apperror.CodeInternal,
			"message": "Internal server error",
			"details": map[string]any{
				"request_id": c.GetString("request_id"),
			},
		}

		// Unknown failures are treated as transient: the key is released so
		// the client can retry instead of replaying an opaque 500.
		releaseIdempotency(c)
		c.JSON(500, body)
	}
}

// isTransientCode reports whether an error code describes a condition that a
// plain retry of the same request may resolve. Caching such responses under
// the idempotency key would pin the client to a stale failure.
func isTransientCode(code string) bool {
	return code == apperror.CodeStorageConflict
}

// failIdempotency records the error response under the request's idempotency
// key (best-effort), so a retry replays the failure instead of re-running.
func failIdempotency(c *gin.Context, status int, body any) {
	s, key, scope, ok := idempotencyClaim(c)
	if !ok {
		return
	}
	_ = s.FailKey(c.Request.Context(), scope, key, status, "application/json", body)
}

// releaseIdempotency drops the pending claim so the same key can be retried.
func releaseIdempotency(c *gin.Context) {
	s, key, scope, ok := idempotencyClaim(c)
	if !ok {
		return
	}
	_ = s.ReleaseKey(c.Request.Context(), scope, key)
}

func idempotencyClaim(c *gin.Context) (*postgres.IdempotencyStore, string, tenant.Scope, bool) {
	key, exists := c.Get("idempotency_key")
	if !exists {
		return nil, "", tenant.Scope{}, false
	}
	store, ok := c.Get("idempotency_store")
	if !ok {
		return nil, "", tenant.Scope{}, false
	}
	s, ok := store.(*postgres.IdempotencyStore)
	if !ok || s == nil {
		return nil, "", tenant.Scope{}, false
	}
	scope, err := tenant.ScopeFromContext(c.Request.Context())
	if err != nil {
		return nil, "", tenant.Scope{}, false
	}
	return s, key.(string), scope, true
}
