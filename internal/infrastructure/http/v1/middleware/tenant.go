package middleware

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
	"stockledger/internal/core/tenant"
	"stockledger/internal/domain/auth"
	"stockledger/pkg/logger"
)

const (
	// TenantHeader is the HTTP header for tenant identification.
	TenantHeader = "X-Tenant-ID"
)

// TenantScope middleware resolves the tenant for the request and injects a
// validated Scope into the context. It MUST run before any handler touching
// tenant-owned data; a request it cannot bind to a tenant never reaches one.
//
// Resolution order:
//  1. Bearer token with a tenant claim (when a token service is configured)
//  2. X-Tenant-ID header
//
// When both are present they must agree.
func TenantScope(registry tenant.Registry, tokens *auth.TokenService) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		tokenTenantID, err := tenantFromToken(c, tokens)
		if err != nil {
			_ = c.Error(err)
			c.Abort()
			return
		}

		headerTenantID, err := tenantFromHeader(c)
		if err != nil {
			_ = c.Error(err)
			c.Abort()
			return
		}

		var tenantID id.ID
		switch {
		case !id.IsNil(tokenTenantID) && !id.IsNil(headerTenantID):
			if tokenTenantID != headerTenantID {
				_ = c.Error(
					apperror.NewTenantMismatch("request", headerTenantID.String()).
						WithDetail("token_tenant_id", tokenTenantID.String()),
				)
				c.Abort()
				return
			}
			tenantID = tokenTenantID
		case !id.IsNil(tokenTenantID):
			tenantID = tokenTenantID
		case !id.IsNil(headerTenantID):
			tenantID = headerTenantID
		default:
			_ = c.Error(apperror.NewTenantRequired().WithDetail("header", TenantHeader))
			c.Abort()
			return
		}

		// Verify the tenant exists and is active before scoping.
		if _, err := registry.ResolveActive(ctx, tenantID); err != nil {
			logger.Warn(ctx, "tenant resolution failed", "tenant_id", tenantID, "error", err)

			switch {
			case errors.Is(err, tenant.ErrTenantNotFound):
				_ = c.Error(apperror.NewNotFound("tenant", tenantID.String()))
			case errors.Is(err, tenant.ErrTenantNotActive):
				_ = c.Error(apperror.NewTenantRequired().
					WithDetail("reason", "tenant is not active").
					WithDetail("tenant_id", tenantID.String()))
			default:
				_ = c.Error(apperror.NewInternal(err).WithDetail("tenant_id", tenantID.String()))
			}
			c.Abort()
			return
		}

		scope, err := tenant.NewScope(tenantID)
		if err != nil {
			_ = c.Error(err)
			c.Abort()
			return
		}

		c.Request = c.Request.WithContext(tenant.WithScope(ctx, scope))
		c.Set("tenant_id", tenantID.String())

		c.Next()
	}
}

func tenantFromToken(c *gin.Context, tokens *auth.TokenService) (id.ID, error) {
	if tokens == nil {
		return id.Nil(), nil
	}

	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return id.Nil(), nil
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return id.Nil(), apperror.NewValidation("invalid authorization header format")
	}

	tenantID, err := tokens.ValidateToken(parts[1])
	if err != nil {
		return id.Nil(), apperror.NewTenantRequired().
			WithDetail("reason", "invalid tenant token")
	}
	return tenantID, nil
}

func tenantFromHeader(c *gin.Context) (id.ID, error) {
	raw := c.GetHeader(TenantHeader)
	if raw == "" {
		return id.Nil(), nil
	}

	tenantID, err := id.Parse(raw)
	if err != nil {
		return id.Nil(), apperror.NewValidation("invalid tenant id").
			WithDetail("header", TenantHeader).
			WithDetail("value", raw)
	}
	return tenantID, nil
}
