package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"retailops/internal/core/apperror"
	"retailops/internal/core/tenant"
)

// TenantHeader carries the acting tenant. It is set by the upstream
// gateway after authentication and trusted as-is.
const TenantHeader = "X-Tenant-ID"

const maxTenantIDLen = 64

// Tenant stores the tenant from TenantHeader in the request context.
// Requests without a tenant are rejected.
func Tenant() gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID := strings.TrimSpace(c.GetHeader(TenantHeader))
		if tenantID == "" {
			_ = c.Error(apperror.NewInvalidArgument("tenant is required").
				WithDetail("header", TenantHeader))
			c.Abort()
			return
		}
		if len(tenantID) > maxTenantIDLen || strings.ContainsAny(tenantID, ": \t") {
			_ = c.Error(apperror.NewInvalidArgument("invalid tenant id").
				WithDetail("header", TenantHeader))
			c.Abort()
			return
		}

		c.Request = c.Request.WithContext(tenant.WithID(c.Request.Context(), tenantID))
		c.Set("tenant_id", tenantID)

		c.Next()
	}
}
