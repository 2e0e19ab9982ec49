// Package tenant carries the acting tenant through request context.
// Every repository query is scoped by the tenant id stored here.
package tenant

import (
	"context"
	"strings"

	"retailops/internal/core/apperror"
)

type tenantKey struct{}

// WithID stores the tenant id in context.
func WithID(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, tenantKey{}, tenantID)
}

// ID returns the tenant id from context or empty string.
func ID(ctx context.Context) string {
	v, _ := ctx.Value(tenantKey{}).(string)
	return v
}

// Require returns the tenant id or an InvalidArgument error when none is set.
func Require(ctx context.Context) (string, error) {
	v := strings.TrimSpace(ID(ctx))
	if v == "" {
		return "", apperror.NewInvalidArgument("tenant is required")
	}
	return v, nil
}
