// pkg/middleware/tenant.go
package middleware

import (
	"context"
)

type ctxTenantKey struct{}

// WithTenantCode stores the caller's resolved tenant code.
func WithTenantCode(ctx context.Context, code string) context.Context {
	return context.WithValue(ctx, ctxTenantKey{}, code)
}

func TenantCodeFrom(ctx context.Context) string {
	s, _ := ctx.Value(ctxTenantKey{}).(string)
	return s
}
