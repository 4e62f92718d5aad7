package tenants

import (
	"context"
	"errors"
)

var ErrClientNotFound = errors.New("tenant client not found")

type Provider interface {
	// Resolve the upstream client configured for a tenant code.
	ClientForTenant(ctx context.Context, tenantCode string) (Client, error)
	// Resolve a client by its token cache key.
	ClientByKey(ctx context.Context, key TenantKey) (Client, error)
}
