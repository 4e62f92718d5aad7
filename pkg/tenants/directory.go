package tenants

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// DefaultKey is used for the static client when no CLIENT_ID is configured.
const DefaultKey TenantKey = "default"

// Directory maps tenant codes to token cache keys and keys back to client credentials.
// Tenants without a dedicated client share the static default client.
type Directory struct {
	prov Provider
	def  Client
	log  *zap.SugaredLogger
}

func NewDirectory(prov Provider, def Client, log *zap.SugaredLogger) *Directory {
	if def.Key == "" && def.ClientID == "" {
		def.Key = DefaultKey
	}
	if prov == nil {
		prov = NewMemoryProvider(log)
	}
	return &Directory{prov: prov, def: def, log: log}
}

func (d *Directory) Default() Client { return d.def }

// KeyFor returns the cache key of the client acting for tenantCode.
func (d *Directory) KeyFor(ctx context.Context, tenantCode string) (TenantKey, error) {
	if tenantCode != "" {
		c, err := d.prov.ClientForTenant(ctx, tenantCode)
		switch {
		case err == nil:
			return c.CacheKey(), nil
		case !errors.Is(err, ErrClientNotFound):
			return "", err
		}
	}
	return d.def.CacheKey(), nil
}

// Client returns the credentials behind key.
func (d *Directory) Client(ctx context.Context, key TenantKey) (Client, error) {
	if key == d.def.CacheKey() {
		return d.def, nil
	}
	return d.prov.ClientByKey(ctx, key)
}
