// pkg/tenants/postgres.go
package tenants

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// pgProvider implements Provider backed by PostgreSQL.
type pgProvider struct {
	dbPool        *pgxpool.Pool      // Connection pool to PostgreSQL
	log           *zap.SugaredLogger // Logger for diagnostic output
	encryptionKey []byte
}

// NewPostgresProvider constructs a PostgreSQL-backed tenant client provider.
// encryptionKey decrypts stored authorization keys; it may be empty when secrets are stored in plain form.
func NewPostgresProvider(dbPool *pgxpool.Pool, log *zap.SugaredLogger, encryptionKey string) Provider {
	return &pgProvider{dbPool: dbPool, log: log, encryptionKey: []byte(encryptionKey)}
}

// EnsureSchema creates the tenant_clients table if it does not already exist.
// Safe to call repeatedly (idempotent).
func EnsureSchema(ctx context.Context, dbPool *pgxpool.Pool) error {
	_, err := dbPool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS tenant_clients (
  tenant_code text PRIMARY KEY,
  client_id text NOT NULL,
  authorization_key_encrypted bytea,
  key_dir text,
  updated_at timestamptz NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS tenant_clients_client_id_idx ON tenant_clients(client_id);
`)
	return err
}

// Seed upserts clients (typically loaded from TENANT_CLIENTS_FILE).
func Seed(ctx context.Context, dbPool *pgxpool.Pool, encryptionKey string, clients []Client) error {
	for _, c := range clients {
		var sealed []byte
		if c.AuthorizationKey != "" {
			s, err := sealSecret([]byte(c.AuthorizationKey), []byte(encryptionKey))
			if err != nil {
				return fmt.Errorf("seal secret for %s: %w", c.TenantCode, err)
			}
			sealed = s
		}
		if _, err := dbPool.Exec(ctx, `INSERT INTO tenant_clients(tenant_code, client_id, authorization_key_encrypted, key_dir)
		  VALUES ($1,$2,$3,$4)
		  ON CONFLICT (tenant_code) DO UPDATE SET client_id=EXCLUDED.client_id, authorization_key_encrypted=EXCLUDED.authorization_key_encrypted, key_dir=EXCLUDED.key_dir, updated_at=NOW()`,
			c.TenantCode, c.ClientID, sealed, c.KeyDir); err != nil {
			return fmt.Errorf("seed %s: %w", c.TenantCode, err)
		}
	}
	return nil
}

// ClientForTenant fetches the client configured for a tenant code.
func (p *pgProvider) ClientForTenant(ctx context.Context, tenantCode string) (Client, error) {
	row := p.dbPool.QueryRow(ctx, `SELECT tenant_code, client_id, authorization_key_encrypted, COALESCE(key_dir,'') FROM tenant_clients WHERE tenant_code=$1`, tenantCode)
	return p.scan(row)
}

// ClientByKey fetches a client by client id (the token cache key).
func (p *pgProvider) ClientByKey(ctx context.Context, key TenantKey) (Client, error) {
	row := p.dbPool.QueryRow(ctx, `SELECT tenant_code, client_id, authorization_key_encrypted, COALESCE(key_dir,'') FROM tenant_clients WHERE client_id=$1 ORDER BY tenant_code LIMIT 1`, string(key))
	return p.scan(row)
}

func (p *pgProvider) scan(row pgx.Row) (Client, error) {
	var c Client
	var sealed []byte
	if err := row.Scan(&c.TenantCode, &c.ClientID, &sealed, &c.KeyDir); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Client{}, ErrClientNotFound
		}
		return Client{}, fmt.Errorf("tenant client lookup: %w", err)
	}
	plain, err := openSecret(sealed, p.encryptionKey)
	if err != nil {
		p.log.Warnw("tenant client secret unreadable", "tenant", c.TenantCode, "err", err)
		return Client{}, fmt.Errorf("tenant %s: %w", c.TenantCode, err)
	}
	c.AuthorizationKey = string(plain)
	return c, nil
}
