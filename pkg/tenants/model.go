package tenants

// TenantKey identifies an upstream OAuth client. Tokens are cached per key.
type TenantKey string

// Client is the upstream OAuth client configured for a tenant (administrative unit).
type Client struct {
	TenantCode       string    `json:"tenant_code" yaml:"tenant_code"` // e.g. OVO000123; empty for the static default client
	ClientID         string    `json:"client_id" yaml:"client_id"`
	AuthorizationKey string    `json:"authorization_key,omitempty" yaml:"authorization_key,omitempty"` // Basic secret for the client-credentials grant
	KeyDir           string    `json:"key_dir,omitempty" yaml:"key_dir,omitempty"`                     // directory holding the RS256 private key (*.pem)
	Key              TenantKey `json:"-" yaml:"-"`
}

// CacheKey returns the token cache key of the client.
func (c Client) CacheKey() TenantKey {
	if c.Key != "" {
		return c.Key
	}
	return TenantKey(c.ClientID)
}
