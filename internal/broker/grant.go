package broker

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"assocproxy/pkg/config"
	"assocproxy/pkg/tenants"
)

const (
	grantClientCredentials = "client_credentials"
	assertionTypeJWTBearer = "urn:ietf:params:oauth:client-assertion-type:jwt-bearer"
)

// GrantStrategy prepares the token request for one OAuth grant protocol.
// The strategy is chosen once at startup; it is never re-evaluated per call.
type GrantStrategy interface {
	// Name is used in logs and metrics.
	Name() string
	// Endpoint is the token endpoint URL.
	Endpoint() string
	// Prepare returns the form body and extra headers for a token request on behalf of client.
	Prepare(ctx context.Context, client tenants.Client, now time.Time) (url.Values, http.Header, error)
}

// NewStrategy selects the grant protocol for the deployment mode.
func NewStrategy(cfg config.Config) GrantStrategy {
	if cfg.Production() {
		return NewJWTBearer(
			"https://"+strings.TrimRight(cfg.AuthDomain, "/")+"/op/v1/token",
			cfg.Audience, cfg.Scope, cfg.KeyDir,
		)
	}
	return NewClientCredentials(cfg.Audience+"/v1/token", cfg.Scope)
}
