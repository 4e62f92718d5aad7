package broker

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"assocproxy/pkg/tenants"
)

// clientCredentials authenticates with a pre-encoded Basic secret (non-production).
type clientCredentials struct {
	endpoint string
	scope    string
}

func NewClientCredentials(endpoint, scope string) GrantStrategy {
	return &clientCredentials{endpoint: endpoint, scope: scope}
}

func (c *clientCredentials) Name() string     { return "client_credentials" }
func (c *clientCredentials) Endpoint() string { return c.endpoint }

func (c *clientCredentials) Prepare(_ context.Context, client tenants.Client, _ time.Time) (url.Values, http.Header, error) {
	if client.AuthorizationKey == "" {
		return nil, nil, &ConfigurationError{Setting: "AUTHORIZATION_KEY", Msg: "client credentials grant needs a Basic secret"}
	}
	form := url.Values{"grant_type": {grantClientCredentials}}
	if c.scope != "" {
		form.Set("scope", c.scope)
	}
	h := http.Header{}
	h.Set("Authorization", "Basic "+client.AuthorizationKey)
	return form, h, nil
}
