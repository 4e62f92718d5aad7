package broker

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"assocproxy/pkg/tenants"
)

// AssertionLifetime bounds the client assertion's exp claim.
const AssertionLifetime = 9 * time.Minute

// jwtBearer authenticates with an RS256 client assertion (production).
type jwtBearer struct {
	endpoint string
	audience string
	scope    string
	keyDir   string
}

// NewJWTBearer builds the private-key JWT strategy. keyDir is used for clients without their own key directory.
func NewJWTBearer(endpoint, audience, scope, keyDir string) GrantStrategy {
	return &jwtBearer{endpoint: endpoint, audience: audience, scope: scope, keyDir: keyDir}
}

func (j *jwtBearer) Name() string     { return "jwt_bearer" }
func (j *jwtBearer) Endpoint() string { return j.endpoint }

func (j *jwtBearer) Prepare(_ context.Context, client tenants.Client, now time.Time) (url.Values, http.Header, error) {
	assertion, err := j.Assertion(client, now)
	if err != nil {
		return nil, nil, err
	}
	form := url.Values{
		"grant_type":            {grantClientCredentials},
		"client_assertion_type": {assertionTypeJWTBearer},
		"client_assertion":      {assertion},
	}
	if j.scope != "" {
		form.Set("scope", j.scope)
	}
	h := http.Header{}
	h.Set("Accept", "application/json")
	return form, h, nil
}

// Assertion signs iss=sub=client id, aud, iat, exp=iat+9m and a fresh jti.
func (j *jwtBearer) Assertion(client tenants.Client, now time.Time) (string, error) {
	if client.ClientID == "" {
		return "", &ConfigurationError{Setting: "CLIENT_ID", Msg: "jwt bearer grant needs a client id"}
	}
	if j.audience == "" {
		return "", &ConfigurationError{Setting: "AUD", Msg: "jwt bearer grant needs an audience"}
	}
	dir := client.KeyDir
	if dir == "" {
		dir = j.keyDir
	}
	key, err := LoadSigningKey(dir)
	if err != nil {
		return "", err
	}
	iat := now.Truncate(time.Second)
	tok, err := jwt.NewBuilder().
		Issuer(client.ClientID).
		Subject(client.ClientID).
		Audience([]string{j.audience}).
		IssuedAt(iat).
		Expiration(iat.Add(AssertionLifetime)).
		JwtID(uuid.NewString()).
		Build()
	if err != nil {
		return "", fmt.Errorf("build assertion: %w", err)
	}
	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.RS256, key))
	if err != nil {
		return "", fmt.Errorf("sign assertion: %w", err)
	}
	return string(signed), nil
}
