package broker

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// SafetyMargin is subtracted from the token lifetime so a token is never used right before it expires.
const SafetyMargin = 60 * time.Second

// CachedToken is an access token together with the moment it was requested.
type CachedToken struct {
	AccessToken string    `json:"access_token"`
	IssuedAt    time.Time `json:"issued_at"`
	ExpiresIn   int       `json:"expires_in"`
}

// ExpiresAt is the hard expiry reported by the token endpoint.
func (t CachedToken) ExpiresAt() time.Time {
	return t.IssuedAt.Add(time.Duration(t.ExpiresIn) * time.Second)
}

// Usable reports whether the token may still be handed out at now.
func (t CachedToken) Usable(now time.Time) bool {
	if t.AccessToken == "" || t.ExpiresIn <= 0 || t.IssuedAt.IsZero() {
		return false
	}
	return now.Before(t.ExpiresAt().Add(-SafetyMargin))
}

// tokenResponse is the RFC 6749 section 5.1 success body.
type tokenResponse struct {
	AccessToken string  `json:"access_token"`
	TokenType   string  `json:"token_type"`
	ExpiresIn   seconds `json:"expires_in"`
	Scope       string  `json:"scope"`
}

// seconds accepts expires_in as a JSON number or a numeric string.
type seconds int

func (s *seconds) UnmarshalJSON(b []byte) error {
	var n json.Number
	if len(b) > 0 && b[0] == '"' {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		n = json.Number(str)
	} else if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	i, err := strconv.ParseFloat(string(n), 64)
	if err != nil {
		return fmt.Errorf("expires_in: %w", err)
	}
	*s = seconds(i)
	return nil
}
