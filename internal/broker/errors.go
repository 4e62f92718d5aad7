package broker

import (
	"errors"
	"fmt"
)

var (
	ErrConfiguration = errors.New("token broker misconfigured")
	ErrKeyNotFound   = errors.New("private key not found")
	ErrTokenFetch    = errors.New("failed to fetch access token")
)

// ConfigurationError reports a missing secret or setting required by the grant protocol.
type ConfigurationError struct {
	Setting string
	Msg     string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s is required but not defined: %s", e.Setting, e.Msg)
}

func (e *ConfigurationError) Is(target error) bool { return target == ErrConfiguration }

// KeyNotFoundError reports that no usable *.pem file exists in the key directory.
type KeyNotFoundError struct {
	Dir    string
	Reason string
}

func (e *KeyNotFoundError) Error() string {
	return fmt.Sprintf("no private key in %s: %s", e.Dir, e.Reason)
}

func (e *KeyNotFoundError) Is(target error) bool {
	return target == ErrKeyNotFound || target == ErrConfiguration
}

// TokenFetchError carries the token endpoint's status and body. Status is 0 on transport failures.
type TokenFetchError struct {
	Status int
	Body   string
	Err    error
}

func (e *TokenFetchError) Error() string {
	switch {
	case e.Err != nil && e.Status == 0:
		return fmt.Sprintf("failed to fetch access token: %v", e.Err)
	case e.Err != nil:
		return fmt.Sprintf("failed to fetch access token: %d: %v", e.Status, e.Err)
	default:
		return fmt.Sprintf("failed to fetch access token: %d", e.Status)
	}
}

func (e *TokenFetchError) Unwrap() error { return e.Err }

func (e *TokenFetchError) Is(target error) bool { return target == ErrTokenFetch }
