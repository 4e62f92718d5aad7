package authz

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNoSession        = errors.New("no session id in request headers")
	ErrNotFound         = errors.New("no tenant for session")
	ErrAmbiguousMapping = errors.New("multiple tenants for session")
)

// NotFoundError means the session resolved to zero tenant codes.
type NotFoundError struct {
	Prefix string
}

func (e *NotFoundError) Error() string {
	if e.Prefix == "" {
		return "no tenant found for session"
	}
	return fmt.Sprintf("no tenant with a %s identifier found for session", e.Prefix)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// AmbiguousMappingError means the session resolved to more than one tenant code.
// It points at inconsistent data in the organisation graph.
type AmbiguousMappingError struct {
	Codes []string
}

func (e *AmbiguousMappingError) Error() string {
	return "multiple tenants found for session: " + strings.Join(e.Codes, ", ")
}

func (e *AmbiguousMappingError) Is(target error) bool { return target == ErrAmbiguousMapping }
