package authz

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// GroupsHeader carries the caller's allowed groups as a JSON array.
const GroupsHeader = "mu-auth-allowed-groups"

var (
	ErrGroupsMissing  = errors.New("missing " + GroupsHeader + " header")
	ErrGroupsNotArray = errors.New(GroupsHeader + " header is not an array")
)

// Group is one entry of the allowed-groups header, e.g. {"name":"verenigingen-beheerder","variables":[]}.
type Group struct {
	Name      string `json:"name"`
	Variables []any  `json:"variables,omitempty"`
}

// GroupsParseError wraps a header that is not valid group JSON.
type GroupsParseError struct {
	Err error
}

func (e *GroupsParseError) Error() string {
	return fmt.Sprintf("parse %s header: %v", GroupsHeader, e.Err)
}

func (e *GroupsParseError) Unwrap() error { return e.Err }

// ParseGroups decodes the allowed-groups header into typed groups.
func ParseGroups(header string) ([]Group, error) {
	raw := bytes.TrimSpace([]byte(header))
	if len(raw) == 0 {
		return nil, ErrGroupsMissing
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, &GroupsParseError{Err: err}
	}
	if _, ok := doc.([]any); !ok {
		return nil, ErrGroupsNotArray
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, &GroupsParseError{Err: err}
	}
	groups := make([]Group, 0, len(items))
	for i, it := range items {
		it = bytes.TrimSpace(it)
		if len(it) == 0 || it[0] != '{' {
			return nil, &GroupsParseError{Err: fmt.Errorf("element %d is not a group object", i)}
		}
		var g Group
		if err := json.Unmarshal(it, &g); err != nil {
			return nil, &GroupsParseError{Err: fmt.Errorf("element %d: %w", i, err)}
		}
		groups = append(groups, g)
	}
	return groups, nil
}
