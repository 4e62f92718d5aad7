package authz

import (
	"context"
	"fmt"
	"os"

	"github.com/open-policy-agent/opa/rego"
)

const rolePolicyQuery = "data.proxy.authz.has_role"

// DefaultRolePolicy grants the role when any group carries its name.
const DefaultRolePolicy = `package proxy.authz

import rego.v1

default has_role := false

has_role if {
	some g in input.groups
	g.name == input.role
}
`

// RolePolicy evaluates the role gate. The module is compiled once.
type RolePolicy struct {
	query rego.PreparedEvalQuery
}

func NewRolePolicy(ctx context.Context, module string) (*RolePolicy, error) {
	pq, err := rego.New(
		rego.Query(rolePolicyQuery),
		rego.Module("role.rego", module),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("compile role policy: %w", err)
	}
	return &RolePolicy{query: pq}, nil
}

// LoadRolePolicy compiles the policy at path, or the built-in one when path is empty.
func LoadRolePolicy(ctx context.Context, path string) (*RolePolicy, error) {
	if path == "" {
		return NewRolePolicy(ctx, DefaultRolePolicy)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read role policy: %w", err)
	}
	return NewRolePolicy(ctx, string(b))
}

// HasRole reports whether groups grant role. Anything but a boolean true is a denial.
func (p *RolePolicy) HasRole(ctx context.Context, groups []Group, role string) (bool, error) {
	in := make([]any, 0, len(groups))
	for _, g := range groups {
		vars := g.Variables
		if vars == nil {
			vars = []any{}
		}
		in = append(in, map[string]any{"name": g.Name, "variables": vars})
	}
	rs, err := p.query.Eval(ctx, rego.EvalInput(map[string]any{"groups": in, "role": role}))
	if err != nil {
		return false, fmt.Errorf("evaluate role policy: %w", err)
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return false, nil
	}
	ok, _ := rs[0].Expressions[0].Value.(bool)
	return ok, nil
}
