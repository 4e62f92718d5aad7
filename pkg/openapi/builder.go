package openapi

import (
	"encoding/json"
	"net/http"
	"regexp"
	"sort"
	"strings"
)

// Operation is one forwarded route surfaced in the document.
type Operation struct {
	Method      string         `json:"method"`
	Path        string         `json:"path"`
	Summary     string         `json:"summary,omitempty"`
	Description string         `json:"description,omitempty"`
	Tags        []string       `json:"tags,omitempty"`
	RequestBody any            `json:"requestBody,omitempty"`
	Responses   map[string]any `json:"responses"`
}

type Registry struct {
	Ops []Operation
}

func NewRegistry() *Registry { return &Registry{Ops: []Operation{}} }

func (r *Registry) Register(op Operation) {
	if op.Method != "" {
		op.Method = strings.ToLower(op.Method)
	}
	r.Ops = append(r.Ops, op)
}

var pathParam = regexp.MustCompile(`\{([^}:]+)(:[^}]*)?\}`)

// Build produces an OpenAPI 3.1 document for the registered operations. Path parameters
// are declared from the {name} segments of each path. Callers authenticate with the
// session and allowed-groups headers set by the identity layer in front of the proxy.
func (r *Registry) Build(serviceName, version string) map[string]any {
	paths := map[string]any{}
	for _, op := range r.Ops {
		p := pathParam.ReplaceAllString(op.Path, "{$1}")
		if _, ok := paths[p]; !ok {
			paths[p] = map[string]any{}
		}
		m := map[string]any{
			"summary":   op.Summary,
			"tags":      op.Tags,
			"responses": op.Responses,
		}
		if op.Description != "" {
			m["description"] = op.Description
		}
		if params := parameters(p); len(params) > 0 {
			m["parameters"] = params
		}
		if op.RequestBody != nil {
			m["requestBody"] = op.RequestBody
		}
		paths[p].(map[string]any)[op.Method] = m
	}
	return map[string]any{
		"openapi": "3.1.0",
		"info":    map[string]any{"title": serviceName, "version": version},
		"paths":   paths,
		"components": map[string]any{
			"securitySchemes": map[string]any{
				"session": map[string]any{"type": "apiKey", "in": "header", "name": "mu-session-id"},
				"groups":  map[string]any{"type": "apiKey", "in": "header", "name": "mu-auth-allowed-groups"},
			},
		},
		"security": []map[string]any{{"session": []string{}, "groups": []string{}}},
	}
}

func parameters(path string) []map[string]any {
	var out []map[string]any
	for _, m := range pathParam.FindAllStringSubmatch(path, -1) {
		out = append(out, map[string]any{
			"name":     m[1],
			"in":       "path",
			"required": true,
			"schema":   map[string]any{"type": "string"},
		})
	}
	return out
}

// Paths lists the registered paths in sorted order.
func (r *Registry) Paths() []string {
	seen := map[string]struct{}{}
	for _, op := range r.Ops {
		seen[pathParam.ReplaceAllString(op.Path, "{$1}")] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for p := range seen {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// ServeHandler returns an HTTP handler that serves the built OpenAPI JSON.
func (r *Registry) ServeHandler(serviceName, version string) http.HandlerFunc {
	doc := r.Build(serviceName, version)
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Access-Control-Allow-Origin", "*")
		_ = json.NewEncoder(w).Encode(doc)
	}
}
