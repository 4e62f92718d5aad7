package gateway

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"assocproxy/pkg/openapi"
)

// Route is one forwarded verb and path.
type Route struct {
	Method  string
	Path    string
	Summary string
	Tag     string
}

var Routes = []Route{
	{Method: http.MethodGet, Path: "/verenigingen/{vCode}", Summary: "Read an association", Tag: "verenigingen"},

	{Method: http.MethodPost, Path: "/verenigingen/{vCode}/contactgegevens", Summary: "Add contact details", Tag: "contactgegevens"},
	{Method: http.MethodPatch, Path: "/verenigingen/{vCode}/contactgegevens/{id}", Summary: "Update contact details", Tag: "contactgegevens"},
	{Method: http.MethodDelete, Path: "/verenigingen/{vCode}/contactgegevens/{id}", Summary: "Remove contact details", Tag: "contactgegevens"},

	{Method: http.MethodPost, Path: "/verenigingen/{vCode}/locaties", Summary: "Add a location", Tag: "locaties"},
	{Method: http.MethodPatch, Path: "/verenigingen/{vCode}/locaties/{id}", Summary: "Update a location", Tag: "locaties"},
	{Method: http.MethodDelete, Path: "/verenigingen/{vCode}/locaties/{id}", Summary: "Remove a location", Tag: "locaties"},

	{Method: http.MethodPost, Path: "/verenigingen/{vCode}/vertegenwoordigers", Summary: "Add a representative", Tag: "vertegenwoordigers"},
	{Method: http.MethodPatch, Path: "/verenigingen/{vCode}/vertegenwoordigers/{id}", Summary: "Update a representative", Tag: "vertegenwoordigers"},
	{Method: http.MethodDelete, Path: "/verenigingen/{vCode}/vertegenwoordigers/{id}", Summary: "Remove a representative", Tag: "vertegenwoordigers"},
}

// Register mounts the health endpoints, the OpenAPI document and the forwarded route table.
func (g *Gateway) Register(r chi.Router) {
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})
	r.Get("/healthz/auth", g.authHealth)
	r.Get("/.well-known/openapi.json", Document().ServeHandler("verenigingen-proxy", "v1"))

	r.Group(func(pr chi.Router) {
		pr.Use(SessionAuth(g.authorizer, g.log))
		for _, rt := range Routes {
			pr.Method(rt.Method, rt.Path, http.HandlerFunc(g.Forward))
		}
	})
}

// Document describes the forwarded routes.
func Document() *openapi.Registry {
	reg := openapi.NewRegistry()
	for _, rt := range Routes {
		op := openapi.Operation{
			Method:  rt.Method,
			Path:    rt.Path,
			Summary: rt.Summary,
			Tags:    []string{rt.Tag},
			Responses: map[string]any{
				"200": map[string]any{"description": "Upstream response, relayed"},
				"401": map[string]any{"description": "Session not authorized"},
				"502": map[string]any{"description": "Token endpoint or association API unavailable"},
			},
		}
		if rt.Method != http.MethodGet && rt.Method != http.MethodDelete {
			op.RequestBody = map[string]any{
				"content": map[string]any{"application/json": map[string]any{"schema": map[string]any{"type": "object"}}},
			}
		}
		reg.Register(op)
	}
	return reg
}

func (g *Gateway) authHealth(w http.ResponseWriter, _ *http.Request) {
	if g.health == nil {
		writeJSON(w, http.StatusOK, map[string]any{"status": "unknown", "lastChecked": time.Time{}})
		return
	}
	h := g.health.Health()
	status := http.StatusOK
	if h.Status == "unhealthy" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, h)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
