package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"assocproxy/internal/authz"
	"assocproxy/pkg/middleware"
	"assocproxy/pkg/problems"
)

// Authorizer decides whether a session with the given group claims may use the proxy
// and maps the session to the tenant it acts for.
type Authorizer interface {
	Authorize(ctx context.Context, session, groupsHeader string) authz.Decision
	ResolveTenant(ctx context.Context, session string) (string, error)
}

// SessionAuth rejects requests whose session fails authorization with 401
// {"error":"Unauthorized","detail":...}. Allowed requests carry the tenant code in their
// context; it is resolved here when the decision did not already carry one.
func SessionAuth(a Authorizer, log *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			session := r.Header.Get(authz.SessionHeader)
			d := a.Authorize(ctx, session, r.Header.Get(authz.GroupsHeader))
			if !d.Authorized {
				log.Infow("authorization failed", "detail", d.Detail, "path", r.URL.Path, "request_id", middleware.RequestIDFrom(ctx))
				WriteUnauthorized(w, d.Detail)
				return
			}

			code := d.TenantCode
			if code == "" {
				var err error
				if code, err = a.ResolveTenant(ctx, session); err != nil {
					tenantError(w, r, log, err)
					return
				}
			}
			next.ServeHTTP(w, r.WithContext(middleware.WithTenantCode(ctx, code)))
		})
	}
}

// tenantError answers 401 for sessions without exactly one tenant and 502 when the
// query service fails.
func tenantError(w http.ResponseWriter, r *http.Request, log *zap.SugaredLogger, err error) {
	reqID := middleware.RequestIDFrom(r.Context())
	switch {
	case errors.Is(err, context.Canceled):
		log.Infow("request cancelled", "path", r.URL.Path, "request_id", reqID)
	case errors.Is(err, authz.ErrNoSession):
		log.Infow("tenant resolution failed", "err", err, "path", r.URL.Path, "request_id", reqID)
		WriteUnauthorized(w, "No session ID found in request headers")
	case errors.Is(err, authz.ErrNotFound), errors.Is(err, authz.ErrAmbiguousMapping):
		log.Warnw("tenant resolution failed", "err", err, "path", r.URL.Path, "request_id", reqID)
		WriteUnauthorized(w, "Tenant resolution failed: "+err.Error())
	default:
		log.Errorw("tenant resolution failed", "err", err, "path", r.URL.Path, "request_id", reqID)
		problems.Write(w, http.StatusBadGateway, "tenant-resolution-failed", "Bad Gateway", err.Error())
	}
}

func WriteUnauthorized(w http.ResponseWriter, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": "Unauthorized", "detail": detail})
}
