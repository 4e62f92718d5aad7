// Package authz turns a session handle and group claims into an authorization decision.
package authz

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"assocproxy/pkg/config"
	"assocproxy/pkg/metrics"
	"assocproxy/pkg/sparql"
	"assocproxy/pkg/ttlcache"
)

// SessionHeader carries the caller's session handle.
const SessionHeader = "mu-session-id"

const (
	cacheSessionTenant   = "session_tenant"
	cacheTenantAgreement = "tenant_agreement"
)

// Decision is produced fresh for every call and never cached. TenantCode is set
// only when a gate resolved it.
type Decision struct {
	Authorized bool   `json:"authorized"`
	Detail     string `json:"detail"`
	TenantCode string `json:"tenantCode,omitempty"`
}

type Settings struct {
	EditorRole        string
	TenantPrefix      string
	SessionGraph      string
	OrganisationGraph string
	AgreementGraph    string
	AgreementCheck    bool
	CacheTTL          time.Duration
	SweepInterval     time.Duration
}

func SettingsFromConfig(cfg config.Config) Settings {
	return Settings{
		EditorRole:        cfg.EditorRole,
		TenantPrefix:      cfg.TenantIdentifierPrefix,
		SessionGraph:      cfg.SessionGraph,
		OrganisationGraph: cfg.OrganisationGraph,
		AgreementGraph:    cfg.ProcessingAgreementGraph,
		AgreementCheck:    cfg.EnableProcessingAgreementCheck,
		CacheTTL:          cfg.CacheTTL,
		SweepInterval:     cfg.CacheSweepInterval,
	}
}

type Resolver struct {
	exec     sparql.Executor
	settings Settings
	roles    *RolePolicy
	log      *zap.SugaredLogger
	nowFunc  func() time.Time

	tenants    *ttlcache.Cache[string, string]
	agreements *ttlcache.Cache[string, bool]
}

type Option func(*Resolver)

func WithLogger(log *zap.SugaredLogger) Option {
	return func(r *Resolver) {
		if log != nil {
			r.log = log
		}
	}
}

func WithRolePolicy(p *RolePolicy) Option {
	return func(r *Resolver) {
		if p != nil {
			r.roles = p
		}
	}
}

// WithNowFunc sets the clock of both caches.
func WithNowFunc(now func() time.Time) Option {
	return func(r *Resolver) {
		if now != nil {
			r.nowFunc = now
		}
	}
}

// WithTenantCache replaces the session to tenant code cache.
func WithTenantCache(c *ttlcache.Cache[string, string]) Option {
	return func(r *Resolver) { r.tenants = c }
}

// WithAgreementCache replaces the tenant code to agreement cache.
func WithAgreementCache(c *ttlcache.Cache[string, bool]) Option {
	return func(r *Resolver) { r.agreements = c }
}

func NewResolver(ctx context.Context, exec sparql.Executor, settings Settings, opts ...Option) (*Resolver, error) {
	r := &Resolver{
		exec:     exec,
		settings: settings,
		log:      zap.NewNop().Sugar(),
		nowFunc:  time.Now,
	}
	for _, o := range opts {
		o(r)
	}
	if r.roles == nil {
		p, err := NewRolePolicy(ctx, DefaultRolePolicy)
		if err != nil {
			return nil, err
		}
		r.roles = p
	}
	if r.tenants == nil {
		r.tenants = ttlcache.New(
			ttlcache.WithTTL[string, string](settings.CacheTTL),
			ttlcache.WithSweepInterval[string, string](settings.SweepInterval),
			ttlcache.WithNowFunc[string, string](r.nowFunc),
			ttlcache.WithSweepHook[string, string](r.sweepHook(cacheSessionTenant)),
		)
	}
	if r.agreements == nil {
		r.agreements = ttlcache.New(
			ttlcache.WithTTL[string, bool](settings.CacheTTL),
			ttlcache.WithSweepInterval[string, bool](settings.SweepInterval),
			ttlcache.WithNowFunc[string, bool](r.nowFunc),
			ttlcache.WithSweepHook[string, bool](r.sweepHook(cacheTenantAgreement)),
		)
	}
	return r, nil
}

// Start launches the background sweep of both caches.
func (r *Resolver) Start(ctx context.Context) {
	r.tenants.Start(ctx)
	r.agreements.Start(ctx)
}

// Stop halts the sweepers and waits for them to exit.
func (r *Resolver) Stop() {
	r.tenants.Stop()
	r.agreements.Stop()
}

// Authorize runs the role gate and, when enabled, the processing-agreement gate.
// With the agreement gate disabled the role gate alone decides and no query is issued.
// Lookup failures become a negative decision; they are never returned as errors.
func (r *Resolver) Authorize(ctx context.Context, session, groupsHeader string) Decision {
	if detail, ok := r.roleGate(ctx, groupsHeader); !ok {
		return r.deny("role", detail, "")
	}
	if !r.settings.AgreementCheck {
		return r.allow("")
	}

	code, err := r.ResolveTenant(ctx, session)
	if err != nil {
		if errors.Is(err, ErrNoSession) {
			return r.deny("session", "No session ID found in request headers", "")
		}
		return r.deny("tenant", "Tenant resolution failed: "+err.Error(), "")
	}
	ok, err := r.HasProcessingAgreement(ctx, code)
	if err != nil {
		return r.deny("agreement", "Processing agreement check failed: "+err.Error(), code)
	}
	if !ok {
		return r.deny("agreement", "No processing agreement found for tenant "+code, code)
	}
	return r.allow(code)
}

// ResolveTenant maps a session to exactly one tenant code.
func (r *Resolver) ResolveTenant(ctx context.Context, session string) (string, error) {
	session = strings.TrimSpace(session)
	if session == "" {
		return "", ErrNoSession
	}
	if code, ok := r.tenants.Get(session); ok {
		metrics.CacheLookups.WithLabelValues(cacheSessionTenant, "hit").Inc()
		return code, nil
	}
	metrics.CacheLookups.WithLabelValues(cacheSessionTenant, "miss").Inc()

	res, err := r.exec.Execute(ctx, sessionTenantQuery(r.settings, session))
	if err != nil {
		return "", fmt.Errorf("resolve tenant: %w", err)
	}
	rows := res.Bindings()
	switch {
	case len(rows) == 0:
		return "", &NotFoundError{Prefix: r.settings.TenantPrefix}
	case len(rows) > 1:
		codes, err := res.Values("identifier")
		if err != nil {
			return "", err
		}
		return "", &AmbiguousMappingError{Codes: codes}
	}
	code := rows[0]["identifier"].Value
	if code == "" {
		return "", &sparql.QueryError{Msg: "tenant identifier value is missing"}
	}
	if r.settings.TenantPrefix != "" && !strings.HasPrefix(code, r.settings.TenantPrefix) {
		return "", &sparql.QueryError{Msg: fmt.Sprintf("tenant identifier %q lacks prefix %s", code, r.settings.TenantPrefix)}
	}

	r.tenants.Put(session, code)
	r.log.Debugw("session resolved to tenant", "tenant", code)
	return code, nil
}

// HasProcessingAgreement reports whether an agreement names the tenant as data processor.
func (r *Resolver) HasProcessingAgreement(ctx context.Context, tenantCode string) (bool, error) {
	if ok, hit := r.agreements.Get(tenantCode); hit {
		metrics.CacheLookups.WithLabelValues(cacheTenantAgreement, "hit").Inc()
		return ok, nil
	}
	metrics.CacheLookups.WithLabelValues(cacheTenantAgreement, "miss").Inc()

	res, err := r.exec.Execute(ctx, agreementQuery(r.settings, tenantCode))
	if err != nil {
		return false, fmt.Errorf("check processing agreement: %w", err)
	}
	ok := len(res.Bindings()) > 0
	r.agreements.Put(tenantCode, ok)
	return ok, nil
}

func (r *Resolver) roleGate(ctx context.Context, header string) (string, bool) {
	groups, err := ParseGroups(header)
	if err != nil {
		var pe *GroupsParseError
		switch {
		case errors.Is(err, ErrGroupsMissing):
			return "Missing " + GroupsHeader + " header", false
		case errors.As(err, &pe):
			return fmt.Sprintf("Failed to parse %s header: %v", GroupsHeader, pe.Err), false
		default:
			return err.Error(), false
		}
	}
	ok, err := r.roles.HasRole(ctx, groups, r.settings.EditorRole)
	if err != nil {
		return "Role check failed: " + err.Error(), false
	}
	if !ok {
		return "Missing required role: " + r.settings.EditorRole, false
	}
	return "", true
}

func (r *Resolver) allow(code string) Decision {
	metrics.AuthorizationDecisions.WithLabelValues("allowed", "").Inc()
	return Decision{Authorized: true, Detail: "Request authorized", TenantCode: code}
}

func (r *Resolver) deny(gate, detail, code string) Decision {
	metrics.AuthorizationDecisions.WithLabelValues("denied", gate).Inc()
	r.log.Infow("authorization denied", "gate", gate, "detail", detail)
	return Decision{Detail: detail, TenantCode: code}
}

func (r *Resolver) sweepHook(name string) func(int) {
	return func(removed int) {
		if removed == 0 {
			return
		}
		metrics.CacheEvictions.WithLabelValues(name).Add(float64(removed))
		r.log.Debugw("cache sweep", "cache", name, "removed", removed)
	}
}
