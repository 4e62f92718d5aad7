// Package gateway forwards authorized association requests to the upstream API.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"assocproxy/internal/broker"
	"assocproxy/pkg/config"
	"assocproxy/pkg/metrics"
	"assocproxy/pkg/middleware"
	"assocproxy/pkg/problems"
	"assocproxy/pkg/tenants"
)

const maxUpstreamBody = 10 << 20

// TokenSource hands out upstream access tokens per tenant key.
type TokenSource interface {
	AccessToken(ctx context.Context, key tenants.TenantKey) (string, error)
}

// KeyResolver maps a tenant code to the key of the client acting for it.
type KeyResolver interface {
	KeyFor(ctx context.Context, tenantCode string) (tenants.TenantKey, error)
}

// HealthReporter exposes the outcome of the last token fetch.
type HealthReporter interface {
	Health() broker.Health
}

type Gateway struct {
	apiBase    string
	apiVersion string
	authorizer Authorizer
	keys       KeyResolver
	tokens     TokenSource
	health     HealthReporter
	http       *http.Client
	log        *zap.SugaredLogger
}

type Option func(*Gateway)

func WithHTTPClient(hc *http.Client) Option {
	return func(g *Gateway) {
		if hc != nil {
			g.http = hc
		}
	}
}

func WithLogger(log *zap.SugaredLogger) Option {
	return func(g *Gateway) {
		if log != nil {
			g.log = log
		}
	}
}

func WithHealth(h HealthReporter) Option {
	return func(g *Gateway) { g.health = h }
}

func New(cfg config.Config, authorizer Authorizer, keys KeyResolver, tokens TokenSource, opts ...Option) *Gateway {
	timeout := cfg.UpstreamTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	g := &Gateway{
		apiBase:    strings.TrimRight(cfg.APIBase, "/"),
		apiVersion: cfg.APIVersion,
		authorizer: authorizer,
		keys:       keys,
		tokens:     tokens,
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			// Location headers are relayed to the caller, not followed.
			CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse },
		},
		log: zap.NewNop().Sugar(),
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// Forward mirrors the inbound request to <API_BASE><path?query> with the proxy's headers
// and relays the upstream response. It expects SessionAuth to have run.
func (g *Gateway) Forward(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantCode := middleware.TenantCodeFrom(ctx)

	key, err := g.keys.KeyFor(ctx, tenantCode)
	if err != nil {
		g.writeError(w, r, err)
		return
	}
	token, err := g.tokens.AccessToken(ctx, key)
	if err != nil {
		g.writeError(w, r, err)
		return
	}

	target := g.apiBase + r.URL.RequestURI()
	var body io.Reader = http.NoBody
	if r.Body != nil && r.ContentLength != 0 {
		body = r.Body
	}
	upReq, err := http.NewRequestWithContext(ctx, r.Method, target, body)
	if err != nil {
		problems.Write(w, http.StatusBadGateway, "upstream-unreachable", "Bad Gateway", "invalid upstream url")
		return
	}
	upReq.Header = OutboundHeaders(r.Header, token, tenantCode, g.apiVersion)
	if r.ContentLength > 0 {
		upReq.ContentLength = r.ContentLength
	}

	start := time.Now()
	resp, err := g.http.Do(upReq)
	if err != nil {
		if ctx.Err() != nil {
			g.log.Infow("client went away during upstream call", "path", r.URL.Path, "request_id", middleware.RequestIDFrom(ctx))
			return
		}
		g.log.Errorw("upstream call failed", "method", r.Method, "path", r.URL.Path, "err", err)
		metrics.UpstreamRequests.WithLabelValues(r.Method, "error").Inc()
		problems.Write(w, http.StatusBadGateway, "upstream-unreachable", "Bad Gateway", "association API unreachable")
		return
	}
	defer resp.Body.Close()
	metrics.UpstreamRequests.WithLabelValues(r.Method, strconv.Itoa(resp.StatusCode)).Inc()
	g.log.Infow("forwarded",
		"method", r.Method, "path", r.URL.Path, "status", resp.StatusCode,
		"tenant", tenantCode, "duration", time.Since(start), "request_id", middleware.RequestIDFrom(ctx))

	g.relay(w, resp)
}

func (g *Gateway) relay(w http.ResponseWriter, resp *http.Response) {
	for _, h := range relayedHeaders {
		if v := resp.Header.Get(h); v != "" {
			w.Header().Set(h, v)
		}
	}
	if resp.StatusCode == http.StatusNoContent || resp.StatusCode == http.StatusNotModified {
		w.WriteHeader(resp.StatusCode)
		return
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, maxUpstreamBody))
	if err != nil {
		g.log.Errorw("read upstream body", "status", resp.StatusCode, "err", err)
		problems.Write(w, http.StatusBadGateway, "upstream-unreachable", "Bad Gateway", "incomplete response from association API")
		return
	}
	if len(b) == 0 {
		w.WriteHeader(resp.StatusCode)
		return
	}
	ct := resp.Header.Get("Content-Type")
	if !json.Valid(b) {
		b, _ = json.Marshal(map[string]string{"error": http.StatusText(resp.StatusCode), "details": string(b)})
		ct = ""
	}
	if !strings.Contains(ct, "json") {
		ct = "application/json; charset=utf-8"
	}
	w.Header().Set("Content-Type", ct)
	w.WriteHeader(resp.StatusCode)
	_, _ = w.Write(b)
}

func (g *Gateway) writeError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, context.Canceled) {
		g.log.Infow("request cancelled", "path", r.URL.Path, "request_id", middleware.RequestIDFrom(r.Context()))
		return
	}
	g.log.Errorw("cannot obtain upstream token", "path", r.URL.Path, "err", err, "request_id", middleware.RequestIDFrom(r.Context()))
	switch {
	case errors.Is(err, broker.ErrConfiguration), errors.Is(err, tenants.ErrClientNotFound):
		problems.Write(w, http.StatusInternalServerError, "configuration-error", "Configuration Error", err.Error())
	case errors.Is(err, broker.ErrTokenFetch):
		problems.Write(w, http.StatusBadGateway, "token-fetch-failed", "Bad Gateway", err.Error())
	default:
		problems.Write(w, http.StatusInternalServerError, "internal-error", "Internal Server Error", err.Error())
	}
}
