// Package broker acquires and caches upstream access tokens per tenant key.
package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"assocproxy/pkg/metrics"
	"assocproxy/pkg/tenants"
)

// ClientSource resolves the credentials behind a tenant key.
type ClientSource interface {
	Client(ctx context.Context, key tenants.TenantKey) (tenants.Client, error)
}

// Health mirrors the outcome of the most recent token fetch.
type Health struct {
	Status      string    `json:"status"` // unknown|healthy|unhealthy
	LastChecked time.Time `json:"lastChecked,omitempty"`
	Details     string    `json:"details,omitempty"`
}

type Broker struct {
	strategy GrantStrategy
	clients  ClientSource
	store    Store
	http     *http.Client
	log      *zap.SugaredLogger
	nowFunc  func() time.Time

	group singleflight.Group

	healthMu sync.RWMutex
	health   Health
}

type Option func(*Broker)

func WithStore(s Store) Option {
	return func(b *Broker) {
		if s != nil {
			b.store = s
		}
	}
}

func WithHTTPClient(hc *http.Client) Option {
	return func(b *Broker) {
		if hc != nil {
			b.http = hc
		}
	}
}

func WithLogger(log *zap.SugaredLogger) Option {
	return func(b *Broker) {
		if log != nil {
			b.log = log
		}
	}
}

func WithNowFunc(now func() time.Time) Option {
	return func(b *Broker) {
		if now != nil {
			b.nowFunc = now
		}
	}
}

func New(strategy GrantStrategy, clients ClientSource, opts ...Option) *Broker {
	b := &Broker{
		strategy: strategy,
		clients:  clients,
		store:    NewMemoryStore(),
		http:     &http.Client{Timeout: 15 * time.Second, Transport: otelhttp.NewTransport(http.DefaultTransport)},
		log:      zap.NewNop().Sugar(),
		nowFunc:  time.Now,
		health:   Health{Status: "unknown"},
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

// AccessToken returns a token for key that stays valid for at least SafetyMargin.
// A cache hit performs no I/O. Concurrent misses for the same key share one fetch.
func (b *Broker) AccessToken(ctx context.Context, key tenants.TenantKey) (string, error) {
	if tok, ok := b.cached(ctx, key); ok {
		metrics.TokenCacheLookups.WithLabelValues("hit").Inc()
		return tok, nil
	}
	metrics.TokenCacheLookups.WithLabelValues("miss").Inc()

	for attempt := 0; ; attempt++ {
		ch := b.group.DoChan(string(key), func() (any, error) {
			if tok, ok := b.cached(ctx, key); ok {
				return tok, nil
			}
			return b.fetch(ctx, key)
		})
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case res := <-ch:
			if res.Err == nil {
				return res.Val.(string), nil
			}
			// The shared fetch ran on another request's context; rejoin if only that caller went away.
			if res.Shared && attempt == 0 && isCancellation(res.Err) && ctx.Err() == nil {
				continue
			}
			return "", res.Err
		}
	}
}

// Health returns the last recorded token fetch outcome.
func (b *Broker) Health() Health {
	b.healthMu.RLock()
	defer b.healthMu.RUnlock()
	return b.health
}

func (b *Broker) cached(ctx context.Context, key tenants.TenantKey) (string, bool) {
	tok, ok, err := b.store.Get(ctx, key)
	if err != nil {
		b.log.Warnw("token store read failed", "tenant_key", key, "err", err)
		return "", false
	}
	if !ok || !tok.Usable(b.nowFunc()) {
		return "", false
	}
	return tok.AccessToken, true
}

func (b *Broker) fetch(ctx context.Context, key tenants.TenantKey) (string, error) {
	grant := b.strategy.Name()
	client, err := b.clients.Client(ctx, key)
	if err != nil {
		return "", fmt.Errorf("resolve client for %s: %w", key, err)
	}
	issuedAt := b.nowFunc()
	form, hdr, err := b.strategy.Prepare(ctx, client, issuedAt)
	if err != nil {
		b.recordFailure(issuedAt, err)
		metrics.TokenFetches.WithLabelValues(grant, "config_error").Inc()
		return "", err
	}

	b.log.Infow("fetching new access token", "tenant_key", key, "grant", grant)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.strategy.Endpoint(), strings.NewReader(form.Encode()))
	if err != nil {
		return "", &TokenFetchError{Err: err}
	}
	for k, vs := range hdr {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	start := time.Now()
	resp, err := b.http.Do(req)
	metrics.TokenFetchDuration.WithLabelValues(grant).Observe(time.Since(start).Seconds())
	if err != nil {
		ferr := &TokenFetchError{Err: err}
		if !isCancellation(err) {
			b.recordFailure(issuedAt, ferr)
		}
		metrics.TokenFetches.WithLabelValues(grant, "transport_error").Inc()
		return "", ferr
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		ferr := &TokenFetchError{Status: resp.StatusCode, Err: err}
		b.recordFailure(issuedAt, ferr)
		metrics.TokenFetches.WithLabelValues(grant, "transport_error").Inc()
		return "", ferr
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		ferr := &TokenFetchError{Status: resp.StatusCode, Body: string(body)}
		b.log.Errorw("token endpoint rejected request", "tenant_key", key, "status", resp.StatusCode, "body", string(body))
		b.recordFailure(issuedAt, ferr)
		metrics.TokenFetches.WithLabelValues(grant, "rejected").Inc()
		return "", ferr
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		ferr := &TokenFetchError{Status: resp.StatusCode, Body: string(body), Err: fmt.Errorf("decode token response: %w", err)}
		b.recordFailure(issuedAt, ferr)
		metrics.TokenFetches.WithLabelValues(grant, "invalid").Inc()
		return "", ferr
	}
	if tr.AccessToken == "" || tr.ExpiresIn <= 0 {
		ferr := &TokenFetchError{Status: resp.StatusCode, Err: errors.New("token response lacks access_token or expires_in")}
		b.recordFailure(issuedAt, ferr)
		metrics.TokenFetches.WithLabelValues(grant, "invalid").Inc()
		return "", ferr
	}

	tok := CachedToken{AccessToken: tr.AccessToken, IssuedAt: issuedAt, ExpiresIn: int(tr.ExpiresIn)}
	if err := b.store.Put(ctx, key, tok); err != nil {
		b.log.Warnw("token store write failed", "tenant_key", key, "err", err)
	}
	b.recordSuccess(issuedAt, tok)
	metrics.TokenFetches.WithLabelValues(grant, "ok").Inc()
	b.log.Infow("access token cached", "tenant_key", key, "expires_in", tok.ExpiresIn, "duration", time.Since(start))
	return tok.AccessToken, nil
}

func (b *Broker) recordSuccess(at time.Time, tok CachedToken) {
	b.healthMu.Lock()
	b.health = Health{Status: "healthy", LastChecked: at, Details: "token valid until " + tok.ExpiresAt().UTC().Format(time.RFC3339)}
	b.healthMu.Unlock()
}

func (b *Broker) recordFailure(at time.Time, err error) {
	b.healthMu.Lock()
	b.health = Health{Status: "unhealthy", LastChecked: at, Details: err.Error()}
	b.healthMu.Unlock()
}

func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
