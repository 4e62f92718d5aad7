// Package metrics holds the proxy's Prometheus collectors, served on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TokenCacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "proxy_token_cache_lookups_total",
		Help: "Upstream access token lookups by result (hit|miss).",
	}, []string{"result"})

	TokenFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "proxy_token_fetches_total",
		Help: "Token endpoint calls by grant and outcome.",
	}, []string{"grant", "outcome"})

	TokenFetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "proxy_token_fetch_duration_seconds",
		Help:    "Token endpoint latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"grant"})

	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "proxy_authz_cache_lookups_total",
		Help: "Authorization cache lookups by cache (session_tenant|tenant_agreement) and result.",
	}, []string{"cache", "result"})

	CacheEvictions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "proxy_authz_cache_evictions_total",
		Help: "Entries removed by the background sweep.",
	}, []string{"cache"})

	AuthorizationDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "proxy_authorization_decisions_total",
		Help: "Authorization verdicts by outcome and failing gate.",
	}, []string{"outcome", "gate"})

	UpstreamRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "proxy_upstream_requests_total",
		Help: "Forwarded requests by method and upstream status code.",
	}, []string{"method", "code"})
)
