// pkg/config/config.go
package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env      string // logger mode (prod|dev)
	HTTPAddr string

	// Grant protocol selection: "PROD" uses the private-key JWT bearer grant.
	Environment string

	// Upstream association API
	APIBase         string
	APIVersion      string
	UpstreamTimeout time.Duration

	// Token endpoint
	Audience         string
	AuthDomain       string
	Scope            string
	ClientID         string
	AuthorizationKey string
	KeyDir           string

	// Authorization
	EditorRole                     string
	EnableProcessingAgreementCheck bool
	AuthzPolicyFile                string
	TenantIdentifierPrefix         string

	// Triple store
	SPARQLEndpoint           string
	SessionGraph             string
	OrganisationGraph        string
	ProcessingAgreementGraph string

	CacheTTL           time.Duration
	CacheSweepInterval time.Duration

	// Redis & Postgres
	RedisURL          string
	DatabaseURL       string
	TenantClientsFile string
	EncryptionKey     string

	DebugDoubleWrite bool
}

func Load() Config {
	_ = godotenv.Load()
	cfg := Config{
		Env:                            env("PROXY_ENV", "dev"),
		HTTPAddr:                       env("HTTP_ADDR", ":80"),
		Environment:                    env("ENVIRONMENT", "DEV"),
		APIBase:                        strings.TrimRight(env("API_BASE", ""), "/"),
		APIVersion:                     env("API_VERSION", ""),
		UpstreamTimeout:                envDur("UPSTREAM_TIMEOUT", 15*time.Second),
		Audience:                       strings.TrimRight(env("AUD", ""), "/"),
		AuthDomain:                     env("AUTH_DOMAIN", ""),
		Scope:                          env("SCOPE", ""),
		ClientID:                       env("CLIENT_ID", ""),
		AuthorizationKey:               env("AUTHORIZATION_KEY", ""),
		KeyDir:                         env("KEY_DIR", "/config"),
		EditorRole:                     env("EDITOR_ROLE", "verenigingen-beheerder"),
		EnableProcessingAgreementCheck: envBool("ENABLE_PROCESSING_AGREEMENT_CHECK", false),
		AuthzPolicyFile:                env("AUTHZ_POLICY_FILE", ""),
		TenantIdentifierPrefix:         env("TENANT_IDENTIFIER_PREFIX", "OVO"),
		SPARQLEndpoint:                 env("MU_SPARQL_ENDPOINT", "http://database:8890/sparql"),
		SessionGraph:                   env("SESSION_GRAPH", "http://mu.semte.ch/graphs/sessions"),
		OrganisationGraph:              env("ORGANISATION_GRAPH", "http://mu.semte.ch/graphs/public"),
		ProcessingAgreementGraph:       env("PROCESSING_AGREEMENT_GRAPH", "http://mu.semte.ch/graphs/processing-agreements"),
		CacheTTL:                       envDur("CACHE_TTL", 24*time.Hour),
		CacheSweepInterval:             envDur("CACHE_SWEEP_INTERVAL", time.Hour),
		RedisURL:                       env("REDIS_URL", ""),
		DatabaseURL:                    env("DATABASE_URL", ""),
		TenantClientsFile:              env("TENANT_CLIENTS_FILE", ""),
		EncryptionKey:                  env("ENCRYPTION_KEY", ""),
		DebugDoubleWrite:               envBool("DEBUG_DOUBLE_WRITE", false),
	}
	if cfg.APIBase == "" {
		log.Println("[WARN] API_BASE not set; forwarded requests will fail")
	}
	if cfg.DatabaseURL == "" {
		log.Println("[WARN] DATABASE_URL not set, using in-memory tenant client directory")
	}
	return cfg
}

// Production reports whether tokens are obtained with the private-key JWT bearer grant.
func (c Config) Production() bool { return strings.EqualFold(c.Environment, "PROD") }

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func envBool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return def
		}
		return b
	}
	return def
}

// envDur accepts Go durations ("90m") or a bare number of seconds.
func envDur(k string, def time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if i, err := strconv.Atoi(v); err == nil {
		return time.Duration(i) * time.Second
	}
	return def
}
