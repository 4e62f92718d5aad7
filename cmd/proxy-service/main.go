// cmd/proxy-service/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"assocproxy/internal/authz"
	"assocproxy/internal/broker"
	"assocproxy/internal/gateway"
	"assocproxy/pkg/config"
	"assocproxy/pkg/db"
	"assocproxy/pkg/logger"
	"assocproxy/pkg/middleware"
	"assocproxy/pkg/sparql"
	"assocproxy/pkg/tenants"
)

const serviceName = "verenigingen-proxy"

func main() {
	cfg := config.Load()
	log := logger.New(cfg.Env)
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tracing, shutdownTracing := middleware.InitTracing(ctx, serviceName, log)

	pool := db.MustConnect(cfg, log)
	rdb := db.MustRedis(cfg, log)

	var prov tenants.Provider
	if pool != nil {
		if err := tenants.EnsureSchema(ctx, pool); err != nil {
			log.Fatalw("schema", "err", err)
		}
		clients, err := tenants.LoadClientsFile(cfg.TenantClientsFile)
		if err != nil {
			log.Fatalw("tenant clients file", "err", err)
		}
		if err := tenants.Seed(ctx, pool, cfg.EncryptionKey, clients); err != nil {
			log.Warnw("seed", "err", err)
		}
		prov = tenants.NewPostgresProvider(pool, log, cfg.EncryptionKey)
	} else {
		p, err := tenants.NewMemoryProviderFromFile(log, cfg.TenantClientsFile)
		if err != nil {
			log.Fatalw("tenant clients file", "err", err)
		}
		prov = p
	}
	dir := tenants.NewDirectory(prov, tenants.Client{
		ClientID:         cfg.ClientID,
		AuthorizationKey: cfg.AuthorizationKey,
		KeyDir:           cfg.KeyDir,
	}, log)

	strategy := broker.NewStrategy(cfg)
	brokerOpts := []broker.Option{broker.WithLogger(log)}
	if rdb != nil {
		brokerOpts = append(brokerOpts, broker.WithStore(broker.NewRedisStore(rdb, "")))
	}
	tokens := broker.New(strategy, dir, brokerOpts...)
	log.Infow("token broker ready", "grant", strategy.Name(), "endpoint", strategy.Endpoint())

	policy, err := authz.LoadRolePolicy(ctx, cfg.AuthzPolicyFile)
	if err != nil {
		log.Fatalw("role policy", "err", err)
	}
	resolver, err := authz.NewResolver(ctx, sparql.NewClient(cfg.SPARQLEndpoint), authz.SettingsFromConfig(cfg),
		authz.WithLogger(log), authz.WithRolePolicy(policy))
	if err != nil {
		log.Fatalw("resolver", "err", err)
	}
	resolver.Start(ctx)

	gw := gateway.New(cfg, resolver, dir, tokens, gateway.WithLogger(log), gateway.WithHealth(tokens))

	r := chi.NewRouter()
	r.Use(middleware.RequestID())
	r.Use(middleware.Recover(log))
	r.Use(middleware.DebugWriteHeader(cfg.DebugDoubleWrite, log))
	r.Use(middleware.Tracing(tracing))
	gw.Register(r)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: r, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		log.Infow("proxy-service listening", "addr", cfg.HTTPAddr, "production", cfg.Production(),
			"agreement_check", cfg.EnableProcessingAgreementCheck)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("ListenAndServe", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	resolver.Stop()
	_ = shutdownTracing(shutdownCtx)
	if rdb != nil {
		_ = rdb.Close()
	}
	if pool != nil {
		pool.Close()
	}
	log.Infow("proxy-service stopped")
}
