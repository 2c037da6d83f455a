package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/twmb/franz-go/pkg/kgo"

	"luftscan/internal/platform/auth"
	"luftscan/internal/platform/config"
	"luftscan/internal/platform/httpserver"
	"luftscan/internal/platform/kafka"
	"luftscan/internal/platform/ratelimit"
	"luftscan/internal/platform/redis"
	"luftscan/internal/scan"
	"luftscan/internal/scan/cache"
	"luftscan/internal/scan/handler"
	"luftscan/internal/scan/metrics"
	"luftscan/internal/scan/store"
	"luftscan/pkg/platform/circuit"
	"luftscan/pkg/platform/httputil"
)

func newServeCmd(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the scan API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr != "" {
				a.cfg.Server.Addr = addr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address, overrides server.addr")
	return cmd
}

func (a *app) serve(ctx context.Context) error {
	cfg, log := a.cfg, a.logger

	st, closeStore, err := openStore(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer closeStore()

	opts := []scan.Option{
		scan.WithLogger(log),
		scan.WithMetrics(metrics.New(prometheus.DefaultRegisterer)),
		scan.WithWorkers(cfg.Scan.Workers),
		scan.WithBatchSize(cfg.Scan.BatchSize),
		scan.WithPersistBatch(cfg.Scan.PersistBatch),
		scan.WithMaxSamples(cfg.Server.MaxSamples),
	}

	rdb, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	if rdb != nil {
		defer rdb.Close()
		breaker := circuit.New("redis-cache", circuit.WithFailureThreshold(3), circuit.WithCooldown(30*time.Second))
		c := cache.NewGuarded(cache.NewRedis(rdb, cache.WithTTL(cfg.Redis.CacheTTL)), breaker, log)
		opts = append(opts, scan.WithCache(c))
		log.Info("sensitivity cache enabled", "ttl", cfg.Redis.CacheTTL)
	}

	var kc *kgo.Client
	if cfg.Kafka.Enabled() {
		pub, client, err := a.openPublisher(ctx)
		if err != nil {
			return err
		}
		defer client.Close()
		opts = append(opts, scan.WithPublisher(pub))
		kc = client
		log.Info("row streaming enabled", "topic", cfg.Kafka.Topic)
	}

	svc, err := scan.New(st, opts...)
	if err != nil {
		return err
	}

	r := httpserver.NewRouter(log)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", healthHandler(rdb, kc))

	var hopts []handler.Option
	if cfg.Server.ScanRateLimit > 0 {
		limiter := ratelimit.New(cfg.Server.ScanRateLimit, cfg.Server.ScanRateWindow)
		go pruneLoop(ctx, limiter, cfg.Server.ScanRateWindow)
		hopts = append(hopts, handler.WithCreateMiddleware(ratelimit.Middleware(limiter, log)))
	}
	h := handler.New(svc, log, hopts...)
	if cfg.Server.RequireAuth {
		if cfg.Server.JWTSigningKey == config.DevSigningKey {
			log.Warn("serving with the development signing key")
		}
		tokens, err := auth.NewTokenService(cfg.Server.JWTSigningKey)
		if err != nil {
			return err
		}
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(tokens, log))
			h.Register(r)
		})
	} else {
		h.Register(r)
	}

	log.Info("starting luftscan", "addr", cfg.Server.Addr, "database", cfg.Database.Driver)
	return httpserver.Run(ctx, httpserver.New(cfg.Server.Addr, r), cfg.Server.ShutdownTimeout, log)
}

// openStore opens the configured scan store, migrating it when needed.
func openStore(ctx context.Context, cfg config.Database) (scan.Store, func(), error) {
	switch cfg.Driver {
	case "postgres":
		db, err := sql.Open("postgres", cfg.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("ping postgres: %w", err)
		}
		st := store.NewPostgres(db)
		if err := st.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		return st, func() { _ = db.Close() }, nil
	case "sqlite":
		return openLocalStore(cfg.DSN)
	default:
		return store.NewMemory(), func() {}, nil
	}
}

// pruneLoop forgets idle clients once per window until ctx ends.
func pruneLoop(ctx context.Context, l *ratelimit.Limiter, window time.Duration) {
	ticker := time.NewTicker(window)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Prune()
		}
	}
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// healthHandler reports the optional backends. Either may be nil.
func healthHandler(rdb *redis.Client, kc *kgo.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := healthResponse{Status: "ok", Checks: map[string]string{}}
		if rdb != nil {
			resp.Checks["redis"] = check(rdb.Health(r.Context()))
		}
		if kc != nil {
			resp.Checks["kafka"] = check(kafka.Health(r.Context(), kc))
		}
		status := http.StatusOK
		for _, v := range resp.Checks {
			if v != "ok" {
				resp.Status, status = "degraded", http.StatusServiceUnavailable
			}
		}
		httputil.WriteJSON(w, status, resp)
	}
}

func check(err error) string {
	if err != nil {
		return err.Error()
	}
	return "ok"
}
