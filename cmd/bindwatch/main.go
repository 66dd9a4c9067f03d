// Command bindwatch runs headless binding reconciliation against the
// broadband backend: it seeds a session from the environment, runs one
// immediate reconciliation pass, then keeps reconciling on a cron
// schedule while serving /metrics and /healthz.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AirLink-Net/client_core/internal/binding"
	"github.com/AirLink-Net/client_core/internal/config"
	"github.com/AirLink-Net/client_core/internal/customer"
	"github.com/AirLink-Net/client_core/internal/kvstore"
	"github.com/AirLink-Net/client_core/internal/logging"
	"github.com/AirLink-Net/client_core/internal/scheduler"
	"github.com/AirLink-Net/client_core/internal/session"
	"github.com/AirLink-Net/client_core/internal/transport"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	log := logging.NewConsole("bindwatch")

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("load config", "error", err)
		os.Exit(1)
	}

	if err := run(cfg, log); err != nil {
		log.Error("bindwatch failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log logging.Logger) error {
	kv, err := kvstore.Open(cfg.StatePath)
	if err != nil {
		return err
	}

	sessions, err := session.NewStore(kv, logging.New("session"))
	if err != nil {
		return err
	}

	// A token from the environment replaces whatever the state file
	// held; stale persisted credentials lose to explicit ones.
	if cfg.AuthToken != "" {
		if err := sessions.SetAuthenticated(cfg.AuthToken, cfg.UserID); err != nil {
			return err
		}
	}
	if sessions.TokenExpired() {
		log.Warn("session token missing or expired, reconciliation will be skipped until login")
	}

	registry := prometheus.NewRegistry()

	client, err := transport.NewClient(transport.Config{
		APIBaseURL:           cfg.APIBaseURL,
		InvoiceBaseURL:       cfg.InvoiceBaseURL,
		InvoiceRoutePrefixes: cfg.InvoiceRoutePrefixes,
		Session:              sessions,
		Timeout:              cfg.RequestTimeout,
		MinVisibleDuration:   cfg.MinVisibleDuration,
		Logger:               logging.New("transport"),
		Metrics:              transport.NewMetrics(registry),
		EnableResilience:     cfg.EnableResilience,
		RateLimitRPS:         cfg.RateLimitRPS,
		RateLimitBurst:       cfg.RateLimitBurst,
	})
	if err != nil {
		return err
	}

	agg, err := customer.NewAggregator(client, logging.New("customer"))
	if err != nil {
		return err
	}

	cache, err := binding.NewCache(kv)
	if err != nil {
		return err
	}

	reconciler, err := binding.NewReconciler(client, sessions, agg, cache, logging.New("binding"))
	if err != nil {
		return err
	}

	// First pass up front so drift is resolved before the first tick.
	result := reconciler.Reconcile(context.Background())
	log.Info("initial reconcile", "outcome", string(result.Outcome))

	sched := scheduler.New(logging.New("scheduler"))
	if err := sched.Add(cfg.ReconcileCron, reconciler); err != nil {
		return err
	}
	sched.Start()
	defer sched.Stop()

	router := mux.NewRouter()
	router.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	router.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{
		Addr:              cfg.MetricsAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	log.Info("bindwatch started", "metrics_addr", cfg.MetricsAddr, "cron", cfg.ReconcileCron)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		log.Info("shutting down", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
