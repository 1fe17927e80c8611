package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aegisdns/aegisdns/internal/api"
	"github.com/aegisdns/aegisdns/internal/api/handlers"
	"github.com/aegisdns/aegisdns/internal/audit"
	"github.com/aegisdns/aegisdns/internal/config"
	"github.com/aegisdns/aegisdns/internal/hoststats"
	"github.com/aegisdns/aegisdns/internal/metrics"
	"github.com/aegisdns/aegisdns/internal/store"
)

// Runner orchestrates process startup, wiring the record store, UDP server,
// control API, audit log, and host-stats observer together, and blocks
// until shutdown (SPEC_FULL.md §5/§6).
type Runner struct {
	logger *slog.Logger
}

// NewRunner creates a new server runner with the given logger.
func NewRunner(logger *slog.Logger) *Runner {
	return &Runner{logger: logger}
}

// Run loads cfg's dependencies, starts every component, and blocks until a
// shutdown signal (SIGINT/SIGTERM) or a component error, then drains.
func (r *Runner) Run(cfg config.Config) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	return r.RunWithContext(ctx, cfg)
}

// RunWithContext is Run with an injectable base context, so tests can
// control shutdown deterministically.
func (r *Runner) RunWithContext(ctx context.Context, cfg config.Config) error {
	ctx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	recordStore := store.New(r.logger)
	if err := recordStore.LoadFromFile(cfg.RecordsFile); err != nil {
		return fmt.Errorf("server: load records file: %w", err)
	}

	metricsReg := metrics.New()
	metricsReg.SetActiveRecords(recordStore.Count())

	var auditWriter *audit.Writer
	if cfg.AuditDBPath != "" {
		auditDB, err := audit.Open(cfg.AuditDBPath)
		if err != nil {
			r.logger.Warn("audit log disabled: could not open database", "path", cfg.AuditDBPath, "error", err)
		} else {
			auditWriter = audit.NewWriter(auditDB, r.logger)
			defer auditWriter.Close()
		}
	}

	limiter := NewRateLimiter(RateLimiterConfig{
		QPS:             cfg.RateLimitQPS,
		Burst:           cfg.RateLimitBurst,
		CleanupInterval: time.Minute,
		MaxEntries:      100_000,
	})

	queryHandler := &QueryHandler{
		Store:      recordStore,
		Metrics:    metricsReg,
		Logger:     r.logger,
		InstanceID: cfg.InstanceID,
	}
	udp := &UDPServer{Logger: r.logger, Handler: queryHandler, Limiter: limiter}

	h := handlers.New(recordStore, metricsReg, auditWriter, r.logger, cfg.RecordsFile, cfg.InstanceID)
	apiServer := api.New(cfg.APIBindAddr, h, r.logger)

	refresher := &hoststats.Refresher{
		Store:   recordStore,
		Metrics: metricsReg,
		Logger:  r.logger,
	}
	go refresher.Run(ctx)

	errCh := make(chan error, 2)
	go func() { errCh <- udp.Run(ctx, cfg.DNSBindAddr) }()
	go func() {
		err := apiServer.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	r.logger.Info("aegisdns started",
		"dns_addr", cfg.DNSBindAddr,
		"api_addr", cfg.APIBindAddr,
		"instance_id", cfg.InstanceID,
		"records", recordStore.Count(),
	)

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			cancelRun()
			return err
		}
	}

	r.logger.Info("aegisdns shutting down", "grace", cfg.ShutdownGrace)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
	defer shutdownCancel()

	var firstErr error
	if err := udp.Stop(cfg.ShutdownGrace); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := apiServer.Shutdown(shutdownCtx); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
