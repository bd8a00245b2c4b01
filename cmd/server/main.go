package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/lib/pq"
	"golang.org/x/sync/errgroup"

	"linkage/internal/audit"
	"linkage/internal/contact/store/postgres"
	"linkage/internal/platform/config"
	"linkage/internal/platform/httpserver"
	"linkage/internal/platform/logger"
	"linkage/internal/platform/metrics"
	"linkage/internal/reconcile"
	httptransport "linkage/internal/transport/http"
)

// main wires dependencies and owns the process lifecycle. Business logic
// lives in the internal packages; the store handle is constructed here once
// and passed down — no hidden globals.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		log.Error("open database", "error", err.Error())
		os.Exit(1)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		log.Error("ping database", "error", err.Error())
		os.Exit(1)
	}
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		log.Error("ensure schema", "error", err.Error())
		os.Exit(1)
	}

	m := metrics.New()
	store := postgres.New(db, postgres.WithMaxWait(cfg.TxMaxWait), postgres.WithTimeout(cfg.TxTimeout))
	auditStore := audit.NewPostgresStore(db)
	recorder := audit.NewRecorder(auditStore)
	service := reconcile.NewService(store, recorder, log, m)
	handler := httptransport.New(service, store, log)
	router := httptransport.NewRouter(handler, log, m)

	srv := httpserver.New(cfg.Addr, router)
	worker := audit.NewWorker(auditStore, &audit.LogPublisher{Logger: log}, log, cfg.AuditDrainInterval)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting linkage", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		if err := worker.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server exited", "error", err.Error())
		os.Exit(1)
	}
}
