package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"hydro-dispatch/internal/api"
	"hydro-dispatch/internal/config"
	"hydro-dispatch/internal/logging"
	"hydro-dispatch/internal/solver"
	"hydro-dispatch/internal/store"

	"github.com/gin-gonic/gin"
)

func main() {
	cfg, err := config.LoadServer()
	if err != nil {
		slog.Error("invalid server configuration", "error", err)
		os.Exit(1)
	}
	log := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stderr)

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	st, err := openStore(cfg, log)
	if err != nil {
		log.Error("failed to open run store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	router := api.NewRouter(api.Deps{
		Store:       st,
		Registry:    solver.DefaultRegistry(),
		Log:         log,
		CaseDir:     cfg.CaseDir,
		CORSOrigins: cfg.CORSOrigins,
	})

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info("starting API server", "addr", srv.Addr, "env", cfg.Env, "case_dir", cfg.CaseDir)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
}

// openStore picks the badger store when RUN_STORE_DIR is set, memory otherwise.
func openStore(cfg config.Server, log *slog.Logger) (store.Store, error) {
	if cfg.StoreDir == "" {
		log.Info("run store: memory", "ttl", cfg.RunTTL)
		return store.NewMemory(cfg.RunTTL, cfg.RunTTL/4), nil
	}
	log.Info("run store: badger", "dir", cfg.StoreDir, "ttl", cfg.RunTTL)
	return store.OpenBadger(cfg.StoreDir, cfg.RunTTL, log)
}
