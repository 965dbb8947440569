package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"waterbill/internal/api"
	"waterbill/internal/auth"
	"waterbill/internal/cache"
	"waterbill/internal/config"
	"waterbill/internal/notification"
	"waterbill/internal/storage"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API server",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := storage.Open(ctx, storage.Config{
		Driver: cfg.Database.Driver,
		DSN:    cfg.Database.DSN,
		Logger: log,
	})
	if err != nil {
		log.Error("open storage failed", zap.Error(err))
		return err
	}
	defer st.Close()

	cc := openCache(cfg, log)
	defer cc.Close()

	authSvc, err := auth.NewService(st)
	if err != nil {
		log.Error("auth setup failed", zap.Error(err))
		return err
	}

	srv := api.NewServer(cfg, st, cc, authSvc, notification.NewService(*cfg), log)

	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddress(),
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			log.Error("shutdown failed", zap.Error(err))
		}
	}()

	log.Info("waterbill listening",
		zap.String("addr", httpSrv.Addr),
		zap.String("db_driver", cfg.Database.Driver))
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("server failed", zap.Error(err))
		return err
	}
	return nil
}

// openCache connects to redis when configured. A failed connection logs a
// warning and billing continues uncached.
func openCache(cfg *config.Config, log *zap.Logger) *cache.Client {
	if cfg.Redis.Addr == "" {
		return nil
	}
	cc, err := cache.New(cfg.Redis.Addr, cfg.Redis.Password, time.Duration(cfg.Redis.TTLSeconds)*time.Second)
	if err != nil {
		log.Warn("redis unavailable, running without cache",
			zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		return nil
	}
	log.Info("tariff cache enabled", zap.String("addr", cfg.Redis.Addr))
	return cc
}
