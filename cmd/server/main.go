package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"salesplan/internal/config"
	"salesplan/internal/db"
	httpapi "salesplan/internal/http"
	"salesplan/internal/importer"
	"salesplan/internal/logger"
	"salesplan/internal/repository"

	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load(".")
	if err != nil {
		panic(err)
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	if err := cfg.Validate(); err != nil {
		log.Fatal("invalid configuration", zap.Error(err))
	}
	apiKeys, _ := cfg.Auth.Keys()
	if len(apiKeys) == 0 {
		log.Warn("no API keys configured; commit endpoints will reject every request")
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.Database)
	if err != nil {
		log.Fatal("database error", zap.Error(err))
	}
	defer pool.Close()

	if err := db.RunMigrations(ctx, pool, log); err != nil {
		log.Fatal("migration error", zap.Error(err))
	}

	repo := repository.New(pool)
	svc := importer.New(repo, log.Named("importer"), cfg.ImporterOptions())
	handler := httpapi.NewHandler(svc, log.Named("http"), cfg.Import.MaxFileSize)
	router := httpapi.NewRouter(handler, httpapi.RouterConfig{
		RequestTimeout: cfg.Server.RequestTimeout,
		CORSOrigin:     cfg.Server.CORSOrigin,
		RatePerMinute:  cfg.Rate.PerMinute,
		RateBurst:      cfg.Rate.Burst,
		APIKeys:        apiKeys,
	}, log.Named("http"))

	server := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		log.Info("server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", zap.Error(err))
		if closeErr := server.Close(); closeErr != nil {
			log.Error("force close failed", zap.Error(closeErr))
		}
	}
}
