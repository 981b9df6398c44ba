package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nathanbogale/CrediSynth/internal/api"
	"github.com/nathanbogale/CrediSynth/internal/app"
	"github.com/nathanbogale/CrediSynth/internal/config"
)

// Version is stamped at build time with -ldflags "-X main.Version=...".
var Version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("load config: %v", err)
	}
	if err := app.SetupLogging(cfg); err != nil {
		logrus.Fatalf("configure logging: %v", err)
	}

	generator, chain, err := app.Generation(cfg)
	if err != nil {
		logrus.Fatalf("configure generation: %v", err)
	}

	db, err := app.Audit(cfg)
	if err != nil {
		logrus.Fatalf("open audit store: %v", err)
	}
	defer func() {
		if cerr := db.Close(); cerr != nil {
			logrus.WithError(cerr).Warn("close database")
		}
	}()

	apiCfg := api.Config{
		Engine:         app.Engine(chain, db),
		Generation:     generator,
		GenerationMode: cfg.GenerationMode(),
		Version:        Version,
		AllowedOrigins: cfg.AllowedOrigins,
		JobWorkers:     cfg.JobWorkers,
	}
	if db != nil {
		apiCfg.Store = db
	}

	server, err := api.NewServer(apiCfg)
	if err != nil {
		logrus.Fatalf("create server: %v", err)
	}
	defer server.Close()

	router, err := server.Router()
	if err != nil {
		logrus.Fatalf("configure router: %v", err)
	}

	httpServer := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logrus.WithFields(logrus.Fields{
			"port":       cfg.Port,
			"version":    Version,
			"generation": cfg.GenerationMode(),
		}).Info("starting credisynth")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Fatalf("server exited: %v", err)
		}
	}()

	<-ctx.Done()
	logrus.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Warn("graceful shutdown")
	}
}
