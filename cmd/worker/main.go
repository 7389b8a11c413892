// Package main provides the entrypoint for the DustGuard worker. It runs the
// daily assessment on a cron schedule and, when a subscription is
// configured, on Pub/Sub job messages.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/dustguard/dustguard/internal/app"
	"github.com/dustguard/dustguard/internal/telemetry"
	"github.com/dustguard/dustguard/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "dustguard-worker"

	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting DustGuard worker")

	// Worker also exposes a health endpoint for Cloud Run
	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "8080"
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tp, err := telemetry.Init(ctx, telemetry.ConfigFromEnv(serviceName, Version))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	services, err := app.New(ctx, app.ConfigFromEnv(), log, tp.Meters())
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize services")
		return
	}
	defer func() {
		if closeErr := services.Close(); closeErr != nil {
			log.Error().Err(closeErr).Msg("failed to close services")
		}
	}()

	jobCfg := worker.ConfigFromEnv()
	job := worker.NewAssessmentJob(worker.AssessmentJobConfig{
		Config:   jobCfg,
		Assessor: services.Assessments,
		Users:    services.Profiles,
		Logger:   log.With().Str("component", "assessment_job").Logger(),
	})

	scheduler, err := worker.NewScheduler(jobCfg.Schedule, job, log.With().Str("component", "scheduler").Logger())
	if err != nil {
		log.Error().Err(err).Msg("invalid daily assessment schedule")
		return
	}
	scheduler.Start()

	var pubsubHandler *worker.PubSubHandler
	if projectID, sub := os.Getenv("PUBSUB_PROJECT_ID"), os.Getenv("PUBSUB_JOBS_SUBSCRIPTION"); projectID != "" && sub != "" {
		pubsubHandler, err = worker.NewPubSubHandler(ctx, worker.PubSubConfig{
			ProjectID:        projectID,
			SubscriptionName: sub,
			Dispatcher:       worker.NewDispatcher(job, log),
			Logger:           log.With().Str("component", "pubsub").Logger(),
		})
		if err != nil {
			log.Error().Err(err).Msg("failed to create pubsub handler")
			return
		}
		go func() {
			if err := pubsubHandler.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("pubsub handler stopped")
			}
		}()
	} else {
		log.Info().Msg("pubsub jobs subscription not configured - cron only")
	}

	server := &http.Server{
		Addr:         ":" + port,
		Handler:      worker.NewHealthHandler(Version, job),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("health check server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("health server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down worker")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := scheduler.Stop(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("scheduler did not stop in time")
	}
	if pubsubHandler != nil {
		if err := pubsubHandler.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close pubsub client")
		}
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("health server forced to shutdown")
	}

	log.Info().Msg("worker stopped")
}
