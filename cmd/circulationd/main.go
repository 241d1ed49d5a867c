package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/openshelf/services/circulation/internal/config"
	"github.com/openshelf/services/circulation/internal/db"
	"github.com/openshelf/services/circulation/internal/events"
	"github.com/openshelf/services/circulation/internal/httpapi"
	"github.com/openshelf/services/circulation/internal/payment"
	"github.com/openshelf/services/circulation/internal/repo"
	"github.com/openshelf/services/circulation/internal/service"
	"github.com/openshelf/services/circulation/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()

	log := logger.NewLogger(cfg.ServiceName, cfg.LogLevel)
	defer log.Sync()

	log.Info("Circulation service starting")

	database, err := db.Connect(cfg.PGDSN)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer database.Close()

	if err := db.RunMigrations(database); err != nil {
		log.Fatal("Failed to run migrations", zap.Error(err))
	}

	if cfg.SeedSampleData {
		if err := db.SeedSampleData(database); err != nil {
			log.Fatal("Failed to seed sample data", zap.Error(err))
		}
	}

	libraryRepo := repo.NewLibraryRepository(database, log)
	gateway := payment.NewSimulatedGateway(cfg.PaymentAPIKey)

	opts := []service.Option{}
	if cfg.SentinelPatronID != "" {
		log.Warn("Sentinel patron carve-out enabled", zap.String("patron_id", cfg.SentinelPatronID))
		opts = append(opts, service.WithSentinelPatron(cfg.SentinelPatronID))
	}
	svc := service.NewLibraryService(libraryRepo, gateway, log, opts...)

	// The broker is optional: circulation keeps working without events.
	var publisher httpapi.EventPublisher
	eventPublisher, err := events.NewPublisher(cfg.RabbitMQURL, log)
	if err != nil {
		log.Warn("RabbitMQ unavailable, event publishing disabled", zap.Error(err))
	} else {
		defer eventPublisher.Close()
		publisher = eventPublisher
	}

	metrics := httpapi.NewMetrics(prometheus.DefaultRegisterer)
	server := httpapi.NewServer(svc, publisher, database, metrics, log)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler:      server.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info("Starting HTTP server", zap.String("address", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to serve HTTP", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		log.Error("HTTP server shutdown error", zap.Error(err))
	}

	log.Info("Server stopped")
}
