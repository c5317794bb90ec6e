package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"finetune-orchestrator/api/rest/routes"
	"finetune-orchestrator/config"
	"finetune-orchestrator/core/broadcast"
	"finetune-orchestrator/core/cost"
	"finetune-orchestrator/core/monitoring"
	"finetune-orchestrator/core/orchestrator"
	"finetune-orchestrator/core/store"
	awsprovider "finetune-orchestrator/providers/aws"
)

func main() {
	cfg := config.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize job store
	jobStore, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to open job store: %v", err)
	}
	defer jobStore.Close()

	log.Printf("Job store connected (%s)", cfg.StoreBackend)

	// Initialize rate table and estimator
	rates := cost.DefaultRates()
	estimator := cost.NewEstimator(rates)

	if cfg.PricingRefresh {
		awsClient, err := awsprovider.NewClient(ctx, cfg.AWSRegion)
		if err != nil {
			log.Printf("AWS pricing disabled: %v", err)
		} else {
			refresher := cost.NewRateRefresher(rates, awsClient, 15*time.Minute)
			go refresher.Start(ctx)
		}
	}

	// Initialize broadcaster and orchestrator
	bc := broadcast.New()
	orch := orchestrator.New(jobStore, bc, cfg.TrainerCommand)

	// Initialize watchdog
	watchdog := monitoring.NewWatchdog(jobStore, orch, cfg.MaxJobRuntime)
	go watchdog.Start(ctx)

	// Setup routes
	r := mux.NewRouter()
	routes.SetupRoutes(r, orch, bc, estimator)

	// Start server
	server := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: r,
	}

	go func() {
		log.Printf("Starting server on port %s", cfg.ServerPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}
	log.Println("Server exited")
}

// openStore picks the job store backend from configuration
func openStore(ctx context.Context, cfg *config.Config) (store.JobStore, error) {
	switch cfg.StoreBackend {
	case "postgres":
		return store.NewPostgresStore(ctx, cfg.DatabaseURL)
	case "memory":
		return store.NewMemoryStore(), nil
	default:
		return store.NewRedisStore(ctx, cfg.RedisAddr)
	}
}
