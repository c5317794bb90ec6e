package routes

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"finetune-orchestrator/api/rest/handlers"
	"finetune-orchestrator/core/broadcast"
	"finetune-orchestrator/core/cost"
	"finetune-orchestrator/core/orchestrator"
)

// allowedOrigins are the local dashboard origins permitted by CORS
var allowedOrigins = map[string]bool{
	"http://localhost:3000": true,
	"http://127.0.0.1:3000": true,
}

// SetupRoutes configures all API routes
func SetupRoutes(r *mux.Router, orch *orchestrator.Orchestrator, bc *broadcast.Broadcaster, estimator *cost.Estimator) {
	jobHandler := handlers.NewJobHandler(orch)
	estimateHandler := handlers.NewEstimateHandler(estimator)
	streamHandler := handlers.NewStreamHandler(orch, bc)
	hardwareHandler := handlers.NewHardwareHandler()

	r.Use(corsMiddleware)

	r.HandleFunc("/", rootHandler).Methods("GET")
	r.HandleFunc("/health", healthHandler).Methods("GET")

	api := r.PathPrefix("/v1").Subrouter()

	// Job endpoints
	api.HandleFunc("/jobs", jobHandler.SubmitJob).Methods("POST")
	api.HandleFunc("/jobs", jobHandler.ListJobs).Methods("GET")
	api.HandleFunc("/jobs/{id}", jobHandler.GetJob).Methods("GET")
	api.HandleFunc("/jobs/{id}/cancel", jobHandler.CancelJob).Methods("POST")
	api.HandleFunc("/jobs/{id}/stream", streamHandler.StreamJob).Methods("GET")

	// Estimation and catalog
	api.HandleFunc("/cost-estimate", estimateHandler.EstimateCost).Methods("POST")
	api.HandleFunc("/models", estimateHandler.ListModels).Methods("GET")

	// Host metrics
	api.HandleFunc("/metrics/hardware", hardwareHandler.GetHardwareMetrics).Methods("GET")
}

func rootHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{
		"message": "Fine-tuning Orchestrator API",
		"version": "1.0.0",
	})
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
