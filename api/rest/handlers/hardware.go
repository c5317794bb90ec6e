package handlers

import (
	"net/http"

	"finetune-orchestrator/core/monitoring"
)

// HardwareHandler serves host utilization metrics
type HardwareHandler struct{}

// NewHardwareHandler creates a new hardware metrics handler
func NewHardwareHandler() *HardwareHandler {
	return &HardwareHandler{}
}

// GetHardwareMetrics handles GET /v1/metrics/hardware
func (h *HardwareHandler) GetHardwareMetrics(w http.ResponseWriter, r *http.Request) {
	metrics, err := monitoring.CollectHardwareMetrics()
	if err != nil {
		http.Error(w, "Failed to collect hardware metrics: "+err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, metrics)
}
