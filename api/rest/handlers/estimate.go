package handlers

import (
	"encoding/json"
	"net/http"

	"finetune-orchestrator/core/cost"
	"finetune-orchestrator/core/models"
)

// EstimateHandler serves pre-launch cost estimates and the model catalog
type EstimateHandler struct {
	estimator *cost.Estimator
}

// NewEstimateHandler creates a new estimate handler
func NewEstimateHandler(estimator *cost.Estimator) *EstimateHandler {
	return &EstimateHandler{estimator: estimator}
}

// EstimateCost handles POST /v1/cost-estimate. The request body has the
// same shape as a job submission, so callers can price exactly what
// they are about to launch.
func (h *EstimateHandler) EstimateCost(w http.ResponseWriter, r *http.Request) {
	var req models.TuningRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Hardware == "" {
		req.Hardware = models.HardwareTPU
	}

	estimate, err := h.estimator.EstimateRequest(&req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, estimate)
}

// ListModels handles GET /v1/models
func (h *EstimateHandler) ListModels(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"models": models.Catalog(),
	})
}
