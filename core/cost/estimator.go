// Package cost estimates fine-tuning duration and price before launch.
package cost

import (
	"fmt"

	"finetune-orchestrator/core/models"
)

// ReferenceBatchSize is the batch size the base-hours table was measured
// at; estimated hours scale inversely with the requested batch size.
const ReferenceBatchSize = 8.0

// modelBaseHours maps model names to baseline training hours at the
// reference batch size. Unknown models fall back to 1.0 hour.
var modelBaseHours = map[string]float64{
	"llama3-2-1b":   1.0,
	"llama3-2-3b":   2.5,
	"llama3-1-8b":   6.0,
	"llama3-1-70b":  50.0,
	"llama3-1-405b": 300.0,
}

// Estimate is the result of a pre-launch cost calculation
type Estimate struct {
	EstimatedCost float64             `json:"estimated_cost"`
	Currency      string              `json:"currency"`
	DurationHours float64             `json:"duration_hours"`
	HardwareType  models.HardwareType `json:"hardware_type"`
	CostPerHour   float64             `json:"cost_per_hour"`
}

// Estimator computes cost estimates against a rate table. The estimate
// itself is a pure function; the table may be refreshed concurrently.
type Estimator struct {
	rates *RateTable
}

// NewEstimator creates an estimator backed by the given rate table
func NewEstimator(rates *RateTable) *Estimator {
	return &Estimator{rates: rates}
}

// Estimate computes the expected duration and cost for fine-tuning the
// model on the given hardware at the given batch size. batchSize must be
// positive; an unknown hardware type is rejected.
func (e *Estimator) Estimate(model string, hardware models.HardwareType, batchSize float64) (*Estimate, error) {
	if batchSize <= 0 {
		return nil, fmt.Errorf("%w: batch size must be positive, got %v", models.ErrInvalidInput, batchSize)
	}

	costPerHour, ok := e.rates.CostPerHour(hardware)
	if !ok {
		return nil, fmt.Errorf("%w: unknown hardware type %q", models.ErrInvalidInput, hardware)
	}

	baseHours, ok := modelBaseHours[model]
	if !ok {
		baseHours = 1.0
	}

	hours := baseHours * (ReferenceBatchSize / batchSize)

	return &Estimate{
		EstimatedCost: hours * costPerHour,
		Currency:      "USD",
		DurationHours: hours,
		HardwareType:  hardware,
		CostPerHour:   costPerHour,
	}, nil
}

// EstimateRequest extracts the batch size from a tuning request's config
// (default 8) and estimates it.
func (e *Estimator) EstimateRequest(req *models.TuningRequest) (*Estimate, error) {
	batchSize := ReferenceBatchSize
	if v, ok := req.Config["batch_size"]; ok {
		switch n := v.(type) {
		case int:
			batchSize = float64(n)
		case float64:
			batchSize = n
		}
	}
	return e.Estimate(req.Model, req.Hardware, batchSize)
}
