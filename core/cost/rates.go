package cost

import (
	"context"
	"log"
	"sync"
	"time"

	"finetune-orchestrator/core/models"
)

// RateTable holds per-hardware hourly rates in USD. Reads far outnumber
// writes (writes only happen when a pricing refresh lands), so it is
// guarded by a RWMutex.
type RateTable struct {
	mu    sync.RWMutex
	rates map[models.HardwareType]float64
}

// DefaultRates returns the built-in hardware rate table
func DefaultRates() *RateTable {
	return &RateTable{
		rates: map[models.HardwareType]float64{
			models.HardwareTPU:      3.22, // per TPU v3 core
			models.HardwareTrainium: 4.03,
			models.HardwareGPU:      1.00,
			models.HardwareAMD:      0.80,
		},
	}
}

// CostPerHour returns the hourly rate for the hardware type
func (t *RateTable) CostPerHour(hardware models.HardwareType) (float64, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	rate, ok := t.rates[hardware]
	return rate, ok
}

// SetRate updates the hourly rate for a hardware type. Only known
// hardware types get rates; callers cannot grow the table.
func (t *RateTable) SetRate(hardware models.HardwareType, rate float64) {
	if !hardware.Valid() || rate <= 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rates[hardware] = rate
}

// RateSource supplies fresh hourly rates from an external pricing API
type RateSource interface {
	FetchRates(ctx context.Context) (map[models.HardwareType]float64, error)
}

// RateRefresher periodically overwrites the rate table from a source.
// The built-in defaults stay in place whenever a refresh fails.
type RateRefresher struct {
	table    *RateTable
	source   RateSource
	interval time.Duration
}

// NewRateRefresher creates a refresher updating table from source every
// interval.
func NewRateRefresher(table *RateTable, source RateSource, interval time.Duration) *RateRefresher {
	return &RateRefresher{table: table, source: source, interval: interval}
}

// Start runs the refresh loop until the context is cancelled. An initial
// refresh happens immediately.
func (r *RateRefresher) Start(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.refresh(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.refresh(ctx)
		}
	}
}

func (r *RateRefresher) refresh(ctx context.Context) {
	rates, err := r.source.FetchRates(ctx)
	if err != nil {
		log.Printf("Pricing refresh failed, keeping current rates: %v", err)
		return
	}
	for hardware, rate := range rates {
		r.table.SetRate(hardware, rate)
	}
	log.Printf("Refreshed %d hardware rates", len(rates))
}
