// Copyright 2025 CL8Y Bridge Contributors

package supervisor

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/cl8y-bridge/bridge-core/pkg/chain"
	"github.com/cl8y-bridge/bridge-core/pkg/store"
)

// HealthStatus is the /health response: overall state plus per-component
// connectivity.
type HealthStatus struct {
	Status        string            `json:"status"` // "ok" | "degraded"
	Store         string            `json:"store"`
	Chains        map[string]string `json:"chains"`
	UptimeSeconds int64             `json:"uptime_seconds"`
	CheckedAt     time.Time         `json:"checked_at"`
}

// HealthHandler probes the store and every configured chain on demand.
type HealthHandler struct {
	store     *store.Client
	registry  *chain.Registry
	startTime time.Time

	mu         sync.Mutex
	lastResult *HealthStatus
	lastCheck  time.Time
}

// NewHealthHandler builds the /health endpoint over the shared handles.
func NewHealthHandler(st *store.Client, registry *chain.Registry) *HealthHandler {
	return &HealthHandler{
		store:     st,
		registry:  registry,
		startTime: time.Now(),
	}
}

// ServeHTTP answers with the current component health, caching probes for a
// few seconds so a scrape storm doesn't hammer the RPC endpoints.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	if h.lastResult != nil && time.Since(h.lastCheck) < 5*time.Second {
		status := *h.lastResult
		h.mu.Unlock()
		writeHealth(w, &status)
		return
	}
	h.mu.Unlock()

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	status := &HealthStatus{
		Status:        "ok",
		Store:         "connected",
		Chains:        make(map[string]string),
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		CheckedAt:     time.Now(),
	}

	if err := h.store.Ping(ctx); err != nil {
		status.Store = "disconnected"
		status.Status = "degraded"
	}

	for _, c := range h.registry.All() {
		if _, err := c.LatestHeight(ctx); err != nil {
			status.Chains[c.Name()] = "disconnected"
			status.Status = "degraded"
		} else {
			status.Chains[c.Name()] = "connected"
		}
	}

	h.mu.Lock()
	h.lastResult = status
	h.lastCheck = time.Now()
	h.mu.Unlock()

	writeHealth(w, status)
}

func writeHealth(w http.ResponseWriter, status *HealthStatus) {
	w.Header().Set("Content-Type", "application/json")
	if status.Status != "ok" {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(status)
}
