package server

import (
	"encoding/json"
	"net/http"
	"sync"
)

type ServingStatus string

const (
	Serving    ServingStatus = "SERVING"
	NotServing ServingStatus = "NOT_SERVING"
)

// HealthChecker reports the serving status of named components.
type HealthChecker struct {
	mu     sync.RWMutex
	status map[string]ServingStatus
}

func NewHealthChecker() *HealthChecker {
	return &HealthChecker{
		status: make(map[string]ServingStatus),
	}
}

// SetServingStatus sets the serving status of a component
func (h *HealthChecker) SetServingStatus(component string, status ServingStatus) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.status[component] = status
}

// ServeHTTP answers 200 when every component is serving and 503 otherwise.
func (h *HealthChecker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	snapshot := make(map[string]ServingStatus, len(h.status))
	code := http.StatusOK
	for name, st := range h.status {
		snapshot[name] = st
		if st != Serving {
			code = http.StatusServiceUnavailable
		}
	}
	h.mu.RUnlock()

	writeJSON(w, code, snapshot)
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
