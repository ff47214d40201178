// internal/api/health.go
package api

import (
	"context"
	"net/http"
	"sort"
	"time"
)

const checkTimeout = 3 * time.Second

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// handleReady runs every readiness check and reports 503 when any fails.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	names := make([]string, 0, len(s.deps.Checks))
	for name := range s.deps.Checks {
		names = append(names, name)
	}
	sort.Strings(names)

	results := make(map[string]string, len(names))
	status, code := "ready", http.StatusOK
	for _, name := range names {
		ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
		err := s.deps.Checks[name](ctx)
		cancel()
		if err != nil {
			results[name] = err.Error()
			status, code = "not_ready", http.StatusServiceUnavailable
			s.logger.Warn("readiness check failed", map[string]interface{}{"check": name, "error": err})
			continue
		}
		results[name] = "ok"
	}

	writeJSON(w, code, map[string]interface{}{"status": status, "checks": results})
}
