// internal/api/events.go
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"msad-registration/internal/common/errors"
)

// handleEvents streams the caller's application events as Server-Sent
// Events until the client goes away or the feed closes.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.deps.Feed == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "Event feed is not configured"})
		return
	}

	userID, err := s.identify(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if userID == nil {
		writeJSON(w, http.StatusUnauthorized, errorBody{
			Error: "Sign in to follow your applications",
			Code:  string(errors.ErrCodeIdentityRequired),
		})
		return
	}

	ctx := r.Context()
	events, closeFn, err := s.deps.Feed.Subscribe(ctx, *userID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer func() {
		if err := closeFn(); err != nil {
			s.logger.Warn("failed to close event subscription", map[string]interface{}{"error": err})
		}
	}()

	rc := http.NewResponseController(w)
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		s.logger.Error("event stream unsupported", map[string]interface{}{"error": err})
		return
	}

	log := s.logger.WithFields(map[string]interface{}{"userId": *userID})
	log.Debug("event stream opened", nil)

	ticker := time.NewTicker(s.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Debug("event stream closed by client", nil)
			return

		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": heartbeat\n\n"); err != nil {
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}

		case ev, ok := <-events:
			if !ok {
				log.Debug("event feed closed", nil)
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				log.Warn("failed to encode event", map[string]interface{}{"error": err})
				continue
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, data); err != nil {
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}
		}
	}
}
