package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/sardine-ai/go-widget-config/model"
	"github.com/sirupsen/logrus"
)

// RepositoryStatus describes the repository behind the controller.
type RepositoryStatus struct {
	Name        string          `json:"name"`
	LastRefresh time.Time       `json:"last_refresh"`
	Error       string          `json:"error,omitempty"`
	Channels    map[string]bool `json:"channels"` // storage key -> set up
}

func (s *Server) IsHealthy() bool {
	return s.Controller.Healthy()
}

// IsReady reports whether the controller completed at least one refresh.
func (s *Server) IsReady() bool {
	at, _ := s.Controller.LastRefresh()
	return !at.IsZero()
}

func (s *Server) GetRepositoryStatus() RepositoryStatus {
	at, err := s.Controller.LastRefresh()
	status := RepositoryStatus{
		Name:        s.Controller.Repository.GetName(),
		LastRefresh: at,
		Channels:    make(map[string]bool, len(model.Channels)),
	}
	if err != nil {
		status.Error = err.Error()
	}
	for _, channel := range model.Channels {
		status.Channels[channel.Key()] = s.Controller.IsSetUp(channel)
	}
	return status
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	if s.IsHealthy() {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
		return
	}
	writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	if s.IsReady() {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
		return
	}
	writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready"})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"healthy":    s.IsHealthy(),
		"ready":      s.IsReady(),
		"repository": s.GetRepositoryStatus(),
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logrus.WithError(err).Error("error writing response")
	}
}
