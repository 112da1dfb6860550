package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cviz/relay/internal/models"
	"github.com/cviz/relay/internal/relay"
)

// HealthHandler serves the health check and the cached-topics snapshot.
type HealthHandler struct {
	hub *relay.Hub
}

// NewHealthHandler creates a HealthHandler backed by the given hub.
func NewHealthHandler(hub *relay.Hub) *HealthHandler {
	return &HealthHandler{hub: hub}
}

// Health reports liveness.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, models.HealthResponse{Status: "ok"})
}

// Topics returns the topics that currently hold at least one cached message.
func (h *HealthHandler) Topics(w http.ResponseWriter, r *http.Request) {
	topics := h.hub.CachedTopics()
	if topics == nil {
		topics = []string{}
	}
	writeJSON(w, http.StatusOK, models.TopicsResponse{Topics: topics})
}

// TopicInfo returns one registered topic's lifecycle state, history limit and
// cache occupancy. 404 for topics the hub does not know about.
func (h *HealthHandler) TopicInfo(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "topic")
	info, ok := h.hub.Info(name)
	if !ok {
		writeError(w, http.StatusNotFound, "topic not registered")
		return
	}
	writeJSON(w, http.StatusOK, models.TopicInfoResponse{
		Topic:        info.Topic,
		State:        info.State.String(),
		HistoryLimit: info.HistoryLimit,
		Cached:       info.Cached,
		Subscribers:  info.Subscribers,
	})
}
