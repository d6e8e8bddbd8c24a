package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/miguelangel-nubla/homeassistant-abode/pkg/homeassistant"
)

type healthResponse struct {
	Status        string `json:"status"`
	MQTTConnected bool   `json:"mqtt_connected"`
	Systems       int    `json:"systems"`
	Version       string `json:"version,omitempty"`
}

type entityResponse struct {
	EntityID   string         `json:"entity_id"`
	Name       string         `json:"name"`
	Platform   string         `json:"platform"`
	UniqueID   string         `json:"unique_id"`
	State      string         `json:"state"`
	Attributes map[string]any `json:"attributes"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	connected := s.deps.Host.Connected()
	status := "ok"
	if !connected {
		status = "degraded"
	}

	writeJSON(w, http.StatusOK, healthResponse{
		Status:        status,
		MQTTConnected: connected,
		Systems:       len(s.deps.Integration.Systems()),
		Version:       s.deps.Version,
	})
}

func (s *Server) handleListEntities(w http.ResponseWriter, _ *http.Request) {
	entities := s.deps.Host.Entities.Entities()

	response := make([]entityResponse, 0, len(entities))
	for _, entity := range entities {
		response = append(response, entityResponse{
			EntityID:   entity.EntityID(),
			Name:       entity.Name(),
			Platform:   entity.Platform(),
			UniqueID:   entity.UniqueID(),
			State:      entity.State(),
			Attributes: entity.Attributes(),
		})
	}

	writeJSON(w, http.StatusOK, response)
}

func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	if s.deps.Events == nil {
		writeNotFound(w, "event journal is disabled")
		return
	}

	limit := defaultEventLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeBadRequest(w, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	entries, err := s.deps.Events.Recent(r.Context(), r.URL.Query().Get("event_type"), limit)
	if err != nil {
		s.logger.WithError(err).Error("Failed to read event journal")
		writeInternalError(w, "failed to read event journal")
		return
	}

	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleCallService(w http.ResponseWriter, r *http.Request) {
	domain := chi.URLParam(r, "domain")
	service := chi.URLParam(r, "service")

	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeBadRequest(w, "failed to read request body")
		return
	}

	err = s.deps.Host.Services.Call(domain, service, payload)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	case errors.Is(err, homeassistant.ErrUnknownService):
		writeNotFound(w, err.Error())
	case errors.Is(err, homeassistant.ErrInvalidPayload):
		writeBadRequest(w, err.Error())
	default:
		s.logger.WithError(err).Error("Service call failed")
		writeInternalError(w, err.Error())
	}
}
