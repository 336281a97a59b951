package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/yourorg/yield-risk-core/internal/model"
	"github.com/yourorg/yield-risk-core/internal/security"
)

// HealthResponse is served on /health
type HealthResponse struct {
	Status    string            `json:"status"`
	Adapters  map[string]bool   `json:"adapters"`
	Breakers  map[string]string `json:"breakers"`
	Uptime    string            `json:"uptime"`
	Timestamp string            `json:"timestamp"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	adapters := s.svc.HealthCheck(r.Context())

	healthy := 0
	for _, ok := range adapters {
		if ok {
			healthy++
		}
	}

	resp := HealthResponse{
		Status:    "ok",
		Adapters:  adapters,
		Breakers:  s.svc.BreakerStates(),
		Uptime:    time.Since(s.started).Round(time.Second).String(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	status := http.StatusOK
	switch {
	case healthy == 0:
		resp.Status = "unavailable"
		status = http.StatusServiceUnavailable
	case healthy < len(adapters):
		resp.Status = "degraded"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}

func (s *Server) handleOpportunities(w http.ResponseWriter, r *http.Request) {
	s.writeData(w, r, s.svc.GetAllOpportunities(r.Context()))
}

func (s *Server) handleEnriched(w http.ResponseWriter, r *http.Request) {
	if full, _ := strconv.ParseBool(r.URL.Query().Get("full")); full {
		s.writeData(w, r, s.svc.GetFullyEnhancedOpportunities(r.Context()))
		return
	}
	s.writeData(w, r, s.svc.GetEnrichedOpportunities(r.Context()))
}

func (s *Server) handleOpportunity(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	o, err := s.svc.GetOpportunityByID(r.Context(), id)
	if errors.Is(err, model.ErrInvalidIDFormat) {
		s.errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil || o == nil {
		s.errorResponse(w, http.StatusNotFound, "opportunity not found: "+id)
		return
	}
	s.writeData(w, r, o)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	s.writeData(w, r, s.svc.GetAdapterStats(r.Context()))
}

func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	s.writeData(w, r, s.svc.GetCacheStats())
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	result := s.svc.RefreshAllData(r.Context())

	counts := make(map[string]int, len(result))
	for protocol, list := range result {
		counts[protocol] = len(list)
	}
	s.log.WithField("counts", counts).Info("Manual refresh completed")

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

// writeData serves payload with a keccak ETag. With ?signed=true the payload is
// wrapped in a signed envelope.
func (s *Server) writeData(w http.ResponseWriter, r *http.Request, payload interface{}) {
	if signed, _ := strconv.ParseBool(r.URL.Query().Get("signed")); signed {
		if !s.signer.Enabled() {
			s.errorResponse(w, http.StatusNotImplemented, "payload signing is disabled")
			return
		}
		env, err := s.signer.SignPayload(payload)
		if err != nil {
			s.errorResponse(w, http.StatusInternalServerError, err.Error())
			return
		}
		payload = env
	}

	body, err := json.Marshal(payload)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, "failed to encode response")
		return
	}

	etag, err := security.Fingerprint(json.RawMessage(body))
	if err == nil {
		etag = `"` + etag + `"`
		w.Header().Set("ETag", etag)
		if r.Header.Get("If-None-Match") == etag {
			w.WriteHeader(http.StatusNotModified)
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

// errorResponse writes a JSON error body
func (s *Server) errorResponse(w http.ResponseWriter, statusCode int, errorMsg string) {
	s.log.WithField("status", statusCode).Warn(errorMsg)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{"error": errorMsg})
}
