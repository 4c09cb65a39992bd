package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"learn.windowlimiter/types"
)

// StatusResponse is the body of GET /limits/{limiter}/{identifier}.
type StatusResponse struct {
	Limiter       string  `json:"limiter"`
	Identifier    string  `json:"identifier"`
	CanSend       bool    `json:"can_send"`
	Remaining     int64   `json:"remaining"`
	Limit         int64   `json:"limit"`
	WindowSeconds float64 `json:"window_seconds"`
	WaitSeconds   float64 `json:"wait_seconds"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// StatusHandler reports an identifier's standing in a limiter without
// recording a request. It expects chi URL params "limiter" and "identifier".
func StatusHandler(limiters map[string]types.AdmissionController) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limiterKey := chi.URLParam(r, "limiter")
		identifier := chi.URLParam(r, "identifier")

		limiter, ok := limiters[limiterKey]
		if !ok {
			writeJSON(w, http.StatusNotFound, errorResponse{Error: "unknown limiter '" + limiterKey + "'"})
			return
		}
		if identifier == "" {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "identifier is required"})
			return
		}

		writeJSON(w, http.StatusOK, StatusResponse{
			Limiter:       limiterKey,
			Identifier:    identifier,
			CanSend:       limiter.CanSend(identifier),
			Remaining:     limiter.Remaining(identifier),
			Limit:         limiter.Limit(),
			WindowSeconds: limiter.Window().Seconds(),
			WaitSeconds:   limiter.WaitUntilAllowed(identifier).Seconds(),
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("Middleware: Failed to encode JSON response")
	}
}
