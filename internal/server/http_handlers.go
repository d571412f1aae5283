package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"mime"
	"net/http"
	"time"

	callscreenErrors "callscreen/internal/errors"
)

// getHealthCheckTimeout returns the configured health check timeout
func (s *Server) getHealthCheckTimeout() time.Duration {
	if s.AppConfig != nil && s.AppConfig.Observability.HealthCheck.Timeout > 0 {
		return s.AppConfig.Observability.HealthCheck.Timeout
	}
	return 5 * time.Second
}

// healthHandler reports model availability and breaker state per oracle.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.getHealthCheckTimeout())
	defer cancel()

	models := make(map[string]any, len(s.oracles))
	breakers := make(map[string]any, len(s.oracles))
	healthy := true
	for op, oracle := range s.oracles {
		info := oracle.GetModelInfo(ctx)
		models[string(op)] = info
		if info == nil || !info.Available {
			healthy = false
		}
		breakers[string(op)] = oracle.CircuitBreakerStats()
	}

	response := map[string]any{
		"status":           "healthy",
		"service":          "callscreen",
		"version":          s.Version,
		"ai_models":        models,
		"circuit_breakers": breakers,
		"telephony":        s.placer != nil,
	}

	status := http.StatusOK
	if !healthy {
		response["status"] = "degraded"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, response)
}

// statsHandler reports live sessions, stored records and rate limiting.
func (s *Server) statsHandler(w http.ResponseWriter, r *http.Request) {
	response := map[string]any{
		"service": "callscreen",
		"version": s.Version,
		"server": map[string]any{
			"max_request_size_bytes": s.MaxRequestSize,
		},
	}
	if s.dialog != nil {
		response["sessions"] = s.dialog.Registry().Stats()
	}
	if s.gate != nil {
		response["score_threshold"] = s.gate.Threshold()
	}
	if s.store != nil {
		if stats, err := s.store.Stats(r.Context()); err == nil {
			response["store"] = stats
		} else {
			s.Logger.LogError(err, "Failed to collect store stats")
		}
	}
	if s.RateLimiter != nil {
		response["rate_limiting"] = s.RateLimiter.GetStats()
	} else {
		response["rate_limiting"] = map[string]any{"enabled": false}
	}
	writeJSON(w, http.StatusOK, response)
}

// parseJSONRequest parses JSON request body into the provided struct
func parseJSONRequest(r *http.Request, v any) error {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "application/json" {
		return fmt.Errorf("content-type must be application/json")
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			return fmt.Errorf("request body too large (limit is %d bytes)", maxBytesErr.Limit)
		}
		return fmt.Errorf("failed to read request body: %w", err)
	}
	defer func() {
		if err := r.Body.Close(); err != nil {
			log.Printf("Failed to close request body: %v", err)
		}
	}()

	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("failed to parse JSON: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}

// writeErrorResponse writes a standardized error response
func writeErrorResponse(w http.ResponseWriter, error, message string, statusCode int) {
	writeJSON(w, statusCode, ErrorResponse{Error: error, Message: message})
}

// writeAppError maps an AppError onto an HTTP status.
func (s *Server) writeAppError(w http.ResponseWriter, err error) {
	appErr, ok := callscreenErrors.As(err)
	if !ok {
		s.Logger.LogError(err, "Unhandled request error")
		writeErrorResponse(w, "Internal error", err.Error(), http.StatusInternalServerError)
		return
	}

	status := http.StatusInternalServerError
	switch {
	case appErr.Code == callscreenErrors.ErrCodeNotFound:
		status = http.StatusNotFound
	case appErr.Code == callscreenErrors.ErrCodeConflict:
		status = http.StatusConflict
	case appErr.Type == callscreenErrors.ErrorTypeValidation:
		status = http.StatusBadRequest
	case appErr.Type == callscreenErrors.ErrorTypeNetwork:
		status = http.StatusBadGateway
	}
	if status >= 500 {
		s.Logger.LogError(err, "Request failed")
	}
	writeJSON(w, status, ErrorResponse{Error: appErr.Message, Code: appErr.Code})
}
