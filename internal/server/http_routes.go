package server

import (
	"net/http"
)

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.obs.HTTPMiddleware()(s.setupRoutes())
}

// setupRoutes configures all HTTP routes and middleware
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	limit := s.rateLimitMiddleware()
	sized := s.requestSizeLimitMiddleware()
	// hr guards the HR API: rate limit, API key, body size.
	hr := func(h http.HandlerFunc) http.HandlerFunc {
		return limit(s.authMiddleware(sized(h)))
	}

	mux.HandleFunc("GET /health", s.healthHandler)
	mux.HandleFunc("GET /stats", s.statsHandler)

	mux.HandleFunc("POST /voice", sized(s.signatureMiddleware(s.voiceHandler)))

	mux.HandleFunc("GET /api/jobs", limit(s.listJobsHandler))
	mux.HandleFunc("GET /api/jobs/{id}", limit(s.getJobHandler))
	mux.HandleFunc("POST /api/jobs", hr(s.createJobHandler))
	mux.HandleFunc("DELETE /api/jobs/{id}", hr(s.deleteJobHandler))
	mux.HandleFunc("POST /api/jobs/{id}/apply", limit(sized(s.applyHandler)))

	mux.HandleFunc("GET /api/applications", hr(s.listApplicationsHandler))
	mux.HandleFunc("GET /api/applications/{id}", hr(s.getApplicationHandler))
	mux.HandleFunc("DELETE /api/applications/{id}", hr(s.deleteApplicationHandler))
	mux.HandleFunc("POST /api/applications/{id}/screen", hr(s.screenApplicationHandler))

	mux.HandleFunc("GET /api/calls", hr(s.listCallsHandler))
	mux.HandleFunc("POST /api/calls", hr(s.placeCallHandler))

	return mux
}

// authMiddleware provides API key authentication
func (s *Server) authMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Skip authentication if no API keys are configured
		if len(s.APIKeys) == 0 {
			next(w, r)
			return
		}

		apiKey := requestAPIKey(r)
		if apiKey == "" {
			s.Logger.Info("Authentication failed: missing API key",
				"endpoint", r.URL.Path,
				"client_ip", getClientIP(r))
			writeErrorResponse(w, "Missing API key", "X-API-Key header or Authorization Bearer token required", http.StatusUnauthorized)
			return
		}

		if !s.APIKeys[apiKey] {
			s.Logger.Info("Authentication failed: invalid API key",
				"endpoint", r.URL.Path,
				"client_ip", getClientIP(r),
				"api_key_prefix", maskAPIKey(apiKey))
			writeErrorResponse(w, "Invalid API key", "Unauthorized access", http.StatusUnauthorized)
			return
		}

		next(w, r)
	}
}

// requestSizeLimitMiddleware limits the size of incoming requests
func (s *Server) requestSizeLimitMiddleware() func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if s.MaxRequestSize > 0 {
				// Multipart overhead on top of the résumé itself.
				r.Body = http.MaxBytesReader(w, r.Body, s.MaxRequestSize+64<<10)
			}
			next(w, r)
		}
	}
}

// maskAPIKey masks an API key for logging (shows only first 8 characters)
func maskAPIKey(apiKey string) string {
	if len(apiKey) <= 8 {
		return "****"
	}
	return apiKey[:8] + "****"
}
