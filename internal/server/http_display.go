package server

import "fmt"

// displayServerInfo shows server configuration information
func (s *Server) displayServerInfo() {
	s.displayEndpoints()
	s.displayAuthInfo()
	s.displayWebhookInfo()
	s.displayRateLimitInfo()
}

func (s *Server) displayEndpoints() {
	fmt.Println("Available endpoints:")
	fmt.Println("  GET    /health                          - Health check")
	fmt.Println("  GET    /stats                           - Server statistics")
	fmt.Println("  POST   /voice                           - Telephony turn webhook")
	fmt.Println("  GET    /api/jobs                        - List jobs")
	fmt.Println("  GET    /api/jobs/{id}                   - Get job")
	fmt.Println("  POST   /api/jobs                        - Create or update job (requires API key)")
	fmt.Println("  DELETE /api/jobs/{id}                   - Delete job (requires API key)")
	fmt.Println("  POST   /api/jobs/{id}/apply             - Apply with a PDF résumé")
	fmt.Println("  GET    /api/applications                - List applications (requires API key)")
	fmt.Println("  GET    /api/applications/{id}           - Get application (requires API key)")
	fmt.Println("  DELETE /api/applications/{id}           - Delete application (requires API key)")
	fmt.Println("  POST   /api/applications/{id}/screen    - Re-run screening (requires API key)")
	fmt.Println("  GET    /api/calls                       - Active calls (requires API key)")
	fmt.Println("  POST   /api/calls                       - Place a call (requires API key)")
}

func (s *Server) displayAuthInfo() {
	if len(s.APIKeys) > 0 {
		fmt.Printf("API authentication: ENABLED (%d keys configured)\n", len(s.APIKeys))
	} else {
		fmt.Println("API authentication: DISABLED (no API keys configured)")
		fmt.Println("WARNING: HR endpoints are publicly accessible!")
	}
}

func (s *Server) displayWebhookInfo() {
	if s.PublicURL != "" {
		fmt.Printf("Voice webhook: %s/voice\n", s.PublicURL)
	} else {
		fmt.Println("Voice webhook: no server.publicURL configured, outbound calls cannot call back")
	}
	if !s.ValidateSignature {
		fmt.Println("WARNING: webhook signature validation is disabled")
	}
}

func (s *Server) displayRateLimitInfo() {
	if s.RateLimit != nil && s.RateLimit.Enabled {
		fmt.Printf("Rate limiting: ENABLED (%d requests/min, burst: %d)\n",
			s.RateLimit.RequestsPerMin, s.RateLimit.BurstCapacity)
	} else {
		fmt.Println("Rate limiting: DISABLED")
	}
}
