package server

import (
	"context"
	"time"

	"callscreen/internal/admission"
	"callscreen/internal/ai"
	"callscreen/internal/config"
	"callscreen/internal/dialog"
	callscreenErrors "callscreen/internal/errors"
	"callscreen/internal/observability"
	"callscreen/internal/store"

	"github.com/go-playground/validator/v10"
)

// JobRequest is the body of POST /api/jobs.
type JobRequest struct {
	ID              string     `json:"id,omitempty" validate:"omitempty,max=64"`
	Title           string     `json:"title" validate:"required,max=200"`
	Location        string     `json:"location" validate:"max=200"`
	JobType         string     `json:"jobType" validate:"max=100"`
	ExperienceLevel string     `json:"experienceLevel" validate:"max=100"`
	Salary          string     `json:"salary,omitempty" validate:"max=100"`
	Description     string     `json:"description" validate:"required"`
	Requirements    []string   `json:"requirements" validate:"dive,required"`
	Spec            SpecFields `json:"spec" validate:"required"`
	Deadline        *time.Time `json:"deadline,omitempty"`
}

// SpecFields is the scoring specification of a job.
type SpecFields struct {
	Education  string   `json:"education" validate:"omitempty,oneof=diploma bachelor master phd"`
	Experience int      `json:"experience" validate:"gte=0,lte=60"`
	Skills     []string `json:"skills" validate:"required,min=1,dive,required"`
}

// ApplyForm holds the text fields of the multipart application form.
type ApplyForm struct {
	FirstName string `validate:"required,max=100"`
	LastName  string `validate:"required,max=100"`
	Email     string `validate:"required,email"`
	Phone     string `validate:"required,e164"`
}

// CallRequest is the body of POST /api/calls.
type CallRequest struct {
	To string `json:"to" validate:"required,e164"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    string `json:"code,omitempty"`
}

// OracleHealth is what /health asks of each AI service.
type OracleHealth interface {
	GetModelInfo(ctx context.Context) *ai.ModelInfo
	CircuitBreakerStats() map[string]any
}

// Server holds configuration for the HTTP server
type Server struct {
	Host    string
	Port    string
	Version string

	// Full application configuration
	AppConfig *config.Config

	// API Authentication
	APIKeys map[string]bool

	// Timeout configurations
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// Request size limit
	MaxRequestSize int64

	// Rate limiting
	RateLimit   *config.RateLimitConfig
	RateLimiter *RateLimiter

	// Voice webhook
	PublicURL         string
	ValidateSignature bool
	AuthToken         string

	Logger *callscreenErrors.Logger

	store    store.Store
	gate     *admission.Gate
	dialog   *dialog.Orchestrator
	placer   admission.CallPlacer
	oracles  map[config.Operation]OracleHealth
	obs      *observability.ObservabilityManager
	validate *validator.Validate
	now      func() time.Time
}

// ServerConfig holds configuration for creating a Server instance
type ServerConfig struct {
	Host              string
	Port              string
	Version           string
	APIKeys           []string
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxRequestSize    int64
	RateLimit         *config.RateLimitConfig
	PublicURL         string
	ValidateSignature bool
	AuthToken         string
}

// Dependencies are the domain components the handlers drive. Placer may be
// nil when telephony is disabled.
type Dependencies struct {
	Store   store.Store
	Gate    *admission.Gate
	Dialog  *dialog.Orchestrator
	Placer  admission.CallPlacer
	Oracles map[config.Operation]OracleHealth
	Obs     *observability.ObservabilityManager
}

// ConfigFromApp derives the server settings from the application config.
func ConfigFromApp(cfg *config.Config, version string) ServerConfig {
	rateLimit := cfg.Server.RateLimit
	return ServerConfig{
		Host:              cfg.Server.Host,
		Port:              cfg.Server.Port,
		Version:           version,
		APIKeys:           cfg.Server.APIKeys,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
		MaxRequestSize:    cfg.App.MaxFileSize,
		RateLimit:         &rateLimit,
		PublicURL:         cfg.Server.PublicURL,
		ValidateSignature: cfg.Server.ValidateSignature,
		AuthToken:         cfg.Telephony.AuthToken,
	}
}

// NewServer creates a new Server instance from a ServerConfig struct
func NewServer(appCfg *config.Config, cfg ServerConfig, deps Dependencies, logger *callscreenErrors.Logger) *Server {
	if logger == nil {
		logger = callscreenErrors.Discard()
	}
	apiKeyMap := make(map[string]bool)
	for _, key := range cfg.APIKeys {
		if key != "" {
			apiKeyMap[key] = true
		}
	}

	var rateLimiter *RateLimiter
	if cfg.RateLimit != nil && cfg.RateLimit.Enabled {
		rateLimiter = NewRateLimiter(cfg.RateLimit.RequestsPerMin, cfg.RateLimit.BurstCapacity, logger)
	}

	return &Server{
		Host:              cfg.Host,
		Port:              cfg.Port,
		Version:           cfg.Version,
		AppConfig:         appCfg,
		APIKeys:           apiKeyMap,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxRequestSize:    cfg.MaxRequestSize,
		RateLimit:         cfg.RateLimit,
		RateLimiter:       rateLimiter,
		PublicURL:         cfg.PublicURL,
		ValidateSignature: cfg.ValidateSignature,
		AuthToken:         cfg.AuthToken,
		Logger:            logger,
		store:             deps.Store,
		gate:              deps.Gate,
		dialog:            deps.Dialog,
		placer:            deps.Placer,
		oracles:           deps.Oracles,
		obs:               deps.Obs,
		validate:          validator.New(validator.WithRequiredStructEnabled()),
		now:               time.Now,
	}
}
