package config

import (
	"fmt"
	"log"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
// Secret precedence order:
// 1. Vault (if configured) - Highest priority
// 2. Config File values
// 3. Environment Variables (CALLSCREEN_AI_APIKEY, etc.)
// 4. Default values - Lowest priority
type Config struct {
	AI            AIConfig            `mapstructure:"ai"`
	Screening     ScreeningConfig     `mapstructure:"screening"`
	Server        ServerConfig        `mapstructure:"server"`
	Telephony     TelephonyConfig     `mapstructure:"telephony"`
	Notify        NotifyConfig        `mapstructure:"notify"`
	Store         StoreConfig         `mapstructure:"store"`
	Jobs          JobsConfig          `mapstructure:"jobs"`
	App           AppConfig           `mapstructure:"app"`
	Vault         VaultConfig         `mapstructure:"vault"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

// AIConfig holds the global model settings and the per-oracle overrides.
type AIConfig struct {
	Provider         string        `mapstructure:"provider"`
	Model            string        `mapstructure:"model"`
	Timeout          time.Duration `mapstructure:"timeout"`
	APIKey           string        `mapstructure:"apiKey"`
	MaxRetries       int           `mapstructure:"maxRetries"`
	Temperature      float32       `mapstructure:"temperature"`
	UseSystemPrompts bool          `mapstructure:"useSystemPrompts"`

	Extract   OperationAIConfig `mapstructure:"extract"`
	Interview OperationAIConfig `mapstructure:"interview"`
	Report    OperationAIConfig `mapstructure:"report"`
}

// CircuitBreakerConfig represents circuit breaker configuration
type CircuitBreakerConfig struct {
	Enabled          bool          `mapstructure:"enabled"`          // Whether circuit breaker is enabled
	MaxRequests      uint32        `mapstructure:"maxRequests"`      // Max requests allowed when half-open
	Interval         time.Duration `mapstructure:"interval"`         // Interval to clear counts
	Timeout          time.Duration `mapstructure:"timeout"`          // Timeout for half-open to open
	MinRequests      uint32        `mapstructure:"minRequests"`      // Minimum requests before tripping
	FailureThreshold float64       `mapstructure:"failureThreshold"` // Failure ratio threshold (0.0-1.0)
}

// OperationAIConfig holds AI configuration for one oracle. Nil pointers
// fall back to the global AIConfig values.
type OperationAIConfig struct {
	Provider         string               `mapstructure:"provider"`
	Model            string               `mapstructure:"model"`
	Timeout          *time.Duration       `mapstructure:"timeout"`
	APIKey           string               `mapstructure:"apiKey"`
	MaxRetries       *int                 `mapstructure:"maxRetries"`
	Temperature      *float32             `mapstructure:"temperature"`
	UseSystemPrompts *bool                `mapstructure:"useSystemPrompts"`
	Prompts          PromptConfig         `mapstructure:"prompts"`
	CircuitBreaker   CircuitBreakerConfig `mapstructure:"circuitBreaker"`
}

// PromptConfig overrides the built-in prompts of an oracle. A file path
// wins over inline text.
type PromptConfig struct {
	System     string `mapstructure:"system"`
	SystemFile string `mapstructure:"systemFile"`
	User       string `mapstructure:"user"`
	UserFile   string `mapstructure:"userFile"`
}

// ScreeningConfig holds the call-time behavior of the phone screen.
type ScreeningConfig struct {
	TimeLimit      time.Duration `mapstructure:"timeLimit"`
	ScoreThreshold float64       `mapstructure:"scoreThreshold"`

	Greeting     string   `mapstructure:"greeting"`
	Continuation string   `mapstructure:"continuation"`
	Expiry       string   `mapstructure:"expiry"`
	Farewell     string   `mapstructure:"farewell"`
	Fallback     string   `mapstructure:"fallback"`
	EndMarker    string   `mapstructure:"endMarker"`
	EndPhrases   []string `mapstructure:"endPhrases"`

	Role         string `mapstructure:"role"`
	Preamble     string `mapstructure:"preamble"`
	PreambleFile string `mapstructure:"preambleFile"`
	JobContext   string `mapstructure:"jobContext"`

	ReaperInterval  time.Duration `mapstructure:"reaperInterval"`
	ReaperGrace     time.Duration `mapstructure:"reaperGrace"`
	TombstoneTTL    time.Duration `mapstructure:"tombstoneTTL"`
	FinalizeTimeout time.Duration `mapstructure:"finalizeTimeout"`
	Concurrency     int           `mapstructure:"concurrency"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         string        `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"readTimeout"`
	WriteTimeout time.Duration `mapstructure:"writeTimeout"`
	IdleTimeout  time.Duration `mapstructure:"idleTimeout"`

	// PublicURL is the externally reachable base URL (tunnel or ingress)
	// the telephony provider calls back on.
	PublicURL string `mapstructure:"publicURL"`

	// API Authentication for the HR endpoints
	APIKeys []string `mapstructure:"apiKeys"`

	// ValidateSignature enables X-Twilio-Signature checks on /voice.
	ValidateSignature bool `mapstructure:"validateSignature"`

	RateLimit RateLimitConfig `mapstructure:"rateLimit"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	Enabled        bool          `mapstructure:"enabled"`        // Enable/disable rate limiting
	RequestsPerMin int           `mapstructure:"requestsPerMin"` // Requests allowed per minute
	BurstCapacity  int           `mapstructure:"burstCapacity"`  // Burst capacity for token bucket
	ByIP           bool          `mapstructure:"byIP"`           // Enable per-IP rate limiting
	ByAPIKey       bool          `mapstructure:"byAPIKey"`       // Enable per-API-key rate limiting
	Window         time.Duration `mapstructure:"window"`         // Rate limiting window duration
}

// TelephonyConfig holds the Twilio account used to place calls.
type TelephonyConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	AccountSID string        `mapstructure:"accountSid"`
	AuthToken  string        `mapstructure:"authToken"`
	FromNumber string        `mapstructure:"fromNumber"`
	APIBaseURL string        `mapstructure:"apiBaseURL"`
	MaxRetries int           `mapstructure:"maxRetries"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// NotifyConfig holds the SMTP settings for HR reports.
type NotifyConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	SMTPHost string        `mapstructure:"smtpHost"`
	SMTPPort int           `mapstructure:"smtpPort"`
	Username string        `mapstructure:"username"`
	Password string        `mapstructure:"password"`
	From     string        `mapstructure:"from"`
	HREmail  string        `mapstructure:"hrEmail"`
	Subject  string        `mapstructure:"subject"`
	Timeout  time.Duration `mapstructure:"timeout"`

	// TLSPolicy is opportunistic, mandatory or none.
	TLSPolicy string `mapstructure:"tlsPolicy"`
}

// StoreConfig selects the application store backend.
type StoreConfig struct {
	Driver        string `mapstructure:"driver"` // sqlite or postgres
	Path          string `mapstructure:"path"`
	DSN           string `mapstructure:"dsn"`
	TranscriptLog string `mapstructure:"transcriptLog"`
}

// JobsConfig points at the TOML job catalog.
type JobsConfig struct {
	CatalogFile   string        `mapstructure:"catalogFile"`
	Watch         bool          `mapstructure:"watch"`
	DebounceDelay time.Duration `mapstructure:"debounceDelay"`
}

// AppConfig holds general application configuration
type AppConfig struct {
	LogLevel         string   `mapstructure:"logLevel"`
	DefaultFormat    string   `mapstructure:"defaultFormat"`
	SupportedFormats []string `mapstructure:"supportedFormats"`
	MaxFileSize      int64    `mapstructure:"maxFileSize"`
}

// ObservabilityConfig holds observability configuration
type ObservabilityConfig struct {
	Enabled         bool                `mapstructure:"enabled"`
	ServiceName     string              `mapstructure:"serviceName"`
	ServiceVersion  string              `mapstructure:"serviceVersion"`
	ServiceInstance string              `mapstructure:"serviceInstance"`
	ConsoleOutput   bool                `mapstructure:"consoleOutput"`
	SampleRate      float64             `mapstructure:"sampleRate"`
	Tracing         TracingConfig       `mapstructure:"tracing"`
	Metrics         MetricsConfig       `mapstructure:"metrics"`
	CustomMetrics   CustomMetricsConfig `mapstructure:"customMetrics"`
	Console         ConsoleConfig       `mapstructure:"console"`
	Prometheus      PrometheusConfig    `mapstructure:"prometheus"`
	OTLP            OTLPConfig          `mapstructure:"otlp"`
	HealthCheck     HealthCheckConfig   `mapstructure:"healthCheck"`
}

type TracingConfig struct {
	Enabled    bool    `mapstructure:"enabled"`
	SampleRate float64 `mapstructure:"sampleRate"`
}

type MetricsConfig struct {
	Enabled            bool          `mapstructure:"enabled"`
	CollectionInterval time.Duration `mapstructure:"collectionInterval"`
}

type ConsoleConfig struct {
	Enabled     bool `mapstructure:"enabled"`
	PrettyPrint bool `mapstructure:"prettyPrint"`
}

// CustomMetricsConfig holds fine-grained custom metrics configuration
type CustomMetricsConfig struct {
	AIOperations    AIOperationsMetricsConfig   `mapstructure:"aiOperations"`
	BusinessMetrics BusinessMetricsConfig       `mapstructure:"businessMetrics"`
	Infrastructure  InfrastructureMetricsConfig `mapstructure:"infrastructure"`
}

type AIOperationsMetricsConfig struct {
	Enabled         bool `mapstructure:"enabled"`
	TrackDuration   bool `mapstructure:"trackDuration"`
	TrackTokenUsage bool `mapstructure:"trackTokenUsage"`
	TrackModelInfo  bool `mapstructure:"trackModelInfo"`
}

type BusinessMetricsConfig struct {
	Enabled           bool `mapstructure:"enabled"`
	TrackSuccessRates bool `mapstructure:"trackSuccessRates"`
	TrackCallOutcomes bool `mapstructure:"trackCallOutcomes"`
}

type InfrastructureMetricsConfig struct {
	Enabled         bool `mapstructure:"enabled"`
	TrackRateLimits bool `mapstructure:"trackRateLimits"`
	TrackSessions   bool `mapstructure:"trackSessions"`
}

type PrometheusConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint"`
	Port     string `mapstructure:"port"`
}

type OTLPConfig struct {
	Enabled  bool              `mapstructure:"enabled"`
	Endpoint string            `mapstructure:"endpoint"`
	Insecure bool              `mapstructure:"insecure"`
	Headers  map[string]string `mapstructure:"headers"`
}

type HealthCheckConfig struct {
	Timeout             time.Duration `mapstructure:"timeout"`
	AIModelCheckTimeout time.Duration `mapstructure:"aiModelCheckTimeout"`
}

// LoadConfig loads configuration from defaults, an optional config file and
// environment variables. CALLSCREEN_CONFIG names an explicit config file.
func LoadConfig() (*Config, error) {
	log.Println("[CONFIG] Starting configuration loading process")

	v := viper.New()

	setDefaults(v)
	log.Println("[CONFIG] Applied default configuration values")

	v.SetEnvPrefix("CALLSCREEN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	log.Println("[CONFIG] Configured environment variable handling with prefix 'CALLSCREEN'")

	if explicit := os.Getenv("CALLSCREEN_CONFIG"); explicit != "" {
		v.SetConfigFile(explicit)
		log.Printf("[CONFIG] Using explicit config file: %s", explicit)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("/etc/callscreen/")
		v.AddConfigPath("$HOME/.callscreen")
		v.AddConfigPath(".")
		log.Println("[CONFIG] Configured config file search paths: /etc/callscreen/, $HOME/.callscreen, .")
	}

	configFileUsed := ""
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		log.Println("[CONFIG] No config file found, using defaults and environment variables")
	} else {
		configFileUsed = v.ConfigFileUsed()
		log.Printf("[CONFIG] Successfully loaded config file: %s", configFileUsed)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	config.applyFallbacks()
	config.logConfigurationSources(configFileUsed)

	if err := config.validatePromptFiles(); err != nil {
		return nil, fmt.Errorf("prompt file validation failed: %w", err)
	}
	if err := config.loadPromptsFromFiles(); err != nil {
		return nil, fmt.Errorf("failed to load custom prompts from files: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	log.Println("[CONFIG] Configuration loading completed successfully")
	return &config, nil
}

// Validate checks if the configuration is valid. The AI key is only
// required here when Vault is not going to supply it.
func (c *Config) Validate() error {
	if c.AI.APIKey == "" && !(c.Vault.Enabled && c.Vault.Secrets.GeminiKey != "") {
		return fmt.Errorf("AI API key is required (set CALLSCREEN_AI_APIKEY environment variable)")
	}
	if c.AI.Timeout <= 0 {
		return fmt.Errorf("AI timeout must be positive")
	}
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}

	validFormats := make(map[string]bool)
	for _, format := range c.App.SupportedFormats {
		validFormats[format] = true
	}
	if !validFormats[c.App.DefaultFormat] {
		return fmt.Errorf("invalid default format: %s", c.App.DefaultFormat)
	}

	if err := c.Screening.validate(); err != nil {
		return fmt.Errorf("screening configuration error: %w", err)
	}

	switch c.Store.Driver {
	case "sqlite":
		if c.Store.Path == "" {
			return fmt.Errorf("store.path is required for the sqlite driver")
		}
	case "postgres":
		if c.Store.DSN == "" {
			return fmt.Errorf("store.dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("invalid store driver: %s (must be 'sqlite' or 'postgres')", c.Store.Driver)
	}

	if c.Telephony.Enabled {
		if c.Telephony.AccountSID == "" || c.Telephony.FromNumber == "" {
			return fmt.Errorf("telephony.accountSid and telephony.fromNumber are required when telephony is enabled")
		}
		if c.Telephony.AuthToken == "" && !(c.Vault.Enabled && c.Vault.Secrets.Twilio != "") {
			return fmt.Errorf("telephony.authToken is required when telephony is enabled")
		}
		if _, err := url.ParseRequestURI(c.Server.PublicURL); err != nil {
			return fmt.Errorf("server.publicURL must be an absolute URL when telephony is enabled: %w", err)
		}
	}

	if c.Notify.Enabled {
		if c.Notify.SMTPHost == "" || c.Notify.From == "" || c.Notify.HREmail == "" {
			return fmt.Errorf("notify.smtpHost, notify.from and notify.hrEmail are required when notifications are enabled")
		}
		switch strings.ToLower(c.Notify.TLSPolicy) {
		case "", "opportunistic", "mandatory", "none":
		default:
			return fmt.Errorf("notify.tlsPolicy must be opportunistic, mandatory or none, got %q", c.Notify.TLSPolicy)
		}
	}

	return nil
}

func (s ScreeningConfig) validate() error {
	if s.TimeLimit <= 0 {
		return fmt.Errorf("timeLimit must be positive")
	}
	if s.ScoreThreshold < 0 {
		return fmt.Errorf("scoreThreshold must not be negative")
	}
	if strings.TrimSpace(s.EndMarker) == "" {
		return fmt.Errorf("endMarker must not be empty")
	}
	if s.Concurrency <= 0 {
		return fmt.Errorf("concurrency must be positive")
	}
	if s.ReaperInterval <= 0 {
		return fmt.Errorf("reaperInterval must be positive")
	}
	for _, phrase := range s.EndPhrases {
		if strings.TrimSpace(phrase) == "" {
			return fmt.Errorf("endPhrases must not contain empty entries")
		}
	}
	return nil
}

// applyFallbacks fills values that cannot be expressed as static defaults.
func (c *Config) applyFallbacks() {
	if len(c.Server.APIKeys) == 0 {
		if apiKeysEnv := os.Getenv("CALLSCREEN_SERVER_APIKEYS"); apiKeysEnv != "" {
			c.Server.APIKeys = splitAndTrim(apiKeysEnv)
		}
	}

	// viper reads a comma separated env var as one element
	if len(c.Screening.EndPhrases) == 1 && strings.Contains(c.Screening.EndPhrases[0], ",") {
		c.Screening.EndPhrases = splitAndTrim(c.Screening.EndPhrases[0])
	}

	c.Server.PublicURL = strings.TrimRight(c.Server.PublicURL, "/")

	if c.Observability.ServiceInstance == "" {
		if hostname, err := os.Hostname(); err == nil {
			c.Observability.ServiceInstance = fmt.Sprintf("%s-%s", c.Observability.ServiceName, hostname)
		} else {
			c.Observability.ServiceInstance = fmt.Sprintf("%s-1", c.Observability.ServiceName)
		}
	}

	if c.App.LogLevel == "debug" && !c.Observability.ConsoleOutput {
		c.Observability.ConsoleOutput = true
	}
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// logConfigurationSources logs a summary of configuration sources being used
func (c *Config) logConfigurationSources(configFileUsed string) {
	log.Println("[CONFIG] === Configuration Sources Summary ===")

	if configFileUsed != "" {
		log.Printf("[CONFIG] Config file: %s", configFileUsed)
	} else {
		log.Println("[CONFIG] Config file: None (using defaults)")
	}

	envVars := []string{
		"CALLSCREEN_AI_APIKEY",
		"CALLSCREEN_AI_MODEL",
		"CALLSCREEN_SERVER_PORT",
		"CALLSCREEN_SERVER_PUBLICURL",
		"CALLSCREEN_APP_LOGLEVEL",
		"CALLSCREEN_STORE_DRIVER",
		"CALLSCREEN_TELEPHONY_AUTHTOKEN",
		"CALLSCREEN_NOTIFY_PASSWORD",
		"CALLSCREEN_VAULT_ENABLED",
	}

	log.Println("[CONFIG] Environment variables:")
	hasEnvVars := false
	for _, envVar := range envVars {
		if value := os.Getenv(envVar); value != "" {
			if isSensitiveEnv(envVar) {
				log.Printf("[CONFIG]   %s=***MASKED***", envVar)
			} else {
				log.Printf("[CONFIG]   %s=%s", envVar, value)
			}
			hasEnvVars = true
		}
	}
	if !hasEnvVars {
		log.Println("[CONFIG]   None set")
	}

	log.Println("[CONFIG] === Key Configuration Values ===")
	log.Printf("[CONFIG] AI Provider: %s", c.AI.Provider)
	log.Printf("[CONFIG] AI Model: %s", c.AI.Model)
	if c.AI.APIKey != "" {
		log.Println("[CONFIG] AI API Key: ***CONFIGURED***")
	} else {
		log.Println("[CONFIG] AI API Key: ***NOT SET***")
	}
	log.Printf("[CONFIG] Server: %s:%s (public %q)", c.Server.Host, c.Server.Port, c.Server.PublicURL)
	log.Printf("[CONFIG] Screening: timeLimit=%s scoreThreshold=%.2f", c.Screening.TimeLimit, c.Screening.ScoreThreshold)
	log.Printf("[CONFIG] Store Driver: %s", c.Store.Driver)
	log.Printf("[CONFIG] Telephony Enabled: %t", c.Telephony.Enabled)
	log.Printf("[CONFIG] Notify Enabled: %t", c.Notify.Enabled)
	log.Printf("[CONFIG] Log Level: %s", c.App.LogLevel)
	log.Printf("[CONFIG] Vault Enabled: %t", c.Vault.Enabled)
	log.Printf("[CONFIG] Observability Enabled: %t", c.Observability.Enabled)
	log.Println("[CONFIG] =====================================")
}

func isSensitiveEnv(name string) bool {
	lower := strings.ToLower(name)
	for _, marker := range []string{"key", "token", "password"} {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
