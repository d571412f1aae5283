package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("CALLSCREEN_CONFIG", writeConfigFile(t, "app:\n  logLevel: warn\n"))
	t.Setenv("CALLSCREEN_AI_APIKEY", "test-key")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.App.LogLevel != "warn" {
		t.Errorf("LogLevel = %q, want warn", cfg.App.LogLevel)
	}
	if cfg.Screening.TimeLimit != 180*time.Second {
		t.Errorf("TimeLimit = %v, want 180s", cfg.Screening.TimeLimit)
	}
	if cfg.Screening.EndMarker != "<<<END_CALL>>>" {
		t.Errorf("EndMarker = %q", cfg.Screening.EndMarker)
	}
	if len(cfg.Screening.EndPhrases) != 2 {
		t.Errorf("EndPhrases = %v", cfg.Screening.EndPhrases)
	}
	if cfg.Store.Driver != "sqlite" {
		t.Errorf("Store.Driver = %q", cfg.Store.Driver)
	}
	if cfg.AI.APIKey != "test-key" {
		t.Errorf("AI.APIKey not read from environment")
	}
}

func TestLoadConfigFileOverrides(t *testing.T) {
	path := writeConfigFile(t, `
ai:
  apiKey: file-key
  interview:
    model: gemini-2.0-flash-lite
    timeout: 5s
screening:
  timeLimit: 2m
  scoreThreshold: 20
  endPhrases: ["hang up", "goodbye"]
server:
  publicURL: https://example.ngrok.app/
`)
	t.Setenv("CALLSCREEN_CONFIG", path)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	interview := cfg.GetInterviewConfig()
	if interview.Model != "gemini-2.0-flash-lite" {
		t.Errorf("interview model = %q", interview.Model)
	}
	if *interview.Timeout != 5*time.Second {
		t.Errorf("interview timeout = %v", *interview.Timeout)
	}
	if interview.APIKey != "file-key" {
		t.Errorf("interview key should fall back to global key")
	}
	if cfg.Screening.TimeLimit != 2*time.Minute || cfg.Screening.ScoreThreshold != 20 {
		t.Errorf("screening overrides not applied: %+v", cfg.Screening)
	}
	if cfg.Screening.EndPhrases[0] != "hang up" {
		t.Errorf("EndPhrases = %v", cfg.Screening.EndPhrases)
	}
	if cfg.Server.PublicURL != "https://example.ngrok.app" {
		t.Errorf("PublicURL should have its trailing slash trimmed, got %q", cfg.Server.PublicURL)
	}
}

func validConfig() *Config {
	return &Config{
		AI:     AIConfig{APIKey: "key", Timeout: time.Second},
		Server: ServerConfig{Port: "8080"},
		App:    AppConfig{DefaultFormat: "json", SupportedFormats: []string{"json", "text"}},
		Screening: ScreeningConfig{
			TimeLimit:      180 * time.Second,
			EndMarker:      "<<<END_CALL>>>",
			Concurrency:    1,
			ReaperInterval: time.Second,
		},
		Store: StoreConfig{Driver: "sqlite", Path: "test.db"},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "missing api key", mutate: func(c *Config) { c.AI.APIKey = "" }, wantErr: true},
		{name: "api key from vault", mutate: func(c *Config) {
			c.AI.APIKey = ""
			c.Vault = VaultConfig{Enabled: true, Secrets: VaultSecrets{GeminiKey: "secret/data/gemini"}}
		}},
		{name: "negative threshold", mutate: func(c *Config) { c.Screening.ScoreThreshold = -1 }, wantErr: true},
		{name: "empty end marker", mutate: func(c *Config) { c.Screening.EndMarker = " " }, wantErr: true},
		{name: "unknown store driver", mutate: func(c *Config) { c.Store.Driver = "mysql" }, wantErr: true},
		{name: "postgres without dsn", mutate: func(c *Config) { c.Store.Driver = "postgres" }, wantErr: true},
		{name: "telephony without public url", mutate: func(c *Config) {
			c.Telephony = TelephonyConfig{Enabled: true, AccountSID: "AC1", AuthToken: "t", FromNumber: "+1555"}
		}, wantErr: true},
		{name: "telephony complete", mutate: func(c *Config) {
			c.Telephony = TelephonyConfig{Enabled: true, AccountSID: "AC1", AuthToken: "t", FromNumber: "+1555"}
			c.Server.PublicURL = "https://example.ngrok.app"
		}},
		{name: "notify without recipient", mutate: func(c *Config) {
			c.Notify = NotifyConfig{Enabled: true, SMTPHost: "smtp", From: "bot@example.com"}
		}, wantErr: true},
		{name: "notify with unknown tls policy", mutate: func(c *Config) {
			c.Notify = NotifyConfig{Enabled: true, SMTPHost: "smtp", From: "bot@example.com", HREmail: "hr@example.com", TLSPolicy: "sometimes"}
		}, wantErr: true},
		{name: "notify mandatory tls", mutate: func(c *Config) {
			c.Notify = NotifyConfig{Enabled: true, SMTPHost: "smtp", From: "bot@example.com", HREmail: "hr@example.com", TLSPolicy: "mandatory"}
		}},
		{name: "bad default format", mutate: func(c *Config) { c.App.DefaultFormat = "xml" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestGetOperationConfigFallbacks(t *testing.T) {
	retries := 0
	cfg := &Config{AI: AIConfig{
		Provider:         "gemini",
		Model:            "gemini-2.0-flash",
		Timeout:          30 * time.Second,
		APIKey:           "global",
		MaxRetries:       2,
		Temperature:      0.4,
		UseSystemPrompts: true,
		Interview:        OperationAIConfig{MaxRetries: &retries},
	}}

	interview := cfg.GetInterviewConfig()
	if *interview.MaxRetries != 0 {
		t.Errorf("explicit zero retries must be kept, got %d", *interview.MaxRetries)
	}
	if interview.Model != "gemini-2.0-flash" || interview.APIKey != "global" {
		t.Errorf("global fallbacks not applied: %+v", interview)
	}

	report := cfg.GetReportConfig()
	*report.Timeout = time.Hour
	if cfg.AI.Timeout != 30*time.Second {
		t.Errorf("resolved config must not alias the global timeout")
	}

	if _, err := cfg.GetOperationConfig("translate"); err == nil {
		t.Errorf("expected error for unknown operation")
	}
}

func TestApplyFallbacksSplitsEnvLists(t *testing.T) {
	t.Setenv("CALLSCREEN_SERVER_APIKEYS", "a, b")
	cfg := &Config{Screening: ScreeningConfig{EndPhrases: []string{"cut the call, end the call"}}}
	cfg.applyFallbacks()

	if len(cfg.Server.APIKeys) != 2 || cfg.Server.APIKeys[1] != "b" {
		t.Errorf("APIKeys = %v", cfg.Server.APIKeys)
	}
	if len(cfg.Screening.EndPhrases) != 2 || cfg.Screening.EndPhrases[1] != "end the call" {
		t.Errorf("EndPhrases = %v", cfg.Screening.EndPhrases)
	}
}
