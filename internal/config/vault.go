package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"callscreen/internal/errors"

	"github.com/hashicorp/vault/api"
)

// VaultConfig holds Vault connection configuration
type VaultConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Address   string `mapstructure:"address"`
	Token     string `mapstructure:"token"`
	TokenFile string `mapstructure:"tokenFile"`
	Namespace string `mapstructure:"namespace"`

	Secrets VaultSecrets `mapstructure:"secrets"`
}

// VaultSecrets are KVv2 paths. Empty paths are skipped.
type VaultSecrets struct {
	// APIKeys holds a comma separated "keys" value for the HR API.
	APIKeys string `mapstructure:"apiKeys"`
	// GeminiKey holds "api_key".
	GeminiKey string `mapstructure:"geminiKey"`
	// Twilio holds "account_sid" and "auth_token".
	Twilio string `mapstructure:"twilio"`
	// SMTP holds "username" and "password".
	SMTP string `mapstructure:"smtp"`
	// Database holds "dsn" for the postgres store.
	Database string `mapstructure:"database"`
}

// VaultClient wraps the Vault API client
type VaultClient struct {
	client *api.Client
	config VaultConfig
	logger *errors.Logger
}

// NewVaultClient creates a new Vault client from configuration. It returns
// nil without error when Vault is disabled.
func NewVaultClient(config VaultConfig, logger *errors.Logger) (*VaultClient, error) {
	if !config.Enabled {
		logger.Debug("Vault integration disabled")
		return nil, nil
	}

	logger.Debug("Initializing Vault client",
		"address", config.Address,
		"namespace", config.Namespace,
		"token_file", config.TokenFile,
		"has_token", config.Token != "")

	apiConfig := api.DefaultConfig()
	if config.Address != "" {
		apiConfig.Address = config.Address
	}
	client, err := api.NewClient(apiConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}
	if config.Namespace != "" {
		client.SetNamespace(config.Namespace)
	}

	token, err := resolveVaultToken(config, logger)
	if err != nil {
		return nil, err
	}
	client.SetToken(token)

	health, err := client.Sys().Health()
	if err != nil {
		logger.LogError(err, "Failed to connect to Vault", "address", config.Address)
		return nil, fmt.Errorf("failed to connect to vault: %w", err)
	}
	logger.Info("Successfully connected to Vault",
		"address", config.Address,
		"version", health.Version,
		"sealed", health.Sealed,
		"cluster_name", health.ClusterName)

	return &VaultClient{client: client, config: config, logger: logger}, nil
}

// resolveVaultToken resolves the Vault token from config or file
func resolveVaultToken(config VaultConfig, logger *errors.Logger) (string, error) {
	token := config.Token

	if token == "" && config.TokenFile != "" {
		logger.Debug("Reading Vault token from file", "file", config.TokenFile)
		tokenBytes, err := os.ReadFile(config.TokenFile)
		if err != nil {
			return "", fmt.Errorf("failed to read vault token file: %w", err)
		}
		token = strings.TrimSpace(string(tokenBytes))
	}

	if token == "" {
		return "", fmt.Errorf("vault token is required when vault is enabled")
	}
	return token, nil
}

// VaultSecret represents a secret read from Vault's KVv2 engine.
type VaultSecret struct {
	Data    map[string]any
	Version int64
}

// GetSecretV2 retrieves a secret from a Vault KVv2 store.
func (vc *VaultClient) GetSecretV2(path string) (*VaultSecret, error) {
	if vc == nil {
		return nil, fmt.Errorf("vault client not initialized")
	}

	vc.logger.Debug("Reading secret from Vault", "path", path)

	secret, err := vc.client.Logical().Read(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read secret from %s: %w", path, err)
	}
	if secret == nil || secret.Data == nil {
		vc.logger.Warn("Secret not found at path", "path", path)
		return nil, fmt.Errorf("secret not found at path: %s", path)
	}

	return parseKVv2(secret, path)
}

// parseKVv2 unpacks the data and metadata.version fields of a KVv2 read.
func parseKVv2(secret *api.Secret, path string) (*VaultSecret, error) {
	data, ok := secret.Data["data"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("secret at %s is not in KVv2 format (missing 'data' field)", path)
	}
	metadata, ok := secret.Data["metadata"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("secret at %s is not in KVv2 format (missing 'metadata' field)", path)
	}
	versionRaw, ok := metadata["version"]
	if !ok {
		return nil, fmt.Errorf("secret metadata at %s is missing 'version' field", path)
	}
	version, err := parseVersionValue(versionRaw, path)
	if err != nil {
		return nil, err
	}
	return &VaultSecret{Data: data, Version: version}, nil
}

// parseVersionValue parses version value from various types
func parseVersionValue(versionRaw any, path string) (int64, error) {
	switch v := versionRaw.(type) {
	case int64:
		return v, nil
	case float64:
		return int64(v), nil
	case string:
		version, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("could not parse secret version at %s: %w", path, err)
		}
		return version, nil
	default:
		return 0, fmt.Errorf("unexpected type for version at %s: %T", path, versionRaw)
	}
}

// stringField reads key from secret data; missing keys return "" and false.
func (s *VaultSecret) stringField(key string) (string, bool) {
	value, ok := s.Data[key].(string)
	return value, ok && value != ""
}

// GetStringSecret retrieves a string value from a Vault secret
func (vc *VaultClient) GetStringSecret(path, key string) (string, error) {
	secret, err := vc.GetSecretV2(path)
	if err != nil {
		return "", err
	}
	value, ok := secret.Data[key]
	if !ok {
		return "", fmt.Errorf("key '%s' not found in secret %s", key, path)
	}
	strValue, ok := value.(string)
	if !ok {
		return "", fmt.Errorf("value for key '%s' is not a string in secret %s", key, path)
	}

	vc.logger.Debug("String secret retrieved from Vault",
		"path", path,
		"key", key,
		"masked_value", maskSecret(strValue))
	return strValue, nil
}

func maskSecret(value string) string {
	switch {
	case len(value) > 8:
		return value[:4] + "****" + value[len(value)-4:]
	case len(value) > 0:
		return "****"
	default:
		return ""
	}
}

// ApplyVaultSecrets loads secrets from Vault into config and checks that
// the AI key ended up set from some source.
func ApplyVaultSecrets(config *Config, logger *errors.Logger) error {
	if config.Vault.Enabled {
		logger.Info("Loading secrets from Vault",
			"api_keys_path", config.Vault.Secrets.APIKeys,
			"gemini_key_path", config.Vault.Secrets.GeminiKey,
			"twilio_path", config.Vault.Secrets.Twilio,
			"smtp_path", config.Vault.Secrets.SMTP,
			"database_path", config.Vault.Secrets.Database)

		client, err := NewVaultClient(config.Vault, logger)
		if err != nil {
			return errors.NewConfigError(errors.ErrCodeInvalidConfig, "failed to initialize vault client", err)
		}
		if err := applySecrets(client, config, logger); err != nil {
			return err
		}
		logger.Info("Successfully completed applying secrets from Vault")
	} else {
		logger.Debug("Vault integration disabled, skipping secret loading")
	}

	if config.AI.APIKey == "" {
		return errors.NewConfigError(errors.ErrCodeMissingAPIKey, "AI API key is not configured", nil)
	}
	return nil
}

// secretReader is the subset of VaultClient used when applying secrets.
type secretReader interface {
	GetSecretV2(path string) (*VaultSecret, error)
}

func applySecrets(client secretReader, config *Config, logger *errors.Logger) error {
	paths := config.Vault.Secrets

	if paths.APIKeys != "" {
		secret, err := client.GetSecretV2(paths.APIKeys)
		if err != nil {
			return fmt.Errorf("failed to load API keys from vault: %w", err)
		}
		if raw, ok := secret.stringField("keys"); ok {
			config.Server.APIKeys = splitAndTrim(raw)
			logger.Info("API keys loaded from Vault", "count", len(config.Server.APIKeys))
		} else {
			logger.Warn("No API keys found in Vault", "path", paths.APIKeys)
		}
	}

	if paths.GeminiKey != "" {
		secret, err := client.GetSecretV2(paths.GeminiKey)
		if err != nil {
			return fmt.Errorf("failed to load Gemini API key from vault: %w", err)
		}
		if key, ok := secret.stringField("api_key"); ok {
			applyGeminiKeyToConfig(config, key)
			logger.Info("Gemini API key loaded from Vault and applied to all AI configurations")
		} else {
			logger.Warn("Empty Gemini API key found in Vault", "path", paths.GeminiKey)
		}
	}

	if paths.Twilio != "" {
		secret, err := client.GetSecretV2(paths.Twilio)
		if err != nil {
			return fmt.Errorf("failed to load Twilio credentials from vault: %w", err)
		}
		if sid, ok := secret.stringField("account_sid"); ok {
			config.Telephony.AccountSID = sid
		}
		if token, ok := secret.stringField("auth_token"); ok {
			config.Telephony.AuthToken = token
		}
		logger.Info("Twilio credentials loaded from Vault")
	}

	if paths.SMTP != "" {
		secret, err := client.GetSecretV2(paths.SMTP)
		if err != nil {
			return fmt.Errorf("failed to load SMTP credentials from vault: %w", err)
		}
		if username, ok := secret.stringField("username"); ok {
			config.Notify.Username = username
		}
		if password, ok := secret.stringField("password"); ok {
			config.Notify.Password = password
		}
		logger.Info("SMTP credentials loaded from Vault")
	}

	if paths.Database != "" {
		secret, err := client.GetSecretV2(paths.Database)
		if err != nil {
			return fmt.Errorf("failed to load database DSN from vault: %w", err)
		}
		if dsn, ok := secret.stringField("dsn"); ok {
			config.Store.DSN = dsn
			logger.Info("Database DSN loaded from Vault")
		}
	}

	return nil
}

// applyGeminiKeyToConfig applies the Gemini API key to every oracle that
// has no key of its own.
func applyGeminiKeyToConfig(config *Config, geminiKey string) {
	config.AI.APIKey = geminiKey
	for _, op := range Operations {
		if opCfg := config.operationConfigRef(op); opCfg.APIKey == "" {
			opCfg.APIKey = geminiKey
		}
	}
}
