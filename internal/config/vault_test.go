package config

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"callscreen/internal/errors"

	"github.com/hashicorp/vault/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSecretReader map[string]map[string]any

func (f fakeSecretReader) GetSecretV2(path string) (*VaultSecret, error) {
	data, ok := f[path]
	if !ok {
		return nil, fmt.Errorf("secret not found at path: %s", path)
	}
	return &VaultSecret{Data: data, Version: 1}, nil
}

func TestParseVersionValue(t *testing.T) {
	tests := []struct {
		name        string
		input       any
		expected    int64
		expectError bool
	}{
		{name: "int64 value", input: int64(42), expected: 42},
		{name: "float64 value", input: float64(42.0), expected: 42},
		{name: "string value", input: "42", expected: 42},
		{name: "invalid string value", input: "not-a-number", expectError: true},
		{name: "unsupported type", input: []string{"42"}, expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := parseVersionValue(tt.input, "test/path")
			if tt.expectError {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestParseKVv2(t *testing.T) {
	secret := &api.Secret{Data: map[string]any{
		"data":     map[string]any{"api_key": "abc"},
		"metadata": map[string]any{"version": "3"},
	}}
	parsed, err := parseKVv2(secret, "secret/data/gemini")
	require.NoError(t, err)
	assert.Equal(t, int64(3), parsed.Version)
	assert.Equal(t, "abc", parsed.Data["api_key"])

	_, err = parseKVv2(&api.Secret{Data: map[string]any{"api_key": "abc"}}, "secret/gemini")
	assert.ErrorContains(t, err, "not in KVv2 format")
}

func TestApplyGeminiKeyToConfigKeepsExistingKeys(t *testing.T) {
	config := &Config{AI: AIConfig{Interview: OperationAIConfig{APIKey: "interview-key"}}}

	applyGeminiKeyToConfig(config, "vault-key")

	assert.Equal(t, "vault-key", config.AI.APIKey)
	assert.Equal(t, "vault-key", config.AI.Extract.APIKey)
	assert.Equal(t, "interview-key", config.AI.Interview.APIKey)
	assert.Equal(t, "vault-key", config.AI.Report.APIKey)
}

func TestApplySecrets(t *testing.T) {
	reader := fakeSecretReader{
		"secret/data/api":     {"keys": "k1, k2 ,,k3"},
		"secret/data/gemini":  {"api_key": "gemini-key"},
		"secret/data/twilio":  {"account_sid": "AC123", "auth_token": "tok"},
		"secret/data/smtp":    {"username": "hr-bot", "password": "pw"},
		"secret/data/db":      {"dsn": "postgres://localhost/callscreen"},
		"secret/data/unused":  {},
		"secret/data/ignored": {"keys": 42},
	}
	config := &Config{Vault: VaultConfig{Secrets: VaultSecrets{
		APIKeys:   "secret/data/api",
		GeminiKey: "secret/data/gemini",
		Twilio:    "secret/data/twilio",
		SMTP:      "secret/data/smtp",
		Database:  "secret/data/db",
	}}}

	require.NoError(t, applySecrets(reader, config, errors.Discard()))

	assert.Equal(t, []string{"k1", "k2", "k3"}, config.Server.APIKeys)
	assert.Equal(t, "gemini-key", config.AI.APIKey)
	assert.Equal(t, "AC123", config.Telephony.AccountSID)
	assert.Equal(t, "tok", config.Telephony.AuthToken)
	assert.Equal(t, "hr-bot", config.Notify.Username)
	assert.Equal(t, "pw", config.Notify.Password)
	assert.Equal(t, "postgres://localhost/callscreen", config.Store.DSN)
}

func TestApplySecretsMissingPath(t *testing.T) {
	config := &Config{Vault: VaultConfig{Secrets: VaultSecrets{Twilio: "secret/data/missing"}}}
	err := applySecrets(fakeSecretReader{}, config, errors.Discard())
	assert.ErrorContains(t, err, "Twilio")
}

func TestResolveVaultToken(t *testing.T) {
	logger := errors.Discard()

	t.Run("inline token", func(t *testing.T) {
		token, err := resolveVaultToken(VaultConfig{Token: "inline"}, logger)
		require.NoError(t, err)
		assert.Equal(t, "inline", token)
	})

	t.Run("token file", func(t *testing.T) {
		tokenFile := filepath.Join(t.TempDir(), "token")
		require.NoError(t, os.WriteFile(tokenFile, []byte("  from-file\n"), 0600))
		token, err := resolveVaultToken(VaultConfig{TokenFile: tokenFile}, logger)
		require.NoError(t, err)
		assert.Equal(t, "from-file", token)
	})

	t.Run("missing token", func(t *testing.T) {
		_, err := resolveVaultToken(VaultConfig{}, logger)
		assert.Error(t, err)
	})
}

func TestApplyVaultSecretsDisabled(t *testing.T) {
	config := &Config{AI: AIConfig{APIKey: "env-key"}}
	assert.NoError(t, ApplyVaultSecrets(config, errors.Discard()))

	config = &Config{}
	err := ApplyVaultSecrets(config, errors.Discard())
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
	assert.Equal(t, errors.ErrCodeMissingAPIKey, errors.CodeOf(err))
}

func TestMaskSecret(t *testing.T) {
	assert.Equal(t, "abcd****mnop", maskSecret("abcdefghijklmnop"))
	assert.Equal(t, "****", maskSecret("short"))
	assert.Equal(t, "", maskSecret(""))
}
