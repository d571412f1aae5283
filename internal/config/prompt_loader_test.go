package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadPromptsFromFiles(t *testing.T) {
	tempDir := t.TempDir()

	systemPromptFile := filepath.Join(tempDir, "system.report.md")
	preambleFile := filepath.Join(tempDir, "preamble.md")

	if err := os.WriteFile(systemPromptFile, []byte("  You write HR reports.\n"), 0600); err != nil {
		t.Fatalf("Failed to create test system prompt file: %v", err)
	}
	if err := os.WriteFile(preambleFile, []byte("You are a friendly screener."), 0600); err != nil {
		t.Fatalf("Failed to create test preamble file: %v", err)
	}

	config := &Config{
		AI: AIConfig{
			Report: OperationAIConfig{
				Prompts: PromptConfig{
					System:     "inline text loses",
					SystemFile: systemPromptFile,
					User:       "inline user prompt stays",
				},
			},
		},
		Screening: ScreeningConfig{PreambleFile: preambleFile},
	}

	if err := config.loadPromptsFromFiles(); err != nil {
		t.Fatalf("Failed to load prompts from files: %v", err)
	}

	if got := config.AI.Report.Prompts.System; got != "You write HR reports." {
		t.Errorf("report system prompt = %q", got)
	}
	if got := config.AI.Report.Prompts.User; got != "inline user prompt stays" {
		t.Errorf("report user prompt = %q", got)
	}
	if got := config.Screening.Preamble; got != "You are a friendly screener." {
		t.Errorf("preamble = %q", got)
	}
}

func TestLoadPromptsFromEmptyFile(t *testing.T) {
	emptyFile := filepath.Join(t.TempDir(), "empty.md")
	if err := os.WriteFile(emptyFile, []byte("   \n"), 0600); err != nil {
		t.Fatal(err)
	}

	config := &Config{AI: AIConfig{Extract: OperationAIConfig{Prompts: PromptConfig{UserFile: emptyFile}}}}
	err := config.loadPromptsFromFiles()
	if err == nil || !strings.Contains(err.Error(), "is empty") {
		t.Fatalf("expected empty file error, got %v", err)
	}
}

func TestValidatePromptFiles(t *testing.T) {
	tempDir := t.TempDir()
	validFile := filepath.Join(tempDir, "valid.md")
	if err := os.WriteFile(validFile, []byte("Valid content"), 0600); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		config  *Config
		wantErr bool
	}{
		{
			name:   "no files configured",
			config: &Config{},
		},
		{
			name: "existing file",
			config: &Config{AI: AIConfig{
				Interview: OperationAIConfig{Prompts: PromptConfig{SystemFile: validFile}},
			}},
		},
		{
			name: "missing operation file",
			config: &Config{AI: AIConfig{
				Extract: OperationAIConfig{Prompts: PromptConfig{SystemFile: filepath.Join(tempDir, "nope.md")}},
			}},
			wantErr: true,
		},
		{
			name:    "missing preamble file",
			config:  &Config{Screening: ScreeningConfig{PreambleFile: filepath.Join(tempDir, "missing.md")}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.validatePromptFiles()
			if (err != nil) != tt.wantErr {
				t.Errorf("validatePromptFiles() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
