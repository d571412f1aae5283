package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
)

// loadPromptsFromFiles replaces inline prompt text with the content of the
// configured prompt files. Files win over inline text.
func (c *Config) loadPromptsFromFiles() error {
	log.Println("[CONFIG] Starting custom prompt loading from files")

	loaded := 0
	for _, op := range Operations {
		prompts := &c.operationConfigRef(op).Prompts

		if prompts.SystemFile != "" {
			content, err := loadPromptFromFile(prompts.SystemFile, "system", string(op))
			if err != nil {
				return err
			}
			prompts.System = content
			loaded++
		}
		if prompts.UserFile != "" {
			content, err := loadPromptFromFile(prompts.UserFile, "user", string(op))
			if err != nil {
				return err
			}
			prompts.User = content
			loaded++
		}
	}

	if c.Screening.PreambleFile != "" {
		content, err := loadPromptFromFile(c.Screening.PreambleFile, "interviewer", "preamble")
		if err != nil {
			return err
		}
		c.Screening.Preamble = content
		loaded++
	}

	if loaded == 0 {
		log.Println("[CONFIG] No custom prompts loaded - using built-in defaults")
	} else {
		log.Printf("[CONFIG] Total custom prompts loaded: %d", loaded)
	}
	return nil
}

// loadPromptFromFile loads a prompt from a file with proper error handling and logging
func loadPromptFromFile(filePath, promptType, operation string) (string, error) {
	absPath, err := filepath.Abs(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to resolve absolute path for %s %s prompt file '%s': %w", promptType, operation, filePath, err)
	}

	content, err := os.ReadFile(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%s %s prompt file not found: %s", promptType, operation, absPath)
		}
		return "", fmt.Errorf("failed to read %s %s prompt file '%s': %w", promptType, operation, absPath, err)
	}

	trimmed := strings.TrimSpace(string(content))
	if trimmed == "" {
		return "", fmt.Errorf("%s %s prompt file '%s' is empty", promptType, operation, absPath)
	}

	log.Printf("[CONFIG] Successfully loaded %s %s prompt from file: %s (%d characters)",
		promptType, operation, absPath, len(trimmed))
	return trimmed, nil
}

// validatePromptFiles checks that every configured prompt file exists
// before any of them is read, so all problems are reported at once.
func (c *Config) validatePromptFiles() error {
	var problems []string

	check := func(filePath, label string) {
		if filePath == "" {
			return
		}
		absPath, err := filepath.Abs(filePath)
		if err != nil {
			problems = append(problems, fmt.Sprintf("invalid path for %s prompt: %s", label, filePath))
			return
		}
		if _, err := os.Stat(absPath); os.IsNotExist(err) {
			problems = append(problems, fmt.Sprintf("%s prompt file not found: %s", label, absPath))
		}
	}

	for _, op := range Operations {
		prompts := c.operationConfigRef(op).Prompts
		check(prompts.SystemFile, string(op)+" system")
		check(prompts.UserFile, string(op)+" user")
	}
	check(c.Screening.PreambleFile, "interviewer preamble")

	if len(problems) > 0 {
		return fmt.Errorf("prompt file validation failed:\n%s", strings.Join(problems, "\n"))
	}
	return nil
}
