package config

import "fmt"

// Operation names one of the language model oracles.
type Operation string

const (
	OperationExtract   Operation = "extract"
	OperationInterview Operation = "interview"
	OperationReport    Operation = "report"
)

// Operations lists every oracle in a stable order.
var Operations = []Operation{OperationExtract, OperationInterview, OperationReport}

// applyOperationDefaults applies global defaults to operation-specific configuration
func (c *Config) applyOperationDefaults(opCfg *OperationAIConfig) {
	if opCfg.Provider == "" {
		opCfg.Provider = c.AI.Provider
	}
	if opCfg.Model == "" {
		opCfg.Model = c.AI.Model
	}
	if opCfg.Timeout == nil {
		timeout := c.AI.Timeout
		opCfg.Timeout = &timeout
	}
	if opCfg.APIKey == "" {
		opCfg.APIKey = c.AI.APIKey
	}
	if opCfg.MaxRetries == nil {
		retries := c.AI.MaxRetries
		opCfg.MaxRetries = &retries
	}
	if opCfg.Temperature == nil {
		temperature := c.AI.Temperature
		opCfg.Temperature = &temperature
	}
	if opCfg.UseSystemPrompts == nil {
		use := c.AI.UseSystemPrompts
		opCfg.UseSystemPrompts = &use
	}
}

// GetOperationConfig returns the resolved configuration of one oracle with
// every unset field taken from the global AI section.
func (c *Config) GetOperationConfig(op Operation) (OperationAIConfig, error) {
	var opCfg OperationAIConfig
	switch op {
	case OperationExtract:
		opCfg = c.AI.Extract
	case OperationInterview:
		opCfg = c.AI.Interview
	case OperationReport:
		opCfg = c.AI.Report
	default:
		return OperationAIConfig{}, fmt.Errorf("unknown AI operation: %s", op)
	}
	c.applyOperationDefaults(&opCfg)
	return opCfg, nil
}

// GetExtractConfig returns the AI configuration for résumé extraction
func (c *Config) GetExtractConfig() OperationAIConfig {
	cfg, _ := c.GetOperationConfig(OperationExtract)
	return cfg
}

// GetInterviewConfig returns the AI configuration for interviewer replies
func (c *Config) GetInterviewConfig() OperationAIConfig {
	cfg, _ := c.GetOperationConfig(OperationInterview)
	return cfg
}

// GetReportConfig returns the AI configuration for post-call reports
func (c *Config) GetReportConfig() OperationAIConfig {
	cfg, _ := c.GetOperationConfig(OperationReport)
	return cfg
}

// operationConfigRef returns a pointer into c for in-place updates.
func (c *Config) operationConfigRef(op Operation) *OperationAIConfig {
	switch op {
	case OperationExtract:
		return &c.AI.Extract
	case OperationInterview:
		return &c.AI.Interview
	case OperationReport:
		return &c.AI.Report
	}
	return nil
}
