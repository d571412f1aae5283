package config

import (
	"time"

	"github.com/spf13/viper"
)

// setDefaults sets the default configuration values
func setDefaults(v *viper.Viper) {
	// AI Configuration - Global defaults
	v.SetDefault("ai.provider", "gemini")
	v.SetDefault("ai.model", "gemini-2.0-flash")
	v.SetDefault("ai.timeout", 30*time.Second)
	v.SetDefault("ai.apiKey", "")
	v.SetDefault("ai.maxRetries", 2)
	v.SetDefault("ai.temperature", 0.4)
	v.SetDefault("ai.useSystemPrompts", true)

	// Extraction runs off the call path and can afford a longer budget.
	v.SetDefault("ai.extract.timeout", 60*time.Second)
	v.SetDefault("ai.extract.maxRetries", 2)
	v.SetDefault("ai.extract.temperature", 0.0)

	// The interviewer answers while the candidate waits on the line.
	v.SetDefault("ai.interview.timeout", 8*time.Second)
	v.SetDefault("ai.interview.maxRetries", 0)
	v.SetDefault("ai.interview.temperature", 0.7)

	v.SetDefault("ai.report.timeout", 90*time.Second)
	v.SetDefault("ai.report.maxRetries", 3)
	v.SetDefault("ai.report.temperature", 0.3)

	for _, op := range []string{"extract", "interview", "report"} {
		v.SetDefault("ai."+op+".circuitBreaker.enabled", true)
		v.SetDefault("ai."+op+".circuitBreaker.maxRequests", 3)
		v.SetDefault("ai."+op+".circuitBreaker.interval", 60*time.Second)
		v.SetDefault("ai."+op+".circuitBreaker.timeout", 30*time.Second)
		v.SetDefault("ai."+op+".circuitBreaker.minRequests", 3)
		v.SetDefault("ai."+op+".circuitBreaker.failureThreshold", 0.6)
	}

	// Screening
	v.SetDefault("screening.timeLimit", 180*time.Second)
	v.SetDefault("screening.scoreThreshold", 30.0)
	v.SetDefault("screening.greeting", "Hello candidate! Please introduce yourself.")
	v.SetDefault("screening.continuation", "Go ahead and continue...")
	v.SetDefault("screening.expiry", "Your time is up. Thank you for your interest. Goodbye!")
	v.SetDefault("screening.farewell", "Thank you for your time. Goodbye!")
	v.SetDefault("screening.fallback", "Sorry, could you repeat that?")
	v.SetDefault("screening.endMarker", "<<<END_CALL>>>")
	v.SetDefault("screening.endPhrases", []string{"cut the call", "end the call"})
	v.SetDefault("screening.role", "software engineering")
	v.SetDefault("screening.preamble", "")
	v.SetDefault("screening.preambleFile", "")
	v.SetDefault("screening.jobContext", "")
	v.SetDefault("screening.reaperInterval", 15*time.Second)
	v.SetDefault("screening.reaperGrace", 60*time.Second)
	v.SetDefault("screening.tombstoneTTL", 30*time.Minute)
	v.SetDefault("screening.finalizeTimeout", 2*time.Minute)
	v.SetDefault("screening.concurrency", 4)

	// Server Configuration
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.readTimeout", 30*time.Second)
	v.SetDefault("server.writeTimeout", 30*time.Second)
	v.SetDefault("server.idleTimeout", 120*time.Second)
	v.SetDefault("server.publicURL", "")
	v.SetDefault("server.apiKeys", []string{})
	v.SetDefault("server.validateSignature", false)
	v.SetDefault("server.rateLimit.enabled", false)
	v.SetDefault("server.rateLimit.requestsPerMin", 60)
	v.SetDefault("server.rateLimit.burstCapacity", 10)
	v.SetDefault("server.rateLimit.byIP", true)
	v.SetDefault("server.rateLimit.byAPIKey", false)
	v.SetDefault("server.rateLimit.window", time.Minute)

	// Telephony
	v.SetDefault("telephony.enabled", false)
	v.SetDefault("telephony.accountSid", "")
	v.SetDefault("telephony.authToken", "")
	v.SetDefault("telephony.fromNumber", "")
	v.SetDefault("telephony.apiBaseURL", "https://api.twilio.com/2010-04-01")
	v.SetDefault("telephony.maxRetries", 2)
	v.SetDefault("telephony.timeout", 15*time.Second)

	// Notification
	v.SetDefault("notify.enabled", false)
	v.SetDefault("notify.smtpHost", "smtp.gmail.com")
	v.SetDefault("notify.smtpPort", 587)
	v.SetDefault("notify.username", "")
	v.SetDefault("notify.password", "")
	v.SetDefault("notify.from", "")
	v.SetDefault("notify.hrEmail", "")
	v.SetDefault("notify.subject", "AI-Reviewed Hiring Report - Candidate Screening Summary")
	v.SetDefault("notify.timeout", 30*time.Second)
	v.SetDefault("notify.tlsPolicy", "opportunistic")

	// Store
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "callscreen.db")
	v.SetDefault("store.dsn", "")
	v.SetDefault("store.transcriptLog", "call_logs.csv")

	// Job catalog
	v.SetDefault("jobs.catalogFile", "")
	v.SetDefault("jobs.watch", true)
	v.SetDefault("jobs.debounceDelay", time.Second)

	// App Configuration
	v.SetDefault("app.logLevel", "info")
	v.SetDefault("app.defaultFormat", "json")
	v.SetDefault("app.supportedFormats", []string{"json", "text", "markdown"})
	v.SetDefault("app.maxFileSize", 5*1024*1024) // 5MB, résumés are PDFs

	// Vault Configuration
	v.SetDefault("vault.enabled", false)
	v.SetDefault("vault.address", "")
	v.SetDefault("vault.token", "")
	v.SetDefault("vault.tokenFile", "")
	v.SetDefault("vault.namespace", "")
	v.SetDefault("vault.secrets.apiKeys", "")
	v.SetDefault("vault.secrets.geminiKey", "")
	v.SetDefault("vault.secrets.twilio", "")
	v.SetDefault("vault.secrets.smtp", "")
	v.SetDefault("vault.secrets.database", "")

	// Observability Configuration
	v.SetDefault("observability.enabled", true)
	v.SetDefault("observability.serviceName", "callscreen")
	v.SetDefault("observability.serviceVersion", "")
	v.SetDefault("observability.serviceInstance", "")
	v.SetDefault("observability.consoleOutput", false)
	v.SetDefault("observability.sampleRate", 1.0)
	v.SetDefault("observability.tracing.enabled", true)
	v.SetDefault("observability.tracing.sampleRate", 1.0)
	v.SetDefault("observability.metrics.enabled", true)
	v.SetDefault("observability.metrics.collectionInterval", 15*time.Second)
	v.SetDefault("observability.customMetrics.aiOperations.enabled", true)
	v.SetDefault("observability.customMetrics.aiOperations.trackDuration", true)
	v.SetDefault("observability.customMetrics.aiOperations.trackTokenUsage", true)
	v.SetDefault("observability.customMetrics.aiOperations.trackModelInfo", true)
	v.SetDefault("observability.customMetrics.businessMetrics.enabled", true)
	v.SetDefault("observability.customMetrics.businessMetrics.trackSuccessRates", true)
	v.SetDefault("observability.customMetrics.businessMetrics.trackCallOutcomes", true)
	v.SetDefault("observability.customMetrics.infrastructure.enabled", true)
	v.SetDefault("observability.customMetrics.infrastructure.trackRateLimits", true)
	v.SetDefault("observability.customMetrics.infrastructure.trackSessions", true)
	v.SetDefault("observability.console.enabled", false)
	v.SetDefault("observability.console.prettyPrint", true)
	v.SetDefault("observability.prometheus.enabled", true)
	v.SetDefault("observability.prometheus.endpoint", "/metrics")
	v.SetDefault("observability.prometheus.port", "9090")
	v.SetDefault("observability.otlp.enabled", false)
	v.SetDefault("observability.otlp.endpoint", "http://localhost:4318")
	v.SetDefault("observability.otlp.insecure", true)
	v.SetDefault("observability.otlp.headers", map[string]string{})
	v.SetDefault("observability.healthCheck.timeout", 15*time.Second)
	v.SetDefault("observability.healthCheck.aiModelCheckTimeout", 10*time.Second)
}
