// Package config provides configuration for the workshop coordinator.
package config

import (
	"os"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Config holds the coordinator configuration.
type Config struct {
	// Server settings
	HTTPPort        int
	RateLimitRPS    float64
	RateLimitBurst  int
	CORSAllowOrigin string

	// Database
	DatabaseURL string

	// Approval workflow
	CatalogPath         string
	OverdueSweepEvery   time.Duration
	EscalationExtension time.Duration
	EscalationAssignee  string

	// Agent bridge
	AgentEndpoints   map[string]string
	AgentTimeout     time.Duration
	AgentMaxAttempts int
	AgentBackoffBase time.Duration

	// Notifications
	NATSURL           string
	NATSSubjectPrefix string
	WebhookURL        string
	EventBuffer       int

	// Reviewer feed
	FeedAPIKey       string
	WSPingInterval   time.Duration
	WSWriteTimeout   time.Duration
	WSReadTimeout    time.Duration
	WSMaxMessageSize int64
	WSSendBuffer     int

	// Logging
	LogLevel  string
	LogFormat string
}

// Load loads configuration from environment variables.
func Load() *Config {
	cfg := &Config{
		HTTPPort:            getEnvInt("HTTP_PORT", 8080),
		RateLimitRPS:        getEnvFloat("RATE_LIMIT_RPS", 20),
		RateLimitBurst:      getEnvInt("RATE_LIMIT_BURST", 40),
		CORSAllowOrigin:     getEnv("CORS_ALLOW_ORIGIN", "*"),
		DatabaseURL:         getEnv("DATABASE_URL", "file:coordinator.db?cache=shared&mode=rwc"),
		CatalogPath:         getEnv("APPROVAL_CATALOG_PATH", ""),
		OverdueSweepEvery:   getEnvDuration("OVERDUE_SWEEP_INTERVAL_MS", 60000),
		EscalationExtension: getEnvDuration("ESCALATION_EXTENSION_MS", 2*60*60*1000),
		EscalationAssignee:  getEnv("ESCALATION_ASSIGNEE", "management"),
		AgentEndpoints:      ParseEndpoints(getEnv("AGENT_ENDPOINTS", "")),
		AgentTimeout:        getEnvDuration("AGENT_TIMEOUT_MS", 300000),
		AgentMaxAttempts:    getEnvInt("AGENT_MAX_ATTEMPTS", 3),
		AgentBackoffBase:    getEnvDuration("AGENT_BACKOFF_BASE_MS", 1000),
		NATSURL:             getEnv("NATS_URL", ""),
		NATSSubjectPrefix:   getEnv("NATS_SUBJECT_PREFIX", "workshop"),
		WebhookURL:          getEnv("WEBHOOK_URL", ""),
		EventBuffer:         getEnvInt("EVENT_BUFFER", 256),
		FeedAPIKey:          getEnv("FEED_API_KEY", ""),
		WSPingInterval:      getEnvDuration("WS_PING_INTERVAL_MS", 30000),
		WSWriteTimeout:      getEnvDuration("WS_WRITE_TIMEOUT_MS", 10000),
		WSReadTimeout:       getEnvDuration("WS_READ_TIMEOUT_MS", 60000),
		WSMaxMessageSize:    int64(getEnvInt("WS_MAX_MESSAGE_SIZE", 65536)),
		WSSendBuffer:        getEnvInt("WS_SEND_BUFFER", 256),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		LogFormat:           getEnv("LOG_FORMAT", "json"),
	}
	return cfg
}

// ParseEndpoints parses "name=url,name=url" into a map. Malformed entries
// are skipped.
func ParseEndpoints(raw string) map[string]string {
	out := make(map[string]string)
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		name, url, ok := strings.Cut(entry, "=")
		name, url = strings.TrimSpace(name), strings.TrimSpace(url)
		if !ok || name == "" || url == "" {
			continue
		}
		out[name] = url
	}
	return out
}

// AgentNames returns the configured agent names in sorted order.
func (c *Config) AgentNames() []string {
	names := make([]string, 0, len(c.AgentEndpoints))
	for name := range c.AgentEndpoints {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultMs int) time.Duration {
	return time.Duration(getEnvInt(key, defaultMs)) * time.Millisecond
}
