package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// generateInstanceID creates a unique instance ID using hostname and PID
func generateInstanceID() string {
	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "training"
	}
	return fmt.Sprintf("%s-%d", hostname, os.Getpid())
}

type Config struct {
	Port        string
	Environment string
	InstanceID  string
	LogLevel    string

	// Database
	DatabaseURL string
	RedisURL    string

	// JWT (service-to-service, HS256)
	JWTSecret   string
	JWTAudience string

	// Rate limiting, per actor
	RateLimitPerMinute int

	// Microsoft Entra ID
	TenantID     string
	ClientID     string
	ClientSecret string
	GraphScopes  []string

	// Microsoft Graph
	GraphBaseURL string
	GraphBetaURL string

	// Exchange Web Services
	EWSURL           string
	EWSUsername      string
	EWSPassword      string
	EWSAuthMode      string
	EWSServerVersion string

	// Search index
	SearchEndpoint   string
	SearchIndex      string
	SearchAPIKey     string
	SearchAPIVersion string
	SearchPageSize   int

	// Localization
	DefaultLocale string

	// Cache
	ProfileCacheTTL time.Duration

	// Reminder scheduler
	ReminderCron    string
	ReminderEnabled bool

	// CORS
	AllowedOrigins []string
}

func Load() (*Config, error) {
	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENV", "development"),
		InstanceID:  getEnv("INSTANCE_ID", generateInstanceID()),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		// Database
		DatabaseURL: getEnv("DATABASE_URL", ""),
		RedisURL:    getEnv("REDIS_URL", ""),

		// JWT
		JWTSecret:   getEnv("JWT_SECRET", ""),
		JWTAudience: getEnv("JWT_AUDIENCE", ""),

		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MIN", 120),

		// Entra ID
		TenantID:     getEnv("AZURE_TENANT_ID", ""),
		ClientID:     getEnv("AZURE_CLIENT_ID", ""),
		ClientSecret: getEnv("AZURE_CLIENT_SECRET", ""),
		GraphScopes:  getEnvSlice("GRAPH_SCOPES", []string{"https://graph.microsoft.com/.default"}),

		// Graph
		GraphBaseURL: getEnv("GRAPH_BASE_URL", "https://graph.microsoft.com/v1.0"),
		GraphBetaURL: getEnv("GRAPH_BETA_URL", "https://graph.microsoft.com/beta"),

		// EWS
		EWSURL:           getEnv("EWS_URL", ""),
		EWSUsername:      getEnv("EWS_USERNAME", ""),
		EWSPassword:      getEnv("EWS_PASSWORD", ""),
		EWSAuthMode:      getEnv("EWS_AUTH_MODE", "ntlm"),
		EWSServerVersion: getEnv("EWS_SERVER_VERSION", "Exchange2013_SP1"),

		// Search
		SearchEndpoint:   getEnv("SEARCH_ENDPOINT", ""),
		SearchIndex:      getEnv("SEARCH_INDEX", "training-events"),
		SearchAPIKey:     getEnv("SEARCH_API_KEY", ""),
		SearchAPIVersion: getEnv("SEARCH_API_VERSION", "2023-11-01"),
		SearchPageSize:   getEnvInt("SEARCH_PAGE_SIZE", 500),

		// Localization
		DefaultLocale: getEnv("DEFAULT_LOCALE", "en"),

		// Cache
		ProfileCacheTTL: time.Duration(getEnvInt("PROFILE_CACHE_TTL_MIN", 60)) * time.Minute,

		// Reminder
		ReminderCron:    getEnv("REMINDER_CRON", "0 8 * * *"),
		ReminderEnabled: getEnvBool("REMINDER_ENABLED", true),

		// CORS
		AllowedOrigins: getEnvSlice("ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings every mode needs. Backend settings are
// validated lazily by their adapters.
func (c *Config) Validate() error {
	var missing []string
	if c.TenantID == "" {
		missing = append(missing, "AZURE_TENANT_ID")
	}
	if c.ClientID == "" {
		missing = append(missing, "AZURE_CLIENT_ID")
	}
	if c.ClientSecret == "" {
		missing = append(missing, "AZURE_CLIENT_SECRET")
	}
	if c.IsProduction() && c.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out
	}
	return defaultValue
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
