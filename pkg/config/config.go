package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/parapet/portal/pkg/observability"
	"github.com/parapet/portal/pkg/provision"
	"github.com/parapet/portal/pkg/store"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig

	// Storage configuration
	Storage store.Config

	// Session configuration
	Session SessionConfig

	// Portal behavior configuration
	Portal PortalConfig

	// Default layout provisioning policy
	Provision provision.Policy

	// Observability configuration
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Health/metrics server (separate port for k8s probes)
	HealthPort string
}

// SessionConfig holds session store configuration
type SessionConfig struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	TTL           time.Duration
	CookieName    string
}

// PortalConfig holds request pipeline behavior settings
type PortalConfig struct {
	// AvailableLocales are the locales offered to Accept-Language matching,
	// best first. The first entry doubles as the fallback.
	AvailableLocales []string

	// StrictOrganizationMembership requires direct organization membership
	// for visibility; ancestor membership stops propagating when set.
	StrictOrganizationMembership bool

	// CacheDisabledForSignedIn sends no-cache headers on signed-in responses.
	CacheDisabledForSignedIn bool
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel       observability.LogLevel
	MetricsEnabled bool
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server:        loadServerConfig(),
		Storage:       loadStorageConfig(),
		Session:       loadSessionConfig(),
		Portal:        loadPortalConfig(),
		Provision:     loadProvisionPolicy(),
		Observability: loadObservabilityConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadServerConfig loads server configuration from environment
func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("PORTAL_HOST", "0.0.0.0"),
		Port:            getEnv("PORTAL_PORT", "8080"),
		ReadTimeout:     getEnvDuration("PORTAL_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("PORTAL_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getEnvDuration("PORTAL_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("PORTAL_SHUTDOWN_TIMEOUT", 30*time.Second),
		HealthPort:      getEnv("PORTAL_HEALTH_PORT", "9090"),
	}
}

// loadStorageConfig loads storage configuration from environment
func loadStorageConfig() store.Config {
	cfg := store.DefaultConfig()

	if pgURL := getEnv("PORTAL_POSTGRES_URL", ""); pgURL != "" {
		cfg.PostgresURL = pgURL
	}
	if maxConns := getEnvInt("PORTAL_POSTGRES_MAX_CONNS", 0); maxConns > 0 {
		cfg.PostgresMaxConns = maxConns
	}
	if timeout := getEnvDuration("PORTAL_POSTGRES_TIMEOUT", 0); timeout > 0 {
		cfg.PostgresTimeout = timeout
	}
	if redisAddr := getEnv("PORTAL_REDIS_ADDR", ""); redisAddr != "" {
		cfg.RedisAddr = redisAddr
	}
	if redisPassword := getEnv("PORTAL_REDIS_PASSWORD", ""); redisPassword != "" {
		cfg.RedisPassword = redisPassword
	}

	return cfg
}

// loadSessionConfig loads session configuration from environment
func loadSessionConfig() SessionConfig {
	return SessionConfig{
		RedisAddr:     getEnv("PORTAL_SESSION_REDIS_ADDR", getEnv("PORTAL_REDIS_ADDR", "")),
		RedisPassword: getEnv("PORTAL_SESSION_REDIS_PASSWORD", getEnv("PORTAL_REDIS_PASSWORD", "")),
		RedisDB:       getEnvInt("PORTAL_SESSION_REDIS_DB", 1),
		TTL:           getEnvDuration("PORTAL_SESSION_TTL", 30*time.Minute),
		CookieName:    getEnv("PORTAL_SESSION_COOKIE", "PORTAL_SESSION_ID"),
	}
}

// loadPortalConfig loads pipeline behavior settings from environment
func loadPortalConfig() PortalConfig {
	locales := splitList(getEnv("PORTAL_LOCALES", "en-US"))
	return PortalConfig{
		AvailableLocales:             locales,
		StrictOrganizationMembership: getEnvBool("PORTAL_STRICT_ORGANIZATION_MEMBERSHIP", false),
		CacheDisabledForSignedIn:     getEnvBool("PORTAL_BROWSER_CACHE_SIGNED_IN_DISABLED", true),
	}
}

// loadProvisionPolicy loads the default layout policy from environment
func loadProvisionPolicy() provision.Policy {
	policy := provision.DefaultPolicy()
	loadBranchPolicy(&policy.Private, "PORTAL_PRIVATE_LAYOUT")
	loadBranchPolicy(&policy.Public, "PORTAL_PUBLIC_LAYOUT")
	return policy
}

// loadBranchPolicy loads one privacy branch of the layout policy
func loadBranchPolicy(branch *provision.BranchPolicy, prefix string) {
	branch.Enabled = getEnvBool(prefix+"_ENABLED", branch.Enabled)
	branch.AutoCreate = getEnvBool(prefix+"_AUTO_CREATE", branch.AutoCreate)
	branch.PowerUserRequired = getEnvBool(prefix+"_POWER_USER_REQUIRED", branch.PowerUserRequired)
	branch.ArchivePath = getEnv(prefix+"_ARCHIVE", branch.ArchivePath)
	branch.LayoutName = getEnv(prefix+"_NAME", branch.LayoutName)
	branch.LayoutTemplateID = getEnv(prefix+"_TEMPLATE_ID", branch.LayoutTemplateID)
	branch.FriendlyURL = getEnv(prefix+"_FRIENDLY_URL", branch.FriendlyURL)
	branch.ThemeID = getEnv(prefix+"_THEME_ID", branch.ThemeID)
	branch.ColorSchemeID = getEnv(prefix+"_COLOR_SCHEME_ID", branch.ColorSchemeID)
	branch.MobileThemeID = getEnv(prefix+"_MOBILE_THEME_ID", branch.MobileThemeID)
	branch.MobileColorSchemeID = getEnv(prefix+"_MOBILE_COLOR_SCHEME_ID", branch.MobileColorSchemeID)
	for i := 0; i < provision.MaxColumns; i++ {
		if v := getEnv(fmt.Sprintf("%s_COLUMN_%d", prefix, i), ""); v != "" {
			branch.Columns[i] = splitList(v)
		}
	}
}

// loadObservabilityConfig loads observability configuration from environment
func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:       observability.ParseLogLevel(getEnv("PORTAL_LOG_LEVEL", "info")),
		MetricsEnabled: getEnvBool("PORTAL_METRICS_ENABLED", true),
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	if c.Storage.PostgresURL == "" {
		return fmt.Errorf("postgres URL is required")
	}

	if len(c.Portal.AvailableLocales) == 0 {
		return fmt.Errorf("at least one locale is required")
	}

	if c.Provision.Private.Enabled && c.Provision.Private.AutoCreate &&
		c.Provision.Private.ArchivePath == "" && c.Provision.Private.LayoutName == "" {
		return fmt.Errorf("private layout provisioning needs an archive or a layout name")
	}
	if c.Provision.Public.Enabled && c.Provision.Public.AutoCreate &&
		c.Provision.Public.ArchivePath == "" && c.Provision.Public.LayoutName == "" {
		return fmt.Errorf("public layout provisioning needs an archive or a layout name")
	}

	return nil
}

// splitList splits a comma-separated list, trimming blanks
func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
