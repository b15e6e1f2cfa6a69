// Package config provides application configuration management from environment variables.
//
// # Overview
//
// This package loads and validates configuration from environment variables with
// sensible defaults for all settings.
//
// # Configuration Structure
//
// Server settings:
//
//	PORTAL_HOST="0.0.0.0"
//	PORTAL_PORT="8080"
//	PORTAL_HEALTH_PORT="9090"
//	PORTAL_READ_TIMEOUT="15s"
//	PORTAL_WRITE_TIMEOUT="15s"
//
// Storage settings:
//
//	PORTAL_POSTGRES_URL="postgres://localhost/portal"
//	PORTAL_POSTGRES_MAX_CONNS="25"
//	PORTAL_REDIS_ADDR="localhost:6379"
//
// Session settings:
//
//	PORTAL_SESSION_REDIS_ADDR="localhost:6379"
//	PORTAL_SESSION_TTL="30m"
//	PORTAL_SESSION_COOKIE="PORTAL_SESSION_ID"
//
// Default layout policy (same keys with PORTAL_PUBLIC_LAYOUT for public pages):
//
//	PORTAL_PRIVATE_LAYOUT_ENABLED="true"
//	PORTAL_PRIVATE_LAYOUT_AUTO_CREATE="true"
//	PORTAL_PRIVATE_LAYOUT_POWER_USER_REQUIRED="false"
//	PORTAL_PRIVATE_LAYOUT_ARCHIVE="/etc/portal/private.lar"
//	PORTAL_PRIVATE_LAYOUT_NAME="Welcome"
//	PORTAL_PRIVATE_LAYOUT_TEMPLATE_ID="2_columns_ii"
//	PORTAL_PRIVATE_LAYOUT_COLUMN_0="hello_world,search"
//
// Observability settings:
//
//	PORTAL_LOG_LEVEL="info"  # debug, info, warn, error
//	PORTAL_METRICS_ENABLED="true"
//
// # Usage Example
//
// Load configuration:
//
//	cfg, err := config.LoadConfig()
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	fmt.Printf("Server: %s:%s\n", cfg.Server.Host, cfg.Server.Port)
//	fmt.Printf("Log level: %s\n", cfg.Observability.LogLevel)
//
// # Related Packages
//
//   - pkg/store: Uses storage configuration
//   - pkg/provision: Uses the default layout policy
//   - pkg/observability: Uses observability configuration
package config
