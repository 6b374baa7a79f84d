// Package config loads mesauthzd configuration from MESAUTHZ_* environment
// variables with defaults for every setting.
//
// Server settings:
//
//	MESAUTHZ_HOST="0.0.0.0"
//	MESAUTHZ_PORT="8080"
//	MESAUTHZ_HEALTH_PORT="9090"
//	MESAUTHZ_USER_HEADER="X-User-ID"
//	MESAUTHZ_READ_TIMEOUT="15s"
//
// Snapshot source:
//
//	MESAUTHZ_SOURCE="sql"          # sql or file
//	MESAUTHZ_DB_DRIVER="postgres"  # sqlite3 or postgres
//	MESAUTHZ_DB_DSN="postgres://localhost/mes?sslmode=disable"
//	MESAUTHZ_SNAPSHOT_FILE="/etc/mesauthz/users.yaml"
//	MESAUTHZ_MIGRATE="true"
//
// Ability cache:
//
//	MESAUTHZ_CACHE_SIZE="4096"
//	MESAUTHZ_CACHE_TTL="5m"
//	MESAUTHZ_REDIS_URL="redis://localhost:6379/0"
//
// Observability:
//
//	MESAUTHZ_LOG_LEVEL="info"
//	MESAUTHZ_METRICS_ENABLED="true"
//	MESAUTHZ_OTEL_ENABLED="true"
//	MESAUTHZ_OTEL_ENDPOINT="otel-collector:4317"
//
// Usage:
//
//	cfg, err := config.LoadConfig()
//	if err != nil {
//		log.Fatal(err)
//	}
package config
