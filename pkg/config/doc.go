// Package config loads host configuration from environment variables
// with defaults for every setting.
//
// Server settings:
//
//	PLUGBOARD_HOST="0.0.0.0"
//	PLUGBOARD_PORT="8080"
//	PLUGBOARD_BASE_URL="https://plugboard.example.com"
//	PLUGBOARD_READ_TIMEOUT="15s"
//	PLUGBOARD_WRITE_TIMEOUT="15s"
//
// Store settings:
//
//	PLUGBOARD_STORE_TYPE="postgres"  # memory, postgres
//	PLUGBOARD_POSTGRES_URL="postgres://localhost/plugboard"
//
// Plugin settings:
//
//	PLUGBOARD_PLUGINS_ROOT="/var/plugboard"
//	PLUGBOARD_PLUGINS_WATCH="true"
//	PLUGBOARD_RECOMPOSE_SCHEDULE="@every 5m"
//
// Identity settings:
//
//	PLUGBOARD_SUPER_ADMIN_ID="admin"
//	PLUGBOARD_SSO_CONFIG="/etc/plugboard/sso.yaml"
//	PLUGBOARD_REDIS_URL="localhost:6379"
//
// Observability settings:
//
//	PLUGBOARD_LOG_LEVEL="info"
//	PLUGBOARD_METRICS_ENABLED="true"
//	PLUGBOARD_OTEL_ENABLED="false"
//	PLUGBOARD_OTEL_ENDPOINT="localhost:4317"
package config
