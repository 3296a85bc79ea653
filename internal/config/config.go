package config

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string

	HTTPAddr string

	OTLPEndpoint string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Commerce is the entitlement system of record (EDD-compatible REST API).
	CommerceBaseURL  string
	CommerceAPIKey   string
	CommerceAPIToken string

	// Discourse owns group membership state.
	DiscourseBaseURL     string
	DiscourseAPIKey      string
	DiscourseAPIUsername string

	// WebhookSecrets maps an inbound webhook source name to its HMAC secret.
	WebhookSecrets map[string]string

	// UserLockEnabled serializes event processing per user when true.
	UserLockEnabled bool
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:     getenv("APP_SERVICE", "groupsync"),
		AppVersion:  getenv("APP_VERSION", "0.1.0"),
		Environment: getenv("ENVIRONMENT", "development"),

		HTTPAddr: getenv("HTTP_ADDR", ":8080"),

		OTLPEndpoint: getenv("OTLP_ENDPOINT", "localhost:4317"),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "groupsync"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     int(getenvInt64("DATABASE_MAX_IDLE_CONN", 2)),
		DBMaxOpenConn:     int(getenvInt64("DATABASE_MAX_OPEN_CONN", 10)),
		DBConnMaxLifetime: int(getenvInt64("DATABASE_CONN_MAX_LIFETIME", 3600)),
		DBConnMaxIdleTime: int(getenvInt64("DATABASE_CONN_MAX_IDLE_TIME", 600)),

		RedisAddr:     getenv("REDIS_ADDR", ""),
		RedisPassword: getenv("REDIS_PASSWORD", ""),
		RedisDB:       int(getenvInt64("REDIS_DB", 0)),

		CommerceBaseURL:  strings.TrimRight(getenv("COMMERCE_BASE_URL", ""), "/"),
		CommerceAPIKey:   strings.TrimSpace(getenv("COMMERCE_API_KEY", "")),
		CommerceAPIToken: strings.TrimSpace(getenv("COMMERCE_API_TOKEN", "")),

		DiscourseBaseURL:     strings.TrimRight(getenv("DISCOURSE_BASE_URL", ""), "/"),
		DiscourseAPIKey:      strings.TrimSpace(getenv("DISCOURSE_API_KEY", "")),
		DiscourseAPIUsername: getenv("DISCOURSE_API_USERNAME", "system"),

		WebhookSecrets: parseWebhookSecrets(getenv("WEBHOOK_SECRETS", "")),

		UserLockEnabled: getenvBool("USER_LOCK_ENABLED", false),
	}

	return cfg
}

// Module wires application configuration.
var Module = fx.Module("config",
	fx.Provide(
		Load,
		NewSyncPolicyHolder,
	),
)

// parseWebhookSecrets parses "source=secret,source2=secret2".
func parseWebhookSecrets(raw string) map[string]string {
	out := map[string]string{}
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			log.Printf("[config] ignoring malformed webhook secret entry %q", part)
			continue
		}
		source := strings.ToLower(strings.TrimSpace(kv[0]))
		secret := strings.TrimSpace(kv[1])
		if source == "" || secret == "" {
			continue
		}
		out[source] = secret
	}
	return out
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt64(key string, def int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return def
	}
	return parsed
}
