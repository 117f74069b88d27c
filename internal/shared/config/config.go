package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// Catalog sources.
const (
	CatalogSourceFile      = "file"
	CatalogSourceObject    = "object"
	CatalogSourceRevisions = "revisions"
)

// Config holds application configuration.
type Config struct {
	Env             string
	Port            string
	CORSAllowOrigin []string
	DatabaseURL     string

	CatalogSource         string
	CatalogPath           string
	CatalogObjectKey      string
	CatalogReloadInterval time.Duration

	ObjectStoreType string
	LocalStoreDir   string
	AWSRegion       string
	S3Bucket        string
	S3Prefix        string
	SSEKMSKeyID     string

	RedisURL   string
	CacheTTL   time.Duration
	EvalBudget time.Duration

	AdminToken     string
	RateLimitRPS   float64
	RateLimitBurst int
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	// Best-effort load of local env files for dev convenience.
	loadEnvFiles(".env", "cmd/.env")

	env := normalizeEnv(getEnv("ENV", "dev"))
	dbURL := os.Getenv("DATABASE_URL")
	source := normalizeCatalogSource(getEnv("CATALOG_SOURCE", CatalogSourceFile))

	if env == "production" && source == CatalogSourceRevisions && dbURL == "" {
		log.Printf("DATABASE_URL is required for CATALOG_SOURCE=revisions in production")
	}
	adminToken := os.Getenv("ADMIN_TOKEN")
	if env == "production" && adminToken == "" {
		log.Printf("ADMIN_TOKEN is empty; catalog admin endpoints are disabled")
	}

	return Config{
		Env:             env,
		Port:            getEnv("PORT", "8080"),
		CORSAllowOrigin: splitAndTrim(getEnv("CORS_ALLOW_ORIGINS", "http://localhost:5173")),
		DatabaseURL:     dbURL,

		CatalogSource:         source,
		CatalogPath:           getEnv("CATALOG_PATH", "./catalog.yaml"),
		CatalogObjectKey:      getEnv("CATALOG_OBJECT_KEY", "catalog.yaml"),
		CatalogReloadInterval: getDuration("CATALOG_RELOAD_INTERVAL", 30*time.Second),

		ObjectStoreType: normalizeStoreType(getEnv("OBJECT_STORE", "local")),
		LocalStoreDir:   getEnv("LOCAL_STORE_DIR", "./data"),
		AWSRegion:       getEnv("AWS_REGION", ""),
		S3Bucket:        getEnv("S3_BUCKET", ""),
		S3Prefix:        getEnv("S3_PREFIX", ""),
		SSEKMSKeyID:     getEnv("SSE_KMS_KEY_ID", ""),

		RedisURL:   getEnv("REDIS_URL", ""),
		CacheTTL:   getDuration("CACHE_TTL", 10*time.Minute),
		EvalBudget: getDuration("EVAL_BUDGET", 2*time.Second),

		AdminToken:     adminToken,
		RateLimitRPS:   getFloat("RATE_LIMIT_RPS", 20),
		RateLimitBurst: getInt("RATE_LIMIT_BURST", 40),
	}
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	if d, err := time.ParseDuration(raw); err == nil && d >= 0 {
		return d
	}
	// Bare integers are seconds.
	if n, err := strconv.Atoi(raw); err == nil && n >= 0 {
		return time.Duration(n) * time.Second
	}
	log.Printf("invalid %s=%q, using %s", key, raw, def)
	return def
}

func getInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		log.Printf("invalid %s=%q, using %d", key, raw, def)
		return def
	}
	return n
}

func getFloat(key string, def float64) float64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || f < 0 {
		log.Printf("invalid %s=%q, using %g", key, raw, def)
		return def
	}
	return f
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	case "test":
		return "test"
	default:
		return "dev"
	}
}

func normalizeStoreType(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "s3":
		return "s3"
	default:
		return "local"
	}
}

func normalizeCatalogSource(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case CatalogSourceObject, "s3":
		return CatalogSourceObject
	case CatalogSourceRevisions, "db", "postgres":
		return CatalogSourceRevisions
	default:
		return CatalogSourceFile
	}
}
