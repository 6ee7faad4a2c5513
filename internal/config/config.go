package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"time"
)

type Config struct {
	API       APIConfig
	Auth      AuthConfig
	Convert   ConvertConfig
	Output    OutputConfig
	Storage   StorageConfig
	RateLimit RateLimitConfig
	Database  DatabaseConfig
	Webhook   WebhookConfig
	Trace     TraceConfig
}

type APIConfig struct {
	Addr string
}

type AuthConfig struct {
	// RegistryJSON is the inline tenant registry blob; RegistryFile points
	// at a file holding the same blob and wins when both are set.
	RegistryJSON string
	RegistryFile string
	AdminToken   string
}

type ConvertConfig struct {
	WebpQuality int
	WebpEffort  int
	AvifQuality int
	AvifEffort  int

	PortraitMaxWidth   int
	PortraitMaxHeight  int
	LandscapeMaxWidth  int
	LandscapeMaxHeight int

	MaxUploadBytes       int64
	MaxActiveConversions int
}

type OutputConfig struct {
	// Mode selects the response packaging: json, multipart or zip.
	Mode string
	// Backend selects where json-mode artifacts persist: disk or s3.
	Backend       string
	Root          string
	PublicBaseURL string
}

type StorageConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

type RateLimitConfig struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	// Capacity 0 disables rate limiting.
	Capacity int
	Window   time.Duration
}

type DatabaseConfig struct {
	DSN string
}

type WebhookConfig struct {
	URL    string
	Secret string
}

type TraceConfig struct {
	Exporter     string
	OTLPEndpoint string
	OTLPInsecure bool
}

func Load() Config {
	defaultActive := max(1, runtime.NumCPU()/2)

	return Config{
		API: APIConfig{
			Addr: env("IMGPRESS_ADDR", ":8080"),
		},
		Auth: AuthConfig{
			RegistryJSON: env("IMGPRESS_TENANTS", ""),
			RegistryFile: env("IMGPRESS_TENANTS_FILE", ""),
			AdminToken:   env("IMGPRESS_ADMIN_TOKEN", ""),
		},
		Convert: ConvertConfig{
			WebpQuality:          envInt("IMGPRESS_WEBP_QUALITY", 78),
			WebpEffort:           envInt("IMGPRESS_WEBP_EFFORT", 4),
			AvifQuality:          envInt("IMGPRESS_AVIF_QUALITY", 40),
			AvifEffort:           envInt("IMGPRESS_AVIF_EFFORT", 4),
			PortraitMaxWidth:     envInt("IMGPRESS_PORTRAIT_MAX_WIDTH", 1080),
			PortraitMaxHeight:    envInt("IMGPRESS_PORTRAIT_MAX_HEIGHT", 1920),
			LandscapeMaxWidth:    envInt("IMGPRESS_LANDSCAPE_MAX_WIDTH", 1920),
			LandscapeMaxHeight:   envInt("IMGPRESS_LANDSCAPE_MAX_HEIGHT", 1080),
			MaxUploadBytes:       envInt64("IMGPRESS_MAX_UPLOAD_BYTES", 25<<20),
			MaxActiveConversions: envInt("IMGPRESS_MAX_ACTIVE_CONVERSIONS", defaultActive),
		},
		Output: OutputConfig{
			Mode:          env("IMGPRESS_RESPONSE_MODE", "json"),
			Backend:       env("IMGPRESS_STORAGE_BACKEND", "disk"),
			Root:          env("IMGPRESS_OUTPUT_ROOT", "./.imgpress-output"),
			PublicBaseURL: env("IMGPRESS_PUBLIC_BASE_URL", "http://localhost:8080"),
		},
		Storage: StorageConfig{
			Endpoint:  env("MINIO_ENDPOINT", "localhost:9000"),
			AccessKey: env("MINIO_ACCESS_KEY", "minioadmin"),
			SecretKey: env("MINIO_SECRET_KEY", "minioadmin"),
			Bucket:    env("MINIO_BUCKET", "imgpress-outputs"),
			UseSSL:    envBool("MINIO_USE_SSL", false),
		},
		RateLimit: RateLimitConfig{
			RedisAddr:     env("REDIS_ADDR", ""),
			RedisPassword: env("REDIS_PASSWORD", ""),
			RedisDB:       envInt("REDIS_DB", 0),
			Capacity:      envInt("IMGPRESS_RATE_LIMIT", 0),
			Window:        time.Duration(envInt("IMGPRESS_RATE_WINDOW_MS", 60_000)) * time.Millisecond,
		},
		Database: DatabaseConfig{
			DSN: env("POSTGRES_DSN", ""),
		},
		Webhook: WebhookConfig{
			URL:    env("IMGPRESS_PUBLISH_WEBHOOK_URL", ""),
			Secret: env("IMGPRESS_WEBHOOK_SECRET", ""),
		},
		Trace: TraceConfig{
			Exporter:     env("IMGPRESS_TRACE_EXPORTER", "none"),
			OTLPEndpoint: env("IMGPRESS_TRACE_OTLP_ENDPOINT", ""),
			OTLPInsecure: envBool("IMGPRESS_TRACE_OTLP_INSECURE", false),
		},
	}
}

// Validate rejects configurations the process must not start with. Auth
// material is checked separately in main once the registry blob is parsed.
func (c Config) Validate() error {
	switch c.Output.Mode {
	case "json", "multipart", "zip":
	default:
		return fmt.Errorf("unsupported response mode: %q", c.Output.Mode)
	}

	switch c.Output.Backend {
	case "disk", "s3":
	default:
		return fmt.Errorf("unsupported storage backend: %q", c.Output.Backend)
	}

	if c.Output.Mode == "json" {
		if c.Output.Backend == "disk" && c.Output.Root == "" {
			return errors.New("json response mode with disk backend requires an output root")
		}
		if c.Output.PublicBaseURL == "" {
			return errors.New("json response mode requires a public base URL")
		}
	}

	if c.Convert.MaxUploadBytes <= 0 {
		return errors.New("max upload bytes must be positive")
	}
	for _, q := range []int{c.Convert.WebpQuality, c.Convert.AvifQuality} {
		if q < 1 || q > 100 {
			return fmt.Errorf("quality out of range: %d", q)
		}
	}

	if c.RateLimit.Capacity > 0 && c.RateLimit.RedisAddr == "" {
		return errors.New("rate limiting requires a redis address")
	}

	return nil
}

func env(key, fallback string) string {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback
	}
	return value
}

func envInt(key string, fallback int) int {
	value := env(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envInt64(key string, fallback int64) int64 {
	value := env(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func envBool(key string, fallback bool) bool {
	value := env(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}
