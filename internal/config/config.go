package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ErrInvalid reports a configuration that must stop startup.
var ErrInvalid = errors.New("configuration invalid")

// Config represents the full runtime configuration tree.
type Config struct {
	App        AppConfig
	Redis      RedisConfig
	Auth       AuthConfig
	RateLimit  RateLimitConfig
	Cors       CORSConfig
	Monitoring MonitoringConfig
	Sessions   SessionStoreConfig
	TraceLens  TraceLensConfig
}

// AppConfig captures application-level settings.
type AppConfig struct {
	Name    string
	Env     string `validate:"oneof=development production test"`
	Version string
	Port    string `validate:"required,numeric"`
}

// RedisConfig stores redis connectivity info.
type RedisConfig struct {
	Addr     string
	Username string
	Password string
	DB       int
	TLS      bool
}

// AuthConfig guards admin endpoints. Empty secret disables them.
type AuthConfig struct {
	AccessSecret   string
	AccessTokenTTL time.Duration
	TokenIssuer    string
	SecretVersion  string
}

// RateLimitConfig manages throttling parameters.
type RateLimitConfig struct {
	Enabled           bool
	RequestsPerMinute int `validate:"gt=0"`
	Burst             int `validate:"gte=0"`
	RedisPrefix       string
}

// CORSConfig declares cross-origin policy.
type CORSConfig struct {
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	AllowCredentials bool
}

// MonitoringConfig adds observability tunables.
type MonitoringConfig struct {
	PrometheusEnabled bool
	SentryDSN         string
	SentrySampleRate  float64 `validate:"gte=0,lte=1"`
}

// SessionStoreConfig configures the native server-side session store.
type SessionStoreConfig struct {
	CookieName string        `validate:"required"`
	TTL        time.Duration `validate:"gt=0"`
	RedisKey   string
}

// TraceLensConfig holds the session log capture settings.
type TraceLensConfig struct {
	Enabled           bool
	SessionHeaderName string
	SessionCookieName string
	MaxBufferSize     int           `validate:"gt=0"`
	BufferTTL         time.Duration `validate:"gt=0"`
	CleanupInterval   time.Duration `validate:"gt=0"`
	StreamTimeout     time.Duration `validate:"gt=0"`
	PollInterval      time.Duration `validate:"gt=0"`
	EndpointPath      string        `validate:"required,startswith=/"`
	IncludePatterns   []string
	ExcludePatterns   []string
	SanitizeHTML      bool
	CaptureLevel      string `validate:"oneof=debug info warn error"`
}

// fileConfig is the YAML layout. Keys follow the option names of the
// trace-lens properties; unset keys keep their defaults.
type fileConfig struct {
	Enabled                 bool     `yaml:"enabled"`
	SessionHeaderName       string   `yaml:"sessionHeaderName"`
	SessionCookieName       string   `yaml:"sessionCookieName"`
	NativeSessionCookieName string   `yaml:"nativeSessionCookieName"`
	MaxBufferSize           int      `yaml:"maxBufferSize"`
	BufferTTLMinutes        int      `yaml:"bufferTtlMinutes"`
	CleanupIntervalMillis   int      `yaml:"cleanupIntervalMillis"`
	StreamTimeoutMillis     int      `yaml:"streamTimeoutMillis"`
	PollIntervalMillis      int      `yaml:"pollIntervalMillis"`
	EndpointPath            string   `yaml:"endpointPath"`
	IncludePatterns         []string `yaml:"includePatterns"`
	ExcludePatterns         []string `yaml:"excludePatterns"`
	SanitizeHTML            bool     `yaml:"sanitizeHtml"`
	CaptureLevel            string   `yaml:"captureLevel"`
}

func defaultFileConfig() fileConfig {
	return fileConfig{
		Enabled:                 true,
		NativeSessionCookieName: "TLSESSIONID",
		MaxBufferSize:           1000,
		BufferTTLMinutes:        30,
		CleanupIntervalMillis:   60000,
		StreamTimeoutMillis:     1800000,
		PollIntervalMillis:      500,
		EndpointPath:            "/trace-lens/logs",
		IncludePatterns:         []string{"/**"},
		ExcludePatterns: []string{
			"/trace-lens/**",
			"/actuator/**",
			"/static/**",
			"/public/**",
			"/webjars/**",
			"/favicon.ico",
		},
		CaptureLevel: "debug",
	}
}

// Load reads an optional YAML file, then environment (optionally .env) on
// top of it, and builds Config. path may be empty.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	file := defaultFileConfig()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, &file); err != nil {
			return nil, fmt.Errorf("%w: parse %s: %v", ErrInvalid, path, err)
		}
	}

	cfg := &Config{
		App: AppConfig{
			Name:    getenv("APP_NAME", "tracelens-demo"),
			Env:     getenv("APP_ENV", "development"),
			Version: getenv("APP_VERSION", "0.1.0"),
			Port:    getenv("PORT", "8080"),
		},
		Redis: RedisConfig{
			Addr:     getenv("REDIS_ADDR", ""),
			Username: getenv("REDIS_USER", ""),
			Password: getenv("REDIS_PASSWORD", ""),
			DB:       getInt("REDIS_DB", 0),
			TLS:      getBool("REDIS_TLS", false),
		},
		Auth: AuthConfig{
			AccessSecret:   getenv("JWT_ACCESS_SECRET", getenv("JWT_SECRET", "")),
			AccessTokenTTL: time.Duration(getInt("JWT_ACCESS_EXP_MIN", 15)) * time.Minute,
			TokenIssuer:    getenv("JWT_ISSUER", "tracelens"),
			SecretVersion:  getenv("JWT_SECRET_VERSION", "v1"),
		},
		RateLimit: RateLimitConfig{
			Enabled:           getBool("RATE_LIMIT_ENABLED", true),
			RequestsPerMinute: getInt("RATE_LIMIT_PER_MIN", 60),
			Burst:             getInt("RATE_LIMIT_BURST", 5),
			RedisPrefix:       getenv("RATE_LIMIT_PREFIX", "tracelens:ratelimit"),
		},
		Cors: CORSConfig{
			AllowedOrigins:   splitAndTrim(getenv("CORS_ORIGINS", "http://localhost:3000,http://localhost:5173,http://localhost:8080")),
			AllowedMethods:   splitAndTrim(getenv("CORS_METHODS", "GET,POST,DELETE,OPTIONS")),
			AllowedHeaders:   splitAndTrim(getenv("CORS_HEADERS", "Authorization,Content-Type,Accept,Last-Event-ID,X-Session-ID")),
			AllowCredentials: getBool("CORS_ALLOW_CREDENTIALS", true),
		},
		Monitoring: MonitoringConfig{
			PrometheusEnabled: getBool("PROMETHEUS_ENABLED", true),
			SentryDSN:         getenv("SENTRY_DSN", ""),
			SentrySampleRate:  getFloat("SENTRY_SAMPLE_RATE", 0.2),
		},
		Sessions: SessionStoreConfig{
			CookieName: getenv("TRACE_LENS_NATIVE_SESSION_COOKIE", file.NativeSessionCookieName),
			TTL:        time.Duration(getInt("SESSION_TTL_MIN", 60)) * time.Minute,
			RedisKey:   getenv("SESSION_REDIS_PREFIX", "tracelens:session"),
		},
		TraceLens: TraceLensConfig{
			Enabled:           getBool("TRACE_LENS_ENABLED", file.Enabled),
			SessionHeaderName: getenv("TRACE_LENS_SESSION_HEADER", file.SessionHeaderName),
			SessionCookieName: getenv("TRACE_LENS_SESSION_COOKIE", file.SessionCookieName),
			MaxBufferSize:     getInt("TRACE_LENS_MAX_BUFFER_SIZE", file.MaxBufferSize),
			BufferTTL:         time.Duration(getInt("TRACE_LENS_BUFFER_TTL_MIN", file.BufferTTLMinutes)) * time.Minute,
			CleanupInterval:   time.Duration(getInt("TRACE_LENS_CLEANUP_INTERVAL_MS", file.CleanupIntervalMillis)) * time.Millisecond,
			StreamTimeout:     time.Duration(getInt("TRACE_LENS_STREAM_TIMEOUT_MS", file.StreamTimeoutMillis)) * time.Millisecond,
			PollInterval:      time.Duration(getInt("TRACE_LENS_POLL_INTERVAL_MS", file.PollIntervalMillis)) * time.Millisecond,
			EndpointPath:      strings.TrimRight(getenv("TRACE_LENS_ENDPOINT_PATH", file.EndpointPath), "/"),
			IncludePatterns:   getList("TRACE_LENS_INCLUDE_PATTERNS", file.IncludePatterns),
			ExcludePatterns:   getList("TRACE_LENS_EXCLUDE_PATTERNS", file.ExcludePatterns),
			SanitizeHTML:      getBool("TRACE_LENS_SANITIZE_HTML", file.SanitizeHTML),
			CaptureLevel:      strings.ToLower(getenv("TRACE_LENS_CAPTURE_LEVEL", file.CaptureLevel)),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if err := validator.New().Struct(c); err != nil {
		var verr validator.ValidationErrors
		if errors.As(err, &verr) {
			fields := make([]string, 0, len(verr))
			for _, fe := range verr {
				fields = append(fields, fe.Namespace()+" ("+fe.Tag()+")")
			}
			return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(fields, ", "))
		}
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}

func getenv(key, def string) string {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return def
	}
	return val
}

func getInt(key string, def int) int {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return def
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return def
	}
	return i
}

func getBool(key string, def bool) bool {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return def
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return def
	}
	return parsed
}

func getFloat(key string, def float64) float64 {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getList(key string, def []string) []string {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return def
	}
	return splitAndTrim(val)
}

func splitAndTrim(val string) []string {
	if val == "" {
		return nil
	}
	parts := strings.Split(val, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		trim := strings.TrimSpace(p)
		if trim != "" {
			out = append(out, trim)
		}
	}
	return out
}
