package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ethpandaops/bootstrapoor/pkg/env"
	"golang.org/x/text/language"
)

// Section names as registered in the Registry.
const (
	SectionApp      = "app"
	SectionSwagger  = "swagger"
	SectionThrottle = "throttle"
	SectionHTTP     = "http"
	SectionMetrics  = "metrics"
)

// redacted replaces secret values in Redacted.
const redacted = "********"

// EnvDevelopment is the APP_ENV value that enables development behaviour.
const EnvDevelopment = "development"

// Config is the root configuration for bootstrapoor.
type Config struct {
	App      AppConfig      `yaml:"app"`
	Swagger  SwaggerConfig  `yaml:"swagger"`
	Throttle ThrottleConfig `yaml:"throttle"`
	HTTP     HTTPConfig     `yaml:"http"`
	Metrics  MetricsConfig  `yaml:"metrics"`

	registry *Registry
}

// AppConfig contains application settings.
type AppConfig struct {
	Name         string       `yaml:"name"`
	Port         int          `yaml:"port"`
	BaseURL      string       `yaml:"baseUrl"`
	GlobalPrefix string       `yaml:"globalPrefix"`
	Locale       string       `yaml:"locale"`
	Env          string       `yaml:"env"`
	Test         bool         `yaml:"test"`
	Instance     int          `yaml:"instance"`
	Logger       LoggerConfig `yaml:"logger"`
}

// LoggerConfig contains log sink settings.
type LoggerConfig struct {
	Level    string `yaml:"level"`
	MaxFiles int    `yaml:"maxFiles"`
	Dir      string `yaml:"dir"`
}

// SwaggerConfig contains documentation settings.
type SwaggerConfig struct {
	Enable    bool   `yaml:"enable"`
	Path      string `yaml:"path"`
	ServerURL string `yaml:"serverUrl"`
}

// ThrottleConfig contains request rate limiting settings.
type ThrottleConfig struct {
	TTL       time.Duration       `yaml:"ttl"`
	Limit     int                 `yaml:"limit"`
	KeyHeader string              `yaml:"keyHeader"`
	Stats     ThrottleStatsConfig `yaml:"stats"`
}

// ThrottleStatsConfig contains settings for mirroring limiter decisions to Redis.
type ThrottleStatsConfig struct {
	RedisAddr     string        `yaml:"redisAddr"`
	RedisPassword string        `yaml:"redisPassword"`
	RedisDB       int           `yaml:"redisDb"`
	Prefix        string        `yaml:"prefix"`
	TTL           time.Duration `yaml:"ttl"`
}

// HTTPConfig contains HTTP adapter settings.
type HTTPConfig struct {
	TrustProxy bool         `yaml:"trustProxy"`
	Upload     UploadConfig `yaml:"upload"`

	// AuthTokenHash is the bcrypt hash of the bearer token guarding uploads.
	// Empty leaves uploads open.
	AuthTokenHash string `yaml:"authTokenHash"`
}

// UploadConfig contains multipart upload limits.
type UploadConfig struct {
	MaxFields   int   `yaml:"maxFields"`
	MaxFileSize int64 `yaml:"maxFileSize"`
	MaxFiles    int   `yaml:"maxFiles"`
}

// MetricsConfig contains Prometheus settings.
type MetricsConfig struct {
	Enable bool `yaml:"enable"`
}

// logLevels are the accepted LOGGER_LEVEL values. "log" is an alias of "info".
var logLevels = map[string]bool{
	"verbose": true,
	"debug":   true,
	"info":    true,
	"log":     true,
	"warn":    true,
	"error":   true,
}

// Load resolves the configuration from e. Every coercion failure is reported,
// joined into a single error.
func Load(e *env.Env) (*Config, error) {
	r := &resolver{env: e}

	baseURL := e.String("APP_BASE_URL", "")

	cfg := &Config{
		App: AppConfig{
			Name:         e.String("APP_NAME", "bootstrapoor"),
			Port:         r.integer("APP_PORT", 3000),
			BaseURL:      baseURL,
			GlobalPrefix: strings.Trim(e.String("GLOBAL_PREFIX", "api"), "/"),
			Locale:       e.String("APP_LOCALE", "zh-CN"),
			Env:          e.String("APP_ENV", "production"),
			Test:         r.boolean("TEST", false),
			Instance:     r.integer("APP_INSTANCE", 0),
			Logger: LoggerConfig{
				Level:    strings.ToLower(e.String("LOGGER_LEVEL", "info")),
				MaxFiles: r.integer("LOGGER_MAX_FILES", 0),
				Dir:      e.String("LOGGER_DIR", "logs"),
			},
		},
		Swagger: SwaggerConfig{
			Enable:    r.boolean("SWAGGER_ENABLE", false),
			Path:      strings.Trim(e.String("SWAGGER_PATH", "api-docs"), "/"),
			ServerURL: e.String("SWAGGER_SERVER_URL", baseURL),
		},
		Throttle: ThrottleConfig{
			TTL:       r.duration("THROTTLE_TTL", 10*time.Second),
			Limit:     r.integer("THROTTLE_LIMIT", 5),
			KeyHeader: e.String("THROTTLE_KEY_HEADER", ""),
			Stats: ThrottleStatsConfig{
				RedisAddr:     e.String("THROTTLE_STATS_REDIS_ADDR", ""),
				RedisPassword: e.String("THROTTLE_STATS_REDIS_PASSWORD", ""),
				RedisDB:       r.integer("THROTTLE_STATS_REDIS_DB", 0),
				Prefix:        e.String("THROTTLE_STATS_PREFIX", "throttle:stats"),
				TTL:           r.duration("THROTTLE_STATS_TTL", 24*time.Hour),
			},
		},
		HTTP: HTTPConfig{
			TrustProxy:    r.boolean("HTTP_TRUST_PROXY", true),
			AuthTokenHash: e.String("HTTP_AUTH_TOKEN_HASH", ""),
			Upload: UploadConfig{
				MaxFields:   r.integer("UPLOAD_MAX_FIELDS", 10),
				MaxFileSize: r.integer64("UPLOAD_MAX_FILE_SIZE", 6*1024*1024),
				MaxFiles:    r.integer("UPLOAD_MAX_FILES", 5),
			},
		},
		Metrics: MetricsConfig{
			Enable: r.boolean("METRICS_ENABLE", true),
		},
	}

	if err := errors.Join(r.errs...); err != nil {
		return nil, fmt.Errorf("resolving environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	registry, err := newSectionRegistry(cfg)
	if err != nil {
		return nil, fmt.Errorf("registering config sections: %w", err)
	}

	cfg.registry = registry

	return cfg, nil
}

// Validate checks the configuration for values that coerced but are out of range.
func (c *Config) Validate() error {
	var errs []error

	if c.App.Port < 1 || c.App.Port > 65535 {
		errs = append(errs, env.Invalid("APP_PORT", strconv.Itoa(c.App.Port), env.KindNumber,
			errors.New("port must be between 1 and 65535")))
	}

	if _, err := language.Parse(c.App.Locale); err != nil {
		errs = append(errs, env.Invalid("APP_LOCALE", c.App.Locale, env.KindLocale, err))
	}

	if !logLevels[c.App.Logger.Level] {
		errs = append(errs, env.Invalid("LOGGER_LEVEL", c.App.Logger.Level, env.KindString,
			errors.New("level must be one of verbose, debug, info, warn, error")))
	}

	if c.App.Logger.MaxFiles < 0 {
		errs = append(errs, env.Invalid("LOGGER_MAX_FILES", strconv.Itoa(c.App.Logger.MaxFiles), env.KindNumber,
			errors.New("must not be negative")))
	}

	if c.Swagger.Enable && c.Swagger.Path == "" {
		errs = append(errs, env.Invalid("SWAGGER_PATH", c.Swagger.Path, env.KindString,
			errors.New("path is required when swagger is enabled")))
	}

	if c.Swagger.Enable && c.App.GlobalPrefix != "" &&
		(c.Swagger.Path == c.App.GlobalPrefix || strings.HasPrefix(c.Swagger.Path, c.App.GlobalPrefix+"/")) {
		errs = append(errs, env.Invalid("SWAGGER_PATH", c.Swagger.Path, env.KindString,
			errors.New("path must not be inside the global prefix")))
	}

	if c.Throttle.TTL <= 0 {
		errs = append(errs, env.Invalid("THROTTLE_TTL", c.Throttle.TTL.String(), env.KindDuration,
			errors.New("must be positive")))
	}

	if c.Throttle.Limit <= 0 {
		errs = append(errs, env.Invalid("THROTTLE_LIMIT", strconv.Itoa(c.Throttle.Limit), env.KindNumber,
			errors.New("must be positive")))
	}

	if c.HTTP.Upload.MaxFields < 0 || c.HTTP.Upload.MaxFiles < 0 || c.HTTP.Upload.MaxFileSize < 0 {
		errs = append(errs, env.Invalid("UPLOAD_MAX_*", "", env.KindNumber,
			errors.New("upload limits must not be negative")))
	}

	return errors.Join(errs...)
}

// Registry returns the section registry built by Load.
func (c *Config) Registry() *Registry {
	return c.registry
}

// IsDevelopment reports whether the application runs in development mode.
func (a AppConfig) IsDevelopment() bool {
	return a.Env == EnvDevelopment
}

// IsPrimary reports whether this process is the designated primary instance.
func (a AppConfig) IsPrimary() bool {
	return a.Instance == 0
}

// LocaleTag returns the parsed application locale. Load has already validated it.
func (a AppConfig) LocaleTag() language.Tag {
	return language.Make(a.Locale)
}

// PrefixPath returns the global prefix as a rooted path, or "" when no prefix is set.
func (a AppConfig) PrefixPath() string {
	if a.GlobalPrefix == "" {
		return ""
	}

	return "/" + a.GlobalPrefix
}

// Redacted returns a copy of the configuration with secrets masked. Its
// registry resolves paths against the masked values.
func (c *Config) Redacted() Config {
	out := *c
	out.registry = nil

	if out.Throttle.Stats.RedisPassword != "" {
		out.Throttle.Stats.RedisPassword = redacted
	}

	if out.HTTP.AuthTokenHash != "" {
		out.HTTP.AuthTokenHash = redacted
	}

	// Sections that encoded once in Load encode again here.
	if registry, err := newSectionRegistry(&out); err == nil {
		out.registry = registry
	}

	return out
}

// String returns a sanitized string representation of the config (no secrets).
func (c *Config) String() string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("App: name=%s port=%d prefix=%q env=%s locale=%s instance=%d\n",
		c.App.Name, c.App.Port, c.App.GlobalPrefix, c.App.Env, c.App.Locale, c.App.Instance))
	sb.WriteString(fmt.Sprintf("Logger: level=%s max_files=%d dir=%s\n",
		c.App.Logger.Level, c.App.Logger.MaxFiles, c.App.Logger.Dir))
	sb.WriteString(fmt.Sprintf("Swagger: enabled=%t path=%s\n", c.Swagger.Enable, c.Swagger.Path))
	sb.WriteString(fmt.Sprintf("Throttle: ttl=%s limit=%d stats=%t\n",
		c.Throttle.TTL, c.Throttle.Limit, c.Throttle.Stats.RedisAddr != ""))
	sb.WriteString(fmt.Sprintf("HTTP: trust_proxy=%t auth=%t max_fields=%d max_file_size=%d max_files=%d\n",
		c.HTTP.TrustProxy, c.HTTP.AuthTokenHash != "", c.HTTP.Upload.MaxFields, c.HTTP.Upload.MaxFileSize, c.HTTP.Upload.MaxFiles))
	sb.WriteString(fmt.Sprintf("Metrics: enabled=%t\n", c.Metrics.Enable))

	return sb.String()
}

// resolver reads typed values and collects every coercion error.
type resolver struct {
	env  *env.Env
	errs []error
}

func (r *resolver) integer(key string, def int) int {
	v, err := r.env.Int(key, def)
	if err != nil {
		r.errs = append(r.errs, err)
	}

	return v
}

func (r *resolver) integer64(key string, def int64) int64 {
	v, err := r.env.Int64(key, def)
	if err != nil {
		r.errs = append(r.errs, err)
	}

	return v
}

func (r *resolver) boolean(key string, def bool) bool {
	v, err := r.env.Bool(key, def)
	if err != nil {
		r.errs = append(r.errs, err)
	}

	return v
}

func (r *resolver) duration(key string, def time.Duration) time.Duration {
	v, err := r.env.Duration(key, def)
	if err != nil {
		r.errs = append(r.errs, err)
	}

	return v
}
