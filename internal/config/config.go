package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all service configuration loaded from environment variables
// and an optional config file.
type Config struct {
	Env  string
	Port string

	Server    ServerConfig
	Directory DirectoryConfig
	Password  PasswordConfig
	Postgres  PostgresConfig
	Mongo     MongoConfig
	SQLite    SQLiteConfig
	Redis     RedisConfig
	Audit     AuditConfig
	Minio     MinioConfig
	RateLimit RateLimitConfig
	Log       LogConfig
	Tracing   TracingConfig
}

type ServerConfig struct {
	AllowedOrigins []string
	ForceHTTPS     bool
	HTTPSPort      int
	HSTSMaxAge     time.Duration
	StaticDir      string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration

	TrustProxyHeaders bool
}

type DirectoryConfig struct {
	Backend    string // postgres, mongo, sqlite or memory
	BcryptCost int
}

type PasswordConfig struct {
	RequiredLength         int
	RequiredUniqueChars    int
	RequireDigit           bool
	RequireLowercase       bool
	RequireUppercase       bool
	RequireNonAlphanumeric bool
}

type PostgresConfig struct {
	DSN string
}

type MongoConfig struct {
	URI string
	DB  string
}

type SQLiteConfig struct {
	Path string
}

type RedisConfig struct {
	Addr           string
	Password       string
	ReservationTTL time.Duration
}

type AuditConfig struct {
	Enabled bool
}

type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool

	Versioning    bool
	RetentionDays int // 0 keeps audit records forever
}

type RateLimitConfig struct {
	RPS   float64
	Burst int
}

type LogConfig struct {
	Level  string
	Format string // text or json
}

type TracingConfig struct {
	Enabled      bool
	Exporter     string // none, stdout or otlp
	OTLPEndpoint string
	SampleRate   float64
	ServiceName  string
}

// IsDevelopment reports whether the service runs in the development
// environment.
func (c *Config) IsDevelopment() bool {
	return strings.EqualFold(c.Env, "development")
}

var defaults = map[string]any{
	"env":  "production",
	"port": "8080",

	"server.allowed_origins":     []string{"http://localhost:3000"},
	"server.force_https":         false,
	"server.https_port":          443,
	"server.hsts_max_age":        30 * 24 * time.Hour,
	"server.static_dir":          "wwwroot",
	"server.read_timeout":        30 * time.Second,
	"server.write_timeout":       30 * time.Second,
	"server.trust_proxy_headers": false,

	"directory.backend":     "postgres",
	"directory.bcrypt_cost": 10,

	"password.required_length":          6,
	"password.required_unique_chars":    1,
	"password.require_digit":            true,
	"password.require_lowercase":        true,
	"password.require_uppercase":        true,
	"password.require_non_alphanumeric": false,

	"postgres.dsn": "",
	"mongo.uri":    "",
	"mongo.db":     "registration",
	"sqlite.path":  "accounts.db",

	"redis.addr":            "",
	"redis.password":        "",
	"redis.reservation_ttl": 30 * time.Second,

	"audit.enabled":    false,
	"minio.endpoint":   "minio:9000",
	"minio.access_key": "",
	"minio.secret_key": "",
	"minio.bucket":     "registration-audit",
	"minio.use_ssl":    false,

	"minio.versioning":     false,
	"minio.retention_days": 0,

	"ratelimit.rps":   1.0,
	"ratelimit.burst": 5,

	"log.level":  "info",
	"log.format": "json",

	"tracing.enabled":       false,
	"tracing.exporter":      "stdout",
	"tracing.otlp_endpoint": "localhost:4317",
	"tracing.sample_rate":   1.0,
	"tracing.service_name":  "registration-service",
}

// Legacy flat environment names, kept so existing deployments keep working.
var envAliases = map[string]string{
	"postgres.dsn":     "POSTGRES_DSN",
	"mongo.uri":        "MONGO_URI",
	"mongo.db":         "MONGO_DB",
	"redis.addr":       "REDIS_ADDR",
	"redis.password":   "REDIS_PASSWORD",
	"minio.endpoint":   "MINIO_ENDPOINT",
	"minio.access_key": "MINIO_ACCESS_KEY",
	"minio.secret_key": "MINIO_SECRET_KEY",
	"minio.bucket":     "MINIO_BUCKET",
	"minio.use_ssl":    "MINIO_USE_SSL",

	"minio.retention_days": "MINIO_RETENTION_DAYS",
	"env":              "APP_ENV",
}

// Load reads configuration from defaults, the optional file at path and the
// environment, in increasing precedence. Nested keys map to env vars with
// dots replaced by underscores (server.force_https -> SERVER_FORCE_HTTPS).
func Load(path string) (*Config, error) {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range envAliases {
		if err := v.BindEnv(key, strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := &Config{
		Env:  v.GetString("env"),
		Port: v.GetString("port"),
		Server: ServerConfig{
			AllowedOrigins: splitList(v.GetStringSlice("server.allowed_origins")),
			ForceHTTPS:     v.GetBool("server.force_https"),
			HTTPSPort:      v.GetInt("server.https_port"),
			HSTSMaxAge:     v.GetDuration("server.hsts_max_age"),
			StaticDir:      v.GetString("server.static_dir"),
			ReadTimeout:    v.GetDuration("server.read_timeout"),
			WriteTimeout:   v.GetDuration("server.write_timeout"),

			TrustProxyHeaders: v.GetBool("server.trust_proxy_headers"),
		},
		Directory: DirectoryConfig{
			Backend:    strings.ToLower(v.GetString("directory.backend")),
			BcryptCost: v.GetInt("directory.bcrypt_cost"),
		},
		Password: PasswordConfig{
			RequiredLength:         v.GetInt("password.required_length"),
			RequiredUniqueChars:    v.GetInt("password.required_unique_chars"),
			RequireDigit:           v.GetBool("password.require_digit"),
			RequireLowercase:       v.GetBool("password.require_lowercase"),
			RequireUppercase:       v.GetBool("password.require_uppercase"),
			RequireNonAlphanumeric: v.GetBool("password.require_non_alphanumeric"),
		},
		Postgres: PostgresConfig{DSN: v.GetString("postgres.dsn")},
		Mongo:    MongoConfig{URI: v.GetString("mongo.uri"), DB: v.GetString("mongo.db")},
		SQLite:   SQLiteConfig{Path: v.GetString("sqlite.path")},
		Redis: RedisConfig{
			Addr:           v.GetString("redis.addr"),
			Password:       v.GetString("redis.password"),
			ReservationTTL: v.GetDuration("redis.reservation_ttl"),
		},
		Audit: AuditConfig{Enabled: v.GetBool("audit.enabled")},
		Minio: MinioConfig{
			Endpoint:  v.GetString("minio.endpoint"),
			AccessKey: v.GetString("minio.access_key"),
			SecretKey: v.GetString("minio.secret_key"),
			Bucket:    v.GetString("minio.bucket"),
			UseSSL:    v.GetBool("minio.use_ssl"),

			Versioning:    v.GetBool("minio.versioning"),
			RetentionDays: v.GetInt("minio.retention_days"),
		},
		RateLimit: RateLimitConfig{
			RPS:   v.GetFloat64("ratelimit.rps"),
			Burst: v.GetInt("ratelimit.burst"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		},
		Tracing: TracingConfig{
			Enabled:      v.GetBool("tracing.enabled"),
			Exporter:     v.GetString("tracing.exporter"),
			OTLPEndpoint: v.GetString("tracing.otlp_endpoint"),
			SampleRate:   v.GetFloat64("tracing.sample_rate"),
			ServiceName:  v.GetString("tracing.service_name"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// splitList accepts both YAML lists and comma-separated env values.
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// Validate checks the settings that would otherwise fail late at startup.
func (c *Config) Validate() error {
	var errs []error
	switch c.Directory.Backend {
	case "postgres":
		if c.Postgres.DSN == "" {
			errs = append(errs, errors.New("postgres.dsn is required for the postgres backend"))
		}
	case "mongo":
		if c.Mongo.URI == "" {
			errs = append(errs, errors.New("mongo.uri is required for the mongo backend"))
		}
	case "sqlite":
		if c.SQLite.Path == "" {
			errs = append(errs, errors.New("sqlite.path is required for the sqlite backend"))
		}
	case "memory":
	default:
		errs = append(errs, fmt.Errorf("unknown directory.backend %q", c.Directory.Backend))
	}
	if c.RateLimit.RPS < 0 || c.RateLimit.Burst < 0 {
		errs = append(errs, errors.New("ratelimit.rps and ratelimit.burst must not be negative"))
	}
	if c.Audit.Enabled && c.Minio.Bucket == "" {
		errs = append(errs, errors.New("minio.bucket is required when audit is enabled"))
	}
	if c.Minio.RetentionDays < 0 {
		errs = append(errs, errors.New("minio.retention_days must not be negative"))
	}
	if c.Password.RequiredLength < 0 {
		errs = append(errs, errors.New("password.required_length must not be negative"))
	}
	return errors.Join(errs...)
}
