// AngelaMos | 2026
// config.go

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"sync"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	RevocationBackendMemory   = "memory"
	RevocationBackendRedis    = "redis"
	RevocationBackendPostgres = "postgres"
)

type Config struct {
	App        AppConfig        `koanf:"app"`
	Server     ServerConfig     `koanf:"server"`
	Database   DatabaseConfig   `koanf:"database"`
	Redis      RedisConfig      `koanf:"redis"`
	Mongo      MongoConfig      `koanf:"mongo"`
	JWT        JWTConfig        `koanf:"jwt"`
	Revocation RevocationConfig `koanf:"revocation"`
	Reports    ReportsConfig    `koanf:"reports"`
	Bootstrap  BootstrapConfig  `koanf:"bootstrap"`
	RateLimit  RateLimitConfig  `koanf:"rate_limit"`
	CORS       CORSConfig       `koanf:"cors"`
	Log        LogConfig        `koanf:"log"`
	Otel       OtelConfig       `koanf:"otel"`
}

type AppConfig struct {
	Name        string `koanf:"name"`
	Version     string `koanf:"version"`
	Environment string `koanf:"environment"`
}

type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	IdleTimeout     time.Duration `koanf:"idle_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

type DatabaseConfig struct {
	URL             string        `koanf:"url"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `koanf:"conn_max_idle_time"`
	AutoMigrate     bool          `koanf:"auto_migrate"`
}

// RedisConfig points at a single node through URL, or at a cluster or
// sentinel group through Addrs. Addrs wins when both are set.
type RedisConfig struct {
	URL          string        `koanf:"url"`
	Addrs        []string      `koanf:"addrs"`
	MasterName   string        `koanf:"master_name"`
	Password     string        `koanf:"password"`
	PoolSize     int           `koanf:"pool_size"`
	MinIdleConns int           `koanf:"min_idle_conns"`
	DialTimeout  time.Duration `koanf:"dial_timeout"`
	ReadTimeout  time.Duration `koanf:"read_timeout"`
}

type MongoConfig struct {
	URL            string        `koanf:"url"`
	Database       string        `koanf:"database"`
	ConnectTimeout time.Duration `koanf:"connect_timeout"`
	MaxPoolSize    uint64        `koanf:"max_pool_size"`
}

type JWTConfig struct {
	PrivateKeyPath    string        `koanf:"private_key_path"`
	PublicKeyPath     string        `koanf:"public_key_path"`
	AccessTokenExpire time.Duration `koanf:"access_token_expire"`
	Issuer            string        `koanf:"issuer"`
	Audience          string        `koanf:"audience"`
}

type RevocationConfig struct {
	Backend       string        `koanf:"backend"`
	KeyPrefix     string        `koanf:"key_prefix"`
	PruneInterval time.Duration `koanf:"prune_interval"`
}

type ReportsConfig struct {
	Timezone        string            `koanf:"timezone"`
	QueryTimeout    time.Duration     `koanf:"query_timeout"`
	MaxPageSize     int               `koanf:"max_page_size"`
	Datasets        map[string]string `koanf:"datasets"`
	GroupableFields []string          `koanf:"groupable_fields"`
}

type BootstrapConfig struct {
	MasterAdmin MasterAdminConfig `koanf:"master_admin"`
}

type MasterAdminConfig struct {
	Email    string `koanf:"email"`
	Username string `koanf:"username"`
	Mobile   string `koanf:"mobile"`
	Password string `koanf:"password"`
}

func (m MasterAdminConfig) Enabled() bool {
	return m.Email != "" && m.Password != ""
}

type RateLimitConfig struct {
	Requests      int           `koanf:"requests"`
	Window        time.Duration `koanf:"window"`
	Burst         int           `koanf:"burst"`
	LoginRequests int           `koanf:"login_requests"`
	LoginBurst    int           `koanf:"login_burst"`
}

type CORSConfig struct {
	AllowedOrigins   []string `koanf:"allowed_origins"`
	AllowedMethods   []string `koanf:"allowed_methods"`
	AllowedHeaders   []string `koanf:"allowed_headers"`
	AllowCredentials bool     `koanf:"allow_credentials"`
	MaxAge           int      `koanf:"max_age"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

type OtelConfig struct {
	Endpoint    string  `koanf:"endpoint"`
	ServiceName string  `koanf:"service_name"`
	Enabled     bool    `koanf:"enabled"`
	Insecure    bool    `koanf:"insecure"`
	SampleRate  float64 `koanf:"sample_rate"`
}

var (
	cfg     *Config
	loadErr error
	once    sync.Once
)

// Load reads the configuration once per process. Later calls return the
// first result, including its error.
func Load(configPath string) (*Config, error) {
	once.Do(func() {
		cfg, loadErr = load(configPath)
	})

	if loadErr != nil {
		return nil, loadErr
	}

	return cfg, nil
}

func load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if err := loadDefaults(k); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if configPath != "" {
		err := k.Load(file.Provider(configPath), yaml.Parser())
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	if err := k.Load(env.Provider("", ".", envKeyReplacer), nil); err != nil {
		return nil, fmt.Errorf("load env vars: %w", err)
	}

	c := &Config{}
	if err := k.Unmarshal("", c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := validate(c); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return c, nil
}

func loadDefaults(k *koanf.Koanf) error {
	defaults := map[string]any{
		"app.name":        "leadboard",
		"app.version":     "1.0.0",
		"app.environment": "development",

		"server.host":             "0.0.0.0",
		"server.port":             8080,
		"server.read_timeout":     "30s",
		"server.write_timeout":    "60s",
		"server.idle_timeout":     "120s",
		"server.shutdown_timeout": "15s",

		"database.max_open_conns":     25,
		"database.max_idle_conns":     5,
		"database.conn_max_lifetime":  "1h",
		"database.conn_max_idle_time": "30m",
		"database.auto_migrate":       true,

		"redis.pool_size":      10,
		"redis.min_idle_conns": 5,
		"redis.dial_timeout":   "5s",
		"redis.read_timeout":   "2s",

		"mongo.database":        "skoda",
		"mongo.connect_timeout": "10s",
		"mongo.max_pool_size":   50,

		"jwt.access_token_expire": "12h",
		"jwt.issuer":              "leadboard",
		"jwt.audience":            "leadboard-api",
		"jwt.private_key_path":    "keys/private.pem",
		"jwt.public_key_path":     "keys/public.pem",

		"revocation.backend":        RevocationBackendRedis,
		"revocation.key_prefix":     "revoked:",
		"revocation.prune_interval": "10m",

		"reports.timezone":      "Asia/Kolkata",
		"reports.query_timeout": "20s",
		"reports.max_page_size": 500,
		"reports.datasets": map[string]any{
			"skoda": "skoda",
			"tata":  "tata_ev_leads",
			"loan":  "loan",
		},
		"reports.groupable_fields": []string{
			"model",
			"state",
			"reason",
			"approval.status",
			"d.comm_state",
		},

		"rate_limit.requests":       100,
		"rate_limit.window":         "1m",
		"rate_limit.burst":          20,
		"rate_limit.login_requests": 10,
		"rate_limit.login_burst":    5,

		"cors.allowed_origins": []string{"http://localhost:3000"},
		"cors.allowed_methods": []string{
			"GET",
			"POST",
			"PUT",
			"OPTIONS",
		},
		"cors.allowed_headers": []string{
			"Accept",
			"Authorization",
			"Content-Type",
			"X-Request-ID",
		},
		"cors.allow_credentials": true,
		"cors.max_age":           300,

		"log.level":  "info",
		"log.format": "json",

		"otel.enabled":      false,
		"otel.insecure":     true,
		"otel.sample_rate":  0.1,
		"otel.service_name": "leadboard",
	}

	for key, value := range defaults {
		if err := k.Set(key, value); err != nil {
			return fmt.Errorf("set default %s: %w", key, err)
		}
	}

	return nil
}

var envKeyMap = map[string]string{
	"DATABASE_URL":                "database.url",
	"DATABASE_AUTO_MIGRATE":       "database.auto_migrate",
	"REDIS_URL":                   "redis.url",
	"REDIS_MASTER_NAME":           "redis.master_name",
	"REDIS_PASSWORD":              "redis.password",
	"MONGO_URL":                   "mongo.url",
	"MONGO_DATABASE":              "mongo.database",
	"ENVIRONMENT":                 "app.environment",
	"HOST":                        "server.host",
	"PORT":                        "server.port",
	"LOG_LEVEL":                   "log.level",
	"LOG_FORMAT":                  "log.format",
	"JWT_PRIVATE_KEY_PATH":        "jwt.private_key_path",
	"JWT_PUBLIC_KEY_PATH":         "jwt.public_key_path",
	"JWT_ACCESS_TOKEN_EXPIRE":     "jwt.access_token_expire",
	"JWT_ISSUER":                  "jwt.issuer",
	"JWT_AUDIENCE":                "jwt.audience",
	"REVOCATION_BACKEND":          "revocation.backend",
	"REPORTS_TIMEZONE":            "reports.timezone",
	"REPORTS_QUERY_TIMEOUT":       "reports.query_timeout",
	"MASTER_ADMIN_EMAIL":          "bootstrap.master_admin.email",
	"MASTER_ADMIN_USERNAME":       "bootstrap.master_admin.username",
	"MASTER_ADMIN_MOBILE":         "bootstrap.master_admin.mobile",
	"MASTER_ADMIN_PASSWORD":       "bootstrap.master_admin.password",
	"RATE_LIMIT_REQUESTS":         "rate_limit.requests",
	"RATE_LIMIT_WINDOW":           "rate_limit.window",
	"RATE_LIMIT_BURST":            "rate_limit.burst",
	"RATE_LIMIT_LOGIN_REQUESTS":   "rate_limit.login_requests",
	"RATE_LIMIT_LOGIN_BURST":      "rate_limit.login_burst",
	"OTEL_ENDPOINT":               "otel.endpoint",
	"OTEL_EXPORTER_OTLP_ENDPOINT": "otel.endpoint",
	"OTEL_SERVICE_NAME":           "otel.service_name",
	"OTEL_ENABLED":                "otel.enabled",
	"OTEL_INSECURE":               "otel.insecure",
	"OTEL_SAMPLE_RATE":            "otel.sample_rate",
}

func envKeyReplacer(s string) string {
	if mapped, ok := envKeyMap[s]; ok {
		return mapped
	}
	return ""
}

func validate(c *Config) error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Redis.URL == "" && len(c.Redis.Addrs) == 0 {
		return fmt.Errorf("REDIS_URL or redis.addrs is required")
	}

	if c.Mongo.URL == "" {
		return fmt.Errorf("MONGO_URL is required")
	}

	if c.JWT.PrivateKeyPath == "" {
		return fmt.Errorf("JWT_PRIVATE_KEY_PATH is required")
	}

	if c.JWT.PublicKeyPath == "" {
		return fmt.Errorf("JWT_PUBLIC_KEY_PATH is required")
	}

	if c.JWT.AccessTokenExpire <= 0 {
		return fmt.Errorf("jwt.access_token_expire must be positive")
	}

	switch c.Revocation.Backend {
	case RevocationBackendMemory, RevocationBackendRedis, RevocationBackendPostgres:
	default:
		return fmt.Errorf(
			"revocation.backend must be %q, %q or %q, got %q",
			RevocationBackendMemory,
			RevocationBackendRedis,
			RevocationBackendPostgres,
			c.Revocation.Backend,
		)
	}

	if _, err := time.LoadLocation(c.Reports.Timezone); err != nil {
		return fmt.Errorf("reports.timezone: %w", err)
	}

	if len(c.Reports.Datasets) == 0 {
		return fmt.Errorf("reports.datasets must not be empty")
	}

	if c.Bootstrap.MasterAdmin.Email != "" && c.Bootstrap.MasterAdmin.Password == "" {
		return fmt.Errorf("MASTER_ADMIN_PASSWORD is required when MASTER_ADMIN_EMAIL is set")
	}

	if c.CORS.AllowCredentials {
		for _, origin := range c.CORS.AllowedOrigins {
			if origin == "*" {
				return fmt.Errorf(
					"CORS wildcard '*' cannot be used with AllowCredentials",
				)
			}
		}
	}

	if c.App.Environment == "production" {
		if c.Otel.Enabled && c.Otel.Insecure {
			return fmt.Errorf("OTEL_INSECURE must be false in production")
		}
		if c.Revocation.Backend == RevocationBackendMemory {
			return fmt.Errorf("revocation.backend %q is not shared across instances; use %q in production",
				RevocationBackendMemory, RevocationBackendRedis)
		}
	}

	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server.read_timeout must be positive")
	}

	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server.write_timeout must be positive")
	}

	return nil
}

func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

func (s *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}
