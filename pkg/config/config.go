package config

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"go.uber.org/multierr"
)

type Config struct {
	App           AppConfig
	Service       ServiceConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	AuthRateLimit AuthRateLimitConfig
	FeatureFlags  FeatureFlagsConfig
	Eventing      EventingConfig
	GCP           GCPConfig
	GCS           GCSConfig
	Uploads       UploadsConfig
	PubSub        PubSubConfig
	Sendgrid      SendgridConfig
	Email         EmailConfig
	Outbox        OutboxConfig
	Maintenance   MaintenanceConfig
	CORS          CORSConfig
}

// Load reads the environment and reports every invalid setting at once.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	var errs error
	errs = multierr.Append(errs, cfg.DB.ensureDSN())
	if _, err := cfg.App.Location(); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("invalid %s: %w", EnvStoreTimeZone, err))
	}
	if cfg.Outbox.MaxAttempts < 1 {
		errs = multierr.Append(errs, fmt.Errorf("outbox max attempts must be at least 1, got %d", cfg.Outbox.MaxAttempts))
	}
	if errs != nil {
		return nil, errs
	}
	return &cfg, nil
}

type AppConfig struct {
	Env           string `envconfig:"GIFTSHOP_APP_ENV" required:"true"`
	Port          string `envconfig:"GIFTSHOP_APP_PORT" required:"true"`
	LogLevel      string `envconfig:"GIFTSHOP_LOG_LEVEL" default:"info"`
	LogWarnStack  bool   `envconfig:"GIFTSHOP_LOG_WARN_STACK" default:"false"`
	StoreTimeZone string `envconfig:"GIFTSHOP_STORE_TIME_ZONE" default:"Africa/Cairo"`
	AdminEmail    string `envconfig:"GIFTSHOP_ADMIN_EMAIL"`
	PublicBaseURL string `envconfig:"GIFTSHOP_PUBLIC_BASE_URL" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd) || strings.EqualFold(a.Env, "production")
}

// Location resolves the store time zone used for calendar-date comparisons.
func (a AppConfig) Location() (*time.Location, error) {
	name := strings.TrimSpace(a.StoreTimeZone)
	if name == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(name)
}

type ServiceConfig struct {
	Kind string `envconfig:"GIFTSHOP_SERVICE_KIND" default:"api"`
	// MetricsAddr, when set, exposes /metrics from the background binaries.
	MetricsAddr string `envconfig:"GIFTSHOP_METRICS_ADDR"`
}

type DBConfig struct {
	DSN    string `envconfig:"GIFTSHOP_DB_DSN"`
	Driver string `envconfig:"GIFTSHOP_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"GIFTSHOP_DB_HOST"`
	Port     int    `envconfig:"GIFTSHOP_DB_PORT" default:"5432"`
	User     string `envconfig:"GIFTSHOP_DB_USER"`
	Password string `envconfig:"GIFTSHOP_DB_PASSWORD"`
	Name     string `envconfig:"GIFTSHOP_DB_NAME"`
	SSLMode  string `envconfig:"GIFTSHOP_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"GIFTSHOP_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"GIFTSHOP_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"GIFTSHOP_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"GIFTSHOP_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	SlowQuery       time.Duration `envconfig:"GIFTSHOP_DB_SLOW_QUERY" default:"500ms"`
}

type RedisConfig struct {
	URL              string        `envconfig:"GIFTSHOP_REDIS_URL" required:"true"`
	Address          string        `envconfig:"GIFTSHOP_REDIS_ADDR"`
	Password         string        `envconfig:"GIFTSHOP_REDIS_PASSWORD"`
	DB               int           `envconfig:"GIFTSHOP_REDIS_DB" default:"0"`
	PoolSize         int           `envconfig:"GIFTSHOP_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns     int           `envconfig:"GIFTSHOP_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout      time.Duration `envconfig:"GIFTSHOP_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout      time.Duration `envconfig:"GIFTSHOP_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout     time.Duration `envconfig:"GIFTSHOP_REDIS_WRITE_TIMEOUT" default:"5s"`
	SettingsCacheTTL time.Duration `envconfig:"GIFTSHOP_SETTINGS_CACHE_TTL" default:"1h"`
}

type JWTConfig struct {
	Secret                 string `envconfig:"GIFTSHOP_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"GIFTSHOP_JWT_ISSUER" default:"stmary-giftshop"`
	ExpirationMinutes      int    `envconfig:"GIFTSHOP_JWT_EXPIRATION_MINUTES" default:"60"`
	RefreshTokenTTLMinutes int    `envconfig:"GIFTSHOP_REFRESH_TOKEN_TTL_MINUTES" default:"43200"`
}

// RefreshTokenTTL returns the refresh token TTL configured in minutes.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTokenTTLMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int           `envconfig:"GIFTSHOP_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int           `envconfig:"GIFTSHOP_ARGON_TIME" default:"3"`
	ArgonParallelism int           `envconfig:"GIFTSHOP_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int           `envconfig:"GIFTSHOP_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int           `envconfig:"GIFTSHOP_ARGON_KEY_LEN" default:"32"`
	ResetTokenTTL    time.Duration `envconfig:"GIFTSHOP_PASSWORD_RESET_TTL" default:"30m"`
}

type AuthRateLimitConfig struct {
	LoginWindow    time.Duration `envconfig:"GIFTSHOP_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginIPLimit   int           `envconfig:"GIFTSHOP_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	RegisterWindow time.Duration `envconfig:"GIFTSHOP_AUTH_RATE_LIMIT_REGISTER_WINDOW" default:"5m"`
	RegisterLimit  int           `envconfig:"GIFTSHOP_AUTH_RATE_LIMIT_REGISTER_IP_LIMIT" default:"10"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"GIFTSHOP_AUTO_MIGRATE" default:"false"`
	LogEmails   bool `envconfig:"GIFTSHOP_LOG_EMAILS" default:"false"`
}

type EventingConfig struct {
	OutboxIdempotencyTTL time.Duration `envconfig:"GIFTSHOP_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"GIFTSHOP_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"GIFTSHOP_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"GIFTSHOP_GOOGLE_APPLICATION_CREDENTIALS"`
}

type GCSConfig struct {
	BucketName    string `envconfig:"GIFTSHOP_GCS_BUCKET_NAME" required:"true"`
	PublicBaseURL string `envconfig:"GIFTSHOP_GCS_PUBLIC_BASE_URL" default:"https://storage.googleapis.com"`
}

type UploadsConfig struct {
	MaxProofBytes int64 `envconfig:"GIFTSHOP_MAX_PROOF_BYTES" default:"10485760"`
	MaxImageBytes int64 `envconfig:"GIFTSHOP_MAX_IMAGE_BYTES" default:"5242880"`
}

type PubSubConfig struct {
	OrdersTopic        string `envconfig:"GIFTSHOP_PUBSUB_ORDERS_TOPIC" default:"giftshop-order-events"`
	OrdersSubscription string `envconfig:"GIFTSHOP_PUBSUB_ORDERS_SUBSCRIPTION" default:"giftshop-order-emails"`
}

type SendgridConfig struct {
	APIKey      string `envconfig:"GIFTSHOP_SENDGRID_API_KEY"`
	DefaultFrom string `envconfig:"GIFTSHOP_SENDGRID_FROM_EMAIL" default:"no-reply@stmarygiftshop.com"`
	FromName    string `envconfig:"GIFTSHOP_SENDGRID_FROM_NAME" default:"St. Mary Library Gift Shop"`
}

type EmailConfig struct {
	Workers    int `envconfig:"GIFTSHOP_EMAIL_WORKERS" default:"4"`
	BufferSize int `envconfig:"GIFTSHOP_EMAIL_BUFFER" default:"256"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"GIFTSHOP_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"GIFTSHOP_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"GIFTSHOP_OUTBOX_MAX_ATTEMPTS" default:"10"`

	PublishTimeout time.Duration `envconfig:"GIFTSHOP_OUTBOX_PUBLISH_TIMEOUT" default:"15s"`
}

type MaintenanceConfig struct {
	Interval        time.Duration `envconfig:"GIFTSHOP_MAINTENANCE_INTERVAL" default:"15m"`
	OutboxRetention time.Duration `envconfig:"GIFTSHOP_OUTBOX_RETENTION" default:"720h"`
	DLQRetention    time.Duration `envconfig:"GIFTSHOP_OUTBOX_DLQ_RETENTION" default:"2160h"`
}

type CORSConfig struct {
	AllowedOrigins []string      `envconfig:"GIFTSHOP_CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`
	MaxAge         time.Duration `envconfig:"GIFTSHOP_CORS_MAX_AGE" default:"5m"`
}

// ensureDSN assembles a postgres URL from the discrete DB settings when no
// DSN is given.
func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}
	parts := map[string]string{EnvDBHost: db.Host, EnvDBUser: db.User, EnvDBName: db.Name}
	var missing []string
	for _, name := range dbPartEnvVars {
		if strings.TrimSpace(parts[name]) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("set %s or all of %s", EnvDBDSN, strings.Join(missing, ", "))
	}

	user := url.User(db.User)
	if db.Password != "" {
		user = url.UserPassword(db.User, db.Password)
	}
	dsn := url.URL{
		Scheme: "postgres",
		User:   user,
		Host:   net.JoinHostPort(db.Host, strconv.Itoa(db.Port)),
		Path:   db.Name,
	}
	if db.SSLMode != "" {
		dsn.RawQuery = url.Values{"sslmode": {db.SSLMode}}.Encode()
	}
	db.DSN = dsn.String()
	return nil
}
