package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = ""

	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

type Config struct {
	App           AppConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	FeatureFlags  FeatureFlagsConfig
	AuthRateLimit AuthRateLimitConfig
	Stripe        StripeConfig
	MercadoPago   MercadoPagoConfig
	PubSub        PubSubConfig
	Outbox        OutboxConfig
	Cron          CronConfig
	GCP           GCPConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string   `envconfig:"MERCADO_APP_ENV" required:"true"`
	Port         string   `envconfig:"MERCADO_APP_PORT" default:"8080"`
	BaseURL      string   `envconfig:"MERCADO_APP_BASE_URL" default:"http://localhost:8080"`
	CORSOrigins  []string `envconfig:"MERCADO_CORS_ORIGINS" default:"http://localhost:3000"`
	LogLevel     string   `envconfig:"MERCADO_LOG_LEVEL" default:"info"`
	LogWarnStack bool     `envconfig:"MERCADO_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN string `envconfig:"MERCADO_DB_DSN"`

	Host     string `envconfig:"MERCADO_DB_HOST"`
	Port     int    `envconfig:"MERCADO_DB_PORT" default:"5432"`
	User     string `envconfig:"MERCADO_DB_USER"`
	Password string `envconfig:"MERCADO_DB_PASSWORD"`
	Name     string `envconfig:"MERCADO_DB_NAME"`
	SSLMode  string `envconfig:"MERCADO_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"MERCADO_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"MERCADO_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"MERCADO_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"MERCADO_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"MERCADO_REDIS_URL"`
	Address      string        `envconfig:"MERCADO_REDIS_ADDR"`
	Password     string        `envconfig:"MERCADO_REDIS_PASSWORD"`
	DB           int           `envconfig:"MERCADO_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"MERCADO_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"MERCADO_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"MERCADO_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"MERCADO_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"MERCADO_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret                 string `envconfig:"MERCADO_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"MERCADO_JWT_ISSUER" default:"mercado-backend"`
	ExpirationMinutes      int    `envconfig:"MERCADO_JWT_EXPIRATION_MINUTES" default:"60"`
	RefreshTokenTTLMinutes int    `envconfig:"MERCADO_REFRESH_TOKEN_TTL_MINUTES" default:"43200"`
}

// RefreshTokenTTL returns the refresh token TTL configured in minutes.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTokenTTLMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"MERCADO_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"MERCADO_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"MERCADO_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"MERCADO_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"MERCADO_ARGON_KEY_LEN" default:"32"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"MERCADO_AUTO_MIGRATE" default:"false"`
}

type StripeConfig struct {
	SecretKey     string `envconfig:"MERCADO_STRIPE_SECRET_KEY"`
	WebhookSecret string `envconfig:"MERCADO_STRIPE_WEBHOOK_SECRET"`
}

type MercadoPagoConfig struct {
	AccessToken string `envconfig:"MERCADO_MP_ACCESS_TOKEN"`
}

type PubSubConfig struct {
	OrdersTopic               string `envconfig:"MERCADO_PUBSUB_ORDERS_TOPIC" default:"mercado-order-events"`
	PaymentsTopic             string `envconfig:"MERCADO_PUBSUB_PAYMENTS_TOPIC" default:"mercado-payment-events"`
	NotificationsSubscription string `envconfig:"MERCADO_PUBSUB_NOTIFICATIONS_SUB" default:"mercado-notifications-sub"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"MERCADO_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"MERCADO_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"MERCADO_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type AuthRateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"MERCADO_AUTH_RL_LOGIN_WINDOW" default:"5m"`
	LoginIPLimit       int           `envconfig:"MERCADO_AUTH_RL_LOGIN_IP_LIMIT" default:"20"`
	LoginEmailLimit    int           `envconfig:"MERCADO_AUTH_RL_LOGIN_EMAIL_LIMIT" default:"5"`
	RegisterWindow     time.Duration `envconfig:"MERCADO_AUTH_RL_REGISTER_WINDOW" default:"1h"`
	RegisterIPLimit    int           `envconfig:"MERCADO_AUTH_RL_REGISTER_IP_LIMIT" default:"10"`
	RegisterEmailLimit int           `envconfig:"MERCADO_AUTH_RL_REGISTER_EMAIL_LIMIT" default:"3"`
}

type CronConfig struct {
	PendingOrderTTL time.Duration `envconfig:"MERCADO_CRON_PENDING_ORDER_TTL" default:"24h"`
	TickInterval    time.Duration `envconfig:"MERCADO_CRON_TICK_INTERVAL" default:"1m"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"MERCADO_GCP_PROJECT_ID"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	required := map[string]string{
		"MERCADO_DB_HOST": db.Host,
		"MERCADO_DB_USER": db.User,
		"MERCADO_DB_NAME": db.Name,
	}
	for _, key := range []string{"MERCADO_DB_HOST", "MERCADO_DB_USER", "MERCADO_DB_NAME"} {
		if required[key] == "" {
			missing = append(missing, key)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either MERCADO_DB_DSN or %s are required", strings.Join(missing, ", "))
	}

	userInfo := url.User(db.User)
	if db.Password != "" {
		userInfo = url.UserPassword(db.User, db.Password)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   db.Name,
	}

	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
