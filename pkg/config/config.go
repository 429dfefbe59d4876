package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Downstream   DownstreamConfig
	Orders       OrdersConfig
	Inventory    InventoryConfig
	FeatureFlags FeatureFlagsConfig
	Eventing     EventingConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	Mail         MailConfig
	Cron         CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if !IsValidServiceKind(cfg.Service.Kind) {
		return nil, fmt.Errorf("%s must be one of %s", EnvServiceKind, strings.Join(serviceKinds, ", "))
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"WAREHOUSE_APP_ENV" required:"true"`
	Port         string `envconfig:"WAREHOUSE_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"WAREHOUSE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"WAREHOUSE_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// ServiceConfig selects which warehouse role the process serves.
type ServiceConfig struct {
	Kind   string `envconfig:"WAREHOUSE_SERVICE_KIND" default:"inventory"`
	NodeID int64  `envconfig:"WAREHOUSE_NODE_ID" default:"1"`
}

type DBConfig struct {
	DSN    string `envconfig:"WAREHOUSE_DB_DSN"`
	Driver string `envconfig:"WAREHOUSE_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"WAREHOUSE_DB_HOST"`
	LegacyPort     int    `envconfig:"WAREHOUSE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"WAREHOUSE_DB_USER"`
	LegacyPassword string `envconfig:"WAREHOUSE_DB_PASSWORD"`
	LegacyName     string `envconfig:"WAREHOUSE_DB_NAME"`
	LegacySSLMode  string `envconfig:"WAREHOUSE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"WAREHOUSE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"WAREHOUSE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"WAREHOUSE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"WAREHOUSE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"WAREHOUSE_REDIS_URL"`
	Address      string        `envconfig:"WAREHOUSE_REDIS_ADDR"`
	Password     string        `envconfig:"WAREHOUSE_REDIS_PASSWORD"`
	DB           int           `envconfig:"WAREHOUSE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"WAREHOUSE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"WAREHOUSE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"WAREHOUSE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"WAREHOUSE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"WAREHOUSE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// JWTConfig holds the shared secret used for service-to-service tokens.
type JWTConfig struct {
	Secret            string `envconfig:"WAREHOUSE_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"WAREHOUSE_JWT_ISSUER" default:"warehouse-flow"`
	ExpirationMinutes int    `envconfig:"WAREHOUSE_JWT_EXPIRATION_MINUTES" default:"5"`
}

// TTL returns the token lifetime configured in minutes.
func (j JWTConfig) TTL() time.Duration {
	if j.ExpirationMinutes <= 0 {
		return 0
	}
	return time.Duration(j.ExpirationMinutes) * time.Minute
}

// DownstreamConfig describes how a service reaches its peers.
type DownstreamConfig struct {
	InventoryURL   string        `envconfig:"WAREHOUSE_INVENTORY_SERVICE_URL" default:"http://inventory-service:8080"`
	OrdersURL      string        `envconfig:"WAREHOUSE_ORDERS_SERVICE_URL" default:"http://orders-service:8080"`
	QCURL          string        `envconfig:"WAREHOUSE_QC_SERVICE_URL" default:"http://qc-service:8080"`
	RequestTimeout time.Duration `envconfig:"WAREHOUSE_DOWNSTREAM_TIMEOUT" default:"10s"`
	MaxRetries     uint64        `envconfig:"WAREHOUSE_DOWNSTREAM_MAX_RETRIES" default:"3"`
	InitialBackoff time.Duration `envconfig:"WAREHOUSE_DOWNSTREAM_INITIAL_BACKOFF" default:"200ms"`
	MaxBackoff     time.Duration `envconfig:"WAREHOUSE_DOWNSTREAM_MAX_BACKOFF" default:"2s"`
}

type OrdersConfig struct {
	NumberPrefix        string `envconfig:"WAREHOUSE_ORDER_NUMBER_PREFIX" default:"ORD"`
	NumberSequenceWidth int    `envconfig:"WAREHOUSE_ORDER_NUMBER_WIDTH" default:"4"`
}

type InventoryConfig struct {
	ExportSheetName string `envconfig:"WAREHOUSE_INVENTORY_EXPORT_SHEET" default:"Stock"`
}

type FeatureFlagsConfig struct {
	AutoMigrate              bool `envconfig:"WAREHOUSE_AUTO_MIGRATE" default:"false"`
	CheckInventoryOnCreate   bool `envconfig:"WAREHOUSE_CHECK_INVENTORY_ON_CREATE" default:"true"`
	RequireServiceAuthOnRead bool `envconfig:"WAREHOUSE_REQUIRE_SERVICE_AUTH_ON_READ" default:"false"`
}

type EventingConfig struct {
	OutboxIdempotencyTTL time.Duration `envconfig:"WAREHOUSE_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
}

type GCPConfig struct {
	ProjectID       string `envconfig:"WAREHOUSE_GCP_PROJECT_ID"`
	CredentialsJSON string `envconfig:"WAREHOUSE_GCP_CREDENTIALS_JSON"`
}

type PubSubConfig struct {
	EventsTopic          string `envconfig:"WAREHOUSE_PUBSUB_EVENTS_TOPIC" default:"warehouse-events"`
	QCAlertsSubscription string `envconfig:"WAREHOUSE_PUBSUB_QC_ALERTS_SUBSCRIPTION" default:"warehouse-qc-alerts"`
	LowStockSubscription string `envconfig:"WAREHOUSE_PUBSUB_LOW_STOCK_SUBSCRIPTION" default:"warehouse-low-stock"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"WAREHOUSE_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"WAREHOUSE_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"WAREHOUSE_OUTBOX_MAX_ATTEMPTS" default:"10"`
	RetentionDays  int `envconfig:"WAREHOUSE_OUTBOX_RETENTION_DAYS" default:"30"`
}

// MailConfig configures the SMTP relay used for warehouse alerts.
type MailConfig struct {
	SMTPHost     string `envconfig:"WAREHOUSE_SMTP_HOST"`
	SMTPPort     int    `envconfig:"WAREHOUSE_SMTP_PORT" default:"587"`
	SMTPUser     string `envconfig:"WAREHOUSE_SMTP_USER"`
	SMTPPassword string `envconfig:"WAREHOUSE_SMTP_PASSWORD"`
	From         string `envconfig:"WAREHOUSE_MAIL_FROM" default:"warehouse@localhost"`
	Recipients   string `envconfig:"WAREHOUSE_MAIL_RECIPIENTS"`
}

// Enabled reports whether enough SMTP settings exist to send mail.
func (m MailConfig) Enabled() bool {
	return strings.TrimSpace(m.SMTPHost) != "" && len(m.RecipientList()) > 0
}

// RecipientList splits the comma separated recipients.
func (m MailConfig) RecipientList() []string {
	out := []string{}
	for _, part := range strings.Split(m.Recipients, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

type CronConfig struct {
	Interval time.Duration `envconfig:"WAREHOUSE_CRON_INTERVAL" default:"1h"`
	LockTTL  time.Duration `envconfig:"WAREHOUSE_CRON_LOCK_TTL" default:"55m"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	switch strings.ToLower(db.Driver) {
	case DriverMySQL:
		// go-sql-driver DSN form: user:pass@tcp(host:port)/name?parseTime=true
		auth := db.LegacyUser
		if db.LegacyPassword != "" {
			auth = auth + ":" + db.LegacyPassword
		}
		db.DSN = fmt.Sprintf("%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4&loc=UTC", auth, db.LegacyHost, db.LegacyPort, db.LegacyName)
		return nil
	case DriverSQLite:
		db.DSN = db.LegacyName
		return nil
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
