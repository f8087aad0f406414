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
	Identity     IdentityConfig
	FeatureFlags FeatureFlagsConfig
	Eventing     EventingConfig
	GoogleMaps   GoogleMapsConfig
	GCP          GCPConfig
	GCS          GCSConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	Engine       EngineConfig
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
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"PLACEMATES_APP_ENV" required:"true"`
	Port         string `envconfig:"PLACEMATES_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"PLACEMATES_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"PLACEMATES_LOG_FORMAT" default:"json"`
	LogWarnStack bool   `envconfig:"PLACEMATES_LOG_WARN_STACK" default:"false"`
	// CORSOrigins is a comma separated allowlist; empty uses the dev defaults.
	CORSOrigins []string `envconfig:"PLACEMATES_CORS_ALLOWED_ORIGINS"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"PLACEMATES_SERVICE_KIND" default:"api"`
	// MetricsAddr exposes /metrics on background workers; empty disables it.
	MetricsAddr string `envconfig:"PLACEMATES_WORKER_METRICS_ADDR"`
}

type DBConfig struct {
	DSN    string `envconfig:"PLACEMATES_DB_DSN"`
	Driver string `envconfig:"PLACEMATES_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"PLACEMATES_DB_HOST"`
	LegacyPort     int    `envconfig:"PLACEMATES_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"PLACEMATES_DB_USER"`
	LegacyPassword string `envconfig:"PLACEMATES_DB_PASSWORD"`
	LegacyName     string `envconfig:"PLACEMATES_DB_NAME"`
	LegacySSLMode  string `envconfig:"PLACEMATES_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"PLACEMATES_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"PLACEMATES_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"PLACEMATES_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"PLACEMATES_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	SlowQuery time.Duration `envconfig:"PLACEMATES_DB_SLOW_QUERY" default:"200ms"`
}

// IsSQLite reports whether the store runs on the embedded sqlite driver.
func (db DBConfig) IsSQLite() bool {
	return strings.EqualFold(strings.TrimSpace(db.Driver), DBDriverSQLite)
}

type RedisConfig struct {
	URL          string        `envconfig:"PLACEMATES_REDIS_URL" required:"true"`
	Address      string        `envconfig:"PLACEMATES_REDIS_ADDR"`
	Password     string        `envconfig:"PLACEMATES_REDIS_PASSWORD"`
	DB           int           `envconfig:"PLACEMATES_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"PLACEMATES_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"PLACEMATES_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"PLACEMATES_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"PLACEMATES_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"PLACEMATES_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// IdentityConfig verifies bearer tokens minted by the upstream identity provider.
type IdentityConfig struct {
	Secret string        `envconfig:"PLACEMATES_IDENTITY_JWT_SECRET" required:"true"`
	Issuer string        `envconfig:"PLACEMATES_IDENTITY_JWT_ISSUER" required:"true"`
	Leeway time.Duration `envconfig:"PLACEMATES_IDENTITY_JWT_LEEWAY" default:"30s"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"PLACEMATES_AUTO_MIGRATE" default:"false"`
	Geocoding   bool `envconfig:"PLACEMATES_FEATURE_GEOCODING" default:"true"`
}

type EventingConfig struct {
	OutboxIdempotencyTTL time.Duration `envconfig:"PLACEMATES_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
}

type GoogleMapsConfig struct {
	APIKey string `envconfig:"PLACEMATES_GOOGLE_MAPS_API_KEY"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"PLACEMATES_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"PLACEMATES_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"PLACEMATES_GOOGLE_APPLICATION_CREDENTIALS"`
}

type GCSConfig struct {
	BucketName    string `envconfig:"PLACEMATES_GCS_BUCKET_NAME" required:"true"`
	PublicBaseURL string `envconfig:"PLACEMATES_GCS_PUBLIC_BASE_URL" default:"https://storage.googleapis.com"`
	APIBaseURL    string `envconfig:"PLACEMATES_GCS_API_BASE_URL" default:"https://storage.googleapis.com"`
}

type PubSubConfig struct {
	PlacesTopic       string `envconfig:"PLACEMATES_PUBSUB_PLACES_TOPIC" required:"true"`
	PurgeSubscription string `envconfig:"PLACEMATES_PUBSUB_PURGE_SUBSCRIPTION" required:"true"`
	// PurgeMaxOutstanding bounds place purges in flight per purge worker.
	PurgeMaxOutstanding int `envconfig:"PLACEMATES_PUBSUB_PURGE_MAX_OUTSTANDING" default:"10"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"PLACEMATES_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"PLACEMATES_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"PLACEMATES_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

// CronConfig drives the maintenance worker.
type CronConfig struct {
	Interval            time.Duration `envconfig:"PLACEMATES_CRON_INTERVAL" default:"24h"`
	OutboxRetentionDays int           `envconfig:"PLACEMATES_OUTBOX_RETENTION_DAYS" default:"30"`
	RetentionChunk      int           `envconfig:"PLACEMATES_CRON_RETENTION_CHUNK" default:"500"`
	DLQLookback         time.Duration `envconfig:"PLACEMATES_CRON_DLQ_LOOKBACK" default:"72h"`
}

// EngineConfig bounds the fan-out performed by the place engines.
type EngineConfig struct {
	FanOutLimit       int           `envconfig:"PLACEMATES_ENGINE_FANOUT_LIMIT" default:"8"`
	UploadConcurrency int           `envconfig:"PLACEMATES_ENGINE_UPLOAD_CONCURRENCY" default:"3"`
	MaxImageMB        int           `envconfig:"PLACEMATES_ENGINE_MAX_IMAGE_MB" default:"20"`
	FetchTimeout      time.Duration `envconfig:"PLACEMATES_ENGINE_FETCH_TIMEOUT" default:"30s"`
	// LocalImageRoot enables file:// image refs below this directory.
	LocalImageRoot string `envconfig:"PLACEMATES_ENGINE_LOCAL_IMAGE_ROOT"`
}

// MaxImageBytes converts MaxImageMB into a byte limit.
func (e EngineConfig) MaxImageBytes() int64 {
	if e.MaxImageMB <= 0 {
		return 0
	}
	return int64(e.MaxImageMB) << 20
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}
	if db.IsSQLite() {
		db.DSN = DefaultSQLiteDSN
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
