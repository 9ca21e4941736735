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
	FeatureFlags FeatureFlagsConfig
	Import       ImportConfig
	Canvas       CanvasConfig
	Assets       AssetsConfig
	GCP          GCPConfig
	Payments     PaymentsConfig
	Cron         CronConfig
	RateLimit    RateLimitConfig
	Metrics      MetricsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Assets.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string   `envconfig:"DESIGNVAULT_APP_ENV" required:"true"`
	Port         string   `envconfig:"DESIGNVAULT_APP_PORT" required:"true"`
	LogLevel     string   `envconfig:"DESIGNVAULT_LOG_LEVEL" default:"info"`
	LogWarnStack bool     `envconfig:"DESIGNVAULT_LOG_WARN_STACK" default:"false"`
	CORSOrigins  []string `envconfig:"DESIGNVAULT_CORS_ORIGINS" default:"http://localhost:3000,http://localhost:5173"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"DESIGNVAULT_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"DESIGNVAULT_DB_DSN"`
	Driver string `envconfig:"DESIGNVAULT_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"DESIGNVAULT_DB_HOST"`
	LegacyPort     int    `envconfig:"DESIGNVAULT_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"DESIGNVAULT_DB_USER"`
	LegacyPassword string `envconfig:"DESIGNVAULT_DB_PASSWORD"`
	LegacyName     string `envconfig:"DESIGNVAULT_DB_NAME"`
	LegacySSLMode  string `envconfig:"DESIGNVAULT_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"DESIGNVAULT_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"DESIGNVAULT_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"DESIGNVAULT_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"DESIGNVAULT_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

// IsSQLite reports whether the configured driver is the embedded sqlite driver.
func (db DBConfig) IsSQLite() bool {
	return strings.EqualFold(strings.TrimSpace(db.Driver), DBDriverSQLite)
}

type RedisConfig struct {
	URL          string        `envconfig:"DESIGNVAULT_REDIS_URL" required:"true"`
	Address      string        `envconfig:"DESIGNVAULT_REDIS_ADDR"`
	Password     string        `envconfig:"DESIGNVAULT_REDIS_PASSWORD"`
	DB           int           `envconfig:"DESIGNVAULT_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"DESIGNVAULT_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"DESIGNVAULT_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"DESIGNVAULT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"DESIGNVAULT_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"DESIGNVAULT_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// JWTConfig describes how bearer tokens minted by the auth provider are verified.
type JWTConfig struct {
	Secret            string `envconfig:"DESIGNVAULT_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"DESIGNVAULT_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"DESIGNVAULT_JWT_EXPIRATION_MINUTES" required:"true"`
}

// AccessTTL returns the lifetime of an access token.
func (j JWTConfig) AccessTTL() time.Duration {
	if j.ExpirationMinutes <= 0 {
		return 0
	}
	return time.Duration(j.ExpirationMinutes) * time.Minute
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"DESIGNVAULT_AUTO_MIGRATE" default:"false"`
}

// ImportConfig tunes the CSV catalog import pipeline.
type ImportConfig struct {
	ChunkSize     int           `envconfig:"DESIGNVAULT_IMPORT_CHUNK_SIZE" default:"2000"`
	SubBatchSize  int           `envconfig:"DESIGNVAULT_IMPORT_SUB_BATCH_SIZE" default:"500"`
	MaxUploadMB   int           `envconfig:"DESIGNVAULT_IMPORT_MAX_UPLOAD_MB" default:"100"`
	JobTTL        time.Duration `envconfig:"DESIGNVAULT_IMPORT_JOB_TTL" default:"720h"`
	ActiveJobIdle time.Duration `envconfig:"DESIGNVAULT_IMPORT_ACTIVE_JOB_IDLE" default:"6h"`
}

// MaxUploadBytes converts the configured upload ceiling to bytes.
func (i ImportConfig) MaxUploadBytes() int64 {
	if i.MaxUploadMB <= 0 {
		return 0
	}
	return int64(i.MaxUploadMB) << 20
}

// CanvasConfig tunes the design preview surfaces.
type CanvasConfig struct {
	PreviewBox       float64       `envconfig:"DESIGNVAULT_CANVAS_PREVIEW_BOX" default:"250"`
	MinObjectSize    float64       `envconfig:"DESIGNVAULT_CANVAS_MIN_OBJECT_SIZE" default:"50"`
	MaxBackgroundMB  int           `envconfig:"DESIGNVAULT_CANVAS_MAX_BACKGROUND_MB" default:"5"`
	WebcamWidth      int           `envconfig:"DESIGNVAULT_CANVAS_WEBCAM_WIDTH" default:"1920"`
	WebcamHeight     int           `envconfig:"DESIGNVAULT_CANVAS_WEBCAM_HEIGHT" default:"1080"`
	FrameRate        int           `envconfig:"DESIGNVAULT_CANVAS_FRAME_RATE" default:"30"`
	FallbackColor    string        `envconfig:"DESIGNVAULT_CANVAS_FALLBACK_COLOR" default:"#f9fafb"`
	SessionIdleTTL   time.Duration `envconfig:"DESIGNVAULT_CANVAS_SESSION_IDLE_TTL" default:"30m"`
	MaxSurfaceWidth  int           `envconfig:"DESIGNVAULT_CANVAS_MAX_SURFACE_WIDTH" default:"4096"`
	MaxSurfaceHeight int           `envconfig:"DESIGNVAULT_CANVAS_MAX_SURFACE_HEIGHT" default:"4096"`
	SessionsPerUser  int           `envconfig:"DESIGNVAULT_CANVAS_SESSIONS_PER_USER" default:"4"`
}

// MaxBackgroundBytes converts the background image ceiling to bytes.
func (c CanvasConfig) MaxBackgroundBytes() int64 {
	if c.MaxBackgroundMB <= 0 {
		return 0
	}
	return int64(c.MaxBackgroundMB) << 20
}

// AssetsConfig selects where design images and worksheets are read from.
type AssetsConfig struct {
	Backend         string        `envconfig:"DESIGNVAULT_ASSETS_BACKEND" default:"s3"`
	Bucket          string        `envconfig:"DESIGNVAULT_ASSETS_BUCKET"`
	Region          string        `envconfig:"DESIGNVAULT_ASSETS_REGION" default:"us-east-1"`
	Endpoint        string        `envconfig:"DESIGNVAULT_ASSETS_ENDPOINT"`
	AccessKeyID     string        `envconfig:"DESIGNVAULT_ASSETS_ACCESS_KEY_ID"`
	SecretAccessKey string        `envconfig:"DESIGNVAULT_ASSETS_SECRET_ACCESS_KEY"`
	UsePathStyle    bool          `envconfig:"DESIGNVAULT_ASSETS_USE_PATH_STYLE" default:"false"`
	BaseURL         string        `envconfig:"DESIGNVAULT_ASSETS_BASE_URL"`
	FetchTimeout    time.Duration `envconfig:"DESIGNVAULT_ASSETS_FETCH_TIMEOUT" default:"15s"`
}

func (a AssetsConfig) validate() error {
	switch strings.ToLower(strings.TrimSpace(a.Backend)) {
	case AssetsBackendS3, AssetsBackendGCS:
		if strings.TrimSpace(a.Bucket) == "" {
			return fmt.Errorf("%s is required for the %s assets backend", EnvAssetsBucket, a.Backend)
		}
	case AssetsBackendHTTP:
		if strings.TrimSpace(a.BaseURL) == "" {
			return fmt.Errorf("%s is required for the http assets backend", EnvAssetsBaseURL)
		}
	default:
		return fmt.Errorf("unsupported assets backend %q", a.Backend)
	}
	return nil
}

type GCPConfig struct {
	ProjectID              string `envconfig:"DESIGNVAULT_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"DESIGNVAULT_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"DESIGNVAULT_GOOGLE_APPLICATION_CREDENTIALS"`
}

// PaymentsConfig carries the hosted checkout credentials.
type PaymentsConfig struct {
	KeyID       string `envconfig:"DESIGNVAULT_PAYMENTS_KEY_ID"`
	KeySecret   string `envconfig:"DESIGNVAULT_PAYMENTS_KEY_SECRET"`
	Currency    string `envconfig:"DESIGNVAULT_PAYMENTS_CURRENCY" default:"INR"`
	CompanyName string `envconfig:"DESIGNVAULT_PAYMENTS_COMPANY_NAME" default:"Design Platform"`
}

// Enabled reports whether checkout can hand off to the gateway.
func (p PaymentsConfig) Enabled() bool {
	return strings.TrimSpace(p.KeyID) != "" && strings.TrimSpace(p.KeySecret) != ""
}

// CronConfig sets the cron worker tick and per-job cadence.
type CronConfig struct {
	Tick                    time.Duration `envconfig:"DESIGNVAULT_CRON_TICK" default:"1m"`
	ImportRetentionEvery    time.Duration `envconfig:"DESIGNVAULT_CRON_IMPORT_RETENTION_EVERY" default:"24h"`
	SubscriptionExpiryEvery time.Duration `envconfig:"DESIGNVAULT_CRON_SUBSCRIPTION_EXPIRY_EVERY" default:"1h"`
}

// RateLimitConfig throttles uploads and webcam frame pushes.
type RateLimitConfig struct {
	UploadWindow    time.Duration `envconfig:"DESIGNVAULT_RATE_LIMIT_UPLOAD_WINDOW" default:"1m"`
	UploadUserLimit int           `envconfig:"DESIGNVAULT_RATE_LIMIT_UPLOAD_USER" default:"20"`
	UploadIPLimit   int           `envconfig:"DESIGNVAULT_RATE_LIMIT_UPLOAD_IP" default:"60"`
	FramesPerSecond int64         `envconfig:"DESIGNVAULT_RATE_LIMIT_FRAMES_PER_SECOND" default:"60"`
}

type MetricsConfig struct {
	Enabled bool `envconfig:"DESIGNVAULT_METRICS_ENABLED" default:"true"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}
	if db.IsSQLite() {
		return fmt.Errorf("%s is required for the sqlite driver", EnvDBDSN)
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
