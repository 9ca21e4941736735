package config

const EnvPrefix = "DESIGNVAULT"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	DBDriverPostgres = "postgres"
	DBDriverSQLite   = "sqlite"
)

const (
	AssetsBackendS3   = "s3"
	AssetsBackendGCS  = "gcs"
	AssetsBackendHTTP = "http"
)

const (
	EnvAppEnv            = "DESIGNVAULT_APP_ENV"
	EnvPort              = "DESIGNVAULT_APP_PORT"
	EnvDBDSN             = "DESIGNVAULT_DB_DSN"
	EnvDBDriver          = "DESIGNVAULT_DB_DRIVER"
	EnvDBHost            = "DESIGNVAULT_DB_HOST"
	EnvDBUser            = "DESIGNVAULT_DB_USER"
	EnvDBName            = "DESIGNVAULT_DB_NAME"
	EnvDBPassword        = "DESIGNVAULT_DB_PASSWORD"
	EnvRedisURL          = "DESIGNVAULT_REDIS_URL"
	EnvJWTSecret         = "DESIGNVAULT_JWT_SECRET"
	EnvJWTIssuer         = "DESIGNVAULT_JWT_ISSUER"
	EnvJWTExpMins        = "DESIGNVAULT_JWT_EXPIRATION_MINUTES"
	EnvChunkSize         = "DESIGNVAULT_IMPORT_CHUNK_SIZE"
	EnvAssetsBackend     = "DESIGNVAULT_ASSETS_BACKEND"
	EnvAssetsBucket      = "DESIGNVAULT_ASSETS_BUCKET"
	EnvAssetsBaseURL     = "DESIGNVAULT_ASSETS_BASE_URL"
	EnvPaymentsKeyID     = "DESIGNVAULT_PAYMENTS_KEY_ID"
	EnvPaymentsKeySecret = "DESIGNVAULT_PAYMENTS_KEY_SECRET"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
