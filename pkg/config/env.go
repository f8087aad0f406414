package config

// Tags on the config structs carry the full variable names, so no prefix is
// applied at processing time.
const EnvPrefix = ""

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DBDriverPostgres = "postgres"
	DBDriverSQLite   = "sqlite"
	DefaultSQLiteDSN = "file:placemates.db?_foreign_keys=on"
)

const (
	EnvAppEnv   = "PLACEMATES_APP_ENV"
	EnvPort     = "PLACEMATES_APP_PORT"
	EnvLogLevel = "PLACEMATES_LOG_LEVEL"

	EnvDBDSN    = "PLACEMATES_DB_DSN"
	EnvDBDriver = "PLACEMATES_DB_DRIVER"
	EnvDBHost   = "PLACEMATES_DB_HOST"
	EnvDBUser   = "PLACEMATES_DB_USER"
	EnvDBName   = "PLACEMATES_DB_NAME"

	EnvRedisURL = "PLACEMATES_REDIS_URL"

	EnvIdentitySecret = "PLACEMATES_IDENTITY_JWT_SECRET"
	EnvIdentityIssuer = "PLACEMATES_IDENTITY_JWT_ISSUER"

	EnvGCPProjectID  = "PLACEMATES_GCP_PROJECT_ID"
	EnvGCSBucket     = "PLACEMATES_GCS_BUCKET_NAME"
	EnvGCSPublicBase = "PLACEMATES_GCS_PUBLIC_BASE_URL"

	EnvPubSubPlacesTopic = "PLACEMATES_PUBSUB_PLACES_TOPIC"
	EnvPubSubPurgeSub    = "PLACEMATES_PUBSUB_PURGE_SUBSCRIPTION"

	EnvEngineFanOutLimit = "PLACEMATES_ENGINE_FANOUT_LIMIT"
	EnvEngineMaxImageMB  = "PLACEMATES_ENGINE_MAX_IMAGE_MB"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
