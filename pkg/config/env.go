package config

// EnvPrefix is passed to envconfig; every field carries its full name via tags.
const EnvPrefix = ""

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv        = "GIFTSHOP_APP_ENV"
	EnvPort          = "GIFTSHOP_APP_PORT"
	EnvStoreTimeZone = "GIFTSHOP_STORE_TIME_ZONE"
	EnvDBDSN         = "GIFTSHOP_DB_DSN"
	EnvDBHost        = "GIFTSHOP_DB_HOST"
	EnvDBUser        = "GIFTSHOP_DB_USER"
	EnvDBName        = "GIFTSHOP_DB_NAME"
	EnvRedisURL      = "GIFTSHOP_REDIS_URL"
	EnvJWTSecret     = "GIFTSHOP_JWT_SECRET"
	EnvGCSBucket     = "GIFTSHOP_GCS_BUCKET_NAME"
	EnvOrdersTopic   = "GIFTSHOP_PUBSUB_ORDERS_TOPIC"
	EnvCORSOrigins   = "GIFTSHOP_CORS_ALLOWED_ORIGINS"
)

var dbPartEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
