package config

const (
	EnvPrefix = "CARTSYNC"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DBDriverPostgres = "postgres"
	DBDriverSQLite   = "sqlite"

	CartBackendRedis  = "redis"
	CartBackendSQL    = "sql"
	CartBackendMemory = "memory"

	EnvAppEnv       = "CARTSYNC_APP_ENV"
	EnvPort         = "CARTSYNC_APP_PORT"
	EnvDBDSN        = "CARTSYNC_DB_DSN"
	EnvDBDriver     = "CARTSYNC_DB_DRIVER"
	EnvRedisURL     = "CARTSYNC_REDIS_URL"
	EnvRedisAddr    = "CARTSYNC_REDIS_ADDR"
	EnvCartBackend  = "CARTSYNC_CART_BACKEND"
	EnvTaxRate      = "CARTSYNC_TAX_RATE"
	EnvOrdersAPIURL = "CARTSYNC_ORDERS_API_URL"
)
