package config

const EnvPrefix = "STOREFRONT"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	GatewayProviderRazorpay = "razorpay"
	GatewayProviderStripe   = "stripe"
)

const (
	EnvAppEnv          = "STOREFRONT_APP_ENV"
	EnvPort            = "STOREFRONT_APP_PORT"
	EnvDBDSN           = "STOREFRONT_DB_DSN"
	EnvDBHost          = "STOREFRONT_DB_HOST"
	EnvDBUser          = "STOREFRONT_DB_USER"
	EnvDBName          = "STOREFRONT_DB_NAME"
	EnvUseSQLite       = "STOREFRONT_USE_SQLITE"
	EnvRedisURL        = "STOREFRONT_REDIS_URL"
	EnvJWTSecret       = "STOREFRONT_JWT_SECRET"
	EnvJWTIssuer       = "STOREFRONT_JWT_ISSUER"
	EnvGatewayProvider = "STOREFRONT_GATEWAY_PROVIDER"
	EnvCODCeiling      = "STOREFRONT_CHECKOUT_COD_CEILING"
	EnvFreeShipping    = "STOREFRONT_CHECKOUT_FREE_SHIPPING_THRESHOLD"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
