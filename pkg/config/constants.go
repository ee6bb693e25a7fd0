package config

// EnvPrefix is applied to every environment variable read by envconfig.
const EnvPrefix = "COACHHUB"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvDBDSN  = "COACHHUB_DB_DSN"
	EnvDBHost = "COACHHUB_DB_HOST"
	EnvDBUser = "COACHHUB_DB_USER"
	EnvDBName = "COACHHUB_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
