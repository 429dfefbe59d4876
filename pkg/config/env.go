package config

import "strings"

const EnvPrefix = "WAREHOUSE"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	ServiceKindInventory = "inventory"
	ServiceKindOrders    = "orders"
	ServiceKindQC        = "qc"
)

var serviceKinds = []string{ServiceKindInventory, ServiceKindOrders, ServiceKindQC}

// IsValidServiceKind reports whether kind names one of the warehouse roles.
func IsValidServiceKind(kind string) bool {
	for _, candidate := range serviceKinds {
		if strings.EqualFold(candidate, kind) {
			return true
		}
	}
	return false
}

const (
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
	DriverSQLite   = "sqlite"
)

const (
	EnvAppEnv       = "WAREHOUSE_APP_ENV"
	EnvPort         = "WAREHOUSE_APP_PORT"
	EnvServiceKind  = "WAREHOUSE_SERVICE_KIND"
	EnvDBDSN        = "WAREHOUSE_DB_DSN"
	EnvDBDriver     = "WAREHOUSE_DB_DRIVER"
	EnvDBHost       = "WAREHOUSE_DB_HOST"
	EnvDBPort       = "WAREHOUSE_DB_PORT"
	EnvDBUser       = "WAREHOUSE_DB_USER"
	EnvDBPassword   = "WAREHOUSE_DB_PASSWORD"
	EnvDBName       = "WAREHOUSE_DB_NAME"
	EnvRedisURL     = "WAREHOUSE_REDIS_URL"
	EnvJWTSecret    = "WAREHOUSE_JWT_SECRET"
	EnvJWTIssuer    = "WAREHOUSE_JWT_ISSUER"
	EnvDownTimeout  = "WAREHOUSE_DOWNSTREAM_TIMEOUT"
	EnvInventoryURL = "WAREHOUSE_INVENTORY_SERVICE_URL"
	EnvSMTPHost     = "WAREHOUSE_SMTP_HOST"
	EnvMailTo       = "WAREHOUSE_MAIL_RECIPIENTS"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
