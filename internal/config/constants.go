package config

import "time"

const (
	// DefaultConfigPath is used when --config is not provided.
	DefaultConfigPath = "config.yml"
	defaultPort       = 3001
	defaultEnv        = "development"

	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	ArchiveDriverLocal = "local"
	ArchiveDriverS3    = "s3"

	defaultDBDriver   = DriverMySQL
	defaultDBHost     = "127.0.0.1"
	defaultMySQLPort  = 3306
	defaultPGPort     = 5432
	defaultDBUser     = "root"
	defaultDBPassword = "password"
	defaultDBName     = "banes_lab"
	defaultDBCharset  = "utf8mb4"
	defaultDBLoc      = "Local"
	defaultPGSSLMode  = "disable"
	defaultSQLiteFile = "relay.db"

	defaultRedisPort = 6379

	defaultSessionTTL      = time.Hour
	defaultHistoryLimit    = 20
	defaultAuthTimeout     = 10 * time.Second
	defaultTimestampLayout = "1/2/2006, 3:04:05 PM"
	defaultReportTitle     = "📦 SMART Disk Report"
	defaultSendRate        = 5.0
	defaultSendBurst       = 5

	defaultReaperInterval      = time.Hour
	defaultReaperInactiveAfter = 14 * 24 * time.Hour
	defaultReaperArchiveLimit  = 100

	defaultLogsSubdir     = "logs"
	defaultArchivesSubdir = "history"
)
