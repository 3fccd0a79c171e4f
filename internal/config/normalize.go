package config

import "strings"

func normalize(cfg *AppConfig) {
	cfg.Env = strings.ToLower(strings.TrimSpace(cfg.Env))
	if cfg.Env == "" {
		cfg.Env = defaultEnv
	}
	cfg.JWTSecret = strings.TrimSpace(cfg.JWTSecret)
	if cfg.SessionTTL == 0 {
		cfg.SessionTTL = defaultSessionTTL
	}

	origins := cfg.AllowedOrigins[:0]
	for _, o := range cfg.AllowedOrigins {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	cfg.AllowedOrigins = origins

	cfg.Database = normalizeDatabaseConfig(cfg.Database)
	cfg.Redis = normalizeRedisConfig(cfg.Redis)
	cfg.Discord = normalizeDiscordConfig(cfg.Discord)

	if cfg.Relay.AuthTimeout <= 0 {
		cfg.Relay.AuthTimeout = defaultAuthTimeout
	}
	if strings.TrimSpace(cfg.Relay.TimestampLayout) == "" {
		cfg.Relay.TimestampLayout = defaultTimestampLayout
	}
	if cfg.Reaper.ArchiveLimit <= 0 {
		cfg.Reaper.ArchiveLimit = defaultReaperArchiveLimit
	}

	cfg.Archive.Driver = strings.ToLower(strings.TrimSpace(cfg.Archive.Driver))
	if cfg.Archive.Driver == "" {
		cfg.Archive.Driver = ArchiveDriverLocal
	}
	cfg.Archive.S3.Bucket = strings.TrimSpace(cfg.Archive.S3.Bucket)
	cfg.Archive.S3.Region = strings.TrimSpace(cfg.Archive.S3.Region)
	cfg.Archive.S3.Endpoint = strings.TrimRight(strings.TrimSpace(cfg.Archive.S3.Endpoint), "/")
	cfg.Archive.S3.Prefix = strings.Trim(strings.TrimSpace(cfg.Archive.S3.Prefix), "/")
}

func normalizeDatabaseConfig(cfg DatabaseRuntimeConfig) DatabaseRuntimeConfig {
	cfg.Driver = strings.ToLower(strings.TrimSpace(cfg.Driver))
	cfg.DSN = strings.TrimSpace(cfg.DSN)
	cfg.Host = strings.TrimSpace(cfg.Host)
	cfg.User = strings.TrimSpace(cfg.User)
	cfg.Password = strings.TrimSpace(cfg.Password)
	cfg.Name = strings.TrimSpace(cfg.Name)
	cfg.Charset = strings.TrimSpace(cfg.Charset)
	cfg.Loc = strings.TrimSpace(cfg.Loc)
	cfg.SSLMode = strings.TrimSpace(cfg.SSLMode)

	switch cfg.Driver {
	case "", "mariadb":
		cfg.Driver = DriverMySQL
	case "postgresql", "pg":
		cfg.Driver = DriverPostgres
	case "sqlite3":
		cfg.Driver = DriverSQLite
	}
	if cfg.Host == "" {
		cfg.Host = defaultDBHost
	}
	if cfg.Port == 0 {
		switch cfg.Driver {
		case DriverPostgres:
			cfg.Port = defaultPGPort
		case DriverMySQL:
			cfg.Port = defaultMySQLPort
		}
	}
	if cfg.User == "" {
		cfg.User = defaultDBUser
	}
	if cfg.Name == "" {
		cfg.Name = defaultDBName
	}
	if cfg.Charset == "" {
		cfg.Charset = defaultDBCharset
	}
	if cfg.Loc == "" {
		cfg.Loc = defaultDBLoc
	}
	if cfg.SSLMode == "" {
		cfg.SSLMode = defaultPGSSLMode
	}
	if cfg.Params != nil {
		cfg.Params = copyStringMap(cfg.Params)
	}
	return cfg
}

func normalizeRedisConfig(cfg RedisRuntimeConfig) RedisRuntimeConfig {
	cfg.URL = normalizeRedisRawURL(cfg.URL)
	cfg.Host = strings.TrimSpace(cfg.Host)
	cfg.Username = strings.TrimSpace(cfg.Username)
	cfg.Password = strings.TrimSpace(cfg.Password)
	if cfg.Port == 0 {
		cfg.Port = defaultRedisPort
	}
	if cfg.DB < 0 {
		cfg.DB = 0
	}
	return cfg
}

func normalizeDiscordConfig(cfg DiscordConfig) DiscordConfig {
	cfg.Token = strings.TrimSpace(cfg.Token)
	cfg.GuildID = strings.TrimSpace(cfg.GuildID)
	cfg.FallbackChannelID = strings.TrimSpace(cfg.FallbackChannelID)
	cfg.ReportChannelID = strings.TrimSpace(cfg.ReportChannelID)
	if strings.TrimSpace(cfg.ReportTitle) == "" {
		cfg.ReportTitle = defaultReportTitle
	}
	if cfg.SendRatePerSecond <= 0 {
		cfg.SendRatePerSecond = defaultSendRate
	}
	if cfg.SendBurst <= 0 {
		cfg.SendBurst = defaultSendBurst
	}
	return cfg
}

func normalizeRedisRawURL(raw string) string {
	u := strings.TrimSpace(raw)
	if u == "" {
		return ""
	}
	if !strings.Contains(u, "://") {
		u = "redis://" + u
	}
	return u
}

func copyStringMap(src map[string]string) map[string]string {
	out := make(map[string]string, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}
