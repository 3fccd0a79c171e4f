package config

import (
	"net"
	neturl "net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	mysqldriver "github.com/go-sql-driver/mysql"
)

// DSNValue returns the driver-specific connection string.
func (c DatabaseRuntimeConfig) DSNValue() string {
	if v := strings.TrimSpace(c.DSN); v != "" {
		return v
	}
	switch c.Driver {
	case DriverPostgres:
		return c.postgresDSN()
	case DriverSQLite:
		name := strings.TrimSpace(c.Name)
		if name == "" || name == defaultDBName {
			name = defaultSQLiteFile
		}
		return name
	default:
		return c.mysqlDSN()
	}
}

func (c DatabaseRuntimeConfig) mysqlDSN() string {
	port := c.Port
	if port == 0 {
		port = defaultMySQLPort
	}

	mc := mysqldriver.NewConfig()
	mc.User = c.User
	mc.Passwd = c.Password
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(c.Host, strconv.Itoa(port))
	mc.DBName = c.Name
	mc.ParseTime = true
	if loc, err := time.LoadLocation(c.Loc); err == nil {
		mc.Loc = loc
	}

	mc.Params = map[string]string{}
	for key, value := range c.Params {
		k := strings.TrimSpace(key)
		v := strings.TrimSpace(value)
		if k != "" && v != "" {
			mc.Params[k] = v
		}
	}
	if _, ok := mc.Params["charset"]; !ok && c.Charset != "" {
		mc.Params["charset"] = c.Charset
	}
	return mc.FormatDSN()
}

func (c DatabaseRuntimeConfig) postgresDSN() string {
	port := c.Port
	if port == 0 {
		port = defaultPGPort
	}
	parts := []string{
		"host=" + c.Host,
		"port=" + strconv.Itoa(port),
		"user=" + c.User,
		"dbname=" + c.Name,
		"sslmode=" + c.SSLMode,
	}
	if c.Password != "" {
		parts = append(parts, "password="+c.Password)
	}
	keys := make([]string, 0, len(c.Params))
	for k := range c.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if v := strings.TrimSpace(c.Params[k]); v != "" {
			parts = append(parts, strings.TrimSpace(k)+"="+v)
		}
	}
	return strings.Join(parts, " ")
}

// URLValue returns a redis:// URL for the configured endpoint.
func (c RedisRuntimeConfig) URLValue() string {
	if u := normalizeRedisRawURL(c.URL); u != "" {
		return u
	}

	scheme := "redis"
	if c.TLS {
		scheme = "rediss"
	}
	u := &neturl.URL{
		Scheme: scheme,
		Host:   net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		Path:   "/" + strconv.Itoa(c.DB),
	}
	if c.Username != "" {
		if c.Password != "" {
			u.User = neturl.UserPassword(c.Username, c.Password)
		} else {
			u.User = neturl.User(c.Username)
		}
	} else if c.Password != "" {
		u.User = neturl.UserPassword("", c.Password)
	}
	return u.String()
}
