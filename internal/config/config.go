package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"
)

type Config struct {
	AppPort string

	DBDriver   string
	SQLitePath string

	MySQLHost string
	MySQLPort string
	MySQLDB   string
	MySQLUser string
	MySQLPass string

	// empty RedisAddr disables idempotency
	RedisAddr string
	RedisDB   int

	IdempTTLSecs int

	LogLevel  string
	LogFormat string

	CORSAllowedOrigins []string
	SeedData           bool
	ShutdownTimeout    time.Duration
}

func getenv(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func getint(k string, d int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return d
}

func getbool(k string, d bool) bool {
	if v := os.Getenv(k); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return d
}

// Load reads the environment, after merging a .env file when one exists.
// Variables already set in the environment win over .env.
func Load() *Config {
	_ = godotenv.Load()

	c := &Config{
		AppPort:    getenv("APP_PORT", "8080"),
		DBDriver:   strings.ToLower(getenv("DB_DRIVER", DriverMySQL)),
		SQLitePath: getenv("SQLITE_PATH", "loans.db"),
		MySQLHost:  getenv("MYSQL_HOST", "mysql"),
		MySQLPort:  getenv("MYSQL_PORT", "3306"),
		MySQLDB:    getenv("MYSQL_DB", "loans"),
		MySQLUser:  getenv("MYSQL_USER", "loans"),
		MySQLPass:  getenv("MYSQL_PASS", "loans"),

		RedisAddr:    os.Getenv("REDIS_ADDR"),
		RedisDB:      getint("REDIS_DB", 0),
		IdempTTLSecs: getint("IDEMPOTENCY_TTL_SECONDS", 300),

		LogLevel:  getenv("LOG_LEVEL", "info"),
		LogFormat: getenv("LOG_FORMAT", "json"),

		SeedData:        getbool("SEED_DATA", false),
		ShutdownTimeout: time.Duration(getint("SHUTDOWN_TIMEOUT_SECONDS", 10)) * time.Second,
	}
	for _, o := range strings.Split(getenv("CORS_ALLOWED_ORIGINS", "http://localhost:4200"), ",") {
		if o = strings.TrimSpace(o); o != "" {
			c.CORSAllowedOrigins = append(c.CORSAllowedOrigins, o)
		}
	}
	return c
}

func (c *Config) Validate() error {
	if c.AppPort == "" {
		return errors.New("missing APP_PORT")
	}
	switch c.DBDriver {
	case DriverMySQL:
		if c.MySQLHost == "" || c.MySQLPort == "" || c.MySQLDB == "" || c.MySQLUser == "" {
			return errors.New("missing MySQL config (MYSQL_HOST/PORT/DB/USER)")
		}
		if _, err := net.LookupPort("tcp", c.MySQLPort); err != nil {
			return fmt.Errorf("invalid MYSQL_PORT %q: %w", c.MySQLPort, err)
		}
	case DriverSQLite:
		if c.SQLitePath == "" {
			return errors.New("missing SQLITE_PATH")
		}
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q (want mysql or sqlite)", c.DBDriver)
	}
	if c.RedisAddr != "" && c.IdempTTLSecs <= 0 {
		return fmt.Errorf("invalid IDEMPOTENCY_TTL_SECONDS %d", c.IdempTTLSecs)
	}
	return nil
}

func (c *Config) IdempotencyEnabled() bool { return c.RedisAddr != "" }

func (c *Config) IdempotencyTTL() time.Duration { return time.Duration(c.IdempTTLSecs) * time.Second }

func (c *Config) mysqlAddr() string { return net.JoinHostPort(c.MySQLHost, c.MySQLPort) }

func (c *Config) MySQLDSN() string {
	// parseTime needed for DATETIME, loc=UTC keeps timestamps in UTC
	return fmt.Sprintf("%s:%s@tcp(%s)/%s?parseTime=true&loc=UTC&charset=utf8mb4",
		c.MySQLUser, c.MySQLPass, c.mysqlAddr(), c.MySQLDB)
}
