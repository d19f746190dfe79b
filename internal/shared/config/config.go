package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	EventDB  EventDBConfig
	Auth     AuthConfig
	Legacy   LegacyConfig
	Notify   NotifyConfig
}

type ServerConfig struct {
	Port int
	Env  string
	// RateLimitRPS/Burst bound per-IP request rates on the API surface
	RateLimitRPS   int
	RateLimitBurst int
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Database, d.SSLMode,
	)
}

// EventDBConfig holds configuration for the EventStoreDB event bus.
type EventDBConfig struct {
	Host     string
	Port     int
	Insecure bool
	Username string
	Password string
	// Enabled lets the service run without event streaming (dev mode)
	Enabled bool
}

type AuthConfig struct {
	JWTSecret string
	// Required forces the JWT middleware on all API routes; off in dev
	Required bool
}

// LegacyConfig points at the office's previous SQL Server case register,
// imported at startup and optionally polled afterwards.
type LegacyConfig struct {
	Enabled      bool
	Host         string
	Port         int
	User         string
	Password     string
	Database     string
	CaseTable    string
	OfficerTable string
	PollMinutes  int
}

func (l LegacyConfig) DSN() string {
	return fmt.Sprintf("server=%s;port=%d;database=%s;user id=%s;password=%s",
		l.Host, l.Port, l.Database, l.User, l.Password)
}

// NotifyConfig tunes the notification dispatcher.
type NotifyConfig struct {
	// CreatedNotifyRoles is the fixed notify-list for new-case events
	CreatedNotifyRoles []string
}

func Load() (*Config, error) {
	return &Config{
		Server: ServerConfig{
			Port:           getEnvInt("SERVER_PORT", 8080),
			Env:            getEnv("ENV", "development"),
			RateLimitRPS:   getEnvInt("RATE_LIMIT_RPS", 50),
			RateLimitBurst: getEnvInt("RATE_LIMIT_BURST", 100),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "landcase"),
			Password: getEnv("DB_PASSWORD", "landcase"),
			Database: getEnv("DB_NAME", "landcase"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		EventDB: EventDBConfig{
			Host:     getEnv("EVENTDB_HOST", "localhost"),
			Port:     getEnvInt("EVENTDB_PORT", 2113),
			Insecure: getEnvBool("EVENTDB_INSECURE", true),
			Username: getEnv("EVENTDB_USERNAME", ""),
			Password: getEnv("EVENTDB_PASSWORD", ""),
			Enabled:  getEnvBool("EVENTDB_ENABLED", true),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", "dev-secret-change-in-prod"),
			Required:  getEnvBool("AUTH_REQUIRED", false),
		},
		Legacy: LegacyConfig{
			Enabled:      getEnvBool("LEGACY_IMPORT_ENABLED", false),
			Host:         getEnv("LEGACY_DB_HOST", "localhost"),
			Port:         getEnvInt("LEGACY_DB_PORT", 1433),
			User:         getEnv("LEGACY_DB_USER", "sa"),
			Password:     getEnv("LEGACY_DB_PASSWORD", ""),
			Database:     getEnv("LEGACY_DB_NAME", "CaseRegister"),
			CaseTable:    getEnv("LEGACY_CASE_TABLE", "dbo.Cases"),
			OfficerTable: getEnv("LEGACY_OFFICER_TABLE", "dbo.Officers"),
			PollMinutes:  getEnvInt("LEGACY_POLL_MINUTES", 0),
		},
		Notify: NotifyConfig{
			CreatedNotifyRoles: getEnvSlice("NOTIFY_CREATED_ROLES", []string{"executive", "manager"}),
		},
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		var result []string
		for _, v := range strings.Split(value, ",") {
			if trimmed := strings.TrimSpace(v); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return defaultValue
}
