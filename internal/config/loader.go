package config

import (
	"errors"
	"log"
	"strings"
	"time"

	"github.com/rpattn/kpiledger/internal/db"
	"github.com/rpattn/kpiledger/internal/export"
	"github.com/rpattn/kpiledger/internal/view"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// LedgerConfig controls where the KPI table lives and how it is checked.
type LedgerConfig struct {
	DataFile      string
	Validate      bool
	RecentChanges int
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Addr               string
	AllowedOrigins     []string
	SessionIdleTimeout time.Duration
	MaxSessions        int
}

// Config is the full application configuration.
type Config struct {
	Ledger   LedgerConfig
	Server   ServerConfig
	Database db.Config
}

// DefaultConfig returns the configuration used when nothing is overridden.
func DefaultConfig() Config {
	return Config{
		Ledger: LedgerConfig{
			DataFile:      export.DefaultFileName,
			RecentChanges: view.DefaultRecentChanges,
		},
		Server: ServerConfig{
			Addr:               ":8080",
			AllowedOrigins:     []string{"http://localhost:3000"},
			SessionIdleTimeout: 30 * time.Minute,
			MaxSessions:        1000,
		},
		Database: db.DefaultConfig(),
	}
}

var envKeys = []string{
	"ledger.data_file",
	"ledger.validate",
	"ledger.recent_changes",
	"server.addr",
	"server.allowed_origins",
	"server.session_idle_timeout",
	"server.max_sessions",
	"database.enabled",
	"database.host",
	"database.port",
	"database.user",
	"database.password",
	"database.dbname",
	"database.sslmode",
}

// Load reads config.yaml from configPath, applying a .env file and KPI_
// environment variables on top. A missing config file is not an error.
func Load(configPath string) (Config, error) {
	cfg := DefaultConfig()

	if err := godotenv.Load(); err == nil {
		log.Println("[config] loaded .env")
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.SetEnvPrefix("KPI") // KPI_LEDGER_DATA_FILE, KPI_DATABASE_HOST, ...
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range envKeys {
		_ = v.BindEnv(key)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return cfg, err
		}
		log.Println("[config] no config.yaml found, using defaults and env vars")
	} else {
		log.Printf("[config] loaded %s", v.ConfigFileUsed())
	}

	if v.IsSet("ledger.data_file") {
		cfg.Ledger.DataFile = v.GetString("ledger.data_file")
	}
	if v.IsSet("ledger.validate") {
		cfg.Ledger.Validate = v.GetBool("ledger.validate")
	}
	if v.IsSet("ledger.recent_changes") {
		cfg.Ledger.RecentChanges = v.GetInt("ledger.recent_changes")
	}

	if v.IsSet("server.addr") {
		cfg.Server.Addr = v.GetString("server.addr")
	}
	if v.IsSet("server.allowed_origins") {
		cfg.Server.AllowedOrigins = splitOrigins(v.GetStringSlice("server.allowed_origins"))
	}
	if v.IsSet("server.session_idle_timeout") {
		cfg.Server.SessionIdleTimeout = v.GetDuration("server.session_idle_timeout")
	}
	if v.IsSet("server.max_sessions") {
		cfg.Server.MaxSessions = v.GetInt("server.max_sessions")
	}

	if v.IsSet("database.enabled") {
		cfg.Database.Enabled = v.GetBool("database.enabled")
	}
	if v.IsSet("database.host") {
		cfg.Database.Host = v.GetString("database.host")
	}
	if v.IsSet("database.port") {
		cfg.Database.Port = v.GetInt("database.port")
	}
	if v.IsSet("database.user") {
		cfg.Database.User = v.GetString("database.user")
	}
	if v.IsSet("database.password") {
		cfg.Database.Password = v.GetString("database.password")
	}
	if v.IsSet("database.dbname") {
		cfg.Database.DBName = v.GetString("database.dbname")
	}
	if v.IsSet("database.sslmode") {
		cfg.Database.SSLMode = v.GetString("database.sslmode")
	}

	return cfg, nil
}

// splitOrigins accepts both yaml lists and comma separated env values.
func splitOrigins(values []string) []string {
	var out []string
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
