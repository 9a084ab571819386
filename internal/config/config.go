// Package config loads chatsync settings from the environment and an
// optional YAML file.
package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration values.
type Config struct {
	// Chat client
	ServerURL     string
	SocketURL     string
	UserID        string
	ClientTimeout time.Duration

	// Relay
	RelayAddr  string
	RelayStore string // "memory" or "surrealdb"

	// SurrealDB connection (relay store)
	SurrealDBURL       string
	SurrealDBNamespace string
	SurrealDBDatabase  string
	SurrealDBUser      string
	SurrealDBPass      string
	SurrealDBAuthLevel string

	// Logging
	LogFile  string
	LogLevel slog.Level
}

// Store backends for the relay.
const (
	StoreMemory    = "memory"
	StoreSurrealDB = "surrealdb"
)

// Load reads configuration from environment variables.
func Load() Config {
	cfg := Config{
		ServerURL:     getEnv("CHATSYNC_SERVER_URL", "http://localhost:5000"),
		SocketURL:     getEnv("CHATSYNC_SOCKET_URL", ""),
		UserID:        getEnv("CHATSYNC_USER", ""),
		ClientTimeout: parseDuration(getEnv("CHATSYNC_CLIENT_TIMEOUT", "30s"), 30*time.Second),

		RelayAddr:  getEnv("CHATSYNC_RELAY_ADDR", ":5000"),
		RelayStore: getEnv("CHATSYNC_RELAY_STORE", StoreMemory),

		SurrealDBURL:       getEnv("SURREALDB_URL", "ws://localhost:8000/rpc"),
		SurrealDBNamespace: getEnv("SURREALDB_NAMESPACE", "chatsync"),
		SurrealDBDatabase:  getEnv("SURREALDB_DATABASE", "messages"),
		SurrealDBUser:      getEnv("SURREALDB_USER", "root"),
		SurrealDBPass:      getEnv("SURREALDB_PASS", "root"),
		SurrealDBAuthLevel: getEnv("SURREALDB_AUTH_LEVEL", "root"),

		LogFile:  getEnv("CHATSYNC_LOG_FILE", "/tmp/chatsync.log"),
		LogLevel: parseLogLevel(getEnv("CHATSYNC_LOG_LEVEL", "INFO")),
	}
	if cfg.SocketURL == "" {
		cfg.SocketURL = DeriveSocketURL(cfg.ServerURL)
	}
	return cfg
}

// fileConfig mirrors Config in the YAML file. Empty fields keep the value
// from the environment.
type fileConfig struct {
	Server struct {
		URL     string `yaml:"url"`
		Socket  string `yaml:"socket"`
		Timeout string `yaml:"timeout"`
	} `yaml:"server"`
	User  string `yaml:"user"`
	Relay struct {
		Addr  string `yaml:"addr"`
		Store string `yaml:"store"`
	} `yaml:"relay"`
	SurrealDB struct {
		URL       string `yaml:"url"`
		Namespace string `yaml:"namespace"`
		Database  string `yaml:"database"`
		User      string `yaml:"user"`
		Pass      string `yaml:"pass"`
		AuthLevel string `yaml:"auth_level"`
	} `yaml:"surrealdb"`
	Log struct {
		File  string `yaml:"file"`
		Level string `yaml:"level"`
	} `yaml:"log"`
}

// LoadFile reads the environment and then overlays the YAML file at path.
func LoadFile(path string) (Config, error) {
	cfg := Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}

	serverChanged := fc.Server.URL != "" && fc.Server.URL != cfg.ServerURL
	overlay(&cfg.ServerURL, fc.Server.URL)
	overlay(&cfg.SocketURL, fc.Server.Socket)
	if serverChanged && fc.Server.Socket == "" && os.Getenv("CHATSYNC_SOCKET_URL") == "" {
		cfg.SocketURL = DeriveSocketURL(cfg.ServerURL)
	}
	if fc.Server.Timeout != "" {
		d, err := time.ParseDuration(fc.Server.Timeout)
		if err != nil {
			return cfg, fmt.Errorf("parse server.timeout: %w", err)
		}
		cfg.ClientTimeout = d
	}
	overlay(&cfg.UserID, fc.User)
	overlay(&cfg.RelayAddr, fc.Relay.Addr)
	overlay(&cfg.RelayStore, fc.Relay.Store)
	overlay(&cfg.SurrealDBURL, fc.SurrealDB.URL)
	overlay(&cfg.SurrealDBNamespace, fc.SurrealDB.Namespace)
	overlay(&cfg.SurrealDBDatabase, fc.SurrealDB.Database)
	overlay(&cfg.SurrealDBUser, fc.SurrealDB.User)
	overlay(&cfg.SurrealDBPass, fc.SurrealDB.Pass)
	overlay(&cfg.SurrealDBAuthLevel, fc.SurrealDB.AuthLevel)
	overlay(&cfg.LogFile, fc.Log.File)
	if fc.Log.Level != "" {
		cfg.LogLevel = parseLogLevel(fc.Log.Level)
	}

	return cfg, nil
}

// DeriveSocketURL turns the server base URL into the websocket endpoint.
func DeriveSocketURL(serverURL string) string {
	u, err := url.Parse(serverURL)
	if err != nil {
		return ""
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/socket"
	return u.String()
}

func overlay(dst *string, val string) {
	if val != "" {
		*dst = val
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func parseDuration(s string, defaultVal time.Duration) time.Duration {
	if d, err := time.ParseDuration(s); err == nil {
		return d
	}
	return defaultVal
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
