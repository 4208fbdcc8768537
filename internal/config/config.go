// Package config holds the daemon configuration, loaded from the
// environment with sensible defaults.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Config is the full daemon configuration.
type Config struct {
	// ListenAddr is the HTTP listen address for the WebSocket RPC endpoint.
	ListenAddr string
	// DBPath is the SQLite database file path.
	DBPath string
	// RPCSecret authenticates RPC clients. Empty disables the RPC surface.
	RPCSecret string
	// CredFile is the encrypted store holding the bridge credentials
	// (Exchange account, timetable portal login, To-Do token).
	CredFile string

	// ScanInterval is the occurrence-start scanner polling interval.
	ScanInterval time.Duration
	// ExchangeSyncCron and TimetableSyncCron schedule the periodic
	// source syncs (standard five-field cron expressions).
	ExchangeSyncCron  string
	TimetableSyncCron string

	// ExchangeURL, TimetableURL and TodoURL are the base URLs of the
	// thin bridge services the source adapters talk to. Empty disables
	// the corresponding sync.
	ExchangeURL  string
	TimetableURL string
	TodoURL      string

	// BoundaryInclusive is the default conflict boundary policy for
	// users that have not set their own.
	BoundaryInclusive bool

	Version string
}

// Default returns the built-in configuration.
func Default() Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return Config{
		ListenAddr:        "127.0.0.1:7419",
		DBPath:            filepath.Join(home, ".taskfuse", "taskfuse.db"),
		CredFile:          filepath.Join(home, ".taskfuse", "credentials"),
		ScanInterval:      30 * time.Second,
		ExchangeSyncCron:  "*/15 * * * *",
		TimetableSyncCron: "0 6 * * *",
	}
}

// FromEnv loads configuration from environment variables, falling back
// to defaults for variables that are not set.
func FromEnv() Config {
	cfg := Default()

	if v := os.Getenv("TASKFUSE_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("TASKFUSE_DB"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("TASKFUSE_SECRET"); v != "" {
		cfg.RPCSecret = v
	}
	if v := os.Getenv("TASKFUSE_CRED_FILE"); v != "" {
		cfg.CredFile = v
	}
	if v := getEnvSeconds("TASKFUSE_SCAN_INTERVAL"); v > 0 {
		cfg.ScanInterval = v
	}
	if v := os.Getenv("TASKFUSE_EXCHANGE_CRON"); v != "" {
		cfg.ExchangeSyncCron = v
	}
	if v := os.Getenv("TASKFUSE_TIMETABLE_CRON"); v != "" {
		cfg.TimetableSyncCron = v
	}
	if v := os.Getenv("TASKFUSE_EXCHANGE_URL"); v != "" {
		cfg.ExchangeURL = v
	}
	if v := os.Getenv("TASKFUSE_TIMETABLE_URL"); v != "" {
		cfg.TimetableURL = v
	}
	if v := os.Getenv("TASKFUSE_TODO_URL"); v != "" {
		cfg.TodoURL = v
	}
	if v := os.Getenv("TASKFUSE_BOUNDARY_INCLUSIVE"); v == "1" || v == "true" {
		cfg.BoundaryInclusive = true
	}

	return cfg
}

func getEnvSeconds(key string) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return 0
	}
	n, err := strconv.Atoi(val)
	if err != nil || n <= 0 {
		return 0
	}
	return time.Duration(n) * time.Second
}
