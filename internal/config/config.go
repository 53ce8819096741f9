package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Addr           string
	DBPath         string
	Retention      time.Duration
	SweepInterval  time.Duration
	CursorInterval time.Duration
}

// FromEnv builds the server configuration from the environment, falling back
// to defaults for anything unset or unparsable.
func FromEnv() *Config {
	cfg := &Config{
		Addr:           ":8080",
		DBPath:         "./data/fresco.db",
		Retention:      24 * time.Hour,
		SweepInterval:  time.Hour,
		CursorInterval: 16 * time.Millisecond,
	}

	if port := os.Getenv("PORT"); port != "" {
		cfg.Addr = ":" + port
	}
	if path := os.Getenv("FRESCO_DB_PATH"); path != "" {
		cfg.DBPath = path
	}
	if hours, ok := envInt("FRESCO_RETENTION_HOURS"); ok {
		cfg.Retention = time.Duration(hours) * time.Hour
	}
	if minutes, ok := envInt("FRESCO_SWEEP_INTERVAL_MINUTES"); ok {
		cfg.SweepInterval = time.Duration(minutes) * time.Minute
	}
	if millis, ok := envInt("FRESCO_CURSOR_INTERVAL_MS"); ok {
		cfg.CursorInterval = time.Duration(millis) * time.Millisecond
	}

	return cfg
}

func envInt(name string) (int, bool) {
	raw := os.Getenv(name)
	if raw == "" {
		return 0, false
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return 0, false
	}
	return value, true
}
