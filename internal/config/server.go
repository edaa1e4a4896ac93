package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Server holds the HTTP API settings, read from the environment.
type Server struct {
	Port    int
	Env     string
	CaseDir string
	// StoreDir selects the badger run store; empty keeps runs in memory.
	StoreDir    string
	RunTTL      time.Duration
	LogLevel    string
	LogFormat   string // "text" or "json"
	CORSOrigins []string
}

// LoadServer reads the server configuration with defaults.
func LoadServer() (Server, error) {
	cfg := Server{
		Port:        envInt("API_PORT", 8080),
		Env:         envStr("API_ENV", "development"),
		CaseDir:     envStr("CASE_DIR", "./examples/cases"),
		StoreDir:    envStr("RUN_STORE_DIR", ""),
		RunTTL:      envDuration("RUN_TTL", time.Hour),
		LogLevel:    envStr("LOG_LEVEL", "info"),
		LogFormat:   envStr("LOG_FORMAT", "text"),
		CORSOrigins: splitList(envStr("CORS_ORIGINS", "*")),
	}
	if err := cfg.Validate(); err != nil {
		return Server{}, err
	}
	return cfg, nil
}

func (c Server) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("config: API_PORT %d out of range", c.Port)
	}
	if c.RunTTL <= 0 {
		return fmt.Errorf("config: RUN_TTL must be positive")
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("config: LOG_FORMAT must be text or json, got %q", c.LogFormat)
	}
	return nil
}

func (c Server) Addr() string {
	return ":" + strconv.Itoa(c.Port)
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func envStr(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
