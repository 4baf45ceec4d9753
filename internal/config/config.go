package config // package config loads application configuration from environment variables

import (
	"strings"

	"github.com/joho/godotenv"
	"github.com/labstack/gommon/log"
)

// Config holds the runtime configuration of the HTTP server.  Every field
// has a default so that the demo starts with no environment at all.
type Config struct {
	Env         string   // application environment (e.g. "dev", "prod")
	Port        string   // HTTP port to listen on
	LogLevel    log.Lvl  // echo/gommon log level
	CORSOrigins []string // allowed CORS origins; "*" allows any
}

// Load reads a .env file when one is present and then builds a Config from
// environment variables.
func Load() Config {
	LoadDotEnv()
	return Config{
		Env:         envStr("APP_ENV", "dev"),
		Port:        envStr("APP_PORT", "3002"),
		LogLevel:    parseLevel(envStr("LOG_LEVEL", "info")),
		CORSOrigins: splitList(envStr("CORS_ALLOW_ORIGINS", "*")),
	}
}

// LoadDotEnv loads variables from .env without overriding values already
// set in the process environment.  A missing file is not an error.
func LoadDotEnv() {
	_ = godotenv.Load()
}

func parseLevel(s string) log.Lvl {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return log.DEBUG
	case "warn", "warning":
		return log.WARN
	case "error":
		return log.ERROR
	case "off":
		return log.OFF
	default:
		return log.INFO
	}
}

func splitList(s string) []string {
	out := []string{}
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
