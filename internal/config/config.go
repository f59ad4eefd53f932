package config

import (
	"os"
	"strconv"
	"strings"
)

type Config struct {
	Addr        string // API bind address, e.g. "127.0.0.1:8080" or ":8080"
	LogDir      string // logs directory
	DatabaseURL string // postgres://...; empty means in-memory store
	RedisAddr   string // host:port for status push; empty disables Redis

	PublicAPIKeys  []string
	AdminAPIKeys   []string
	AllowedOrigins []string

	ReadRPM  int // rate limit for read routes, requests per minute
	WriteRPM int // rate limit for write routes

	// email channel; Host empty disables it
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	EmailFrom    string
	EmailTo      []string

	AlertOnRecovery bool
}

func FromEnv() Config {
	return Config{
		Addr:        getenv("API_ADDR", "127.0.0.1:8080"),
		LogDir:      getenv("LOG_DIR", "logs"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisAddr:   os.Getenv("REDIS_ADDR"),

		PublicAPIKeys:  splitCSV(os.Getenv("PUBLIC_API_KEYS")),
		AdminAPIKeys:   splitCSV(os.Getenv("ADMIN_API_KEYS")),
		AllowedOrigins: splitCSV(os.Getenv("ALLOWED_ORIGINS")),

		ReadRPM:  getint("READ_RPM", 120),
		WriteRPM: getint("WRITE_RPM", 30),

		SMTPHost:     os.Getenv("SMTP_HOST"),
		SMTPPort:     getint("SMTP_PORT", 587),
		SMTPUsername: os.Getenv("SMTP_USERNAME"),
		SMTPPassword: os.Getenv("SMTP_PASSWORD"),
		EmailFrom:    getenv("EMAIL_FROM", "pymonitor@localhost"),
		EmailTo:      splitCSV(os.Getenv("EMAIL_TO")),

		AlertOnRecovery: getbool("ALERT_ON_RECOVERY", true),
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getint(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			return n
		}
	}
	return def
}

func getbool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func splitCSV(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
