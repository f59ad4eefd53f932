// cmd/preflight/main.go
package main

import (
	"fmt"
	"os"
	"strings"
)

func main() {
	fail := func(msg string) {
		fmt.Fprintln(os.Stderr, "✖", msg)
		os.Exit(1)
	}
	warn := func(msg string) { fmt.Fprintln(os.Stderr, "⚠", msg) }
	ok := func(msg string) { fmt.Println("✔", msg) }

	admin := strings.TrimSpace(os.Getenv("ADMIN_API_KEYS"))
	pub := strings.TrimSpace(os.Getenv("PUBLIC_API_KEYS"))
	apiAddr := strings.TrimSpace(os.Getenv("API_ADDR"))
	db := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	redis := strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	allowed := strings.TrimSpace(os.Getenv("ALLOWED_ORIGINS"))
	smtpHost := strings.TrimSpace(os.Getenv("SMTP_HOST"))
	emailTo := strings.TrimSpace(os.Getenv("EMAIL_TO"))

	if admin == "" {
		fail("ADMIN_API_KEYS is empty (write routes will 403).")
	}
	if pub == "" {
		fail("PUBLIC_API_KEYS is empty (read routes will 401).")
	}

	// Normalize and sanity-check lists (no spaces around commas).
	for name, v := range map[string]string{"ADMIN_API_KEYS": admin, "PUBLIC_API_KEYS": pub} {
		if strings.Contains(v, " ") {
			warn(name + " contains spaces; use comma-separated with no spaces, e.g. key1,key2")
		}
	}

	if apiAddr == "" {
		warn("API_ADDR is empty; the server default will be used.")
	} else {
		ok("API_ADDR=" + apiAddr)
	}

	if db == "" {
		warn("DATABASE_URL empty — logs and alerts will live in memory only.")
	} else {
		ok("DATABASE_URL present")
	}

	if redis == "" {
		warn("REDIS_ADDR empty — status push stays in-process.")
	} else {
		ok("REDIS_ADDR=" + redis)
	}

	if allowed == "" {
		warn("ALLOWED_ORIGINS empty — browser will be blocked by CORS for cross-origin requests.")
	} else {
		ok("ALLOWED_ORIGINS=" + allowed)
	}

	if smtpHost != "" && emailTo == "" {
		warn("SMTP_HOST set but EMAIL_TO empty — email alerts go nowhere.")
	}

	ok("preflight passed")
}
