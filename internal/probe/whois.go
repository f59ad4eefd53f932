package probe

import (
	"context"
	"io"
	"net"
	"strings"
	"time"

	"github.com/iammyeongho/pymonitor/internal/domain"
)

// WhoisChecker queries the registry WHOIS server for the target's
// registrable domain and extracts the expiry date. Runs on the expiry
// cadence only; WHOIS servers rate-limit aggressively.
//
// The protocol is a plain request/response exchange on port 43, so no
// client library is needed: write "domain\r\n", read until EOF.
type WhoisChecker struct {
	Dialer *net.Dialer
	// Server overrides the whois host, mainly for tests. Empty means
	// <tld>.whois-servers.net.
	Server string
}

func NewWhoisChecker() *WhoisChecker {
	return &WhoisChecker{Dialer: &net.Dialer{}}
}

func (w *WhoisChecker) Check(ctx context.Context, target domain.Target, _ domain.Settings) Result {
	host := registrableDomain(Hostname(target.URL))
	if host == "" {
		return Result{Kind: "domain", Success: false, Message: "no registrable domain"}
	}

	server := w.Server
	if server == "" {
		tld := host[strings.LastIndex(host, ".")+1:]
		server = tld + ".whois-servers.net:43"
	}

	conn, err := w.Dialer.DialContext(ctx, "tcp", server)
	if err != nil {
		return Result{Kind: "domain", Success: false, Message: err.Error()}
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	if _, err := conn.Write([]byte(host + "\r\n")); err != nil {
		return Result{Kind: "domain", Success: false, Message: err.Error()}
	}
	raw, err := io.ReadAll(io.LimitReader(conn, 1<<20))
	if err != nil {
		return Result{Kind: "domain", Success: false, Message: err.Error()}
	}

	expiry, registrar := ParseWhois(string(raw))
	if expiry == nil {
		return Result{Kind: "domain", Success: false, Message: "no expiry date in whois response", Detail: registrar}
	}
	return Result{
		Kind:      "domain",
		Success:   true,
		Message:   "registered",
		Detail:    registrar,
		ExpiresAt: expiry,
	}
}

// whoisExpiryKeys are the expiry field names used by the common
// registries, lowercase.
var whoisExpiryKeys = []string{
	"registry expiry date",
	"registrar registration expiration date",
	"expiration date",
	"expiry date",
	"expires",
	"paid-till",
}

var whoisDateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05Z",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"02-Jan-2006",
	"2006.01.02",
}

// ParseWhois scans a raw WHOIS response for an expiry date and the
// registrar name. Returns nil when no parseable date is found.
func ParseWhois(raw string) (*time.Time, string) {
	var expiry *time.Time
	var registrar string

	for _, line := range strings.Split(raw, "\n") {
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}

		if key == "registrar" && registrar == "" {
			registrar = value
			continue
		}
		if expiry != nil {
			continue
		}
		for _, want := range whoisExpiryKeys {
			if key != want {
				continue
			}
			if ts := parseWhoisDate(value); ts != nil {
				expiry = ts
			}
			break
		}
	}
	return expiry, registrar
}

func parseWhoisDate(value string) *time.Time {
	for _, layout := range whoisDateLayouts {
		if ts, err := time.Parse(layout, value); err == nil {
			return &ts
		}
	}
	return nil
}

// registrableDomain trims a hostname down to its last two labels, which
// is what the registry WHOIS servers answer for. Not PSL-aware; two-level
// public suffixes (co.uk) fall back to the suffix query answering with a
// referral, which still parses when it carries an expiry.
func registrableDomain(host string) string {
	host = strings.TrimSuffix(strings.TrimSpace(host), ".")
	if host == "" || net.ParseIP(host) != nil {
		return ""
	}
	labels := strings.Split(host, ".")
	if len(labels) < 2 {
		return ""
	}
	return strings.Join(labels[len(labels)-2:], ".")
}
