package probe

import (
	"context"
	"net/url"
	"time"

	"github.com/iammyeongho/pymonitor/internal/domain"
)

// Result holds the outcome of a single probe. StatusCode is 0 for
// transport/DNS errors. Latency is nil when no response arrived; a
// timeout has no duration. ExpiresAt is set by expiry-class checkers
// (TLS certificate, WHOIS registration).
type Result struct {
	Kind       string
	Success    bool
	StatusCode int
	Latency    *time.Duration
	Message    string
	Detail     string
	ExpiresAt  *time.Time
}

// Checker is implemented by any single-protocol probe (HTTP, TCP, DNS,
// TLS, WHOIS, content, deep). Checkers are stateless and side-effect
// free besides the network call itself; retries belong to the status
// tracker's hysteresis, not here.
type Checker interface {
	Check(ctx context.Context, target domain.Target, settings domain.Settings) Result
}

// Registry maps capability keys to optional checkers. The engine asks
// for the checkers a target's settings declare; registering a new kind
// never changes engine control flow.
type Registry struct {
	checkers map[domain.Capability]Checker
}

func NewRegistry() *Registry {
	return &Registry{checkers: make(map[domain.Capability]Checker)}
}

func (r *Registry) Register(cap domain.Capability, c Checker) {
	r.checkers[cap] = c
}

// For returns the checkers declared by settings, in declaration order.
// Capabilities with no registered checker (e.g. deep without a plugin)
// are skipped.
func (r *Registry) For(settings domain.Settings) []Checker {
	out := make([]Checker, 0, len(settings.Capabilities))
	for _, c := range settings.Capabilities {
		if chk, ok := r.checkers[c]; ok {
			out = append(out, chk)
		}
	}
	return out
}

// Hostname pulls the host from a target URL, falling back to the raw
// string for bare hostnames.
func Hostname(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return raw
	}
	return u.Hostname()
}

func durationPtr(d time.Duration) *time.Duration { return &d }
