package probe

import (
	"context"
	"errors"
	"net"
	"strings"

	"github.com/iammyeongho/pymonitor/internal/domain"
)

// DNSChecker classifies how a target's hostname resolves. The class
// names mirror resolver outcomes: RESOLVES, NXDOMAIN, NO_A_RECORD,
// SERVFAIL_or_TIMEOUT, INVALID_NAME.
type DNSChecker struct {
	Resolver *net.Resolver
}

func NewDNSChecker() *DNSChecker {
	return &DNSChecker{Resolver: &net.Resolver{}} // OS resolver
}

func (d *DNSChecker) Check(ctx context.Context, target domain.Target, _ domain.Settings) Result {
	host := strings.TrimSpace(Hostname(target.URL))
	if host == "" || strings.Contains(host, "://") {
		return Result{Kind: "dns", Success: false, Message: "INVALID_NAME"}
	}

	class := d.classify(ctx, host)
	return Result{
		Kind:    "dns",
		Success: class == "RESOLVES",
		Message: class,
		Detail:  host,
	}
}

func (d *DNSChecker) classify(ctx context.Context, host string) string {
	ips, err := d.Resolver.LookupIP(ctx, "ip", host)
	if err == nil && len(ips) > 0 {
		return "RESOLVES"
	}

	var de *net.DNSError
	if errors.As(err, &de) {
		if de.IsTemporary || de.Timeout() {
			return "SERVFAIL_or_TIMEOUT"
		}
		if de.IsNotFound {
			// A zone can exist with NS records but no address records.
			if ns, nsErr := d.Resolver.LookupNS(ctx, host); nsErr == nil && len(ns) > 0 {
				return "NO_A_RECORD"
			}
			return "NXDOMAIN"
		}
	}
	if err != nil {
		return "SERVFAIL_or_TIMEOUT"
	}
	return "NO_A_RECORD"
}
