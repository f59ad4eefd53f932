package probe

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/iammyeongho/pymonitor/internal/domain"
)

// TCPChecker probes a single port with a plain connect. The port comes
// from settings (tcp capability).
type TCPChecker struct {
	Dialer *net.Dialer
}

func NewTCPChecker() *TCPChecker {
	return &TCPChecker{Dialer: &net.Dialer{}}
}

func (t *TCPChecker) Check(ctx context.Context, target domain.Target, settings domain.Settings) Result {
	addr := net.JoinHostPort(Hostname(target.URL), fmt.Sprintf("%d", settings.TCPPort))
	start := time.Now()

	conn, err := t.Dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		msg := err.Error()
		if ctx.Err() == context.DeadlineExceeded {
			msg = "timeout"
		}
		return Result{Kind: "tcp", Success: false, Message: msg, Detail: addr}
	}
	_ = conn.Close()

	return Result{
		Kind:    "tcp",
		Success: true,
		Latency: durationPtr(time.Since(start)),
		Message: "connected",
		Detail:  addr,
	}
}
