package probe

import (
	"context"
	"crypto/tls"
	"net"
	"time"

	"github.com/iammyeongho/pymonitor/internal/domain"
)

// TLSChecker inspects the leaf certificate of the target host. It runs
// on the expiry cadence, not the availability loop.
type TLSChecker struct {
	Dialer *net.Dialer
}

func NewTLSChecker() *TLSChecker {
	return &TLSChecker{Dialer: &net.Dialer{}}
}

func (t *TLSChecker) Check(ctx context.Context, target domain.Target, _ domain.Settings) Result {
	host := Hostname(target.URL)
	addr := net.JoinHostPort(host, "443")

	conn, err := t.Dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return Result{Kind: "ssl", Success: false, Message: err.Error()}
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	tlsConn := tls.Client(conn, &tls.Config{ServerName: host})
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		return Result{Kind: "ssl", Success: false, Message: err.Error()}
	}

	certs := tlsConn.ConnectionState().PeerCertificates
	if len(certs) == 0 {
		return Result{Kind: "ssl", Success: false, Message: "no peer certificate"}
	}
	leaf := certs[0]

	expires := leaf.NotAfter
	res := Result{
		Kind:      "ssl",
		Success:   true,
		Message:   "valid",
		Detail:    leaf.Issuer.CommonName,
		ExpiresAt: &expires,
	}
	if time.Now().After(leaf.NotAfter) {
		res.Success = false
		res.Message = "certificate expired"
	}
	return res
}
