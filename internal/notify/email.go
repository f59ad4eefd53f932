package notify

import (
	"context"
	"errors"
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"github.com/iammyeongho/pymonitor/internal/domain"
)

// Email sends alert events over SMTP.
type Email struct {
	Addr     string // host:port
	From     string
	To       []string
	Username string
	Password string

	// send is swapped in tests.
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewEmail(addr, from string, to []string, username, password string) *Email {
	if addr == "" || from == "" || len(to) == 0 {
		return nil
	}
	return &Email{
		Addr:     addr,
		From:     from,
		To:       to,
		Username: username,
		Password: password,
		send:     smtp.SendMail,
	}
}

func (e *Email) Dispatch(_ context.Context, ev domain.AlertEvent) error {
	if e == nil {
		return errors.New("email disabled")
	}
	var auth smtp.Auth
	if e.Username != "" {
		host := e.Addr
		if i := strings.IndexByte(host, ':'); i >= 0 {
			host = host[:i]
		}
		auth = smtp.PlainAuth("", e.Username, e.Password, host)
	}

	subject := fmt.Sprintf("[monitoring] %s: %s", ev.Type, ev.TargetID)
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", e.From)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(e.To, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n")
	fmt.Fprintf(&b, "Target: %s\nSeverity: %s\nTime: %s\n\n%s\n",
		ev.TargetID, ev.Severity, ev.OccurredAt.Format(time.RFC3339), ev.Message)

	return e.send(e.Addr, auth, e.From, e.To, []byte(b.String()))
}
