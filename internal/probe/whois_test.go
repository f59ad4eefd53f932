package probe

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/iammyeongho/pymonitor/internal/domain"
)

func TestParseWhois_CommonFormats(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want string
	}{
		{
			name: "verisign",
			raw:  "Domain Name: EXAMPLE.COM\nRegistrar: Example Registrar LLC\nRegistry Expiry Date: 2027-08-13T04:00:00Z\n",
			want: "2027-08-13",
		},
		{
			name: "date only",
			raw:  "domain: example.de\nexpires: 2026-11-01\n",
			want: "2026-11-01",
		},
		{
			name: "ru style",
			raw:  "domain: EXAMPLE.RU\npaid-till: 2026-03-20T21:00:00Z\n",
			want: "2026-03-20",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			expiry, _ := ParseWhois(tc.raw)
			if expiry == nil {
				t.Fatalf("want expiry date, got nil")
			}
			if got := expiry.Format("2006-01-02"); got != tc.want {
				t.Fatalf("want %s, got %s", tc.want, got)
			}
		})
	}
}

func TestParseWhois_NoExpiry(t *testing.T) {
	expiry, registrar := ParseWhois("Domain Name: EXAMPLE.COM\nRegistrar: Foo Inc\nStatus: active\n")
	if expiry != nil {
		t.Fatalf("want nil expiry, got %v", expiry)
	}
	if registrar != "Foo Inc" {
		t.Fatalf("want registrar, got %q", registrar)
	}
}

func TestRegistrableDomain(t *testing.T) {
	if got := registrableDomain("www.example.com"); got != "example.com" {
		t.Fatalf("want example.com, got %q", got)
	}
	if got := registrableDomain("10.0.0.1"); got != "" {
		t.Fatalf("IPs have no registrable domain, got %q", got)
	}
	if got := registrableDomain("localhost"); got != "" {
		t.Fatalf("single label has no registrable domain, got %q", got)
	}
}

func TestWhoisChecker_AgainstFakeServer(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		buf := make([]byte, 256)
		_, _ = conn.Read(buf)
		_, _ = conn.Write([]byte("Registrar: Fake Registrar\nRegistry Expiry Date: 2030-01-02T00:00:00Z\n"))
		_ = conn.Close()
	}()

	chk := NewWhoisChecker()
	chk.Server = ln.Addr().String()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	out := chk.Check(ctx, domain.Target{ID: "T1", URL: "https://www.example.com"}, domain.DefaultSettings())
	if !out.Success {
		t.Fatalf("want success, got %+v", out)
	}
	if out.ExpiresAt == nil || out.ExpiresAt.Year() != 2030 {
		t.Fatalf("want 2030 expiry, got %v", out.ExpiresAt)
	}
	if out.Detail != "Fake Registrar" {
		t.Fatalf("want registrar detail, got %q", out.Detail)
	}
}

func TestTCPChecker_OpenAndClosedPort(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			_ = conn.Close()
		}
	}()

	port := ln.Addr().(*net.TCPAddr).Port
	st := domain.DefaultSettings()
	st.TCPPort = port

	chk := NewTCPChecker()
	out := chk.Check(context.Background(), domain.Target{ID: "T1", URL: "http://127.0.0.1"}, st)
	if !out.Success {
		t.Fatalf("want open port, got %+v", out)
	}

	ln.Close()
	out = chk.Check(context.Background(), domain.Target{ID: "T1", URL: "http://127.0.0.1"}, st)
	if out.Success {
		t.Fatalf("want closed port failure, got %+v", out)
	}
}

func TestRegistry_SelectsByCapability(t *testing.T) {
	reg := NewRegistry()
	tcp := NewTCPChecker()
	content := NewContentChecker()
	reg.Register(domain.CapTCP, tcp)
	reg.Register(domain.CapContentMatch, content)

	st := domain.DefaultSettings()
	st.Capabilities = []domain.Capability{domain.CapContentMatch, domain.CapDeep}

	got := reg.For(st)
	if len(got) != 1 {
		t.Fatalf("want 1 checker (deep unregistered), got %d", len(got))
	}
	if got[0] != Checker(content) {
		t.Fatalf("want content checker selected")
	}
}
