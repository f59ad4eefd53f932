package probe

import (
	"context"
	"net/http"
	"strings"

	"github.com/iammyeongho/pymonitor/internal/domain"
)

// securityHeaders are the response headers the security_headers
// capability expects to be present.
var securityHeaders = []string{
	"Strict-Transport-Security",
	"Content-Security-Policy",
	"X-Content-Type-Options",
	"X-Frame-Options",
}

// HeadersChecker verifies the target serves the baseline security
// headers. Missing headers are listed in the result message.
type HeadersChecker struct {
	Client *http.Client
}

func NewHeadersChecker() *HeadersChecker {
	return &HeadersChecker{Client: &http.Client{}}
}

func (h *HeadersChecker) Check(ctx context.Context, target domain.Target, _ domain.Settings) Result {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.URL, nil)
	if err != nil {
		return Result{Kind: "security_headers", Success: false, Message: err.Error()}
	}
	resp, err := h.Client.Do(req)
	if err != nil {
		return Result{Kind: "security_headers", Success: false, Message: err.Error()}
	}
	defer resp.Body.Close()

	var missing []string
	for _, name := range securityHeaders {
		if resp.Header.Get(name) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return Result{
			Kind:    "security_headers",
			Success: false,
			Message: "missing: " + strings.Join(missing, ", "),
		}
	}
	return Result{Kind: "security_headers", Success: true, Message: "all present"}
}
