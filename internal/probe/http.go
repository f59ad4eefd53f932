package probe

import (
	"context"
	"net/http"
	"time"

	"github.com/iammyeongho/pymonitor/internal/domain"
)

// HTTPChecker is the primary availability probe. 2xx/3xx counts as up;
// latency is measured end to end from request start to response.
type HTTPChecker struct {
	Client *http.Client
}

func NewHTTPChecker() *HTTPChecker {
	return &HTTPChecker{
		// The per-check deadline comes from the caller's context; the
		// client itself carries no timeout so settings stay in charge.
		Client: &http.Client{},
	}
}

func (h *HTTPChecker) Check(ctx context.Context, target domain.Target, _ domain.Settings) Result {
	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.URL, nil)
	if err != nil {
		return Result{Kind: "http", Success: false, Message: err.Error()}
	}

	resp, err := h.Client.Do(req)
	if err != nil {
		msg := err.Error()
		if ctx.Err() == context.DeadlineExceeded {
			msg = "timeout"
		}
		return Result{Kind: "http", Success: false, Message: msg}
	}
	defer resp.Body.Close()
	latency := time.Since(start)

	success := resp.StatusCode >= 200 && resp.StatusCode < 400
	return Result{
		Kind:       "http",
		Success:    success,
		StatusCode: resp.StatusCode,
		Latency:    durationPtr(latency),
		Message:    resp.Status,
	}
}
