package probe

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/iammyeongho/pymonitor/internal/domain"
)

// maxContentBytes bounds how much of a response body the content checker
// reads when looking for the expected substring.
const maxContentBytes = 1 << 20

// ContentChecker fetches the target and verifies the body contains the
// configured substring (content_match capability).
type ContentChecker struct {
	Client *http.Client
}

func NewContentChecker() *ContentChecker {
	return &ContentChecker{Client: &http.Client{}}
}

func (c *ContentChecker) Check(ctx context.Context, target domain.Target, settings domain.Settings) Result {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.URL, nil)
	if err != nil {
		return Result{Kind: "content", Success: false, Message: err.Error()}
	}
	resp, err := c.Client.Do(req)
	if err != nil {
		return Result{Kind: "content", Success: false, Message: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxContentBytes))
	if err != nil {
		return Result{Kind: "content", Success: false, Message: err.Error()}
	}

	if !strings.Contains(string(body), settings.ContentMatch) {
		return Result{
			Kind:    "content",
			Success: false,
			Message: fmt.Sprintf("body does not contain %q", settings.ContentMatch),
		}
	}
	return Result{Kind: "content", Success: true, Message: "match"}
}
