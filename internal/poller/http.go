package poller

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/ryhan5/aicademy/internal/record"
)

// HTTPStatusChecker queries GET /status/{contentType}?courseId= on the server.
type HTTPStatusChecker struct {
	client *resty.Client
}

type errorBody struct {
	Error string `json:"error"`
}

func NewHTTPStatusChecker(baseURL string, timeout time.Duration) *HTTPStatusChecker {
	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetHeader("Accept", "application/json")
	if timeout > 0 {
		client.SetTimeout(timeout)
	}
	return &HTTPStatusChecker{client: client}
}

// CheckStatus implements StatusChecker.
func (c *HTTPStatusChecker) CheckStatus(ctx context.Context, courseID string, contentType record.ContentType) (*record.Record, error) {
	var rec record.Record
	var apiErr errorBody
	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParam("courseId", courseID).
		SetResult(&rec).
		SetError(&apiErr).
		Get("/status/" + url.PathEscape(string(contentType)))
	if err != nil {
		return nil, fmt.Errorf("client.Get(status) > %w", err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return nil, fmt.Errorf("status %s/%s > %w", courseID, contentType, record.ErrNotFound)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("status request failed with %d: %s", resp.StatusCode(), apiErr.Error)
	}
	return &rec, nil
}
