package httpstore

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/loomline/designvault/pkg/storage"
)

// Client reads assets published under a public base URL.
type Client struct {
	http *resty.Client
}

// NewClient returns a store rooted at baseURL. Requests retry on 429 and 5xx.
func NewClient(baseURL string, timeout time.Duration) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("asset base url is required")
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(200 * time.Millisecond).
		SetRetryMaxWaitTime(time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if r == nil {
				return err != nil
			}
			return r.StatusCode() == http.StatusTooManyRequests || r.StatusCode() >= http.StatusInternalServerError
		})

	return &Client{http: httpClient}, nil
}

// Get fetches baseURL/key.
func (c *Client) Get(ctx context.Context, key string) ([]byte, string, error) {
	resp, err := c.http.R().SetContext(ctx).Get("/" + storage.EscapeKey(key))
	if err != nil {
		return nil, "", fmt.Errorf("fetch asset %q: %w", key, err)
	}
	switch {
	case resp.StatusCode() == http.StatusNotFound:
		return nil, "", fmt.Errorf("%w: %s", storage.ErrNotFound, key)
	case resp.IsError():
		return nil, "", fmt.Errorf("fetch asset %q: %s", key, resp.Status())
	}
	return resp.Body(), resp.Header().Get("Content-Type"), nil
}
