package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/albarami/wellbeing/internal/council"
)

// HTTPClient wraps http.Client with bounded retries and exponential
// backoff, shared by every verification tool.
type HTTPClient struct {
	client    *http.Client
	retries   int
	backoff   time.Duration
	userAgent string
}

func NewHTTPClient(timeout time.Duration, retries int, backoff time.Duration, userAgent string) *HTTPClient {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	if retries < 0 {
		retries = 0
	}
	if backoff <= 0 {
		backoff = 300 * time.Millisecond
	}
	return &HTTPClient{
		client:    &http.Client{Timeout: timeout},
		retries:   retries,
		backoff:   backoff,
		userAgent: userAgent,
	}
}

// GetJSON fetches url and decodes the JSON body into out. A 404 is
// reported as not-found; other non-2xx statuses as network failures.
func (c *HTTPClient) GetJSON(ctx context.Context, url string, headers map[string]string, out any) error {
	body, err := c.get(ctx, url, headers, "application/json")
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &council.ToolError{Kind: council.ErrKindParse, Err: fmt.Errorf("decoding response from %s: %w", url, err)}
	}
	return nil
}

// PostJSON posts a JSON body and decodes the JSON response into out.
func (c *HTTPClient) PostJSON(ctx context.Context, url string, headers map[string]string, payload, out any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	body, err := c.do(ctx, http.MethodPost, url, headers, b, "application/json")
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &council.ToolError{Kind: council.ErrKindParse, Err: fmt.Errorf("decoding response from %s: %w", url, err)}
	}
	return nil
}

// GetHTML fetches url and returns the raw body for scraping.
func (c *HTTPClient) GetHTML(ctx context.Context, url string) (string, error) {
	body, err := c.get(ctx, url, nil, "text/html")
	if err != nil {
		return "", err
	}
	return string(body), nil
}

func (c *HTTPClient) get(ctx context.Context, url string, headers map[string]string, accept string) ([]byte, error) {
	return c.do(ctx, http.MethodGet, url, headers, nil, accept)
}

func (c *HTTPClient) do(ctx context.Context, method, url string, headers map[string]string, payload []byte, accept string) ([]byte, error) {
	var lastErr error
	tries := c.retries + 1
	for attempt := 0; attempt < tries; attempt++ {
		var bodyReader io.Reader
		if payload != nil {
			bodyReader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", accept)
		if c.userAgent != "" {
			req.Header.Set("User-Agent", c.userAgent)
		}
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = classifyTransport(err)
		} else {
			body, readErr := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
			resp.Body.Close()
			switch {
			case readErr != nil:
				lastErr = classifyTransport(readErr)
			case resp.StatusCode == http.StatusNotFound:
				return nil, &council.ToolError{Kind: council.ErrKindNotFound, Err: fmt.Errorf("%s: %s", url, resp.Status)}
			case resp.StatusCode >= 200 && resp.StatusCode < 300:
				return body, nil
			default:
				lastErr = &council.ToolError{
					Kind: council.ErrKindNetwork,
					Err:  fmt.Errorf("%s: %s: %s", url, resp.Status, truncate(string(body), 300)),
				}
				// client errors other than 429 will not improve on retry
				if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
					return nil, lastErr
				}
			}
		}

		if attempt < tries-1 {
			select {
			case <-time.After(c.backoff * time.Duration(1<<attempt)):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
	return nil, lastErr
}

func classifyTransport(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &council.ToolError{Kind: council.ErrKindTimeout, Err: err}
	}
	var te *council.ToolError
	if errors.As(err, &te) {
		return err
	}
	return &council.ToolError{Kind: council.ErrKindNetwork, Err: err}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}
