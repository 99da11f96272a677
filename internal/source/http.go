package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"time"
)

const maxBody = 8 << 20

type httpGetter struct {
	client    *http.Client
	retries   int
	backoff   time.Duration
	userAgent string
}

// getRaw performs a GET, retrying network errors, 429 and 5xx responses.
func (g *httpGetter) getRaw(ctx context.Context, fullURL string, headers map[string]string) (int, []byte, error) {
	attempts := g.retries + 1
	if attempts < 1 {
		attempts = 1
	}
	var lastErr error
	for i := 0; i < attempts; i++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
		if err != nil {
			return 0, nil, err
		}
		if g.userAgent != "" {
			req.Header.Set("User-Agent", g.userAgent)
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}
		resp, err := g.client.Do(req)
		if err != nil {
			lastErr = err
			if i == attempts-1 {
				break
			}
			if err := g.sleep(ctx, g.backoffFor(i)); err != nil {
				return 0, nil, err
			}
			continue
		}
		body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxBody))
		_ = resp.Body.Close()
		if readErr != nil {
			return 0, nil, readErr
		}
		if (resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500) && i < attempts-1 {
			if err := g.sleep(ctx, parseRetryAfter(resp.Header.Get("Retry-After"), g.backoffFor(i))); err != nil {
				return 0, nil, err
			}
			continue
		}
		return resp.StatusCode, body, nil
	}
	if lastErr != nil {
		return 0, nil, fmt.Errorf("SRC_HTTP: %w", lastErr)
	}
	return 0, nil, errors.New("SRC_HTTP: request failed")
}

// getJSON fetches fullURL and decodes a 200 response into out.
func (g *httpGetter) getJSON(ctx context.Context, fullURL string, headers map[string]string, out any) (int, error) {
	status, body, err := g.getRaw(ctx, fullURL, headers)
	if err != nil {
		return status, err
	}
	if status != http.StatusOK {
		return status, fmt.Errorf("SRC_HTTP: %s returned status %d", fullURL, status)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return status, fmt.Errorf("SRC_HTTP: %w: %v", ErrMalformed, err)
	}
	return status, nil
}

func (g *httpGetter) backoffFor(attempt int) time.Duration {
	base := g.backoff
	if base <= 0 {
		base = 500 * time.Millisecond
	}
	return time.Duration(1<<attempt) * base
}

func (g *httpGetter) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func parseRetryAfter(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	secs, err := strconv.Atoi(value)
	if err != nil || secs < 0 {
		return fallback
	}
	if secs > 10 {
		secs = 10
	}
	return time.Duration(secs) * time.Second
}

func buildURL(base string, elems ...string) (string, error) {
	u, err := url.Parse(base)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("SRC_HTTP: invalid base url %q", base)
	}
	u.Path = path.Join(append([]string{"/", u.Path}, elems...)...)
	return u.String(), nil
}
