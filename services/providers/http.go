package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"
)

// postJSON executes a JSON POST with bounded retries on transport errors and
// 5xx responses. 429 is returned to the caller unretried; the router's own
// rate gate is the primary defense and a provider-side 429 should trigger
// fallback instead of hammering the same endpoint.
func postJSON(ctx context.Context, client *http.Client, provider string, cfg Config, url string, headers map[string]string, payload any) ([]byte, int, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, 0, NewProviderError(provider, "MARSHAL_ERROR", "failed to marshal request", 0, false, err)
	}

	var respBody []byte
	var status int
	var lastErr error

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, 0, NewProviderError(provider, "CANCELLED", "request cancelled", 0, false, ctx.Err())
			case <-time.After(cfg.RetryDelay * time.Duration(attempt)):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return nil, 0, NewProviderError(provider, "REQUEST_ERROR", "failed to create request", 0, false, err)
		}
		req.Header.Set("Content-Type", "application/json")
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err := client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		respBody, err = io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = err
			continue
		}

		status = resp.StatusCode
		if status >= 500 {
			lastErr = NewProviderError(provider, "SERVER_ERROR", string(respBody), status, true, nil)
			continue
		}
		return respBody, status, nil
	}

	return nil, status, NewProviderError(provider, "HTTP_ERROR", "request failed after retries", status, true, lastErr)
}
