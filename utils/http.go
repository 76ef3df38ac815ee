// utils/http.go
package utils

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// HTTPClient is shared by outbound service-to-service calls.
var HTTPClient = &http.Client{
	Timeout: 30 * time.Second,
}

// GetServiceJSON GETs base+path?query with the service token and decodes a JSON body into out.
func GetServiceJSON(ctx context.Context, client *http.Client, baseURL, path string, query url.Values, serviceToken string, out any) error {
	base, err := url.Parse(baseURL)
	if err != nil {
		return fmt.Errorf("invalid base URL '%s': %w", baseURL, err)
	}
	endpoint := base.JoinPath(path)
	endpoint.RawQuery = query.Encode()
	finalURL := endpoint.String()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, finalURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request to %s: %w", finalURL, err)
	}
	req.Header.Set("X-Service-Token", serviceToken)
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", finalURL, err)
	}
	defer func() {
		// drain so the connection can be reused
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("%s returned %d: %s", finalURL, resp.StatusCode, string(body))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", finalURL, err)
	}
	return nil
}
