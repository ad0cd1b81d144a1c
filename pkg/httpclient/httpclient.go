// Package httpclient provides small generic helpers for JSON REST endpoints.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"slices"
)

// StatusError is returned when the response status is not in the accepted set.
type StatusError struct {
	StatusCode int
	Body       []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.StatusCode)
}

// GetResource GETs baseURL+endpoint and decodes the JSON body into T.
func GetResource[T any](ctx context.Context, client *http.Client, baseURL, endpoint string, acceptedStatuses []int) (T, error) {
	var zero T

	body, err := GetRaw(ctx, client, baseURL, endpoint, acceptedStatuses)
	if err != nil {
		return zero, err
	}

	var resource T
	if err := json.Unmarshal(body, &resource); err != nil {
		return zero, fmt.Errorf("couldn't decode response from %s: %w", endpoint, err)
	}
	return resource, nil
}

// GetRaw GETs baseURL+endpoint and returns the undecoded body.
func GetRaw(ctx context.Context, client *http.Client, baseURL, endpoint string, acceptedStatuses []int) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("couldn't build request for %s: %w", endpoint, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("couldn't get %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("couldn't read response from %s: %w", endpoint, err)
	}

	if !slices.Contains(acceptedStatuses, resp.StatusCode) {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: body}
	}
	return body, nil
}

// PostResource POSTs an optional JSON payload to baseURL+endpoint with extra
// headers and decodes the JSON response into T.
func PostResource[T any](ctx context.Context, client *http.Client, baseURL, endpoint string, payload any, headers map[string]string, acceptedStatuses []int) (T, error) {
	var zero T

	var buf bytes.Buffer
	if payload != nil {
		if err := json.NewEncoder(&buf).Encode(payload); err != nil {
			return zero, fmt.Errorf("couldn't encode request for %s: %w", endpoint, err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+endpoint, &buf)
	if err != nil {
		return zero, fmt.Errorf("couldn't build request for %s: %w", endpoint, err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return zero, fmt.Errorf("couldn't post %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return zero, fmt.Errorf("couldn't read response from %s: %w", endpoint, err)
	}

	if !slices.Contains(acceptedStatuses, resp.StatusCode) {
		return zero, &StatusError{StatusCode: resp.StatusCode, Body: body}
	}

	var resource T
	if err := json.Unmarshal(body, &resource); err != nil {
		return zero, fmt.Errorf("couldn't decode response from %s: %w", endpoint, err)
	}
	return resource, nil
}
