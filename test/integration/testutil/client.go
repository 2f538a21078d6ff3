package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"
)

type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	Actor      string
}

func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		Actor: "integration-tests",
	}
}

type Response struct {
	*http.Response
	Body []byte
}

func (r *Response) DecodeJSON(target any) error {
	return json.Unmarshal(r.Body, target)
}

// DecodeData unwraps the {"data": ...} envelope every success response uses.
func DecodeData[T any](t *testing.T, resp *Response) T {
	t.Helper()
	var envelope struct {
		Data T `json:"data"`
	}
	if err := resp.DecodeJSON(&envelope); err != nil {
		t.Fatalf("failed to decode response: %v. Body: %s", err, resp.Body)
	}
	return envelope.Data
}

func (c *Client) GET(t *testing.T, path string) *Response {
	t.Helper()
	return c.request(t, http.MethodGet, path, nil, nil)
}

func (c *Client) POST(t *testing.T, path string, body any) *Response {
	t.Helper()
	return c.request(t, http.MethodPost, path, body, nil)
}

// POSTVersioned sends If-Match for optimistic concurrency.
func (c *Client) POSTVersioned(t *testing.T, path string, version int64, body any) *Response {
	t.Helper()
	return c.request(t, http.MethodPost, path, body, map[string]string{"If-Match": fmt.Sprintf("%q", fmt.Sprint(version))})
}

func (c *Client) PATCH(t *testing.T, path string, version int64, body any) *Response {
	t.Helper()
	return c.request(t, http.MethodPatch, path, body, map[string]string{"If-Match": fmt.Sprint(version)})
}

func (c *Client) DELETE(t *testing.T, path string, version int64) *Response {
	t.Helper()
	return c.request(t, http.MethodDelete, path, nil, map[string]string{"If-Match": fmt.Sprint(version)})
}

func (c *Client) request(t *testing.T, method, path string, body any, headers map[string]string) *Response {
	t.Helper()

	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal request body: %v", err)
		}
		reqBody = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequestWithContext(context.Background(), method, c.BaseURL+path, reqBody)
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Actor-ID", c.Actor)
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}

	return &Response{Response: resp, Body: respBody}
}

// WaitForHealthy polls the health endpoint until the service is ready.
func (c *Client) WaitForHealthy(t *testing.T, maxWait time.Duration) {
	t.Helper()

	deadline := time.Now().Add(maxWait)
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for time.Now().Before(deadline) {
		resp, err := c.HTTPClient.Get(c.BaseURL + "/health")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		<-ticker.C
	}

	t.Fatalf("service at %s did not become healthy within %v", c.BaseURL, maxWait)
}

func AssertStatusCode(t *testing.T, resp *Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Fatalf("expected status %d, got %d. Body: %s", expected, resp.StatusCode, resp.Body)
	}
}

func AssertErrorCode(t *testing.T, resp *Response, code string) {
	t.Helper()
	var errResp struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if err := resp.DecodeJSON(&errResp); err != nil {
		t.Fatalf("failed to decode error: %v. Body: %s", err, resp.Body)
	}
	if errResp.Code != code {
		t.Fatalf("expected error code %s, got %s (%s)", code, errResp.Code, errResp.Message)
	}
}

func AssertContains(t *testing.T, resp *Response, substr string) {
	t.Helper()
	if !strings.Contains(string(resp.Body), substr) {
		t.Fatalf("response body does not contain %q. Body: %s", substr, resp.Body)
	}
}
