package cmdop

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// HTTPClient talks JSON over HTTPS to a CMDOP server.
type HTTPClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// Option configures an HTTPClient.
type Option func(*HTTPClient)

// WithServer overrides the API endpoint (e.g. a self-hosted gateway).
func WithServer(baseURL string) Option {
	return func(c *HTTPClient) {
		if baseURL != "" {
			c.baseURL = baseURL
		}
	}
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *HTTPClient) {
		c.httpClient = client
	}
}

// NewHTTPClient creates a client authenticated with a CMDOP API key
// (cmd_xxx format).
func NewHTTPClient(apiKey string, opts ...Option) *HTTPClient {
	c := &HTTPClient{
		apiKey:  apiKey,
		baseURL: DefaultServer,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *HTTPClient) ExecuteShell(ctx context.Context, machine, command string, timeout time.Duration) (ShellResult, error) {
	if timeout <= 0 {
		timeout = DefaultShellTimeout
	}
	var result ShellResult
	err := c.post(ctx, "/v1/shell/execute", map[string]any{
		"machine":      machine,
		"command":      command,
		"timeout_secs": int(timeout.Seconds()),
	}, &result)
	return result, err
}

func (c *HTTPClient) ListFiles(ctx context.Context, machine, path string) ([]FileEntry, error) {
	var resp struct {
		Entries []FileEntry `json:"entries"`
	}
	err := c.post(ctx, "/v1/files/list", map[string]any{
		"machine": machine,
		"path":    path,
	}, &resp)
	return resp.Entries, err
}

func (c *HTTPClient) ReadFile(ctx context.Context, machine, path string) ([]byte, error) {
	var resp struct {
		Content string `json:"content"` // base64
	}
	if err := c.post(ctx, "/v1/files/read", map[string]any{
		"machine": machine,
		"path":    path,
	}, &resp); err != nil {
		return nil, err
	}
	data, err := base64.StdEncoding.DecodeString(resp.Content)
	if err != nil {
		return nil, fmt.Errorf("failed to decode file content: %w", err)
	}
	return data, nil
}

func (c *HTTPClient) FileInfo(ctx context.Context, machine, path string) (FileInfo, error) {
	var info FileInfo
	err := c.post(ctx, "/v1/files/info", map[string]any{
		"machine": machine,
		"path":    path,
	}, &info)
	return info, err
}

func (c *HTTPClient) RunAgent(ctx context.Context, machine, prompt, model string) (AgentResult, error) {
	body := map[string]any{
		"machine": machine,
		"prompt":  prompt,
	}
	if model != "" {
		body["model"] = model
	}
	var result AgentResult
	err := c.post(ctx, "/v1/agent/run", body, &result)
	return result, err
}

func (c *HTTPClient) ResolveMachine(ctx context.Context, hostname string) (string, error) {
	var resp struct {
		Hostname string `json:"hostname"`
	}
	err := c.post(ctx, "/v1/machines/resolve", map[string]any{
		"hostname": hostname,
	}, &resp)
	return resp.Hostname, err
}

func (c *HTTPClient) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

func (c *HTTPClient) post(ctx context.Context, path string, body any, out any) error {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+path, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("X-Request-ID", uuid.NewString())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		apiErr := &APIError{Status: resp.StatusCode, Message: string(respBody)}
		var parsed struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		}
		if json.Unmarshal(respBody, &parsed) == nil && parsed.Message != "" {
			apiErr.Code = parsed.Code
			apiErr.Message = parsed.Message
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}
