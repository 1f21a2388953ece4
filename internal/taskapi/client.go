package taskapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"taskbridge/internal/config"
	"taskbridge/internal/constants"
	"taskbridge/internal/logger"
	apperrors "taskbridge/pkg/errors"
)

// Client is the low-level HTTP client for the task-management API.
// Authentication is either a bearer token (set after login, used by the
// registration handshake) or an agent API key (used by the worker).
type Client struct {
	baseURL    string
	prefix     string
	httpClient *http.Client
	logger     logger.Logger

	mu     sync.RWMutex
	token  string
	apiKey string
}

func NewClient(cfg config.TaskAPIConfig, log logger.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = constants.DefaultHTTPTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		prefix:  cfg.Prefix,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: log,
		apiKey: cfg.AgentAPIKey,
	}
}

// SetToken installs the bearer token used by subsequent requests.
// A token takes precedence over the API key.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

// Health probes the task API's liveness endpoint. It lives outside the
// API prefix and requires no authentication.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create health request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("task API health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("task API health returned status %d", resp.StatusCode)
	}
	return nil
}

// Request executes an API call under the configured prefix and decodes
// the JSON response into out when out is non-nil. Non-2xx responses are
// mapped onto application errors so callers can branch with
// errors.IsUnauthorized and friends.
func (c *Client) Request(ctx context.Context, method, path string, body, out interface{}) error {
	url := c.baseURL + c.prefix + path

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", constants.ContentTypeJSON)
	}

	c.mu.RLock()
	token, apiKey := c.token, c.apiKey
	c.mu.RUnlock()

	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	} else if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}

	c.logger.Debugw("Task API request", "method", method, "url", url)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apperrors.ErrServiceUnavailable.WithCause(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return apperrors.FromHTTPStatus(resp.StatusCode, string(raw))
	}

	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("failed to decode response from %s %s: %w", method, path, err)
		}
	}
	return nil
}

func (c *Client) Get(ctx context.Context, path string, out interface{}) error {
	return c.Request(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) Post(ctx context.Context, path string, body, out interface{}) error {
	return c.Request(ctx, http.MethodPost, path, body, out)
}

func (c *Client) Patch(ctx context.Context, path string, body, out interface{}) error {
	return c.Request(ctx, http.MethodPatch, path, body, out)
}

func (c *Client) Delete(ctx context.Context, path string) error {
	return c.Request(ctx, http.MethodDelete, path, nil, nil)
}

// Login authenticates with administrator credentials and installs the
// returned bearer token on the client.
func (c *Client) Login(ctx context.Context, email, password string) error {
	var resp struct {
		AccessToken string `json:"access_token"`
	}
	err := c.Post(ctx, "/auth/login", map[string]string{
		"email":    email,
		"password": password,
	}, &resp)
	if err != nil {
		return err
	}
	if resp.AccessToken == "" {
		return apperrors.ErrUnauthorized.WithDetail("message", "login response contained no access token")
	}

	c.SetToken(resp.AccessToken)
	return nil
}

// WebhookRegistration is a registration record owned by the task API.
// The secret is only returned at creation time.
type WebhookRegistration struct {
	ID     string   `json:"id"`
	URL    string   `json:"url"`
	Events []string `json:"events"`
	Secret string   `json:"secret,omitempty"`
}

func (c *Client) ListWebhooks(ctx context.Context) ([]WebhookRegistration, error) {
	var resp struct {
		Data []WebhookRegistration `json:"data"`
	}
	if err := c.Get(ctx, "/webhooks", &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

func (c *Client) CreateWebhook(ctx context.Context, url string, events []string) (WebhookRegistration, error) {
	var reg WebhookRegistration
	err := c.Post(ctx, "/webhooks", map[string]interface{}{
		"url":    url,
		"events": events,
	}, &reg)
	return reg, err
}

func (c *Client) DeleteWebhook(ctx context.Context, id string) error {
	return c.Delete(ctx, "/webhooks/"+id)
}
