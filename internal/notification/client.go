package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

var (
	ErrClientConfig = errors.New("notification client: invalid config")
	ErrSendRejected = errors.New("notification client: send rejected")
)

// ClientConfig is the worker-side configuration for reaching the notifier.
type ClientConfig struct {
	BaseURL      string        `env:"NOTIFIER_BASE_URL,required"`
	ServiceToken string        `env:"NOTIFIER_SERVICE_TOKEN,required"`
	Timeout      time.Duration `env:"NOTIFIER_TIMEOUT" envDefault:"10s"`
}

// Client calls the notifier's internal send endpoint. Every call is bounded
// by the configured timeout; any transport error or non-2xx response is
// returned to the caller so the queue can retry the delivery.
type Client struct {
	baseURL string
	token   string
	httpc   *http.Client
}

// NewClient creates a Client from cfg.
func NewClient(cfg ClientConfig) (*Client, error) {
	u, err := url.Parse(cfg.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: base url %q", ErrClientConfig, cfg.BaseURL)
	}
	if cfg.ServiceToken == "" {
		return nil, fmt.Errorf("%w: service token is required", ErrClientConfig)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.ServiceToken,
		httpc:   &http.Client{Timeout: timeout},
	}, nil
}

// Send delivers one notification create request.
func (c *Client) Send(ctx context.Context, in CreateInput) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("notification client: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/notifications/send", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("notification client: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(ServiceTokenHeader, c.token)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("notification client: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: status %d: %s", ErrSendRejected, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	return nil
}
