// Package sms sends text messages through an HTTP SMS gateway.
//
// Gateway contract: POST {base}/messages with {to, from, body} and a
// bearer token; a 2xx reply carries {id}.
package sms

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// ErrRejected is returned when the gateway refuses a message.
var ErrRejected = errors.New("sms: message rejected by gateway")

// Config configures one gateway client.
type Config struct {
	Name    string
	BaseURL string
	Token   string
	Sender  string
	Timeout time.Duration
}

// Client is an SMS gateway client. Safe for concurrent use.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *slog.Logger
}

// New creates a client.
func New(cfg Config, logger *slog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(_ *http.Request, _ []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		logger: logger,
	}
}

// Name identifies the gateway in logs and metrics.
func (c *Client) Name() string { return c.cfg.Name }

type sendRequest struct {
	To   string `json:"to"`
	From string `json:"from,omitempty"`
	Body string `json:"body"`
}

type sendResponse struct {
	ID      string `json:"id"`
	Success *bool  `json:"success,omitempty"`
}

// Send delivers body to an E.164 number and returns the gateway message ID.
// Gateway replies are included in the error for server-side logs only.
func (c *Client) Send(ctx context.Context, to, body string) (string, error) {
	payload, err := json.Marshal(sendRequest{To: to, From: c.cfg.Sender, Body: body})
	if err != nil {
		return "", fmt.Errorf("encoding message: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/messages", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	req.Header.Set("User-Agent", "soko-sms/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%s: sending request: %w", c.cfg.Name, err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("%s returned %d: %s", c.cfg.Name, resp.StatusCode, string(raw))
	}

	var out sendResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("%s: decoding reply: %w", c.cfg.Name, err)
	}
	if (out.Success != nil && !*out.Success) || out.ID == "" {
		return "", fmt.Errorf("%w: %s: %s", ErrRejected, c.cfg.Name, string(raw))
	}

	c.logger.DebugContext(ctx, "sms sent",
		slog.String("provider", c.cfg.Name),
		slog.String("provider_id", out.ID),
	)
	return out.ID, nil
}
