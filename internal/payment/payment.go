// Package payment is a client for the payment gateway.
//
// Gateway contract:
//
//	POST {base}/orders   {amount, currency, receipt}          -> {id}
//	POST {base}/payments {amount, order_id, method, vpa}      -> {id, status}
//
// Amounts are sent in minor units. Requests use HTTP basic auth with the
// key pair.
package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"time"
)

// Config configures the client.
type Config struct {
	BaseURL   string
	KeyID     string
	KeySecret string
	Timeout   time.Duration
}

// Client calls the payment gateway. Safe for concurrent use.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *slog.Logger
}

// New creates a client.
func New(cfg Config, logger *slog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

type orderRequest struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
}

type paymentRequest struct {
	Amount  int64  `json:"amount"`
	OrderID string `json:"order_id"`
	Method  string `json:"method"`
	VPA     string `json:"vpa,omitempty"`
}

type reply struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// CreateOrder registers an amount to be collected; receipt is our order ID.
func (c *Client) CreateOrder(ctx context.Context, amount float64, currency, receipt string) (string, error) {
	var out reply
	if err := c.post(ctx, "/orders", orderRequest{Amount: minor(amount), Currency: currency, Receipt: receipt}, &out); err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", fmt.Errorf("payment gateway: order reply without id")
	}
	return out.ID, nil
}

// CreatePayment collects amount against a gateway order.
func (c *Client) CreatePayment(ctx context.Context, amount float64, orderID, method, payeeHandle string) (string, string, error) {
	var out reply
	req := paymentRequest{Amount: minor(amount), OrderID: orderID, Method: method, VPA: payeeHandle}
	if err := c.post(ctx, "/payments", req, &out); err != nil {
		return "", "", err
	}
	if out.ID == "" {
		return "", "", fmt.Errorf("payment gateway: payment reply without id")
	}
	if out.Status == "" {
		out.Status = "created"
	}
	return out.ID, out.Status, nil
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.SetBasicAuth(c.cfg.KeyID, c.cfg.KeySecret)
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("payment gateway %s: %w", path, err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 8192))
	c.logger.DebugContext(ctx, "payment gateway call",
		slog.String("path", path),
		slog.Int("status", resp.StatusCode),
		slog.Duration("duration", time.Since(start)),
	)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("payment gateway %s returned %d: %s", path, resp.StatusCode, string(raw))
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("payment gateway %s: decoding reply: %w", path, err)
	}
	return nil
}

func minor(amount float64) int64 {
	return int64(math.Round(amount * 100))
}
