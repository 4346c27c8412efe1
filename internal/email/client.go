// Package email sends transactional mail through a ZeptoMail-style JSON API.
package email

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gojektech/heimdall/v6"
	"github.com/gojektech/heimdall/v6/httpclient"

	"venuly/internal/config"
	"venuly/internal/logger"
	"venuly/internal/metrics"
)

var ErrNotConfigured = errors.New("email sender not configured")

type Message struct {
	To       string
	ToName   string
	Subject  string
	HTML     string
	Template string // metrics label
}

// Sender is what the rest of the API depends on.
type Sender interface {
	Send(ctx context.Context, msg Message) error
	Configured() bool
}

type emailRequest struct {
	From     emailAddress  `json:"from"`
	To       []toRecipient `json:"to"`
	Subject  string        `json:"subject"`
	HtmlBody string        `json:"htmlbody"`
}

type emailAddress struct {
	Address string `json:"address"`
	Name    string `json:"name,omitempty"`
}

type toRecipient struct {
	Email emailAddress `json:"email_address"`
}

type Client struct {
	cfg    config.EmailConfig
	client heimdall.Doer
	log    *logger.Logger
}

// NewClient retries twice with a constant backoff and a 10s timeout per attempt.
func NewClient(cfg config.EmailConfig, log *logger.Logger) *Client {
	backoff := heimdall.NewConstantBackoff(500*time.Millisecond, 5*time.Millisecond)
	client := httpclient.NewClient(
		httpclient.WithHTTPTimeout(10*time.Second),
		httpclient.WithRetrier(heimdall.NewRetrier(backoff)),
		httpclient.WithRetryCount(2),
	)
	return &Client{cfg: cfg, client: client, log: log}
}

func (c *Client) Configured() bool {
	return c.cfg.APIURL != "" && c.cfg.APIKey != "" && c.cfg.From != ""
}

func (c *Client) Send(ctx context.Context, msg Message) (err error) {
	defer func() { metrics.RecordEmail(msg.Template, err) }()

	if !c.Configured() {
		return ErrNotConfigured
	}

	payload := emailRequest{
		From:     emailAddress{Address: c.cfg.From, Name: c.cfg.FromName},
		To:       []toRecipient{{Email: emailAddress{Address: msg.To, Name: msg.ToName}}},
		Subject:  msg.Subject,
		HtmlBody: msg.HTML,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal email payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.APIURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build email request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", c.cfg.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("email API returned %s: %s", resp.Status, string(respBody))
	}

	c.log.Info("EMAIL", fmt.Sprintf("Sent %q to %s", msg.Subject, msg.To))
	return nil
}
