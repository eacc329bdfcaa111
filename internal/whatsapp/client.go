// Package whatsapp sends composed messages with the WhatsApp Cloud API.
package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/myrjola/flowcast/internal/compose"
	"github.com/myrjola/flowcast/internal/errors"
)

var ErrUnsupportedMessage = errors.NewSentinel("unsupported message")

// Config holds the channel credentials. The token is sent as a bearer token.
type Config struct {
	BaseURL       string
	PhoneNumberID string
	Token         string
	// Timeout bounds every HTTP request in addition to the context deadline.
	Timeout time.Duration
}

type Client struct {
	endpoint string
	token    string
	http     *http.Client
	logger   *slog.Logger
}

// NewClient validates cfg and creates a Client.
func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.Token == "" || cfg.PhoneNumberID == "" {
		return nil, errors.New("whatsapp token and phone number id are required")
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "parse base url", slog.String("base_url", cfg.BaseURL))
	}
	endpoint := base.JoinPath(cfg.PhoneNumberID, "messages")
	return &Client{
		endpoint: endpoint.String(),
		token:    cfg.Token,
		http:     &http.Client{Timeout: cfg.Timeout},
		logger:   logger.With(slog.String("source", "whatsapp")),
	}, nil
}

// APIError is a non-2xx response from the Cloud API.
type APIError struct {
	StatusCode int
	Code       int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("whatsapp api status %d", e.StatusCode)
	}
	return fmt.Sprintf("whatsapp api status %d code %d: %s", e.StatusCode, e.Code, e.Message)
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error"`
}

type sendResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

// Send delivers msg to the phone number to.
func (c *Client) Send(ctx context.Context, to string, msg compose.Message) error {
	payload, err := Payload(to, msg)
	if err != nil {
		return err
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, "marshal payload")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "create request")
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(err, "post message")
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.logger.LogAttrs(ctx, slog.LevelWarn, "could not close response body",
				errors.SlogError(errors.Wrap(closeErr, "close body")))
		}
	}()
	const maxBody = 1 << 20
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return errors.Wrap(err, "read response")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var e errorResponse
		if json.Unmarshal(data, &e) == nil {
			apiErr.Code, apiErr.Message = e.Error.Code, e.Error.Message
		}
		return errors.Wrap(apiErr, "post message", slog.Int("status", resp.StatusCode))
	}
	var sent sendResponse
	if err = json.Unmarshal(data, &sent); err == nil && len(sent.Messages) > 0 {
		c.logger.LogAttrs(ctx, slog.LevelDebug, "message accepted", slog.String("message_id", sent.Messages[0].ID))
	}
	return nil
}
