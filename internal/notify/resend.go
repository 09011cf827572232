// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	// DefaultResendURL is the Resend email endpoint.
	DefaultResendURL = "https://api.resend.com/emails"

	sendTimeout = 10 * time.Second

	// maxErrorBody caps how much of a failed response is kept in the error.
	maxErrorBody = 512
)

// ResendClient sends mail through the Resend HTTP API.
type ResendClient struct {
	apiKey   string
	endpoint string
	client   *http.Client
}

// NewResendClient creates a client. An empty endpoint uses DefaultResendURL.
func NewResendClient(apiKey, endpoint string) (*ResendClient, error) {
	if apiKey == "" {
		return nil, errors.New("resend API key is required")
	}
	if endpoint == "" {
		endpoint = DefaultResendURL
	}
	return &ResendClient{
		apiKey:   apiKey,
		endpoint: endpoint,
		client:   &http.Client{Timeout: sendTimeout},
	}, nil
}

type resendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

// Send posts the message. Any non-2xx response is returned as an error
// carrying the status and the start of the response body.
func (c *ResendClient) Send(ctx context.Context, msg Message) error {
	body, err := json.Marshal(resendRequest{
		From:    msg.From,
		To:      msg.To,
		Subject: msg.Subject,
		HTML:    msg.HTML,
	})
	if err != nil {
		return fmt.Errorf("encoding email: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating email request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("email request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("email provider returned %d: %s", resp.StatusCode, bytes.TrimSpace(excerpt))
	}

	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

var _ Notifier = (*ResendClient)(nil)
