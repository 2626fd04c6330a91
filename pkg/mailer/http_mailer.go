package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPMailer sends email through a transactional email JSON API that accepts
// {from, to, subject, html, text} with a bearer API key.
type HTTPMailer struct {
	apiURL string
	apiKey string
	from   string
	client *http.Client
}

// HTTPConfig holds configuration for the email API
type HTTPConfig struct {
	APIURL  string
	APIKey  string
	From    string // "Name <address>" or bare address
	Timeout time.Duration
}

// NewHTTPMailer creates a new email API client
func NewHTTPMailer(config HTTPConfig) *HTTPMailer {
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &HTTPMailer{
		apiURL: config.APIURL,
		apiKey: config.APIKey,
		from:   config.From,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// sendRequest represents the email API request structure
type sendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
	Text    string   `json:"text,omitempty"`
}

// errorResponse represents an error body returned by the email API
type errorResponse struct {
	Message string `json:"message"`
	Name    string `json:"name"`
}

// Send posts the message to the email API
func (m *HTTPMailer) Send(ctx context.Context, msg Message) error {
	if msg.To == "" {
		return fmt.Errorf("recipient is required")
	}

	body, err := json.Marshal(sendRequest{
		From:    m.from,
		To:      []string{msg.To},
		Subject: msg.Subject,
		HTML:    msg.HTML,
		Text:    msg.Text,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal email request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.apiURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create email request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+m.apiKey)

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send email request: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr errorResponse
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Message != "" {
			return fmt.Errorf("email API returned %d: %s", resp.StatusCode, apiErr.Message)
		}
		return fmt.Errorf("email API returned %d", resp.StatusCode)
	}

	return nil
}

// GetName returns the mailer name
func (m *HTTPMailer) GetName() string {
	return "http"
}
