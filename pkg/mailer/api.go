package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const apiTimeout = 10 * time.Second

// APISender posts emails to a Resend-compatible JSON API (POST {base}/emails).
type APISender struct {
	cfg    Config
	client *http.Client
}

type apiRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
	Text    string   `json:"text,omitempty"`
}

// NewAPISender creates an API sender. A nil client gets a default one with a timeout.
func NewAPISender(cfg Config, client *http.Client) *APISender {
	if client == nil {
		client = &http.Client{Timeout: apiTimeout}
	}
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = "https://api.resend.com"
	}
	return &APISender{cfg: cfg, client: client}
}

// Send implements Sender.
func (s *APISender) Send(ctx context.Context, to, subject, html string) Result {
	body, err := json.Marshal(apiRequest{
		From:    s.cfg.From(),
		To:      []string{to},
		Subject: subject,
		HTML:    html,
		Text:    PlainText(html),
	})
	if err != nil {
		return failed(fmt.Errorf("marshal email: %w", err))
	}
	url := strings.TrimRight(s.cfg.APIBaseURL, "/") + "/emails"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return failed(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return failed(fmt.Errorf("send email: %w", err))
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return failed(fmt.Errorf("email api status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))))
	}
	return sent
}
