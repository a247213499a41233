// Package mailer sends notification emails through an HTTP email API, SMTP, or the log.
package mailer

import (
	"context"
	"fmt"
	"strings"

	"github.com/k3a/html2text"
	"go.uber.org/zap"
)

// Result is the outcome of one send. Failures are values, not panics; callers decide what to do.
type Result struct {
	Success bool
	Err     error
}

// Sender delivers a single HTML email.
type Sender interface {
	Send(ctx context.Context, to, subject, html string) Result
}

// Config selects and configures the provider. APIKey wins over SMTPHost.
type Config struct {
	FromAddress string
	FromName    string
	APIKey      string
	APIBaseURL  string
	SMTPHost    string
	SMTPPort    int
	SMTPUser    string
	SMTPPass    string
}

// From returns the RFC 5322 From header value.
func (c Config) From() string {
	if c.FromName == "" {
		return c.FromAddress
	}
	return fmt.Sprintf("%s <%s>", c.FromName, c.FromAddress)
}

// New returns the sender matching cfg. With no provider configured, emails are only logged.
func New(cfg Config, logger *zap.Logger) Sender {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch {
	case cfg.APIKey != "":
		logger.Info("email provider: http api", zap.String("base_url", cfg.APIBaseURL))
		return NewAPISender(cfg, nil)
	case cfg.SMTPHost != "":
		logger.Info("email provider: smtp", zap.String("host", cfg.SMTPHost), zap.Int("port", cfg.SMTPPort))
		return NewSMTPSender(cfg)
	default:
		logger.Warn("no email provider configured; emails will be logged, not sent")
		return NewLogSender(logger)
	}
}

// PlainText renders the text/plain alternative of an HTML body.
func PlainText(html string) string {
	return strings.TrimSpace(html2text.HTML2Text(html))
}

func failed(err error) Result {
	return Result{Success: false, Err: err}
}

var sent = Result{Success: true}
