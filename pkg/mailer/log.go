package mailer

import (
	"context"

	"go.uber.org/zap"
)

// LogSender writes emails to the log instead of sending them (development).
type LogSender struct {
	logger *zap.Logger
}

// NewLogSender creates a log-only sender.
func NewLogSender(logger *zap.Logger) *LogSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSender{logger: logger}
}

// Send implements Sender and always succeeds.
func (s *LogSender) Send(_ context.Context, to, subject, html string) Result {
	s.logger.Info("email not sent (no provider configured)",
		zap.String("to", to),
		zap.String("subject", subject),
		zap.String("text", PlainText(html)),
	)
	return sent
}
