package mailer

import (
	"context"

	"github.com/sirupsen/logrus"
)

// NoopMailer is used when no email credentials are configured. It logs the
// message and reports success so that delivery never blocks on missing setup.
type NoopMailer struct {
	logger *logrus.Logger
}

// NewNoopMailer creates a mailer that drops every message
func NewNoopMailer(logger *logrus.Logger) *NoopMailer {
	return &NoopMailer{logger: logger}
}

// Send logs the message and returns nil
func (m *NoopMailer) Send(ctx context.Context, msg Message) error {
	m.logger.WithFields(logrus.Fields{
		"to":      msg.To,
		"subject": msg.Subject,
	}).Info("Email sending disabled, message dropped")
	return nil
}

// GetName returns the mailer name
func (m *NoopMailer) GetName() string {
	return "noop"
}
