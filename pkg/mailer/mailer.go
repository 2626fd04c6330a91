package mailer

import "context"

// Message is one outbound email
type Message struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

// Mailer defines the interface for sending emails
type Mailer interface {
	// Send delivers a single message. A returned error means the message was
	// not accepted and may be retried.
	Send(ctx context.Context, msg Message) error

	// GetName returns the name of the mailer implementation
	GetName() string
}
