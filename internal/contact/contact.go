// Package contact validates and delivers messages sent through the public
// contact form.
package contact

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
)

// MaxMessageLength bounds the message body.
const MaxMessageLength = 5000

// ErrInvalidMessage is wrapped by every validation failure.
var ErrInvalidMessage = errors.New("invalid contact message")

// Message is a contact form submission.
type Message struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Message string `json:"message"`
}

// Validate trims the fields in place and checks them.
func (m *Message) Validate() error {
	m.Name = strings.TrimSpace(m.Name)
	m.Email = strings.TrimSpace(m.Email)
	m.Message = strings.TrimSpace(m.Message)

	switch {
	case m.Name == "":
		return fmt.Errorf("%w: name is required", ErrInvalidMessage)
	case m.Email == "":
		return fmt.Errorf("%w: email is required", ErrInvalidMessage)
	case m.Message == "":
		return fmt.Errorf("%w: message is required", ErrInvalidMessage)
	case len(m.Message) > MaxMessageLength:
		return fmt.Errorf("%w: message is longer than %d characters", ErrInvalidMessage, MaxMessageLength)
	}

	addr, err := mail.ParseAddress(m.Email)
	if err != nil || addr.Address != m.Email {
		return fmt.Errorf("%w: email address is not valid", ErrInvalidMessage)
	}
	return nil
}

// Subject is the subject line used for delivered messages.
func (m Message) Subject() string {
	return "New inquiry from " + m.Name
}

// Body renders the plain text body of the delivered message.
func (m Message) Body() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Name: %s\n", m.Name)
	fmt.Fprintf(&b, "Email: %s\n\n", m.Email)
	b.WriteString(m.Message)
	b.WriteString("\n")
	return b.String()
}

// Sender delivers a validated message.
type Sender interface {
	Send(ctx context.Context, m Message) error
}

// LogSender writes messages to the log. Used when no mail service is set up.
type LogSender struct {
	Logger *slog.Logger
}

func (s LogSender) Send(ctx context.Context, m Message) error {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "contact message received",
		"name", m.Name, "email", m.Email, "length", len(m.Message))
	return nil
}
