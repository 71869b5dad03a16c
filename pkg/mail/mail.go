package mail

import (
	"context"
	"errors"
)

// ErrDisabled signals that outbound delivery is switched off via configuration.
var ErrDisabled = errors.New("mail: delivery disabled")

// Message represents an outbound email.
type Message struct {
	From    string
	To      []string
	Subject string
	Body    string
}

// Mailer defines behaviour for sending email messages.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// Disabled is a Mailer that rejects every message with ErrDisabled.
type Disabled struct{}

func (Disabled) Send(context.Context, Message) error {
	return ErrDisabled
}
