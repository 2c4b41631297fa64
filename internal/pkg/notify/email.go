package notify

import (
	"context"
	"errors"

	"github.com/subalert/subalert/internal/pkg/mail"
)

// EmailSender delivers reminders over SMTP.
type EmailSender struct{}

// NewEmailSender creates the email channel sender.
func NewEmailSender() *EmailSender {
	return &EmailSender{}
}

func (s *EmailSender) Name() string {
	return ChannelEmail
}

// Send delivers the message via SMTP. net/smtp has no context support, so the
// send runs in a goroutine and the result is abandoned on cancellation; the
// caller records a timeout failure and the retry sweep covers the rest.
func (s *EmailSender) Send(ctx context.Context, msg Message) (string, error) {
	if msg.Recipient == "" {
		return "", errors.New("notify: email message has no recipient")
	}

	done := make(chan error, 1)
	go func() {
		done <- mail.SendMail(msg.Recipient, msg.Subject, msg.Content)
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case err := <-done:
		if err != nil {
			return "", err
		}
		return `{"delivered":true}`, nil
	}
}
