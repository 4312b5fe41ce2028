package notify

import (
	"context"
	"fmt"
	"log"
)

// Template identifies an outbound message kind.
type Template string

const (
	TemplateVerifyEmail   Template = "verify_email"
	TemplatePasswordReset Template = "password_reset"
)

// Dispatcher delivers a token-bearing message to a user-controlled channel.
// Delivery is best effort; callers log failures and do not roll back the
// token that was issued for the message.
type Dispatcher interface {
	Send(ctx context.Context, template Template, recipient string, data map[string]string) error
}

// Message is a rendered notification ready for a mail provider.
type Message struct {
	Subject string
	Body    string
}

// Render builds the subject and plain-text body for a template. The data map
// carries the action URL and the expiry figure shown to the user.
func Render(template Template, data map[string]string) (Message, error) {
	switch template {
	case TemplateVerifyEmail:
		return Message{
			Subject: "Verify your email address",
			Body: fmt.Sprintf(
				"Welcome to Keyhaven!\n\nPlease verify your email address by visiting:\n\n%s\n\nThis link expires in %s hours.\n",
				data["url"], data["expiry_hours"]),
		}, nil
	case TemplatePasswordReset:
		return Message{
			Subject: "Reset your password",
			Body: fmt.Sprintf(
				"We received a request to reset your password.\n\nYou can set a new password by visiting:\n\n%s\n\nThis link expires in %s hours.\nIf you did not request this, you can ignore this email.\n",
				data["url"], data["expiry_hours"]),
		}, nil
	default:
		return Message{}, fmt.Errorf("unknown notification template: %s", template)
	}
}

// LogDispatcher writes a line per notification instead of delivering it.
// Used in development and tests. The message data is not logged because the
// URL embeds the token secret.
type LogDispatcher struct{}

// Send logs the delivery attempt.
func (d *LogDispatcher) Send(_ context.Context, template Template, recipient string, _ map[string]string) error {
	log.Printf("[NOTIFY] %s -> %s", template, recipient)
	return nil
}
