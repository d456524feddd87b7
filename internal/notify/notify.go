// Package notify delivers outbound email and fans realtime notifications
// out to connected clients.
package notify

import (
	"context"
	"fmt"

	"dealora.org/internal/obs"
)

// Dispatcher sends formatted email content. The identity core awaits the
// send before reporting success so delivery was at least attempted, but it
// does not retry; retry policy belongs to the mail transport.
type Dispatcher interface {
	Send(ctx context.Context, toEmail, subject, htmlBody string) error
}

// DispatcherFunc adapts a function to the Dispatcher interface.
type DispatcherFunc func(ctx context.Context, toEmail, subject, htmlBody string) error

func (f DispatcherFunc) Send(ctx context.Context, toEmail, subject, htmlBody string) error {
	return f(ctx, toEmail, subject, htmlBody)
}

// LogDispatcher writes the mail to the structured log instead of sending
// it. Used in development and as the default when SMTP is not configured.
type LogDispatcher struct{}

func (LogDispatcher) Send(_ context.Context, toEmail, subject, _ string) error {
	obs.LogRequest(map[string]any{
		"level":   "info",
		"msg":     "mail_dispatched",
		"to":      toEmail,
		"subject": subject,
	})
	return nil
}

// ConfirmEmailBody renders the confirm-your-email message carrying the OTP.
func ConfirmEmailBody(code string) (subject, html string) {
	subject = "Confirm your email"
	html = fmt.Sprintf(
		`<p>Welcome to Dealora!</p><p>Your confirmation code is <b>%s</b>. It expires in 10 minutes.</p>`,
		code,
	)
	return subject, html
}

// ResetPasswordBody renders the password-reset message carrying the OTP.
func ResetPasswordBody(code string) (subject, html string) {
	subject = "Reset your password"
	html = fmt.Sprintf(
		`<p>Use code <b>%s</b> to reset your Dealora password. It expires in 10 minutes.</p>`,
		code,
	)
	return subject, html
}
