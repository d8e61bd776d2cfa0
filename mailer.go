package authgate

import (
	"context"
	"fmt"
)

// Mailer delivers the reset link. The engine only ever hands it the opaque
// token; building the URL is the integrator's concern.
type Mailer interface {
	SendResetPasswordEmail(ctx context.Context, email, token string) error
}

// MailerFunc adapts a function to the Mailer interface.
type MailerFunc func(ctx context.Context, email, token string) error

func (f MailerFunc) SendResetPasswordEmail(ctx context.Context, email, token string) error {
	if f == nil {
		return nil
	}
	return f(ctx, email, token)
}

type noopMailer struct{}

func (noopMailer) SendResetPasswordEmail(context.Context, string, string) error { return nil }

// stdoutMailer is the development fallback: prints the reset link material
// instead of delivering it.
type stdoutMailer struct{}

func (stdoutMailer) SendResetPasswordEmail(_ context.Context, email, token string) error {
	fmt.Println("====== SENDING EMAIL NOTIFICATION =======")
	fmt.Printf("to: %s\n", email)
	fmt.Printf("link: /password-reset/%s\n", token)
	return nil
}

func normalizeMailer(m Mailer) Mailer {
	if m == nil {
		return noopMailer{}
	}
	return m
}
