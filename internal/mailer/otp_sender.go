package mailer

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// OTPSender delivers a one-time passcode to a user through an external channel.
// The store writes that precede a send are already committed, so a failed send
// is reported to the caller without being rolled back.
type OTPSender interface {
	SendOTP(ctx context.Context, email, code string) error
}

// SMTPOTPSender delivers passcodes by email. Sends are bounded by a timeout so
// a hanging SMTP connection cannot stall the request indefinitely.
type SMTPOTPSender struct {
	mailer  *Mailer
	timeout time.Duration
}

// NewSMTPOTPSender creates an OTPSender backed by the given Mailer.
func NewSMTPOTPSender(mailer *Mailer, timeout time.Duration) *SMTPOTPSender {
	return &SMTPOTPSender{
		mailer:  mailer,
		timeout: timeout,
	}
}

func (s *SMTPOTPSender) SendOTP(ctx context.Context, email, code string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	htmlBody := fmt.Sprintf(`
		<h2>SolStyle Account Verification</h2>
		<p>Hi,</p>
		<p>Thank you for registering with SolStyle. Please use the following one-time passcode to verify your account:</p>
		<p><strong style="font-size: 24px;">%s</strong></p>
		<p>This code is valid for <strong>10 minutes</strong> and can only be used once.</p>
		<p>If you did not request this, please ignore this email.</p>
		<p>Thanks,<br>The SolStyle Team</p>
	`, code)

	// gomail has no context support, so the send runs in its own goroutine and
	// the caller stops waiting once the deadline passes.
	done := make(chan error, 1)
	go func() {
		done <- s.mailer.SendHTML([]string{email}, "SolStyle: Your One-Time Passcode for Verification", htmlBody)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// LogOTPSender logs the passcode instead of delivering it. It is the gateway
// implementation for non-production environments.
type LogOTPSender struct {
	logger *zerolog.Logger
}

// NewLogOTPSender creates an OTPSender that only logs.
func NewLogOTPSender(logger *zerolog.Logger) *LogOTPSender {
	return &LogOTPSender{logger: logger}
}

func (s *LogOTPSender) SendOTP(_ context.Context, email, code string) error {
	s.logger.Info().
		Str("email", email).
		Str("code", code).
		Msg("otp delivery disabled, code logged instead")

	return nil
}
