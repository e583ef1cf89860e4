package mailer

import (
	"fmt"
	"os"

	"tixgate/src/lib"
)

// Notifier is the contract for outbound buyer notifications. Delivery is
// best-effort: failures are logged by callers and never roll back an
// issuance.
type Notifier interface {
	OrderConfirmation(to string, orderId string, eventTitle string, count int, total string) error
}

// SMTPNotifier sends order confirmations through the configured SMTP relay.
type SMTPNotifier struct{}

func NewSMTPNotifier() SMTPNotifier {
	return SMTPNotifier{}
}

func (SMTPNotifier) OrderConfirmation(to string, orderId string, eventTitle string, count int, total string) error {
	if to == "" {
		return nil
	}
	body := fmt.Sprintf(`
		<p>Your order <strong>%s</strong> for <strong>%s</strong> is confirmed.</p>
		<p>Tickets issued: %d</p>
		<p>Total: %s</p>
	`, orderId, eventTitle, count, total)
	return lib.SendMail(&lib.SendMailInput{
		From:     os.Getenv("SMTP_FROM"),
		FromName: "noreply",
		To:       []string{to},
		Subject:  fmt.Sprintf("Your tickets for %s", eventTitle),
		Body:     body,
		Html:     true,
	})
}
