package notification

import (
	"context"
	"errors"
	"fmt"
	"net/smtp"
	"time"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"waterbill/internal/billing"
	"waterbill/internal/config"
)

// Service sends bill notification emails. The provider comes from
// configuration; an unconfigured service silently drops sends so billing
// runs never depend on email being set up.
type Service struct {
	cfg config.Config
}

func NewService(cfg config.Config) *Service {
	return &Service{cfg: cfg}
}

// Enabled reports whether a provider is configured.
func (s *Service) Enabled() bool {
	return s.cfg.Email.Provider != ""
}

// SendBill emails a bill summary to the customer.
func (s *Service) SendBill(ctx context.Context, to, customerName string, bill *billing.ComputedBill) error {
	if !s.Enabled() {
		return nil
	}
	if to == "" {
		return errors.New("notification: recipient address is empty")
	}

	subject := fmt.Sprintf("Water bill for %s", bill.BillingMonth)
	body := billEmailBody(customerName, bill, s.cfg.Billing.Currency)

	switch s.cfg.Email.Provider {
	case "sendgrid":
		return s.sendSendgrid(to, subject, body)
	case "smtp":
		return s.sendSMTP(to, subject, body)
	default:
		return fmt.Errorf("notification: unknown provider %q", s.cfg.Email.Provider)
	}
}

func billEmailBody(customerName string, bill *billing.ComputedBill, currency string) string {
	return fmt.Sprintf(`<html><body>
<p>Dear %s,</p>
<p>Your water bill for %s is ready.</p>
<table>
<tr><td>Usage</td><td>%.2f m&#179;</td></tr>
<tr><td>Usage charge</td><td>%s %.2f</td></tr>
<tr><td>Meter rental</td><td>%s %.2f</td></tr>
<tr><td>Sewerage</td><td>%s %.2f</td></tr>
<tr><td>Previous balance</td><td>%s %.2f</td></tr>
<tr><td><strong>Total due</strong></td><td><strong>%s %.2f</strong></td></tr>
</table>
<p>Please settle on or before %s.</p>
</body></html>`,
		customerName, bill.BillingMonth,
		bill.UsageM3,
		currency, bill.UsageCharge,
		currency, bill.RentalCharge,
		currency, bill.SewerageSurcharge,
		currency, bill.PriorBalance,
		currency, bill.GrandTotal,
		bill.DueDate.Format("January 2, 2006"))
}

func (s *Service) sendSendgrid(to, subject, body string) error {
	from := mail.NewEmail(s.cfg.Email.FromName, s.cfg.Email.From)
	toEmail := mail.NewEmail("", to)
	message := mail.NewSingleEmail(from, subject, toEmail, "", body)

	client := sendgrid.NewSendClient(s.cfg.Email.SendgridKey)
	resp, err := client.Send(message)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("sendgrid error %d: %s", resp.StatusCode, resp.Body)
	}
	return nil
}

func (s *Service) sendSMTP(to, subject, body string) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Email.SMTPHost, s.cfg.Email.SMTPPort)
	msg := []byte(fmt.Sprintf("To: %s\r\n"+
		"From: %s\r\n"+
		"Subject: %s\r\n"+
		"Date: %s\r\n"+
		"MIME-Version: 1.0\r\n"+
		"Content-Type: text/html; charset=\"UTF-8\"\r\n"+
		"\r\n"+
		"%s\r\n", to, s.cfg.Email.From, subject, time.Now().Format(time.RFC1123Z), body))

	var a smtp.Auth
	if s.cfg.Email.SMTPUser != "" {
		a = smtp.PlainAuth("", s.cfg.Email.SMTPUser, s.cfg.Email.SMTPPass, s.cfg.Email.SMTPHost)
	}
	return smtp.SendMail(addr, a, s.cfg.Email.From, []string{to}, msg)
}
