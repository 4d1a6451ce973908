package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"osu-leaderboard/internal/components/telemetry"
	"strings"

	"github.com/jordan-wright/email"
)

const report_email_send = "email.send"

type SmtpConfig struct {
	Server       string   `json:"server"`
	Port         int      `json:"port"`
	EmailAddress string   `json:"email_address"`
	Password     string   `json:"password"`
	To           []string `json:"to"`
}

// Enabled is true when there is enough configuration to send mail.
func (c SmtpConfig) Enabled() bool {
	return c.Server != "" && c.Port > 0 && c.EmailAddress != "" && len(c.To) > 0
}

// Email sends failure notices to the operators of an unattended run.
type Email struct {
	config SmtpConfig
	tel    telemetry.API
	send   func(mail *email.Email, addr string, auth smtp.Auth) error
}

func NewEmail(config SmtpConfig, tel telemetry.API) Email {
	return Email{
		config: config,
		tel:    telemetry.NewScopedAPI("notify", tel),
		send: func(mail *email.Email, addr string, auth smtp.Auth) error {
			return mail.Send(addr, auth)
		},
	}
}

// Compose builds the failure message without sending it.
func (e Email) Compose(subject, body string) *email.Email {
	mail := email.NewEmail()
	mail.From = fmt.Sprintf("osu! leaderboard <%s>", e.config.EmailAddress)
	mail.To = e.config.To
	mail.Subject = subject
	mail.Text = []byte(body)
	return mail
}

// NotifyFailure sends a failure notice, it is a no-op when SMTP is not configured.
func (e Email) NotifyFailure(ctx context.Context, subject, body string) error {
	if !e.config.Enabled() {
		return nil
	}

	mail := e.Compose(subject, body)
	addr := fmt.Sprintf("%s:%d", e.config.Server, e.config.Port)

	err := e.send(
		mail,
		addr,
		smtp.PlainAuth("", e.config.EmailAddress, e.config.Password, e.config.Server),
	)
	if err != nil && strings.Contains(err.Error(), "server doesn't support AUTH") {
		err = e.send(mail, addr, nil)
	}
	if err != nil {
		e.tel.ReportBroken(report_email_send, err, addr)
		return err
	}

	e.tel.ReportDebug("sent failure notice", telemetry.KV{Key: "to", Value: strings.Join(e.config.To, ",")})
	return nil
}
