package email

import (
	"crypto/tls"
	"fmt"
	"net/url"
	"strconv"

	"github.com/dajohi/goemail"
	"github.com/sirupsen/logrus"
)

// SMTPMailer envía emails por SMTP usando goemail
type SMTPMailer struct {
	smtp        *goemail.SMTP
	mailName    string
	mailAddress string
	logger      *logrus.Logger
}

// NewSMTPMailer crea un mailer SMTP; requiere host, usuario y contraseña
func NewSMTPMailer(host string, port int, user, password, fromName, fromAddress string, logger *logrus.Logger) (*SMTPMailer, error) {
	if host == "" || user == "" || password == "" {
		return nil, ErrDisabled
	}

	u := &url.URL{
		Scheme: "smtp",
		User:   url.UserPassword(user, password),
		Host:   host + ":" + strconv.Itoa(port),
	}
	// 465 usa TLS implícito
	if port == 465 {
		u.Scheme = "smtps"
	}

	client, err := goemail.NewSMTP(u.String(), &tls.Config{ServerName: host})
	if err != nil {
		return nil, fmt.Errorf("error creating SMTP client: %w", err)
	}

	return &SMTPMailer{
		smtp:        client,
		mailName:    fromName,
		mailAddress: fromAddress,
		logger:      logger,
	}, nil
}

// SendTo envía el mensaje con los destinatarios en BCC
func (m *SMTPMailer) SendTo(subject, body string, recipients []string) error {
	if len(recipients) == 0 {
		return nil
	}

	msg := goemail.NewMessage(m.mailAddress, subject, body)
	msg.SetName(m.mailName)
	for _, r := range recipients {
		msg.AddBCC(r)
	}

	if err := m.smtp.Send(msg); err != nil {
		return fmt.Errorf("error sending email via SMTP: %w", err)
	}

	m.logger.WithFields(logrus.Fields{
		"recipients": len(recipients),
		"subject":    subject,
	}).Info("Email sent successfully via SMTP")

	return nil
}
