package email

import (
	"fmt"

	"github.com/resend/resend-go/v2"
	"github.com/sirupsen/logrus"
)

// ResendService maneja el envío de correos electrónicos usando Resend API
type ResendService struct {
	client    *resend.Client
	fromEmail string
	logger    *logrus.Logger
}

// NewResendService crea una nueva instancia de ResendService
func NewResendService(apiKey, fromName, fromAddress string, logger *logrus.Logger) *ResendService {
	from := fromAddress
	if fromName != "" {
		from = fmt.Sprintf("%s <%s>", fromName, fromAddress)
	}
	return &ResendService{
		client:    resend.NewClient(apiKey),
		fromEmail: from,
		logger:    logger,
	}
}

// SendTo envía el mensaje de texto a todos los destinatarios
func (s *ResendService) SendTo(subject, body string, recipients []string) error {
	if len(recipients) == 0 {
		return nil
	}

	request := &resend.SendEmailRequest{
		From:    s.fromEmail,
		To:      recipients,
		Subject: subject,
		Text:    body,
	}

	result, err := s.client.Emails.Send(request)
	if err != nil {
		return fmt.Errorf("error sending email via Resend: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"email_id":   result.Id,
		"recipients": len(recipients),
		"subject":    subject,
	}).Info("Email sent successfully via Resend")

	return nil
}
