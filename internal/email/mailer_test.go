package email

import (
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestDisabledMailer(t *testing.T) {
	var m Mailer = Disabled{}
	assert.ErrorIs(t, m.SendTo("Teste", "corpo", []string{"a@b.com"}), ErrDisabled)
}

func TestNewSMTPMailerRequiresCredentials(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	_, err := NewSMTPMailer("", 587, "user", "pass", "Sistema NFSe", "sistema@empresa.com", logger)
	assert.ErrorIs(t, err, ErrDisabled)

	_, err = NewSMTPMailer("smtp.empresa.com", 587, "user", "", "Sistema NFSe", "sistema@empresa.com", logger)
	assert.ErrorIs(t, err, ErrDisabled)
}
