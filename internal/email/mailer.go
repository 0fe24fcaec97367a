// Package email entrega los emails de notificación del sistema.
package email

import "errors"

// ErrDisabled indica que no hay un proveedor de email configurado
var ErrDisabled = errors.New("email delivery not configured")

// Mailer envía un mismo mensaje a una lista de destinatarios
type Mailer interface {
	SendTo(subject, body string, recipients []string) error
}

// Disabled es el Mailer usado cuando no hay proveedor configurado
type Disabled struct{}

// SendTo siempre retorna ErrDisabled
func (Disabled) SendTo(subject, body string, recipients []string) error {
	return ErrDisabled
}
