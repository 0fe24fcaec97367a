package services

import (
	"context"
	"errors"
	"time"

	"github.com/hypernova-labs/nfse-dashboard/internal/audit"
	"github.com/hypernova-labs/nfse-dashboard/internal/database"
	"github.com/hypernova-labs/nfse-dashboard/internal/models"
	"github.com/hypernova-labs/nfse-dashboard/internal/notify"
	"github.com/sirupsen/logrus"
)

// Errores de validación; se informan solo como notificación
var (
	ErrInvalidFilters   = errors.New("invalid filters")
	ErrNoSelection      = errors.New("no note selected")
	ErrNoteNotFound     = errors.New("note not in current results")
	ErrNoteNotSendable  = errors.New("note status does not allow sending")
	ErrInvalidEmail     = errors.New("invalid email address")
	ErrDuplicateEmail   = errors.New("email already registered")
	ErrNoRecipients     = errors.New("no active recipients")
	ErrUnknownSetting   = errors.New("unknown setting key")
	ErrUnknownProbe     = errors.New("unknown connection test")
	ErrSystemInactive   = errors.New("system is inactive")
	ErrUnknownEvent     = errors.New("unknown security event")
	ErrDispatchDisabled = errors.New("run dispatcher not configured")
)

// unknownErrorText se registra cuando la falla no trae mensaje
const unknownErrorText = "Erro desconhecido"

// Deps agrupa los colaboradores compartidos por los servicios de una sesión
type Deps struct {
	Client   database.Client
	Audit    *audit.Writer
	Notifier notify.Sink
	Logger   *logrus.Logger
	Now      func() time.Time
}

func (d Deps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now().UTC()
}

// record escribe la entrada de auditoría; las fallas solo se registran en el logger
func (d Deps) record(ctx context.Context, logType models.LogType, message, details string, count *int) {
	entry := models.LogEntry{
		Timestamp:  d.now().Format(time.RFC3339),
		Type:       logType,
		Message:    message,
		NotesCount: count,
	}
	if details != "" {
		entry.Details = models.StringPtr(details)
	}
	d.Audit.Record(ctx, entry)
}

func (d Deps) notify(n notify.Notification) {
	d.Notifier.Notify(n)
}

func errorText(err error) string {
	if err == nil || err.Error() == "" {
		return unknownErrorText
	}
	return err.Error()
}
