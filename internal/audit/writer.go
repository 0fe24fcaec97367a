// Package audit escribe las entradas append-only de system_logs.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hypernova-labs/nfse-dashboard/internal/database"
	"github.com/hypernova-labs/nfse-dashboard/internal/models"
	"github.com/sirupsen/logrus"
)

// ClientAddress es la dirección registrada cuando no se conoce la IP real
const ClientAddress = "client"

// Writer agrega entradas de auditoría al cliente de datos
type Writer struct {
	client database.Client
	logger *logrus.Logger
	now    func() time.Time

	secure    bool
	userAgent string
	ipAddress string
}

// NewWriter crea un writer que persiste las entradas tal cual
func NewWriter(client database.Client, logger *logrus.Logger) *Writer {
	return &Writer{
		client: client,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// NewSecureWriter crea un writer que redacta y etiqueta cada entrada con el cliente
func NewSecureWriter(client database.Client, logger *logrus.Logger, userAgent, ipAddress string) *Writer {
	w := NewWriter(client, logger)
	return w.ForClient(userAgent, ipAddress)
}

// ForClient retorna una variante segura ligada al user agent y la IP indicados
func (w *Writer) ForClient(userAgent, ipAddress string) *Writer {
	if ipAddress == "" {
		ipAddress = ClientAddress
	}
	return &Writer{
		client:    w.client,
		logger:    w.logger,
		now:       w.now,
		secure:    true,
		userAgent: userAgent,
		ipAddress: ipAddress,
	}
}

// SetClock reemplaza el reloj usado para completar timestamps
func (w *Writer) SetClock(now func() time.Time) {
	w.now = now
}

// Append valida y persiste la entrada, retornando la fila almacenada
func (w *Writer) Append(ctx context.Context, entry models.LogEntry) (*models.LogEntry, error) {
	if w.secure {
		entry.Message = Redact(entry.Message)
		if entry.Details != nil {
			entry.Details = models.StringPtr(Redact(*entry.Details))
		}
		entry.UserAgent = models.StringPtr(w.userAgent)
		entry.IPAddress = models.StringPtr(w.ipAddress)
	}

	if err := entry.Validate(); err != nil {
		return nil, fmt.Errorf("invalid log entry: %w", err)
	}
	if entry.Timestamp == "" {
		entry.Timestamp = w.now().Format(time.RFC3339)
	}

	row, err := w.client.Insert(ctx, database.TableLogs, entryValues(entry))
	if err != nil {
		return nil, fmt.Errorf("error appending log entry: %w", err)
	}

	var stored models.LogEntry
	if err := json.Unmarshal(row, &stored); err != nil {
		return nil, fmt.Errorf("error decoding log entry: %w", err)
	}
	return &stored, nil
}

// Record escribe la entrada sin propagar errores; las fallas quedan en el log
func (w *Writer) Record(ctx context.Context, entry models.LogEntry) {
	if _, err := w.Append(ctx, entry); err != nil {
		w.logger.WithError(err).WithFields(logrus.Fields{
			"type":    entry.Type,
			"message": entry.Message,
		}).Error("Failed to write audit log entry")
	}
}

func entryValues(entry models.LogEntry) database.Values {
	values := database.Values{
		"timestamp": entry.Timestamp,
		"type":      string(entry.Type),
		"message":   entry.Message,
	}
	if entry.Details != nil {
		values["details"] = *entry.Details
	}
	if entry.NotesCount != nil {
		values["notes_count"] = *entry.NotesCount
	}
	if entry.HTTPCode != nil {
		values["http_code"] = *entry.HTTPCode
	}
	if entry.UserAgent != nil {
		values["user_agent"] = *entry.UserAgent
	}
	if entry.IPAddress != nil {
		values["ip_address"] = *entry.IPAddress
	}
	return values
}

// SecurityEvent construye la entrada de un evento de seguridad
func SecurityEvent(event, details string) models.LogEntry {
	entry := models.LogEntry{
		Type:    models.LogTypeSecurity,
		Message: "Evento de Segurança: " + event,
	}
	if details != "" {
		entry.Details = models.StringPtr(details)
	}
	return entry
}
