package models

import (
	"fmt"
	"time"
)

// LogType representa la severidad de una entrada de auditoría
type LogType string

const (
	LogTypeSuccess  LogType = "success"
	LogTypeError    LogType = "error"
	LogTypeWarning  LogType = "warning"
	LogTypeInfo     LogType = "info"
	LogTypeSecurity LogType = "security"
)

// IsValid indica si el tipo pertenece al catálogo
func (t LogType) IsValid() bool {
	switch t {
	case LogTypeSuccess, LogTypeError, LogTypeWarning, LogTypeInfo, LogTypeSecurity:
		return true
	}
	return false
}

// LogEntry representa una entrada inmutable de system_logs
type LogEntry struct {
	ID         string     `json:"id,omitempty"`
	Timestamp  string     `json:"timestamp"`
	Type       LogType    `json:"type"`
	Message    string     `json:"message"`
	Details    *string    `json:"details,omitempty"`
	NotesCount *int       `json:"notes_count,omitempty"`
	HTTPCode   *int       `json:"http_code,omitempty"`
	UserAgent  *string    `json:"user_agent,omitempty"`
	IPAddress  *string    `json:"ip_address,omitempty"`
	CreatedAt  *time.Time `json:"created_at,omitempty"`
}

// Validate verifica la forma de la entrada antes de escribirla
func (e LogEntry) Validate() error {
	if e.Message == "" {
		return fmt.Errorf("log message is required")
	}
	if !e.Type.IsValid() {
		return fmt.Errorf("invalid log type: %q", e.Type)
	}
	if e.NotesCount != nil && *e.NotesCount < 0 {
		return fmt.Errorf("negative notes_count: %d", *e.NotesCount)
	}
	return nil
}

// DetailsText retorna los detalles o cadena vacía
func (e LogEntry) DetailsText() string {
	if e.Details == nil {
		return ""
	}
	return *e.Details
}

// LogFilters representa los filtros del visualizador de logs
type LogFilters struct {
	Type   string `form:"type"`
	Search string `form:"search"`
	Date   string `form:"date"`
}

// StringPtr retorna un puntero a la cadena
func StringPtr(s string) *string {
	return &s
}

// IntPtr retorna un puntero al entero
func IntPtr(i int) *int {
	return &i
}
