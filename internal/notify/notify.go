// Package notify implementa el canal de notificaciones (toasts) del panel.
package notify

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// Variant representa el estilo visual de la notificación
type Variant string

const (
	VariantDefault     Variant = "default"
	VariantDestructive Variant = "destructive"
)

// Notification representa un toast para el usuario
type Notification struct {
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	Variant     Variant `json:"variant"`
}

// Info crea una notificación estándar
func Info(title, description string) Notification {
	return Notification{Title: title, Description: description, Variant: VariantDefault}
}

// Error crea una notificación destructiva
func Error(title, description string) Notification {
	return Notification{Title: title, Description: description, Variant: VariantDestructive}
}

// Sink recibe notificaciones sin retornar error
type Sink interface {
	Notify(n Notification)
}

// Queue acumula las notificaciones de una sesión hasta que se drenan
type Queue struct {
	mu    sync.Mutex
	items []Notification
}

// NewQueue crea una cola vacía
func NewQueue() *Queue {
	return &Queue{}
}

// Notify encola la notificación
func (q *Queue) Notify(n Notification) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, n)
}

// Drain retorna y vacía las notificaciones pendientes
func (q *Queue) Drain() []Notification {
	q.mu.Lock()
	defer q.mu.Unlock()
	items := q.items
	q.items = nil
	if items == nil {
		return []Notification{}
	}
	return items
}

// Len retorna la cantidad de notificaciones pendientes
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// LogSink replica las notificaciones en el logger
type LogSink struct {
	logger *logrus.Logger
}

// NewLogSink crea un sink que registra cada notificación
func NewLogSink(logger *logrus.Logger) *LogSink {
	return &LogSink{logger: logger}
}

// Notify registra la notificación
func (s *LogSink) Notify(n Notification) {
	entry := s.logger.WithFields(logrus.Fields{
		"title":       n.Title,
		"description": n.Description,
		"variant":     n.Variant,
	})
	if n.Variant == VariantDestructive {
		entry.Warn("Notification")
		return
	}
	entry.Debug("Notification")
}

// Multi reparte cada notificación a varios sinks
type Multi []Sink

// Notify envía la notificación a todos los sinks
func (m Multi) Notify(n Notification) {
	for _, s := range m {
		s.Notify(n)
	}
}
