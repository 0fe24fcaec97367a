package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/hypernova-labs/nfse-dashboard/internal/audit"
	"github.com/hypernova-labs/nfse-dashboard/internal/models"
)

// Tipos de evento reportados por el navegador
const (
	EventAccess     = "access"
	EventResize     = "resize"
	EventCopy       = "copy"
	EventPrint      = "print"
	EventVisibility = "visibility"
)

const (
	devtoolsThreshold = 160
	copyMinLength     = 50
)

// SecurityMonitor convierte eventos del navegador en entradas de seguridad
type SecurityMonitor struct {
	deps      Deps
	userAgent string

	mu           sync.Mutex
	devtoolsOpen bool
}

// NewSecurityMonitor crea el monitor de una sesión
func NewSecurityMonitor(deps Deps, userAgent string) *SecurityMonitor {
	return &SecurityMonitor{deps: deps, userAgent: userAgent}
}

// Handle procesa el evento y retorna si generó una entrada de auditoría
func (m *SecurityMonitor) Handle(ctx context.Context, event models.ClientEvent) (bool, error) {
	var message, details string

	switch event.Kind {
	case EventAccess:
		message, details = "Acesso à aplicação", "User Agent: "+m.userAgent
	case EventResize:
		if !m.devtoolsTransition(event) {
			return false, nil
		}
		message, details = "Console de desenvolvedor detectado", "Possível tentativa de inspeção"
	case EventCopy:
		if event.SelectionLength <= copyMinLength {
			return false, nil
		}
		message, details = "Cópia de dados detectada", fmt.Sprintf("Tamanho: %d caracteres", event.SelectionLength)
	case EventPrint:
		message = "Tentativa de impressão detectada"
	case EventVisibility:
		message = "Usuário retornou à aplicação"
		if event.Hidden {
			message = "Usuário saiu da aplicação"
		}
	default:
		return false, fmt.Errorf("%w: %q", ErrUnknownEvent, event.Kind)
	}

	m.deps.Audit.Record(ctx, audit.SecurityEvent(message, details))
	return true, nil
}

// devtoolsTransition retorna true solo cuando el panel pasa de cerrado a abierto
func (m *SecurityMonitor) devtoolsTransition(event models.ClientEvent) bool {
	open := event.OuterHeight-event.InnerHeight > devtoolsThreshold ||
		event.OuterWidth-event.InnerWidth > devtoolsThreshold

	m.mu.Lock()
	defer m.mu.Unlock()
	if !open {
		m.devtoolsOpen = false
		return false
	}
	if m.devtoolsOpen {
		return false
	}
	m.devtoolsOpen = true
	return true
}
