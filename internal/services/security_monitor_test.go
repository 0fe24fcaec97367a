package services

import (
	"context"
	"testing"

	"github.com/hypernova-labs/nfse-dashboard/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSecurityMonitorEvents(t *testing.T) {
	tests := []struct {
		name    string
		event   models.ClientEvent
		logged  bool
		message string
		details string
	}{
		{"access", models.ClientEvent{Kind: EventAccess}, true, "Evento de Segurança: Acesso à aplicação", "User Agent: Mozilla/5.0"},
		{"print", models.ClientEvent{Kind: EventPrint}, true, "Evento de Segurança: Tentativa de impressão detectada", ""},
		{"hidden", models.ClientEvent{Kind: EventVisibility, Hidden: true}, true, "Evento de Segurança: Usuário saiu da aplicação", ""},
		{"visible", models.ClientEvent{Kind: EventVisibility}, true, "Evento de Segurança: Usuário retornou à aplicação", ""},
		{"long copy", models.ClientEvent{Kind: EventCopy, SelectionLength: 51}, true, "Evento de Segurança: Cópia de dados detectada", "Tamanho: 51 caracteres"},
		{"short copy", models.ClientEvent{Kind: EventCopy, SelectionLength: 50}, false, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			monitor := NewSecurityMonitor(env.deps, "Mozilla/5.0")

			logged, err := monitor.Handle(context.Background(), tt.event)
			require.NoError(t, err)
			assert.Equal(t, tt.logged, logged)

			logs := env.logsOfType(t, models.LogTypeSecurity)
			if !tt.logged {
				assert.Empty(t, logs)
				return
			}
			require.Len(t, logs, 1)
			assert.Equal(t, tt.message, logs[0].Message)
			assert.Equal(t, tt.details, logs[0].DetailsText())
		})
	}
}

func TestSecurityMonitorDevtoolsOncePerOpen(t *testing.T) {
	env := newTestEnv(t)
	monitor := NewSecurityMonitor(env.deps, "")
	ctx := context.Background()

	open := models.ClientEvent{Kind: EventResize, OuterWidth: 1400, InnerWidth: 1200, OuterHeight: 900, InnerHeight: 850}
	closed := models.ClientEvent{Kind: EventResize, OuterWidth: 1400, InnerWidth: 1390, OuterHeight: 900, InnerHeight: 850}
	edge := models.ClientEvent{Kind: EventResize, OuterWidth: 1400, InnerWidth: 1240, OuterHeight: 900, InnerHeight: 900}

	sequence := []struct {
		event  models.ClientEvent
		logged bool
	}{
		{closed, false},
		{edge, false},
		{open, true},
		{open, false},
		{closed, false},
		{open, true},
	}
	for i, step := range sequence {
		logged, err := monitor.Handle(ctx, step.event)
		require.NoError(t, err)
		assert.Equal(t, step.logged, logged, "step %d", i)
	}

	logs := env.logsOfType(t, models.LogTypeSecurity)
	require.Len(t, logs, 2)
	assert.Equal(t, "Evento de Segurança: Console de desenvolvedor detectado", logs[0].Message)
}

func TestSecurityMonitorUnknownEvent(t *testing.T) {
	env := newTestEnv(t)
	monitor := NewSecurityMonitor(env.deps, "")

	_, err := monitor.Handle(context.Background(), models.ClientEvent{Kind: "screenshot"})
	assert.ErrorIs(t, err, ErrUnknownEvent)
	assert.Empty(t, env.logs(t))
}
