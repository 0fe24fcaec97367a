package services

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hypernova-labs/nfse-dashboard/internal/database"
	"github.com/hypernova-labs/nfse-dashboard/internal/models"
	"github.com/hypernova-labs/nfse-dashboard/internal/notify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDispatcher struct {
	calls  int
	source string
	err    error
}

func (d *fakeDispatcher) DispatchManualRun(ctx context.Context, requestedAt time.Time, source string) (string, error) {
	d.calls++
	d.source = source
	if d.err != nil {
		return "", d.err
	}
	return "evt-123", nil
}

func settingValue(t *testing.T, env *testEnv, key string) string {
	t.Helper()
	rows, err := env.memory.Query(context.Background(), database.TableSettings, database.Query{
		Filters: []database.Filter{database.Eq("key", key)},
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	setting, err := database.DecodeRow[models.SystemSetting](rows[0])
	require.NoError(t, err)
	return valueOf(setting.Value)
}

func TestDashboardStatus(t *testing.T) {
	env := newTestEnv(t)
	env.seedDemo(t)
	sent := "sent-today"
	env.seedNote(t, sent, "11111111000111", models.NoteStatusPending, testNow.Add(-2*time.Hour))
	_, err := env.memory.Update(context.Background(), database.TableNotes,
		[]database.Filter{database.Eq("id", sent)},
		database.Values{"status": string(models.NoteStatusSent), "updated_at": testNow.Add(-time.Hour)})
	require.NoError(t, err)

	dashboard := NewDashboard(env.deps, nil, nil, nil)
	status, err := dashboard.Status(context.Background())
	require.NoError(t, err)

	assert.True(t, status.IsSystemActive)
	assert.Empty(t, status.LastExecution)
	assert.Equal(t, 1, status.TotalSentToday)
	assert.Equal(t, 1, status.TotalErrors)
	assert.Equal(t, 3, status.TotalPending)
}

func TestDashboardToggle(t *testing.T) {
	env := newTestEnv(t)
	env.seedDemo(t)
	dashboard := NewDashboard(env.deps, nil, nil, nil)

	active, err := dashboard.Toggle(context.Background())
	require.NoError(t, err)
	assert.False(t, active)
	assert.Equal(t, "false", settingValue(t, env, models.SettingSystemActive))

	active, err = dashboard.Toggle(context.Background())
	require.NoError(t, err)
	assert.True(t, active)

	toasts := env.queue.Drain()
	require.Len(t, toasts, 2)
	assert.Equal(t, notify.Error("Sistema Desativado", "O envio automático de NFSe foi desativado"), toasts[0])
	assert.Equal(t, notify.Info("Sistema Ativado", "O envio automático de NFSe foi ativado"), toasts[1])

	assert.Len(t, env.logsOfType(t, models.LogTypeWarning), 1)
	assert.Len(t, env.logsOfType(t, models.LogTypeInfo), 1)
}

func TestDashboardManualRun(t *testing.T) {
	env := newTestEnv(t)
	env.seedDemo(t)
	dispatcher := &fakeDispatcher{}
	dashboard := NewDashboard(env.deps, dispatcher, nil, nil)

	resp, err := dashboard.ManualRun(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "evt-123", resp.EventID)
	assert.Equal(t, testNow.Format(time.RFC3339), resp.RequestedAt)
	assert.Equal(t, manualRunSource, dispatcher.source)
	assert.Contains(t, settingValue(t, env, models.SettingLastExecution), "2024-05-28")

	toasts := env.queue.Drain()
	require.Len(t, toasts, 1)
	assert.Equal(t, "Execução Iniciada", toasts[0].Title)
}

func TestDashboardManualRunRequiresActiveSystem(t *testing.T) {
	env := newTestEnv(t)
	env.seedDemo(t)
	dispatcher := &fakeDispatcher{}
	dashboard := NewDashboard(env.deps, dispatcher, nil, nil)

	_, err := dashboard.Toggle(context.Background())
	require.NoError(t, err)
	env.queue.Drain()

	_, err = dashboard.ManualRun(context.Background())
	require.ErrorIs(t, err, ErrSystemInactive)
	assert.Equal(t, 0, dispatcher.calls)
	assert.Empty(t, settingValue(t, env, models.SettingLastExecution))
}

func TestDashboardManualRunDispatchFailure(t *testing.T) {
	env := newTestEnv(t)
	env.seedDemo(t)
	dashboard := NewDashboard(env.deps, &fakeDispatcher{err: errors.New("inngest down")}, nil, nil)

	_, err := dashboard.ManualRun(context.Background())
	require.Error(t, err)
	assert.Empty(t, settingValue(t, env, models.SettingLastExecution))
	assert.Len(t, env.logsOfType(t, models.LogTypeError), 1)

	_, err = NewDashboard(env.deps, nil, nil, nil).ManualRun(context.Background())
	assert.ErrorIs(t, err, ErrDispatchDisabled)
}

func TestDashboardStatusReport(t *testing.T) {
	env := newTestEnv(t)
	env.seedDemo(t)
	archiver := &fakeArchiver{}
	dashboard := NewDashboard(env.deps, nil, archiver, nil)

	data, resp, err := dashboard.StatusReport(context.Background())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF")))
	assert.Equal(t, "relatorio_2024-05-28.pdf", resp.FileName)
	assert.NotEmpty(t, resp.ArchiveURL)
	assert.Equal(t, "application/pdf", archiver.contentType)
}
