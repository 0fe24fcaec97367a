package audit

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/hypernova-labs/nfse-dashboard/internal/database"
	"github.com/hypernova-labs/nfse-dashboard/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestWriter(t *testing.T) (*Writer, *database.MemoryClient) {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	client := database.NewMemoryClient()
	w := NewWriter(client, logger)
	w.SetClock(func() time.Time { return time.Date(2024, 5, 28, 15, 4, 5, 0, time.UTC) })
	return w, client
}

func storedLogs(t *testing.T, client *database.MemoryClient) []models.LogEntry {
	t.Helper()
	logs, err := database.DecodeRows[models.LogEntry](client.Rows(database.TableLogs))
	require.NoError(t, err)
	return logs
}

func TestAppendKeepsCallerTimestamp(t *testing.T) {
	w, client := newTestWriter(t)

	stored, err := w.Append(context.Background(), models.LogEntry{
		Timestamp:  "2024-01-02T03:04:05Z",
		Type:       models.LogTypeSuccess,
		Message:    "Busca concluída",
		NotesCount: models.IntPtr(2),
	})
	require.NoError(t, err)
	assert.NotEmpty(t, stored.ID)
	assert.Equal(t, "2024-01-02T03:04:05Z", stored.Timestamp)

	logs := storedLogs(t, client)
	require.Len(t, logs, 1)
	require.NotNil(t, logs[0].NotesCount)
	assert.Equal(t, 2, *logs[0].NotesCount)
	assert.Nil(t, logs[0].UserAgent)
}

func TestAppendStampsMissingTimestamp(t *testing.T) {
	w, _ := newTestWriter(t)

	stored, err := w.Append(context.Background(), models.LogEntry{Type: models.LogTypeInfo, Message: "x"})
	require.NoError(t, err)
	assert.Equal(t, "2024-05-28T15:04:05Z", stored.Timestamp)
}

func TestAppendValidates(t *testing.T) {
	w, client := newTestWriter(t)

	_, err := w.Append(context.Background(), models.LogEntry{Type: models.LogTypeInfo})
	assert.Error(t, err)

	_, err = w.Append(context.Background(), models.LogEntry{Type: "debug", Message: "x"})
	assert.Error(t, err)

	_, err = w.Append(context.Background(), models.LogEntry{Type: models.LogTypeInfo, Message: "x", NotesCount: models.IntPtr(-1)})
	assert.Error(t, err)

	assert.Empty(t, client.Rows(database.TableLogs))
}

func TestSecureWriterRedactsAndTags(t *testing.T) {
	w, client := newTestWriter(t)
	secure := w.ForClient("Mozilla/5.0", "")

	_, err := secure.Append(context.Background(), models.LogEntry{
		Type:    models.LogTypeInfo,
		Message: "login password: hunter2",
		Details: models.StringPtr("Bearer abc.def"),
	})
	require.NoError(t, err)

	logs := storedLogs(t, client)
	require.Len(t, logs, 1)
	assert.Equal(t, "login password: [REDACTED]", logs[0].Message)
	assert.Equal(t, "bearer [REDACTED]", logs[0].DetailsText())
	require.NotNil(t, logs[0].UserAgent)
	assert.Equal(t, "Mozilla/5.0", *logs[0].UserAgent)
	require.NotNil(t, logs[0].IPAddress)
	assert.Equal(t, ClientAddress, *logs[0].IPAddress)
}

func TestRecordLogsFailures(t *testing.T) {
	logger, hook := test.NewNullLogger()
	client := database.NewMemoryClient()
	client.Fail("insert", errors.New("insert failed"))
	w := NewWriter(client, logger)

	w.Record(context.Background(), models.LogEntry{Type: models.LogTypeInfo, Message: "x"})

	require.Len(t, hook.Entries, 1)
	assert.Equal(t, logrus.ErrorLevel, hook.LastEntry().Level)
}

func TestSecurityEvent(t *testing.T) {
	entry := SecurityEvent("Tentativa de cópia", "Texto copiado: 80 caracteres")
	assert.Equal(t, models.LogTypeSecurity, entry.Type)
	assert.Equal(t, "Evento de Segurança: Tentativa de cópia", entry.Message)
	assert.Equal(t, "Texto copiado: 80 caracteres", entry.DetailsText())

	assert.Nil(t, SecurityEvent("Acesso", "").Details)
}
