package services

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/hypernova-labs/nfse-dashboard/internal/audit"
	"github.com/hypernova-labs/nfse-dashboard/internal/database"
	"github.com/hypernova-labs/nfse-dashboard/internal/models"
	"github.com/hypernova-labs/nfse-dashboard/internal/notify"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, 5, 28, 18, 30, 0, 0, time.UTC)

// recordingClient cuenta las llamadas y permite fallar updates por id
type recordingClient struct {
	database.Client

	mu       sync.Mutex
	queries  int
	updates  int
	inserts  map[string]int
	failID   string
	failErr  error
	updateFn func(table string, values database.Values)
}

func newRecordingClient(next database.Client) *recordingClient {
	return &recordingClient{Client: next, inserts: make(map[string]int)}
}

func (c *recordingClient) Query(ctx context.Context, table string, q database.Query) ([]json.RawMessage, error) {
	c.mu.Lock()
	c.queries++
	c.mu.Unlock()
	return c.Client.Query(ctx, table, q)
}

func (c *recordingClient) Insert(ctx context.Context, table string, values database.Values) (json.RawMessage, error) {
	c.mu.Lock()
	c.inserts[table]++
	c.mu.Unlock()
	return c.Client.Insert(ctx, table, values)
}

func (c *recordingClient) Update(ctx context.Context, table string, match []database.Filter, values database.Values) (json.RawMessage, error) {
	c.mu.Lock()
	c.updates++
	failID, failErr, fn := c.failID, c.failErr, c.updateFn
	c.mu.Unlock()

	if fn != nil {
		fn(table, values)
	}
	for _, f := range match {
		if f.Column == "id" && f.Value == failID && failID != "" {
			return nil, failErr
		}
	}
	return c.Client.Update(ctx, table, match, values)
}

func (c *recordingClient) updateCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.updates
}

func (c *recordingClient) insertCount(table string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inserts[table]
}

type testEnv struct {
	memory *database.MemoryClient
	client *recordingClient
	queue  *notify.Queue
	deps   Deps
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	memory := database.NewMemoryClient()
	memory.SetClock(func() time.Time { return testNow })
	client := newRecordingClient(memory)
	queue := notify.NewQueue()

	writer := audit.NewWriter(client, logger)
	return &testEnv{
		memory: memory,
		client: client,
		queue:  queue,
		deps: Deps{
			Client:   client,
			Audit:    writer,
			Notifier: queue,
			Logger:   logger,
			Now:      func() time.Time { return testNow },
		},
	}
}

func (e *testEnv) seedNote(t *testing.T, id, cnpj string, status models.NoteStatus, createdAt time.Time) {
	t.Helper()
	_, err := e.memory.Insert(context.Background(), database.TableNotes, database.Values{
		"id":                   id,
		"numero_rps":           id,
		"serie_rps":            "A1",
		"data_emissao":         createdAt.Format("2006-01-02"),
		"cnpj_prestador":       cnpj,
		"razao_social_tomador": "Tomador " + id,
		"valor_servicos":       1500.00,
		"cd_servico":           "101",
		"status":               string(status),
		"created_at":           createdAt,
	})
	require.NoError(t, err)
}

func (e *testEnv) seedDemo(t *testing.T) {
	t.Helper()
	require.NoError(t, database.SeedDemoData(context.Background(), e.memory))
}

func (e *testEnv) logs(t *testing.T) []models.LogEntry {
	t.Helper()
	logs, err := database.DecodeRows[models.LogEntry](e.memory.Rows(database.TableLogs))
	require.NoError(t, err)
	return logs
}

func (e *testEnv) logsOfType(t *testing.T, logType models.LogType) []models.LogEntry {
	t.Helper()
	var out []models.LogEntry
	for _, l := range e.logs(t) {
		if l.Type == logType {
			out = append(out, l)
		}
	}
	return out
}

func (e *testEnv) note(t *testing.T, id string) models.NfseNote {
	t.Helper()
	rows, err := e.memory.Query(context.Background(), database.TableNotes, database.Query{
		Filters: []database.Filter{database.Eq("id", id)},
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	note, err := database.DecodeRow[models.NfseNote](rows[0])
	require.NoError(t, err)
	return *note
}

var errBackend = errors.New("backend unavailable")
