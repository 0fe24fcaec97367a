package services

import (
	"context"
	"testing"
	"time"

	"github.com/hypernova-labs/nfse-dashboard/internal/database"
	"github.com/hypernova-labs/nfse-dashboard/internal/models"
	"github.com/hypernova-labs/nfse-dashboard/internal/notify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ids(notes []models.NfseNote) []string {
	out := make([]string, len(notes))
	for i, n := range notes {
		out[i] = n.ID
	}
	return out
}

func TestSearchEmptyFiltersMatchesImplicitStatusOnly(t *testing.T) {
	env := newTestEnv(t)
	env.seedDemo(t)

	custom := NewCustomSendWorkflow(env.deps)
	notes, err := custom.Search(context.Background(), models.NoteFilters{})
	require.NoError(t, err)
	assert.Len(t, notes, 3)
	for _, n := range notes {
		assert.Equal(t, models.NoteStatusPending, n.Status)
	}

	available := NewAvailableNotesWorkflow(env.deps)
	notes, err = available.Search(context.Background(), models.NoteFilters{})
	require.NoError(t, err)
	assert.Len(t, notes, 4)
}

func TestSearchIssuerSubstring(t *testing.T) {
	env := newTestEnv(t)
	env.seedNote(t, "a", "12.345.678/0001-90", models.NoteStatusPending, testNow)
	env.seedNote(t, "b", "98.765.432/0001-10", models.NoteStatusPending, testNow.Add(-time.Hour))
	env.seedNote(t, "c", "AB12.345CD", models.NoteStatusError, testNow.Add(-2*time.Hour))

	w := NewAvailableNotesWorkflow(env.deps)
	notes, err := w.Search(context.Background(), models.NoteFilters{CNPJPrestador: "12.345"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c"}, ids(notes))

	notes, err = w.Search(context.Background(), models.NoteFilters{CNPJPrestador: "ab12"})
	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, ids(notes))
}

func TestSearchOrdersNewestFirstAndAppliesRange(t *testing.T) {
	env := newTestEnv(t)
	env.seedNote(t, "old", "1", models.NoteStatusPending, testNow.AddDate(0, 0, -10))
	env.seedNote(t, "mid", "1", models.NoteStatusPending, testNow.AddDate(0, 0, -5))
	env.seedNote(t, "new", "1", models.NoteStatusPending, testNow)

	w := NewAvailableNotesWorkflow(env.deps)
	notes, err := w.Search(context.Background(), models.NoteFilters{})
	require.NoError(t, err)
	assert.Equal(t, []string{"new", "mid", "old"}, ids(notes))

	notes, err = w.Search(context.Background(), models.NoteFilters{
		DataInicio: testNow.AddDate(0, 0, -5).Format("2006-01-02"),
		DataFim:    testNow.Format("2006-01-02"),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"new", "mid"}, ids(notes))
}

func TestSearchWritesAuditAndNotification(t *testing.T) {
	env := newTestEnv(t)
	env.seedDemo(t)

	w := NewCustomSendWorkflow(env.deps)
	_, err := w.Search(context.Background(), models.NoteFilters{CdServico: "101"})
	require.NoError(t, err)

	info := env.logsOfType(t, models.LogTypeInfo)
	require.Len(t, info, 1)
	assert.Equal(t, "Busca personalizada de notas iniciada", info[0].Message)
	assert.Equal(t, "Filtros: CNPJ: N/A, Status: Pendente, Serviço: 101, Período: N/A - N/A", info[0].DetailsText())

	success := env.logsOfType(t, models.LogTypeSuccess)
	require.Len(t, success, 1)
	require.NotNil(t, success[0].NotesCount)
	assert.Equal(t, 2, *success[0].NotesCount)

	toasts := env.queue.Drain()
	require.Len(t, toasts, 1)
	assert.Equal(t, notify.Info("Busca concluída", "2 notas encontradas"), toasts[0])
	assert.True(t, w.State().SearchExecuted)
}

func TestSearchFailureKeepsGate(t *testing.T) {
	env := newTestEnv(t)
	env.memory.Fail("query", errBackend)

	w := NewAvailableNotesWorkflow(env.deps)
	_, err := w.Search(context.Background(), models.NoteFilters{})
	require.ErrorIs(t, err, errBackend)

	state := w.State()
	assert.True(t, state.SearchExecuted)
	assert.Empty(t, state.Results)

	failures := env.logsOfType(t, models.LogTypeError)
	require.Len(t, failures, 1)
	assert.Equal(t, "Erro: backend unavailable", failures[0].DetailsText())

	toasts := env.queue.Drain()
	require.Len(t, toasts, 1)
	assert.Equal(t, notify.VariantDestructive, toasts[0].Variant)
}

func TestSearchInvalidFiltersOnlyNotifies(t *testing.T) {
	env := newTestEnv(t)

	w := NewAvailableNotesWorkflow(env.deps)
	_, err := w.Search(context.Background(), models.NoteFilters{DataInicio: "2024-06-01", DataFim: "2024-05-01"})
	require.ErrorIs(t, err, ErrInvalidFilters)

	assert.Empty(t, env.logs(t))
	assert.Equal(t, 0, env.client.queries)
	assert.False(t, w.State().SearchExecuted)
	assert.Equal(t, 1, env.queue.Len())
}

func TestSelection(t *testing.T) {
	env := newTestEnv(t)
	env.seedDemo(t)

	w := NewAvailableNotesWorkflow(env.deps)
	notes, err := w.Search(context.Background(), models.NoteFilters{})
	require.NoError(t, err)

	w.ToggleSelection(notes[0].ID)
	w.ToggleSelection(notes[1].ID)
	w.ToggleSelection(notes[0].ID)
	assert.Equal(t, []string{notes[1].ID}, w.State().SelectedIDs)

	w.SelectAll()
	first := w.State().SelectedIDs
	w.SelectAll()
	assert.Equal(t, first, w.State().SelectedIDs)
	assert.ElementsMatch(t, ids(notes), first)

	w.ClearSelection()
	assert.Empty(t, w.State().SelectedIDs)
}

func TestSearchKeepsOnlyVisibleSelection(t *testing.T) {
	env := newTestEnv(t)
	env.seedNote(t, "a", "111", models.NoteStatusPending, testNow)
	env.seedNote(t, "b", "222", models.NoteStatusPending, testNow)

	w := NewAvailableNotesWorkflow(env.deps)
	_, err := w.Search(context.Background(), models.NoteFilters{})
	require.NoError(t, err)
	w.SelectAll()

	_, err = w.Search(context.Background(), models.NoteFilters{CNPJPrestador: "111"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, w.State().SelectedIDs)
}

func TestBulkSendEmptySelection(t *testing.T) {
	env := newTestEnv(t)

	w := NewCustomSendWorkflow(env.deps)
	n, err := w.BulkSend(context.Background())
	require.ErrorIs(t, err, ErrNoSelection)
	assert.Zero(t, n)

	assert.Equal(t, 0, env.client.queries)
	assert.Equal(t, 0, env.client.updateCount())
	assert.Equal(t, 0, env.client.insertCount(database.TableLogs))

	toasts := env.queue.Drain()
	require.Len(t, toasts, 1)
	assert.Equal(t, notify.Error("Nenhuma nota selecionada", "Selecione pelo menos uma nota para envio"), toasts[0])
}

func TestBulkSendPartialFailure(t *testing.T) {
	env := newTestEnv(t)
	env.seedNote(t, "a", "1", models.NoteStatusPending, testNow)
	env.seedNote(t, "b", "1", models.NoteStatusPending, testNow.Add(-time.Minute))

	w := NewCustomSendWorkflow(env.deps)
	_, err := w.Search(context.Background(), models.NoteFilters{})
	require.NoError(t, err)
	w.SelectAll()
	env.queue.Drain()

	env.client.failID = "b"
	env.client.failErr = errBackend

	n, err := w.BulkSend(context.Background())
	require.ErrorIs(t, err, errBackend)
	assert.Equal(t, 1, n)

	assert.Equal(t, models.NoteStatusProcessing, env.note(t, "a").Status)
	assert.Equal(t, models.NoteStatusPending, env.note(t, "b").Status)

	failures := env.logsOfType(t, models.LogTypeError)
	require.Len(t, failures, 1)
	assert.Equal(t, "Erro no envio personalizado", failures[0].Message)
	assert.Equal(t, "Erro ao enviar 2 notas: backend unavailable", failures[0].DetailsText())
	require.NotNil(t, failures[0].NotesCount)
	assert.Equal(t, 2, *failures[0].NotesCount)

	state := w.State()
	assert.ElementsMatch(t, []string{"a", "b"}, state.SelectedIDs)
	assert.True(t, state.SearchExecuted)
	assert.Equal(t, models.NoteStatusProcessing, state.Results[0].Status)

	toasts := env.queue.Drain()
	require.Len(t, toasts, 1)
	assert.Equal(t, notify.VariantDestructive, toasts[0].Variant)
}

func TestBulkSendOnlyTouchesPendingResults(t *testing.T) {
	env := newTestEnv(t)
	env.seedNote(t, "P1", "1", models.NoteStatusPending, testNow)
	env.seedNote(t, "S1", "1", models.NoteStatusSent, testNow.Add(-time.Minute))

	w := NewCustomSendWorkflow(env.deps)
	notes, err := w.Search(context.Background(), models.NoteFilters{})
	require.NoError(t, err)
	require.Equal(t, []string{"P1"}, ids(notes))

	assert.False(t, w.ToggleSelection("S1"))
	assert.True(t, w.ToggleSelection("P1"))
	assert.Equal(t, []string{"P1"}, w.State().SelectedIDs)

	n, err := w.BulkSend(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, models.NoteStatusProcessing, env.note(t, "P1").Status)
	assert.Equal(t, models.NoteStatusSent, env.note(t, "S1").Status)
}

func TestBulkSendSkipsNoteChangedAfterSearch(t *testing.T) {
	env := newTestEnv(t)
	env.seedNote(t, "P1", "1", models.NoteStatusPending, testNow)

	w := NewCustomSendWorkflow(env.deps)
	_, err := w.Search(context.Background(), models.NoteFilters{})
	require.NoError(t, err)
	w.SelectAll()

	// El pipeline externo entrega la nota entre la búsqueda y el envío
	_, err = env.memory.Update(context.Background(), database.TableNotes,
		[]database.Filter{database.Eq("id", "P1")},
		database.Values{"status": string(models.NoteStatusSent)})
	require.NoError(t, err)

	n, err := w.BulkSend(context.Background())
	require.ErrorIs(t, err, database.ErrNotFound)
	assert.Zero(t, n)
	assert.Equal(t, models.NoteStatusSent, env.note(t, "P1").Status)
}

func TestBulkSendEndToEnd(t *testing.T) {
	env := newTestEnv(t)
	env.seedNote(t, "N1", "12.345.678/0001-90", models.NoteStatusPending, testNow)
	env.seedNote(t, "N2", "12.345.678/0001-90", models.NoteStatusPending, testNow.Add(-time.Minute))

	var updated []database.Values
	env.client.updateFn = func(table string, values database.Values) {
		updated = append(updated, values)
	}

	w := NewCustomSendWorkflow(env.deps)
	_, err := w.Search(context.Background(), models.NoteFilters{})
	require.NoError(t, err)
	w.SelectAll()

	n, err := w.BulkSend(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	for _, id := range []string{"N1", "N2"} {
		note := env.note(t, id)
		assert.Equal(t, models.NoteStatusProcessing, note.Status)
		assert.Nil(t, note.MotivoErro)
		assert.True(t, note.UpdatedAt.Equal(testNow))
	}
	require.Len(t, updated, 2)
	assert.Contains(t, updated[0], "motivo_erro")

	success := env.logsOfType(t, models.LogTypeSuccess)
	require.Len(t, success, 2)
	last := success[len(success)-1]
	assert.Equal(t, "Envio personalizado iniciado", last.Message)
	require.NotNil(t, last.NotesCount)
	assert.Equal(t, 2, *last.NotesCount)

	state := w.State()
	assert.Empty(t, state.SelectedIDs)
	assert.False(t, state.SearchExecuted)
	assert.Empty(t, state.Results)

	toasts := env.queue.Drain()
	assert.Equal(t, notify.Info("Envio iniciado", "2 notas foram enviadas para processamento"), toasts[len(toasts)-1])
}

func TestSendNote(t *testing.T) {
	env := newTestEnv(t)
	env.seedNote(t, "P1", "1", models.NoteStatusPending, testNow)
	env.seedNote(t, "E1", "1", models.NoteStatusError, testNow.Add(-time.Minute))

	w := NewAvailableNotesWorkflow(env.deps)
	_, err := w.Search(context.Background(), models.NoteFilters{})
	require.NoError(t, err)
	env.queue.Drain()

	sent, err := w.SendNote(context.Background(), "P1")
	require.NoError(t, err)
	assert.Equal(t, models.NoteStatusProcessing, sent.Status)
	assert.Nil(t, sent.MotivoErro)
	assert.Equal(t, models.NoteStatusProcessing, w.State().Results[0].Status)

	toasts := env.queue.Drain()
	require.Len(t, toasts, 1)
	assert.Equal(t, notify.Info("Nota enviada", "RPS P1/A1 foi enviada para processamento"), toasts[0])

	// Ya en Processando no puede reenviarse
	_, err = w.SendNote(context.Background(), "P1")
	assert.ErrorIs(t, err, ErrNoteNotSendable)

	_, err = w.SendNote(context.Background(), "E1")
	assert.ErrorIs(t, err, ErrNoteNotSendable)
	assert.Equal(t, models.NoteStatusError, env.note(t, "E1").Status)

	_, err = w.SendNote(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNoteNotFound)
}

func TestAuditFailureDoesNotMaskOutcome(t *testing.T) {
	env := newTestEnv(t)
	env.seedNote(t, "a", "1", models.NoteStatusPending, testNow)

	w := NewCustomSendWorkflow(env.deps)
	env.memory.Fail("insert", errBackend)

	notes, err := w.Search(context.Background(), models.NoteFilters{})
	require.NoError(t, err)
	require.Len(t, notes, 1)

	w.SelectAll()
	n, err := w.BulkSend(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
