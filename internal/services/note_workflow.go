package services

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/hypernova-labs/nfse-dashboard/internal/database"
	"github.com/hypernova-labs/nfse-dashboard/internal/models"
	"github.com/hypernova-labs/nfse-dashboard/internal/notify"
	"github.com/sirupsen/logrus"
)

// noteScreen fija los filtros implícitos y los textos de cada pantalla
type noteScreen struct {
	name           string
	implicitStatus models.NoteStatus
	placeholder    string
	filtersPrefix  string

	searchStarted     string
	searchDone        string
	searchDoneDetails string
	searchFailed      string
	doneTitle         string
	failedTitle       string
	failedDescription string
}

var customSendScreen = noteScreen{
	name:              "custom_send",
	implicitStatus:    models.NoteStatusPending,
	placeholder:       "N/A",
	filtersPrefix:     "Filtros: ",
	searchStarted:     "Busca personalizada de notas iniciada",
	searchDone:        "Busca personalizada concluída",
	searchDoneDetails: "%d notas encontradas para os filtros aplicados",
	searchFailed:      "Erro na busca personalizada",
	doneTitle:         "Busca concluída",
	failedTitle:       "Erro na busca",
	failedDescription: "Não foi possível buscar as notas",
}

var availableNotesScreen = noteScreen{
	name:              "available_notes",
	placeholder:       "Todos",
	filtersPrefix:     "Filtros aplicados: ",
	searchStarted:     "Consulta de notas disponíveis iniciada",
	searchDone:        "Consulta de notas concluída",
	searchDoneDetails: "%d notas encontradas",
	searchFailed:      "Erro na consulta de notas",
	doneTitle:         "Consulta realizada",
	failedTitle:       "Erro na consulta",
	failedDescription: "Não foi possível consultar as notas",
}

// NoteWorkflow mantiene filtros, resultados y selección de una pantalla de notas
type NoteWorkflow struct {
	deps   Deps
	screen noteScreen

	mu             sync.Mutex
	filters        models.NoteFilters
	searchExecuted bool
	results        []models.NfseNote
	selected       map[string]struct{}
}

// NewCustomSendWorkflow crea el flujo de envío personalizado (solo notas Pendente)
func NewCustomSendWorkflow(deps Deps) *NoteWorkflow {
	return newNoteWorkflow(deps, customSendScreen)
}

// NewAvailableNotesWorkflow crea el flujo de consulta de notas disponibles
func NewAvailableNotesWorkflow(deps Deps) *NoteWorkflow {
	return newNoteWorkflow(deps, availableNotesScreen)
}

func newNoteWorkflow(deps Deps, screen noteScreen) *NoteWorkflow {
	return &NoteWorkflow{
		deps:     deps,
		screen:   screen,
		selected: make(map[string]struct{}),
	}
}

// Search consulta las notas que cumplen los filtros.
// El resultado de la última respuesta reemplaza al anterior.
func (w *NoteWorkflow) Search(ctx context.Context, filters models.NoteFilters) ([]models.NfseNote, error) {
	if err := filters.Validate(); err != nil {
		w.deps.notify(notify.Error("Filtros inválidos", err.Error()))
		return nil, fmt.Errorf("%w: %v", ErrInvalidFilters, err)
	}

	effective := filters
	if w.screen.implicitStatus != "" {
		effective.Status = string(w.screen.implicitStatus)
	}

	w.mu.Lock()
	w.filters = filters
	w.searchExecuted = true
	w.mu.Unlock()

	w.deps.record(ctx, models.LogTypeInfo, w.screen.searchStarted,
		w.screen.filtersPrefix+effective.Describe(w.screen.placeholder), nil)

	notes, err := w.query(ctx, effective)
	if err != nil {
		w.mu.Lock()
		w.results = []models.NfseNote{}
		w.mu.Unlock()

		w.deps.Logger.WithError(err).WithField("screen", w.screen.name).Error("Note search failed")
		w.deps.record(ctx, models.LogTypeError, w.screen.searchFailed, "Erro: "+errorText(err), nil)
		w.deps.notify(notify.Error(w.screen.failedTitle, w.screen.failedDescription))
		return nil, err
	}

	w.mu.Lock()
	w.results = notes
	kept := make(map[string]struct{}, len(w.selected))
	for _, n := range notes {
		if _, ok := w.selected[n.ID]; ok {
			kept[n.ID] = struct{}{}
		}
	}
	w.selected = kept
	w.mu.Unlock()

	count := len(notes)
	w.deps.record(ctx, models.LogTypeSuccess, w.screen.searchDone,
		fmt.Sprintf(w.screen.searchDoneDetails, count), models.IntPtr(count))
	w.deps.notify(notify.Info(w.screen.doneTitle, fmt.Sprintf("%d notas encontradas", count)))

	return notes, nil
}

func (w *NoteWorkflow) query(ctx context.Context, f models.NoteFilters) ([]models.NfseNote, error) {
	var predicates []database.Filter
	if f.CNPJPrestador != "" {
		predicates = append(predicates, database.ILike("cnpj_prestador", "%"+f.CNPJPrestador+"%"))
	}
	if f.HasStatus() {
		predicates = append(predicates, database.Eq("status", f.Status))
	}
	if f.DataInicio != "" {
		predicates = append(predicates, database.Gte("data_emissao", f.DataInicio))
	}
	if f.DataFim != "" {
		predicates = append(predicates, database.Lte("data_emissao", f.DataFim))
	}
	if f.CdServico != "" {
		predicates = append(predicates, database.Eq("cd_servico", f.CdServico))
	}

	rows, err := w.deps.Client.Query(ctx, database.TableNotes, database.Query{
		Filters: predicates,
		Order:   &database.Order{Column: "created_at", Ascending: false},
	})
	if err != nil {
		return nil, err
	}
	return database.DecodeRows[models.NfseNote](rows)
}

// ToggleSelection agrega o quita el id de la selección.
// Solo se seleccionan ids presentes en los resultados actuales.
func (w *NoteWorkflow) ToggleSelection(id string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.selected[id]; ok {
		delete(w.selected, id)
		return true
	}
	for _, n := range w.results {
		if n.ID == id {
			w.selected[id] = struct{}{}
			return true
		}
	}
	return false
}

// SelectAll reemplaza la selección por los ids de los resultados actuales
func (w *NoteWorkflow) SelectAll() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.selected = make(map[string]struct{}, len(w.results))
	for _, n := range w.results {
		w.selected[n.ID] = struct{}{}
	}
}

// ClearSelection vacía la selección
func (w *NoteWorkflow) ClearSelection() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.selected = make(map[string]struct{})
}

// BulkSend marca como Processando cada nota seleccionada, una a la vez.
// Ante una falla el prefijo ya enviado no se revierte y la selección se conserva.
func (w *NoteWorkflow) BulkSend(ctx context.Context) (int, error) {
	ids := w.selectionOrder()
	if len(ids) == 0 {
		w.deps.notify(notify.Error("Nenhuma nota selecionada", "Selecione pelo menos uma nota para envio"))
		return 0, ErrNoSelection
	}

	total := len(ids)
	sent := make([]models.NfseNote, 0, total)
	for _, id := range ids {
		note, err := w.markProcessing(ctx, id)
		if err != nil {
			w.applyUpdates(sent)

			w.deps.Logger.WithError(err).WithFields(logrus.Fields{
				"attempted": total,
				"sent":      len(sent),
				"failed_id": id,
			}).Error("Bulk send interrupted")
			w.deps.record(ctx, models.LogTypeError, "Erro no envio personalizado",
				fmt.Sprintf("Erro ao enviar %d notas: %s", total, errorText(err)), models.IntPtr(total))
			w.deps.notify(notify.Error("Erro no envio", "Houve um problema ao enviar as notas"))
			return len(sent), err
		}
		sent = append(sent, *note)
	}

	w.deps.record(ctx, models.LogTypeSuccess, "Envio personalizado iniciado",
		fmt.Sprintf("%d notas selecionadas para envio personalizado", total), models.IntPtr(total))
	w.deps.notify(notify.Info("Envio iniciado", fmt.Sprintf("%d notas foram enviadas para processamento", total)))

	w.mu.Lock()
	w.selected = make(map[string]struct{})
	w.searchExecuted = false
	w.results = nil
	w.mu.Unlock()

	return total, nil
}

// SendNote envía una única nota de los resultados actuales
func (w *NoteWorkflow) SendNote(ctx context.Context, id string) (*models.NfseNote, error) {
	current, ok := w.findResult(id)
	if !ok {
		w.deps.notify(notify.Error("Nota não encontrada", "Execute a consulta novamente"))
		return nil, ErrNoteNotFound
	}
	if !current.CanBeSent() {
		w.deps.notify(notify.Error("Envio não permitido",
			fmt.Sprintf("RPS %s está com status %s", current.RPS(), current.Status)))
		return nil, ErrNoteNotSendable
	}

	w.deps.record(ctx, models.LogTypeInfo, "Envio individual de nota iniciado",
		fmt.Sprintf("RPS: %s - %s", current.RPS(), current.RazaoSocialTomador), models.IntPtr(1))

	note, err := w.markProcessing(ctx, id)
	if err != nil {
		w.deps.Logger.WithError(err).WithField("note_id", id).Error("Single note send failed")
		w.deps.record(ctx, models.LogTypeError, "Erro no envio individual de nota",
			fmt.Sprintf("Erro ao enviar RPS %s: %s", current.RPS(), errorText(err)), models.IntPtr(1))
		w.deps.notify(notify.Error("Erro no envio", "Não foi possível enviar a nota"))
		return nil, err
	}

	w.applyUpdates([]models.NfseNote{*note})
	w.deps.notify(notify.Info("Nota enviada",
		fmt.Sprintf("RPS %s foi enviada para processamento", note.RPS())))
	return note, nil
}

func (w *NoteWorkflow) markProcessing(ctx context.Context, id string) (*models.NfseNote, error) {
	// Una nota que dejó de estar Pendente no coincide y retorna ErrNotFound
	match := []database.Filter{
		database.Eq("id", id),
		database.Eq("status", string(models.NoteStatusPending)),
	}
	row, err := w.deps.Client.Update(ctx, database.TableNotes, match, database.Values{
		"status":      string(models.NoteStatusProcessing),
		"motivo_erro": nil,
		"updated_at":  w.deps.now(),
	})
	if err != nil {
		return nil, err
	}
	return database.DecodeRow[models.NfseNote](row)
}

// applyUpdates reemplaza en los resultados las notas ya actualizadas
func (w *NoteWorkflow) applyUpdates(updated []models.NfseNote) {
	if len(updated) == 0 {
		return
	}
	byID := make(map[string]models.NfseNote, len(updated))
	for _, n := range updated {
		byID[n.ID] = n
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	for i, n := range w.results {
		if u, ok := byID[n.ID]; ok {
			w.results[i] = u
		}
	}
}

func (w *NoteWorkflow) findResult(id string) (models.NfseNote, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, n := range w.results {
		if n.ID == id {
			return n, true
		}
	}
	return models.NfseNote{}, false
}

// selectionOrder retorna los ids seleccionados en el orden de los resultados.
// Ids que ya no están en los resultados no se envían.
func (w *NoteWorkflow) selectionOrder() []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	ids := make([]string, 0, len(w.selected))
	for _, n := range w.results {
		if _, ok := w.selected[n.ID]; ok {
			ids = append(ids, n.ID)
		}
	}
	return ids
}

// State retorna una copia del estado visible de la pantalla
func (w *NoteWorkflow) State() models.NoteWorkflowState {
	w.mu.Lock()
	defer w.mu.Unlock()

	results := make([]models.NfseNote, len(w.results))
	copy(results, w.results)

	selected := make([]string, 0, len(w.selected))
	for id := range w.selected {
		selected = append(selected, id)
	}
	sort.Strings(selected)

	return models.NoteWorkflowState{
		Filters:        w.filters,
		SearchExecuted: w.searchExecuted,
		Results:        results,
		SelectedIDs:    selected,
	}
}
