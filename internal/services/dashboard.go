package services

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/hypernova-labs/nfse-dashboard/internal/database"
	"github.com/hypernova-labs/nfse-dashboard/internal/models"
	"github.com/hypernova-labs/nfse-dashboard/internal/notify"
)

// RunDispatcher solicita al motor de ejecución un envío inmediato
type RunDispatcher interface {
	DispatchManualRun(ctx context.Context, requestedAt time.Time, source string) (string, error)
}

const (
	lastExecutionLayout = "2006-01-02 15:04:05"
	reportErrorLimit    = 50
	manualRunSource     = "dashboard"
)

// Dashboard expone las tarjetas de estado y los controles principales
type Dashboard struct {
	deps       Deps
	dispatcher RunDispatcher
	archiver   Archiver
	reports    *ReportGenerator
}

// NewDashboard crea el panel; dispatcher y archiver pueden ser nil
func NewDashboard(deps Deps, dispatcher RunDispatcher, archiver Archiver, reports *ReportGenerator) *Dashboard {
	if reports == nil {
		reports = NewReportGenerator(deps.Logger)
	}
	return &Dashboard{deps: deps, dispatcher: dispatcher, archiver: archiver, reports: reports}
}

type systemState struct {
	active        bool
	lastExecution string
	location      *time.Location
}

func (d *Dashboard) loadState(ctx context.Context) (*systemState, error) {
	settings, err := fetchSettings(ctx, d.deps.Client)
	if err != nil {
		return nil, err
	}

	values := make(SettingValues, len(settings))
	for _, s := range settings {
		values[s.Key] = valueOf(s.Value)
	}

	state := &systemState{
		lastExecution: values[models.SettingLastExecution],
		location:      time.UTC,
	}
	active, err := strconv.ParseBool(values.Get(models.SettingSystemActive, models.SettingDefaults[models.SettingSystemActive]))
	state.active = err == nil && active

	if loc, err := time.LoadLocation(values.Get(models.SettingTimezone, "UTC")); err == nil {
		state.location = loc
	} else {
		d.deps.Logger.WithError(err).Warn("Invalid timezone setting, using UTC")
	}
	return state, nil
}

func (d *Dashboard) countNotes(ctx context.Context, filters ...database.Filter) (int, error) {
	rows, err := d.deps.Client.Query(ctx, database.TableNotes, database.Query{Filters: filters})
	if err != nil {
		return 0, err
	}
	return len(rows), nil
}

// Status calcula las tarjetas de estado del panel
func (d *Dashboard) Status(ctx context.Context) (*models.DashboardStatus, error) {
	state, err := d.loadState(ctx)
	if err != nil {
		d.deps.Logger.WithError(err).Error("Failed to load dashboard settings")
		d.deps.notify(notify.Error("Erro ao carregar status", errorText(err)))
		return nil, err
	}

	now := d.deps.now().In(state.location)
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, state.location)

	status := &models.DashboardStatus{
		IsSystemActive: state.active,
		LastExecution:  state.lastExecution,
	}
	counters := []struct {
		target  *int
		filters []database.Filter
	}{
		{&status.TotalSentToday, []database.Filter{
			database.Eq("status", string(models.NoteStatusSent)),
			database.Gte("updated_at", startOfDay.UTC()),
		}},
		{&status.TotalErrors, []database.Filter{database.Eq("status", string(models.NoteStatusError))}},
		{&status.TotalPending, []database.Filter{database.Eq("status", string(models.NoteStatusPending))}},
	}
	for _, c := range counters {
		n, err := d.countNotes(ctx, c.filters...)
		if err != nil {
			d.deps.Logger.WithError(err).Error("Failed to count notes for dashboard")
			d.deps.notify(notify.Error("Erro ao carregar status", errorText(err)))
			return nil, err
		}
		*c.target = n
	}
	return status, nil
}

func (d *Dashboard) writeSetting(ctx context.Context, key, value string) error {
	_, err := d.deps.Client.Update(ctx, database.TableSettings,
		[]database.Filter{database.Eq("key", key)},
		database.Values{"value": value, "updated_at": d.deps.now()})
	if err != nil {
		return fmt.Errorf("error updating setting %s: %w", key, err)
	}
	return nil
}

// Toggle invierte system_active y retorna el nuevo estado
func (d *Dashboard) Toggle(ctx context.Context) (bool, error) {
	state, err := d.loadState(ctx)
	if err == nil {
		err = d.writeSetting(ctx, models.SettingSystemActive, strconv.FormatBool(!state.active))
	}
	if err != nil {
		d.deps.Logger.WithError(err).Error("Failed to toggle system")
		d.deps.record(ctx, models.LogTypeError, "Erro ao alterar status do sistema", "Erro: "+errorText(err), nil)
		d.deps.notify(notify.Error("Erro ao alterar status", errorText(err)))
		return false, err
	}

	active := !state.active
	if active {
		d.deps.record(ctx, models.LogTypeInfo, "Sistema ativado", "Envio automático de NFSe ativado", nil)
		d.deps.notify(notify.Info("Sistema Ativado", "O envio automático de NFSe foi ativado"))
	} else {
		d.deps.record(ctx, models.LogTypeWarning, "Sistema desativado", "Envio automático de NFSe desativado", nil)
		d.deps.notify(notify.Error("Sistema Desativado", "O envio automático de NFSe foi desativado"))
	}
	return active, nil
}

// ManualRun dispara una ejecución inmediata; requiere el sistema activo
func (d *Dashboard) ManualRun(ctx context.Context) (*models.ManualRunResponse, error) {
	state, err := d.loadState(ctx)
	if err != nil {
		d.deps.Logger.WithError(err).Error("Failed to load system state")
		d.deps.notify(notify.Error("Erro na execução", errorText(err)))
		return nil, err
	}
	if !state.active {
		d.deps.notify(notify.Error("Sistema inativo", "Ative o sistema para executar o envio manual"))
		return nil, ErrSystemInactive
	}
	if d.dispatcher == nil {
		d.deps.notify(notify.Error("Execução indisponível", "O motor de envio não está configurado"))
		return nil, ErrDispatchDisabled
	}

	requestedAt := d.deps.now()
	eventID, err := d.dispatcher.DispatchManualRun(ctx, requestedAt, manualRunSource)
	if err != nil {
		d.deps.Logger.WithError(err).Error("Failed to dispatch manual run")
		d.deps.record(ctx, models.LogTypeError, "Erro na execução manual", "Erro: "+errorText(err), nil)
		d.deps.notify(notify.Error("Erro na execução", "Não foi possível iniciar o envio manual"))
		return nil, err
	}

	stamp := requestedAt.In(state.location).Format(lastExecutionLayout)
	if err := d.writeSetting(ctx, models.SettingLastExecution, stamp); err != nil {
		// La ejecución ya fue solicitada; solo falta el registro de la hora
		d.deps.Logger.WithError(err).Warn("Failed to stamp last execution")
	}

	d.deps.record(ctx, models.LogTypeInfo, "Execução manual iniciada", "Evento: "+eventID, nil)
	d.deps.notify(notify.Info("Execução Iniciada",
		"O processo de envio manual foi iniciado. Você receberá um email com o relatório."))

	return &models.ManualRunResponse{
		EventID:     eventID,
		RequestedAt: requestedAt.Format(time.RFC3339),
	}, nil
}

// StatusReport genera el PDF de estado y lo archiva si hay storage
func (d *Dashboard) StatusReport(ctx context.Context) ([]byte, *models.ExportResponse, error) {
	status, err := d.Status(ctx)
	if err != nil {
		return nil, nil, err
	}

	rows, err := d.deps.Client.Query(ctx, database.TableNotes, database.Query{
		Filters: []database.Filter{database.Eq("status", string(models.NoteStatusError))},
		Order:   &database.Order{Column: "created_at", Ascending: false},
		Limit:   reportErrorLimit,
	})
	if err != nil {
		return nil, nil, err
	}
	failed, err := database.DecodeRows[models.NfseNote](rows)
	if err != nil {
		return nil, nil, err
	}

	now := d.deps.now()
	data, err := d.reports.GenerateStatusPDF(status, failed, now)
	if err != nil {
		return nil, nil, err
	}

	resp := &models.ExportResponse{
		FileName: fmt.Sprintf("relatorio_%s.pdf", now.Format("2006-01-02")),
	}
	if d.archiver != nil {
		key := "reports/" + strconv.FormatInt(now.Unix(), 10) + "_" + resp.FileName
		url, err := d.archiver.Archive(ctx, key, data, "application/pdf")
		if err != nil {
			d.deps.Logger.WithError(err).WithField("file", key).Warn("Failed to archive status report")
		} else {
			resp.ArchiveURL = url
		}
	}

	d.deps.record(ctx, models.LogTypeInfo, "Relatório de status gerado", resp.FileName, nil)
	return data, resp, nil
}

// IsSystemActive indica si el envío automático está habilitado
func (d *Dashboard) IsSystemActive(ctx context.Context) (bool, error) {
	state, err := d.loadState(ctx)
	if err != nil {
		return false, err
	}
	return state.active, nil
}
